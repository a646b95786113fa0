package conversation

import (
	"slices"
	"strings"
	"time"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
)

// interpreter merges an answer into the requirement set.
type interpreter func(reqs *models.RequirementSet, values []string) error

var interpreters = map[models.QuestionCategory]interpreter{
	models.CategoryTrigger:         interpretTrigger,
	models.CategoryDataSource:      interpretDataSource,
	models.CategoryValidation:      interpretValidation,
	models.CategoryDedup:           interpretDedup,
	models.CategoryErrorHandling:   interpretErrorHandling,
	models.CategoryOutput:          interpretOutputs,
	models.CategoryAuth:            interpretAuth,
	models.CategoryRouting:         interpretRouting,
	models.CategoryEmailService:    interpretEmailService,
	models.CategoryFrequency:       interpretFrequency,
	models.CategoryTimezone:        interpretTimezone,
	models.CategoryAPIDetails:      interpretAPIDetails,
	models.CategoryTransformations: interpretTransformations,
	models.CategorySyncDirection:   verbatim(models.ReqSyncDirection),
	models.CategoryMatching:        verbatim(models.ReqMatchingStrategy),
	models.CategoryConflicts:       verbatim(models.ReqConflictResolution),
	models.CategoryNotification:    verbatim(models.ReqNotification),
	models.CategoryDatabase:        interpretDatabase,
}

// interpret stores the raw answer and applies the category's interpreter.
// Free text is kept verbatim and multi-select answers as an ordered set.
func interpret(reqs *models.RequirementSet, q *models.Question, values []string) error {
	key := models.AnswerKey(q.Category)
	if q.MultiSelect {
		reqs.SetList(key, values)
	} else {
		reqs.SetString(key, values[0])
	}

	if fn, ok := interpreters[q.Category]; ok {
		return fn(reqs, values)
	}

	return nil
}

// keyword pairs an answer substring with the value it selects.
type keyword struct {
	match []string
	value string
}

// pick returns the value of the first keyword any of whose substrings occurs
// in text.
func pick(text string, table []keyword) string {
	lower := strings.ToLower(text)

	for _, k := range table {
		for _, m := range k.match {
			if strings.Contains(lower, m) {
				return k.value
			}
		}
	}

	return ""
}

// pickAll collects the values of every keyword present in any of values, in
// table order.
func pickAll(values []string, table []keyword) []string {
	lower := strings.ToLower(strings.Join(values, "\n"))

	var out []string

	for _, k := range table {
		for _, m := range k.match {
			if strings.Contains(lower, m) {
				out = append(out, k.value)

				break
			}
		}
	}

	return out
}

func verbatim(key string) interpreter {
	return func(reqs *models.RequirementSet, values []string) error {
		reqs.SetString(key, strings.Join(values, ", "))

		return nil
	}
}

func yes(text string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), "yes")
}

var triggerKeywords = []keyword{
	{match: []string{"webhook"}, value: "webhook"},
	{match: []string{"schedule", "cron", "daily", "hourly", "weekly"}, value: "schedule"},
	{match: []string{"email", "inbox"}, value: "email"},
	{match: []string{"manual"}, value: "manual"},
	{match: []string{"form"}, value: "form"},
}

// interpretTrigger replaces the trigger type. An answer naming no known
// trigger clears it; the raw text stays under the answer key.
func interpretTrigger(reqs *models.RequirementSet, values []string) error {
	trigger := pick(values[0], triggerKeywords)
	if trigger == "" {
		reqs.Delete(models.ReqTriggerType)

		return nil
	}

	reqs.SetString(models.ReqTriggerType, trigger)

	return nil
}

var dataSourceKeywords = []keyword{
	{match: []string{"postgres"}, value: "postgres"},
	{match: []string{"mysql"}, value: "mysql"},
	{match: []string{"mongo"}, value: "mongodb"},
	{match: []string{"sheets", "spreadsheet"}, value: "google_sheets"},
	{match: []string{"airtable"}, value: "airtable"},
	{match: []string{"trigger itself", "webhook/form"}, value: "trigger_data"},
	{match: []string{"api", "endpoint"}, value: "api"},
	{match: []string{"csv", "excel", "file"}, value: "file"},
	{match: []string{"email", "inbox"}, value: "email"},
}

// dataSourceIntegrations are the data sources that are external systems.
var dataSourceIntegrations = map[string]string{
	"postgres":      "database",
	"mysql":         "database",
	"mongodb":       "database",
	"google_sheets": "sheets",
	"airtable":      "airtable",
	"api":           "api",
}

func interpretDataSource(reqs *models.RequirementSet, values []string) error {
	if previous, ok := dataSourceIntegrations[reqs.String(models.ReqDataSource)]; ok {
		reqs.Remove(models.ReqIntegrations, previous)
	}

	source := pick(values[0], dataSourceKeywords)
	if source == "" {
		reqs.SetString(models.ReqDataSource, values[0])

		return nil
	}

	reqs.SetString(models.ReqDataSource, source)

	if integration, ok := dataSourceIntegrations[source]; ok {
		reqs.Add(models.ReqIntegrations, integration)
	}

	return nil
}

func interpretValidation(reqs *models.RequirementSet, values []string) error {
	if !yes(values[0]) {
		reqs.SetBool(models.ReqNeedsValidation, false)
		reqs.Delete(models.ReqValidationType)

		return nil
	}

	reqs.SetBool(models.ReqNeedsValidation, true)

	lower := strings.ToLower(values[0])

	switch {
	case strings.Contains(lower, "custom"):
		reqs.SetString(models.ReqValidationType, "custom")
	case strings.Contains(lower, "just"), strings.Contains(lower, "only"):
		reqs.SetString(models.ReqValidationType, "required_only")
	default:
		reqs.SetString(models.ReqValidationType, "full")
	}

	return nil
}

func interpretDedup(reqs *models.RequirementSet, values []string) error {
	if !yes(values[0]) {
		reqs.SetBool(models.ReqNeedsDedup, false)
		reqs.Delete(models.ReqDedupTarget)

		return nil
	}

	reqs.SetBool(models.ReqNeedsDedup, true)

	if target := pick(values[0], []keyword{
		{match: []string{"database"}, value: "database"},
		{match: []string{"spreadsheet", "sheet"}, value: "spreadsheet"},
	}); target != "" {
		reqs.SetString(models.ReqDedupTarget, target)
	}

	return nil
}

func interpretErrorHandling(reqs *models.RequirementSet, values []string) error {
	lower := strings.ToLower(values[0])

	retry := strings.Contains(lower, "retry")
	alert := strings.Contains(lower, "alert")
	logging := strings.Contains(lower, "log")

	reqs.SetBool(models.ReqNeedsErrorHandling, retry || alert || logging)
	reqs.SetBool(models.ReqNeedsRetry, retry)
	reqs.SetBool(models.ReqNeedsErrorAlerts, alert)
	reqs.SetBool(models.ReqNeedsErrorLogging, logging)

	if retry {
		reqs.SetInt(models.ReqMaxRetries, 3)
	} else {
		reqs.Delete(models.ReqMaxRetries)
	}

	return nil
}

var outputKeywords = []keyword{
	{match: []string{"email", "gmail", "outlook"}, value: "email"},
	{match: []string{"slack"}, value: "slack"},
	{match: []string{"teams"}, value: "teams"},
	{match: []string{"database", "postgres", "mysql", "mongo"}, value: "database"},
	{match: []string{"crm", "hubspot", "salesforce"}, value: "crm"},
	{match: []string{"webhook", "api"}, value: "api"},
	{match: []string{"sheets", "spreadsheet"}, value: "sheets"},
	{match: []string{"airtable"}, value: "airtable"},
	{match: []string{"sms", "text message"}, value: "sms"},
}

func interpretOutputs(reqs *models.RequirementSet, values []string) error {
	var outputs []string

	for _, v := range values {
		for _, o := range pickAll([]string{v}, outputKeywords) {
			if !slices.Contains(outputs, o) {
				outputs = append(outputs, o)
			}
		}
	}

	reqs.SetList(models.ReqOutputs, outputs)

	return nil
}

var authKeywords = []keyword{
	{match: []string{"api key"}, value: "api_key"},
	{match: []string{"oauth"}, value: "oauth2"},
	{match: []string{"basic"}, value: "basic"},
	{match: []string{"bearer", "token"}, value: "bearer"},
	{match: []string{"no auth", "none"}, value: "none"},
}

func interpretAuth(reqs *models.RequirementSet, values []string) error {
	auth := pick(values[0], authKeywords)
	if auth == "" {
		auth = values[0]
	}

	reqs.SetString(models.ReqAuthType, auth)

	return nil
}

func interpretRouting(reqs *models.RequirementSet, values []string) error {
	lower := strings.ToLower(values[0])
	if strings.HasPrefix(lower, "no ") {
		reqs.SetBool(models.ReqNeedsBranching, false)
		reqs.SetString(models.ReqRoutingRules, "none")

		return nil
	}

	reqs.SetBool(models.ReqNeedsBranching, true)
	reqs.SetString(models.ReqRoutingRules, values[0])

	return nil
}

var emailServiceKeywords = []keyword{
	{match: []string{"gmail"}, value: "gmail"},
	{match: []string{"sendgrid"}, value: "sendgrid"},
	{match: []string{"mailgun"}, value: "mailgun"},
	{match: []string{"aws ses", "ses"}, value: "aws_ses"},
	{match: []string{"smtp"}, value: "smtp"},
	{match: []string{"outlook", "office 365"}, value: "outlook"},
}

func interpretEmailService(reqs *models.RequirementSet, values []string) error {
	service := pick(values[0], emailServiceKeywords)
	if service == "" {
		service = values[0]
	}

	reqs.SetString(models.ReqEmailService, service)

	return nil
}

func interpretFrequency(reqs *models.RequirementSet, values []string) error {
	expr, err := FrequencyToCron(values[0])
	if err != nil {
		return err
	}

	reqs.SetString(models.ReqFrequency, values[0])

	if expr == "" {
		reqs.Delete(models.ReqScheduleCron)
	} else {
		reqs.SetString(models.ReqScheduleCron, expr)
	}

	if !reqs.Has(models.ReqTriggerType) {
		reqs.SetString(models.ReqTriggerType, "schedule")
	}

	return nil
}

// interpretTimezone keeps the IANA name of an option such as
// "America/New_York (EST/EDT)".
func interpretTimezone(reqs *models.RequirementSet, values []string) error {
	zone := values[0]
	if fields := strings.Fields(zone); len(fields) > 0 {
		if _, err := time.LoadLocation(fields[0]); err == nil {
			zone = fields[0]
		}
	}

	reqs.SetString(models.ReqTimezone, zone)

	return nil
}

func interpretAPIDetails(reqs *models.RequirementSet, values []string) error {
	reqs.SetString(models.ReqAPIEndpoint, values[0])
	reqs.Add(models.ReqIntegrations, "api")

	return nil
}

var transformationKeywords = []keyword{
	{match: []string{"filter"}, value: "filter"},
	{match: []string{"map", "transform"}, value: "map"},
	{match: []string{"aggregate", "sum", "count"}, value: "aggregate"},
	{match: []string{"merge"}, value: "merge"},
	{match: []string{"split"}, value: "split"},
}

func interpretTransformations(reqs *models.RequirementSet, values []string) error {
	var ops []string

	for _, v := range values {
		lower := strings.ToLower(v)
		if strings.HasPrefix(lower, "no ") {
			continue
		}

		for _, op := range pickAll([]string{v}, transformationKeywords) {
			if !slices.Contains(ops, op) {
				ops = append(ops, op)
			}
		}
	}

	reqs.SetList(models.ReqTransformations, ops)

	return nil
}

var databaseKeywords = []keyword{
	{match: []string{"postgres"}, value: "postgres"},
	{match: []string{"mysql"}, value: "mysql"},
	{match: []string{"mongo"}, value: "mongodb"},
}

func interpretDatabase(reqs *models.RequirementSet, values []string) error {
	if previous := reqs.String(models.ReqDatabase); previous != "" && previous != "none" {
		reqs.Remove(models.ReqOutputs, "database")
	}

	lower := strings.ToLower(values[0])
	if strings.HasPrefix(lower, "no") {
		reqs.SetString(models.ReqDatabase, "none")

		return nil
	}

	db := pick(values[0], databaseKeywords)
	if db == "" {
		db = values[0]
	}

	reqs.SetString(models.ReqDatabase, db)
	reqs.Add(models.ReqOutputs, "database")

	return nil
}
