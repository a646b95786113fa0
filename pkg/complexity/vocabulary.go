package complexity

import "strings"

// Keywords are matched against a normalized request. A plain keyword matches
// any token it prefixes; "=word" must match a whole token; a keyword with a
// space is matched as a phrase starting at a token boundary.

// Trigger types in detection order.
const (
	TriggerWebhook  = "webhook"
	TriggerEmail    = "email"
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerForm     = "form"
)

type keywordSet struct {
	name     string
	keywords []string
}

var triggerVocabulary = []keywordSet{
	{name: TriggerWebhook, keywords: []string{"webhook", "incoming request", "=post request", "calls our endpoint"}},
	{name: TriggerForm, keywords: []string{"=form", "=forms", "form submission", "submits", "submitted", "typeform"}},
	{name: TriggerEmail, keywords: []string{"incoming email", "new email", "receive an email", "receive email", "receives an email", "inbox", "email arrives", "emails arrive"}},
	{name: TriggerSchedule, keywords: []string{
		"schedule", "daily", "hourly", "weekly", "monthly", "nightly", "cron",
		"every day", "every hour", "every morning", "every week", "every month", "every night",
		"each day", "each morning", "every monday", "every minute",
	}},
	{name: TriggerManual, keywords: []string{"manually", "on demand", "=button"}},
}

// Dimensions that contribute the weighted 2-4 points.
const (
	DimValidation    = "validation"
	DimDedup         = "dedup"
	DimBranching     = "branching"
	DimErrorHandling = "error_handling"
)

var dimensionVocabulary = []keywordSet{
	{name: DimValidation, keywords: []string{"valid", "verif", "sanitiz", "required field", "=check", "=checks", "=clean", "malformed", "well formed"}},
	{name: DimDedup, keywords: []string{"duplicate", "dedup", "already exist", "=unique", "=twice", "idempot"}},
	{name: DimBranching, keywords: []string{"=if", "rout", "branch", "depending", "based on", "condition", "=switch", "priorit", "escalat", "otherwise", "segment"}},
	{name: DimErrorHandling, keywords: []string{"error", "fail", "retry", "retries", "fallback", "exception", "recover", "resilien"}},
}

// domainVocabulary lists words that imply dimensions without naming them.
var domainVocabulary = []struct {
	word       string
	dimensions []string
}{
	{word: "lead", dimensions: []string{DimValidation, DimDedup, DimBranching, DimErrorHandling}},
	{word: "order", dimensions: []string{DimValidation, DimDedup, DimErrorHandling}},
	{word: "ticket", dimensions: []string{DimValidation, DimBranching, DimErrorHandling}},
	{word: "system", dimensions: []string{DimValidation, DimBranching, DimErrorHandling}},
	{word: "manag", dimensions: []string{DimValidation, DimDedup, DimErrorHandling}},
	{word: "customer", dimensions: []string{DimValidation, DimDedup}},
	{word: "invoice", dimensions: []string{DimValidation, DimErrorHandling}},
	{word: "payment", dimensions: []string{DimValidation, DimErrorHandling}},
	{word: "onboard", dimensions: []string{DimValidation, DimErrorHandling}},
	{word: "pipeline", dimensions: []string{DimValidation, DimErrorHandling}},
	{word: "=crm", dimensions: []string{DimDedup}},
	{word: "triage", dimensions: []string{DimBranching}},
}

type service struct {
	name        string
	destination bool
	keywords    []string
}

// services are external systems; destinations count as outputs when the
// request asks for an action.
var services = []service{
	{name: "email", destination: true, keywords: []string{"email", "gmail", "=mail", "=mails", "e mail", "smtp", "outlook", "sendgrid", "mailgun", "newsletter"}},
	{name: "slack", destination: true, keywords: []string{"slack"}},
	{name: "teams", destination: true, keywords: []string{"=teams", "microsoft teams"}},
	{name: "sms", destination: true, keywords: []string{"=sms", "twilio", "text message"}},
	{name: "sheets", destination: true, keywords: []string{"sheet", "spreadsheet", "excel"}},
	{name: "airtable", destination: true, keywords: []string{"airtable"}},
	{name: "database", destination: true, keywords: []string{"database", "=db", "postgres", "mysql", "mongo", "=sql", "supabase"}},
	{name: "crm", destination: true, keywords: []string{"=crm", "hubspot", "salesforce", "pipedrive"}},
	{name: "api", keywords: []string{"=api", "=apis", "=rest", "endpoint", "=http", "=https"}},
	{name: "openai", keywords: []string{"openai", "=gpt", "chatgpt", "=ai", "=llm"}},
	{name: "stripe", keywords: []string{"stripe"}},
	{name: "shopify", keywords: []string{"shopify"}},
	{name: "github", keywords: []string{"github"}},
}

var emailServices = []keywordSet{
	{name: "gmail", keywords: []string{"gmail"}},
	{name: "outlook", keywords: []string{"outlook"}},
	{name: "sendgrid", keywords: []string{"sendgrid"}},
	{name: "mailgun", keywords: []string{"mailgun"}},
	{name: "smtp", keywords: []string{"smtp"}},
}

var (
	actionWords       = []string{"send", "create", "update", "delete", "=post", "write", "save", "store", "insert", "notify", "=add", "=adds", "=log", "email me", "alert"}
	dataSourceWords   = []string{"=from", "fetch", "=get", "=gets", "retriev", "=pull", "=pulls", "=read", "=reads", "import"}
	notificationWords = []string{"notif", "alert", "slack", "=teams"}
	syncWords         = []string{"sync", "synchron", "integrat", "=connect"}
)

// categoryRules classify a request into a workflow category; first match wins.
var categoryRules = []keywordSet{
	{name: "email_workflow", keywords: []string{"send email", "send an email", "send emails", "email to", "mail to", "email campaign", "notify via email"}},
	{name: "data_sync", keywords: []string{"sync", "synchron", "=connect", "integrate between", "two way"}},
	{name: "api_integration", keywords: []string{"api call", "rest api", "fetch from api", "post to api", "api integration"}},
	{name: "scheduled_task", keywords: []string{"daily", "hourly", "every hour", "every day", "schedule", "cron"}},
	{name: "data_processing", keywords: []string{"process data", "transform", "filter", "aggregat", "=parse", "extract"}},
	{name: "notification", keywords: []string{"=notify", "alert", "notification", "send message"}},
}

// CategoryGeneric is the fallback workflow category.
const CategoryGeneric = "generic"

// text is a normalized request ready for keyword matching.
type text struct {
	padded string
	tokens []string
}

func normalize(s string) text {
	var b strings.Builder

	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())

	return text{padded: " " + strings.Join(tokens, " ") + " ", tokens: tokens}
}

func (t text) has(keyword string) bool {
	switch {
	case strings.HasPrefix(keyword, "="):
		word := keyword[1:]
		for _, tok := range t.tokens {
			if tok == word {
				return true
			}
		}

		return false
	case strings.Contains(keyword, " "):
		return strings.Contains(t.padded, " "+keyword)
	default:
		for _, tok := range t.tokens {
			if strings.HasPrefix(tok, keyword) {
				return true
			}
		}

		return false
	}
}

func (t text) any(keywords []string) bool {
	for _, k := range keywords {
		if t.has(k) {
			return true
		}
	}

	return false
}

// count returns how many distinct keywords match.
func (t text) count(keywords []string) int {
	n := 0

	for _, k := range keywords {
		if t.has(k) {
			n++
		}
	}

	return n
}

func (t text) first(sets []keywordSet) string {
	for _, s := range sets {
		if t.any(s.keywords) {
			return s.name
		}
	}

	return ""
}
