package conversation

import (
	"slices"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/complexity"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
)

// questionSpec is the template a question is created from. Key is the
// requirement the answer fills; a category whose key is already set is not
// asked.
type questionSpec struct {
	Category    models.QuestionCategory
	Key         string
	Prompt      string
	Options     []string
	MultiSelect bool
	Required    bool
}

var questionCatalog = map[models.QuestionCategory]questionSpec{
	models.CategoryTrigger: {
		Key:    models.ReqTriggerType,
		Prompt: "What should trigger this workflow?",
		Options: []string{
			"Webhook (external system calls it)",
			"Schedule (runs at specific times)",
			"Email (triggered by incoming email)",
			"Manual (I'll trigger it manually)",
			"Form submission",
		},
		Required: true,
	},
	models.CategoryDataSource: {
		Key:    models.ReqDataSource,
		Prompt: "Where should the data come from?",
		Options: []string{
			"PostgreSQL database",
			"MySQL database",
			"MongoDB database",
			"Google Sheets",
			"Airtable",
			"API endpoint",
			"CSV/Excel file",
			"Email inbox",
			"The trigger itself (webhook/form data)",
		},
		Required: true,
	},
	models.CategoryValidation: {
		Key:    models.ReqNeedsValidation,
		Prompt: "Should the workflow validate incoming data?",
		Options: []string{
			"Yes - Validate required fields and format",
			"Yes - Just check required fields",
			"Yes - Custom validation logic",
			"No - Skip validation",
		},
	},
	models.CategoryErrorHandling: {
		Key:    models.ReqNeedsErrorHandling,
		Prompt: "How should errors be handled?",
		Options: []string{
			"Retry automatically (3 times with delays)",
			"Send alert to admin and stop",
			"Log error and continue",
			"Both retry and alert if all retries fail",
			"No special error handling",
		},
	},
	models.CategoryOutput: {
		Key:    models.ReqOutputs,
		Prompt: "Where should results be sent?",
		Options: []string{
			"Email (Gmail, Outlook, etc.)",
			"Slack notification",
			"Microsoft Teams notification",
			"Database",
			"CRM (HubSpot, Salesforce)",
			"Webhook to another system",
			"Google Sheets",
		},
		MultiSelect: true,
		Required:    true,
	},
	models.CategoryAuth: {
		Key:    models.ReqAuthType,
		Prompt: "What authentication method does the API/service use?",
		Options: []string{
			"API key in header",
			"OAuth 2.0",
			"Basic authentication (username/password)",
			"Bearer token",
			"No authentication required",
		},
		Required: true,
	},
	models.CategoryRouting: {
		Key:    models.ReqRoutingRules,
		Prompt: "How should records be routed? (e.g. 'High priority to sales, everything else to nurture')",
		Options: []string{
			"By priority or score",
			"By record type or category",
			"By source system",
			"No routing needed",
		},
	},
	models.CategoryEmailService: {
		Key:    models.ReqEmailService,
		Prompt: "Which email service do you want to use?",
		Options: []string{
			"Gmail",
			"SendGrid",
			"Mailgun",
			"AWS SES",
			"SMTP server (custom)",
			"Outlook/Office 365",
		},
		Required: true,
	},
	models.CategoryFrequency: {
		Key:    models.ReqScheduleCron,
		Prompt: "How often should this workflow run? (an option, a phrase like 'daily at 8:30am' or a cron expression)",
		Options: []string{
			"Every hour",
			"Daily at specific time",
			"Weekly (specific day)",
			"Monthly",
			"Custom cron schedule",
		},
		Required: true,
	},
	models.CategoryTimezone: {
		Key:    models.ReqTimezone,
		Prompt: "What timezone should be used for scheduling?",
		Options: []string{
			"UTC",
			"America/New_York (EST/EDT)",
			"America/Los_Angeles (PST/PDT)",
			"America/Chicago (CST/CDT)",
			"Europe/London",
			"Europe/Paris",
			"Asia/Tokyo",
		},
	},
	models.CategoryAPIDetails: {
		Key:      models.ReqAPIEndpoint,
		Prompt:   "What API endpoint will you be calling? (URL or a description of the API)",
		Required: true,
	},
	models.CategoryTransformations: {
		Key:    models.ReqTransformations,
		Prompt: "What operations need to be performed on the data?",
		Options: []string{
			"Filter rows based on conditions",
			"Map/transform field values",
			"Aggregate data (sum, count, average)",
			"Merge data from multiple sources",
			"Split data into separate records",
			"No transformation needed",
		},
		MultiSelect: true,
		Required:    true,
	},
	models.CategorySyncDirection: {
		Key:    models.ReqSyncDirection,
		Prompt: "What's the sync direction between systems?",
		Options: []string{
			"One-way: System A → System B",
			"One-way: System B → System A",
			"Bi-directional (two-way sync)",
			"Multiple sources → One destination",
		},
		Required: true,
	},
	models.CategoryMatching: {
		Key:    models.ReqMatchingStrategy,
		Prompt: "How should records be matched between systems?",
		Options: []string{
			"By ID field",
			"By email address",
			"By multiple fields",
			"Custom matching logic",
			"Always create new records",
		},
		Required: true,
	},
	models.CategoryConflicts: {
		Key:    models.ReqConflictResolution,
		Prompt: "How should conflicts be resolved?",
		Options: []string{
			"Source system wins",
			"Destination system wins",
			"Most recently updated wins",
			"Manual review required",
			"Skip conflicting records",
		},
		Required: true,
	},
	models.CategoryNotification: {
		Key:    models.ReqNotification,
		Prompt: "Should you be notified about workflow execution?",
		Options: []string{
			"On success",
			"On failure only",
			"Always (success and failure)",
			"Never",
		},
	},
	models.CategoryDatabase: {
		Key:    models.ReqDatabase,
		Prompt: "Do you want to store data in a database?",
		Options: []string{
			"Yes - PostgreSQL",
			"Yes - MySQL",
			"Yes - MongoDB",
			"No - Not needed",
		},
	},
}

// corePriority is the order gaps are asked in.
var corePriority = []models.QuestionCategory{
	models.CategoryTrigger,
	models.CategoryDataSource,
	models.CategoryValidation,
	models.CategoryErrorHandling,
	models.CategoryOutput,
	models.CategoryAuth,
	models.CategoryRouting,
}

// categoryExtras are asked after the core gaps on the full route, keyed by
// workflow category.
var categoryExtras = map[string][]models.QuestionCategory{
	"email_workflow":  {models.CategoryEmailService},
	"scheduled_task":  {models.CategoryFrequency, models.CategoryTimezone, models.CategoryNotification},
	"api_integration": {models.CategoryAPIDetails},
	"data_sync":       {models.CategorySyncDirection, models.CategoryMatching, models.CategoryConflicts},
	"data_processing": {models.CategoryTransformations},
	"notification":    {models.CategoryNotification},
}

// Question limits per route, follow-ups included.
const (
	TargetedLimit = 3
	FullLimit     = 15
)

func questionLimit(route models.Route) int {
	switch route {
	case models.RouteFull:
		return FullLimit
	case models.RouteTargeted:
		return TargetedLimit
	default:
		return 0
	}
}

func specFor(category models.QuestionCategory) questionSpec {
	spec := questionCatalog[category]
	spec.Category = category

	return spec
}

// coreGap reports whether a core category still needs asking for s.
func coreGap(s *models.Session, category models.QuestionCategory) bool {
	reqs := s.Requirements
	if reqs.Has(specFor(category).Key) {
		return false
	}

	signals := s.Analysis.Signals

	switch category {
	case models.CategoryDataSource:
		return s.Analysis.Route == models.RouteFull || signals.HasDataSource
	case models.CategoryAuth:
		return reqs.String(models.ReqTriggerType) == "webhook" || signals.MentionsAPI
	case models.CategoryRouting:
		return signals.MentionsBranching || slices.Contains(s.Analysis.Implied, complexity.DimBranching)
	default:
		return true
	}
}

// initialCategories lists the categories of the first batch in ask order.
func initialCategories(s *models.Session) []models.QuestionCategory {
	if s.Analysis.Route == models.RouteDirect {
		return nil
	}

	var out []models.QuestionCategory

	for _, c := range corePriority {
		if coreGap(s, c) {
			out = append(out, c)
		}
	}

	if s.Analysis.Route != models.RouteFull {
		return out
	}

	extras := slices.Clone(categoryExtras[s.Analysis.Category])
	if s.Analysis.Signals.MentionsDatabase {
		extras = append(extras, models.CategoryDatabase)
	}

	for _, c := range extras {
		if !slices.Contains(out, c) && !s.Requirements.Has(specFor(c).Key) {
			out = append(out, c)
		}
	}

	return out
}
