package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Requirement keys understood by the generation pipeline.
const (
	ReqTriggerType        = "trigger_type"
	ReqDataSource         = "data_source"
	ReqNeedsValidation    = "needs_validation"
	ReqValidationType     = "validation_type"
	ReqNeedsDedup         = "needs_dedup"
	ReqDedupTarget        = "dedup_target"
	ReqNeedsErrorHandling = "needs_error_handling"
	ReqNeedsRetry         = "needs_retry_logic"
	ReqNeedsErrorAlerts   = "needs_error_alerts"
	ReqNeedsErrorLogging  = "needs_error_logging"
	ReqMaxRetries         = "max_retries"
	ReqOutputs            = "outputs"
	ReqIntegrations       = "integrations"
	ReqRoutingRules       = "routing_rules"
	ReqNeedsBranching     = "needs_branching"
	ReqAuthType           = "auth_type"
	ReqScheduleCron       = "schedule_cron"
	ReqFrequency          = "frequency"
	ReqTimezone           = "timezone"
	ReqEmailService       = "email_service"
	ReqAPIEndpoint        = "api_endpoint"
	ReqTransformations    = "transformations"
	ReqWorkflowCategory   = "workflow_category"
	ReqSyncDirection      = "sync_direction"
	ReqMatchingStrategy   = "matching_strategy"
	ReqConflictResolution = "conflict_resolution"
	ReqNotification       = "notification_preference"
	ReqDatabase           = "database"
)

// AnswerKey is the key under which the raw answer to a category is kept.
func AnswerKey(category QuestionCategory) string {
	return "answer." + string(category)
}

// RequirementSet is an accumulated key/value record of what a workflow must do.
// Values are string, bool, int or an ordered string set. A frozen set rejects
// further writes.
type RequirementSet struct {
	values map[string]any
	frozen bool
}

func NewRequirementSet() *RequirementSet {
	return &RequirementSet{values: map[string]any{}}
}

func (r *RequirementSet) ensure() {
	if r.values == nil {
		r.values = map[string]any{}
	}
}

func (r *RequirementSet) mustBeMutable(key string) {
	if r.frozen {
		panic(fmt.Sprintf("requirement set is frozen: cannot write %q", key))
	}
}

func (r *RequirementSet) SetString(key, value string) {
	r.mustBeMutable(key)
	r.ensure()
	r.values[key] = value
}

func (r *RequirementSet) SetBool(key string, value bool) {
	r.mustBeMutable(key)
	r.ensure()
	r.values[key] = value
}

func (r *RequirementSet) SetInt(key string, value int) {
	r.mustBeMutable(key)
	r.ensure()
	r.values[key] = value
}

// SetList replaces the ordered set stored at key. Duplicates are dropped keeping
// the first occurrence.
func (r *RequirementSet) SetList(key string, values []string) {
	r.mustBeMutable(key)
	r.ensure()

	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}

	r.values[key] = out
}

// Add appends values to the ordered set stored at key.
func (r *RequirementSet) Add(key string, values ...string) {
	r.SetList(key, append(r.List(key), values...))
}

// Remove drops values from the ordered set stored at key.
func (r *RequirementSet) Remove(key string, values ...string) {
	if !r.Has(key) {
		return
	}

	r.SetList(key, slices.DeleteFunc(r.List(key), func(v string) bool {
		return slices.Contains(values, v)
	}))
}

func (r *RequirementSet) Delete(key string) {
	r.mustBeMutable(key)
	delete(r.values, key)
}

func (r *RequirementSet) Has(key string) bool {
	if r == nil {
		return false
	}

	_, ok := r.values[key]

	return ok
}

func (r *RequirementSet) String(key string) string {
	if r == nil {
		return ""
	}

	switch v := r.values[key].(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	case bool, int:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

func (r *RequirementSet) Bool(key string) bool {
	if r == nil {
		return false
	}

	v, _ := r.values[key].(bool)

	return v
}

func (r *RequirementSet) Int(key string, fallback int) int {
	if r == nil {
		return fallback
	}

	if v, ok := r.values[key].(int); ok {
		return v
	}

	return fallback
}

func (r *RequirementSet) List(key string) []string {
	if r == nil {
		return nil
	}

	switch v := r.values[key].(type) {
	case []string:
		return slices.Clone(v)
	case string:
		if v == "" {
			return nil
		}

		return []string{v}
	default:
		return nil
	}
}

// Keys returns the stored keys in sorted order.
func (r *RequirementSet) Keys() []string {
	if r == nil {
		return nil
	}

	keys := make([]string, 0, len(r.values))
	for k := range r.values {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func (r *RequirementSet) Len() int {
	if r == nil {
		return 0
	}

	return len(r.values)
}

func (r *RequirementSet) Frozen() bool {
	return r != nil && r.frozen
}

// Clone returns a mutable deep copy.
func (r *RequirementSet) Clone() *RequirementSet {
	out := NewRequirementSet()
	if r == nil {
		return out
	}

	for k, v := range r.values {
		if list, ok := v.([]string); ok {
			out.values[k] = slices.Clone(list)

			continue
		}

		out.values[k] = v
	}

	return out
}

// Freeze returns an immutable copy suitable for handing to generation.
func (r *RequirementSet) Freeze() *RequirementSet {
	out := r.Clone()
	out.frozen = true

	return out
}

// Map returns a copy of the values, for projections and serialization.
func (r *RequirementSet) Map() map[string]any {
	return r.Clone().values
}

// Query serializes the set into the text used for similarity search. Raw
// answers are left out; keys are emitted in sorted order so equal sets produce
// equal queries.
func (r *RequirementSet) Query() string {
	var parts []string

	for _, k := range r.Keys() {
		if strings.HasPrefix(k, "answer.") {
			continue
		}

		switch v := r.values[k].(type) {
		case bool:
			if v {
				parts = append(parts, strings.ReplaceAll(strings.TrimPrefix(k, "needs_"), "_", " "))
			}
		default:
			if s := r.String(k); s != "" {
				parts = append(parts, strings.ReplaceAll(k, "_", " ")+": "+s)
			}
		}
	}

	return strings.Join(parts, "; ")
}

func (r *RequirementSet) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("{}"), nil
	}

	return json.Marshal(r.values)
}

func (r *RequirementSet) UnmarshalJSON(data []byte) error {
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.values = make(map[string]any, len(raw))

	for k, v := range raw {
		switch typed := v.(type) {
		case []any:
			list := make([]string, 0, len(typed))
			for _, item := range typed {
				list = append(list, fmt.Sprint(item))
			}

			r.values[k] = list
		case float64:
			r.values[k] = int(typed)
		default:
			r.values[k] = typed
		}
	}

	return nil
}
