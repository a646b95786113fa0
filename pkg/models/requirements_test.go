package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequirementSet_TypedAccessors(t *testing.T) {
	reqs := NewRequirementSet()
	reqs.SetString(ReqTriggerType, "webhook")
	reqs.SetBool(ReqNeedsValidation, true)
	reqs.SetInt(ReqMaxRetries, 5)
	reqs.SetList(ReqOutputs, []string{"slack", "", "email", "slack"})

	assert.Equal(t, "webhook", reqs.String(ReqTriggerType))
	assert.True(t, reqs.Bool(ReqNeedsValidation))
	assert.Equal(t, 5, reqs.Int(ReqMaxRetries, 3))
	assert.Equal(t, 3, reqs.Int("missing", 3))
	assert.Equal(t, []string{"slack", "email"}, reqs.List(ReqOutputs), "blank and repeated values are dropped")
	assert.Equal(t, "slack, email", reqs.String(ReqOutputs))
	assert.Equal(t, "5", reqs.String(ReqMaxRetries))
	assert.Equal(t, []string{"webhook"}, reqs.List(ReqTriggerType))

	reqs.Add(ReqOutputs, "email", "crm")
	assert.Equal(t, []string{"slack", "email", "crm"}, reqs.List(ReqOutputs))

	reqs.Remove(ReqOutputs, "slack", "sms")
	assert.Equal(t, []string{"email", "crm"}, reqs.List(ReqOutputs))

	reqs.Remove(ReqIntegrations, "api")
	assert.False(t, reqs.Has(ReqIntegrations))

	reqs.Delete(ReqTriggerType)
	assert.False(t, reqs.Has(ReqTriggerType))
	assert.Equal(t, []string{ReqMaxRetries, ReqNeedsValidation, ReqOutputs}, reqs.Keys())
}

func TestRequirementSet_NilIsEmpty(t *testing.T) {
	var reqs *RequirementSet

	assert.False(t, reqs.Has(ReqOutputs))
	assert.Empty(t, reqs.String(ReqOutputs))
	assert.Nil(t, reqs.List(ReqOutputs))
	assert.Zero(t, reqs.Len())
	assert.False(t, reqs.Frozen())
	assert.Empty(t, reqs.Clone().Keys())

	data, err := json.Marshal(reqs)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestRequirementSet_FreezeIsolates(t *testing.T) {
	reqs := NewRequirementSet()
	reqs.SetList(ReqOutputs, []string{"slack"})

	frozen := reqs.Freeze()
	reqs.Add(ReqOutputs, "email")

	assert.True(t, frozen.Frozen())
	assert.False(t, reqs.Frozen())
	assert.Equal(t, []string{"slack"}, frozen.List(ReqOutputs))

	assert.Panics(t, func() { frozen.SetBool(ReqNeedsRetry, true) })
	assert.False(t, frozen.Clone().Frozen(), "clones are writable")
}

func TestRequirementSet_QueryIsStable(t *testing.T) {
	a := NewRequirementSet()
	a.SetBool(ReqNeedsRetry, true)
	a.SetBool(ReqNeedsDedup, false)
	a.SetString(ReqTriggerType, "schedule")
	a.SetString(AnswerKey(CategoryTrigger), "Every morning")

	b := NewRequirementSet()
	b.SetString(ReqTriggerType, "schedule")
	b.SetBool(ReqNeedsRetry, true)

	assert.Equal(t, "retry logic; trigger type: schedule", a.Query())
	assert.Equal(t, a.Query(), b.Query())
}

func TestRequirementSet_JSON(t *testing.T) {
	reqs := NewRequirementSet()
	reqs.SetInt(ReqMaxRetries, 3)
	reqs.SetList(ReqIntegrations, []string{"hubspot"})
	reqs.SetBool(ReqNeedsBranching, true)

	data, err := json.Marshal(reqs)
	require.NoError(t, err)

	var decoded RequirementSet
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, 3, decoded.Int(ReqMaxRetries, 0))
	assert.Equal(t, []string{"hubspot"}, decoded.List(ReqIntegrations))
	assert.True(t, decoded.Bool(ReqNeedsBranching))
}
