package n8n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `{"name":"x","nodes":[{"id":"1","name":"Start","type":"n8n-nodes-base.manualTrigger","typeVersion":1,"position":[0,0],"parameters":{}}],"connections":{}}`

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "bare object", input: minimal},
		{name: "fenced json", input: "Here you go:\n```json\n" + minimal + "\n```\nEnjoy."},
		{name: "plain fence", input: "```\n" + minimal + "\n```"},
		{name: "embedded", input: "The workflow is " + minimal + " as requested."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ExtractJSON(tt.input)
			require.NoError(t, err)
			assert.JSONEq(t, minimal, got)
		})
	}
}

func TestExtractJSON_NoObject(t *testing.T) {
	_, err := ExtractJSON("I could not build that workflow.")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestDecode_UnwrapsEnvelope(t *testing.T) {
	wf, err := Decode(`{"workflow":` + minimal + `}`)
	require.NoError(t, err)
	assert.Equal(t, "x", wf.Name)
	assert.Len(t, wf.Nodes, 1)
}

func TestDecode_RejectsEmptyWorkflow(t *testing.T) {
	_, err := Decode(`{"name":"empty","nodes":[],"connections":{}}`)
	assert.ErrorIs(t, err, ErrNoNodes)
}

func TestDecodeDraft(t *testing.T) {
	d, err := DecodeDraft(minimal)
	require.NoError(t, err)
	require.Len(t, d.Nodes, 1)
	assert.Equal(t, "n8n-nodes-base.manualTrigger", d.Nodes[0].Kind)
	require.NotNil(t, d.Nodes[0].Position)
}
