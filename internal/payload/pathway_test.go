package payload_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/voicebridge/internal/payload"
	"github.com/agentoven/voicebridge/pkg/models"
)

func TestDecodePathway_DefaultsEmptyMaps(t *testing.T) {
	in, err := payload.DecodePathway([]byte(`{"name":"Flow"}`), payload.Create)
	require.NoError(t, err)

	p := in.NewPathway()
	assert.Equal(t, "Flow", p.Name)
	assert.NotNil(t, p.Nodes)
	assert.NotNil(t, p.Edges)
	assert.Empty(t, p.Nodes)
	assert.Empty(t, p.Edges)
}

func TestDecodePathway_Graph(t *testing.T) {
	body := `{
		"name": "Flow",
		"description": "d",
		"nodes": {"1": {"name": "Start", "text": "Hi", "type": "Default"}},
		"edges": {"e1": {"source": "1", "target": "2", "label": "next", "prompt": "go"}}
	}`
	in, err := payload.DecodePathway([]byte(body), payload.Create)
	require.NoError(t, err)
	assert.Equal(t, []string{"description", "edges", "name", "nodes"}, in.Fields.Names())

	p := in.NewPathway()
	assert.Equal(t, models.Node{Name: "Start", Text: "Hi", Type: "Default"}, p.Nodes["1"])
	assert.Equal(t, models.Edge{Source: "1", Target: "2", Label: "next", Prompt: "go"}, p.Edges["e1"])
}

func TestDecodePathway_RejectsNonMaps(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"nodes list", `{"nodes":[{"name":"x"}]}`, "nodes"},
		{"edges string", `{"edges":"x"}`, "edges"},
		{"node not object", `{"nodes":{"1":"x"}}`, "nodes"},
		{"node bad type", `{"nodes":{"1":{"name":5}}}`, "nodes"},
		{"edge bad type", `{"edges":{"e":{"source":[]}}}`, "edges"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := payload.DecodePathway([]byte(tt.body), payload.Patch)
			assert.Contains(t, fieldErrors(t, err), tt.field)
		})
	}
}

func TestDecodePathway_NullGraphClears(t *testing.T) {
	in, err := payload.DecodePathway([]byte(`{"nodes":null}`), payload.Patch)
	require.NoError(t, err)

	p := &models.Pathway{Nodes: map[string]models.Node{"1": {Name: "x"}}}
	in.Apply(p)
	assert.Empty(t, p.Nodes)
	assert.NotNil(t, p.Edges)
}

func TestDecodePathway_RequiredName(t *testing.T) {
	_, err := payload.DecodePathway([]byte(`{"description":"x"}`), payload.Create)
	assert.Contains(t, fieldErrors(t, err), "name")
}
