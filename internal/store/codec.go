package store

import (
	"encoding/json"
	"fmt"

	"github.com/agentoven/voicebridge/pkg/models"
)

// agentJSON holds the JSON-encoded columns of an agent row.
type agentJSON struct {
	keywords       string
	tools          string
	dynamicData    *string
	analysisSchema *string
	metadata       *string
}

func encodeAgent(a *models.Agent) (agentJSON, error) {
	var out agentJSON
	keywords := a.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	kb, err := json.Marshal(keywords)
	if err != nil {
		return out, fmt.Errorf("encode keywords: %w", err)
	}
	tools := a.Tools
	if tools == nil {
		tools = []map[string]any{}
	}
	tb, err := json.Marshal(tools)
	if err != nil {
		return out, fmt.Errorf("encode tools: %w", err)
	}
	out.keywords = string(kb)
	out.tools = string(tb)
	out.dynamicData = rawPtr(a.DynamicData)
	out.analysisSchema = rawPtr(a.AnalysisSchema)
	out.metadata = rawPtr(a.Metadata)
	return out, nil
}

func decodeAgentJSON(a *models.Agent, keywords, tools, dynamicData, analysisSchema, metadata []byte) error {
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &a.Keywords); err != nil {
			return fmt.Errorf("decode keywords: %w", err)
		}
	}
	if a.Keywords == nil {
		a.Keywords = []string{}
	}
	if len(tools) > 0 {
		if err := json.Unmarshal(tools, &a.Tools); err != nil {
			return fmt.Errorf("decode tools: %w", err)
		}
	}
	if a.Tools == nil {
		a.Tools = []map[string]any{}
	}
	a.DynamicData = rawOrNil(dynamicData)
	a.AnalysisSchema = rawOrNil(analysisSchema)
	a.Metadata = rawOrNil(metadata)
	return nil
}

func encodeGraph(p *models.Pathway) (nodes, edges string, err error) {
	n := p.Nodes
	if n == nil {
		n = map[string]models.Node{}
	}
	e := p.Edges
	if e == nil {
		e = map[string]models.Edge{}
	}
	nb, err := json.Marshal(n)
	if err != nil {
		return "", "", fmt.Errorf("encode nodes: %w", err)
	}
	eb, err := json.Marshal(e)
	if err != nil {
		return "", "", fmt.Errorf("encode edges: %w", err)
	}
	return string(nb), string(eb), nil
}

func decodeGraph(p *models.Pathway, nodes, edges []byte) error {
	p.Nodes = map[string]models.Node{}
	p.Edges = map[string]models.Edge{}
	if len(nodes) > 0 {
		if err := json.Unmarshal(nodes, &p.Nodes); err != nil {
			return fmt.Errorf("decode nodes: %w", err)
		}
	}
	if len(edges) > 0 {
		if err := json.Unmarshal(edges, &p.Edges); err != nil {
			return fmt.Errorf("decode edges: %w", err)
		}
	}
	// A stored JSON null decodes to a nil map.
	if p.Nodes == nil {
		p.Nodes = map[string]models.Node{}
	}
	if p.Edges == nil {
		p.Edges = map[string]models.Edge{}
	}
	return nil
}

func rawPtr(r json.RawMessage) *string {
	if len(r) == 0 {
		return nil
	}
	s := string(r)
	return &s
}

func rawOrNil(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return append(json.RawMessage(nil), b...)
}
