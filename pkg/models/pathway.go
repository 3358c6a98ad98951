package models

import "time"

// Node is a single step in a conversational pathway.
type Node struct {
	Name string `json:"name"`
	Text string `json:"text"`
	Type string `json:"type"`
}

// Edge connects two pathway nodes.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
}

// Pathway is a conversational flow graph mirrored to the remote platform.
// Nodes and Edges are keyed by their ids and are never nil once stored.
type Pathway struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Nodes       map[string]Node `json:"nodes"`
	Edges       map[string]Edge `json:"edges"`
	RemoteID    *string         `json:"remote_id"`
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Bound reports whether the pathway has a remote binding.
func (p *Pathway) Bound() bool {
	return p.RemoteID != nil && *p.RemoteID != ""
}

// Clone returns a deep copy safe to hand out of a store.
func (p *Pathway) Clone() *Pathway {
	if p == nil {
		return nil
	}
	cp := *p
	if p.RemoteID != nil {
		id := *p.RemoteID
		cp.RemoteID = &id
	}
	cp.Nodes = make(map[string]Node, len(p.Nodes))
	for k, v := range p.Nodes {
		cp.Nodes[k] = v
	}
	cp.Edges = make(map[string]Edge, len(p.Edges))
	for k, v := range p.Edges {
		cp.Edges[k] = v
	}
	return &cp
}

// RemoteFields returns the pathway's remote representation keyed by field name.
func (p *Pathway) RemoteFields() map[string]any {
	nodes := p.Nodes
	if nodes == nil {
		nodes = map[string]Node{}
	}
	edges := p.Edges
	if edges == nil {
		edges = map[string]Edge{}
	}
	return map[string]any{
		"name":        p.Name,
		"description": p.Description,
		"nodes":       nodes,
		"edges":       edges,
	}
}
