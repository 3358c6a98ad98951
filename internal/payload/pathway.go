package payload

import (
	"encoding/json"
	"strings"

	"github.com/agentoven/voicebridge/pkg/models"
)

// PathwayFields lists every writable pathway field.
var PathwayFields = []string{"name", "description", "nodes", "edges"}

// PathwayInput is a decoded pathway write. Nil means "not supplied".
type PathwayInput struct {
	Fields models.FieldSet

	Name        *string
	Description *string
	Nodes       map[string]models.Node
	Edges       map[string]models.Edge
}

// DecodePathway parses and validates a pathway write request body.
// Any returned error is a *ValidationError.
func DecodePathway(body []byte, mode Mode) (*PathwayInput, error) {
	d, err := newDecoder(body, PathwayFields)
	if err != nil {
		return nil, err
	}
	in := &PathwayInput{Fields: d.fields}

	d.require(mode, "name")
	in.Name = d.str("name", false)
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		d.errs.add("name", "This field may not be blank.")
	}
	checkLen(d.errs, "name", in.Name, 255)
	in.Description = d.str("description", true)

	in.Nodes = decodeGraphMap[models.Node](d, "nodes", "Each node must be an object with string name, text and type.")
	in.Edges = decodeGraphMap[models.Edge](d, "edges", "Each edge must be an object with string source, target, label and prompt.")

	if err := d.errs.orNil(); err != nil {
		return nil, err
	}
	return in, nil
}

// decodeGraphMap decodes nodes or edges. The member must be a JSON object
// keyed by id; null means empty.
func decodeGraphMap[T any](d *decoder, field, entryMsg string) map[string]T {
	raw, ok := d.raw[field]
	if !ok {
		return nil
	}
	if isNull(raw) {
		return map[string]T{}
	}
	if !object(raw) {
		d.errs.add(field, "Expected a dictionary of items keyed by id.")
		return nil
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		d.errs.add(field, "Expected a dictionary of items keyed by id.")
		return nil
	}
	out := make(map[string]T, len(entries))
	for id, entry := range entries {
		var v T
		if !object(entry) || json.Unmarshal(entry, &v) != nil {
			d.errs.add(field, entryMsg)
			return nil
		}
		out[id] = v
	}
	return out
}

// NewPathway builds a fresh pathway from a create input. Absent graph
// maps default to empty maps.
func (in *PathwayInput) NewPathway() *models.Pathway {
	p := &models.Pathway{
		Nodes: map[string]models.Node{},
		Edges: map[string]models.Edge{},
	}
	in.Apply(p)
	return p
}

// Apply copies every supplied field onto p.
func (in *PathwayInput) Apply(p *models.Pathway) {
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Nodes != nil {
		p.Nodes = in.Nodes
	}
	if in.Edges != nil {
		p.Edges = in.Edges
	}
	if p.Nodes == nil {
		p.Nodes = map[string]models.Node{}
	}
	if p.Edges == nil {
		p.Edges = map[string]models.Edge{}
	}
}
