// Package payload decodes inbound write requests for agents and pathways.
//
// Decoding records which writable fields the caller actually sent (a
// models.FieldSet) alongside the typed values, and collects field-level
// validation messages instead of failing on the first problem.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/agentoven/voicebridge/pkg/models"
)

// Mode selects how strictly required fields are enforced.
type Mode int

const (
	// Create requires every required field.
	Create Mode = iota
	// Replace is a full update (PUT); required fields must be present.
	Replace
	// Patch is a partial update; only supplied fields are checked.
	Patch
)

// NonFieldErrors is the key used for problems not tied to a single field.
const NonFieldErrors = "non_field_errors"

// ValidationError carries field-level messages for a rejected request.
type ValidationError struct {
	Fields map[string][]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], "; "))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) has(field string) bool {
	_, ok := e.Fields[field]
	return ok
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// decoder walks the top-level members of a JSON object.
type decoder struct {
	raw    map[string]json.RawMessage
	fields models.FieldSet
	errs   *ValidationError
}

func newDecoder(body []byte, writable []string) (*decoder, error) {
	d := &decoder{fields: models.NewFieldSet(), errs: &ValidationError{}}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		d.errs.add(NonFieldErrors, "Request body must be a JSON object.")
		return nil, d.errs
	}
	if err := json.Unmarshal(trimmed, &d.raw); err != nil {
		d.errs.add(NonFieldErrors, fmt.Sprintf("Malformed JSON: %v", err))
		return nil, d.errs
	}
	for _, name := range writable {
		if _, ok := d.raw[name]; ok {
			d.fields.Add(name)
		}
	}
	return d, nil
}

func (d *decoder) present(field string) bool {
	return d.fields.Has(field)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// require flags a missing required field for Create and Replace.
func (d *decoder) require(mode Mode, field string) {
	if mode != Patch && !d.present(field) {
		d.errs.add(field, "This field is required.")
	}
}

// str decodes a string field. Null is accepted as "" when nullable.
func (d *decoder) str(field string, nullable bool) *string {
	raw, ok := d.raw[field]
	if !ok {
		return nil
	}
	if isNull(raw) {
		if !nullable {
			d.errs.add(field, "This field may not be null.")
			return nil
		}
		empty := ""
		return &empty
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		d.errs.add(field, "Not a valid string.")
		return nil
	}
	return &s
}

// integer decodes an integer field; floats with a fractional part are rejected.
func (d *decoder) integer(field string) *int {
	raw, ok := d.raw[field]
	if !ok {
		return nil
	}
	if isNull(raw) {
		d.errs.add(field, "This field may not be null.")
		return nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n
	}
	// Accept numeric strings the way form-style clients send them.
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return &v
		}
	}
	d.errs.add(field, "A valid integer is required.")
	return nil
}

// rawJSON returns a free-form JSON member. Null becomes nil.
func (d *decoder) rawJSON(field string) (json.RawMessage, bool) {
	raw, ok := d.raw[field]
	if !ok {
		return nil, false
	}
	if isNull(raw) {
		return nil, true
	}
	return append(json.RawMessage(nil), bytes.TrimSpace(raw)...), true
}

// object reports whether raw is a JSON object (or null when allowed).
func object(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '{'
}

func checkLen(errs *ValidationError, field string, v *string, max int) {
	if v != nil && len([]rune(*v)) > max {
		errs.add(field, fmt.Sprintf("Ensure this field has no more than %d characters.", max))
	}
}
