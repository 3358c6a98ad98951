package payload

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/agentoven/voicebridge/pkg/models"
)

// SyncInput is a decoded push request. Exactly one of Fields and All is set.
type SyncInput struct {
	Fields models.FieldSet
	All    bool
}

// DecodeSync parses a push request body of the form {"fields": [...]} or
// {"all": true}. writable is the entity's field list (AgentFields or
// PathwayFields). Any returned error is a *ValidationError.
func DecodeSync(body []byte, writable []string) (*SyncInput, error) {
	d, err := newDecoder(body, []string{"fields", "all"})
	if err != nil {
		return nil, err
	}
	in := &SyncInput{}

	if raw, ok := d.raw["all"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &in.All); err != nil {
			d.errs.add("all", "Must be a valid boolean.")
		}
	}

	raw, ok := d.raw["fields"]
	switch {
	case in.All && ok:
		d.errs.add(NonFieldErrors, "Supply either fields or all, not both.")
	case in.All:
	case !ok || isNull(raw):
		d.errs.add("fields", "This field is required.")
	default:
		var names []string
		if err := json.Unmarshal(raw, &names); err != nil {
			d.errs.add("fields", "Expected a list of field names.")
			break
		}
		if len(names) == 0 {
			d.errs.add("fields", "This list may not be empty.")
		}
		in.Fields = models.NewFieldSet()
		for _, n := range names {
			if !slices.Contains(writable, n) {
				d.errs.add("fields", fmt.Sprintf("Unknown field %q.", n))
				continue
			}
			in.Fields.Add(n)
		}
	}

	if err := d.errs.orNil(); err != nil {
		return nil, err
	}
	return in, nil
}
