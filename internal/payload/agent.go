package payload

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/agentoven/voicebridge/pkg/models"
)

// AgentFields lists every writable agent field.
var AgentFields = []string{
	"name", "prompt", "voice", "language", "model", "first_sentence",
	"interruption_threshold", "max_duration", "keywords", "tools",
	"dynamic_data", "analysis_schema", "metadata", "pathway_id", "webhook",
}

// AgentInput is a decoded agent write. Nil pointers mean "not supplied".
type AgentInput struct {
	Fields models.FieldSet

	Name                  *string
	Prompt                *string
	Voice                 *string
	Language              *string
	Model                 *string
	FirstSentence         *string
	PathwayID             *string
	Webhook               *string
	InterruptionThreshold *int
	MaxDuration           *int
	Keywords              *[]string
	Tools                 *[]map[string]any
	DynamicData           json.RawMessage
	AnalysisSchema        json.RawMessage
	Metadata              json.RawMessage
}

// DecodeAgent parses and validates an agent write request body.
// Any returned error is a *ValidationError.
func DecodeAgent(body []byte, mode Mode) (*AgentInput, error) {
	d, err := newDecoder(body, AgentFields)
	if err != nil {
		return nil, err
	}
	in := &AgentInput{Fields: d.fields}

	d.require(mode, "name")
	d.require(mode, "prompt")

	in.Name = d.str("name", false)
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		d.errs.add("name", "This field may not be blank.")
	}
	checkLen(d.errs, "name", in.Name, 255)

	in.Prompt = d.str("prompt", false)
	if in.Prompt != nil && strings.TrimSpace(*in.Prompt) == "" {
		d.errs.add("prompt", "Prompt cannot be empty or blank.")
	}

	in.Voice = d.str("voice", false)
	checkLen(d.errs, "voice", in.Voice, 100)
	in.Language = d.str("language", false)
	checkLen(d.errs, "language", in.Language, 10)

	in.Model = d.str("model", false)
	if in.Model != nil && *in.Model != "" && !validModel(*in.Model) {
		d.errs.add("model", fmt.Sprintf("Model must be one of %v.", models.AgentModels))
	}

	in.FirstSentence = d.str("first_sentence", true)
	in.PathwayID = d.str("pathway_id", true)
	checkLen(d.errs, "pathway_id", in.PathwayID, 255)

	in.Webhook = d.str("webhook", true)
	if in.Webhook != nil && *in.Webhook != "" && !validURL(*in.Webhook) {
		d.errs.add("webhook", "Enter a valid URL.")
	}

	in.InterruptionThreshold = d.integer("interruption_threshold")
	in.MaxDuration = d.integer("max_duration")
	if in.MaxDuration != nil && *in.MaxDuration <= 0 {
		d.errs.add("max_duration", "Max duration must be a positive integer.")
	}

	in.Keywords = decodeKeywords(d)
	in.Tools = decodeTools(d)

	in.DynamicData, _ = d.rawJSON("dynamic_data")
	in.AnalysisSchema, _ = d.rawJSON("analysis_schema")
	in.Metadata, _ = d.rawJSON("metadata")

	if err := d.errs.orNil(); err != nil {
		return nil, err
	}
	return in, nil
}

func decodeKeywords(d *decoder) *[]string {
	raw, ok := d.raw["keywords"]
	if !ok {
		return nil
	}
	if isNull(raw) {
		empty := []string{}
		return &empty
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		// An empty object is what older clients send for "no keywords".
		var m map[string]any
		if object(raw) && json.Unmarshal(raw, &m) == nil && len(m) == 0 {
			empty := []string{}
			return &empty
		}
		d.errs.add("keywords", "Keywords must be a list of strings.")
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil || strings.TrimSpace(s) == "" {
			d.errs.add("keywords", "Each keyword must be a non-empty string.")
			return nil
		}
		out = append(out, s)
	}
	return &out
}

func decodeTools(d *decoder) *[]map[string]any {
	raw, ok := d.raw["tools"]
	if !ok {
		return nil
	}
	if isNull(raw) {
		empty := []map[string]any{}
		return &empty
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		d.errs.add("tools", "Tools must be a list of objects.")
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if !object(item) {
			d.errs.add("tools", "Each tool must be a non-empty object with valid configurations.")
			return nil
		}
		var tool map[string]any
		if err := json.Unmarshal(item, &tool); err != nil || len(tool) == 0 {
			d.errs.add("tools", "Each tool must be a non-empty object with valid configurations.")
			return nil
		}
		out = append(out, tool)
	}
	return &out
}

func validModel(m string) bool {
	for _, allowed := range models.AgentModels {
		if m == allowed {
			return true
		}
	}
	return false
}

func validURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// NewAgent builds a fresh agent from a create input, filling defaults for
// every field the caller left out.
func (in *AgentInput) NewAgent() *models.Agent {
	a := &models.Agent{
		Voice:                 models.DefaultVoice,
		Language:              models.DefaultLanguage,
		Model:                 models.DefaultModel,
		InterruptionThreshold: models.DefaultInterruptionThreshold,
		MaxDuration:           models.DefaultMaxDuration,
		Keywords:              []string{},
		Tools:                 []map[string]any{},
	}
	in.Apply(a)
	return a
}

// Apply copies every supplied field onto a. Blank voice, language and
// model fall back to their defaults rather than clearing the field.
func (in *AgentInput) Apply(a *models.Agent) {
	if in.Name != nil {
		a.Name = *in.Name
	}
	if in.Prompt != nil {
		a.Prompt = *in.Prompt
	}
	if in.Voice != nil {
		a.Voice = orDefault(*in.Voice, models.DefaultVoice)
	}
	if in.Language != nil {
		a.Language = orDefault(*in.Language, models.DefaultLanguage)
	}
	if in.Model != nil {
		a.Model = orDefault(*in.Model, models.DefaultModel)
	}
	if in.FirstSentence != nil {
		a.FirstSentence = *in.FirstSentence
	}
	if in.PathwayID != nil {
		a.PathwayID = *in.PathwayID
	}
	if in.Webhook != nil {
		a.Webhook = *in.Webhook
	}
	if in.InterruptionThreshold != nil {
		a.InterruptionThreshold = *in.InterruptionThreshold
	}
	if in.MaxDuration != nil {
		a.MaxDuration = *in.MaxDuration
	}
	if in.Keywords != nil {
		a.Keywords = *in.Keywords
	}
	if in.Tools != nil {
		a.Tools = *in.Tools
	}
	if in.Fields.Has("dynamic_data") {
		a.DynamicData = in.DynamicData
	}
	if in.Fields.Has("analysis_schema") {
		a.AnalysisSchema = in.AnalysisSchema
	}
	if in.Fields.Has("metadata") {
		a.Metadata = in.Metadata
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
