package models

import (
	"encoding/json"
	"time"
)

// Agent defaults applied on create when the caller omits a field.
const (
	DefaultVoice                 = "default_voice"
	DefaultLanguage              = "ENG"
	DefaultModel                 = "enhanced"
	DefaultInterruptionThreshold = 100
	DefaultMaxDuration           = 30
)

// AgentModels lists the model tags the remote platform accepts.
var AgentModels = []string{"base", "turbo", "enhanced"}

// Agent is a conversational voice agent mirrored to the remote platform.
//
// Script is always the sanitized rendering of Prompt; it is recomputed on
// every write and never edited directly. RemoteID stays nil until the
// remote create has succeeded.
type Agent struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Prompt   string  `json:"prompt"`
	Script   string  `json:"script"`
	Voice    string  `json:"voice"`
	Language string  `json:"language"`
	Model    string  `json:"model"`
	RemoteID *string `json:"remote_id"`

	// Behavioral tuning
	FirstSentence         string           `json:"first_sentence"`
	InterruptionThreshold int              `json:"interruption_threshold"`
	MaxDuration           int              `json:"max_duration"`
	Keywords              []string         `json:"keywords"`
	Tools                 []map[string]any `json:"tools"`
	DynamicData           json.RawMessage  `json:"dynamic_data,omitempty"`

	AnalysisSchema json.RawMessage `json:"analysis_schema,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	PathwayID      string          `json:"pathway_id"`
	Webhook        string          `json:"webhook"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Bound reports whether the agent has a remote binding.
func (a *Agent) Bound() bool {
	return a.RemoteID != nil && *a.RemoteID != ""
}

// Clone returns a deep copy safe to hand out of a store.
func (a *Agent) Clone() *Agent {
	if a == nil {
		return nil
	}
	cp := *a
	if a.RemoteID != nil {
		id := *a.RemoteID
		cp.RemoteID = &id
	}
	if a.Keywords != nil {
		cp.Keywords = append([]string(nil), a.Keywords...)
	}
	if a.Tools != nil {
		cp.Tools = make([]map[string]any, len(a.Tools))
		for i, t := range a.Tools {
			m := make(map[string]any, len(t))
			for k, v := range t {
				m[k] = v
			}
			cp.Tools[i] = m
		}
	}
	cp.DynamicData = cloneRaw(a.DynamicData)
	cp.AnalysisSchema = cloneRaw(a.AnalysisSchema)
	cp.Metadata = cloneRaw(a.Metadata)
	return &cp
}

// RemoteFields returns the agent's remote representation keyed by field name.
// The remote prompt carries the sanitized script rather than the raw HTML.
func (a *Agent) RemoteFields() map[string]any {
	m := map[string]any{
		"name":                   a.Name,
		"prompt":                 a.Script,
		"voice":                  a.Voice,
		"language":               a.Language,
		"model":                  a.Model,
		"first_sentence":         a.FirstSentence,
		"interruption_threshold": a.InterruptionThreshold,
		"max_duration":           a.MaxDuration,
		"keywords":               a.Keywords,
		"tools":                  a.Tools,
		"pathway_id":             a.PathwayID,
		"webhook":                a.Webhook,
	}
	if a.Keywords == nil {
		m["keywords"] = []string{}
	}
	if a.Tools == nil {
		m["tools"] = []map[string]any{}
	}
	if len(a.DynamicData) > 0 {
		m["dynamic_data"] = a.DynamicData
	}
	if len(a.AnalysisSchema) > 0 {
		m["analysis_schema"] = a.AnalysisSchema
	}
	if len(a.Metadata) > 0 {
		m["metadata"] = a.Metadata
	}
	return m
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	return append(json.RawMessage(nil), r...)
}
