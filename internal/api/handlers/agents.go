package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentoven/voicebridge/internal/payload"
	"github.com/agentoven/voicebridge/pkg/models"
)

func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.Store.ListAgents(r.Context())
	if err != nil {
		respondError(w, err, nil)
		return
	}
	if agents == nil {
		agents = []models.Agent{}
	}
	respondJSON(w, http.StatusOK, agents)
}

func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := h.Store.GetAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		respondError(w, err, nil)
		return
	}
	setETag(w, agent.Version)
	respondJSON(w, http.StatusOK, agent)
}

func (h *Handlers) CreateAgent(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	in, err := payload.DecodeAgent(body, payload.Create)
	if err != nil {
		respondError(w, err, nil)
		return
	}

	agent, err := h.Sync.CreateAgent(r.Context(), in)
	if err != nil {
		respondError(w, err, nil)
		return
	}
	setETag(w, agent.Version)
	respondJSON(w, http.StatusCreated, agent)
}

// ReplaceAgent handles PUT: every required field must be present.
func (h *Handlers) ReplaceAgent(w http.ResponseWriter, r *http.Request) {
	h.updateAgent(w, r, payload.Replace)
}

// PatchAgent handles PATCH: only the supplied fields change.
func (h *Handlers) PatchAgent(w http.ResponseWriter, r *http.Request) {
	h.updateAgent(w, r, payload.Patch)
}

func (h *Handlers) updateAgent(w http.ResponseWriter, r *http.Request, mode payload.Mode) {
	version, ok := expectedVersion(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	in, err := payload.DecodeAgent(body, mode)
	if err != nil {
		respondError(w, err, nil)
		return
	}

	agent, err := h.Sync.UpdateAgent(r.Context(), chi.URLParam(r, "agentID"), in, version)
	if err != nil {
		if agent != nil {
			respondError(w, err, agent)
		} else {
			respondError(w, err, nil)
		}
		return
	}
	setETag(w, agent.Version)
	respondJSON(w, http.StatusOK, agent)
}

func (h *Handlers) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	version, ok := expectedVersion(w, r)
	if !ok {
		return
	}
	if err := h.Sync.DeleteAgent(r.Context(), chi.URLParam(r, "agentID"), version); err != nil {
		respondError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SyncAgent re-pushes a bound agent to the remote platform. The body names
// the fields to send ({"fields": [...]}) or asks for all of them
// ({"all": true}).
func (h *Handlers) SyncAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "agentID")
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	in, err := payload.DecodeSync(body, payload.AgentFields)
	if err != nil {
		respondError(w, err, nil)
		return
	}
	var fields models.FieldSet
	if !in.All {
		fields = in.Fields
	}
	out, err := h.Sync.PushAgent(r.Context(), id, fields)
	if err != nil {
		respondError(w, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "remote": out})
}
