package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentoven/voicebridge/internal/payload"
	"github.com/agentoven/voicebridge/pkg/models"
)

func (h *Handlers) ListPathways(w http.ResponseWriter, r *http.Request) {
	pathways, err := h.Store.ListPathways(r.Context())
	if err != nil {
		respondError(w, err, nil)
		return
	}
	if pathways == nil {
		pathways = []models.Pathway{}
	}
	respondJSON(w, http.StatusOK, pathways)
}

func (h *Handlers) GetPathway(w http.ResponseWriter, r *http.Request) {
	pathway, err := h.Store.GetPathway(r.Context(), chi.URLParam(r, "pathwayID"))
	if err != nil {
		respondError(w, err, nil)
		return
	}
	setETag(w, pathway.Version)
	respondJSON(w, http.StatusOK, pathway)
}

func (h *Handlers) CreatePathway(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	in, err := payload.DecodePathway(body, payload.Create)
	if err != nil {
		respondError(w, err, nil)
		return
	}

	pathway, err := h.Sync.CreatePathway(r.Context(), in)
	if err != nil {
		respondError(w, err, nil)
		return
	}
	setETag(w, pathway.Version)
	respondJSON(w, http.StatusCreated, pathway)
}

func (h *Handlers) ReplacePathway(w http.ResponseWriter, r *http.Request) {
	h.updatePathway(w, r, payload.Replace)
}

func (h *Handlers) PatchPathway(w http.ResponseWriter, r *http.Request) {
	h.updatePathway(w, r, payload.Patch)
}

func (h *Handlers) updatePathway(w http.ResponseWriter, r *http.Request, mode payload.Mode) {
	version, ok := expectedVersion(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	in, err := payload.DecodePathway(body, mode)
	if err != nil {
		respondError(w, err, nil)
		return
	}

	pathway, err := h.Sync.UpdatePathway(r.Context(), chi.URLParam(r, "pathwayID"), in, version)
	if err != nil {
		if pathway != nil {
			respondError(w, err, pathway)
		} else {
			respondError(w, err, nil)
		}
		return
	}
	setETag(w, pathway.Version)
	respondJSON(w, http.StatusOK, pathway)
}

func (h *Handlers) DeletePathway(w http.ResponseWriter, r *http.Request) {
	version, ok := expectedVersion(w, r)
	if !ok {
		return
	}
	if err := h.Sync.DeletePathway(r.Context(), chi.URLParam(r, "pathwayID"), version); err != nil {
		respondError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) SyncPathway(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "pathwayID")
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	in, err := payload.DecodeSync(body, payload.PathwayFields)
	if err != nil {
		respondError(w, err, nil)
		return
	}
	var fields models.FieldSet
	if !in.All {
		fields = in.Fields
	}
	out, err := h.Sync.PushPathway(r.Context(), id, fields)
	if err != nil {
		respondError(w, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "remote": out})
}

// GetRemotePathway returns the remote platform's view of a pathway.
func (h *Handlers) GetRemotePathway(w http.ResponseWriter, r *http.Request) {
	out, err := h.Sync.FetchRemotePathway(r.Context(), chi.URLParam(r, "pathwayID"))
	if err != nil {
		respondError(w, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, out)
}
