// Package handlers implements the HTTP handlers for the voicebridge API.
// Reads go straight to the store; writes go through the synchronizer so
// the remote platform stays in step.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/agentoven/voicebridge/internal/mirror"
	"github.com/agentoven/voicebridge/internal/payload"
	"github.com/agentoven/voicebridge/internal/remote"
	"github.com/agentoven/voicebridge/internal/store"
)

// maxBodyBytes bounds a request body.
const maxBodyBytes = 1 << 20

// Handlers holds all handler dependencies.
type Handlers struct {
	Store store.Store
	Sync  *mirror.Synchronizer
}

// New creates a new Handlers instance.
func New(s store.Store, sync *mirror.Synchronizer) *Handlers {
	return &Handlers{Store: s, Sync: sync}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Detail string              `json:"detail"`
	Fields map[string][]string `json:"fields,omitempty"`
	Side   string              `json:"side,omitempty"`
	Kind   string              `json:"kind,omitempty"`
	// Record is the persisted local state when only the remote side failed.
	Record any `json:"record,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondDetail(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, errorBody{Detail: detail})
}

// respondError maps an error from the payload, store or mirror packages to
// a status code and body. record, when non-nil, is attached to remote-side
// failures.
func respondError(w http.ResponseWriter, err error, record any) {
	var (
		ve *payload.ValidationError
		nf *store.ErrNotFound
		se *mirror.SyncError
	)
	switch {
	case errors.As(err, &ve):
		respondJSON(w, http.StatusBadRequest, errorBody{Detail: "Invalid request.", Fields: ve.Fields})
	case errors.As(err, &nf):
		respondDetail(w, http.StatusNotFound, capitalize(nf.Error()))
	case errors.Is(err, mirror.ErrMissingRemoteBinding):
		respondDetail(w, http.StatusConflict, "Record has not been created on the remote platform.")
	case errors.Is(err, store.ErrVersionConflict):
		respondDetail(w, http.StatusConflict, "Record was modified by another request: "+err.Error())
	case errors.As(err, &se) && se.Side == mirror.SideRemote:
		body := errorBody{
			Detail: fmt.Sprintf("Failed to %s %s on the remote platform: %v", se.Op, se.Entity, se.Err),
			Side:   string(mirror.SideRemote),
			Record: record,
		}
		if f, ok := remote.AsFailure(err); ok {
			body.Kind = string(f.Kind)
		}
		respondJSON(w, http.StatusInternalServerError, body)
	default:
		log.Error().Err(err).Msg("Local persistence failure")
		respondJSON(w, http.StatusInternalServerError, errorBody{
			Detail: "Local storage failure: " + err.Error(),
			Side:   string(mirror.SideLocal),
		})
	}
}

// readBody reads the request body up to maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondDetail(w, http.StatusBadRequest, "Could not read request body.")
		return nil, false
	}
	return body, true
}

// expectedVersion parses an optional If-Match header holding a record
// version. Quotes and a weak prefix are tolerated. Updates apply it as a
// conditional write; deletes check it before the remote call only.
func expectedVersion(w http.ResponseWriter, r *http.Request) (*int, bool) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" || raw == "*" {
		return nil, true
	}
	raw = strings.Trim(strings.TrimPrefix(raw, "W/"), `"`)
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		respondDetail(w, http.StatusBadRequest, "If-Match must be a record version.")
		return nil, false
	}
	return &v, true
}

func setETag(w http.ResponseWriter, version int) {
	w.Header().Set("ETag", strconv.Quote(strconv.Itoa(version)))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:] + "."
}
