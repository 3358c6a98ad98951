// Package mirror keeps local agents and pathways consistent with their
// projections on the remote voice platform.
//
// Creates run the local insert and the remote create inside one store
// transaction, so a failed remote create leaves no local record behind.
// Updates persist locally first and are not rolled back when the remote
// push fails; the error says which side failed so the caller can retry
// with Push. Deletes remove the remote record before the local one.
package mirror

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/agentoven/voicebridge/internal/store"
	"github.com/agentoven/voicebridge/pkg/models"
)

// Remote is the subset of the platform client the synchronizer needs.
// *remote.Client implements it.
type Remote interface {
	CreateAgent(ctx context.Context, a *models.Agent, fields models.FieldSet) (string, error)
	UpdateAgent(ctx context.Context, remoteID string, a *models.Agent, fields models.FieldSet) (map[string]any, error)
	DeleteAgent(ctx context.Context, remoteID string) error

	CreatePathway(ctx context.Context, p *models.Pathway, fields models.FieldSet) (string, error)
	UpdatePathway(ctx context.Context, remoteID string, p *models.Pathway, fields models.FieldSet) (map[string]any, error)
	DeletePathway(ctx context.Context, remoteID string) error
	GetPathway(ctx context.Context, remoteID string) (map[string]any, error)
}

// ErrMissingRemoteBinding is returned when an operation needs a remote id
// that was never assigned.
var ErrMissingRemoteBinding = errors.New("no remote binding")

// Side names the store that failed.
type Side string

const (
	SideLocal  Side = "local"
	SideRemote Side = "remote"
)

// Operation names used in SyncError.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpPush   = "push"
	OpFetch  = "fetch"
)

// SyncError reports a failed synchronization step and which side failed.
type SyncError struct {
	Op     string
	Entity string
	ID     string
	Side   Side
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s %s %s: %s side failed: %v", e.Op, e.Entity, e.ID, e.Side, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Synchronizer is the only writer of remote ids.
type Synchronizer struct {
	store  store.Store
	remote Remote
	newID  func() string
}

// New creates a Synchronizer over s and r.
func New(s store.Store, r Remote) *Synchronizer {
	return &Synchronizer{store: s, remote: r, newID: uuid.NewString}
}

// inTx runs fn in a store transaction. Errors that are not already a
// SyncError come from the transaction itself and are reported as local.
func (s *Synchronizer) inTx(ctx context.Context, op, entity, id string, fn func(tx store.Store) error) error {
	err := s.store.InTx(ctx, fn)
	if err == nil {
		return nil
	}
	var se *SyncError
	if errors.As(err, &se) {
		return err
	}
	return &SyncError{Op: op, Entity: entity, ID: id, Side: SideLocal, Err: err}
}

// localFailure wraps a store error from a write step. Version conflicts
// and missing records pass through so callers can match them directly.
func localFailure(op, entity, id string, err error) error {
	var nf *store.ErrNotFound
	if errors.Is(err, store.ErrVersionConflict) || errors.As(err, &nf) {
		return err
	}
	return &SyncError{Op: op, Entity: entity, ID: id, Side: SideLocal, Err: err}
}

func checkVersion(entity, id string, current int, expected *int) error {
	if expected != nil && *expected != current {
		return fmt.Errorf("%s %s is at version %d, not %d: %w", entity, id, current, *expected, store.ErrVersionConflict)
	}
	return nil
}

func unbound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrMissingRemoteBinding)
}

// pushFields resolves the fields a push re-sends. Nil selects every remote
// field of the record.
func pushFields(fields models.FieldSet, remoteFields map[string]any) models.FieldSet {
	if fields != nil {
		return fields
	}
	fs := make(models.FieldSet, len(remoteFields))
	for k := range remoteFields {
		fs.Add(k)
	}
	return fs
}
