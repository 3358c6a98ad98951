// Package store provides durable local storage for agents and pathways.
//
// Three implementations share the Store interface: an in-memory store with
// a JSON snapshot on disk (local dev, tests), SQLite, and PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentoven/voicebridge/pkg/models"
)

// Store is the storage interface the synchronizer and handlers depend on.
type Store interface {
	AgentStore
	PathwayStore

	// InTx runs fn against a transactional view of the store. If fn returns
	// an error every write made through the view is rolled back. Calling
	// InTx on a transactional view runs fn in the same transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error

	// Ping checks if the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error

	// Migrate brings the schema up to date.
	Migrate(ctx context.Context) error
}

// AgentStore persists agents.
//
// CreateAgent stores the record with version 0. UpdateAgent overwrites the
// mutable fields and increments the version; the new version is written
// back to the argument. A non-nil expectedVersion makes the update
// conditional: it fails with ErrVersionConflict unless the stored version
// still matches. BindAgent sets the remote id without a version bump.
type AgentStore interface {
	ListAgents(ctx context.Context) ([]models.Agent, error)
	GetAgent(ctx context.Context, id string) (*models.Agent, error)
	CreateAgent(ctx context.Context, agent *models.Agent) error
	UpdateAgent(ctx context.Context, agent *models.Agent, expectedVersion *int) error
	BindAgent(ctx context.Context, id, remoteID string) error
	DeleteAgent(ctx context.Context, id string) error
}

// PathwayStore persists pathways with the same semantics as AgentStore.
type PathwayStore interface {
	ListPathways(ctx context.Context) ([]models.Pathway, error)
	GetPathway(ctx context.Context, id string) (*models.Pathway, error)
	CreatePathway(ctx context.Context, pathway *models.Pathway) error
	UpdatePathway(ctx context.Context, pathway *models.Pathway, expectedVersion *int) error
	BindPathway(ctx context.Context, id, remoteID string) error
	DeletePathway(ctx context.Context, id string) error
}

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options configures Open.
type Options struct {
	Driver         string
	DataDir        string // memory snapshot directory; empty disables persistence
	SQLitePath     string
	DatabaseURL    string
	MaxConnections int
}

// Open builds the store selected by opts.Driver and migrates it.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Driver {
	case "", DriverMemory:
		s = NewMemoryStore(opts.DataDir)
	case DriverSQLite:
		s, err = OpenSQLite(opts.SQLitePath)
	case DriverPostgres:
		s, err = OpenPostgres(ctx, opts.DatabaseURL, opts.MaxConnections)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate %s store: %w", opts.Driver, err)
	}
	return s, nil
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// ErrVersionConflict is returned when a caller's expected version does not
// match the stored record.
var ErrVersionConflict = errors.New("version conflict")

func versionConflict(entity, id string, current, expected int) error {
	return fmt.Errorf("%s %s is at version %d, not %d: %w", entity, id, current, expected, ErrVersionConflict)
}
