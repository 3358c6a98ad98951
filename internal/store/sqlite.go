package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/agentoven/voicebridge/pkg/models"
)

//go:embed schema.sql
var sqliteSchema string

// Schema version tracking:
// 0 - no schema
// 1 - agents and pathways tables, created_at indexes
const sqliteSchemaVersion = 1

// sqliteReaders bounds the read pool.
const sqliteReaders = 4

// sqlQueryer is satisfied by both *sql.DB and *sql.Tx.
type sqlQueryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements Store on a single SQLite file in WAL mode.
//
// Writes go through db, which holds one connection. Reads and Ping use a
// separate query-only pool so they are not queued behind a transaction
// that is waiting on the remote platform.
type SQLiteStore struct {
	db   *sql.DB
	read *sql.DB
	q    sqlQueryer // writes
	r    sqlQueryer // reads; the transaction itself inside InTx
	tx   *sql.Tx
}

// OpenSQLite creates or opens a SQLite database at path.
// The schema is applied by Migrate.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite: empty database path")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: connect: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %q: %w", pragma, err)
		}
	}

	// WAL readers never block on the writer.
	read, err := sql.Open("sqlite3", path+"?_query_only=true&_busy_timeout=5000")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: open reader: %w", err)
	}
	read.SetMaxOpenConns(sqliteReaders)
	read.SetMaxIdleConns(sqliteReaders)

	log.Info().Str("path", path).Msg("SQLite store opened")
	return &SQLiteStore{db: db, read: read, q: db, r: read}, nil
}

// Migrate applies the schema and incremental migrations. Idempotent.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < 1 {
		if _, err := s.db.ExecContext(ctx, `
			CREATE INDEX IF NOT EXISTS idx_agents_created ON agents (created_at);
			CREATE INDEX IF NOT EXISTS idx_pathways_created ON pathways (created_at);
		`); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", sqliteSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.read.PingContext(ctx)
}

// Close closes the database. Closing a transactional view is a no-op.
func (s *SQLiteStore) Close() error {
	if s.tx != nil || s.db == nil {
		return nil
	}
	return errors.Join(s.read.Close(), s.db.Close())
}

func (s *SQLiteStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	if err := fn(&SQLiteStore{db: s.db, read: s.read, q: tx, r: tx, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("sqlite: rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// ── Agents ──────────────────────────────────────────────────

const sqliteAgentColumns = `id, name, prompt, script, voice, language, model, first_sentence,
	interruption_threshold, max_duration, keywords, tools, dynamic_data, analysis_schema,
	metadata, pathway_id, webhook, remote_id, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteAgent(row rowScanner) (*models.Agent, error) {
	var (
		a                                 models.Agent
		remoteID                          sql.NullString
		keywords, tools                   string
		dynamicData, analysisSch, metaRaw sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Prompt, &a.Script, &a.Voice, &a.Language, &a.Model,
		&a.FirstSentence, &a.InterruptionThreshold, &a.MaxDuration, &keywords, &tools,
		&dynamicData, &analysisSch, &metaRaw, &a.PathwayID, &a.Webhook, &remoteID,
		&a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if remoteID.Valid {
		a.RemoteID = &remoteID.String
	}
	if err := decodeAgentJSON(&a, []byte(keywords), []byte(tools),
		nullBytes(dynamicData), nullBytes(analysisSch), nullBytes(metaRaw)); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLiteStore) ListAgents(ctx context.Context) ([]models.Agent, error) {
	rows, err := s.r.QueryContext(ctx, `SELECT `+sqliteAgentColumns+` FROM agents ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	out := []models.Agent{}
	for rows.Next() {
		a, err := scanSQLiteAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("list agents: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	a, err := scanSQLiteAgent(s.r.QueryRowContext(ctx, `SELECT `+sqliteAgentColumns+` FROM agents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "agent", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) CreateAgent(ctx context.Context, agent *models.Agent) error {
	enc, err := encodeAgent(agent)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO agents (`+sqliteAgentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`,
		agent.ID, agent.Name, agent.Prompt, agent.Script, agent.Voice, agent.Language, agent.Model,
		agent.FirstSentence, agent.InterruptionThreshold, agent.MaxDuration, enc.keywords, enc.tools,
		enc.dynamicData, enc.analysisSchema, enc.metadata, agent.PathwayID, agent.Webhook,
		agent.RemoteID, now, now,
	)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	agent.Version = 0
	agent.CreatedAt = now
	agent.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) UpdateAgent(ctx context.Context, agent *models.Agent, expectedVersion *int) error {
	enc, err := encodeAgent(agent)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	row := s.q.QueryRowContext(ctx, `
		UPDATE agents SET
			name = ?, prompt = ?, script = ?, voice = ?, language = ?, model = ?,
			first_sentence = ?, interruption_threshold = ?, max_duration = ?,
			keywords = ?, tools = ?, dynamic_data = ?, analysis_schema = ?, metadata = ?,
			pathway_id = ?, webhook = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND (? IS NULL OR version = ?)
		RETURNING version
	`,
		agent.Name, agent.Prompt, agent.Script, agent.Voice, agent.Language, agent.Model,
		agent.FirstSentence, agent.InterruptionThreshold, agent.MaxDuration,
		enc.keywords, enc.tools, enc.dynamicData, enc.analysisSchema, enc.metadata,
		agent.PathwayID, agent.Webhook, now, agent.ID, expectedVersion, expectedVersion,
	)
	if err := row.Scan(&agent.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.missedUpdate(ctx, "agent", `SELECT version FROM agents WHERE id = ?`, agent.ID, expectedVersion)
		}
		return fmt.Errorf("update agent: %w", err)
	}
	agent.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) BindAgent(ctx context.Context, id, remoteID string) error {
	return s.execOne(ctx, "agent", id, `UPDATE agents SET remote_id = ? WHERE id = ?`, remoteID, id)
}

func (s *SQLiteStore) DeleteAgent(ctx context.Context, id string) error {
	return s.execOne(ctx, "agent", id, `DELETE FROM agents WHERE id = ?`, id)
}

// ── Pathways ────────────────────────────────────────────────

const sqlitePathwayColumns = `id, name, description, nodes, edges, remote_id, version, created_at, updated_at`

func scanSQLitePathway(row rowScanner) (*models.Pathway, error) {
	var (
		p            models.Pathway
		remoteID     sql.NullString
		nodes, edges string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &nodes, &edges, &remoteID,
		&p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if remoteID.Valid {
		p.RemoteID = &remoteID.String
	}
	if err := decodeGraph(&p, []byte(nodes), []byte(edges)); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) ListPathways(ctx context.Context) ([]models.Pathway, error) {
	rows, err := s.r.QueryContext(ctx, `SELECT `+sqlitePathwayColumns+` FROM pathways ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list pathways: %w", err)
	}
	defer rows.Close()

	out := []models.Pathway{}
	for rows.Next() {
		p, err := scanSQLitePathway(rows)
		if err != nil {
			return nil, fmt.Errorf("list pathways: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetPathway(ctx context.Context, id string) (*models.Pathway, error) {
	p, err := scanSQLitePathway(s.r.QueryRowContext(ctx, `SELECT `+sqlitePathwayColumns+` FROM pathways WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "pathway", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get pathway: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) CreatePathway(ctx context.Context, pathway *models.Pathway) error {
	nodes, edges, err := encodeGraph(pathway)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO pathways (`+sqlitePathwayColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
	`, pathway.ID, pathway.Name, pathway.Description, nodes, edges, pathway.RemoteID, now, now)
	if err != nil {
		return fmt.Errorf("create pathway: %w", err)
	}
	pathway.Version = 0
	pathway.CreatedAt = now
	pathway.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) UpdatePathway(ctx context.Context, pathway *models.Pathway, expectedVersion *int) error {
	nodes, edges, err := encodeGraph(pathway)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	row := s.q.QueryRowContext(ctx, `
		UPDATE pathways SET
			name = ?, description = ?, nodes = ?, edges = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND (? IS NULL OR version = ?)
		RETURNING version
	`, pathway.Name, pathway.Description, nodes, edges, now, pathway.ID, expectedVersion, expectedVersion)
	if err := row.Scan(&pathway.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.missedUpdate(ctx, "pathway", `SELECT version FROM pathways WHERE id = ?`, pathway.ID, expectedVersion)
		}
		return fmt.Errorf("update pathway: %w", err)
	}
	pathway.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) BindPathway(ctx context.Context, id, remoteID string) error {
	return s.execOne(ctx, "pathway", id, `UPDATE pathways SET remote_id = ? WHERE id = ?`, remoteID, id)
}

func (s *SQLiteStore) DeletePathway(ctx context.Context, id string) error {
	return s.execOne(ctx, "pathway", id, `DELETE FROM pathways WHERE id = ?`, id)
}

// missedUpdate explains an update that matched no row: either the record
// is gone or its version moved past expected.
func (s *SQLiteStore) missedUpdate(ctx context.Context, entity, query, id string, expected *int) error {
	var current int
	err := s.q.QueryRowContext(ctx, query, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) || expected == nil {
		return &ErrNotFound{Entity: entity, Key: id}
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", entity, err)
	}
	return versionConflict(entity, id, current, *expected)
}

// execOne runs a statement that must touch exactly one row.
func (s *SQLiteStore) execOne(ctx context.Context, entity, id, query string, args ...any) error {
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s %s: %w", entity, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: %w", entity, id, err)
	}
	if n == 0 {
		return &ErrNotFound{Entity: entity, Key: id}
	}
	return nil
}

func nullBytes(ns sql.NullString) []byte {
	if !ns.Valid {
		return nil
	}
	return []byte(ns.String)
}
