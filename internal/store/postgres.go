package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/agentoven/voicebridge/pkg/models"
)

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on PostgreSQL via pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
	q    pgQuerier
	tx   pgx.Tx
}

// OpenPostgres connects to connURL and verifies the connection.
func OpenPostgres(ctx context.Context, connURL string, maxConns int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	log.Info().Str("host", cfg.ConnConfig.Host).Str("database", cfg.ConnConfig.Database).Msg("PostgreSQL store connected")
	return &PostgresStore{pool: pool, q: pool}, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS vb_agents (
			id                     TEXT PRIMARY KEY,
			name                   TEXT NOT NULL,
			prompt                 TEXT NOT NULL,
			script                 TEXT NOT NULL DEFAULT '',
			voice                  TEXT NOT NULL DEFAULT 'default_voice',
			language               TEXT NOT NULL DEFAULT 'ENG',
			model                  TEXT NOT NULL DEFAULT 'enhanced',
			first_sentence         TEXT NOT NULL DEFAULT '',
			interruption_threshold INTEGER NOT NULL DEFAULT 100,
			max_duration           INTEGER NOT NULL DEFAULT 30,
			keywords               JSONB NOT NULL DEFAULT '[]',
			tools                  JSONB NOT NULL DEFAULT '[]',
			dynamic_data           JSONB,
			analysis_schema        JSONB,
			metadata               JSONB,
			pathway_id             TEXT NOT NULL DEFAULT '',
			webhook                TEXT NOT NULL DEFAULT '',
			remote_id              TEXT UNIQUE,
			version                INTEGER NOT NULL DEFAULT 0,
			created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS vb_pathways (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			nodes       JSONB NOT NULL DEFAULT '{}',
			edges       JSONB NOT NULL DEFAULT '{}',
			remote_id   TEXT UNIQUE,
			version     INTEGER NOT NULL DEFAULT 0,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_vb_agents_created ON vb_agents (created_at);
		CREATE INDEX IF NOT EXISTS idx_vb_pathways_created ON vb_pathways (created_at);
	`)
	return err
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool. Closing a transactional view is a no-op.
func (s *PostgresStore) Close() error {
	if s.tx == nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	if err := fn(&PostgresStore{pool: s.pool, q: tx, tx: tx}); err != nil {
		// Roll back on a fresh context so a cancelled request still releases the tx.
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			log.Error().Err(rbErr).Msg("postgres: rollback failed")
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// ── Agents ──────────────────────────────────────────────────

const pgAgentColumns = `id, name, prompt, script, voice, language, model, first_sentence,
	interruption_threshold, max_duration, keywords, tools, dynamic_data, analysis_schema,
	metadata, pathway_id, webhook, remote_id, version, created_at, updated_at`

func scanPGAgent(row pgx.Row) (*models.Agent, error) {
	var (
		a                                          models.Agent
		keywords, tools, dynamicData, schema, meta []byte
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Prompt, &a.Script, &a.Voice, &a.Language, &a.Model,
		&a.FirstSentence, &a.InterruptionThreshold, &a.MaxDuration, &keywords, &tools,
		&dynamicData, &schema, &meta, &a.PathwayID, &a.Webhook, &a.RemoteID,
		&a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	if err := decodeAgentJSON(&a, keywords, tools, dynamicData, schema, meta); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) ListAgents(ctx context.Context) ([]models.Agent, error) {
	rows, err := s.q.Query(ctx, `SELECT `+pgAgentColumns+` FROM vb_agents ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	out := []models.Agent{}
	for rows.Next() {
		a, err := scanPGAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("list agents: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	a, err := scanPGAgent(s.q.QueryRow(ctx, `SELECT `+pgAgentColumns+` FROM vb_agents WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "agent", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) CreateAgent(ctx context.Context, agent *models.Agent) error {
	enc, err := encodeAgent(agent)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.q.Exec(ctx, `
		INSERT INTO vb_agents (`+pgAgentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12::jsonb, $13::jsonb, $14::jsonb,
			$15::jsonb, $16, $17, $18, 0, $19, $19)
	`,
		agent.ID, agent.Name, agent.Prompt, agent.Script, agent.Voice, agent.Language, agent.Model,
		agent.FirstSentence, agent.InterruptionThreshold, agent.MaxDuration, enc.keywords, enc.tools,
		enc.dynamicData, enc.analysisSchema, enc.metadata, agent.PathwayID, agent.Webhook,
		agent.RemoteID, now,
	)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	agent.Version = 0
	agent.CreatedAt = now
	agent.UpdatedAt = now
	return nil
}

func (s *PostgresStore) UpdateAgent(ctx context.Context, agent *models.Agent, expectedVersion *int) error {
	enc, err := encodeAgent(agent)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	err = s.q.QueryRow(ctx, `
		UPDATE vb_agents SET
			name = $2, prompt = $3, script = $4, voice = $5, language = $6, model = $7,
			first_sentence = $8, interruption_threshold = $9, max_duration = $10,
			keywords = $11::jsonb, tools = $12::jsonb, dynamic_data = $13::jsonb,
			analysis_schema = $14::jsonb, metadata = $15::jsonb,
			pathway_id = $16, webhook = $17, version = version + 1, updated_at = $18
		WHERE id = $1 AND ($19::integer IS NULL OR version = $19::integer)
		RETURNING version
	`,
		agent.ID, agent.Name, agent.Prompt, agent.Script, agent.Voice, agent.Language, agent.Model,
		agent.FirstSentence, agent.InterruptionThreshold, agent.MaxDuration,
		enc.keywords, enc.tools, enc.dynamicData, enc.analysisSchema, enc.metadata,
		agent.PathwayID, agent.Webhook, now, expectedVersion,
	).Scan(&agent.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.missedUpdate(ctx, "agent", `SELECT version FROM vb_agents WHERE id = $1`, agent.ID, expectedVersion)
	}
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	agent.UpdatedAt = now
	return nil
}

func (s *PostgresStore) BindAgent(ctx context.Context, id, remoteID string) error {
	return s.execOne(ctx, "agent", id, `UPDATE vb_agents SET remote_id = $2 WHERE id = $1`, id, remoteID)
}

func (s *PostgresStore) DeleteAgent(ctx context.Context, id string) error {
	return s.execOne(ctx, "agent", id, `DELETE FROM vb_agents WHERE id = $1`, id)
}

// ── Pathways ────────────────────────────────────────────────

const pgPathwayColumns = `id, name, description, nodes, edges, remote_id, version, created_at, updated_at`

func scanPGPathway(row pgx.Row) (*models.Pathway, error) {
	var (
		p            models.Pathway
		nodes, edges []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &nodes, &edges, &p.RemoteID,
		&p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	if err := decodeGraph(&p, nodes, edges); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) ListPathways(ctx context.Context) ([]models.Pathway, error) {
	rows, err := s.q.Query(ctx, `SELECT `+pgPathwayColumns+` FROM vb_pathways ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list pathways: %w", err)
	}
	defer rows.Close()

	out := []models.Pathway{}
	for rows.Next() {
		p, err := scanPGPathway(rows)
		if err != nil {
			return nil, fmt.Errorf("list pathways: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetPathway(ctx context.Context, id string) (*models.Pathway, error) {
	p, err := scanPGPathway(s.q.QueryRow(ctx, `SELECT `+pgPathwayColumns+` FROM vb_pathways WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "pathway", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get pathway: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) CreatePathway(ctx context.Context, pathway *models.Pathway) error {
	nodes, edges, err := encodeGraph(pathway)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.q.Exec(ctx, `
		INSERT INTO vb_pathways (`+pgPathwayColumns+`)
		VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, 0, $7, $7)
	`, pathway.ID, pathway.Name, pathway.Description, nodes, edges, pathway.RemoteID, now)
	if err != nil {
		return fmt.Errorf("create pathway: %w", err)
	}
	pathway.Version = 0
	pathway.CreatedAt = now
	pathway.UpdatedAt = now
	return nil
}

func (s *PostgresStore) UpdatePathway(ctx context.Context, pathway *models.Pathway, expectedVersion *int) error {
	nodes, edges, err := encodeGraph(pathway)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	err = s.q.QueryRow(ctx, `
		UPDATE vb_pathways SET
			name = $2, description = $3, nodes = $4::jsonb, edges = $5::jsonb,
			version = version + 1, updated_at = $6
		WHERE id = $1 AND ($7::integer IS NULL OR version = $7::integer)
		RETURNING version
	`, pathway.ID, pathway.Name, pathway.Description, nodes, edges, now, expectedVersion).Scan(&pathway.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.missedUpdate(ctx, "pathway", `SELECT version FROM vb_pathways WHERE id = $1`, pathway.ID, expectedVersion)
	}
	if err != nil {
		return fmt.Errorf("update pathway: %w", err)
	}
	pathway.UpdatedAt = now
	return nil
}

func (s *PostgresStore) BindPathway(ctx context.Context, id, remoteID string) error {
	return s.execOne(ctx, "pathway", id, `UPDATE vb_pathways SET remote_id = $2 WHERE id = $1`, id, remoteID)
}

func (s *PostgresStore) DeletePathway(ctx context.Context, id string) error {
	return s.execOne(ctx, "pathway", id, `DELETE FROM vb_pathways WHERE id = $1`, id)
}

// missedUpdate explains an update that matched no row.
func (s *PostgresStore) missedUpdate(ctx context.Context, entity, query, id string, expected *int) error {
	var current int
	err := s.q.QueryRow(ctx, query, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) || expected == nil {
		return &ErrNotFound{Entity: entity, Key: id}
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", entity, err)
	}
	return versionConflict(entity, id, current, *expected)
}

func (s *PostgresStore) execOne(ctx context.Context, entity, id, query string, args ...any) error {
	tag, err := s.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s %s: %w", entity, id, err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: entity, Key: id}
	}
	return nil
}
