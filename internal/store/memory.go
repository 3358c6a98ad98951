package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agentoven/voicebridge/pkg/models"
)

// snapshot is the JSON-serializable shape written to disk.
type snapshot struct {
	Agents   map[string]*models.Agent   `json:"agents"`
	Pathways map[string]*models.Pathway `json:"pathways"`
}

// MemoryStore implements Store with in-memory maps.
// Supports file-based snapshot persistence so data survives restarts.
type MemoryStore struct {
	mu       sync.RWMutex
	agents   map[string]*models.Agent   // key: id
	pathways map[string]*models.Pathway // key: id

	// Persistence
	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{} // signals background goroutines to stop
	closeOnce    sync.Once
}

// NewMemoryStore creates a new in-memory store. When dataDir is set, data
// is persisted to dataDir/data.json and reloaded on start.
func NewMemoryStore(dataDir string) *MemoryStore {
	m := &MemoryStore{
		agents:   make(map[string]*models.Agent),
		pathways: make(map[string]*models.Pathway),
		saveCh:   make(chan struct{}, 1),
		doneCh:   make(chan struct{}),
	}

	if dataDir != "" {
		m.snapshotPath = filepath.Join(dataDir, "data.json")
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			log.Warn().Err(err).Str("dir", dataDir).Msg("Cannot create data dir, persistence disabled")
			m.snapshotPath = ""
		}
	}

	if m.snapshotPath != "" {
		m.loadSnapshot()
		go m.saveLoop()
	}

	log.Info().Str("snapshot", m.snapshotPath).Msg("Memory store configured")
	return m
}

// requestSave signals the background goroutine to persist data.
// Non-blocking: coalesces multiple rapid writes into one disk flush.
func (m *MemoryStore) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
		// Already pending
	}
}

// saveLoop debounces save requests (max 1 write per 500ms).
func (m *MemoryStore) saveLoop() {
	for {
		select {
		case <-m.doneCh:
			return
		case <-m.saveCh:
			time.Sleep(500 * time.Millisecond)
			m.saveSnapshot()
		}
	}
}

func (m *MemoryStore) saveSnapshot() {
	m.mu.RLock()
	data, err := json.MarshalIndent(snapshot{Agents: m.agents, Pathways: m.pathways}, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	// Write to temp file then rename so a crash never leaves a torn snapshot.
	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("Failed to write snapshot")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to rename snapshot")
	}
}

func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Failed to read snapshot")
		}
		return
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Corrupt snapshot, starting empty")
		return
	}
	if snap.Agents != nil {
		m.agents = snap.Agents
	}
	if snap.Pathways != nil {
		m.pathways = snap.Pathways
	}
	log.Info().
		Int("agents", len(m.agents)).
		Int("pathways", len(m.pathways)).
		Msg("Loaded snapshot")
}

// Ping always succeeds.
func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

// Migrate is a no-op for the memory store.
func (m *MemoryStore) Migrate(ctx context.Context) error { return nil }

// Close stops the save loop and flushes a final snapshot.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() {
		close(m.doneCh)
		if m.snapshotPath != "" {
			m.saveSnapshot()
		}
	})
	return nil
}

// InTx runs fn against a journaling view. Writes apply immediately and are
// undone in reverse order if fn fails.
func (m *MemoryStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	tx := &memoryTx{MemoryStore: m}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// ── Agents ──────────────────────────────────────────────────

func (m *MemoryStore) ListAgents(ctx context.Context) ([]models.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, *a.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return createdBefore(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (m *MemoryStore) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "agent", Key: id}
	}
	return a.Clone(), nil
}

func (m *MemoryStore) CreateAgent(ctx context.Context, agent *models.Agent) error {
	now := time.Now().UTC()
	agent.Version = 0
	agent.CreatedAt = now
	agent.UpdatedAt = now

	m.mu.Lock()
	m.agents[agent.ID] = agent.Clone()
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) UpdateAgent(ctx context.Context, agent *models.Agent, expectedVersion *int) error {
	m.mu.Lock()
	existing, ok := m.agents[agent.ID]
	if !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "agent", Key: agent.ID}
	}
	if expectedVersion != nil && *expectedVersion != existing.Version {
		m.mu.Unlock()
		return versionConflict("agent", agent.ID, existing.Version, *expectedVersion)
	}
	agent.Version = existing.Version + 1
	agent.CreatedAt = existing.CreatedAt
	agent.UpdatedAt = time.Now().UTC()
	// The remote binding is owned by BindAgent.
	agent.RemoteID = existing.Clone().RemoteID
	m.agents[agent.ID] = agent.Clone()
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) BindAgent(ctx context.Context, id, remoteID string) error {
	m.mu.Lock()
	a, ok := m.agents[id]
	if !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "agent", Key: id}
	}
	a.RemoteID = &remoteID
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) DeleteAgent(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.agents[id]; !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "agent", Key: id}
	}
	delete(m.agents, id)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ── Pathways ────────────────────────────────────────────────

func (m *MemoryStore) ListPathways(ctx context.Context) ([]models.Pathway, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Pathway, 0, len(m.pathways))
	for _, p := range m.pathways {
		out = append(out, *p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return createdBefore(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (m *MemoryStore) GetPathway(ctx context.Context, id string) (*models.Pathway, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pathways[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "pathway", Key: id}
	}
	return p.Clone(), nil
}

func (m *MemoryStore) CreatePathway(ctx context.Context, pathway *models.Pathway) error {
	now := time.Now().UTC()
	pathway.Version = 0
	pathway.CreatedAt = now
	pathway.UpdatedAt = now

	m.mu.Lock()
	m.pathways[pathway.ID] = pathway.Clone()
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) UpdatePathway(ctx context.Context, pathway *models.Pathway, expectedVersion *int) error {
	m.mu.Lock()
	existing, ok := m.pathways[pathway.ID]
	if !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "pathway", Key: pathway.ID}
	}
	if expectedVersion != nil && *expectedVersion != existing.Version {
		m.mu.Unlock()
		return versionConflict("pathway", pathway.ID, existing.Version, *expectedVersion)
	}
	pathway.Version = existing.Version + 1
	pathway.CreatedAt = existing.CreatedAt
	pathway.UpdatedAt = time.Now().UTC()
	pathway.RemoteID = existing.Clone().RemoteID
	m.pathways[pathway.ID] = pathway.Clone()
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) BindPathway(ctx context.Context, id, remoteID string) error {
	m.mu.Lock()
	p, ok := m.pathways[id]
	if !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "pathway", Key: id}
	}
	p.RemoteID = &remoteID
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) DeletePathway(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.pathways[id]; !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "pathway", Key: id}
	}
	delete(m.pathways, id)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func createdBefore(a, b time.Time, idA, idB string) bool {
	if a.Equal(b) {
		return idA < idB
	}
	return a.Before(b)
}
