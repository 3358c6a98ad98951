package store

import (
	"context"

	"github.com/agentoven/voicebridge/pkg/models"
)

// memoryTx records an undo step for every write it forwards to the
// underlying MemoryStore.
type memoryTx struct {
	*MemoryStore
	undo []func()
}

func (tx *memoryTx) InTx(ctx context.Context, fn func(Store) error) error {
	return fn(tx)
}

func (tx *memoryTx) rollback() {
	tx.mu.Lock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.mu.Unlock()
	tx.undo = nil
	tx.requestSave()
}

// prevAgent captures the current state of an agent for undo.
func (tx *memoryTx) prevAgent(id string) func() {
	tx.mu.RLock()
	prev, existed := tx.agents[id]
	if existed {
		prev = prev.Clone()
	}
	tx.mu.RUnlock()
	return func() {
		if existed {
			tx.agents[id] = prev
		} else {
			delete(tx.agents, id)
		}
	}
}

func (tx *memoryTx) prevPathway(id string) func() {
	tx.mu.RLock()
	prev, existed := tx.pathways[id]
	if existed {
		prev = prev.Clone()
	}
	tx.mu.RUnlock()
	return func() {
		if existed {
			tx.pathways[id] = prev
		} else {
			delete(tx.pathways, id)
		}
	}
}

func (tx *memoryTx) CreateAgent(ctx context.Context, agent *models.Agent) error {
	undo := tx.prevAgent(agent.ID)
	if err := tx.MemoryStore.CreateAgent(ctx, agent); err != nil {
		return err
	}
	tx.undo = append(tx.undo, undo)
	return nil
}

func (tx *memoryTx) UpdateAgent(ctx context.Context, agent *models.Agent, expectedVersion *int) error {
	undo := tx.prevAgent(agent.ID)
	if err := tx.MemoryStore.UpdateAgent(ctx, agent, expectedVersion); err != nil {
		return err
	}
	tx.undo = append(tx.undo, undo)
	return nil
}

func (tx *memoryTx) BindAgent(ctx context.Context, id, remoteID string) error {
	undo := tx.prevAgent(id)
	if err := tx.MemoryStore.BindAgent(ctx, id, remoteID); err != nil {
		return err
	}
	tx.undo = append(tx.undo, undo)
	return nil
}

func (tx *memoryTx) DeleteAgent(ctx context.Context, id string) error {
	undo := tx.prevAgent(id)
	if err := tx.MemoryStore.DeleteAgent(ctx, id); err != nil {
		return err
	}
	tx.undo = append(tx.undo, undo)
	return nil
}

func (tx *memoryTx) CreatePathway(ctx context.Context, pathway *models.Pathway) error {
	undo := tx.prevPathway(pathway.ID)
	if err := tx.MemoryStore.CreatePathway(ctx, pathway); err != nil {
		return err
	}
	tx.undo = append(tx.undo, undo)
	return nil
}

func (tx *memoryTx) UpdatePathway(ctx context.Context, pathway *models.Pathway, expectedVersion *int) error {
	undo := tx.prevPathway(pathway.ID)
	if err := tx.MemoryStore.UpdatePathway(ctx, pathway, expectedVersion); err != nil {
		return err
	}
	tx.undo = append(tx.undo, undo)
	return nil
}

func (tx *memoryTx) BindPathway(ctx context.Context, id, remoteID string) error {
	undo := tx.prevPathway(id)
	if err := tx.MemoryStore.BindPathway(ctx, id, remoteID); err != nil {
		return err
	}
	tx.undo = append(tx.undo, undo)
	return nil
}

func (tx *memoryTx) DeletePathway(ctx context.Context, id string) error {
	undo := tx.prevPathway(id)
	if err := tx.MemoryStore.DeletePathway(ctx, id); err != nil {
		return err
	}
	tx.undo = append(tx.undo, undo)
	return nil
}
