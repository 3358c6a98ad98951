package mirror

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/agentoven/voicebridge/internal/payload"
	"github.com/agentoven/voicebridge/internal/sanitize"
	"github.com/agentoven/voicebridge/internal/store"
	"github.com/agentoven/voicebridge/pkg/models"
)

const entityAgent = "agent"

// CreateAgent stores a new agent and creates its remote counterpart with
// the fields the caller supplied. If the remote create fails the local
// insert is rolled back.
func (s *Synchronizer) CreateAgent(ctx context.Context, in *payload.AgentInput) (*models.Agent, error) {
	// Writes run to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	a := in.NewAgent()
	a.ID = s.newID()
	a.Script = sanitize.Script(a.Prompt)

	err := s.inTx(ctx, OpCreate, entityAgent, a.ID, func(tx store.Store) error {
		if err := tx.CreateAgent(ctx, a); err != nil {
			return &SyncError{Op: OpCreate, Entity: entityAgent, ID: a.ID, Side: SideLocal, Err: err}
		}
		remoteID, err := s.remote.CreateAgent(ctx, a, in.Fields)
		if err != nil {
			return &SyncError{Op: OpCreate, Entity: entityAgent, ID: a.ID, Side: SideRemote, Err: err}
		}
		if err := tx.BindAgent(ctx, a.ID, remoteID); err != nil {
			log.Error().Err(err).Str("agent", a.ID).Str("remote_id", remoteID).Msg("Remote agent created but binding failed; remote record is orphaned")
			return &SyncError{Op: OpCreate, Entity: entityAgent, ID: a.ID, Side: SideLocal, Err: err}
		}
		a.RemoteID = &remoteID
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("agent", a.ID).Msg("Agent create rolled back")
		return nil, err
	}

	log.Info().Str("agent", a.ID).Str("remote_id", *a.RemoteID).Msg("Agent created")
	return a, nil
}

// UpdateAgent applies in to the stored agent, persists it with a version
// bump and pushes the supplied fields to the remote agent. A non-nil
// expectedVersion makes the local write conditional on the stored version;
// nil means last write wins.
//
// When the remote push fails the local update stands: the returned agent
// is the persisted record and the error is a remote-side *SyncError.
func (s *Synchronizer) UpdateAgent(ctx context.Context, id string, in *payload.AgentInput, expectedVersion *int) (*models.Agent, error) {
	ctx = context.WithoutCancel(ctx)

	a, err := s.store.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Bound() {
		return nil, unbound(entityAgent, id)
	}
	if err := checkVersion(entityAgent, id, a.Version, expectedVersion); err != nil {
		return nil, err
	}

	in.Apply(a)
	a.Script = sanitize.Script(a.Prompt)
	if err := s.store.UpdateAgent(ctx, a, expectedVersion); err != nil {
		return nil, localFailure(OpUpdate, entityAgent, id, err)
	}

	if _, err := s.remote.UpdateAgent(ctx, *a.RemoteID, a, in.Fields); err != nil {
		log.Error().Err(err).Str("agent", id).Int("version", a.Version).Msg("Agent saved locally but remote update failed")
		return a, &SyncError{Op: OpUpdate, Entity: entityAgent, ID: id, Side: SideRemote, Err: err}
	}

	log.Info().Str("agent", id).Int("version", a.Version).Strs("fields", in.Fields.Names()).Msg("Agent updated")
	return a, nil
}

// DeleteAgent deletes the remote agent, then the local one. An agent that
// was never bound is deleted locally without a remote call. The
// expectedVersion check runs before the remote delete and is advisory: a
// concurrent update can still land in between.
func (s *Synchronizer) DeleteAgent(ctx context.Context, id string, expectedVersion *int) error {
	ctx = context.WithoutCancel(ctx)

	a, err := s.store.GetAgent(ctx, id)
	if err != nil {
		return err
	}
	if err := checkVersion(entityAgent, id, a.Version, expectedVersion); err != nil {
		return err
	}

	if a.Bound() {
		if err := s.remote.DeleteAgent(ctx, *a.RemoteID); err != nil {
			log.Error().Err(err).Str("agent", id).Str("remote_id", *a.RemoteID).Msg("Remote agent delete failed; local record kept")
			return &SyncError{Op: OpDelete, Entity: entityAgent, ID: id, Side: SideRemote, Err: err}
		}
	} else {
		log.Warn().Str("agent", id).Msg("Agent has no remote binding, skipping remote delete")
	}

	if err := s.store.DeleteAgent(ctx, id); err != nil {
		return &SyncError{Op: OpDelete, Entity: entityAgent, ID: id, Side: SideLocal, Err: err}
	}
	log.Info().Str("agent", id).Msg("Agent deleted")
	return nil
}

// PushAgent re-sends fields of a bound agent without touching the local
// record. It is the recovery step after a failed update: pass the fields
// of that update. A nil fields re-sends every remote field.
func (s *Synchronizer) PushAgent(ctx context.Context, id string, fields models.FieldSet) (map[string]any, error) {
	ctx = context.WithoutCancel(ctx)

	a, err := s.store.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Bound() {
		return nil, unbound(entityAgent, id)
	}

	push := pushFields(fields, a.RemoteFields())
	out, err := s.remote.UpdateAgent(ctx, *a.RemoteID, a, push)
	if err != nil {
		return nil, &SyncError{Op: OpPush, Entity: entityAgent, ID: id, Side: SideRemote, Err: err}
	}
	log.Info().Str("agent", id).Int("version", a.Version).Strs("fields", push.Names()).Msg("Agent pushed to remote")
	return out, nil
}
