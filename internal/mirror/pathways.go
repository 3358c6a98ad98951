package mirror

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/agentoven/voicebridge/internal/payload"
	"github.com/agentoven/voicebridge/internal/store"
	"github.com/agentoven/voicebridge/pkg/models"
)

const entityPathway = "pathway"

// CreatePathway stores a new pathway and creates it remotely, rolling the
// local insert back if the remote create fails.
func (s *Synchronizer) CreatePathway(ctx context.Context, in *payload.PathwayInput) (*models.Pathway, error) {
	ctx = context.WithoutCancel(ctx)

	p := in.NewPathway()
	p.ID = s.newID()

	err := s.inTx(ctx, OpCreate, entityPathway, p.ID, func(tx store.Store) error {
		if err := tx.CreatePathway(ctx, p); err != nil {
			return &SyncError{Op: OpCreate, Entity: entityPathway, ID: p.ID, Side: SideLocal, Err: err}
		}
		remoteID, err := s.remote.CreatePathway(ctx, p, in.Fields)
		if err != nil {
			return &SyncError{Op: OpCreate, Entity: entityPathway, ID: p.ID, Side: SideRemote, Err: err}
		}
		if err := tx.BindPathway(ctx, p.ID, remoteID); err != nil {
			log.Error().Err(err).Str("pathway", p.ID).Str("remote_id", remoteID).Msg("Remote pathway created but binding failed; remote record is orphaned")
			return &SyncError{Op: OpCreate, Entity: entityPathway, ID: p.ID, Side: SideLocal, Err: err}
		}
		p.RemoteID = &remoteID
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("pathway", p.ID).Msg("Pathway create rolled back")
		return nil, err
	}

	log.Info().Str("pathway", p.ID).Str("remote_id", *p.RemoteID).Msg("Pathway created")
	return p, nil
}

// UpdatePathway persists in with a version bump, then pushes the supplied
// fields. A failed push leaves the local update in place.
func (s *Synchronizer) UpdatePathway(ctx context.Context, id string, in *payload.PathwayInput, expectedVersion *int) (*models.Pathway, error) {
	ctx = context.WithoutCancel(ctx)

	p, err := s.store.GetPathway(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Bound() {
		return nil, unbound(entityPathway, id)
	}
	if err := checkVersion(entityPathway, id, p.Version, expectedVersion); err != nil {
		return nil, err
	}

	in.Apply(p)
	if err := s.store.UpdatePathway(ctx, p, expectedVersion); err != nil {
		return nil, localFailure(OpUpdate, entityPathway, id, err)
	}

	if _, err := s.remote.UpdatePathway(ctx, *p.RemoteID, p, in.Fields); err != nil {
		log.Error().Err(err).Str("pathway", id).Int("version", p.Version).Msg("Pathway saved locally but remote update failed")
		return p, &SyncError{Op: OpUpdate, Entity: entityPathway, ID: id, Side: SideRemote, Err: err}
	}

	log.Info().Str("pathway", id).Int("version", p.Version).Strs("fields", in.Fields.Names()).Msg("Pathway updated")
	return p, nil
}

// DeletePathway deletes remotely first, then locally.
func (s *Synchronizer) DeletePathway(ctx context.Context, id string, expectedVersion *int) error {
	ctx = context.WithoutCancel(ctx)

	p, err := s.store.GetPathway(ctx, id)
	if err != nil {
		return err
	}
	if err := checkVersion(entityPathway, id, p.Version, expectedVersion); err != nil {
		return err
	}

	if p.Bound() {
		if err := s.remote.DeletePathway(ctx, *p.RemoteID); err != nil {
			log.Error().Err(err).Str("pathway", id).Str("remote_id", *p.RemoteID).Msg("Remote pathway delete failed; local record kept")
			return &SyncError{Op: OpDelete, Entity: entityPathway, ID: id, Side: SideRemote, Err: err}
		}
	} else {
		log.Warn().Str("pathway", id).Msg("Pathway has no remote binding, skipping remote delete")
	}

	if err := s.store.DeletePathway(ctx, id); err != nil {
		return &SyncError{Op: OpDelete, Entity: entityPathway, ID: id, Side: SideLocal, Err: err}
	}
	log.Info().Str("pathway", id).Msg("Pathway deleted")
	return nil
}

// PushPathway re-sends fields of a bound pathway; nil means all of them.
func (s *Synchronizer) PushPathway(ctx context.Context, id string, fields models.FieldSet) (map[string]any, error) {
	ctx = context.WithoutCancel(ctx)

	p, err := s.store.GetPathway(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Bound() {
		return nil, unbound(entityPathway, id)
	}

	push := pushFields(fields, p.RemoteFields())
	out, err := s.remote.UpdatePathway(ctx, *p.RemoteID, p, push)
	if err != nil {
		return nil, &SyncError{Op: OpPush, Entity: entityPathway, ID: id, Side: SideRemote, Err: err}
	}
	log.Info().Str("pathway", id).Int("version", p.Version).Strs("fields", push.Names()).Msg("Pathway pushed to remote")
	return out, nil
}

// FetchRemotePathway returns the remote representation of a bound pathway.
func (s *Synchronizer) FetchRemotePathway(ctx context.Context, id string) (map[string]any, error) {
	p, err := s.store.GetPathway(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Bound() {
		return nil, unbound(entityPathway, id)
	}
	out, err := s.remote.GetPathway(ctx, *p.RemoteID)
	if err != nil {
		return nil, &SyncError{Op: OpFetch, Entity: entityPathway, ID: id, Side: SideRemote, Err: err}
	}
	return out, nil
}
