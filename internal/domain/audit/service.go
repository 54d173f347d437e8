package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/vitalred/vitalred/internal/platform/apperror"
	"github.com/vitalred/vitalred/internal/platform/auth"
)

type Service struct {
	entries Repository
	logger  zerolog.Logger
}

func NewService(entries Repository, logger zerolog.Logger) *Service {
	return &Service{entries: entries, logger: logger}
}

// Record writes an audit entry. It runs inside the caller's transaction when
// one is present in ctx, so a failed write rolls back the mutation too.
func (s *Service) Record(ctx context.Context, e *Entry) error {
	e.CreatedAt = time.Now().UTC()
	if err := s.entries.Insert(ctx, e); err != nil {
		s.logger.Error().Err(err).
			Str("action", e.Action).
			Str("entity_type", e.EntityType).
			Str("entity_id", e.EntityID).
			Msg("audit entry write failed")
		return err
	}
	return nil
}

// RecordForActor fills the actor fields and the originating request's client
// address and agent from the request context.
func (s *Service) RecordForActor(ctx context.Context, actor *auth.Actor, e *Entry) error {
	if actor != nil {
		actorID := actor.ID
		e.ActorID = &actorID
		e.ActorName = actor.Name
		e.ActorRole = actor.Role
	}
	meta := auth.RequestMetaFromContext(ctx)
	if e.IP == "" {
		e.IP = meta.IP
	}
	if e.UserAgent == "" {
		e.UserAgent = meta.UserAgent
	}
	return s.Record(ctx, e)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error) {
	return s.entries.List(ctx, f, limit, offset)
}

// AttemptDelete always refuses: the trail is append-only. The refusal itself
// is recorded so tampering attempts are visible.
func (s *Service) AttemptDelete(ctx context.Context, actor *auth.Actor, entryID string) error {
	rec := &Entry{
		Action:     ActionDeleteAttempt,
		EntityType: "audit_entry",
		EntityID:   entryID,
	}
	if err := s.RecordForActor(ctx, actor, rec); err != nil {
		return err
	}
	return apperror.ErrForbidden
}
