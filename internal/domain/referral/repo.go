package referral

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows referral listings. Zero values mean "no filter".
type ListFilter struct {
	Estado       string
	Especialidad string
	Prioridad    string
	EvaluadorID  *uuid.UUID
	// Pendientes selects received and under_review cases ordered by urgency.
	Pendientes bool
}

// Repository persists referrals. Status changes go through Transition, which
// applies an optimistic check on the expected current status; plain Update
// never touches estado.
type Repository interface {
	Create(ctx context.Context, r *Referral) error
	GetByID(ctx context.Context, id uuid.UUID) (*Referral, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Referral, int, error)
	Transition(ctx context.Context, r *Referral, expectedStatus string) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	ListAwaitingReminder(ctx context.Context, receivedBefore time.Time) ([]*Referral, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
}
