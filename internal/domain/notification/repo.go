package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists the notification queue.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	Update(ctx context.Context, n *Notification) error
	ListByRecipient(ctx context.Context, recipientID uuid.UUID, limit, offset int) ([]*Notification, int, error)
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Notification, error)
	ListFailed(ctx context.Context, limit, offset int) ([]*Notification, int, error)
	MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error
}
