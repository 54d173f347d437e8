package audit

import (
	"context"
	"time"
)

// Filter narrows an audit trail listing.
type Filter struct {
	EntityType string
	EntityID   string
	Action     string
	From       time.Time
	To         time.Time
}

// Repository persists audit entries. The trail is append-only: there is no
// update or delete.
type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error)
}
