package metrics

import (
	"context"
	"time"
)

// Repository computes and stores daily rollups.
type Repository interface {
	// CollectDaily aggregates the raw referral and notification rows whose
	// reception timestamp falls on the given UTC date.
	CollectDaily(ctx context.Context, date time.Time) (*DailyMetric, error)
	// Upsert overwrites the (date, period) row, recomputation included.
	Upsert(ctx context.Context, m *DailyMetric) error
	GetRange(ctx context.Context, from, to time.Time) ([]*DailyMetric, error)
}
