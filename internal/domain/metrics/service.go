package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vitalred/vitalred/internal/platform/cache"
)

// Service runs the rollup job and answers range queries, with a short-lived
// Redis cache in front of the reads.
type Service struct {
	repo     Repository
	cache    *cache.Cache
	cacheTTL time.Duration
	logger   zerolog.Logger
}

func NewService(repo Repository, c *cache.Cache, cacheTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{repo: repo, cache: c, cacheTTL: cacheTTL, logger: logger}
}

// AggregateDaily recomputes and overwrites the rollup for the given date.
// Running it twice for the same date yields the same row.
func (s *Service) AggregateDaily(ctx context.Context, date time.Time) (*DailyMetric, error) {
	m, err := s.repo.CollectDaily(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("collect daily metrics: %w", err)
	}
	if err := s.repo.Upsert(ctx, m); err != nil {
		return nil, fmt.Errorf("upsert daily metrics: %w", err)
	}
	s.cache.Invalidate(ctx, rangeCacheKeyContaining(m.Date)...)
	s.logger.Info().
		Str("date", m.Date.Format("2006-01-02")).
		Int("total_received", m.TotalReceived).
		Msg("daily metrics aggregated")
	return m, nil
}

// QueryRange returns the daily rows between from and to inclusive.
func (s *Service) QueryRange(ctx context.Context, from, to time.Time) ([]*DailyMetric, error) {
	key := rangeCacheKey(from, to)
	var cached []*DailyMetric
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	items, err := s.repo.GetRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, items, s.cacheTTL)
	return items, nil
}

func rangeCacheKey(from, to time.Time) string {
	return fmt.Sprintf("metrics:daily:%s:%s", from.Format("2006-01-02"), to.Format("2006-01-02"))
}

// rangeCacheKeyContaining lists the keys invalidated after a recompute.
// Only the single-day key is dropped eagerly; wider ranges expire with the
// TTL.
func rangeCacheKeyContaining(date time.Time) []string {
	return []string{rangeCacheKey(date, date)}
}
