package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// BackoffConfig controls the retry schedule for failed deliveries.
type BackoffConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Delay returns how long to wait before the next attempt after the given
// number of failed attempts. The schedule doubles from BaseDelay and is
// capped at MaxDelay.
func (c BackoffConfig) Delay(failedAttempts int) time.Duration {
	if failedAttempts < 1 {
		failedAttempts = 1
	}
	d := c.BaseDelay << uint(failedAttempts-1)
	if d > c.MaxDelay || d <= 0 {
		return c.MaxDelay
	}
	return d
}

// Dispatcher enqueues notifications for delivery. Every enqueued message is
// stored, duplicates included: suppressing repeats is a product decision the
// queue does not make.
type Dispatcher struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewDispatcher(repo Repository, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{repo: repo, logger: logger, now: time.Now}
}

// Enqueue stores n as pending and immediately eligible for delivery.
func (d *Dispatcher) Enqueue(ctx context.Context, n *Notification) error {
	n.Status = StatusPending
	n.Attempts = 0
	now := d.now().UTC()
	n.NextRetryAt = &now
	if len(n.Channels) == 0 {
		n.Channels = []string{ChannelInternal}
	}
	if err := d.repo.Create(ctx, n); err != nil {
		d.logger.Error().Err(err).Str("type", n.Type).Msg("enqueue notification failed")
		return err
	}
	d.logger.Debug().
		Str("notification_id", n.ID.String()).
		Str("type", n.Type).
		Str("recipient", n.RecipientEmail).
		Msg("notification enqueued")
	return nil
}
