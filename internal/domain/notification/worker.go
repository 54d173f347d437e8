package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/vitalred/vitalred/internal/platform/mail"
)

const dueBatchSize = 50

// Worker drains the pending queue, delivering each notification over its
// channels and scheduling retries on failure.
type Worker struct {
	repo    Repository
	sender  mail.Sender
	backoff BackoffConfig
	logger  zerolog.Logger
	now     func() time.Time
}

func NewWorker(repo Repository, sender mail.Sender, backoff BackoffConfig, logger zerolog.Logger) *Worker {
	return &Worker{
		repo:    repo,
		sender:  sender,
		backoff: backoff,
		logger:  logger,
		now:     time.Now,
	}
}

// Run processes the queue every interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info().Dur("interval", interval).Msg("notification worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("notification worker stopped")
			return
		case <-ticker.C:
			if err := w.ProcessDue(ctx); err != nil {
				w.logger.Error().Err(err).Msg("dispatch pass failed")
			}
		}
	}
}

// ProcessDue claims and delivers one batch of due notifications.
func (w *Worker) ProcessDue(ctx context.Context) error {
	due, err := w.repo.ClaimDue(ctx, w.now().UTC(), dueBatchSize)
	if err != nil {
		return err
	}
	for _, n := range due {
		w.deliver(ctx, n)
	}
	return nil
}

func (w *Worker) deliver(ctx context.Context, n *Notification) {
	err := w.send(ctx, n)
	if err == nil {
		n.Status = StatusSent
		n.NextRetryAt = nil
		n.LastError = nil
		if updErr := w.repo.Update(ctx, n); updErr != nil {
			w.logger.Error().Err(updErr).Str("notification_id", n.ID.String()).Msg("mark sent failed")
		}
		return
	}

	n.Attempts++
	msg := err.Error()
	n.LastError = &msg
	if n.Attempts >= w.backoff.MaxAttempts {
		n.Status = StatusFailed
		n.NextRetryAt = nil
		w.logger.Warn().
			Str("notification_id", n.ID.String()).
			Int("attempts", n.Attempts).
			Str("error", msg).
			Msg("notification exhausted retries")
	} else {
		n.Status = StatusPending
		next := w.now().UTC().Add(w.backoff.Delay(n.Attempts))
		n.NextRetryAt = &next
		w.logger.Debug().
			Str("notification_id", n.ID.String()).
			Int("attempts", n.Attempts).
			Time("next_retry_at", next).
			Msg("delivery failed, retry scheduled")
	}
	if updErr := w.repo.Update(ctx, n); updErr != nil {
		w.logger.Error().Err(updErr).Str("notification_id", n.ID.String()).Msg("record attempt failed")
	}
}

func (w *Worker) send(ctx context.Context, n *Notification) error {
	// The internal channel is the stored row itself; only email leaves the
	// process.
	if !n.hasChannel(ChannelEmail) {
		return nil
	}
	return w.sender.Send(ctx, n.RecipientEmail, n.Title, n.Message)
}
