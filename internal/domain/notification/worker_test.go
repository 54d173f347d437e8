package notification

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalred/vitalred/internal/platform/apperror"
	"github.com/vitalred/vitalred/internal/platform/mail"
)

type fakeRepo struct {
	items map[uuid.UUID]*Notification
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{items: map[uuid.UUID]*Notification{}}
}

func (f *fakeRepo) Create(_ context.Context, n *Notification) error {
	n.ID = uuid.New()
	n.CreatedAt = time.Now().UTC()
	cp := *n
	f.items[n.ID] = &cp
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*Notification, error) {
	n, ok := f.items[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeRepo) Update(_ context.Context, n *Notification) error {
	if _, ok := f.items[n.ID]; !ok {
		return apperror.ErrNotFound
	}
	cp := *n
	f.items[n.ID] = &cp
	return nil
}

func (f *fakeRepo) ListByRecipient(_ context.Context, recipientID uuid.UUID, limit, offset int) ([]*Notification, int, error) {
	var out []*Notification
	for _, n := range f.items {
		if n.RecipientID != nil && *n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out, len(out), nil
}

func (f *fakeRepo) ClaimDue(_ context.Context, now time.Time, limit int) ([]*Notification, error) {
	var out []*Notification
	for _, n := range f.items {
		if len(out) == limit {
			break
		}
		if n.Status == StatusPending && (n.NextRetryAt == nil || !n.NextRetryAt.After(now)) {
			n.Status = StatusProcessing
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListFailed(_ context.Context, limit, offset int) ([]*Notification, int, error) {
	var out []*Notification
	for _, n := range f.items {
		if n.Status == StatusFailed {
			out = append(out, n)
		}
	}
	return out, len(out), nil
}

func (f *fakeRepo) MarkRead(_ context.Context, id uuid.UUID, at time.Time) error {
	n, ok := f.items[id]
	if !ok || n.ReadAt != nil {
		return apperror.ErrNotFound
	}
	n.ReadAt = &at
	return nil
}

var testBackoff = BackoffConfig{
	MaxAttempts: 5,
	BaseDelay:   60 * time.Second,
	MaxDelay:    3600 * time.Second,
}

func TestBackoffConfig_DelaySchedule(t *testing.T) {
	want := []time.Duration{
		60 * time.Second,
		120 * time.Second,
		240 * time.Second,
		480 * time.Second,
		960 * time.Second,
		1920 * time.Second,
		3600 * time.Second,
		3600 * time.Second,
	}
	for i, expected := range want {
		if got := testBackoff.Delay(i + 1); got != expected {
			t.Errorf("attempt %d: expected %v, got %v", i+1, expected, got)
		}
	}
}

func enqueueEmail(t *testing.T, repo *fakeRepo, at time.Time) *Notification {
	t.Helper()
	d := NewDispatcher(repo, zerolog.New(os.Stderr))
	d.now = func() time.Time { return at }
	n := &Notification{
		RecipientEmail: "medico@hospital.example",
		Type:           TypeUrgentReferral,
		Title:          "Solicitud urgente",
		Message:        "Nueva solicitud de Cardiología",
		Channels:       []string{ChannelEmail, ChannelInternal},
	}
	if err := d.Enqueue(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestWorker_DeliversAndMarksSent(t *testing.T) {
	repo := newFakeRepo()
	sender := &mail.MockSender{}
	w := NewWorker(repo, sender, testBackoff, zerolog.New(os.Stderr))

	n := enqueueEmail(t, repo, time.Now())
	if err := w.ProcessDue(context.Background()); err != nil {
		t.Fatal(err)
	}

	stored := repo.items[n.ID]
	if stored.Status != StatusSent {
		t.Errorf("expected sent, got %q", stored.Status)
	}
	if len(sender.Calls()) != 1 {
		t.Errorf("expected 1 email, got %d", len(sender.Calls()))
	}
}

func TestWorker_RetriesWithBackoffThenFails(t *testing.T) {
	repo := newFakeRepo()
	sender := &mail.MockSender{ShouldFail: true, FailError: "relay down"}

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	w := NewWorker(repo, sender, testBackoff, zerolog.New(os.Stderr))
	w.now = func() time.Time { return clock }

	n := enqueueEmail(t, repo, base)

	wantDelays := []time.Duration{60, 120, 240, 480}
	for i, d := range wantDelays {
		if err := w.ProcessDue(context.Background()); err != nil {
			t.Fatal(err)
		}
		stored := repo.items[n.ID]
		if stored.Attempts != i+1 {
			t.Fatalf("pass %d: expected %d attempts, got %d", i+1, i+1, stored.Attempts)
		}
		if stored.Status != StatusPending {
			t.Fatalf("pass %d: expected still pending, got %q", i+1, stored.Status)
		}
		wantNext := clock.Add(d * time.Second)
		if stored.NextRetryAt == nil || !stored.NextRetryAt.Equal(wantNext) {
			t.Fatalf("pass %d: expected retry at %v, got %v", i+1, wantNext, stored.NextRetryAt)
		}
		clock = wantNext
	}

	// Fifth failure exhausts the budget.
	if err := w.ProcessDue(context.Background()); err != nil {
		t.Fatal(err)
	}
	stored := repo.items[n.ID]
	if stored.Status != StatusFailed {
		t.Fatalf("expected failed after 5 attempts, got %q", stored.Status)
	}
	if stored.Attempts != 5 {
		t.Errorf("expected 5 attempts, got %d", stored.Attempts)
	}
	if stored.LastError == nil || *stored.LastError != "relay down" {
		t.Errorf("last error not recorded: %v", stored.LastError)
	}

	// A failed notification is never retried again.
	calls := len(sender.Calls())
	if err := w.ProcessDue(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(sender.Calls()) != calls {
		t.Error("failed notification was retried")
	}
}

func TestWorker_RespectsRetrySchedule(t *testing.T) {
	repo := newFakeRepo()
	sender := &mail.MockSender{ShouldFail: true, FailError: "relay down"}

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	w := NewWorker(repo, sender, testBackoff, zerolog.New(os.Stderr))
	w.now = func() time.Time { return clock }

	enqueueEmail(t, repo, base)
	if err := w.ProcessDue(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Not yet due for retry.
	clock = base.Add(30 * time.Second)
	if err := w.ProcessDue(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := len(sender.Calls()); got != 1 {
		t.Errorf("expected no retry before schedule, got %d sends", got)
	}
}

func TestClaimDue_ClaimedRowsAreNotReclaimable(t *testing.T) {
	repo := newFakeRepo()
	now := time.Now().UTC()
	enqueueEmail(t, repo, now)

	first, err := repo.ClaimDue(context.Background(), now, dueBatchSize)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 || first[0].Status != StatusProcessing {
		t.Fatalf("expected one claimed processing row, got %+v", first)
	}
	second, err := repo.ClaimDue(context.Background(), now, dueBatchSize)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 0 {
		t.Errorf("a claimed notification must not be claimable again, got %d", len(second))
	}
}

func TestWorker_InternalOnlySendsNoEmail(t *testing.T) {
	repo := newFakeRepo()
	sender := &mail.MockSender{}
	w := NewWorker(repo, sender, testBackoff, zerolog.New(os.Stderr))

	d := NewDispatcher(repo, zerolog.New(os.Stderr))
	n := &Notification{
		Type:     TypeEvaluated,
		Title:    "Solicitud evaluada",
		Channels: []string{ChannelInternal},
	}
	if err := d.Enqueue(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	if err := w.ProcessDue(context.Background()); err != nil {
		t.Fatal(err)
	}
	if repo.items[n.ID].Status != StatusSent {
		t.Errorf("internal notification should be sent immediately, got %q", repo.items[n.ID].Status)
	}
	if len(sender.Calls()) != 0 {
		t.Error("internal-only notification should not email")
	}
}

func TestDispatcher_AllowsDuplicates(t *testing.T) {
	repo := newFakeRepo()
	d := NewDispatcher(repo, zerolog.New(os.Stderr))
	for i := 0; i < 2; i++ {
		n := &Notification{Type: TypeReminder, Title: "Recordatorio", Channels: []string{ChannelInternal}}
		if err := d.Enqueue(context.Background(), n); err != nil {
			t.Fatal(err)
		}
	}
	if len(repo.items) != 2 {
		t.Errorf("duplicate notifications must both be stored, got %d", len(repo.items))
	}
}
