package notification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Delivery states. processing marks a row claimed by a worker; delivery
// resolves it to sent, failed or back to pending for a retry.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusSent       = "sent"
	StatusFailed     = "failed"
)

// Notification types emitted by the platform.
const (
	TypeNewReferral    = "nueva_solicitud"
	TypeUrgentReferral = "solicitud_urgente"
	TypeEvaluated      = "solicitud_evaluada"
	TypeReminder       = "recordatorio_pendiente"
)

// Delivery channels.
const (
	ChannelEmail    = "email"
	ChannelInternal = "internal"
)

// Notification is one message queued for a recipient. Email delivery is
// retried with exponential backoff until it succeeds or the attempt budget
// runs out; the in-app copy is visible immediately.
type Notification struct {
	ID             uuid.UUID       `json:"id"`
	RecipientID    *uuid.UUID      `json:"recipient_id,omitempty"`
	RecipientEmail string          `json:"recipient_email"`
	Type           string          `json:"type"`
	Title          string          `json:"title"`
	Message        string          `json:"message"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Priority       string          `json:"priority"`
	Channels       []string        `json:"channels"`
	Status         string          `json:"status"`
	Attempts       int             `json:"attempts"`
	NextRetryAt    *time.Time      `json:"next_retry_at,omitempty"`
	LastError      *string         `json:"last_error,omitempty"`
	ReadAt         *time.Time      `json:"fecha_lectura,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (n *Notification) hasChannel(ch string) bool {
	for _, c := range n.Channels {
		if c == ch {
			return true
		}
	}
	return false
}
