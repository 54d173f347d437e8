package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Actions recorded in the trail.
const (
	ActionCreate        = "create"
	ActionUpdate        = "update"
	ActionTransition    = "transition"
	ActionEvaluate      = "evaluate"
	ActionDelete        = "delete"
	ActionDeleteAttempt = "delete_attempt"
)

// Entry is one immutable audit record. Before and After hold redacted JSON
// snapshots of the entity around the mutation; system-initiated actions have
// a nil ActorID.
type Entry struct {
	ID         uuid.UUID       `json:"id"`
	ActorID    *string         `json:"actor_id,omitempty"`
	ActorName  string          `json:"actor_name,omitempty"`
	ActorRole  string          `json:"actor_role,omitempty"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	IP         string          `json:"ip,omitempty"`
	UserAgent  string          `json:"user_agent,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
