// Package audit records who validated what, when, with which adapter. The
// trail is append-only; the store is swappable so deployments that need a
// durable sink can provide one without touching the publisher.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action names the operation that produced an event.
type Action string

const (
	ActionValidate    Action = "validate"
	ActionCheckStatus Action = "check_status"
	ActionEvaluate    Action = "evaluate_transaction"
)

// Event is one audit record.
type Event struct {
	ID          uuid.UUID `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Action      Action    `json:"action"`
	CountryCode string    `json:"country_code,omitempty"`
	AdapterID   string    `json:"adapter_id,omitempty"`
	Valid       *bool     `json:"valid,omitempty"`
	Outcome     string    `json:"outcome"`
	RequestID   string    `json:"request_identifier,omitempty"`
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context) ([]Event, error)
}
