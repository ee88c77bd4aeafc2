// Package audit records who changed what through the table API. Audit
// failures never fail the triggering request: events are written
// best-effort and errors are logged and swallowed.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/incisive-io/tabled/internal/logger"
	"github.com/incisive-io/tabled/internal/storage"
)

// Write actions recorded against table rows.
const (
	ActionCreate = "CREATE_RECORD"
	ActionUpdate = "UPDATE_RECORD"
	ActionDelete = "DELETE_RECORD"
)

// Event is one audit record.
type Event struct {
	ActorID  string
	Action   string
	Resource string // "<table>:<row identity>"
	Details  map[string]any
}

// Sink receives audit events.
type Sink interface {
	Record(ctx context.Context, ev Event)
}

// StoreSink persists events into the audit_logs table.
type StoreSink struct {
	store storage.Store
	log   *logger.Logger
}

// NewStoreSink returns a Sink writing to audit_logs through store.
func NewStoreSink(store storage.Store, log *logger.Logger) *StoreSink {
	return &StoreSink{store: store, log: log}
}

// Record writes the event. Serialization or storage failures are logged
// and dropped.
func (s *StoreSink) Record(ctx context.Context, ev Event) {
	var details any
	if len(ev.Details) > 0 {
		b, err := json.Marshal(ev.Details)
		if err == nil {
			details = string(b)
		}
	}

	row := storage.Row{
		"id":         uuid.NewString(),
		"user_id":    ev.ActorID,
		"action":     ev.Action,
		"resource":   ev.Resource,
		"details":    details,
		"created_at": time.Now().UTC(),
	}

	if _, err := s.store.Insert(ctx, "audit_logs", row, []string{"id"}); err != nil {
		s.log.ErrorWith("failed to record audit event", err, map[string]any{
			"action":   ev.Action,
			"resource": ev.Resource,
		})
	}
}

// NopSink discards every event. Used in tests and when auditing is
// disabled.
type NopSink struct{}

func (NopSink) Record(context.Context, Event) {}
