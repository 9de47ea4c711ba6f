// Package jobs defines the asynq task types shared by the server (producer)
// and the worker (consumer).
package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRecord carries one audit event from a mutation to the
	// persister.
	TaskAuditRecord = "audit:record"
)

// AuditRecordPayload is the wire form of an audit event.
type AuditRecordPayload struct {
	Actor      string            `json:"actor"`
	Action     string            `json:"action"`
	Subject    string            `json:"subject"`
	Detail     map[string]string `json:"detail,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// NewAuditRecordTask constructs an Asynq task.
func NewAuditRecordTask(payload AuditRecordPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRecord, data), nil
}

// AuditPersister stores delivered audit events.
type AuditPersister interface {
	Persist(ctx context.Context, actor, action, subject string, detail map[string]string, occurredAt time.Time) error
}

// NewAuditRecordHandler returns the worker-side handler for
// TaskAuditRecord tasks. An undecodable payload is dropped rather than
// retried.
func NewAuditRecordHandler(persister AuditPersister) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AuditRecordPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		return persister.Persist(ctx, payload.Actor, payload.Action, payload.Subject, payload.Detail, payload.OccurredAt)
	}
}
