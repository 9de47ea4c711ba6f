// Package audit records who changed what. Mutations enqueue events through
// the Recorder; the worker binary drains the queue and persists them.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/arkivo/arkivo/jobs"
)

// Event is one recorded mutation.
type Event struct {
	Actor   uuid.UUID
	Action  string
	Subject uuid.UUID
	Detail  map[string]string
}

// Recorder enqueues audit events. Enqueueing is best effort: a failure is
// logged and never fails the mutation that produced the event.
type Recorder struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewRecorder constructs a recorder. client may be nil, which disables
// recording (dev backend without redis).
func NewRecorder(client *asynq.Client, logger *slog.Logger) *Recorder {
	return &Recorder{client: client, logger: logger}
}

// Record enqueues one event.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	if r == nil || r.client == nil {
		return
	}
	task, err := jobs.NewAuditRecordTask(jobs.AuditRecordPayload{
		Actor:      ev.Actor.String(),
		Action:     ev.Action,
		Subject:    ev.Subject.String(),
		Detail:     ev.Detail,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		r.logger.Warn("audit task build", slog.Any("error", err))
		return
	}
	if _, err := r.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault)); err != nil {
		r.logger.Warn("audit enqueue", slog.Any("error", err))
	}
}
