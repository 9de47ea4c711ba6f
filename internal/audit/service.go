package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Service persists audit events. It runs on the worker side of the queue.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs the persister.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Persist writes one event row.
func (s *Service) Persist(ctx context.Context, actor, action, subject string, detail map[string]string, occurredAt time.Time) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("audit: marshal detail: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_events (occurred_at, actor_uuid, action, subject_uuid, detail) VALUES ($1, $2, $3, $4, $5)`,
		occurredAt, actor, action, subject, payload)
	if err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}
