package consumer

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditHandler writes consumed events into Postgres for downstream auditing.
type AuditHandler struct {
	pool *pgxpool.Pool
}

// NewAuditHandler constructs a handler backed by the provided pool.
func NewAuditHandler(pool *pgxpool.Pool) *AuditHandler {
	return &AuditHandler{pool: pool}
}

// Handle stores the event payload in the reward_event_log table.
func (h *AuditHandler) Handle(ctx context.Context, evt Event) error {
	conn, err := h.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx,
		`INSERT INTO reward_event_log (event_type, tenant_id, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		evt.EventType,
		evt.TenantID,
		evt.SchemaID,
		evt.SchemaSubject,
		evt.Topic,
		evt.Partition,
		evt.Offset,
		evt.Payload,
		evt.Timestamp,
	)
	return err
}

// MultiHandler fans an event out to several handlers in order, stopping at
// the first error so the offset is not committed.
type MultiHandler []Handler

func (m MultiHandler) Handle(ctx context.Context, evt Event) error {
	for _, h := range m {
		if err := h.Handle(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}
