package outbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Reasons are operator-facing; clamp them so a huge broker error cannot
// bloat the row.
const maxDLQReasonLen = 512

// DLQWriter parks undeliverable outbox records in outbox_dlq so the
// dispatcher can move on while an operator (or the DLQ manager's retry
// loop) deals with them.
type DLQWriter struct {
	pool *pgxpool.Pool
}

// NewDLQWriter initialises a writer backed by the provided connection pool.
func NewDLQWriter(pool *pgxpool.Pool) *DLQWriter {
	return &DLQWriter{pool: pool}
}

// Write records a failed outbox message alongside the supplied reason. The
// row is eligible for retry immediately; the DLQ manager applies backoff on
// subsequent failures.
func (w *DLQWriter) Write(ctx context.Context, msg Message, reason string) error {
	if len(reason) > maxDLQReasonLen {
		reason = reason[:maxDLQReasonLen]
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin dlq tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", msg.TenantID); err != nil {
		return fmt.Errorf("set tenant for dlq write: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO outbox_dlq (tenant_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, next_retry_at)
	         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, NOW())`,
		msg.TenantID, msg.EventID, msg.EventType, msg.Topic, msg.Payload, reason,
		msg.AggregateType, msg.AggregateID, msg.SchemaSubject, msg.PartitionKey,
	)
	if err != nil {
		return fmt.Errorf("insert dlq row for event %d: %w", msg.EventID, err)
	}

	return tx.Commit(ctx)
}
