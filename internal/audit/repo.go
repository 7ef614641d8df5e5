package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

type PGRecorder struct{ DB *pgxpool.Pool }

// Record is idempotent on event id.
func (r *PGRecorder) Record(ctx context.Context, e Entry) error {
	res := e.Payload.Reservation
	_, err := r.DB.Exec(ctx, `
		INSERT INTO reservation_audit(event_id, event_type, reservation_id, item_id, owner,
		                              start_time, end_time, producer, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (event_id) DO NOTHING`,
		e.Envelope.EventID, e.Envelope.EventType, res.ID, res.Target, res.Owner,
		res.StartTime, res.EndTime, e.Envelope.Producer, e.Envelope.OccurredAt,
	)
	return errors.Wrapf(err, "record event %s", e.Envelope.EventID)
}
