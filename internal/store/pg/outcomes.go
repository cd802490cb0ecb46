package pg

import (
	"context"

	"github.com/benardelia/fcm-notification-server/internal/store"
)

// UpsertOutcome writes the ledger row for one (notification, device) pair.
// A retry for the same pair overwrites the earlier attempt's row.
func (s *Store) UpsertOutcome(ctx context.Context, in store.OutcomeUpsert) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO delivery_outcomes (notification_id, device_id, status, delivered_at, error_message)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (notification_id, device_id)
		DO UPDATE SET status=EXCLUDED.status,
		              delivered_at=EXCLUDED.delivered_at,
		              error_message=EXCLUDED.error_message
	`, in.NotificationID, in.DeviceID, in.Status, in.DeliveredAt, nullIfEmpty(in.ErrorMessage))
	return err
}

func (s *Store) ListOutcomes(ctx context.Context, f store.OutcomeFilter) ([]store.DeliveryOutcome, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT notification_id, device_id, status, delivered_at, read_at, COALESCE(error_message,'')
		FROM delivery_outcomes
		WHERE ($1='' OR notification_id=$1)
		  AND ($2='' OR device_id=$2)
		  AND ($3='' OR status=$3)
		ORDER BY notification_id, device_id
	`, f.NotificationID, f.DeviceID, f.Status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.DeliveryOutcome
	for rows.Next() {
		var o store.DeliveryOutcome
		if err := rows.Scan(&o.NotificationID, &o.DeviceID, &o.Status,
			&o.DeliveredAt, &o.ReadAt, &o.ErrorMessage); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// MarkOutcomeRead stamps read_at for an existing ledger row. Returns false if
// no row exists for the pair.
func (s *Store) MarkOutcomeRead(ctx context.Context, notificationID, deviceID string) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE delivery_outcomes SET status='read', read_at=now()
		WHERE notification_id=$1 AND device_id=$2
	`, notificationID, deviceID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}
