package pg

import (
	"context"
	"time"

	"github.com/benardelia/fcm-notification-server/internal/store"
)

// DueSchedules returns pending or active scheduled notifications whose
// next_run_at has passed.
func (s *Store) DueSchedules(ctx context.Context, now time.Time) ([]store.ScheduledNotification, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, COALESCE(tenant_id,''), COALESCE(title,''), COALESCE(body,''), data_payload,
		       COALESCE(template_name,''), variables, COALESCE(topic,''), phone_numbers,
		       repeat_interval, status, next_run_at, last_sent_at, occurrence_count,
		       COALESCE(max_occurrences,0)
		FROM scheduled_notifications
		WHERE status IN ('pending','active') AND next_run_at IS NOT NULL AND next_run_at <= $1
		ORDER BY next_run_at
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ScheduledNotification
	for rows.Next() {
		var sn store.ScheduledNotification
		var dataJSON, varsJSON []byte
		if err := rows.Scan(&sn.ID, &sn.TenantID, &sn.Title, &sn.Body, &dataJSON,
			&sn.TemplateName, &varsJSON, &sn.Topic, &sn.PhoneNumbers,
			&sn.RepeatInterval, &sn.Status, &sn.NextRunAt, &sn.LastSentAt,
			&sn.OccurrenceCount, &sn.MaxOccurrences); err != nil {
			return nil, err
		}
		scanJSON(dataJSON, &sn.Data, "scheduled_notifications.data_payload", sn.ID)
		scanJSON(varsJSON, &sn.Variables, "scheduled_notifications.variables", sn.ID)
		out = append(out, sn)
	}
	return out, rows.Err()
}

func (s *Store) AdvanceSchedule(ctx context.Context, in store.ScheduleAdvance) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE scheduled_notifications
		SET status=$2, next_run_at=$3, last_sent_at=$4, occurrence_count=$5, updated_at=now()
		WHERE id=$1
	`, in.ID, in.Status, in.NextRunAt, in.LastSentAt, in.OccurrenceCount)
	return err
}

func (s *Store) SetScheduleStatus(ctx context.Context, id, status string) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE scheduled_notifications SET status=$2, updated_at=now() WHERE id=$1
	`, id, status)
	return err
}
