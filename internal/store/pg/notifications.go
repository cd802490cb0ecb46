package pg

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/benardelia/fcm-notification-server/internal/store"
)

func (s *Store) InsertNotification(ctx context.Context, in store.NotificationInsert) error {
	b, _ := json.Marshal(in.Data)
	_, err := s.DB.Exec(ctx, `
		INSERT INTO notifications (id, tenant_id, title, body, data_payload, image_url,
		                           priority, is_silent, click_action, status, retry_count,
		                           created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,0,$11,$11)
	`, in.ID, nullIfEmpty(in.TenantID), in.Title, in.Body, b, nullIfEmpty(in.ImageURL),
		in.Priority, in.Silent, nullIfEmpty(in.ClickAction), in.Status, in.Now)
	return err
}

func (s *Store) UpdateNotificationStatus(ctx context.Context, in store.NotificationStatusUpdate) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE notifications SET status=$2, retry_count=$3, sent_at=$4, updated_at=$5 WHERE id=$1
	`, in.ID, in.Status, in.RetryCount, in.SentAt, in.Now)
	return err
}

func (s *Store) GetNotification(ctx context.Context, id string) (store.Notification, bool, error) {
	var n store.Notification
	var dataJSON []byte
	row := s.DB.QueryRow(ctx, `
		SELECT id, COALESCE(tenant_id,''), title, body, data_payload, COALESCE(image_url,''),
		       priority, is_silent, COALESCE(click_action,''), status, retry_count,
		       created_at, scheduled_at, sent_at
		FROM notifications WHERE id=$1
	`, id)
	err := row.Scan(&n.ID, &n.TenantID, &n.Title, &n.Body, &dataJSON, &n.ImageURL,
		&n.Priority, &n.Silent, &n.ClickAction, &n.Status, &n.RetryCount,
		&n.CreatedAt, &n.ScheduledAt, &n.SentAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Notification{}, false, nil
		}
		return store.Notification{}, false, err
	}
	scanJSON(dataJSON, &n.Data, "notifications.data_payload", n.ID)
	return n, true, nil
}
