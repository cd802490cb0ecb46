package pg

import (
	"context"

	"github.com/benardelia/fcm-notification-server/internal/store"
)

// ActiveSubscriptions returns the active webhook subscriptions for a tenant.
// Event filtering happens in the dispatcher.
func (s *Store) ActiveSubscriptions(ctx context.Context, tenantID string) ([]store.WebhookSubscription, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, tenant_id, url, events, secret_key, is_active, failure_count, last_triggered_at
		FROM webhook_subscriptions
		WHERE tenant_id=$1 AND is_active
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.WebhookSubscription
	for rows.Next() {
		var w store.WebhookSubscription
		if err := rows.Scan(&w.ID, &w.TenantID, &w.URL, &w.Events, &w.Secret,
			&w.IsActive, &w.FailureCount, &w.LastTriggeredAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// UpdateWebhookDelivery applies one delivery result. The increment happens in
// SQL so concurrent deliveries to the same endpoint never lose a failure.
func (s *Store) UpdateWebhookDelivery(ctx context.Context, in store.WebhookDeliveryResult) (store.WebhookSubscriptionState, error) {
	var st store.WebhookSubscriptionState
	err := s.DB.QueryRow(ctx, `
		UPDATE webhook_subscriptions
		SET failure_count = CASE WHEN $2 THEN 0 ELSE failure_count + 1 END,
		    is_active     = CASE WHEN $2 THEN true ELSE failure_count + 1 < $3 END,
		    last_triggered_at = $4
		WHERE id=$1
		RETURNING failure_count, is_active
	`, in.ID, in.Success, in.Threshold, in.Now).Scan(&st.FailureCount, &st.IsActive)
	return st, err
}
