package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/benardelia/fcm-notification-server/internal/store"
)

type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) GetCredential(ctx context.Context, tenantID string) (store.TenantCredential, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT tenant_id, credentials_json, is_default, is_active, created_at
		FROM tenant_credentials WHERE tenant_id=$1 AND is_active
	`, tenantID)
	return scanCredential(row)
}

func (s *Store) GetDefaultCredential(ctx context.Context) (store.TenantCredential, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT tenant_id, credentials_json, is_default, is_active, created_at
		FROM tenant_credentials WHERE is_default AND is_active
		LIMIT 1
	`)
	return scanCredential(row)
}

func scanCredential(row pgx.Row) (store.TenantCredential, bool, error) {
	var c store.TenantCredential
	err := row.Scan(&c.TenantID, &c.CredentialsJSON, &c.IsDefault, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.TenantCredential{}, false, nil
		}
		return store.TenantCredential{}, false, err
	}
	return c, true, nil
}

// DevicesForPhone returns the active devices of the profile with the given
// phone number, newest first.
func (s *Store) DevicesForPhone(ctx context.Context, phone string) ([]store.Device, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT d.id, d.profile_id, p.phone_number, d.device_type, d.push_token,
		       COALESCE(d.app_version,''), d.last_seen, d.is_active
		FROM devices d
		JOIN profiles p ON p.id = d.profile_id
		WHERE p.phone_number=$1 AND d.is_active AND p.is_active
		ORDER BY d.last_seen DESC
	`, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Device
	for rows.Next() {
		var d store.Device
		if err := rows.Scan(&d.ID, &d.ProfileID, &d.PhoneNumber, &d.DeviceType,
			&d.PushToken, &d.AppVersion, &d.LastSeen, &d.IsActive); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RegisterDevice upserts the profile for the phone number and the device for
// the push token. Re-registering an existing token re-activates it and moves
// it to the profile.
func (s *Store) RegisterDevice(ctx context.Context, in store.DeviceRegistration) (store.Device, error) {
	var profileID string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO profiles (id, phone_number)
		VALUES ($1, $2)
		ON CONFLICT (phone_number) DO UPDATE SET phone_number=EXCLUDED.phone_number
		RETURNING id
	`, in.ProfileID, in.PhoneNumber).Scan(&profileID)
	if err != nil {
		return store.Device{}, err
	}

	var d store.Device
	err = s.DB.QueryRow(ctx, `
		INSERT INTO devices (id, profile_id, device_type, push_token, app_version, last_seen, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		ON CONFLICT (push_token) DO UPDATE
		SET profile_id=EXCLUDED.profile_id,
		    device_type=EXCLUDED.device_type,
		    app_version=EXCLUDED.app_version,
		    last_seen=EXCLUDED.last_seen,
		    is_active=true
		RETURNING id, profile_id, device_type, push_token, COALESCE(app_version,''), last_seen, is_active
	`, in.DeviceID, profileID, in.DeviceType, in.PushToken, nullIfEmpty(in.AppVersion), in.Now).
		Scan(&d.ID, &d.ProfileID, &d.DeviceType, &d.PushToken, &d.AppVersion, &d.LastSeen, &d.IsActive)
	if err != nil {
		return store.Device{}, err
	}
	d.PhoneNumber = in.PhoneNumber
	return d, nil
}

// DeactivateStaleDevices flips is_active off for devices not seen since the
// cutoff and returns their ids. Idempotent.
func (s *Store) DeactivateStaleDevices(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
		UPDATE devices SET is_active=false
		WHERE is_active AND last_seen < $1
		RETURNING id
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
