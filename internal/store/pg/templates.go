package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/benardelia/fcm-notification-server/internal/store"
)

func (s *Store) GetTemplate(ctx context.Context, name string) (store.Template, bool, error) {
	var t store.Template
	var dataJSON, overridesJSON []byte
	row := s.DB.QueryRow(ctx, `
		SELECT name, title_template, body_template, default_data, platform_overrides, is_active
		FROM templates WHERE name=$1 AND is_active
	`, name)
	err := row.Scan(&t.Name, &t.TitleTemplate, &t.BodyTemplate, &dataJSON, &overridesJSON, &t.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Template{}, false, nil
		}
		return store.Template{}, false, err
	}
	scanJSON(dataJSON, &t.DefaultData, "templates.default_data", t.Name)
	scanJSON(overridesJSON, &t.PlatformOverrides, "templates.platform_overrides", t.Name)
	return t, true, nil
}
