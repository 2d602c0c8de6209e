package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/trustflow/service-core/internal/settings"
)

type SettingsRepo struct {
	db *sqlx.DB
}

func NewSettingsRepo(db *sqlx.DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

func (r *SettingsRepo) EnsureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS system_settings (
			name TEXT PRIMARY KEY,
			config JSONB NOT NULL,
			version BIGINT NOT NULL DEFAULT 1,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	return err
}

func (r *SettingsRepo) Get(ctx context.Context, name string) (*settings.Section, error) {
	var sec settings.Section
	err := r.db.GetContext(ctx, &sec, `
		SELECT name, config, version, updated_at
		FROM system_settings
		WHERE name = $1
	`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sec, nil
}

// Upsert writes the section only when the stored version still matches
// expectedVersion. Returns the number of rows written; 0 means the caller
// lost a concurrent update.
func (r *SettingsRepo) Upsert(ctx context.Context, sec *settings.Section, expectedVersion int64) (int64, error) {
	if expectedVersion == 0 {
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO system_settings (name, config, version, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (name) DO NOTHING
		`, sec.Name, []byte(sec.Config), sec.Version, sec.UpdatedAt)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE system_settings
		SET config = $2, version = $3, updated_at = $4
		WHERE name = $1 AND version = $5
	`, sec.Name, []byte(sec.Config), sec.Version, sec.UpdatedAt, expectedVersion)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
