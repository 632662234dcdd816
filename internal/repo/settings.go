package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"honourus/internal/config"
)

const policyKey = "policy"

// GetPolicy loads the stored policy document.
func (r Repo) GetPolicy(ctx context.Context) (*config.Config, error) {
	var raw string
	err := r.queryRow(ctx, nil, `SELECT value FROM settings WHERE key=?`, policyKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	cfg, err := config.FromYAML([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("stored policy: %w", err)
	}
	return cfg, nil
}

// PutPolicy validates and stores the policy document.
func (r Repo) PutPolicy(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := cfg.ToYAML()
	if err != nil {
		return err
	}
	_, err = r.exec(ctx, nil, `INSERT INTO settings(key,value,updated_at) VALUES (?,?,?)
ON CONFLICT (key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		policyKey, string(data), Timestamp(time.Now()))
	return err
}
