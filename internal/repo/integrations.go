package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"honourus/internal/domain"
)

const integrationColumns = `id,user_id,service,access_token,refresh_token,token_expires_at,workspace_id,workspace_name,settings_json,is_active,created_at,updated_at`

func scanIntegration(row rowScanner) (domain.Integration, error) {
	var (
		in       domain.Integration
		expires  sql.NullString
		settings string
	)
	err := row.Scan(&in.ID, &in.UserID, &in.Service, &in.AccessToken, &in.RefreshToken, &expires, &in.WorkspaceID,
		&in.WorkspaceName, &settings, &in.IsActive, &in.CreatedAt, &in.UpdatedAt)
	if err == sql.ErrNoRows {
		return in, ErrNotFound
	}
	if err != nil {
		return in, err
	}
	in.TokenExpiresAt = ptrFromNull(expires)
	if settings != "" {
		if err := json.Unmarshal([]byte(settings), &in.Settings); err != nil {
			return in, fmt.Errorf("decode integration settings: %w", err)
		}
	}
	return in, nil
}

// UpsertIntegrationTx inserts or replaces the integration keyed on (user_id, service).
// Settings of an existing row are kept.
func (r Repo) UpsertIntegrationTx(ctx context.Context, tx *sql.Tx, in domain.Integration) (domain.Integration, error) {
	settings, err := json.Marshal(in.Settings)
	if err != nil {
		return domain.Integration{}, err
	}
	_, err = r.exec(ctx, tx, `INSERT INTO integrations(`+integrationColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT (user_id, service) DO UPDATE SET
  access_token=excluded.access_token,
  refresh_token=excluded.refresh_token,
  token_expires_at=excluded.token_expires_at,
  workspace_id=excluded.workspace_id,
  workspace_name=excluded.workspace_name,
  is_active=excluded.is_active,
  updated_at=excluded.updated_at`,
		in.ID, in.UserID, in.Service, in.AccessToken, in.RefreshToken, nullablePtr(in.TokenExpiresAt), in.WorkspaceID,
		in.WorkspaceName, string(settings), in.IsActive, in.CreatedAt, in.UpdatedAt)
	if err != nil {
		return domain.Integration{}, err
	}
	return r.getIntegration(ctx, tx, in.UserID, in.Service)
}

func (r Repo) GetIntegration(ctx context.Context, userID, service string) (domain.Integration, error) {
	return r.getIntegration(ctx, nil, userID, service)
}

func (r Repo) getIntegration(ctx context.Context, tx *sql.Tx, userID, service string) (domain.Integration, error) {
	return scanIntegration(r.queryRow(ctx, tx, `SELECT `+integrationColumns+` FROM integrations WHERE user_id=? AND service=?`, userID, service))
}

func (r Repo) ListIntegrations(ctx context.Context, userID string) ([]domain.Integration, error) {
	rows, err := r.query(ctx, nil, `SELECT `+integrationColumns+` FROM integrations WHERE user_id=? ORDER BY service ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Integration{}
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, in)
	}
	return res, rows.Err()
}

func (r Repo) UpdateIntegrationSettings(ctx context.Context, userID, service string, settings domain.IntegrationSettings, updatedAt string) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	res, err := r.exec(ctx, nil, `UPDATE integrations SET settings_json=?, updated_at=? WHERE user_id=? AND service=?`, string(data), updatedAt, userID, service)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r Repo) InsertOAuthState(ctx context.Context, s domain.OAuthState) error {
	_, err := r.exec(ctx, nil, `INSERT INTO oauth_states(state,user_id,service,redirect_uri,expires_at,created_at) VALUES (?,?,?,?,?,?)`,
		s.State, s.UserID, s.Service, s.RedirectURI, s.ExpiresAt, s.CreatedAt)
	return err
}

func (r Repo) GetOAuthState(ctx context.Context, state string) (domain.OAuthState, error) {
	var s domain.OAuthState
	err := r.queryRow(ctx, nil, `SELECT state,user_id,service,redirect_uri,expires_at,created_at FROM oauth_states WHERE state=?`, state).
		Scan(&s.State, &s.UserID, &s.Service, &s.RedirectURI, &s.ExpiresAt, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) DeleteOAuthStateTx(ctx context.Context, tx *sql.Tx, state string) error {
	_, err := r.exec(ctx, tx, `DELETE FROM oauth_states WHERE state=?`, state)
	return err
}

// PurgeExpiredOAuthStates deletes states that expired before now.
func (r Repo) PurgeExpiredOAuthStates(ctx context.Context, now string) (int64, error) {
	res, err := r.exec(ctx, nil, `DELETE FROM oauth_states WHERE expires_at<?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
