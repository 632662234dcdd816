package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"honourus/internal/db"
	"honourus/internal/domain"
)

const userColumns = `id,email,password_hash,name,role,department,COALESCE(avatar_url,''),credits,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.Department, &u.AvatarURL, &u.Credits, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) InsertUserTx(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := r.exec(ctx, tx, `INSERT INTO users(id,email,password_hash,name,role,department,avatar_url,credits,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		u.ID, strings.ToLower(u.Email), u.PasswordHash, u.Name, u.Role, u.Department, nullable(u.AvatarURL), u.Credits, u.CreatedAt, u.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("email %s: %w", u.Email, ErrDuplicate)
	}
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	return r.GetUserTx(ctx, nil, id)
}

func (r Repo) GetUserTx(ctx context.Context, tx *sql.Tx, id string) (domain.User, error) {
	return scanUser(r.queryRow(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.queryRow(ctx, nil, `SELECT `+userColumns+` FROM users WHERE email=?`, strings.ToLower(strings.TrimSpace(email))))
}

// ListUsers returns users ordered as a leaderboard.
func (r Repo) ListUsers(ctx context.Context, limit int) ([]domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users ORDER BY credits DESC, name ASC, id ASC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.query(ctx, nil, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// UserUpdate holds optional profile fields.
type UserUpdate struct {
	Name       *string
	Department *string
	AvatarURL  *string
	Role       *string
}

func (r Repo) UpdateUserTx(ctx context.Context, tx *sql.Tx, id string, upd UserUpdate, updatedAt string) error {
	var (
		fields []string
		args   []any
	)
	if upd.Name != nil {
		fields = append(fields, "name=?")
		args = append(args, *upd.Name)
	}
	if upd.Department != nil {
		fields = append(fields, "department=?")
		args = append(args, *upd.Department)
	}
	if upd.AvatarURL != nil {
		fields = append(fields, "avatar_url=?")
		args = append(args, nullable(*upd.AvatarURL))
	}
	if upd.Role != nil {
		fields = append(fields, "role=?")
		args = append(args, *upd.Role)
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := r.exec(ctx, tx, fmt.Sprintf(`UPDATE users SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// IncrementCreditsTx adds amount to the stored counter in a single statement.
func (r Repo) IncrementCreditsTx(ctx context.Context, tx *sql.Tx, userID string, amount int64, updatedAt string) error {
	res, err := r.exec(ctx, tx, `UPDATE users SET credits=credits+?, updated_at=? WHERE id=?`, amount, updatedAt, userID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}
