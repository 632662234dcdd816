package repo

import (
	"context"
	"database/sql"

	"honourus/internal/domain"
)

// InsertCreditEntryTx appends a ledger entry. It returns false when an entry for
// the same (source_kind, source_id, user_id) already exists.
func (r Repo) InsertCreditEntryTx(ctx context.Context, tx *sql.Tx, e domain.CreditEntry) (bool, error) {
	res, err := r.exec(ctx, tx, `INSERT INTO credit_ledger(id,user_id,amount,source_kind,source_id,actor_id,created_at) VALUES (?,?,?,?,?,?,?)
ON CONFLICT (source_kind, source_id, user_id) DO NOTHING`,
		e.ID, e.UserID, e.Amount, e.SourceKind, e.SourceID, e.ActorID, e.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r Repo) ListCreditEntries(ctx context.Context, userID string, limit int) ([]domain.CreditEntry, error) {
	q := `SELECT id,user_id,amount,source_kind,source_id,actor_id,created_at FROM credit_ledger WHERE user_id=? ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.query(ctx, nil, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.CreditEntry{}
	for rows.Next() {
		var e domain.CreditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.SourceKind, &e.SourceID, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// CreditBalance pairs a user's stored counter with the ledger sum.
type CreditBalance struct {
	UserID string
	Name   string
	Stored int64
	Ledger int64
}

// CreditBalances reads every user's counter and ledger sum in one statement
// so both come from the same snapshot.
func (r Repo) CreditBalances(ctx context.Context) ([]CreditBalance, error) {
	rows, err := r.query(ctx, nil, `SELECT u.id, u.name, u.credits,
COALESCE((SELECT SUM(l.amount) FROM credit_ledger l WHERE l.user_id=u.id),0)
FROM users u ORDER BY u.id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []CreditBalance{}
	for rows.Next() {
		var b CreditBalance
		if err := rows.Scan(&b.UserID, &b.Name, &b.Stored, &b.Ledger); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// RepairCredits sets the counter to the ledger sum computed in the same
// statement. It reports false when the counter already matched.
func (r Repo) RepairCredits(ctx context.Context, userID, updatedAt string) (bool, error) {
	const sum = `(SELECT COALESCE(SUM(l.amount),0) FROM credit_ledger l WHERE l.user_id=users.id)`
	res, err := r.exec(ctx, nil, `UPDATE users SET credits=`+sum+`, updated_at=? WHERE id=? AND credits<>`+sum, updatedAt, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TotalCreditsAwarded sums the whole ledger.
func (r Repo) TotalCreditsAwarded(ctx context.Context) (int64, error) {
	var total int64
	err := r.queryRow(ctx, nil, `SELECT COALESCE(SUM(amount),0) FROM credit_ledger`).Scan(&total)
	return total, err
}
