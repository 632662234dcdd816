package repo

import (
	"context"
	"database/sql"

	"honourus/internal/domain"
)

const recognitionColumns = `id,from_user_id,to_user_id,message,credits,type,created_at`

func scanRecognition(row rowScanner) (domain.Recognition, error) {
	var rec domain.Recognition
	err := row.Scan(&rec.ID, &rec.FromUserID, &rec.ToUserID, &rec.Message, &rec.Credits, &rec.Type, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return rec, ErrNotFound
	}
	return rec, err
}

func (r Repo) InsertRecognitionTx(ctx context.Context, tx *sql.Tx, rec domain.Recognition) error {
	_, err := r.exec(ctx, tx, `INSERT INTO recognitions(`+recognitionColumns+`) VALUES (?,?,?,?,?,?,?)`,
		rec.ID, rec.FromUserID, rec.ToUserID, rec.Message, rec.Credits, rec.Type, rec.CreatedAt)
	return err
}

func (r Repo) GetRecognition(ctx context.Context, id string) (domain.Recognition, error) {
	return scanRecognition(r.queryRow(ctx, nil, `SELECT `+recognitionColumns+` FROM recognitions WHERE id=?`, id))
}

// ListRecognitions returns recognitions newest first; userID filters on sender or recipient.
func (r Repo) ListRecognitions(ctx context.Context, userID string, limit int) ([]domain.Recognition, error) {
	q := `SELECT ` + recognitionColumns + ` FROM recognitions`
	var args []any
	if userID != "" {
		q += ` WHERE from_user_id=? OR to_user_id=?`
		args = append(args, userID, userID)
	}
	q += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.collectRecognitions(ctx, q, args...)
}

// RecognitionsReceivedBetween returns recognitions for userID created in [from, to).
func (r Repo) RecognitionsReceivedBetween(ctx context.Context, userID, from, to string) ([]domain.Recognition, error) {
	return r.collectRecognitions(ctx, `SELECT `+recognitionColumns+` FROM recognitions WHERE to_user_id=? AND created_at>=? AND created_at<=? ORDER BY created_at ASC`,
		userID, from, to)
}

func (r Repo) collectRecognitions(ctx context.Context, q string, args ...any) ([]domain.Recognition, error) {
	rows, err := r.query(ctx, nil, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Recognition{}
	for rows.Next() {
		rec, err := scanRecognition(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// RecognitionCounts returns how many recognitions userID sent and received.
func (r Repo) RecognitionCounts(ctx context.Context, userID string) (sent, received int, err error) {
	err = r.queryRow(ctx, nil, `SELECT
  COALESCE(SUM(CASE WHEN from_user_id=? THEN 1 ELSE 0 END),0),
  COALESCE(SUM(CASE WHEN to_user_id=? THEN 1 ELSE 0 END),0)
FROM recognitions`, userID, userID).Scan(&sent, &received)
	return sent, received, err
}

// RecognitionTypeCount is a recognition type with its frequency.
type RecognitionTypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

func (r Repo) RecognitionTypeCounts(ctx context.Context) ([]RecognitionTypeCount, error) {
	rows, err := r.query(ctx, nil, `SELECT type, COUNT(*) AS n FROM recognitions GROUP BY type ORDER BY n DESC, type ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []RecognitionTypeCount{}
	for rows.Next() {
		var c RecognitionTypeCount
		if err := rows.Scan(&c.Type, &c.Count); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) RecognitionExistsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var n int
	err := r.queryRow(ctx, tx, `SELECT 1 FROM recognitions WHERE id=?`, id).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}
