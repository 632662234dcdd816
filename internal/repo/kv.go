package repo

import (
	"context"
	"database/sql"
	"strings"
)

// KVEntry is a row of the legacy document table.
type KVEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (r Repo) KVGet(ctx context.Context, key string) (string, error) {
	var v string
	err := r.queryRow(ctx, nil, `SELECT value FROM kv_store WHERE key=?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return v, err
}

func (r Repo) KVSet(ctx context.Context, key, value string) error {
	_, err := r.exec(ctx, nil, `INSERT INTO kv_store(key,value) VALUES (?,?)
ON CONFLICT (key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

func (r Repo) KVDelete(ctx context.Context, key string) error {
	res, err := r.exec(ctx, nil, `DELETE FROM kv_store WHERE key=?`, key)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// KVScan returns entries whose key starts with prefix, ordered by key.
func (r Repo) KVScan(ctx context.Context, prefix string) ([]KVEntry, error) {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	rows, err := r.query(ctx, nil, `SELECT key,value FROM kv_store WHERE key LIKE ? ESCAPE '\' ORDER BY key ASC`, escaped+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []KVEntry{}
	for rows.Next() {
		var e KVEntry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
