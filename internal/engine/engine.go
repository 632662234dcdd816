package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"honourus/internal/config"
	"honourus/internal/db"
	"honourus/internal/domain"
	"honourus/internal/events"
	"honourus/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(conn *sql.DB, dialect db.Dialect, cfg *config.Config) Engine {
	return Engine{
		DB:     conn,
		Repo:   repo.New(conn, dialect),
		Events: events.Writer{Dialect: dialect},
		Config: cfg,
		Now:    time.Now,
	}
}

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + " " + e.Reason
}

func invalid(field, reason string) error {
	return ValidationError{Field: field, Reason: reason}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return repo.Timestamp(e.now())
}

func (e Engine) policy() *config.Config {
	if e.Config != nil {
		return e.Config
	}
	return config.Default()
}

// eventWriter shares the engine clock with the events writer.
func (e Engine) eventWriter() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// awardCredits appends a ledger entry and bumps the user's counter in tx.
// It returns false when the source already paid out.
func (e Engine) awardCredits(ctx context.Context, tx *sql.Tx, userID string, amount int64, sourceKind, sourceID, actorID string) (bool, error) {
	if amount <= 0 {
		return false, nil
	}
	ts := e.timestamp()
	inserted, err := e.Repo.InsertCreditEntryTx(ctx, tx, domain.CreditEntry{
		ID:         newID(),
		UserID:     userID,
		Amount:     amount,
		SourceKind: sourceKind,
		SourceID:   sourceID,
		ActorID:    actorID,
		CreatedAt:  ts,
	})
	if err != nil {
		return false, fmt.Errorf("insert ledger entry: %w", err)
	}
	if !inserted {
		return false, nil
	}
	if err := e.Repo.IncrementCreditsTx(ctx, tx, userID, amount, ts); err != nil {
		return false, fmt.Errorf("increment credits for %s: %w", userID, err)
	}
	if err := e.eventWriter().Append(ctx, tx, events.CreditsAwarded, "user", userID, actorID, events.EventPayload{
		"amount":      amount,
		"source_kind": sourceKind,
		"source_id":   sourceID,
	}); err != nil {
		return false, err
	}
	return true, nil
}

func contains(items []string, v string) bool {
	for _, it := range items {
		if it == v {
			return true
		}
	}
	return false
}

// normalizeTags trims, drops empties and dedupes while keeping order.
func normalizeTags(in []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// normalizeDate accepts YYYY-MM-DD or RFC 3339 and returns the stored form.
func normalizeDate(field, raw string) (*string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		s := t.Format("2006-01-02")
		return &s, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		s := repo.Timestamp(t)
		return &s, nil
	}
	return nil, invalid(field, "must be YYYY-MM-DD or RFC 3339")
}
