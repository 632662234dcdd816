package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"honourus/internal/domain"
	"honourus/internal/repo"
)

// Legacy document key prefixes.
const (
	KVTaskPrefix        = "task:"
	KVRecognitionPrefix = "recognition:"
	KVTeamPrefix        = "team:"
)

// KVSkip is a legacy document left behind by an import.
type KVSkip struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// KVImportReport summarizes a legacy import.
type KVImportReport struct {
	Imported map[string]int `json:"imported"`
	Existing int            `json:"existing"`
	Skipped  []KVSkip       `json:"skipped"`
}

// ImportKV copies legacy task, recognition and team documents into the
// relational tables. Rows that already exist are left alone, so the import
// can be rerun. Imported recognitions and eligible completed tasks are paid
// through the ledger.
func (e Engine) ImportKV(ctx context.Context) (KVImportReport, error) {
	report := KVImportReport{Imported: map[string]int{"task": 0, "recognition": 0, "team": 0}, Skipped: []KVSkip{}}
	steps := []struct {
		prefix string
		kind   string
		apply  func(context.Context, *sql.Tx, string) (bool, error)
	}{
		{KVTeamPrefix, "team", e.importTeam},
		{KVTaskPrefix, "task", e.importTask},
		{KVRecognitionPrefix, "recognition", e.importRecognition},
	}
	for _, step := range steps {
		entries, err := e.Repo.KVScan(ctx, step.prefix)
		if err != nil {
			return report, fmt.Errorf("scan %s: %w", step.prefix, err)
		}
		for _, entry := range entries {
			created, err := e.importOne(ctx, entry.Value, step.apply)
			var ve ValidationError
			switch {
			case errors.As(err, &ve), errors.Is(err, repo.ErrNotFound):
				report.Skipped = append(report.Skipped, KVSkip{Key: entry.Key, Reason: err.Error()})
			case err != nil:
				return report, fmt.Errorf("import %s: %w", entry.Key, err)
			case created:
				report.Imported[step.kind]++
			default:
				report.Existing++
			}
		}
	}
	return report, nil
}

func (e Engine) importOne(ctx context.Context, value string, apply func(context.Context, *sql.Tx, string) (bool, error)) (bool, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	created, err := apply(ctx, tx, value)
	if err != nil || !created {
		return false, err
	}
	return true, tx.Commit()
}

func (e Engine) importTask(ctx context.Context, tx *sql.Tx, value string) (bool, error) {
	var t domain.Task
	if err := json.Unmarshal([]byte(value), &t); err != nil {
		return false, invalid("document", "is not a task: "+err.Error())
	}
	if t.ID == "" || strings.TrimSpace(t.Title) == "" {
		return false, invalid("document", "task needs id and title")
	}
	exists, err := e.Repo.TaskExistsTx(ctx, tx, t.ID)
	if err != nil || exists {
		return false, err
	}
	if !contains(domain.TaskStatuses, t.Status) {
		t.Status = domain.StatusTodo
	}
	if !contains(domain.TaskPriorities, t.Priority) {
		t.Priority = "medium"
	}
	if t.Type == "" {
		t.Type = "general"
	}
	for _, ts := range []struct {
		field string
		value *string
	}{{"createdAt", &t.CreatedAt}, {"updatedAt", &t.UpdatedAt}, {"completedAt", t.CompletedAt}} {
		if err := normalizeLegacyTimestamp(ts.field, ts.value); err != nil {
			return false, err
		}
	}
	if t.DueDate != nil {
		due, err := normalizeDate("dueDate", *t.DueDate)
		if err != nil {
			return false, err
		}
		t.DueDate = due
	}
	if t.CreatedAt == "" {
		t.CreatedAt = e.timestamp()
	}
	if t.UpdatedAt == "" {
		t.UpdatedAt = t.CreatedAt
	}
	t.Tags = normalizeTags(t.Tags)
	if t.AssigneeID != nil {
		if _, err := e.Repo.GetUserTx(ctx, tx, *t.AssigneeID); err != nil {
			return false, fmt.Errorf("assignee %s: %w", *t.AssigneeID, err)
		}
	}
	if t.TeamID != nil {
		if _, err := e.Repo.GetTeamTx(ctx, tx, *t.TeamID); err != nil {
			return false, fmt.Errorf("team %s: %w", *t.TeamID, err)
		}
	}
	if err := e.Repo.InsertTaskTx(ctx, tx, t); err != nil {
		return false, err
	}
	if t.Status == domain.StatusCompleted && t.AssigneeID != nil && e.completionAwardApplies(t) {
		if _, err := e.awardCredits(ctx, tx, *t.AssigneeID, t.Credits, domain.SourceTask, t.ID, t.CreatedBy); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (e Engine) importRecognition(ctx context.Context, tx *sql.Tx, value string) (bool, error) {
	var rec domain.Recognition
	if err := json.Unmarshal([]byte(value), &rec); err != nil {
		return false, invalid("document", "is not a recognition: "+err.Error())
	}
	if rec.ID == "" || rec.FromUserID == "" || rec.ToUserID == "" {
		return false, invalid("document", "recognition needs id, fromUserId and toUserId")
	}
	if rec.Credits < 0 {
		return false, invalid("credits", "must not be negative")
	}
	exists, err := e.Repo.RecognitionExistsTx(ctx, tx, rec.ID)
	if err != nil || exists {
		return false, err
	}
	for _, id := range []string{rec.FromUserID, rec.ToUserID} {
		if _, err := e.Repo.GetUserTx(ctx, tx, id); err != nil {
			return false, fmt.Errorf("user %s: %w", id, err)
		}
	}
	if rec.Type == "" {
		rec.Type = "achievement"
	}
	if err := normalizeLegacyTimestamp("createdAt", &rec.CreatedAt); err != nil {
		return false, err
	}
	if rec.CreatedAt == "" {
		rec.CreatedAt = e.timestamp()
	}
	if err := e.Repo.InsertRecognitionTx(ctx, tx, rec); err != nil {
		return false, err
	}
	if _, err := e.awardCredits(ctx, tx, rec.ToUserID, rec.Credits, domain.SourceRecognition, rec.ID, rec.FromUserID); err != nil {
		return false, err
	}
	return true, nil
}

func (e Engine) importTeam(ctx context.Context, tx *sql.Tx, value string) (bool, error) {
	var t domain.Team
	if err := json.Unmarshal([]byte(value), &t); err != nil {
		return false, invalid("document", "is not a team: "+err.Error())
	}
	if t.ID == "" || strings.TrimSpace(t.Name) == "" || t.LeaderID == "" {
		return false, invalid("document", "team needs id, name and leaderId")
	}
	if _, err := e.Repo.GetTeamTx(ctx, tx, t.ID); err == nil {
		return false, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return false, err
	}
	if _, err := e.Repo.GetUserTx(ctx, tx, t.LeaderID); err != nil {
		return false, fmt.Errorf("leader %s: %w", t.LeaderID, err)
	}
	if err := normalizeLegacyTimestamp("createdAt", &t.CreatedAt); err != nil {
		return false, err
	}
	if t.CreatedAt == "" {
		t.CreatedAt = e.timestamp()
	}
	t.ChannelIDs = normalizeTags(t.ChannelIDs)
	if err := e.Repo.InsertTeamTx(ctx, tx, t); err != nil {
		return false, err
	}
	members := normalizeTags(append([]string{t.LeaderID}, t.MemberIDs...))
	for _, id := range members {
		if _, err := e.Repo.GetUserTx(ctx, tx, id); errors.Is(err, repo.ErrNotFound) {
			continue
		} else if err != nil {
			return false, err
		}
		if err := e.Repo.AddTeamMemberTx(ctx, tx, t.ID, id, t.CreatedAt); err != nil {
			return false, err
		}
	}
	return true, nil
}

// normalizeLegacyTimestamp rewrites an RFC 3339 value, with or without
// fractional seconds or an offset, into the stored UTC second form.
func normalizeLegacyTimestamp(field string, v *string) error {
	if v == nil {
		return nil
	}
	raw := strings.TrimSpace(*v)
	if raw == "" {
		*v = ""
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return invalid(field, "must be an RFC 3339 timestamp")
	}
	*v = repo.Timestamp(t)
	return nil
}
