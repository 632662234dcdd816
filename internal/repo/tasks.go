package repo

import (
	"context"
	"database/sql"
	"strings"

	"honourus/internal/domain"
)

const taskColumns = `id,title,description,type,priority,status,assignee_id,created_by,team_id,credits,requires_proof,proof_uploaded,proof_url,rejection_reason,tags_json,due_date,created_at,updated_at,completed_at`

func scanTask(row rowScanner) (domain.Task, error) {
	var (
		t                   domain.Task
		assignee, team      sql.NullString
		proofURL, rejection sql.NullString
		due, completed      sql.NullString
		tags                string
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Type, &t.Priority, &t.Status, &assignee, &t.CreatedBy, &team,
		&t.Credits, &t.RequiresProof, &t.ProofUploaded, &proofURL, &rejection, &tags, &due, &t.CreatedAt, &t.UpdatedAt, &completed)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.AssigneeID = ptrFromNull(assignee)
	t.TeamID = ptrFromNull(team)
	t.ProofURL = ptrFromNull(proofURL)
	t.RejectionReason = ptrFromNull(rejection)
	t.DueDate = ptrFromNull(due)
	t.CompletedAt = ptrFromNull(completed)
	t.Tags = decodeStrings(tags)
	return t, nil
}

func (r Repo) InsertTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := r.exec(ctx, tx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, t.Description, t.Type, t.Priority, t.Status, nullablePtr(t.AssigneeID), t.CreatedBy, nullablePtr(t.TeamID),
		t.Credits, t.RequiresProof, t.ProofUploaded, nullablePtr(t.ProofURL), nullablePtr(t.RejectionReason), encodeStrings(t.Tags),
		nullablePtr(t.DueDate), t.CreatedAt, t.UpdatedAt, nullablePtr(t.CompletedAt))
	return err
}

// SaveTaskTx writes every mutable column of t.
func (r Repo) SaveTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := r.exec(ctx, tx, `UPDATE tasks SET title=?,description=?,type=?,priority=?,status=?,assignee_id=?,team_id=?,credits=?,requires_proof=?,proof_uploaded=?,proof_url=?,rejection_reason=?,tags_json=?,due_date=?,updated_at=?,completed_at=? WHERE id=?`,
		t.Title, t.Description, t.Type, t.Priority, t.Status, nullablePtr(t.AssigneeID), nullablePtr(t.TeamID), t.Credits,
		t.RequiresProof, t.ProofUploaded, nullablePtr(t.ProofURL), nullablePtr(t.RejectionReason), encodeStrings(t.Tags),
		nullablePtr(t.DueDate), t.UpdatedAt, nullablePtr(t.CompletedAt), t.ID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return r.GetTaskTx(ctx, nil, id)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	return scanTask(r.queryRow(ctx, tx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

type TaskFilters struct {
	Status     string
	AssigneeID string
	TeamID     string
	Limit      int
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status=?")
		args = append(args, f.Status)
	}
	if f.AssigneeID != "" {
		where = append(where, "assignee_id=?")
		args = append(args, f.AssigneeID)
	}
	if f.TeamID != "" {
		where = append(where, "team_id=?")
		args = append(args, f.TeamID)
	}
	q := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.query(ctx, nil, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// CountTasksByStatus returns task counts keyed by status, optionally for one assignee.
func (r Repo) CountTasksByStatus(ctx context.Context, assigneeID string) (map[string]int, error) {
	q := `SELECT status, COUNT(*) FROM tasks`
	var args []any
	if assigneeID != "" {
		q += ` WHERE assignee_id=?`
		args = append(args, assigneeID)
	}
	q += ` GROUP BY status`
	rows, err := r.query(ctx, nil, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for _, s := range domain.TaskStatuses {
		counts[s] = 0
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// TaskReportRow is a task joined with its assignee identity.
type TaskReportRow struct {
	TaskID        string
	Title         string
	Status        string
	Credits       int64
	Tags          []string
	UpdatedAt     string
	CompletedAt   *string
	AssigneeID    string
	AssigneeName  string
	AssigneeEmail string
	Department    string
}

type ReportFilters struct {
	TeamID string
	From   string
	To     string
}

// TasksForReport returns assigned tasks filtered by team and creation window.
func (r Repo) TasksForReport(ctx context.Context, f ReportFilters) ([]TaskReportRow, error) {
	where := []string{"t.assignee_id IS NOT NULL"}
	var args []any
	if f.TeamID != "" {
		where = append(where, "t.team_id=?")
		args = append(args, f.TeamID)
	}
	if f.From != "" {
		where = append(where, "t.created_at>=?")
		args = append(args, f.From)
	}
	if f.To != "" {
		where = append(where, "t.created_at<=?")
		args = append(args, f.To)
	}
	q := `SELECT t.id,t.title,t.status,t.credits,t.tags_json,t.updated_at,t.completed_at,u.id,u.name,u.email,u.department
FROM tasks t JOIN users u ON u.id=t.assignee_id
WHERE ` + strings.Join(where, " AND ") + `
ORDER BY t.created_at ASC, t.id ASC`
	rows, err := r.query(ctx, nil, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []TaskReportRow{}
	for rows.Next() {
		var (
			row       TaskReportRow
			tags      string
			completed sql.NullString
		)
		if err := rows.Scan(&row.TaskID, &row.Title, &row.Status, &row.Credits, &tags, &row.UpdatedAt, &completed,
			&row.AssigneeID, &row.AssigneeName, &row.AssigneeEmail, &row.Department); err != nil {
			return nil, err
		}
		row.Tags = decodeStrings(tags)
		row.CompletedAt = ptrFromNull(completed)
		res = append(res, row)
	}
	return res, rows.Err()
}

// CompletedTasksBetween returns a user's completed tasks updated in [from, to).
func (r Repo) CompletedTasksBetween(ctx context.Context, userID, from, to string) ([]domain.Task, error) {
	rows, err := r.query(ctx, nil, `SELECT `+taskColumns+` FROM tasks WHERE assignee_id=? AND status=? AND updated_at>=? AND updated_at<=? ORDER BY updated_at ASC`,
		userID, domain.StatusCompleted, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// TaskExistsTx reports whether a task id is taken.
func (r Repo) TaskExistsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var n int
	err := r.queryRow(ctx, tx, `SELECT 1 FROM tasks WHERE id=?`, id).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}
