package engine

import (
	"context"
	"fmt"
	"strings"

	"honourus/internal/config"
	"honourus/internal/domain"
	"honourus/internal/events"
	"honourus/internal/repo"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	Title         string
	Description   string
	Type          string
	Priority      string
	AssigneeID    string
	TeamID        string
	Credits       *int64
	RequiresProof bool
	Tags          []string
	DueDate       string
	ActorID       string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return domain.Task{}, invalid("title", "is required")
	}
	if opts.Type == "" {
		opts.Type = "general"
	}
	if opts.Priority == "" {
		opts.Priority = "medium"
	}
	if !contains(domain.TaskPriorities, opts.Priority) {
		return domain.Task{}, invalid("priority", "must be one of "+strings.Join(domain.TaskPriorities, ", "))
	}
	credits := e.policy().TaskCredits(opts.Priority)
	if opts.Credits != nil {
		if *opts.Credits < 0 {
			return domain.Task{}, invalid("credits", "must not be negative")
		}
		credits = *opts.Credits
	}
	due, err := normalizeDate("dueDate", opts.DueDate)
	if err != nil {
		return domain.Task{}, err
	}
	now := e.timestamp()
	t := domain.Task{
		ID:            newID(),
		Title:         title,
		Description:   opts.Description,
		Type:          opts.Type,
		Priority:      opts.Priority,
		Status:        domain.StatusTodo,
		CreatedBy:     opts.ActorID,
		Credits:       credits,
		RequiresProof: opts.RequiresProof,
		Tags:          normalizeTags(opts.Tags),
		DueDate:       due,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if opts.AssigneeID != "" {
		if _, err := e.Repo.GetUserTx(ctx, tx, opts.AssigneeID); err != nil {
			return domain.Task{}, fmt.Errorf("assignee %s: %w", opts.AssigneeID, err)
		}
		assignee := opts.AssigneeID
		t.AssigneeID = &assignee
	}
	if opts.TeamID != "" {
		if _, err := e.Repo.GetTeamTx(ctx, tx, opts.TeamID); err != nil {
			return domain.Task{}, fmt.Errorf("team %s: %w", opts.TeamID, err)
		}
		team := opts.TeamID
		t.TeamID = &team
	}
	if err := e.Repo.InsertTaskTx(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := e.eventWriter().Append(ctx, tx, events.TaskCreated, "task", t.ID, opts.ActorID, events.EventPayload{
		"title":    t.Title,
		"priority": t.Priority,
		"credits":  t.Credits,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// TaskUpdateOptions carries a partial task update. Nil fields are unchanged.
type TaskUpdateOptions struct {
	ID              string
	ActorID         string
	Title           *string
	Description     *string
	Type            *string
	Priority        *string
	Status          *string
	AssigneeID      *string
	TeamID          *string
	Credits         *int64
	RequiresProof   *bool
	ProofUploaded   *bool
	ProofURL        *string
	RejectionReason *string
	TagsSet         bool
	Tags            []string
	DueDate         *string
}

// TaskUpdateResult is the saved task and the credits paid by this update.
type TaskUpdateResult struct {
	Task           domain.Task
	CreditsAwarded int64
}

// UpdateTask applies opts and, on a transition into completed, pays the
// assignee according to the completion award policy.
func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (TaskUpdateResult, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return TaskUpdateResult{}, err
	}
	defer tx.Rollback()

	prior, err := e.Repo.GetTaskTx(ctx, tx, opts.ID)
	if err != nil {
		return TaskUpdateResult{}, err
	}
	t := prior
	changed := []string{}

	if opts.Title != nil {
		title := strings.TrimSpace(*opts.Title)
		if title == "" {
			return TaskUpdateResult{}, invalid("title", "must not be empty")
		}
		t.Title = title
		changed = append(changed, "title")
	}
	if opts.Description != nil {
		t.Description = *opts.Description
		changed = append(changed, "description")
	}
	if opts.Type != nil {
		if strings.TrimSpace(*opts.Type) == "" {
			return TaskUpdateResult{}, invalid("type", "must not be empty")
		}
		t.Type = *opts.Type
		changed = append(changed, "type")
	}
	if opts.Priority != nil {
		if !contains(domain.TaskPriorities, *opts.Priority) {
			return TaskUpdateResult{}, invalid("priority", "must be one of "+strings.Join(domain.TaskPriorities, ", "))
		}
		t.Priority = *opts.Priority
		changed = append(changed, "priority")
	}
	if opts.Credits != nil {
		if *opts.Credits < 0 {
			return TaskUpdateResult{}, invalid("credits", "must not be negative")
		}
		t.Credits = *opts.Credits
		changed = append(changed, "credits")
	}
	if opts.AssigneeID != nil {
		if *opts.AssigneeID == "" {
			t.AssigneeID = nil
		} else {
			if _, err := e.Repo.GetUserTx(ctx, tx, *opts.AssigneeID); err != nil {
				return TaskUpdateResult{}, fmt.Errorf("assignee %s: %w", *opts.AssigneeID, err)
			}
			assignee := *opts.AssigneeID
			t.AssigneeID = &assignee
		}
		changed = append(changed, "assigneeId")
	}
	if opts.TeamID != nil {
		if *opts.TeamID == "" {
			t.TeamID = nil
		} else {
			if _, err := e.Repo.GetTeamTx(ctx, tx, *opts.TeamID); err != nil {
				return TaskUpdateResult{}, fmt.Errorf("team %s: %w", *opts.TeamID, err)
			}
			team := *opts.TeamID
			t.TeamID = &team
		}
		changed = append(changed, "teamId")
	}
	if opts.RequiresProof != nil {
		t.RequiresProof = *opts.RequiresProof
		changed = append(changed, "requiresProof")
	}
	if opts.ProofURL != nil {
		url := strings.TrimSpace(*opts.ProofURL)
		if url == "" {
			t.ProofURL = nil
		} else {
			t.ProofURL = &url
			if opts.ProofUploaded == nil {
				t.ProofUploaded = true
			}
		}
		changed = append(changed, "proofUrl")
	}
	if opts.ProofUploaded != nil {
		t.ProofUploaded = *opts.ProofUploaded
		changed = append(changed, "proofUploaded")
	}
	if opts.RejectionReason != nil {
		reason := strings.TrimSpace(*opts.RejectionReason)
		if reason == "" {
			t.RejectionReason = nil
		} else {
			t.RejectionReason = &reason
		}
		changed = append(changed, "rejectionReason")
	}
	if opts.TagsSet {
		t.Tags = normalizeTags(opts.Tags)
		changed = append(changed, "tags")
	}
	if opts.DueDate != nil {
		due, err := normalizeDate("dueDate", *opts.DueDate)
		if err != nil {
			return TaskUpdateResult{}, err
		}
		t.DueDate = due
		changed = append(changed, "dueDate")
	}

	now := e.timestamp()
	completing := false
	if opts.Status != nil && *opts.Status != prior.Status {
		if !contains(domain.TaskStatuses, *opts.Status) {
			return TaskUpdateResult{}, invalid("status", "must be one of "+strings.Join(domain.TaskStatuses, ", "))
		}
		t.Status = *opts.Status
		changed = append(changed, "status")
		if t.Status == domain.StatusCompleted {
			completing = true
			t.CompletedAt = &now
		} else {
			t.CompletedAt = nil
		}
	}
	t.UpdatedAt = now

	if err := e.Repo.SaveTaskTx(ctx, tx, t); err != nil {
		return TaskUpdateResult{}, fmt.Errorf("save task: %w", err)
	}
	if err := e.eventWriter().Append(ctx, tx, events.TaskUpdated, "task", t.ID, opts.ActorID, events.EventPayload{
		"changed": changed,
		"status":  t.Status,
	}); err != nil {
		return TaskUpdateResult{}, err
	}

	result := TaskUpdateResult{Task: t}
	if completing {
		if err := e.eventWriter().Append(ctx, tx, events.TaskCompleted, "task", t.ID, opts.ActorID, events.EventPayload{
			"assignee_id": strPtrValue(t.AssigneeID),
			"credits":     t.Credits,
		}); err != nil {
			return TaskUpdateResult{}, err
		}
		if t.AssigneeID != nil && e.completionAwardApplies(prior) {
			paid, err := e.awardCredits(ctx, tx, *t.AssigneeID, t.Credits, domain.SourceTask, t.ID, opts.ActorID)
			if err != nil {
				return TaskUpdateResult{}, err
			}
			if paid {
				result.CreditsAwarded = t.Credits
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return TaskUpdateResult{}, err
	}
	return result, nil
}

// completionAwardApplies evaluates the award gate against the record as it
// was before the update.
func (e Engine) completionAwardApplies(prior domain.Task) bool {
	switch e.policy().Credits.CompletionAward {
	case config.AwardOnCompletion:
		return !prior.RequiresProof || prior.ProofUploaded
	default:
		return prior.RequiresProof && prior.ProofUploaded
	}
}

func strPtrValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// ListTasks is a thin pass-through kept on the engine for the CLI and server.
func (e Engine) ListTasks(ctx context.Context, f repo.TaskFilters) ([]domain.Task, error) {
	if f.Status != "" && !contains(domain.TaskStatuses, f.Status) {
		return nil, invalid("status", "must be one of "+strings.Join(domain.TaskStatuses, ", "))
	}
	return e.Repo.ListTasks(ctx, f)
}
