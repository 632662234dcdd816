// Package analytics builds the unsung-hero report, the contribution heatmap
// and the dashboard summary from repository rows.
package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"honourus/internal/domain"
	"honourus/internal/repo"
)

const (
	MinYear          = 1970
	MaxYear          = 9999
	leaderboardLimit = 10
)

// InputError reports a rejected query parameter.
type InputError struct {
	Field  string
	Reason string
}

func (e InputError) Error() string { return e.Field + " " + e.Reason }

type Service struct {
	Repo repo.Repo
}

func New(r repo.Repo) Service {
	return Service{Repo: r}
}

// UnsungHeroQuery filters the report. Dates are inclusive.
type UnsungHeroQuery struct {
	TeamID   string
	DateFrom string
	DateTo   string
}

func (s Service) UnsungHero(ctx context.Context, q UnsungHeroQuery) ([]UserStats, error) {
	from, err := lowerBound("date_from", q.DateFrom)
	if err != nil {
		return nil, err
	}
	to, err := upperBound("date_to", q.DateTo)
	if err != nil {
		return nil, err
	}
	if from != "" && to != "" && from > to {
		return nil, InputError{Field: "date_from", Reason: "must not be after date_to"}
	}
	rows, err := s.Repo.TasksForReport(ctx, repo.ReportFilters{TeamID: q.TeamID, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	return BuildUnsungHeroReport(rows), nil
}

func (s Service) Heatmap(ctx context.Context, userID string, year int) ([]Day, error) {
	if year < MinYear || year > MaxYear {
		return nil, InputError{Field: "year", Reason: fmt.Sprintf("must be between %d and %d", MinYear, MaxYear)}
	}
	from, to := YearBounds(year)
	tasks, err := s.Repo.CompletedTasksBetween(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	recs, err := s.Repo.RecognitionsReceivedBetween(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load recognitions: %w", err)
	}
	return BuildHeatmap(year, tasks, recs), nil
}

// Summary is the dashboard aggregate.
type Summary struct {
	TasksByStatus        map[string]int              `json:"tasks_by_status"`
	TotalTasks           int                         `json:"total_tasks"`
	CompletionRate       float64                     `json:"completion_rate"`
	TotalCreditsAwarded  int64                       `json:"total_credits_awarded"`
	RecognitionsSent     int                         `json:"recognitions_sent"`
	RecognitionsReceived int                         `json:"recognitions_received"`
	Leaderboard          []domain.User               `json:"leaderboard"`
	TopRecognitionTypes  []repo.RecognitionTypeCount `json:"top_recognition_types"`
}

// Summary aggregates global task and credit figures plus userID's
// recognition counts.
func (s Service) Summary(ctx context.Context, userID string) (Summary, error) {
	counts, err := s.Repo.CountTasksByStatus(ctx, "")
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{TasksByStatus: counts}
	for _, n := range counts {
		sum.TotalTasks += n
	}
	if sum.TotalTasks > 0 {
		sum.CompletionRate = float64(counts[domain.StatusCompleted]) / float64(sum.TotalTasks) * 100
	}
	if sum.TotalCreditsAwarded, err = s.Repo.TotalCreditsAwarded(ctx); err != nil {
		return Summary{}, err
	}
	if sum.RecognitionsSent, sum.RecognitionsReceived, err = s.Repo.RecognitionCounts(ctx, userID); err != nil {
		return Summary{}, err
	}
	if sum.Leaderboard, err = s.Repo.ListUsers(ctx, leaderboardLimit); err != nil {
		return Summary{}, err
	}
	if sum.TopRecognitionTypes, err = s.Repo.RecognitionTypeCounts(ctx); err != nil {
		return Summary{}, err
	}
	return sum, nil
}

func parseBound(field, raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dayLayout, raw); err == nil {
		return t, true, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	return time.Time{}, false, InputError{Field: field, Reason: "must be YYYY-MM-DD or RFC 3339"}
}

func lowerBound(field, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	t, _, err := parseBound(field, raw)
	if err != nil {
		return "", err
	}
	return repo.Timestamp(t), nil
}

// upperBound returns an inclusive bound; a date-only value covers its whole day.
func upperBound(field, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	t, dateOnly, err := parseBound(field, raw)
	if err != nil {
		return "", err
	}
	if dateOnly {
		return repo.Timestamp(t.AddDate(0, 0, 1).Add(-time.Second)), nil
	}
	return repo.Timestamp(t), nil
}
