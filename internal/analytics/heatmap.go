package analytics

import (
	"time"

	"honourus/internal/domain"
)

const (
	weightCredits = 0.7
	weightTasks   = 0.3
	dayLayout     = "2006-01-02"
)

// Day is one heatmap bucket.
type Day struct {
	Date           string `json:"date"`
	TasksCompleted int    `json:"tasks_completed"`
	CreditsEarned  int64  `json:"credits_earned"`
	Intensity      int    `json:"intensity" minimum:"0" maximum:"4"`
}

// YearBounds returns the stored-form timestamps of the first and last second
// of year. Both bounds are inclusive and stay within four-digit years.
func YearBounds(year int) (string, string) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)
	return start.Format(time.RFC3339), last.Format(time.RFC3339)
}

// BuildHeatmap buckets completed tasks by updated_at day and received
// recognitions by created_at day for every UTC day of year.
func BuildHeatmap(year int, tasks []domain.Task, recs []domain.Recognition) []Day {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	days := []Day{}
	index := map[string]int{}
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(dayLayout)
		index[key] = len(days)
		days = append(days, Day{Date: key})
	}

	for _, t := range tasks {
		if t.Status != domain.StatusCompleted {
			continue
		}
		if i, ok := index[dayOf(t.UpdatedAt)]; ok {
			days[i].TasksCompleted++
			days[i].CreditsEarned += t.Credits
		}
	}
	for _, r := range recs {
		if i, ok := index[dayOf(r.CreatedAt)]; ok {
			days[i].CreditsEarned += r.Credits
		}
	}

	var (
		maxCredits, totalCredits int64
		maxTasks                 int
	)
	for _, d := range days {
		totalCredits += d.CreditsEarned
		if d.CreditsEarned > maxCredits {
			maxCredits = d.CreditsEarned
		}
		if d.TasksCompleted > maxTasks {
			maxTasks = d.TasksCompleted
		}
	}
	if totalCredits == 0 {
		return days
	}
	for i := range days {
		var creditScore, taskScore float64
		if maxCredits > 0 {
			creditScore = float64(days[i].CreditsEarned) / float64(maxCredits)
		}
		if maxTasks > 0 {
			taskScore = float64(days[i].TasksCompleted) / float64(maxTasks)
		}
		days[i].Intensity = band(weightCredits*creditScore + weightTasks*taskScore)
	}
	return days
}

func band(score float64) int {
	switch {
	case score <= 0:
		return 0
	case score <= 0.25:
		return 1
	case score <= 0.5:
		return 2
	case score <= 0.75:
		return 3
	default:
		return 4
	}
}

// dayOf returns the UTC calendar day of a stored timestamp.
func dayOf(ts string) string {
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.UTC().Format(dayLayout)
	}
	if len(ts) >= len(dayLayout) {
		return ts[:len(dayLayout)]
	}
	return ""
}
