package analytics

import (
	"sort"

	"honourus/internal/domain"
	"honourus/internal/repo"
)

const (
	topTagLimit        = 5
	recentAchievements = 5
	weightCompletion   = 0.4
	weightVolume       = 0.3
	weightTagDiversity = 0.3
)

// TagStat is one tag's share of a user's tasks.
type TagStat struct {
	Tag       string `json:"tag"`
	Count     int    `json:"count"`
	Completed int    `json:"completed"`
}

// Achievement is a completed task.
type Achievement struct {
	TaskID      string `json:"task_id"`
	Title       string `json:"title"`
	Credits     int64  `json:"credits"`
	CompletedAt string `json:"completed_at" format:"date-time"`
}

// UserStats is one ranked row of the unsung-hero report.
type UserStats struct {
	UserID             string        `json:"user_id"`
	Name               string        `json:"name"`
	Email              string        `json:"email"`
	Department         string        `json:"department"`
	TotalTasks         int           `json:"total_tasks"`
	CompletedTasks     int           `json:"completed_tasks"`
	TotalCredits       int64         `json:"total_credits"`
	CompletionRate     float64       `json:"completion_rate"`
	AvgTaskCredits     float64       `json:"avg_task_credits"`
	DistinctTags       int           `json:"distinct_tags"`
	TopTags            []TagStat     `json:"top_tags"`
	RecentAchievements []Achievement `json:"recent_achievements"`
	Score              float64       `json:"score"`
}

type userAccumulator struct {
	stats        UserStats
	tags         map[string]*TagStat
	achievements []Achievement
}

// BuildUnsungHeroReport folds report rows per assignee and ranks the result
// by score, then by user id.
func BuildUnsungHeroReport(rows []repo.TaskReportRow) []UserStats {
	acc := map[string]*userAccumulator{}
	for _, row := range rows {
		a, ok := acc[row.AssigneeID]
		if !ok {
			a = &userAccumulator{
				stats: UserStats{
					UserID:     row.AssigneeID,
					Name:       row.AssigneeName,
					Email:      row.AssigneeEmail,
					Department: row.Department,
				},
				tags: map[string]*TagStat{},
			}
			acc[row.AssigneeID] = a
		}
		done := row.Status == domain.StatusCompleted
		a.stats.TotalTasks++
		a.stats.TotalCredits += row.Credits
		if done {
			a.stats.CompletedTasks++
			at := row.UpdatedAt
			if row.CompletedAt != nil && *row.CompletedAt != "" {
				at = *row.CompletedAt
			}
			a.achievements = append(a.achievements, Achievement{TaskID: row.TaskID, Title: row.Title, Credits: row.Credits, CompletedAt: at})
		}
		for _, tag := range row.Tags {
			ts, ok := a.tags[tag]
			if !ok {
				ts = &TagStat{Tag: tag}
				a.tags[tag] = ts
			}
			ts.Count++
			if done {
				ts.Completed++
			}
		}
	}

	report := make([]UserStats, 0, len(acc))
	for _, a := range acc {
		s := a.stats
		if s.TotalTasks > 0 {
			s.CompletionRate = float64(s.CompletedTasks) / float64(s.TotalTasks) * 100
			s.AvgTaskCredits = float64(s.TotalCredits) / float64(s.TotalTasks)
		}
		s.DistinctTags = len(a.tags)
		s.TopTags = topTags(a.tags, topTagLimit)
		s.RecentAchievements = latestAchievements(a.achievements, recentAchievements)
		s.Score = weightCompletion*s.CompletionRate + weightVolume*float64(s.TotalTasks) + weightTagDiversity*float64(s.DistinctTags)
		report = append(report, s)
	}
	sort.Slice(report, func(i, j int) bool {
		if report[i].Score != report[j].Score {
			return report[i].Score > report[j].Score
		}
		return report[i].UserID < report[j].UserID
	})
	return report
}

func topTags(tags map[string]*TagStat, limit int) []TagStat {
	out := make([]TagStat, 0, len(tags))
	for _, ts := range tags {
		out = append(out, *ts)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func latestAchievements(in []Achievement, limit int) []Achievement {
	out := append([]Achievement{}, in...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].CompletedAt != out[j].CompletedAt {
			return out[i].CompletedAt > out[j].CompletedAt
		}
		return out[i].TaskID < out[j].TaskID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
