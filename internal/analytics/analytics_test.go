package analytics

import (
	"context"
	"strings"
	"testing"
	"time"

	"honourus/internal/db"
	"honourus/internal/domain"
	"honourus/internal/migrate"
	"honourus/internal/repo"
)

func strp(s string) *string { return &s }

func TestHeatmapScenario(t *testing.T) {
	tasks := []domain.Task{{ID: "t1", Status: domain.StatusCompleted, Credits: 40, UpdatedAt: "2024-03-01T10:00:00Z"}}
	recs := []domain.Recognition{{ID: "r1", Credits: 10, CreatedAt: "2024-03-01T15:30:00Z"}}
	days := BuildHeatmap(2024, tasks, recs)
	if len(days) != 366 {
		t.Fatalf("expected 366 days, got %d", len(days))
	}
	for i, d := range days {
		if i > 0 && days[i-1].Date >= d.Date {
			t.Fatalf("days out of order at %d", i)
		}
		if d.Date == "2024-03-01" {
			if d.TasksCompleted != 1 || d.CreditsEarned != 50 || d.Intensity != 4 {
				t.Fatalf("unexpected bucket %+v", d)
			}
			continue
		}
		if d.Intensity != 0 || d.CreditsEarned != 0 || d.TasksCompleted != 0 {
			t.Fatalf("unexpected activity on %s: %+v", d.Date, d)
		}
	}
}

func TestHeatmapLengthAndBands(t *testing.T) {
	for year, want := range map[int]int{2023: 365, 2024: 366, 1900: 365, 2000: 366} {
		if got := len(BuildHeatmap(year, nil, nil)); got != want {
			t.Fatalf("year %d: expected %d days, got %d", year, want, got)
		}
	}
	tasks := []domain.Task{
		{Status: domain.StatusCompleted, Credits: 100, UpdatedAt: "2023-01-02T00:00:00Z"},
		{Status: domain.StatusCompleted, Credits: 10, UpdatedAt: "2023-01-03T00:00:00Z"},
		{Status: domain.StatusCompleted, Credits: 50, UpdatedAt: "2023-01-04T00:00:00Z"},
		{Status: domain.StatusInProgress, Credits: 500, UpdatedAt: "2023-01-05T00:00:00Z"},
	}
	days := BuildHeatmap(2023, tasks, nil)
	// 0.7*1+0.3*1, 0.7*0.1+0.3*1, 0.7*0.5+0.3*1
	want := map[string]int{"2023-01-02": 4, "2023-01-03": 2, "2023-01-04": 3, "2023-01-05": 0}
	for _, d := range days {
		if w, ok := want[d.Date]; ok && d.Intensity != w {
			t.Fatalf("%s: expected intensity %d, got %d", d.Date, w, d.Intensity)
		}
		if d.Intensity < 0 || d.Intensity > 4 {
			t.Fatalf("intensity out of range: %+v", d)
		}
	}
}

func TestHeatmapZeroCredits(t *testing.T) {
	tasks := []domain.Task{{Status: domain.StatusCompleted, Credits: 0, UpdatedAt: "2023-06-01T00:00:00Z"}}
	for _, d := range BuildHeatmap(2023, tasks, nil) {
		if d.Intensity != 0 {
			t.Fatalf("zero-credit year must have zero intensity, got %+v", d)
		}
		if d.Date == "2023-06-01" && d.TasksCompleted != 1 {
			t.Fatalf("task not counted: %+v", d)
		}
	}
}

func TestUnsungHeroReport(t *testing.T) {
	rows := []repo.TaskReportRow{
		{TaskID: "a1", Title: "A1", Status: domain.StatusCompleted, Credits: 10, Tags: []string{"ops", "infra"}, UpdatedAt: "2024-01-02T00:00:00Z", AssigneeID: "ua", AssigneeName: "Ana"},
		{TaskID: "a2", Title: "A2", Status: domain.StatusTodo, Credits: 30, Tags: []string{"ops"}, UpdatedAt: "2024-01-03T00:00:00Z", AssigneeID: "ua", AssigneeName: "Ana"},
		{TaskID: "b1", Title: "B1", Status: domain.StatusCompleted, Credits: 5, UpdatedAt: "2024-01-01T00:00:00Z", CompletedAt: strp("2024-01-05T00:00:00Z"), AssigneeID: "ub", AssigneeName: "Bob"},
	}
	report := BuildUnsungHeroReport(rows)
	if len(report) != 2 {
		t.Fatalf("expected 2 users, got %d", len(report))
	}
	// Bob: 0.4*100 + 0.3*1 + 0 = 40.3; Ana: 0.4*50 + 0.3*2 + 0.3*2 = 21.2
	bob, ana := report[0], report[1]
	if bob.UserID != "ub" || ana.UserID != "ua" {
		t.Fatalf("unexpected order %s, %s", bob.UserID, ana.UserID)
	}
	if ana.TotalCredits != 40 || ana.AvgTaskCredits != 20 || ana.CompletionRate != 50 {
		t.Fatalf("unexpected ana stats %+v", ana)
	}
	if len(ana.TopTags) != 2 || ana.TopTags[0].Tag != "ops" || ana.TopTags[0].Count != 2 || ana.TopTags[0].Completed != 1 {
		t.Fatalf("unexpected tags %+v", ana.TopTags)
	}
	if len(bob.RecentAchievements) != 1 || bob.RecentAchievements[0].CompletedAt != "2024-01-05T00:00:00Z" {
		t.Fatalf("unexpected achievements %+v", bob.RecentAchievements)
	}
}

func TestUnsungHeroTiesAndLimits(t *testing.T) {
	var rows []repo.TaskReportRow
	for i, tag := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		rows = append(rows, repo.TaskReportRow{
			TaskID: tag, Status: domain.StatusCompleted, Tags: []string{tag},
			UpdatedAt:  time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
			AssigneeID: "z",
		})
	}
	rows = append(rows,
		repo.TaskReportRow{TaskID: "y1", Status: domain.StatusTodo, AssigneeID: "y"},
		repo.TaskReportRow{TaskID: "x1", Status: domain.StatusTodo, AssigneeID: "x"},
	)
	report := BuildUnsungHeroReport(rows)
	z := report[0]
	if len(z.TopTags) != 5 || z.TopTags[0].Tag != "a" || z.TopTags[4].Tag != "e" {
		t.Fatalf("unexpected top tags %+v", z.TopTags)
	}
	if len(z.RecentAchievements) != 5 || z.RecentAchievements[0].TaskID != "g" {
		t.Fatalf("unexpected achievements %+v", z.RecentAchievements)
	}
	if report[1].UserID != "x" || report[2].UserID != "y" {
		t.Fatalf("equal scores must order by user id, got %s, %s", report[1].UserID, report[2].UserID)
	}
	if report[1].CompletionRate != 0 || report[1].AvgTaskCredits != 0 {
		t.Fatalf("expected zero rates, got %+v", report[1])
	}
	if got := BuildUnsungHeroReport(nil); len(got) != 0 {
		t.Fatalf("expected empty report, got %d", len(got))
	}
}

func TestAchievementsSameInstantOrderByTaskID(t *testing.T) {
	at := "2024-05-01T09:00:00Z"
	rows := []repo.TaskReportRow{
		{TaskID: "t3", Status: domain.StatusCompleted, UpdatedAt: at, AssigneeID: "u"},
		{TaskID: "t1", Status: domain.StatusCompleted, UpdatedAt: at, AssigneeID: "u"},
		{TaskID: "t0", Status: domain.StatusCompleted, UpdatedAt: "2024-04-01T09:00:00Z", AssigneeID: "u"},
		{TaskID: "t2", Status: domain.StatusCompleted, UpdatedAt: at, AssigneeID: "u"},
	}
	got := BuildUnsungHeroReport(rows)[0].RecentAchievements
	var ids []string
	for _, a := range got {
		ids = append(ids, a.TaskID)
	}
	if strings.Join(ids, ",") != "t1,t2,t3,t0" {
		t.Fatalf("unexpected achievement order %v", ids)
	}
}

func TestBounds(t *testing.T) {
	to, err := upperBound("date_to", "2024-03-01")
	if err != nil || to != "2024-03-01T23:59:59Z" {
		t.Fatalf("date-only upper bound: %q %v", to, err)
	}
	to, err = upperBound("date_to", "2024-03-01T12:00:00+02:00")
	if err != nil || to != "2024-03-01T10:00:00Z" {
		t.Fatalf("timestamp upper bound: %q %v", to, err)
	}
	to, err = upperBound("date_to", "9999-12-31")
	if err != nil || to != "9999-12-31T23:59:59Z" {
		t.Fatalf("last supported day: %q %v", to, err)
	}
	if _, err := lowerBound("date_from", "March"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestServiceAgainstDatabase(t *testing.T) {
	conn, dialect, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn, dialect); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.New(conn, dialect)
	ctx := context.Background()
	tx, err := r.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, u := range []domain.User{
		{ID: "u1", Email: "u1@example.com", Name: "One", Role: domain.RoleMember, CreatedAt: "2024-01-01T00:00:00Z", UpdatedAt: "2024-01-01T00:00:00Z"},
		{ID: "u2", Email: "u2@example.com", Name: "Two", Role: domain.RoleMember, CreatedAt: "2024-01-01T00:00:00Z", UpdatedAt: "2024-01-01T00:00:00Z"},
	} {
		if err := r.InsertUserTx(ctx, tx, u); err != nil {
			t.Fatalf("insert user: %v", err)
		}
	}
	assignee := "u1"
	tasks := []domain.Task{
		{ID: "t1", Title: "in range", Type: "general", Priority: "low", Status: domain.StatusCompleted, AssigneeID: &assignee, Credits: 40, Tags: []string{}, CreatedAt: "2024-02-10T08:00:00Z", UpdatedAt: "2024-03-01T10:00:00Z"},
		{ID: "t2", Title: "later", Type: "general", Priority: "low", Status: domain.StatusTodo, AssigneeID: &assignee, Credits: 5, Tags: []string{}, CreatedAt: "2024-04-01T08:00:00Z", UpdatedAt: "2024-04-01T08:00:00Z"},
	}
	for _, task := range tasks {
		if err := r.InsertTaskTx(ctx, tx, task); err != nil {
			t.Fatalf("insert task: %v", err)
		}
	}
	if err := r.InsertRecognitionTx(ctx, tx, domain.Recognition{ID: "r1", FromUserID: "u2", ToUserID: "u1", Message: "ty", Credits: 10, Type: "achievement", CreatedAt: "2024-03-01T12:00:00Z"}); err != nil {
		t.Fatalf("insert recognition: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	svc := New(r)
	days, err := svc.Heatmap(ctx, "u1", 2024)
	if err != nil {
		t.Fatalf("heatmap: %v", err)
	}
	if d := days[60]; d.Date != "2024-03-01" || d.CreditsEarned != 50 || d.Intensity != 4 {
		t.Fatalf("unexpected bucket %+v", d)
	}
	if _, err := svc.Heatmap(ctx, "u1", 1969); err == nil {
		t.Fatalf("expected year validation error")
	}
	report, err := svc.UnsungHero(ctx, UnsungHeroQuery{DateFrom: "2024-02-01", DateTo: "2024-02-10"})
	if err != nil {
		t.Fatalf("unsung hero: %v", err)
	}
	if len(report) != 1 || report[0].TotalTasks != 1 || report[0].CompletionRate != 100 {
		t.Fatalf("unexpected report %+v", report)
	}
	sum, err := svc.Summary(ctx, "u2")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalTasks != 2 || sum.CompletionRate != 50 || sum.RecognitionsSent != 1 || len(sum.Leaderboard) != 2 {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestHeatmapLastSupportedYear(t *testing.T) {
	conn, dialect, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn, dialect); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.New(conn, dialect)
	ctx := context.Background()
	tx, err := r.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, u := range []domain.User{
		{ID: "u1", Email: "u1@example.com", Name: "One", Role: domain.RoleMember, CreatedAt: "2024-01-01T00:00:00Z", UpdatedAt: "2024-01-01T00:00:00Z"},
		{ID: "u2", Email: "u2@example.com", Name: "Two", Role: domain.RoleMember, CreatedAt: "2024-01-01T00:00:00Z", UpdatedAt: "2024-01-01T00:00:00Z"},
	} {
		if err := r.InsertUserTx(ctx, tx, u); err != nil {
			t.Fatalf("insert user: %v", err)
		}
	}
	assignee := "u1"
	for _, task := range []domain.Task{
		{ID: "t1", Title: "march", Type: "general", Priority: "low", Status: domain.StatusCompleted, AssigneeID: &assignee, Credits: 40, Tags: []string{}, CreatedAt: "9999-02-01T08:00:00Z", UpdatedAt: "9999-03-01T10:00:00Z"},
		{ID: "t2", Title: "last second", Type: "general", Priority: "low", Status: domain.StatusCompleted, AssigneeID: &assignee, Credits: 5, Tags: []string{}, CreatedAt: "9999-12-31T08:00:00Z", UpdatedAt: "9999-12-31T23:59:59Z"},
	} {
		if err := r.InsertTaskTx(ctx, tx, task); err != nil {
			t.Fatalf("insert task: %v", err)
		}
	}
	if err := r.InsertRecognitionTx(ctx, tx, domain.Recognition{ID: "r1", FromUserID: "u2", ToUserID: "u1", Message: "ty", Credits: 10, Type: "achievement", CreatedAt: "9999-03-01T12:00:00Z"}); err != nil {
		t.Fatalf("insert recognition: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	svc := New(r)
	days, err := svc.Heatmap(ctx, "u1", MaxYear)
	if err != nil {
		t.Fatalf("heatmap: %v", err)
	}
	if len(days) != 365 {
		t.Fatalf("expected 365 days, got %d", len(days))
	}
	var total int64
	for _, d := range days {
		total += d.CreditsEarned
	}
	if total != 55 {
		t.Fatalf("expected 55 credits in year %d, got %d", MaxYear, total)
	}
	if d := days[59]; d.Date != "9999-03-01" || d.TasksCompleted != 1 || d.CreditsEarned != 50 {
		t.Fatalf("unexpected bucket %+v", d)
	}
	if d := days[364]; d.Date != "9999-12-31" || d.TasksCompleted != 1 {
		t.Fatalf("unexpected last bucket %+v", d)
	}
	report, err := svc.UnsungHero(ctx, UnsungHeroQuery{DateFrom: "9999-01-01", DateTo: "9999-12-31"})
	if err != nil {
		t.Fatalf("unsung hero: %v", err)
	}
	if len(report) != 1 || report[0].TotalTasks != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
}
