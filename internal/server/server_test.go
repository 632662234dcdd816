package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"honourus/internal/analytics"
	"honourus/internal/config"
	"honourus/internal/db"
	"honourus/internal/domain"
	"honourus/internal/engine"
	"honourus/internal/engine/auth"
	"honourus/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	auth.HashCost = bcrypt.MinCost
	conn, dialect, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn, dialect); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, dialect, config.Default())
	handler, err := New(Config{
		Engine:   e,
		BasePath: DefaultBasePath,
		Auth:     AuthConfig{JWTSecret: testSecret},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String() + DefaultBasePath,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode(t *testing.T, data []byte, out any) {
	t.Helper()
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("unmarshal %s: %v", string(data), err)
	}
}

func expectStatus(t *testing.T, res *http.Response, data []byte, want int) {
	t.Helper()
	if res.StatusCode != want {
		t.Fatalf("%s %s: expected %d, got %d: %s", res.Request.Method, res.Request.URL.Path, want, res.StatusCode, string(data))
	}
}

// signUp registers a user and returns their token and id.
func signUp(t *testing.T, srv *testServer, name, role string) (string, string) {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/auth/signup", map[string]any{
		"email":    name + "@example.com",
		"password": "password123",
		"name":     name,
		"role":     role,
	}, nil)
	expectStatus(t, res, data, http.StatusCreated)
	var out AuthResponse
	decode(t, data, &out)
	if out.AccessToken == "" || out.User.ID == "" {
		t.Fatalf("signup returned no token: %s", string(data))
	}
	return out.AccessToken, out.User.ID
}

func TestAuthFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/health", nil, nil)
	expectStatus(t, res, data, http.StatusOK)

	token, _ := signUp(t, srv, "alice", domain.RoleMember)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/auth/signup", map[string]any{
		"email":    "alice@example.com",
		"password": "password123",
		"name":     "Alice Again",
	}, nil)
	expectStatus(t, res, data, http.StatusBadRequest)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/auth/signup", map[string]any{
		"email":    "mallory@example.com",
		"password": "password123",
		"name":     "Mallory",
		"role":     "admin",
	}, nil)
	expectStatus(t, res, data, http.StatusBadRequest)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/auth/signin", map[string]any{
		"email":    "alice@example.com",
		"password": "wrong-password",
	}, nil)
	expectStatus(t, res, data, http.StatusUnauthorized)
	var envelope map[string]string
	decode(t, data, &envelope)
	if envelope["code"] != "invalid_credentials" || envelope["error"] == "" {
		t.Fatalf("unexpected error envelope: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/auth/signin", map[string]any{
		"email":    "alice@example.com",
		"password": "password123",
	}, nil)
	expectStatus(t, res, data, http.StatusOK)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/tasks", nil, nil)
	expectStatus(t, res, data, http.StatusUnauthorized)
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/tasks", nil, bearer("not-a-jwt"))
	expectStatus(t, res, data, http.StatusUnauthorized)

	other, err := IssueToken(AuthConfig{JWTSecret: testSecret}, domain.User{ID: "ghost"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/tasks", nil, bearer(other))
	expectStatus(t, res, data, http.StatusUnauthorized)

	expired, err := IssueToken(AuthConfig{
		JWTSecret: testSecret,
		TokenTTL:  time.Minute,
		Now:       func() time.Time { return time.Now().Add(-time.Hour) },
	}, domain.User{ID: "ghost"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/tasks", nil, bearer(expired))
	expectStatus(t, res, data, http.StatusUnauthorized)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/tasks", nil, bearer(token))
	expectStatus(t, res, data, http.StatusOK)
	var list TaskListResponse
	decode(t, data, &list)
	if list.Tasks == nil || len(list.Tasks) != 0 {
		t.Fatalf("expected empty task array, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/openapi.json", nil, nil)
	expectStatus(t, res, data, http.StatusOK)
}

func TestOpenAPIConcurrentFetch(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	const fetches = 8
	bodies := make([]string, fetches)
	errs := make(chan error, fetches)
	var wg sync.WaitGroup
	for i := 0; i < fetches; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := client.Get(srv.URL + "/openapi.json")
			if err != nil {
				errs <- err
				return
			}
			defer res.Body.Close()
			data, err := io.ReadAll(res.Body)
			if err != nil {
				errs <- err
				return
			}
			bodies[i] = string(data)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("fetch openapi: %v", err)
	}
	for i, body := range bodies {
		if body != bodies[0] {
			t.Fatalf("document %d differs from the first", i)
		}
	}
	if !strings.Contains(bodies[0], "bearerAuth") {
		t.Fatalf("expected bearerAuth security scheme in %s", bodies[0])
	}
}

func TestTaskCompletionAwardsCredits(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	lead, _ := signUp(t, srv, "lead", domain.RoleManager)
	dev, devID := signUp(t, srv, "dev", domain.RoleMember)
	peer, _ := signUp(t, srv, "peer", domain.RoleMember)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/tasks", map[string]any{
		"description": "no title",
	}, bearer(lead))
	expectStatus(t, res, data, http.StatusBadRequest)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/tasks", map[string]any{
		"title":      "Ghost assignee",
		"assigneeId": "missing",
	}, bearer(lead))
	expectStatus(t, res, data, http.StatusNotFound)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/tasks", map[string]any{
		"title":         "Write runbook",
		"priority":      "high",
		"assigneeId":    devID,
		"requiresProof": true,
		"tags":          []string{"docs", "ops"},
	}, bearer(lead))
	expectStatus(t, res, data, http.StatusCreated)
	var created TaskResponse
	decode(t, data, &created)
	task := created.Task
	if task.Status != domain.StatusTodo || task.Type != "general" || task.Credits != 50 {
		t.Fatalf("unexpected defaults: %+v", task)
	}
	taskURL := srv.URL + "/tasks/" + task.ID

	res, data = doJSON(t, client, http.MethodPut, taskURL, map[string]any{"status": "done"}, bearer(dev))
	expectStatus(t, res, data, http.StatusBadRequest)

	// completing without proof pays nothing
	res, data = doJSON(t, client, http.MethodPut, taskURL, map[string]any{"status": "completed"}, bearer(dev))
	expectStatus(t, res, data, http.StatusOK)
	var upd TaskUpdateResponse
	decode(t, data, &upd)
	if upd.CreditsAwarded != 0 || upd.Task.CompletedAt == nil {
		t.Fatalf("expected unpaid completion, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPut, taskURL, map[string]any{
		"status":   "in-review",
		"proofUrl": "https://example.com/runbook.pdf",
	}, bearer(dev))
	expectStatus(t, res, data, http.StatusOK)
	upd = TaskUpdateResponse{}
	decode(t, data, &upd)
	if !upd.Task.ProofUploaded || upd.Task.CompletedAt != nil {
		t.Fatalf("expected proof recorded and completion cleared, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPut, taskURL, map[string]any{"status": "completed"}, bearer(lead))
	expectStatus(t, res, data, http.StatusOK)
	decode(t, data, &upd)
	if upd.CreditsAwarded != 50 {
		t.Fatalf("expected 50 credits, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/users/"+devID, nil, bearer(peer))
	expectStatus(t, res, data, http.StatusOK)
	var user UserResponse
	decode(t, data, &user)
	if user.User.Credits != 50 {
		t.Fatalf("expected 50 stored credits, got %d", user.User.Credits)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/users/"+devID+"/ledger", nil, bearer(peer))
	expectStatus(t, res, data, http.StatusForbidden)
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/users/"+devID+"/ledger", nil, bearer(lead))
	expectStatus(t, res, data, http.StatusOK)
	var ledger LedgerResponse
	decode(t, data, &ledger)
	if len(ledger.Entries) != 1 || ledger.Entries[0].SourceID != task.ID {
		t.Fatalf("unexpected ledger: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/tasks?status=completed", nil, bearer(peer))
	expectStatus(t, res, data, http.StatusOK)
	var list TaskListResponse
	decode(t, data, &list)
	if len(list.Tasks) != 1 {
		t.Fatalf("expected one completed task, got %d", len(list.Tasks))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/activity?limit=3", nil, bearer(peer))
	expectStatus(t, res, data, http.StatusOK)
	var activity ActivityResponse
	decode(t, data, &activity)
	if len(activity.Events) != 3 || activity.Events[0].Type != "credits.awarded" {
		t.Fatalf("unexpected activity: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/analytics", nil, bearer(dev))
	expectStatus(t, res, data, http.StatusOK)
	var summary AnalyticsResponse
	decode(t, data, &summary)
	if summary.Analytics.TotalCreditsAwarded != 50 || summary.Analytics.TotalTasks != 1 || summary.Analytics.CompletionRate != 100 {
		t.Fatalf("unexpected analytics: %s", string(data))
	}
}

func TestRecognitionsAndProfiles(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	alice, aliceID := signUp(t, srv, "alice", domain.RoleMember)
	bob, bobID := signUp(t, srv, "bob", domain.RoleMember)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/recognitions", map[string]any{
		"toUserId": aliceID,
		"message":  "me!",
		"type":     "achievement",
	}, bearer(alice))
	expectStatus(t, res, data, http.StatusBadRequest)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/recognitions", map[string]any{
		"toUserId": bobID,
		"message":  "thanks for the pairing session",
		"type":     "collaboration",
		"credits":  30,
	}, bearer(alice))
	expectStatus(t, res, data, http.StatusCreated)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/recognitions?user_id="+bobID, nil, bearer(bob))
	expectStatus(t, res, data, http.StatusOK)
	var recs RecognitionListResponse
	decode(t, data, &recs)
	if len(recs.Recognitions) != 1 || recs.Recognitions[0].Credits != 30 {
		t.Fatalf("unexpected recognitions: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/users", nil, bearer(bob))
	expectStatus(t, res, data, http.StatusOK)
	var users UserListResponse
	decode(t, data, &users)
	if len(users.Users) != 2 || users.Users[0].ID != bobID || users.Users[0].Credits != 30 {
		t.Fatalf("unexpected leaderboard: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/users/"+aliceID, map[string]any{"name": "Mallory"}, bearer(bob))
	expectStatus(t, res, data, http.StatusForbidden)
	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/users/"+bobID, map[string]any{"role": "admin"}, bearer(bob))
	expectStatus(t, res, data, http.StatusForbidden)
	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/users/"+bobID, map[string]any{"department": "Platform"}, bearer(bob))
	expectStatus(t, res, data, http.StatusOK)
	var user UserResponse
	decode(t, data, &user)
	if user.User.Department != "Platform" {
		t.Fatalf("department not updated: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/users/missing", nil, bearer(bob))
	expectStatus(t, res, data, http.StatusNotFound)
}

func TestTeamMembership(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	lead, leadID := signUp(t, srv, "lead", domain.RoleManager)
	member, memberID := signUp(t, srv, "member", domain.RoleMember)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/teams", map[string]any{"name": "Platform"}, bearer(lead))
	expectStatus(t, res, data, http.StatusCreated)
	var team TeamResponse
	decode(t, data, &team)
	membersURL := srv.URL + "/teams/" + team.Team.ID + "/members"

	res, data = doJSON(t, client, http.MethodPost, membersURL, map[string]any{"userId": memberID}, bearer(member))
	expectStatus(t, res, data, http.StatusForbidden)
	res, data = doJSON(t, client, http.MethodPost, membersURL, map[string]any{"userId": memberID}, bearer(lead))
	expectStatus(t, res, data, http.StatusOK)
	decode(t, data, &team)
	if len(team.Team.MemberIDs) != 2 {
		t.Fatalf("expected two members, got %v", team.Team.MemberIDs)
	}

	res, data = doJSON(t, client, http.MethodDelete, membersURL+"/"+leadID, nil, bearer(lead))
	expectStatus(t, res, data, http.StatusBadRequest)
	res, data = doJSON(t, client, http.MethodDelete, membersURL+"/"+memberID, nil, bearer(member))
	expectStatus(t, res, data, http.StatusOK)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/teams", nil, bearer(member))
	expectStatus(t, res, data, http.StatusOK)
	var teams TeamListResponse
	decode(t, data, &teams)
	if len(teams.Teams) != 1 || len(teams.Teams[0].MemberIDs) != 1 {
		t.Fatalf("unexpected teams: %s", string(data))
	}
}

func TestAnalyticsFunctions(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	manager, managerID := signUp(t, srv, "manager", domain.RoleManager)
	dev, devID := signUp(t, srv, "dev", domain.RoleMember)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/tasks", map[string]any{
		"title":      "Fix flaky test",
		"assigneeId": devID,
		"tags":       []string{"ci"},
	}, bearer(manager))
	expectStatus(t, res, data, http.StatusCreated)
	var created TaskResponse
	decode(t, data, &created)
	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/tasks/"+created.Task.ID, map[string]any{"status": "completed"}, bearer(dev))
	expectStatus(t, res, data, http.StatusOK)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/functions/unsung-hero", map[string]any{"user_id": managerID}, bearer(dev))
	expectStatus(t, res, data, http.StatusForbidden)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/functions/unsung-hero", map[string]any{
		"user_id":   devID,
		"date_from": "not-a-date",
	}, bearer(dev))
	expectStatus(t, res, data, http.StatusBadRequest)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/functions/unsung-hero", map[string]any{"user_id": devID}, bearer(dev))
	expectStatus(t, res, data, http.StatusOK)
	var report UnsungHeroResponse
	decode(t, data, &report)
	if len(report.Report) != 1 || report.Report[0].UserID != devID || report.Report[0].CompletionRate != 100 {
		t.Fatalf("unexpected report: %s", string(data))
	}

	year := time.Now().UTC().Year()
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/functions/heatmap", map[string]any{
		"user_id": managerID,
		"year":    year,
	}, bearer(dev))
	expectStatus(t, res, data, http.StatusForbidden)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/functions/heatmap", map[string]any{
		"user_id":      devID,
		"year":         year,
		"requester_id": managerID,
	}, bearer(dev))
	expectStatus(t, res, data, http.StatusForbidden)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/functions/heatmap", map[string]any{
		"user_id": devID,
		"year":    1900,
	}, bearer(dev))
	expectStatus(t, res, data, http.StatusBadRequest)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/functions/heatmap", map[string]any{
		"user_id": devID,
		"year":    year,
	}, bearer(manager))
	expectStatus(t, res, data, http.StatusOK)
	var hm HeatmapResponse
	decode(t, data, &hm)
	_, last := analytics.YearBounds(year)
	lastT, _ := time.Parse(time.RFC3339, last)
	if want := lastT.YearDay(); len(hm.Heatmap) != want {
		t.Fatalf("expected %d days, got %d", want, len(hm.Heatmap))
	}
	today := time.Now().UTC().Format("2006-01-02")
	var found bool
	for _, d := range hm.Heatmap {
		if d.Date == today {
			found = true
			if d.TasksCompleted != 1 || d.CreditsEarned != 25 || d.Intensity != 4 {
				t.Fatalf("unexpected bucket for today: %+v", d)
			}
		}
	}
	if !found {
		t.Fatalf("no bucket for %s", today)
	}
}

func TestIntegrationRoutesValidateInput(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	token, userID := signUp(t, srv, "alice", domain.RoleMember)
	_, otherID := signUp(t, srv, "bob", domain.RoleMember)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/oauth/callback", map[string]any{
		"service": "jira",
		"code":    "c",
		"state":   "s",
		"user_id": otherID,
	}, bearer(token))
	expectStatus(t, res, data, http.StatusForbidden)

	// no provider credentials are configured in tests
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/integrations/jira/authorize", map[string]any{}, bearer(token))
	expectStatus(t, res, data, http.StatusBadRequest)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/integrations", nil, bearer(token))
	expectStatus(t, res, data, http.StatusOK)
	var list IntegrationListResponse
	decode(t, data, &list)
	if len(list.Integrations) != 0 {
		t.Fatalf("expected no integrations for %s, got %s", userID, string(data))
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/integrations/clickup/settings", map[string]any{
		"credit_rules": map[string]int{"bug": 5},
	}, bearer(token))
	expectStatus(t, res, data, http.StatusNotFound)
}
