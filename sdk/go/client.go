package honourussdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBasePath is the path prefix of every Honourus route.
const DefaultBasePath = "/make-server-honourus"

// Client is a minimal Honourus HTTP API client.
type Client struct {
	BaseURL    string
	BasePath   string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: DefaultBasePath,
		Timeout:  10 * time.Second,
	}
}

// User represents the API user model (partial).
type User struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department"`
	Credits    int64  `json:"credits"`
}

// Task represents the API task model (partial).
type Task struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Type          string   `json:"type"`
	Priority      string   `json:"priority"`
	Status        string   `json:"status"`
	AssigneeID    *string  `json:"assigneeId,omitempty"`
	Credits       int64    `json:"credits"`
	RequiresProof bool     `json:"requiresProof"`
	ProofUploaded bool     `json:"proofUploaded"`
	Tags          []string `json:"tags"`
	CompletedAt   *string  `json:"completedAt,omitempty"`
}

// NewTask holds the fields accepted when creating a task.
type NewTask struct {
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Type          string   `json:"type,omitempty"`
	Priority      string   `json:"priority,omitempty"`
	AssigneeID    string   `json:"assigneeId,omitempty"`
	TeamID        string   `json:"teamId,omitempty"`
	Credits       *int64   `json:"credits,omitempty"`
	RequiresProof bool     `json:"requiresProof,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

// Recognition is a peer acknowledgement.
type Recognition struct {
	ID         string `json:"id"`
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Credits    int64  `json:"credits"`
	CreatedAt  string `json:"createdAt"`
}

// HeroStats is one row of the unsung-hero report (partial).
type HeroStats struct {
	UserID         string  `json:"user_id"`
	Name           string  `json:"name"`
	TotalTasks     int     `json:"total_tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	CompletionRate float64 `json:"completion_rate"`
	Score          float64 `json:"score"`
}

// HeatmapDay is one day of a contribution heatmap.
type HeatmapDay struct {
	Date           string `json:"date"`
	TasksCompleted int    `json:"tasks_completed"`
	CreditsEarned  int64  `json:"credits_earned"`
	Intensity      int    `json:"intensity"`
}

// Event represents an activity entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

type authResponse struct {
	User        User   `json:"user"`
	AccessToken string `json:"access_token"`
}

// SignIn exchanges credentials for a token and keeps it on the client.
func (c *Client) SignIn(ctx context.Context, email, password string) (User, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "auth/signin", map[string]any{"email": email, "password": password}, &resp)
	if err != nil {
		return User{}, err
	}
	c.Token = resp.AccessToken
	return resp.User, nil
}

// SignUp registers a user and keeps the returned token on the client.
func (c *Client) SignUp(ctx context.Context, email, password, name, role string) (User, error) {
	body := map[string]any{"email": email, "password": password, "name": name}
	if role != "" {
		body["role"] = role
	}
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "auth/signup", body, &resp); err != nil {
		return User{}, err
	}
	c.Token = resp.AccessToken
	return resp.User, nil
}

// ListTasks returns tasks matching status and assignee; empty filters match all.
func (c *Client) ListTasks(ctx context.Context, status, assigneeID string) ([]Task, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if assigneeID != "" {
		q.Set("assignee_id", assigneeID)
	}
	endpoint := "tasks"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Tasks []Task `json:"tasks"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Tasks, err
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, t NewTask) (Task, error) {
	var resp struct {
		Task Task `json:"task"`
	}
	err := c.do(ctx, http.MethodPost, "tasks", t, &resp)
	return resp.Task, err
}

// UpdateTask applies a partial update and reports the credits it paid out.
func (c *Client) UpdateTask(ctx context.Context, id string, fields map[string]any) (Task, int64, error) {
	var resp struct {
		Task           Task  `json:"task"`
		CreditsAwarded int64 `json:"credits_awarded"`
	}
	err := c.do(ctx, http.MethodPut, "tasks/"+url.PathEscape(id), fields, &resp)
	return resp.Task, resp.CreditsAwarded, err
}

// CompleteTask marks a task completed.
func (c *Client) CompleteTask(ctx context.Context, id string) (Task, int64, error) {
	return c.UpdateTask(ctx, id, map[string]any{"status": "completed"})
}

// Recognize sends a recognition; credits nil uses the catalog default.
func (c *Client) Recognize(ctx context.Context, toUserID, recType, message string, credits *int64) (Recognition, error) {
	body := map[string]any{"toUserId": toUserID, "type": recType, "message": message}
	if credits != nil {
		body["credits"] = *credits
	}
	var resp struct {
		Recognition Recognition `json:"recognition"`
	}
	err := c.do(ctx, http.MethodPost, "recognitions", body, &resp)
	return resp.Recognition, err
}

// UnsungHero runs the unsung-hero report on behalf of userID.
func (c *Client) UnsungHero(ctx context.Context, userID, teamID, dateFrom, dateTo string) ([]HeroStats, error) {
	body := map[string]any{"user_id": userID}
	for k, v := range map[string]string{"team_id": teamID, "date_from": dateFrom, "date_to": dateTo} {
		if v != "" {
			body[k] = v
		}
	}
	var resp struct {
		Report []HeroStats `json:"report"`
	}
	err := c.do(ctx, http.MethodPost, "functions/unsung-hero", body, &resp)
	return resp.Report, err
}

// Heatmap returns userID's contribution heatmap for year.
func (c *Client) Heatmap(ctx context.Context, userID string, year int) ([]HeatmapDay, error) {
	var resp struct {
		Heatmap []HeatmapDay `json:"heatmap"`
	}
	err := c.do(ctx, http.MethodPost, "functions/heatmap", map[string]any{"user_id": userID, "year": year}, &resp)
	return resp.Heatmap, err
}

// Activity returns the latest events.
func (c *Client) Activity(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "activity"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp struct {
		Events []Event `json:"events"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Events, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Message, apiErr.Code = envelope.Error, envelope.Code
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if c.BasePath != "" {
		base += "/" + strings.Trim(c.BasePath, "/")
	}
	return base
}
