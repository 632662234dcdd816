package integrations

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"honourus/internal/config"
	"honourus/internal/domain"
	"honourus/internal/events"
	"honourus/internal/repo"
)

// Callback stages.
const (
	StagePending   = "pending"
	StageExchanged = "exchanged"
	StagePersisted = "persisted"
)

const stateBytes = 32

// UpstreamError is a failed OAuth callback step.
type UpstreamError struct {
	Service string
	Stage   string
	Message string
}

func (e UpstreamError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Service, e.Stage, e.Message)
}

// SettingsError rejects integration settings.
type SettingsError struct {
	Reason string
}

func (e SettingsError) Error() string { return "invalid settings: " + e.Reason }

type Client struct {
	Repo       repo.Repo
	Events     events.Writer
	Providers  Providers
	Policy     func() *config.Config
	HTTPClient *http.Client
	Now        func() time.Time
}

func (c Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c Client) policy() *config.Config {
	if c.Policy != nil {
		if p := c.Policy(); p != nil {
			return p
		}
	}
	return config.Default()
}

func (c Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}

// AuthorizeResult tells the caller where to send the user.
type AuthorizeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
	ExpiresAt        string `json:"expires_at" format:"date-time"`
}

// Authorize stores a fresh state for userID and builds the provider URL.
func (c Client) Authorize(ctx context.Context, userID, service, redirectURI string) (AuthorizeResult, error) {
	pc, err := c.Providers.Get(service)
	if err != nil {
		return AuthorizeResult{}, err
	}
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return AuthorizeResult{}, fmt.Errorf("generate state: %w", err)
	}
	now := c.now()
	st := domain.OAuthState{
		State:       hex.EncodeToString(buf),
		UserID:      userID,
		Service:     service,
		RedirectURI: redirectURI,
		ExpiresAt:   repo.Timestamp(now.Add(c.policy().StateTTL())),
		CreatedAt:   repo.Timestamp(now),
	}
	if err := c.Repo.InsertOAuthState(ctx, st); err != nil {
		return AuthorizeResult{}, fmt.Errorf("store state: %w", err)
	}
	cfg := pc.OAuth2()
	if redirectURI != "" {
		cfg.RedirectURL = redirectURI
	}
	var opts []oauth2.AuthCodeOption
	if service == domain.ServiceJira {
		opts = append(opts, oauth2.SetAuthURLParam("audience", "api.atlassian.com"), oauth2.SetAuthURLParam("prompt", "consent"))
	}
	return AuthorizeResult{
		AuthorizationURL: cfg.AuthCodeURL(st.State, opts...),
		State:            st.State,
		ExpiresAt:        st.ExpiresAt,
	}, nil
}

// CallbackInput is the payload posted back by the frontend.
type CallbackInput struct {
	Service string
	Code    string
	State   string
	UserID  string
}

// Callback walks pending, exchanged and persisted. A failure leaves the
// state row in place until it expires.
func (c Client) Callback(ctx context.Context, in CallbackInput) (domain.Integration, error) {
	pc, err := c.Providers.Get(in.Service)
	if err != nil {
		return domain.Integration{}, err
	}
	fail := func(stage, format string, args ...any) error {
		return UpstreamError{Service: in.Service, Stage: stage, Message: fmt.Sprintf(format, args...)}
	}
	if in.Code == "" || in.State == "" {
		return domain.Integration{}, fail(StagePending, "code and state are required")
	}

	st, err := c.Repo.GetOAuthState(ctx, in.State)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Integration{}, fail(StagePending, "unknown state")
	}
	if err != nil {
		return domain.Integration{}, err
	}
	now := c.now()
	switch {
	case st.Service != in.Service || st.UserID != in.UserID:
		return domain.Integration{}, fail(StagePending, "state does not match this request")
	case st.ExpiresAt <= repo.Timestamp(now):
		return domain.Integration{}, fail(StagePending, "state expired")
	}

	cfg := pc.OAuth2()
	if st.RedirectURI != "" {
		cfg.RedirectURL = st.RedirectURI
	}
	hctx := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient())
	tok, err := cfg.Exchange(hctx, in.Code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return domain.Integration{}, fail(StageExchanged, "token exchange failed with status %d", re.Response.StatusCode)
		}
		return domain.Integration{}, fail(StageExchanged, "token exchange failed: %v", err)
	}
	wsID, wsName, err := c.fetchWorkspace(ctx, in.Service, pc, tok)
	if err != nil {
		return domain.Integration{}, fail(StageExchanged, "%v", err)
	}

	ts := repo.Timestamp(now)
	integ := domain.Integration{
		ID:            uuid.Must(uuid.NewV7()).String(),
		UserID:        in.UserID,
		Service:       in.Service,
		AccessToken:   tok.AccessToken,
		RefreshToken:  tok.RefreshToken,
		WorkspaceID:   wsID,
		WorkspaceName: wsName,
		Settings:      c.policy().IntegrationDefaults(in.Service),
		IsActive:      true,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	if !tok.Expiry.IsZero() {
		exp := repo.Timestamp(tok.Expiry)
		integ.TokenExpiresAt = &exp
	}
	tx, err := c.Repo.Begin(ctx)
	if err != nil {
		return domain.Integration{}, err
	}
	defer tx.Rollback()
	stored, err := c.Repo.UpsertIntegrationTx(ctx, tx, integ)
	if err != nil {
		return domain.Integration{}, fail(StagePersisted, "store integration: %v", err)
	}
	if err := c.Repo.DeleteOAuthStateTx(ctx, tx, st.State); err != nil {
		return domain.Integration{}, fail(StagePersisted, "delete state: %v", err)
	}
	w := c.Events
	if w.Now == nil {
		w.Now = c.now
	}
	if err := w.Append(ctx, tx, events.IntegrationConnected, "integration", stored.ID, in.UserID, events.EventPayload{
		"service":      in.Service,
		"workspace_id": wsID,
	}); err != nil {
		return domain.Integration{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Integration{}, err
	}
	log.WithFields(log.Fields{"service": in.Service, "user_id": in.UserID, "workspace_id": wsID}).Info("integration connected")
	return stored, nil
}

type jiraResource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type clickUpTeams struct {
	Teams []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"teams"`
}

func (c Client) fetchWorkspace(ctx context.Context, service string, pc ProviderConfig, tok *oauth2.Token) (string, string, error) {
	var url string
	switch service {
	case domain.ServiceJira:
		url = pc.APIURL + "/oauth/token/accessible-resources"
	case domain.ServiceClickUp:
		url = pc.APIURL + "/team"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Accept", "application/json")
	if service == domain.ServiceClickUp {
		// ClickUp expects the raw token without a scheme.
		req.Header.Set("Authorization", tok.AccessToken)
	} else {
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch workspace: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", "", fmt.Errorf("read workspace: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return "", "", fmt.Errorf("fetch workspace failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	switch service {
	case domain.ServiceJira:
		var resources []jiraResource
		if err := json.Unmarshal(body, &resources); err != nil {
			return "", "", fmt.Errorf("decode accessible resources: %w", err)
		}
		if len(resources) == 0 || resources[0].ID == "" {
			return "", "", errors.New("no accessible Jira site")
		}
		return resources[0].ID, resources[0].Name, nil
	default:
		var teams clickUpTeams
		if err := json.Unmarshal(body, &teams); err != nil {
			return "", "", fmt.Errorf("decode teams: %w", err)
		}
		if len(teams.Teams) == 0 || teams.Teams[0].ID == "" {
			return "", "", errors.New("no ClickUp workspace")
		}
		return teams.Teams[0].ID, teams.Teams[0].Name, nil
	}
}

// UpdateSettings replaces the settings of userID's integration for service.
func (c Client) UpdateSettings(ctx context.Context, userID, service string, settings domain.IntegrationSettings) (domain.Integration, error) {
	if service != domain.ServiceJira && service != domain.ServiceClickUp {
		return domain.Integration{}, UnsupportedServiceError{Service: service}
	}
	if settings.StatusMappings == nil {
		settings.StatusMappings = map[string]string{}
	}
	if settings.CreditRules == nil {
		settings.CreditRules = map[string]int64{}
	}
	if settings.SelectedProjects == nil {
		settings.SelectedProjects = []string{}
	}
	for k, v := range settings.CreditRules {
		if v < 0 {
			return domain.Integration{}, SettingsError{Reason: fmt.Sprintf("credit rule %s must not be negative", k)}
		}
	}
	if err := c.Repo.UpdateIntegrationSettings(ctx, userID, service, settings, repo.Timestamp(c.now())); err != nil {
		return domain.Integration{}, err
	}
	return c.Repo.GetIntegration(ctx, userID, service)
}

// PurgeExpiredStates removes states past their expiry.
func (c Client) PurgeExpiredStates(ctx context.Context) (int64, error) {
	return c.Repo.PurgeExpiredOAuthStates(ctx, repo.Timestamp(c.now()))
}
