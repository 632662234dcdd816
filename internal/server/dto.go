package server

import (
	"honourus/internal/analytics"
	"honourus/internal/domain"
	"honourus/internal/engine"
	"honourus/internal/repo"
)

// Request payloads

type SignUpRequest struct {
	Email      string `json:"email" format:"email"`
	Password   string `json:"password" minLength:"8"`
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
	Role       string `json:"role,omitempty" enum:"member,manager"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateTaskRequest struct {
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Type          string   `json:"type,omitempty"`
	Priority      string   `json:"priority,omitempty" enum:"low,medium,high,urgent"`
	AssigneeID    string   `json:"assigneeId,omitempty"`
	TeamID        string   `json:"teamId,omitempty"`
	Credits       *int64   `json:"credits,omitempty" minimum:"0"`
	RequiresProof bool     `json:"requiresProof,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	DueDate       string   `json:"dueDate,omitempty"`
}

// UpdateTaskRequest is a partial update. An empty assigneeId, teamId,
// proofUrl or dueDate clears the field.
type UpdateTaskRequest struct {
	Title           *string  `json:"title,omitempty"`
	Description     *string  `json:"description,omitempty"`
	Type            *string  `json:"type,omitempty"`
	Priority        *string  `json:"priority,omitempty" enum:"low,medium,high,urgent"`
	Status          *string  `json:"status,omitempty" enum:"todo,in-progress,in-review,completed,rejected"`
	AssigneeID      *string  `json:"assigneeId,omitempty"`
	TeamID          *string  `json:"teamId,omitempty"`
	Credits         *int64   `json:"credits,omitempty" minimum:"0"`
	RequiresProof   *bool    `json:"requiresProof,omitempty"`
	ProofUploaded   *bool    `json:"proofUploaded,omitempty"`
	ProofURL        *string  `json:"proofUrl,omitempty"`
	RejectionReason *string  `json:"rejectionReason,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	DueDate         *string  `json:"dueDate,omitempty"`
}

func (r UpdateTaskRequest) options(taskID, actorID string) engine.TaskUpdateOptions {
	return engine.TaskUpdateOptions{
		ID:              taskID,
		ActorID:         actorID,
		Title:           r.Title,
		Description:     r.Description,
		Type:            r.Type,
		Priority:        r.Priority,
		Status:          r.Status,
		AssigneeID:      r.AssigneeID,
		TeamID:          r.TeamID,
		Credits:         r.Credits,
		RequiresProof:   r.RequiresProof,
		ProofUploaded:   r.ProofUploaded,
		ProofURL:        r.ProofURL,
		RejectionReason: r.RejectionReason,
		TagsSet:         r.Tags != nil,
		Tags:            r.Tags,
		DueDate:         r.DueDate,
	}
}

type CreateRecognitionRequest struct {
	ToUserID string `json:"toUserId"`
	Message  string `json:"message"`
	Type     string `json:"type"`
	Credits  *int64 `json:"credits,omitempty" minimum:"0"`
}

type UpdateUserRequest struct {
	Name       *string `json:"name,omitempty"`
	Department *string `json:"department,omitempty"`
	AvatarURL  *string `json:"avatarUrl,omitempty"`
	Role       *string `json:"role,omitempty" enum:"member,manager,admin"`
}

func (r UpdateUserRequest) update() repo.UserUpdate {
	return repo.UserUpdate{
		Name:       r.Name,
		Department: r.Department,
		AvatarURL:  r.AvatarURL,
		Role:       r.Role,
	}
}

type CreateTeamRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	ChannelIDs  []string `json:"channelIds,omitempty"`
}

type AddTeamMemberRequest struct {
	UserID string `json:"userId"`
}

type UnsungHeroRequest struct {
	UserID   string `json:"user_id"`
	TeamID   string `json:"team_id,omitempty"`
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
}

type HeatmapRequest struct {
	UserID      string `json:"user_id"`
	Year        int    `json:"year"`
	RequesterID string `json:"requester_id,omitempty"`
}

type AuthorizeRequest struct {
	RedirectURI string `json:"redirect_uri,omitempty"`
}

type IntegrationSettingsRequest struct {
	StatusMappings   map[string]string `json:"status_mappings,omitempty"`
	CreditRules      map[string]int64  `json:"credit_rules,omitempty"`
	SelectedProjects []string          `json:"selected_projects,omitempty"`
}

func (r IntegrationSettingsRequest) settings() domain.IntegrationSettings {
	return domain.IntegrationSettings{
		StatusMappings:   r.StatusMappings,
		CreditRules:      r.CreditRules,
		SelectedProjects: r.SelectedProjects,
	}
}

type OAuthCallbackRequest struct {
	Service string `json:"service" enum:"jira,clickup"`
	Code    string `json:"code"`
	State   string `json:"state"`
	UserID  string `json:"user_id"`
}

// Response payloads

type AuthResponse struct {
	User        domain.User `json:"user"`
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type" example:"Bearer"`
	ExpiresAt   string      `json:"expires_at" format:"date-time"`
}

type TaskResponse struct {
	Task domain.Task `json:"task"`
}

type TaskUpdateResponse struct {
	Task           domain.Task `json:"task"`
	CreditsAwarded int64       `json:"credits_awarded"`
}

type TaskListResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

type RecognitionResponse struct {
	Recognition domain.Recognition `json:"recognition"`
}

type RecognitionListResponse struct {
	Recognitions []domain.Recognition `json:"recognitions"`
}

type UserResponse struct {
	User domain.User `json:"user"`
}

type UserListResponse struct {
	Users []domain.User `json:"users"`
}

type LedgerResponse struct {
	Entries []domain.CreditEntry `json:"entries"`
}

type TeamResponse struct {
	Team domain.Team `json:"team"`
}

type TeamListResponse struct {
	Teams []domain.Team `json:"teams"`
}

type AnalyticsResponse struct {
	Analytics analytics.Summary `json:"analytics"`
}

type UnsungHeroResponse struct {
	Report []analytics.UserStats `json:"report"`
}

type HeatmapResponse struct {
	Heatmap []analytics.Day `json:"heatmap"`
}

type IntegrationResponse struct {
	Integration domain.Integration `json:"integration"`
}

type IntegrationListResponse struct {
	Integrations []domain.Integration `json:"integrations"`
}

type ActivityResponse struct {
	Events []domain.Event `json:"events"`
}

func nonNilTasks(in []domain.Task) []domain.Task {
	if in == nil {
		return []domain.Task{}
	}
	return in
}
