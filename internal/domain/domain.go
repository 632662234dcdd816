package domain

const (
	RoleMember  = "member"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

const (
	StatusTodo       = "todo"
	StatusInProgress = "in-progress"
	StatusInReview   = "in-review"
	StatusCompleted  = "completed"
	StatusRejected   = "rejected"
)

// TaskStatuses lists every accepted task status.
var TaskStatuses = []string{StatusTodo, StatusInProgress, StatusInReview, StatusCompleted, StatusRejected}

// TaskPriorities lists every accepted task priority.
var TaskPriorities = []string{"low", "medium", "high", "urgent"}

const (
	ServiceJira    = "jira"
	ServiceClickUp = "clickup"
)

const (
	SourceTask        = "task"
	SourceRecognition = "recognition"
	SourceAdjustment  = "adjustment"
)

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         string `json:"role" enum:"member,manager,admin"`
	Department   string `json:"department"`
	AvatarURL    string `json:"avatarUrl,omitempty"`
	Credits      int64  `json:"credits"`
	PasswordHash string `json:"-"`
	CreatedAt    string `json:"createdAt" format:"date-time"`
	UpdatedAt    string `json:"updatedAt" format:"date-time"`
}

type Task struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	Type            string   `json:"type"`
	Priority        string   `json:"priority" enum:"low,medium,high,urgent"`
	Status          string   `json:"status" enum:"todo,in-progress,in-review,completed,rejected"`
	AssigneeID      *string  `json:"assigneeId,omitempty"`
	CreatedBy       string   `json:"createdBy"`
	TeamID          *string  `json:"teamId,omitempty"`
	Credits         int64    `json:"credits"`
	RequiresProof   bool     `json:"requiresProof"`
	ProofUploaded   bool     `json:"proofUploaded"`
	ProofURL        *string  `json:"proofUrl,omitempty"`
	RejectionReason *string  `json:"rejectionReason,omitempty"`
	Tags            []string `json:"tags"`
	DueDate         *string  `json:"dueDate,omitempty"`
	CreatedAt       string   `json:"createdAt" format:"date-time"`
	UpdatedAt       string   `json:"updatedAt" format:"date-time"`
	CompletedAt     *string  `json:"completedAt,omitempty" format:"date-time"`
}

type Recognition struct {
	ID         string `json:"id"`
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
	Message    string `json:"message"`
	Credits    int64  `json:"credits"`
	Type       string `json:"type" enum:"achievement,collaboration,innovation,leadership"`
	CreatedAt  string `json:"createdAt" format:"date-time"`
}

type Team struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	LeaderID    string   `json:"leaderId"`
	MemberIDs   []string `json:"memberIds"`
	ChannelIDs  []string `json:"channelIds"`
	CreatedAt   string   `json:"createdAt" format:"date-time"`
}

// HasMember reports whether userID belongs to the team.
func (t Team) HasMember(userID string) bool {
	for _, id := range t.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IntegrationSettings is the per-integration sync configuration.
type IntegrationSettings struct {
	StatusMappings   map[string]string `json:"status_mappings" yaml:"status_mappings"`
	CreditRules      map[string]int64  `json:"credit_rules" yaml:"credit_rules"`
	SelectedProjects []string          `json:"selected_projects" yaml:"selected_projects"`
}

type Integration struct {
	ID             string              `json:"id"`
	UserID         string              `json:"user_id"`
	Service        string              `json:"service" enum:"jira,clickup"`
	AccessToken    string              `json:"-"`
	RefreshToken   string              `json:"-"`
	TokenExpiresAt *string             `json:"token_expires_at,omitempty" format:"date-time"`
	WorkspaceID    string              `json:"workspace_id"`
	WorkspaceName  string              `json:"workspace_name"`
	Settings       IntegrationSettings `json:"settings"`
	IsActive       bool                `json:"is_active"`
	CreatedAt      string              `json:"created_at" format:"date-time"`
	UpdatedAt      string              `json:"updated_at" format:"date-time"`
}

type OAuthState struct {
	State       string `json:"state"`
	UserID      string `json:"user_id"`
	Service     string `json:"service"`
	RedirectURI string `json:"redirect_uri,omitempty"`
	ExpiresAt   string `json:"expires_at" format:"date-time"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type CreditEntry struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Amount     int64  `json:"amount"`
	SourceKind string `json:"source_kind" enum:"task,recognition,adjustment"`
	SourceID   string `json:"source_id"`
	ActorID    string `json:"actor_id"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload"`
}
