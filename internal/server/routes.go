package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"honourus/internal/domain"
	"honourus/internal/engine"
	"honourus/internal/engine/auth"
	"honourus/internal/repo"
)

func registerAuth(api huma.API, e engine.Engine, cfg AuthConfig) {
	respond := func(u domain.User) (*struct {
		Body AuthResponse `json:"body"`
	}, error) {
		token, err := IssueToken(cfg, u)
		if err != nil {
			return nil, err
		}
		return &struct {
			Body AuthResponse `json:"body"`
		}{Body: AuthResponse{
			User:        u,
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresAt:   repo.Timestamp(cfg.now().Add(cfg.ttl())),
		}}, nil
	}

	huma.Register(api, huma.Operation{
		OperationID:   "sign-up",
		Method:        http.MethodPost,
		Path:          "/auth/signup",
		Summary:       "Register a user",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body SignUpRequest
	}) (*struct {
		Body AuthResponse `json:"body"`
	}, error) {
		u, err := e.SignUp(ctx, engine.SignUpOptions{
			Email:      input.Body.Email,
			Password:   input.Body.Password,
			Name:       input.Body.Name,
			Department: input.Body.Department,
			Role:       input.Body.Role,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		out, err := respond(u)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sign-in",
		Method:      http.MethodPost,
		Path:        "/auth/signin",
		Summary:     "Exchange credentials for an access token",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body SignInRequest
	}) (*struct {
		Body AuthResponse `json:"body"`
	}, error) {
		u, err := e.SignIn(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		out, err := respond(u)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return out, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status     string `query:"status"`
		AssigneeID string `query:"assignee_id"`
		TeamID     string `query:"team_id"`
		Limit      int    `query:"limit"`
	}) (*struct {
		Body TaskListResponse `json:"body"`
	}, error) {
		tasks, err := e.ListTasks(ctx, repo.TaskFilters{
			Status:     input.Status,
			AssigneeID: input.AssigneeID,
			TeamID:     input.TeamID,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body TaskListResponse `json:"body"`
		}{Body: TaskListResponse{Tasks: nonNilTasks(tasks)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		caller, authErr := currentUser(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b := input.Body
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			Title:         b.Title,
			Description:   b.Description,
			Type:          b.Type,
			Priority:      b.Priority,
			AssigneeID:    b.AssigneeID,
			TeamID:        b.TeamID,
			Credits:       b.Credits,
			RequiresProof: b.RequiresProof,
			Tags:          b.Tags,
			DueDate:       b.DueDate,
			ActorID:       caller.ID,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: TaskResponse{Task: t}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		t, err := e.Repo.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: TaskResponse{Task: t}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPut,
		Path:        "/tasks/{id}",
		Summary:     "Update task",
		Description: "Partial update. Completing a task pays its assignee according to the completion award policy.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body UpdateTaskRequest
	}) (*struct {
		Body TaskUpdateResponse `json:"body"`
	}, error) {
		caller, authErr := currentUser(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.UpdateTask(ctx, input.Body.options(input.ID, caller.ID))
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body TaskUpdateResponse `json:"body"`
		}{Body: TaskUpdateResponse{Task: res.Task, CreditsAwarded: res.CreditsAwarded}}, nil
	})
}

func registerRecognitions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-recognitions",
		Method:      http.MethodGet,
		Path:        "/recognitions",
		Summary:     "List recognitions, newest first",
	}, func(ctx context.Context, input *struct {
		UserID string `query:"user_id" doc:"Matches sender or recipient"`
		Limit  int    `query:"limit"`
	}) (*struct {
		Body RecognitionListResponse `json:"body"`
	}, error) {
		recs, err := e.Repo.ListRecognitions(ctx, input.UserID, input.Limit)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		if recs == nil {
			recs = []domain.Recognition{}
		}
		return &struct {
			Body RecognitionListResponse `json:"body"`
		}{Body: RecognitionListResponse{Recognitions: recs}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "send-recognition",
		Method:        http.MethodPost,
		Path:          "/recognitions",
		Summary:       "Recognize a colleague",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateRecognitionRequest
	}) (*struct {
		Body RecognitionResponse `json:"body"`
	}, error) {
		caller, authErr := currentUser(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rec, err := e.SendRecognition(ctx, engine.RecognitionOptions{
			FromUserID: caller.ID,
			ToUserID:   input.Body.ToUserID,
			Message:    input.Body.Message,
			Type:       input.Body.Type,
			Credits:    input.Body.Credits,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body RecognitionResponse `json:"body"`
		}{Body: RecognitionResponse{Recognition: rec}}, nil
	})
}

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "Leaderboard of users by credits",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit"`
	}) (*struct {
		Body UserListResponse `json:"body"`
	}, error) {
		users, err := e.Repo.ListUsers(ctx, input.Limit)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body UserListResponse `json:"body"`
		}{Body: UserListResponse{Users: users}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{id}",
		Summary:     "Get user",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		u, err := e.Repo.GetUser(ctx, input.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: UserResponse{User: u}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-user",
		Method:      http.MethodPut,
		Path:        "/users/{id}",
		Summary:     "Update profile",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body UpdateUserRequest
	}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		caller, authErr := currentUser(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.UpdateProfile(ctx, caller, input.ID, input.Body.update())
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: UserResponse{User: u}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "user-ledger",
		Method:      http.MethodGet,
		Path:        "/users/{id}/ledger",
		Summary:     "Credit history",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ID    string `path:"id"`
		Limit int    `query:"limit" default:"50"`
	}) (*struct {
		Body LedgerResponse `json:"body"`
	}, error) {
		caller, authErr := currentUser(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := auth.CanViewCredits(caller, input.ID); err != nil {
			return nil, handleError(ctx, err)
		}
		entries, err := e.Repo.ListCreditEntries(ctx, input.ID, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body LedgerResponse `json:"body"`
		}{Body: LedgerResponse{Entries: entries}}, nil
	})
}

func registerTeams(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-teams",
		Method:      http.MethodGet,
		Path:        "/teams",
		Summary:     "List teams with members",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body TeamListResponse `json:"body"`
	}, error) {
		teams, err := e.Repo.ListTeams(ctx)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		if teams == nil {
			teams = []domain.Team{}
		}
		return &struct {
			Body TeamListResponse `json:"body"`
		}{Body: TeamListResponse{Teams: teams}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-team",
		Method:        http.MethodPost,
		Path:          "/teams",
		Summary:       "Create team led by the caller",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateTeamRequest
	}) (*struct {
		Body TeamResponse `json:"body"`
	}, error) {
		caller, authErr := currentUser(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTeam(ctx, engine.TeamOptions{
			Name:        input.Body.Name,
			Description: input.Body.Description,
			ChannelIDs:  input.Body.ChannelIDs,
			LeaderID:    caller.ID,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body TeamResponse `json:"body"`
		}{Body: TeamResponse{Team: t}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-team-member",
		Method:      http.MethodPost,
		Path:        "/teams/{id}/members",
		Summary:     "Add team member",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body AddTeamMemberRequest
	}) (*struct {
		Body TeamResponse `json:"body"`
	}, error) {
		caller, authErr := currentUser(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.AddTeamMember(ctx, caller, input.ID, input.Body.UserID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body TeamResponse `json:"body"`
		}{Body: TeamResponse{Team: t}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-team-member",
		Method:      http.MethodDelete,
		Path:        "/teams/{id}/members/{user_id}",
		Summary:     "Remove team member",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		UserID string `path:"user_id"`
	}) (*struct {
		Body TeamResponse `json:"body"`
	}, error) {
		caller, authErr := currentUser(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.RemoveTeamMember(ctx, caller, input.ID, input.UserID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body TeamResponse `json:"body"`
		}{Body: TeamResponse{Team: t}}, nil
	})
}

func registerActivity(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity",
		Method:      http.MethodGet,
		Path:        "/activity",
		Summary:     "Latest events",
	}, func(ctx context.Context, input *struct {
		Type  string `query:"type"`
		Limit int    `query:"limit" default:"50"`
	}) (*struct {
		Body ActivityResponse `json:"body"`
	}, error) {
		items, err := e.Repo.LatestEvents(ctx, normalizeLimit(input.Limit), input.Type)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		if items == nil {
			items = []domain.Event{}
		}
		return &struct {
			Body ActivityResponse `json:"body"`
		}{Body: ActivityResponse{Events: items}}, nil
	})
}
