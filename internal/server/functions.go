package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"honourus/internal/analytics"
	"honourus/internal/domain"
	"honourus/internal/engine"
	"honourus/internal/engine/auth"
	"honourus/internal/integrations"
)

func registerAnalytics(api huma.API, e engine.Engine, svc analytics.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "analytics-summary",
		Method:      http.MethodGet,
		Path:        "/analytics",
		Summary:     "Dashboard aggregates",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body AnalyticsResponse `json:"body"`
	}, error) {
		caller, authErr := currentUser(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sum, err := svc.Summary(ctx, caller.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body AnalyticsResponse `json:"body"`
		}{Body: AnalyticsResponse{Analytics: sum}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unsung-hero",
		Method:      http.MethodPost,
		Path:        "/functions/unsung-hero",
		Summary:     "Rank assignees by contribution breadth",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body UnsungHeroRequest
	}) (*struct {
		Body UnsungHeroResponse `json:"body"`
	}, error) {
		caller, authErr := currentUser(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if strings.TrimSpace(input.Body.UserID) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "user_id is required")
		}
		if err := auth.CanActFor(caller, input.Body.UserID); err != nil {
			return nil, handleError(ctx, err)
		}
		report, err := svc.UnsungHero(ctx, analytics.UnsungHeroQuery{
			TeamID:   input.Body.TeamID,
			DateFrom: input.Body.DateFrom,
			DateTo:   input.Body.DateTo,
		})
		if err != nil {
			return nil, analyticsError(ctx, err)
		}
		return &struct {
			Body UnsungHeroResponse `json:"body"`
		}{Body: UnsungHeroResponse{Report: report}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "heatmap",
		Method:      http.MethodPost,
		Path:        "/functions/heatmap",
		Summary:     "Daily contribution heatmap for a year",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body HeatmapRequest
	}) (*struct {
		Body HeatmapResponse `json:"body"`
	}, error) {
		caller, authErr := currentUser(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if strings.TrimSpace(input.Body.UserID) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "user_id is required")
		}
		if err := heatmapAllowed(ctx, e, caller, input.Body.UserID, input.Body.RequesterID); err != nil {
			return nil, analyticsError(ctx, err)
		}
		days, err := svc.Heatmap(ctx, input.Body.UserID, input.Body.Year)
		if err != nil {
			return nil, analyticsError(ctx, err)
		}
		return &struct {
			Body HeatmapResponse `json:"body"`
		}{Body: HeatmapResponse{Heatmap: days}}, nil
	})
}

// heatmapAllowed lets users see their own heatmap and managers see anyone's.
// Only admins may name a requester other than themselves.
func heatmapAllowed(ctx context.Context, e engine.Engine, caller domain.User, userID, requesterID string) error {
	if requesterID == "" {
		requesterID = caller.ID
	}
	if err := auth.CanActFor(caller, requesterID); err != nil {
		return err
	}
	if requesterID == userID {
		return nil
	}
	requester := caller
	if requesterID != caller.ID {
		u, err := e.Repo.GetUser(ctx, requesterID)
		if err != nil {
			return err
		}
		requester = u
	}
	if !auth.IsManager(requester) {
		return auth.ForbiddenError{Action: "view another user's heatmap"}
	}
	return nil
}

func registerIntegrations(api huma.API, c integrations.Client) {
	huma.Register(api, huma.Operation{
		OperationID: "authorize-integration",
		Method:      http.MethodPost,
		Path:        "/integrations/{service}/authorize",
		Summary:     "Start an OAuth connection",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Service string           `path:"service" enum:"jira,clickup"`
		Body    AuthorizeRequest `required:"false"`
	}) (*struct {
		Body integrations.AuthorizeResult `json:"body"`
	}, error) {
		caller, authErr := currentUser(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := c.Authorize(ctx, caller.ID, input.Service, input.Body.RedirectURI)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body integrations.AuthorizeResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "oauth-callback",
		Method:      http.MethodPost,
		Path:        "/oauth/callback",
		Summary:     "Complete an OAuth connection",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body OAuthCallbackRequest
	}) (*struct {
		Body IntegrationResponse `json:"body"`
	}, error) {
		caller, authErr := currentUser(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.UserID != caller.ID {
			return nil, handleError(ctx, auth.ForbiddenError{Action: "connect an integration for another user"})
		}
		in, err := c.Callback(ctx, integrations.CallbackInput{
			Service: input.Body.Service,
			Code:    input.Body.Code,
			State:   input.Body.State,
			UserID:  input.Body.UserID,
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body IntegrationResponse `json:"body"`
		}{Body: IntegrationResponse{Integration: in}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-integrations",
		Method:      http.MethodGet,
		Path:        "/integrations",
		Summary:     "List the caller's integrations",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body IntegrationListResponse `json:"body"`
	}, error) {
		caller, authErr := currentUser(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := c.Repo.ListIntegrations(ctx, caller.ID)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		if items == nil {
			items = []domain.Integration{}
		}
		return &struct {
			Body IntegrationListResponse `json:"body"`
		}{Body: IntegrationListResponse{Integrations: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-integration-settings",
		Method:      http.MethodPut,
		Path:        "/integrations/{service}/settings",
		Summary:     "Replace integration sync settings",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Service string `path:"service" enum:"jira,clickup"`
		Body    IntegrationSettingsRequest
	}) (*struct {
		Body IntegrationResponse `json:"body"`
	}, error) {
		caller, authErr := currentUser(ctx)
		if authErr != nil {
			return nil, authErr
		}
		in, err := c.UpdateSettings(ctx, caller.ID, input.Service, input.Body.settings())
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body IntegrationResponse `json:"body"`
		}{Body: IntegrationResponse{Integration: in}}, nil
	})
}
