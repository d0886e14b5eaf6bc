package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"dealdesk/internal/domain"
	"dealdesk/internal/engine"
	"dealdesk/internal/store"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"workflow_not_found"`
	Message string         `json:"message" example:"workflow not found: wf-123"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the decision workflow API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newIdentityMiddleware(cfg.Auth))
	hcfg := huma.DefaultConfig("Dealdesk API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerWorkflows(group, cfg.Engine)
	registerApprovals(group, cfg.Engine)
	registerInsights(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerTemplates(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, engine.ErrWorkflowNotFound):
		return newAPIError(http.StatusNotFound, "workflow_not_found", err.Error(), nil)
	case errors.Is(err, engine.ErrTemplateNotFound):
		return newAPIError(http.StatusBadRequest, "unknown_decision_type", err.Error(), nil)
	case errors.Is(err, engine.ErrApprovalLevelNotFound):
		return newAPIError(http.StatusNotFound, "approval_level_not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Dealdesk API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerWorkflows(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-workflow",
		Method:        http.MethodPost,
		Path:          "/workflows",
		Summary:       "Create decision workflow",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateWorkflowRequest `json:"body"`
	}) (*struct {
		Body WorkflowResponse `json:"body"`
	}, error) {
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		if input.Body.DecisionType == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "decision_type is required", nil)
		}
		opts := engine.WorkflowCreateOptions{
			Title:        input.Body.Title,
			DecisionType: input.Body.DecisionType,
			Priority:     input.Body.Priority,
			ActorID:      principalFromContext(ctx).ActorID,
		}
		if opts.Priority == "" {
			opts.Priority = "medium"
		}
		if input.Body.EntityType != nil {
			opts.EntityType = *input.Body.EntityType
		}
		if input.Body.EntityID != nil {
			opts.EntityID = *input.Body.EntityID
		}
		if input.Body.Context != nil {
			opts.Context = *input.Body.Context
		}
		if input.Body.TargetDecisionAt != nil {
			opts.TargetDecisionAt = *input.Body.TargetDecisionAt
		}
		wf, err := e.CreateWorkflow(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkflowResponse `json:"body"`
		}{Body: workflowResponse(wf)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-workflows",
		Method:      http.MethodGet,
		Path:        "/workflows",
		Summary:     "List workflows visible to a user",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		UserID string `query:"user_id"`
		Role   string `query:"role"`
	}) (*struct {
		Body []WorkflowResponse `json:"body"`
	}, error) {
		userID := input.UserID
		if userID == "" {
			userID = principalFromContext(ctx).ActorID
		}
		items, err := e.WorkflowsForUser(ctx, userID, input.Role)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []WorkflowResponse `json:"body"`
		}{Body: mapWorkflows(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-workflow",
		Method:      http.MethodGet,
		Path:        "/workflows/{workflow_id}",
		Summary:     "Get workflow",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkflowID string `path:"workflow_id"`
	}) (*struct {
		Body WorkflowResponse `json:"body"`
	}, error) {
		wf, err := e.Store.GetWorkflow(ctx, input.WorkflowID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, handleError(fmt.Errorf("%w: %s", engine.ErrWorkflowNotFound, input.WorkflowID))
			}
			return nil, handleError(err)
		}
		return &struct {
			Body WorkflowResponse `json:"body"`
		}{Body: workflowResponse(wf)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-workflow-stage",
		Method:      http.MethodPatch,
		Path:        "/workflows/{workflow_id}/stages/{stage_id}",
		Summary:     "Update the current stage",
		Description: "Only the workflow's current stage can be modified; a non-matching stage_id is accepted and ignored.",
		Errors: []int{
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		WorkflowID string             `path:"workflow_id"`
		StageID    string             `path:"stage_id"`
		Body       UpdateStageRequest `json:"body"`
	}) (*struct {
		Body WorkflowResponse `json:"body"`
	}, error) {
		wf, err := e.UpdateWorkflowStage(ctx, input.WorkflowID, input.StageID, engine.StageUpdate{
			StartedAt:        input.Body.StartedAt,
			CompletedAt:      input.Body.CompletedAt,
			CompletedActions: input.Body.CompletedActions,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkflowResponse `json:"body"`
		}{Body: workflowResponse(wf)}, nil
	})
}

func registerApprovals(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "process-approval",
		Method:      http.MethodPost,
		Path:        "/workflows/{workflow_id}/approvals",
		Summary:     "Record an approval decision",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		WorkflowID string                 `path:"workflow_id"`
		Body       ProcessApprovalRequest `json:"body"`
	}) (*struct {
		Body WorkflowResponse `json:"body"`
	}, error) {
		if input.Body.Role == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "role is required", nil)
		}
		if input.Body.Decision != engine.DecisionApproved && input.Body.Decision != engine.DecisionRejected {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "decision must be approved or rejected", nil)
		}
		opts := engine.ApprovalOptions{
			WorkflowID: input.WorkflowID,
			ApproverID: principalFromContext(ctx).ActorID,
			Role:       input.Body.Role,
			Decision:   input.Body.Decision,
		}
		if input.Body.Comments != nil {
			opts.Comments = *input.Body.Comments
		}
		wf, err := e.ProcessApproval(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkflowResponse `json:"body"`
		}{Body: workflowResponse(wf)}, nil
	})
}

func registerInsights(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "workflow-insights",
		Method:      http.MethodGet,
		Path:        "/workflows/{workflow_id}/insights",
		Summary:     "Derive workflow insights",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkflowID string `path:"workflow_id"`
	}) (*struct {
		Body domain.Insights `json:"body"`
	}, error) {
		ins, err := e.WorkflowInsights(ctx, input.WorkflowID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Insights `json:"body"`
		}{Body: ins}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List audit events, newest first",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		WorkflowID string `query:"workflow_id"`
		Limit      int    `query:"limit"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = 50
		}
		items, err := e.WorkflowEvents(ctx, input.WorkflowID, limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: mapEvents(items)}, nil
	})
}

func registerTemplates(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-decision-types",
		Method:      http.MethodGet,
		Path:        "/decision-types",
		Summary:     "List supported decision types",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []string `json:"body"`
	}, error) {
		return &struct {
			Body []string `json:"body"`
		}{Body: e.Templates.DecisionTypes()}, nil
	})
}
