package dealdesksdk

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

// Client is a minimal Dealdesk HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	ActorID     string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Stage represents the API stage model (partial).
type Stage struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	RequiredActions  []string `json:"required_actions"`
	CompletedActions []string `json:"completed_actions"`
	StartedAt        *string  `json:"started_at,omitempty"`
	CompletedAt      *string  `json:"completed_at,omitempty"`
}

// ApprovalLevel represents an approval entry.
type ApprovalLevel struct {
	Role       string  `json:"role"`
	Required   bool    `json:"required"`
	Completed  bool    `json:"completed"`
	ApproverID *string `json:"approver_id,omitempty"`
	ApprovedAt *string `json:"approved_at,omitempty"`
	Comments   *string `json:"comments,omitempty"`
}

// Workflow represents the API workflow model (partial).
type Workflow struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	DecisionType      string          `json:"decision_type"`
	Priority          string          `json:"priority"`
	Status            string          `json:"status"`
	CurrentStage      Stage           `json:"current_stage"`
	RequiredApprovals []ApprovalLevel `json:"required_approvals"`
	CreatedAt         string          `json:"created_at"`
	UpdatedAt         string          `json:"updated_at"`
}

// Insights represents the derived analytics payload.
type Insights struct {
	WorkflowID      string       `json:"workflow_id"`
	Bottlenecks     []string     `json:"bottlenecks,omitempty"`
	Prediction      Prediction   `json:"prediction"`
	Recommendations []string     `json:"recommendations,omitempty"`
	RiskFactors     []RiskFactor `json:"risk_factors"`
	Efficiency      float64      `json:"efficiency"`
}

// Prediction is the estimated decision date with its inputs.
type Prediction struct {
	EstimatedCompletion string   `json:"estimated_completion"`
	Confidence          float64  `json:"confidence"`
	Factors             []string `json:"factors,omitempty"`
}

// RiskFactor is a named risk with severity and score.
type RiskFactor struct {
	Name     string  `json:"name"`
	Severity string  `json:"severity"`
	Score    float64 `json:"score"`
}

// Event represents an audit log entry.
type Event struct {
	ID         string `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	WorkflowID string `json:"workflow_id,omitempty"`
	ActorID    string `json:"actor_id,omitempty"`
	Payload    string `json:"payload_json,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateWorkflow creates a decision workflow.
func (c *Client) CreateWorkflow(ctx context.Context, title, decisionType, priority string) (Workflow, error) {
	body := map[string]any{
		"title":         title,
		"decision_type": decisionType,
	}
	if priority != "" {
		body["priority"] = priority
	}
	var resp Workflow
	err := c.do(ctx, http.MethodPost, "v0/workflows", body, &resp)
	return resp, err
}

// GetWorkflow fetches a workflow by id.
func (c *Client) GetWorkflow(ctx context.Context, id string) (Workflow, error) {
	var resp Workflow
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v0/workflows/%s", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// ListWorkflows returns workflows visible to a user.
func (c *Client) ListWorkflows(ctx context.Context, userID, role string) ([]Workflow, error) {
	q := url.Values{}
	if userID != "" {
		q.Set("user_id", userID)
	}
	if role != "" {
		q.Set("role", role)
	}
	endpoint := "v0/workflows"
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp []Workflow
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// UpdateStage merges partial updates onto the workflow's current stage.
func (c *Client) UpdateStage(ctx context.Context, workflowID, stageID string, startedAt, completedAt *string, completedActions []string) (Workflow, error) {
	body := map[string]any{}
	if startedAt != nil {
		body["started_at"] = *startedAt
	}
	if completedAt != nil {
		body["completed_at"] = *completedAt
	}
	if completedActions != nil {
		body["completed_actions"] = completedActions
	}
	var resp Workflow
	endpoint := fmt.Sprintf("v0/workflows/%s/stages/%s", url.PathEscape(workflowID), url.PathEscape(stageID))
	err := c.do(ctx, http.MethodPatch, endpoint, body, &resp)
	return resp, err
}

// ProcessApproval records an approval decision for a role.
func (c *Client) ProcessApproval(ctx context.Context, workflowID, role, decision, comments string) (Workflow, error) {
	body := map[string]any{
		"role":     role,
		"decision": decision,
	}
	if comments != "" {
		body["comments"] = comments
	}
	var resp Workflow
	endpoint := fmt.Sprintf("v0/workflows/%s/approvals", url.PathEscape(workflowID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// WorkflowInsights returns derived analytics for a workflow.
func (c *Client) WorkflowInsights(ctx context.Context, workflowID string) (Insights, error) {
	var resp Insights
	endpoint := fmt.Sprintf("v0/workflows/%s/insights", url.PathEscape(workflowID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent audit events, newest first.
func (c *Client) Events(ctx context.Context, workflowID string, limit int) ([]Event, error) {
	q := url.Values{}
	if workflowID != "" {
		q.Set("workflow_id", workflowID)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	endpoint := "v0/events"
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// DecisionTypes lists the supported decision types.
func (c *Client) DecisionTypes(ctx context.Context) ([]string, error) {
	var resp []string
	err := c.do(ctx, http.MethodGet, "v0/decision-types", nil, &resp)
	return resp, err
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
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
