package server

import "dealdesk/internal/domain"

// Request payloads

type CreateWorkflowRequest struct {
	Title            string                  `json:"title"`
	DecisionType     string                  `json:"decision_type" enum:"investment,divestment,strategic,operational"`
	Priority         string                  `json:"priority,omitempty" enum:"low,medium,high,critical,urgent"`
	EntityType       *string                 `json:"entity_type,omitempty"`
	EntityID         *string                 `json:"entity_id,omitempty"`
	Context          *domain.WorkflowContext `json:"context,omitempty"`
	TargetDecisionAt *string                 `json:"target_decision_at,omitempty" format:"date-time"`
}

type UpdateStageRequest struct {
	StartedAt        *string  `json:"started_at,omitempty" format:"date-time"`
	CompletedAt      *string  `json:"completed_at,omitempty" format:"date-time"`
	CompletedActions []string `json:"completed_actions,omitempty"`
}

type ProcessApprovalRequest struct {
	Role     string  `json:"role"`
	Decision string  `json:"decision" enum:"approved,rejected"`
	Comments *string `json:"comments,omitempty"`
}

// Response payloads

type WorkflowResponse struct {
	ID                string                 `json:"id"`
	Title             string                 `json:"title"`
	DecisionType      string                 `json:"decision_type" enum:"investment,divestment,strategic,operational"`
	Priority          string                 `json:"priority" enum:"low,medium,high,critical,urgent"`
	EntityType        string                 `json:"entity_type,omitempty"`
	EntityID          string                 `json:"entity_id,omitempty"`
	Status            string                 `json:"status" enum:"draft,under_review,pending_approval,approved,rejected,on_hold,implemented,cancelled"`
	CurrentStage      domain.Stage           `json:"current_stage"`
	RequiredApprovals []domain.ApprovalLevel `json:"required_approvals"`
	Stakeholders      []domain.Stakeholder   `json:"stakeholders,omitempty"`
	Context           domain.WorkflowContext `json:"context,omitempty"`
	Timeline          domain.Timeline        `json:"timeline"`
	CreatedAt         string                 `json:"created_at" format:"date-time"`
	UpdatedAt         string                 `json:"updated_at" format:"date-time"`
}

type EventResponse struct {
	ID         string `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	WorkflowID string `json:"workflow_id,omitempty"`
	ActorID    string `json:"actor_id,omitempty"`
	Payload    string `json:"payload_json,omitempty"`
}

func workflowResponse(wf domain.DecisionWorkflow) WorkflowResponse {
	return WorkflowResponse{
		ID:                wf.ID,
		Title:             wf.Title,
		DecisionType:      wf.DecisionType,
		Priority:          wf.Priority,
		EntityType:        wf.EntityType,
		EntityID:          wf.EntityID,
		Status:            wf.Status,
		CurrentStage:      wf.CurrentStage,
		RequiredApprovals: wf.RequiredApprovals,
		Stakeholders:      wf.Stakeholders,
		Context:           wf.Context,
		Timeline:          wf.Timeline,
		CreatedAt:         wf.CreatedAt,
		UpdatedAt:         wf.UpdatedAt,
	}
}

func mapWorkflows(in []domain.DecisionWorkflow) []WorkflowResponse {
	out := make([]WorkflowResponse, len(in))
	for i, wf := range in {
		out[i] = workflowResponse(wf)
	}
	return out
}

func mapEvents(in []domain.Event) []EventResponse {
	out := make([]EventResponse, len(in))
	for i, e := range in {
		out[i] = EventResponse{ID: e.ID, TS: e.TS, Type: e.Type, WorkflowID: e.WorkflowID, ActorID: e.ActorID, Payload: e.Payload}
	}
	return out
}
