package store

import (
	"context"
	"errors"

	"dealdesk/internal/domain"
)

var ErrNotFound = errors.New("not found")

// Store owns every DecisionWorkflow instance for one engine. Implementations
// are the only component allowed to hold workflow state across calls.
type Store interface {
	InsertWorkflow(ctx context.Context, wf domain.DecisionWorkflow) error
	GetWorkflow(ctx context.Context, id string) (domain.DecisionWorkflow, error)
	UpdateWorkflow(ctx context.Context, wf domain.DecisionWorkflow) error
	ListWorkflows(ctx context.Context) ([]domain.DecisionWorkflow, error)

	AppendEvent(ctx context.Context, evt domain.Event) error
	ListEvents(ctx context.Context, workflowID string, limit int) ([]domain.Event, error)
}

// CloneWorkflow returns a copy whose nested slices do not alias the original.
// Stores hand out clones so callers never hold a mutable reference into owned
// state.
func CloneWorkflow(wf domain.DecisionWorkflow) domain.DecisionWorkflow {
	out := wf
	out.CurrentStage = CloneStage(wf.CurrentStage)
	if wf.RequiredApprovals != nil {
		out.RequiredApprovals = make([]domain.ApprovalLevel, len(wf.RequiredApprovals))
		for i, a := range wf.RequiredApprovals {
			out.RequiredApprovals[i] = a
			out.RequiredApprovals[i].ApproverID = cloneStringPtr(a.ApproverID)
			out.RequiredApprovals[i].ApprovedAt = cloneStringPtr(a.ApprovedAt)
			out.RequiredApprovals[i].Comments = cloneStringPtr(a.Comments)
		}
	}
	if wf.Stakeholders != nil {
		out.Stakeholders = append([]domain.Stakeholder(nil), wf.Stakeholders...)
	}
	if wf.Timeline.Milestones != nil {
		out.Timeline.Milestones = append([]domain.Milestone(nil), wf.Timeline.Milestones...)
	}
	if wf.Timeline.Escalations != nil {
		out.Timeline.Escalations = append([]domain.Escalation(nil), wf.Timeline.Escalations...)
	}
	if wf.Context.RiskAssessment.Factors != nil {
		out.Context.RiskAssessment.Factors = append([]string(nil), wf.Context.RiskAssessment.Factors...)
	}
	return out
}

// CloneStage copies a stage including its action lists.
func CloneStage(s domain.Stage) domain.Stage {
	out := s
	if s.RequiredActions != nil {
		out.RequiredActions = append([]string(nil), s.RequiredActions...)
	}
	if s.CompletedActions != nil {
		out.CompletedActions = append([]string(nil), s.CompletedActions...)
	}
	out.StartedAt = cloneStringPtr(s.StartedAt)
	out.CompletedAt = cloneStringPtr(s.CompletedAt)
	return out
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
