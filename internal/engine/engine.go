package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"dealdesk/internal/domain"
	"dealdesk/internal/events"
	"dealdesk/internal/notify"
	"dealdesk/internal/stakeholders"
	"dealdesk/internal/store"
	"dealdesk/internal/templates"
)

var (
	ErrWorkflowNotFound      = errors.New("workflow not found")
	ErrApprovalLevelNotFound = errors.New("approval level not found")
)

// ErrTemplateNotFound is re-exported so callers need not import templates.
var ErrTemplateNotFound = templates.ErrTemplateNotFound

// Engine is the workflow lifecycle state machine. One engine instance owns one
// store. All operations are synchronous; the engine provides no mutual
// exclusion of its own.
type Engine struct {
	Store     store.Store
	Templates *templates.Registry
	Events    events.Writer
	Notifier  notify.Notifier
	Logger    *log.Logger
	Now       func() time.Time
}

func New(st store.Store) Engine {
	return Engine{
		Store:     st,
		Templates: templates.New(),
		Events:    events.Writer{Store: st},
		Notifier:  notify.LogNotifier{},
		Now:       time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowString() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// appendEvent is best effort: an audit event that cannot be written never
// aborts the mutation it describes.
func (e Engine) appendEvent(ctx context.Context, evtType, workflowID, actorID string, payload events.EventPayload) {
	w := e.Events
	if w.Store == nil {
		w.Store = e.Store
	}
	if w.Now == nil {
		w.Now = e.Now
	}
	if err := w.Append(ctx, evtType, workflowID, actorID, payload); err != nil {
		e.logf("append event %s for %s: %v", evtType, workflowID, err)
	}
}

func (e Engine) notifyStakeholders(wf domain.DecisionWorkflow, event string) {
	if e.Notifier == nil {
		return
	}
	e.Notifier.NotifyStakeholders(wf, event)
}

// WorkflowCreateOptions are parameters for creating a decision workflow.
type WorkflowCreateOptions struct {
	Title            string
	DecisionType     string
	Priority         string
	EntityType       string
	EntityID         string
	Context          domain.WorkflowContext
	TargetDecisionAt string
	ActorID          string
}

// CreateWorkflow instantiates a workflow from the decision type's template.
// The only input validation performed is the template lookup.
func (e Engine) CreateWorkflow(ctx context.Context, opts WorkflowCreateOptions) (domain.DecisionWorkflow, error) {
	tpl, err := e.Templates.Get(opts.DecisionType)
	if err != nil {
		return domain.DecisionWorkflow{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, opts.DecisionType)
	}
	now := e.now()
	nowStr := now.UTC().Format(time.RFC3339)

	// Approval levels are copied from the template with completion state
	// forced clear; templates never carry in-progress state but the reset is
	// unconditional.
	approvals := make([]domain.ApprovalLevel, len(tpl.Approvals))
	for i, a := range tpl.Approvals {
		approvals[i] = domain.ApprovalLevel{Role: a.Role, Required: a.Required, Completed: false}
	}

	milestones := make([]domain.Milestone, len(tpl.Milestones))
	for i, m := range tpl.Milestones {
		milestones[i] = domain.Milestone{
			ID:         m.ID,
			Name:       m.Name,
			TargetDate: now.UTC().AddDate(0, 0, m.OffsetDays).Format(time.RFC3339),
			Status:     domain.MilestonePending,
		}
	}

	wf := domain.DecisionWorkflow{
		ID:                newWorkflowID(now),
		Title:             opts.Title,
		DecisionType:      opts.DecisionType,
		Priority:          opts.Priority,
		EntityType:        opts.EntityType,
		EntityID:          opts.EntityID,
		Status:            domain.StatusDraft,
		CurrentStage:      store.CloneStage(tpl.Stages[0]),
		RequiredApprovals: approvals,
		Stakeholders:      stakeholders.Resolve(opts.DecisionType, opts.Priority),
		Context:           opts.Context,
		Timeline: domain.Timeline{
			TargetDecisionAt: opts.TargetDecisionAt,
			Milestones:       milestones,
		},
		CreatedAt: nowStr,
		UpdatedAt: nowStr,
	}
	if err := e.Store.InsertWorkflow(ctx, wf); err != nil {
		return domain.DecisionWorkflow{}, fmt.Errorf("insert workflow: %w", err)
	}
	e.appendEvent(ctx, "workflow.created", wf.ID, opts.ActorID, events.EventPayload{
		"decision_type": wf.DecisionType,
		"priority":      wf.Priority,
		"status":        wf.Status,
	})
	e.notifyStakeholders(wf, "workflow.created")
	return wf, nil
}

// StageUpdate carries partial updates for the current stage. Nil fields are
// left untouched.
type StageUpdate struct {
	StartedAt        *string
	CompletedAt      *string
	CompletedActions []string
}

// UpdateWorkflowStage merges updates onto the workflow's current stage. A
// stageID that does not match the current stage is a silent no-op, never an
// error: only the active stage may be modified. Setting CompletedAt advances
// to the next template stage, or to pending_approval after the last one.
func (e Engine) UpdateWorkflowStage(ctx context.Context, workflowID, stageID string, updates StageUpdate) (domain.DecisionWorkflow, error) {
	wf, err := e.getWorkflow(ctx, workflowID)
	if err != nil {
		return domain.DecisionWorkflow{}, err
	}
	if wf.CurrentStage.ID != stageID {
		return wf, nil
	}
	if updates.StartedAt != nil {
		wf.CurrentStage.StartedAt = updates.StartedAt
	}
	if updates.CompletedActions != nil {
		wf.CurrentStage.CompletedActions = append([]string(nil), updates.CompletedActions...)
	}
	completed := updates.CompletedAt != nil
	if completed {
		wf.CurrentStage.CompletedAt = updates.CompletedAt
	}
	fromStage := wf.CurrentStage.ID
	if completed {
		tpl, err := e.Templates.Get(wf.DecisionType)
		if err != nil {
			return domain.DecisionWorkflow{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, wf.DecisionType)
		}
		if next, ok := tpl.NextStage(stageID); ok {
			// Fresh copy from the template: completed actions from the
			// finished stage do not carry forward.
			wf.CurrentStage = store.CloneStage(next)
		} else {
			wf.Status = domain.StatusPendingApproval
		}
	}
	wf.UpdatedAt = e.nowString()
	if err := e.Store.UpdateWorkflow(ctx, wf); err != nil {
		return domain.DecisionWorkflow{}, fmt.Errorf("update workflow: %w", err)
	}
	e.appendEvent(ctx, "workflow.stage.updated", wf.ID, "", events.EventPayload{
		"from_stage": fromStage,
		"to_stage":   wf.CurrentStage.ID,
		"status":     wf.Status,
	})
	e.notifyStakeholders(wf, "workflow.stage.updated")
	return wf, nil
}

const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// ApprovalOptions are parameters for recording an approval decision. The
// approver identity is pre-resolved by the caller's auth context; it is not
// verified here and roles are taken at face value.
type ApprovalOptions struct {
	WorkflowID string
	ApproverID string
	Role       string
	Decision   string
	Comments   string
}

// ProcessApproval marks the approval level matching the role as complete and
// derives the workflow status: a single rejection is terminal regardless of
// other entries; approval requires every required level complete. There is no
// status-based guard: a workflow with a matching role entry can be acted on
// in any status, including draft.
func (e Engine) ProcessApproval(ctx context.Context, opts ApprovalOptions) (domain.DecisionWorkflow, error) {
	wf, err := e.getWorkflow(ctx, opts.WorkflowID)
	if err != nil {
		return domain.DecisionWorkflow{}, err
	}
	idx := -1
	for i, a := range wf.RequiredApprovals {
		if a.Role == opts.Role {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.DecisionWorkflow{}, fmt.Errorf("%w: %s", ErrApprovalLevelNotFound, opts.Role)
	}
	nowStr := e.nowString()
	wf.RequiredApprovals[idx].Completed = true
	wf.RequiredApprovals[idx].ApprovedAt = &nowStr
	if opts.ApproverID != "" {
		approver := opts.ApproverID
		wf.RequiredApprovals[idx].ApproverID = &approver
	}
	if opts.Comments != "" {
		comments := opts.Comments
		wf.RequiredApprovals[idx].Comments = &comments
	}
	switch {
	case opts.Decision == DecisionRejected:
		wf.Status = domain.StatusRejected
	case wf.Status != domain.StatusRejected && allRequiredComplete(wf.RequiredApprovals):
		wf.Status = domain.StatusApproved
	}
	wf.UpdatedAt = nowStr
	if err := e.Store.UpdateWorkflow(ctx, wf); err != nil {
		return domain.DecisionWorkflow{}, fmt.Errorf("update workflow: %w", err)
	}
	e.appendEvent(ctx, "workflow.approval."+opts.Decision, wf.ID, opts.ApproverID, events.EventPayload{
		"role":   opts.Role,
		"status": wf.Status,
	})
	e.notifyStakeholders(wf, "workflow.approval."+opts.Decision)
	return wf, nil
}

// WorkflowsForUser returns every workflow where the user appears among the
// stakeholders (by id or role) or where the role still has an incomplete
// approval entry, required or not.
func (e Engine) WorkflowsForUser(ctx context.Context, userID, role string) ([]domain.DecisionWorkflow, error) {
	all, err := e.Store.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.DecisionWorkflow
	for _, wf := range all {
		if workflowConcernsUser(wf, userID, role) {
			out = append(out, wf)
		}
	}
	return out, nil
}

func workflowConcernsUser(wf domain.DecisionWorkflow, userID, role string) bool {
	for _, s := range wf.Stakeholders {
		if s.ID == userID || s.Role == role {
			return true
		}
	}
	for _, a := range wf.RequiredApprovals {
		if a.Role == role && !a.Completed {
			return true
		}
	}
	return false
}

// Events returns the audit trail, newest first.
func (e Engine) WorkflowEvents(ctx context.Context, workflowID string, limit int) ([]domain.Event, error) {
	return e.Store.ListEvents(ctx, workflowID, limit)
}

func (e Engine) getWorkflow(ctx context.Context, id string) (domain.DecisionWorkflow, error) {
	wf, err := e.Store.GetWorkflow(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.DecisionWorkflow{}, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
		}
		return domain.DecisionWorkflow{}, err
	}
	return wf, nil
}

func allRequiredComplete(levels []domain.ApprovalLevel) bool {
	for _, a := range levels {
		if a.Required && !a.Completed {
			return false
		}
	}
	return true
}

// newWorkflowID builds a time-based id with a random suffix. Uniqueness over
// the store's lifetime is the only requirement.
func newWorkflowID(now time.Time) string {
	suffix := strings.SplitN(uuid.New().String(), "-", 2)[0]
	return fmt.Sprintf("wf-%d-%s", now.UnixMilli(), suffix)
}
