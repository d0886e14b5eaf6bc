package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"dealdesk/internal/domain"
	"dealdesk/internal/engine"
	"dealdesk/internal/notify"
	"dealdesk/internal/store"
)

type testEnv struct {
	Engine engine.Engine
	Store  *store.Memory
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	mem := store.NewMemory()
	eng := engine.New(mem)
	eng.Now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	eng.Notifier = notify.Noop{}
	return testEnv{Engine: eng, Store: mem, Ctx: context.Background()}
}

func createWorkflow(t *testing.T, env testEnv, decisionType, priority string) domain.DecisionWorkflow {
	t.Helper()
	wf, err := env.Engine.CreateWorkflow(env.Ctx, engine.WorkflowCreateOptions{
		Title:        "Acquire Northwind Logistics",
		DecisionType: decisionType,
		Priority:     priority,
		ActorID:      "tester",
	})
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	return wf
}

func completeStage(t *testing.T, env testEnv, wf domain.DecisionWorkflow) domain.DecisionWorkflow {
	t.Helper()
	done := "2026-03-02T09:00:00Z"
	next, err := env.Engine.UpdateWorkflowStage(env.Ctx, wf.ID, wf.CurrentStage.ID, engine.StageUpdate{CompletedAt: &done})
	if err != nil {
		t.Fatalf("complete stage %s: %v", wf.CurrentStage.ID, err)
	}
	return next
}

func TestCreateWorkflowFromTemplate(t *testing.T) {
	env := newTestEnv(t)
	wf := createWorkflow(t, env, "investment", "high")
	if wf.Status != domain.StatusDraft {
		t.Fatalf("expected draft, got %s", wf.Status)
	}
	if wf.CurrentStage.ID != "initial_review" {
		t.Fatalf("expected initial_review, got %s", wf.CurrentStage.ID)
	}
	if len(wf.RequiredApprovals) != 4 {
		t.Fatalf("expected 4 approval levels, got %d", len(wf.RequiredApprovals))
	}
	for _, a := range wf.RequiredApprovals {
		if !a.Required || a.Completed {
			t.Fatalf("approval %s should be required and incomplete", a.Role)
		}
	}
	if len(wf.Stakeholders) == 0 {
		t.Fatalf("expected stakeholders resolved")
	}
	if len(wf.Timeline.Milestones) != 2 {
		t.Fatalf("expected 2 milestones, got %d", len(wf.Timeline.Milestones))
	}
	if wf.Timeline.Milestones[0].Status != domain.MilestonePending {
		t.Fatalf("milestones should start pending")
	}
	stored, err := env.Store.GetWorkflow(env.Ctx, wf.ID)
	if err != nil {
		t.Fatalf("get stored workflow: %v", err)
	}
	if stored.CreatedAt != "2026-03-01T09:00:00Z" {
		t.Fatalf("unexpected created_at %s", stored.CreatedAt)
	}
}

func TestCreateWorkflowUnknownType(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateWorkflow(env.Ctx, engine.WorkflowCreateOptions{Title: "x", DecisionType: "merger"})
	if !errors.Is(err, engine.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestStageProgression(t *testing.T) {
	env := newTestEnv(t)
	wf := createWorkflow(t, env, "investment", "medium")
	want := []string{"initial_review", "due_diligence", "committee_review", "final_approval"}
	for i, stageID := range want {
		if wf.CurrentStage.ID != stageID {
			t.Fatalf("step %d: expected stage %s, got %s", i, stageID, wf.CurrentStage.ID)
		}
		wf = completeStage(t, env, wf)
	}
	if wf.Status != domain.StatusPendingApproval {
		t.Fatalf("expected pending_approval after last stage, got %s", wf.Status)
	}
	// completing the last stage does not advance past it
	if wf.CurrentStage.ID != "final_approval" {
		t.Fatalf("expected to stay on final_approval, got %s", wf.CurrentStage.ID)
	}
}

func TestStageAdvanceResetsCompletedActions(t *testing.T) {
	env := newTestEnv(t)
	wf := createWorkflow(t, env, "operational", "low")
	done := "2026-03-02T09:00:00Z"
	wf, err := env.Engine.UpdateWorkflowStage(env.Ctx, wf.ID, "operational_review", engine.StageUpdate{
		CompletedActions: []string{"Impact assessment"},
		CompletedAt:      &done,
	})
	if err != nil {
		t.Fatalf("update stage: %v", err)
	}
	if wf.CurrentStage.ID != "implementation_planning" {
		t.Fatalf("expected advance to implementation_planning, got %s", wf.CurrentStage.ID)
	}
	if len(wf.CurrentStage.CompletedActions) != 0 {
		t.Fatalf("completed actions must not carry into the next stage")
	}
	if wf.CurrentStage.StartedAt != nil || wf.CurrentStage.CompletedAt != nil {
		t.Fatalf("next stage should come fresh from the template")
	}
}

func TestStageUpdateWithoutCompletionKeepsStage(t *testing.T) {
	env := newTestEnv(t)
	wf := createWorkflow(t, env, "strategic", "medium")
	started := "2026-03-01T10:00:00Z"
	wf, err := env.Engine.UpdateWorkflowStage(env.Ctx, wf.ID, "strategic_assessment", engine.StageUpdate{
		StartedAt:        &started,
		CompletedActions: []string{"Draft strategy memo"},
	})
	if err != nil {
		t.Fatalf("update stage: %v", err)
	}
	if wf.CurrentStage.ID != "strategic_assessment" {
		t.Fatalf("stage must not advance without completed_at")
	}
	if wf.CurrentStage.StartedAt == nil || *wf.CurrentStage.StartedAt != started {
		t.Fatalf("started_at not merged")
	}
	if len(wf.CurrentStage.CompletedActions) != 1 {
		t.Fatalf("completed actions not merged")
	}
	if wf.Status != domain.StatusDraft {
		t.Fatalf("status must be untouched, got %s", wf.Status)
	}
}

func TestStaleStageIDIsSilentNoOp(t *testing.T) {
	env := newTestEnv(t)
	wf := createWorkflow(t, env, "investment", "medium")
	done := "2026-03-02T09:00:00Z"
	got, err := env.Engine.UpdateWorkflowStage(env.Ctx, wf.ID, "due_diligence", engine.StageUpdate{CompletedAt: &done})
	if err != nil {
		t.Fatalf("stale stage update should not error: %v", err)
	}
	if got.CurrentStage.ID != "initial_review" || got.CurrentStage.CompletedAt != nil {
		t.Fatalf("stale update must not touch the workflow")
	}
	if got.UpdatedAt != wf.UpdatedAt {
		t.Fatalf("stale update must not bump updated_at")
	}
	stored, _ := env.Store.GetWorkflow(env.Ctx, wf.ID)
	if stored.UpdatedAt != wf.UpdatedAt {
		t.Fatalf("stored workflow must be unchanged")
	}
}

func TestApprovalCompletesWorkflow(t *testing.T) {
	env := newTestEnv(t)
	wf := createWorkflow(t, env, "strategic", "medium")
	wf, err := env.Engine.ProcessApproval(env.Ctx, engine.ApprovalOptions{
		WorkflowID: wf.ID, ApproverID: "mp-1", Role: "managing_partner", Decision: engine.DecisionApproved,
	})
	if err != nil {
		t.Fatalf("first approval: %v", err)
	}
	if wf.Status == domain.StatusApproved {
		t.Fatalf("must not approve before every required level is complete")
	}
	wf, err = env.Engine.ProcessApproval(env.Ctx, engine.ApprovalOptions{
		WorkflowID: wf.ID, ApproverID: "ic-1", Role: "investment_committee", Decision: engine.DecisionApproved, Comments: "Proceed",
	})
	if err != nil {
		t.Fatalf("second approval: %v", err)
	}
	if wf.Status != domain.StatusApproved {
		t.Fatalf("expected approved, got %s", wf.Status)
	}
	for _, a := range wf.RequiredApprovals {
		if a.Role == "investment_committee" {
			if a.ApproverID == nil || *a.ApproverID != "ic-1" {
				t.Fatalf("approver id not recorded")
			}
			if a.Comments == nil || *a.Comments != "Proceed" {
				t.Fatalf("comments not recorded")
			}
			if a.ApprovedAt == nil {
				t.Fatalf("approved_at not recorded")
			}
		}
	}
}

func TestOptionalApprovalDoesNotBlock(t *testing.T) {
	env := newTestEnv(t)
	wf := createWorkflow(t, env, "divestment", "medium")
	for _, role := range []string{"portfolio_manager", "managing_partner"} {
		var err error
		wf, err = env.Engine.ProcessApproval(env.Ctx, engine.ApprovalOptions{
			WorkflowID: wf.ID, Role: role, Decision: engine.DecisionApproved,
		})
		if err != nil {
			t.Fatalf("approve %s: %v", role, err)
		}
	}
	if wf.Status != domain.StatusApproved {
		t.Fatalf("optional cfo level must not block approval, got %s", wf.Status)
	}
}

func TestRejectionIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	wf := createWorkflow(t, env, "investment", "high")
	wf, err := env.Engine.ProcessApproval(env.Ctx, engine.ApprovalOptions{
		WorkflowID: wf.ID, Role: "risk_manager", Decision: engine.DecisionRejected, Comments: "Leverage too high",
	})
	if err != nil {
		t.Fatalf("rejection: %v", err)
	}
	if wf.Status != domain.StatusRejected {
		t.Fatalf("expected rejected, got %s", wf.Status)
	}
	// later approvals from every other role must not flip the status back
	for _, role := range []string{"portfolio_manager", "investment_committee", "managing_partner"} {
		wf, err = env.Engine.ProcessApproval(env.Ctx, engine.ApprovalOptions{
			WorkflowID: wf.ID, Role: role, Decision: engine.DecisionApproved,
		})
		if err != nil {
			t.Fatalf("approve %s after rejection: %v", role, err)
		}
		if wf.Status != domain.StatusRejected {
			t.Fatalf("rejection must be terminal, got %s after %s", wf.Status, role)
		}
	}
}

func TestApprovalUnknownRole(t *testing.T) {
	env := newTestEnv(t)
	wf := createWorkflow(t, env, "operational", "low")
	_, err := env.Engine.ProcessApproval(env.Ctx, engine.ApprovalOptions{
		WorkflowID: wf.ID, Role: "compliance_officer", Decision: engine.DecisionApproved,
	})
	if !errors.Is(err, engine.ErrApprovalLevelNotFound) {
		t.Fatalf("expected ErrApprovalLevelNotFound, got %v", err)
	}
	stored, _ := env.Store.GetWorkflow(env.Ctx, wf.ID)
	if stored.UpdatedAt != wf.UpdatedAt || stored.Status != wf.Status {
		t.Fatalf("failed approval must not mutate the workflow")
	}
}

func TestApprovalUnknownWorkflow(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.ProcessApproval(env.Ctx, engine.ApprovalOptions{
		WorkflowID: "wf-missing", Role: "cfo", Decision: engine.DecisionApproved,
	})
	if !errors.Is(err, engine.ErrWorkflowNotFound) {
		t.Fatalf("expected ErrWorkflowNotFound, got %v", err)
	}
}

func TestWorkflowsForUser(t *testing.T) {
	env := newTestEnv(t)
	inv := createWorkflow(t, env, "investment", "medium")
	ops := createWorkflow(t, env, "operational", "low")

	// stakeholder id match
	got, err := env.Engine.WorkflowsForUser(env.Ctx, "sh-pm-01", "")
	if err != nil {
		t.Fatalf("list by stakeholder id: %v", err)
	}
	if len(got) != 1 || got[0].ID != inv.ID {
		t.Fatalf("expected only the investment workflow, got %d", len(got))
	}

	// incomplete approval role match, no stakeholder entry needed
	stripped, _ := env.Store.GetWorkflow(env.Ctx, ops.ID)
	stripped.Stakeholders = nil
	if err := env.Store.UpdateWorkflow(env.Ctx, stripped); err != nil {
		t.Fatalf("strip stakeholders: %v", err)
	}
	got, err = env.Engine.WorkflowsForUser(env.Ctx, "nobody", "cfo")
	if err != nil {
		t.Fatalf("list by role: %v", err)
	}
	if len(got) != 1 || got[0].ID != ops.ID {
		t.Fatalf("expected only the operational workflow, got %d", len(got))
	}

	// completing the approval removes the role-based visibility
	if _, err := env.Engine.ProcessApproval(env.Ctx, engine.ApprovalOptions{
		WorkflowID: ops.ID, Role: "cfo", Decision: engine.DecisionApproved,
	}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	got, _ = env.Engine.WorkflowsForUser(env.Ctx, "nobody", "cfo")
	if len(got) != 0 {
		t.Fatalf("completed approval must drop role visibility, got %d", len(got))
	}

	got, _ = env.Engine.WorkflowsForUser(env.Ctx, "nobody", "")
	if len(got) != 0 {
		t.Fatalf("unrelated user must see nothing, got %d", len(got))
	}
}

func TestEventLogRecordsLifecycle(t *testing.T) {
	env := newTestEnv(t)
	wf := createWorkflow(t, env, "strategic", "medium")
	wf = completeStage(t, env, wf)
	if _, err := env.Engine.ProcessApproval(env.Ctx, engine.ApprovalOptions{
		WorkflowID: wf.ID, ApproverID: "mp-1", Role: "managing_partner", Decision: engine.DecisionApproved,
	}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	events, err := env.Engine.WorkflowEvents(env.Ctx, wf.ID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	// newest first
	want := []string{"workflow.approval.approved", "workflow.stage.updated", "workflow.created"}
	for i, evt := range events {
		if evt.Type != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], evt.Type)
		}
		if evt.WorkflowID != wf.ID {
			t.Fatalf("event %d carries wrong workflow id", i)
		}
	}
}
