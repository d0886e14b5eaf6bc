package repo_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"dealdesk/internal/db"
	"dealdesk/internal/domain"
	"dealdesk/internal/migrate"
	"dealdesk/internal/repo"
	"dealdesk/internal/store"
)

func newTestRepo(t *testing.T) repo.Repo {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}
}

func sampleWorkflow(id string) domain.DecisionWorkflow {
	completed := "2026-03-03T12:00:00Z"
	comments := "Looks sound"
	approver := "mp-1"
	return domain.DecisionWorkflow{
		ID:           id,
		Title:        "Exit Brightline Services",
		DecisionType: domain.DecisionDivestment,
		Priority:     domain.PriorityHigh,
		EntityType:   "portfolio_company",
		EntityID:     "pc-204",
		Status:       domain.StatusPendingApproval,
		CurrentStage: domain.Stage{
			ID:               "final_approval",
			Name:             "Final Approval",
			RequiredActions:  []string{"Board resolution", "SPA review"},
			CompletedActions: []string{"Board resolution"},
			CompletedAt:      &completed,
			EstimatedDays:    7,
		},
		RequiredApprovals: []domain.ApprovalLevel{
			{Role: "portfolio_manager", Required: true, Completed: true, ApprovedAt: &completed, ApproverID: &approver, Comments: &comments},
			{Role: "managing_partner", Required: true},
			{Role: "cfo", Required: false},
		},
		Stakeholders: []domain.Stakeholder{
			{ID: "sh-pm-01", Name: "Elena Vasquez", Role: "portfolio_manager", Department: "Investments", Influence: "high", Notify: true},
		},
		Context: domain.WorkflowContext{
			Summary:        "Exit at peak multiple",
			RiskAssessment: domain.RiskAssessment{OverallRisk: "medium"},
		},
		Timeline: domain.Timeline{
			TargetDecisionAt: "2026-04-01T00:00:00Z",
			Milestones: []domain.Milestone{
				{ID: "offers_in", Name: "Indicative offers received", TargetDate: "2026-03-26T09:00:00Z", Status: domain.MilestonePending},
			},
		},
		CreatedAt: "2026-03-01T09:00:00Z",
		UpdatedAt: "2026-03-03T12:00:00Z",
	}
}

func TestWorkflowRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	want := sampleWorkflow("wf-1")
	if err := r.InsertWorkflow(ctx, want); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := r.GetWorkflow(ctx, "wf-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != want.Title || got.DecisionType != want.DecisionType || got.Status != want.Status {
		t.Fatalf("scalar fields lost: %+v", got)
	}
	if got.EntityType != "portfolio_company" || got.EntityID != "pc-204" {
		t.Fatalf("entity reference lost")
	}
	if got.CurrentStage.ID != "final_approval" || len(got.CurrentStage.CompletedActions) != 1 {
		t.Fatalf("stage json lost: %+v", got.CurrentStage)
	}
	if got.CurrentStage.CompletedAt == nil || *got.CurrentStage.CompletedAt != "2026-03-03T12:00:00Z" {
		t.Fatalf("stage completion lost")
	}
	if len(got.RequiredApprovals) != 3 {
		t.Fatalf("approvals json lost")
	}
	first := got.RequiredApprovals[0]
	if !first.Completed || first.Comments == nil || *first.Comments != "Looks sound" {
		t.Fatalf("approval detail lost: %+v", first)
	}
	if len(got.Stakeholders) != 1 || got.Stakeholders[0].Name != "Elena Vasquez" {
		t.Fatalf("stakeholders json lost")
	}
	if got.Context.RiskAssessment.OverallRisk != "medium" {
		t.Fatalf("context json lost")
	}
	if got.Timeline.TargetDecisionAt != "2026-04-01T00:00:00Z" || len(got.Timeline.Milestones) != 1 {
		t.Fatalf("timeline json lost")
	}
}

func TestWorkflowNotFound(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	if _, err := r.GetWorkflow(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := r.UpdateWorkflow(ctx, sampleWorkflow("missing")); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestWorkflowUpdate(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	wf := sampleWorkflow("wf-1")
	if err := r.InsertWorkflow(ctx, wf); err != nil {
		t.Fatalf("insert: %v", err)
	}
	wf.Status = domain.StatusApproved
	wf.RequiredApprovals[1].Completed = true
	wf.UpdatedAt = "2026-03-04T08:00:00Z"
	if err := r.UpdateWorkflow(ctx, wf); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := r.GetWorkflow(ctx, "wf-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusApproved || !got.RequiredApprovals[1].Completed {
		t.Fatalf("update not persisted: %+v", got)
	}
	if got.UpdatedAt != "2026-03-04T08:00:00Z" {
		t.Fatalf("updated_at not persisted")
	}
}

func TestListWorkflowsOrdering(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		wf := sampleWorkflow(fmt.Sprintf("wf-%d", i))
		wf.CreatedAt = fmt.Sprintf("2026-03-0%dT09:00:00Z", i+1)
		if err := r.InsertWorkflow(ctx, wf); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	all, err := r.ListWorkflows(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 workflows, got %d", len(all))
	}
	for i, wf := range all {
		if wf.ID != fmt.Sprintf("wf-%d", i) {
			t.Fatalf("position %d: got %s", i, wf.ID)
		}
	}
}

func TestEventsFilterAndLimit(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		wfID := "wf-a"
		if i%2 == 1 {
			wfID = "wf-b"
		}
		evt := domain.Event{
			ID:         fmt.Sprintf("evt-%d", i),
			TS:         fmt.Sprintf("2026-03-01T09:00:0%dZ", i),
			Type:       "workflow.created",
			WorkflowID: wfID,
			ActorID:    "tester",
			Payload:    `{"status":"draft"}`,
		}
		if err := r.AppendEvent(ctx, evt); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	events, err := r.ListEvents(ctx, "", 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 3 || events[0].ID != "evt-4" {
		t.Fatalf("expected newest first with limit, got %+v", events)
	}
	filtered, err := r.ListEvents(ctx, "wf-b", 0)
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(filtered) != 2 || filtered[0].ID != "evt-3" || filtered[1].ID != "evt-1" {
		t.Fatalf("unexpected filter result: %+v", filtered)
	}
}
