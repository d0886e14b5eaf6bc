package templates

import (
	"errors"

	"dealdesk/internal/domain"
)

var ErrTemplateNotFound = errors.New("workflow template not found")

// MilestoneDefinition is a template-level milestone; TargetDate is derived at
// workflow creation from the offset.
type MilestoneDefinition struct {
	ID         string
	Name       string
	OffsetDays int
}

// WorkflowTemplate is the immutable per-decision-type blueprint of stages and
// approval levels. Templates never carry in-progress state.
type WorkflowTemplate struct {
	DecisionType string
	Stages       []domain.Stage
	Approvals    []domain.ApprovalLevel
	Milestones   []MilestoneDefinition
}

// Registry holds one template per supported decision type. Seeded once at
// construction; no mutation operations are exposed.
type Registry struct {
	templates map[string]WorkflowTemplate
}

func New() *Registry {
	r := &Registry{templates: map[string]WorkflowTemplate{}}
	for _, t := range builtin() {
		r.templates[t.DecisionType] = t
	}
	return r
}

// Get returns the template for a decision type or ErrTemplateNotFound.
func (r *Registry) Get(decisionType string) (WorkflowTemplate, error) {
	t, ok := r.templates[decisionType]
	if !ok {
		return WorkflowTemplate{}, ErrTemplateNotFound
	}
	return t, nil
}

// DecisionTypes lists the registered types in template order.
func (r *Registry) DecisionTypes() []string {
	types := make([]string, 0, len(r.templates))
	for _, t := range builtin() {
		if _, ok := r.templates[t.DecisionType]; ok {
			types = append(types, t.DecisionType)
		}
	}
	return types
}

// NextStage returns the stage following currentStageID in the template's
// ordered stage list, or false when currentStageID is the last stage (or not
// part of the template).
func (t WorkflowTemplate) NextStage(currentStageID string) (domain.Stage, bool) {
	for i, s := range t.Stages {
		if s.ID == currentStageID {
			if i+1 < len(t.Stages) {
				return t.Stages[i+1], true
			}
			return domain.Stage{}, false
		}
	}
	return domain.Stage{}, false
}

func builtin() []WorkflowTemplate {
	return []WorkflowTemplate{
		{
			DecisionType: domain.DecisionInvestment,
			Stages: []domain.Stage{
				{ID: "initial_review", Name: "Initial Review", Description: "Screen the opportunity against mandate and strategy fit",
					RequiredActions: []string{"Collect teaser materials", "Confirm mandate fit", "Assign deal team"}, EstimatedDays: 5},
				{ID: "due_diligence", Name: "Due Diligence", Description: "Commercial, financial and legal diligence",
					RequiredActions: []string{"Financial model review", "Legal review", "Management sessions"}, EstimatedDays: 15},
				{ID: "committee_review", Name: "Committee Review", Description: "Investment committee deliberation",
					RequiredActions: []string{"Circulate IC memo", "Hold committee session"}, EstimatedDays: 7},
				{ID: "final_approval", Name: "Final Approval", Description: "Partner sign-off and closing preparation",
					RequiredActions: []string{"Confirm funding", "Prepare closing checklist"}, EstimatedDays: 5},
			},
			Approvals: []domain.ApprovalLevel{
				{Role: "portfolio_manager", Required: true},
				{Role: "risk_manager", Required: true},
				{Role: "investment_committee", Required: true},
				{Role: "managing_partner", Required: true},
			},
			Milestones: []MilestoneDefinition{
				{ID: "ic_memo", Name: "IC memo circulated", OffsetDays: 10},
				{ID: "term_sheet", Name: "Term sheet agreed", OffsetDays: 20},
			},
		},
		{
			DecisionType: domain.DecisionDivestment,
			Stages: []domain.Stage{
				{ID: "exit_readiness", Name: "Exit Readiness", Description: "Assess exit timing and valuation range",
					RequiredActions: []string{"Valuation refresh", "Exit-path analysis"}, EstimatedDays: 10},
				{ID: "buyer_outreach", Name: "Buyer Outreach", Description: "Run the sale process",
					RequiredActions: []string{"Prepare CIM", "Collect indicative offers"}, EstimatedDays: 20},
				{ID: "final_approval", Name: "Final Approval", Description: "Accept the winning offer",
					RequiredActions: []string{"Board resolution", "SPA review"}, EstimatedDays: 7},
			},
			Approvals: []domain.ApprovalLevel{
				{Role: "portfolio_manager", Required: true},
				{Role: "managing_partner", Required: true},
				{Role: "cfo", Required: false},
			},
			Milestones: []MilestoneDefinition{
				{ID: "offers_in", Name: "Indicative offers received", OffsetDays: 25},
			},
		},
		{
			DecisionType: domain.DecisionStrategic,
			Stages: []domain.Stage{
				{ID: "strategic_assessment", Name: "Strategic Assessment", Description: "Frame the strategic option and its implications",
					RequiredActions: []string{"Draft strategy memo", "Model scenarios"}, EstimatedDays: 10},
				{ID: "partner_review", Name: "Partner Review", Description: "Partner group discussion and direction",
					RequiredActions: []string{"Partner session", "Record decision rationale"}, EstimatedDays: 5},
			},
			Approvals: []domain.ApprovalLevel{
				{Role: "managing_partner", Required: true},
				{Role: "investment_committee", Required: true},
			},
			Milestones: []MilestoneDefinition{
				{ID: "strategy_memo", Name: "Strategy memo circulated", OffsetDays: 7},
			},
		},
		{
			DecisionType: domain.DecisionOperational,
			Stages: []domain.Stage{
				{ID: "operational_review", Name: "Operational Review", Description: "Assess the operational change and its cost",
					RequiredActions: []string{"Impact assessment", "Budget check"}, EstimatedDays: 5},
				{ID: "implementation_planning", Name: "Implementation Planning", Description: "Plan rollout and ownership",
					RequiredActions: []string{"Owner assigned", "Rollout plan approved"}, EstimatedDays: 10},
			},
			Approvals: []domain.ApprovalLevel{
				{Role: "operating_partner", Required: true},
				{Role: "cfo", Required: false},
			},
			Milestones: []MilestoneDefinition{
				{ID: "rollout_plan", Name: "Rollout plan ready", OffsetDays: 12},
			},
		},
	}
}
