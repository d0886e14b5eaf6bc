package domain

// Decision types select which workflow template applies.
const (
	DecisionInvestment  = "investment"
	DecisionDivestment  = "divestment"
	DecisionStrategic   = "strategic"
	DecisionOperational = "operational"
)

// Priorities, ordered low < medium < high < critical < urgent.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
	PriorityUrgent   = "urgent"
)

// Workflow statuses. on_hold, implemented and cancelled are valid values with
// no transition-producing operation in this engine; external systems own them.
const (
	StatusDraft           = "draft"
	StatusUnderReview     = "under_review"
	StatusPendingApproval = "pending_approval"
	StatusApproved        = "approved"
	StatusRejected        = "rejected"
	StatusOnHold          = "on_hold"
	StatusImplemented     = "implemented"
	StatusCancelled       = "cancelled"
)

const (
	MilestonePending   = "pending"
	MilestoneCompleted = "completed"
	MilestoneOverdue   = "overdue"
)

type Stage struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description,omitempty"`
	RequiredActions  []string `json:"required_actions,omitempty"`
	CompletedActions []string `json:"completed_actions,omitempty"`
	EstimatedDays    int      `json:"estimated_days,omitempty"`
	StartedAt        *string  `json:"started_at,omitempty" format:"date-time"`
	CompletedAt      *string  `json:"completed_at,omitempty" format:"date-time"`
}

type ApprovalLevel struct {
	Role       string  `json:"role"`
	Required   bool    `json:"required"`
	Completed  bool    `json:"completed"`
	ApproverID *string `json:"approver_id,omitempty"`
	ApprovedAt *string `json:"approved_at,omitempty" format:"date-time"`
	Comments   *string `json:"comments,omitempty"`
}

type Stakeholder struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	Influence  string `json:"influence" enum:"low,medium,high"`
	Notify     bool   `json:"notify"`
}

type Milestone struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TargetDate string `json:"target_date" format:"date-time"`
	Status     string `json:"status" enum:"pending,completed,overdue"`
}

type Escalation struct {
	ID       string `json:"id"`
	Reason   string `json:"reason"`
	RaisedBy string `json:"raised_by"`
	RaisedAt string `json:"raised_at" format:"date-time"`
	Level    string `json:"level,omitempty"`
}

type Timeline struct {
	TargetDecisionAt string       `json:"target_decision_at,omitempty" format:"date-time"`
	Milestones       []Milestone  `json:"milestones,omitempty"`
	Escalations      []Escalation `json:"escalations,omitempty"`
}

// RiskAssessment and the rest of WorkflowContext are produced by other
// subsystems; the engine reads OverallRisk and passes the rest through
// verbatim.
type RiskAssessment struct {
	OverallRisk string   `json:"overall_risk,omitempty" enum:"low,medium,high"`
	Factors     []string `json:"factors,omitempty"`
}

type FinancialImpact struct {
	Amount   float64 `json:"amount,omitempty"`
	Currency string  `json:"currency,omitempty"`
}

type WorkflowContext struct {
	Summary         string          `json:"summary,omitempty"`
	RiskAssessment  RiskAssessment  `json:"risk_assessment,omitempty"`
	FinancialImpact FinancialImpact `json:"financial_impact,omitempty"`
	StrategicNotes  string          `json:"strategic_notes,omitempty"`
}

// DecisionWorkflow is the aggregate root, one per business decision.
// EntityType/EntityID are opaque foreign keys into another subsystem and are
// never dereferenced here.
type DecisionWorkflow struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	DecisionType      string          `json:"decision_type" enum:"investment,divestment,strategic,operational"`
	Priority          string          `json:"priority" enum:"low,medium,high,critical,urgent"`
	EntityType        string          `json:"entity_type,omitempty"`
	EntityID          string          `json:"entity_id,omitempty"`
	Status            string          `json:"status" enum:"draft,under_review,pending_approval,approved,rejected,on_hold,implemented,cancelled"`
	CurrentStage      Stage           `json:"current_stage"`
	RequiredApprovals []ApprovalLevel `json:"required_approvals"`
	Stakeholders      []Stakeholder   `json:"stakeholders,omitempty"`
	Context           WorkflowContext `json:"context,omitempty"`
	Timeline          Timeline        `json:"timeline"`
	CreatedAt         string          `json:"created_at" format:"date-time"`
	UpdatedAt         string          `json:"updated_at" format:"date-time"`
}

type RiskFactor struct {
	Name     string  `json:"name"`
	Severity string  `json:"severity" enum:"low,medium,high"`
	Score    float64 `json:"score"`
}

type Prediction struct {
	EstimatedCompletion string   `json:"estimated_completion" format:"date-time"`
	Confidence          float64  `json:"confidence"`
	Factors             []string `json:"factors,omitempty"`
}

type Insights struct {
	WorkflowID      string       `json:"workflow_id"`
	Bottlenecks     []string     `json:"bottlenecks,omitempty"`
	Prediction      Prediction   `json:"prediction"`
	Recommendations []string     `json:"recommendations,omitempty"`
	RiskFactors     []RiskFactor `json:"risk_factors"`
	Efficiency      float64      `json:"efficiency"`
}

type Event struct {
	ID         string `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	WorkflowID string `json:"workflow_id,omitempty"`
	ActorID    string `json:"actor_id,omitempty"`
	Payload    string `json:"payload_json,omitempty"`
}
