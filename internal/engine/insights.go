package engine

import (
	"context"
	"fmt"
	"time"

	"dealdesk/internal/domain"
)

// Placeholder heuristics carried over from the original model. Deriving real
// values would change observable behavior.
// TODO: derive prediction confidence and risk factors from stage history once
// completed workflows are retained long enough to average over.
const (
	predictionHorizonDays = 15
	predictionConfidence  = 0.75
	efficiencyScore       = 0.85
)

// WorkflowInsights derives bottlenecks, predictions, recommendations and risk
// factors from the workflow's current state. Read-only: the workflow is never
// mutated.
func (e Engine) WorkflowInsights(ctx context.Context, workflowID string) (domain.Insights, error) {
	wf, err := e.getWorkflow(ctx, workflowID)
	if err != nil {
		return domain.Insights{}, err
	}

	var bottlenecks []string
	for _, a := range wf.RequiredApprovals {
		if a.Required && !a.Completed {
			bottlenecks = append(bottlenecks, fmt.Sprintf("Pending approval from %s", a.Role))
		}
	}
	for _, m := range wf.Timeline.Milestones {
		if m.Status == domain.MilestoneOverdue {
			bottlenecks = append(bottlenecks, fmt.Sprintf("Overdue milestone: %s", m.Name))
		}
	}

	createdAt, err := time.Parse(time.RFC3339, wf.CreatedAt)
	if err != nil {
		return domain.Insights{}, fmt.Errorf("parse created_at: %w", err)
	}

	var recommendations []string
	switch wf.Priority {
	case domain.PriorityHigh, domain.PriorityCritical, domain.PriorityUrgent:
		recommendations = append(recommendations, "Consider expedited review process")
	}
	if wf.Context.RiskAssessment.OverallRisk == "high" {
		recommendations = append(recommendations, "Engage additional risk review")
	}

	return domain.Insights{
		WorkflowID:  wf.ID,
		Bottlenecks: bottlenecks,
		Prediction: domain.Prediction{
			EstimatedCompletion: createdAt.UTC().AddDate(0, 0, predictionHorizonDays).Format(time.RFC3339),
			Confidence:          predictionConfidence,
			Factors: []string{
				"Current stage progress",
				"Pending approval count",
				"Historical cycle times",
			},
		},
		Recommendations: recommendations,
		RiskFactors: []domain.RiskFactor{
			{Name: "Timeline risk", Severity: "medium", Score: 0.3},
			{Name: "Approval risk", Severity: "low", Score: 0.1},
		},
		Efficiency: efficiencyScore,
	}, nil
}
