package stakeholders

import "dealdesk/internal/domain"

// Resolve maps a decision type to the fixed set of stakeholders entitled to
// visibility or approval rights. Priority is accepted for interface stability
// but does not vary the result yet. Unrecognized types resolve to an empty
// list; there is no failure mode.
func Resolve(decisionType, priority string) []domain.Stakeholder {
	_ = priority
	rules, ok := directory()[decisionType]
	if !ok {
		return nil
	}
	out := make([]domain.Stakeholder, len(rules))
	copy(out, rules)
	return out
}

func directory() map[string][]domain.Stakeholder {
	return map[string][]domain.Stakeholder{
		domain.DecisionInvestment: {
			{ID: "sh-pm-01", Name: "Elena Vasquez", Role: "portfolio_manager", Department: "Investments", Influence: "high", Notify: true},
			{ID: "sh-rm-01", Name: "Daniel Okafor", Role: "risk_manager", Department: "Risk", Influence: "high", Notify: true},
			{ID: "sh-ic-01", Name: "Investment Committee", Role: "investment_committee", Department: "Investments", Influence: "high", Notify: true},
			{ID: "sh-mp-01", Name: "Margaret Chen", Role: "managing_partner", Department: "Partners", Influence: "high", Notify: true},
			{ID: "sh-an-01", Name: "Priya Nair", Role: "analyst", Department: "Investments", Influence: "low", Notify: false},
		},
		domain.DecisionDivestment: {
			{ID: "sh-pm-01", Name: "Elena Vasquez", Role: "portfolio_manager", Department: "Investments", Influence: "high", Notify: true},
			{ID: "sh-mp-01", Name: "Margaret Chen", Role: "managing_partner", Department: "Partners", Influence: "high", Notify: true},
			{ID: "sh-cf-01", Name: "Thomas Lindqvist", Role: "cfo", Department: "Finance", Influence: "medium", Notify: true},
		},
		domain.DecisionStrategic: {
			{ID: "sh-mp-01", Name: "Margaret Chen", Role: "managing_partner", Department: "Partners", Influence: "high", Notify: true},
			{ID: "sh-ic-01", Name: "Investment Committee", Role: "investment_committee", Department: "Investments", Influence: "high", Notify: true},
			{ID: "sh-op-01", Name: "Sofia Marino", Role: "operating_partner", Department: "Operations", Influence: "medium", Notify: false},
		},
		domain.DecisionOperational: {
			{ID: "sh-op-01", Name: "Sofia Marino", Role: "operating_partner", Department: "Operations", Influence: "high", Notify: true},
			{ID: "sh-cf-01", Name: "Thomas Lindqvist", Role: "cfo", Department: "Finance", Influence: "medium", Notify: true},
		},
	}
}
