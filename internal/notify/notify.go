package notify

import (
	"log"

	"dealdesk/internal/domain"
)

// Notifier is the stakeholder-notification hook fired on create, stage update,
// approval and rejection. The receiving system owns actual delivery; failures
// are invisible to the engine.
type Notifier interface {
	NotifyStakeholders(wf domain.DecisionWorkflow, event string)
}

// LogNotifier writes notification intents to a logger. Best effort only.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) NotifyStakeholders(wf domain.DecisionWorkflow, event string) {
	logger := n.Logger
	if logger == nil {
		logger = log.Default()
	}
	recipients := 0
	for _, s := range wf.Stakeholders {
		if s.Notify {
			recipients++
		}
	}
	logger.Printf("notify %s workflow=%s status=%s recipients=%d", event, wf.ID, wf.Status, recipients)
}

// Noop discards notifications; used in tests.
type Noop struct{}

func (Noop) NotifyStakeholders(domain.DecisionWorkflow, string) {}
