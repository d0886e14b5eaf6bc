package store

import (
	"context"
	"fmt"

	"dealdesk/internal/domain"
)

// Memory is the in-process Store. It provides no internal locking: every
// engine operation is a plain synchronous call and callers embedding the
// engine in a concurrent host are responsible for serializing access.
type Memory struct {
	workflows map[string]domain.DecisionWorkflow
	order     []string
	events    []domain.Event
}

func NewMemory() *Memory {
	return &Memory{workflows: map[string]domain.DecisionWorkflow{}}
}

func (m *Memory) InsertWorkflow(_ context.Context, wf domain.DecisionWorkflow) error {
	if _, ok := m.workflows[wf.ID]; ok {
		return fmt.Errorf("workflow %s already exists", wf.ID)
	}
	m.workflows[wf.ID] = CloneWorkflow(wf)
	m.order = append(m.order, wf.ID)
	return nil
}

func (m *Memory) GetWorkflow(_ context.Context, id string) (domain.DecisionWorkflow, error) {
	wf, ok := m.workflows[id]
	if !ok {
		return domain.DecisionWorkflow{}, ErrNotFound
	}
	return CloneWorkflow(wf), nil
}

func (m *Memory) UpdateWorkflow(_ context.Context, wf domain.DecisionWorkflow) error {
	if _, ok := m.workflows[wf.ID]; !ok {
		return ErrNotFound
	}
	m.workflows[wf.ID] = CloneWorkflow(wf)
	return nil
}

func (m *Memory) ListWorkflows(_ context.Context) ([]domain.DecisionWorkflow, error) {
	out := make([]domain.DecisionWorkflow, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, CloneWorkflow(m.workflows[id]))
	}
	return out, nil
}

func (m *Memory) AppendEvent(_ context.Context, evt domain.Event) error {
	m.events = append(m.events, evt)
	return nil
}

func (m *Memory) ListEvents(_ context.Context, workflowID string, limit int) ([]domain.Event, error) {
	var out []domain.Event
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if workflowID != "" && e.WorkflowID != workflowID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
