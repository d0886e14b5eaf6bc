package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dealdesk/internal/domain"
	"dealdesk/internal/store"
)

type Writer struct {
	Store store.Store
	Now   func() time.Time
}

type EventPayload map[string]any

// Append records an audit event. Callers treat failures as best effort; an
// event that cannot be written must never abort the mutation it describes.
func (w Writer) Append(ctx context.Context, evtType, workflowID, actorID string, payload EventPayload) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	return w.Store.AppendEvent(ctx, domain.Event{
		ID:         uuid.New().String(),
		TS:         now().UTC().Format(time.RFC3339),
		Type:       evtType,
		WorkflowID: workflowID,
		ActorID:    actorID,
		Payload:    string(data),
	})
}
