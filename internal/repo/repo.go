package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"dealdesk/internal/domain"
	"dealdesk/internal/store"
)

// Repo is the SQLite-backed Store. Nested aggregates are persisted as JSON
// columns; the relational surface stays flat on purpose. Persistence here is a
// convenience for the CLI and server, not a durability guarantee.
type Repo struct {
	DB *sql.DB
}

var _ store.Store = Repo{}

const workflowColumns = `id,title,decision_type,priority,entity_type,entity_id,status,current_stage_json,approvals_json,stakeholders_json,context_json,timeline_json,created_at,updated_at`

func (r Repo) InsertWorkflow(ctx context.Context, wf domain.DecisionWorkflow) error {
	stage, approvals, stakeholders, wfContext, timeline, err := marshalWorkflow(wf)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO workflows(`+workflowColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		wf.ID, wf.Title, wf.DecisionType, wf.Priority, nullable(wf.EntityType), nullable(wf.EntityID), wf.Status,
		stage, approvals, stakeholders, wfContext, timeline, wf.CreatedAt, wf.UpdatedAt)
	return err
}

func (r Repo) UpdateWorkflow(ctx context.Context, wf domain.DecisionWorkflow) error {
	stage, approvals, stakeholders, wfContext, timeline, err := marshalWorkflow(wf)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE workflows SET title=?, decision_type=?, priority=?, entity_type=?, entity_id=?, status=?, current_stage_json=?, approvals_json=?, stakeholders_json=?, context_json=?, timeline_json=?, created_at=?, updated_at=? WHERE id=?`,
		wf.Title, wf.DecisionType, wf.Priority, nullable(wf.EntityType), nullable(wf.EntityID), wf.Status,
		stage, approvals, stakeholders, wfContext, timeline, wf.CreatedAt, wf.UpdatedAt, wf.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r Repo) GetWorkflow(ctx context.Context, id string) (domain.DecisionWorkflow, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id=?`, id)
	wf, err := scanWorkflow(row.Scan)
	if err == sql.ErrNoRows {
		return domain.DecisionWorkflow{}, store.ErrNotFound
	}
	return wf, err
}

func (r Repo) ListWorkflows(ctx context.Context) ([]domain.DecisionWorkflow, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+workflowColumns+` FROM workflows ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.DecisionWorkflow
	for rows.Next() {
		wf, err := scanWorkflow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, wf)
	}
	return res, rows.Err()
}

func (r Repo) AppendEvent(ctx context.Context, evt domain.Event) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO events(id,ts,type,workflow_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		evt.ID, evt.TS, evt.Type, nullable(evt.WorkflowID), nullable(evt.ActorID), nullable(evt.Payload))
	return err
}

func (r Repo) ListEvents(ctx context.Context, workflowID string, limit int) ([]domain.Event, error) {
	query := `SELECT id,ts,type,workflow_id,actor_id,payload_json FROM events`
	var args []any
	if workflowID != "" {
		query += ` WHERE workflow_id=?`
		args = append(args, workflowID)
	}
	query += ` ORDER BY rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var wfID, actorID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &wfID, &actorID, &payload); err != nil {
			return nil, err
		}
		if wfID.Valid {
			e.WorkflowID = wfID.String
		}
		if actorID.Valid {
			e.ActorID = actorID.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func marshalWorkflow(wf domain.DecisionWorkflow) (stage, approvals, stakeholders, wfContext, timeline string, err error) {
	parts := []struct {
		out *string
		in  any
	}{
		{&stage, wf.CurrentStage},
		{&approvals, wf.RequiredApprovals},
		{&stakeholders, wf.Stakeholders},
		{&wfContext, wf.Context},
		{&timeline, wf.Timeline},
	}
	for _, p := range parts {
		b, merr := json.Marshal(p.in)
		if merr != nil {
			return "", "", "", "", "", fmt.Errorf("marshal workflow %s: %w", wf.ID, merr)
		}
		*p.out = string(b)
	}
	return stage, approvals, stakeholders, wfContext, timeline, nil
}

func scanWorkflow(scan func(...any) error) (domain.DecisionWorkflow, error) {
	var wf domain.DecisionWorkflow
	var entityType, entityID sql.NullString
	var stage, approvals, stakeholders, wfContext, timeline string
	err := scan(&wf.ID, &wf.Title, &wf.DecisionType, &wf.Priority, &entityType, &entityID, &wf.Status,
		&stage, &approvals, &stakeholders, &wfContext, &timeline, &wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		return wf, err
	}
	if entityType.Valid {
		wf.EntityType = entityType.String
	}
	if entityID.Valid {
		wf.EntityID = entityID.String
	}
	for _, p := range []struct {
		raw string
		out any
	}{
		{stage, &wf.CurrentStage},
		{approvals, &wf.RequiredApprovals},
		{stakeholders, &wf.Stakeholders},
		{wfContext, &wf.Context},
		{timeline, &wf.Timeline},
	} {
		if p.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(p.raw), p.out); err != nil {
			return wf, fmt.Errorf("unmarshal workflow %s: %w", wf.ID, err)
		}
	}
	return wf, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
