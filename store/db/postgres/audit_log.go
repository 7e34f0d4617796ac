package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/convergeai/core/store"
)

func (d *DB) AppendAuditEvent(ctx context.Context, event *store.AuditEvent) error {
	stmt := `INSERT INTO audit_event (session_id, user_id, event_type, from_state, to_state, detail, occurred_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := d.db.ExecContext(ctx, stmt,
		event.SessionID, event.UserID, event.EventType, event.FromState, event.ToState, event.Detail, event.OccurredTs)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}

	return nil
}

func (d *DB) ListAuditEvents(ctx context.Context, find *store.FindAuditEvent) ([]*store.AuditEvent, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.SessionID != nil {
		where, args = append(where, "session_id = "+placeholder(len(args)+1)), append(args, *find.SessionID)
	}
	if find.EventType != nil {
		where, args = append(where, "event_type = "+placeholder(len(args)+1)), append(args, *find.EventType)
	}

	query := `SELECT id, session_id, user_id, event_type, from_state, to_state, detail, occurred_ts
		FROM audit_event WHERE ` + strings.Join(where, " AND ") + ` ORDER BY occurred_ts DESC`
	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	list := make([]*store.AuditEvent, 0)
	for rows.Next() {
		e := &store.AuditEvent{}
		if err := rows.Scan(&e.ID, &e.SessionID, &e.UserID, &e.EventType, &e.FromState, &e.ToState, &e.Detail, &e.OccurredTs); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}

	return list, nil
}
