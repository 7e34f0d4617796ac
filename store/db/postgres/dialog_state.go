package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/convergeai/core/store"
)

func (d *DB) UpsertDialogState(ctx context.Context, upsert *store.UpsertDialogState) (*store.DialogState, error) {
	requiredJSON, err := json.Marshal(upsert.RequiredEntities)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal required_entities: %w", err)
	}
	collectedJSON, err := json.Marshal(upsert.Collected)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal collected: %w", err)
	}
	retryJSON, err := json.Marshal(upsert.RetryCounts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal retry_counts: %w", err)
	}
	contextJSON, err := json.Marshal(upsert.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal context: %w", err)
	}

	stmt := `INSERT INTO dialog_state (
			session_id, state, target_intent, required_entities, collected,
			expected_entity, retry_counts, context, created_ts, updated_ts, expires_ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $10)
		ON CONFLICT (session_id) DO UPDATE SET
			state = EXCLUDED.state,
			target_intent = EXCLUDED.target_intent,
			required_entities = EXCLUDED.required_entities,
			collected = EXCLUDED.collected,
			expected_entity = EXCLUDED.expected_entity,
			retry_counts = EXCLUDED.retry_counts,
			context = EXCLUDED.context,
			updated_ts = EXCLUDED.updated_ts,
			expires_ts = EXCLUDED.expires_ts
		RETURNING session_id, state, target_intent, required_entities, collected,
			expected_entity, retry_counts, context, created_ts, updated_ts, expires_ts`

	result := &store.DialogState{}
	var requiredOut, collectedOut, retryOut, contextOut []byte
	err = d.db.QueryRowContext(ctx, stmt,
		upsert.SessionID, upsert.State, upsert.TargetIntent, requiredJSON, collectedJSON,
		upsert.ExpectedEntity, retryJSON, contextJSON, upsert.UpdatedTs, upsert.ExpiresTs,
	).Scan(&result.SessionID, &result.State, &result.TargetIntent, &requiredOut, &collectedOut,
		&result.ExpectedEntity, &retryOut, &contextOut, &result.CreatedTs, &result.UpdatedTs, &result.ExpiresTs)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert dialog_state: %w", err)
	}

	_ = json.Unmarshal(requiredOut, &result.RequiredEntities)
	_ = json.Unmarshal(collectedOut, &result.Collected)
	_ = json.Unmarshal(retryOut, &result.RetryCounts)
	_ = json.Unmarshal(contextOut, &result.Context)

	return result, nil
}

func (d *DB) GetDialogState(ctx context.Context, sessionID string) (*store.DialogState, error) {
	query := `SELECT session_id, state, target_intent, required_entities, collected,
			expected_entity, retry_counts, context, created_ts, updated_ts, expires_ts
		FROM dialog_state WHERE session_id = $1`

	result := &store.DialogState{}
	var requiredOut, collectedOut, retryOut, contextOut []byte
	err := d.db.QueryRowContext(ctx, query, sessionID).Scan(
		&result.SessionID, &result.State, &result.TargetIntent, &requiredOut, &collectedOut,
		&result.ExpectedEntity, &retryOut, &contextOut, &result.CreatedTs, &result.UpdatedTs, &result.ExpiresTs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get dialog_state for session %s: %w", sessionID, err)
	}

	_ = json.Unmarshal(requiredOut, &result.RequiredEntities)
	_ = json.Unmarshal(collectedOut, &result.Collected)
	_ = json.Unmarshal(retryOut, &result.RetryCounts)
	_ = json.Unmarshal(contextOut, &result.Context)

	return result, nil
}

func (d *DB) DeleteDialogState(ctx context.Context, sessionID string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM dialog_state WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete dialog_state for session %s: %w", sessionID, err)
	}
	return nil
}

func (d *DB) ListIdleDialogStates(ctx context.Context, idleSince int64) ([]*store.DialogState, error) {
	query := `SELECT session_id, state, target_intent, required_entities, collected,
			expected_entity, retry_counts, context, created_ts, updated_ts, expires_ts
		FROM dialog_state WHERE updated_ts < $1 AND state NOT IN ('completed', 'cancelled')`

	rows, err := d.db.QueryContext(ctx, query, idleSince)
	if err != nil {
		return nil, fmt.Errorf("failed to list idle dialog_states: %w", err)
	}
	defer rows.Close()

	var list []*store.DialogState
	for rows.Next() {
		s := &store.DialogState{}
		var requiredOut, collectedOut, retryOut, contextOut []byte
		if err := rows.Scan(&s.SessionID, &s.State, &s.TargetIntent, &requiredOut, &collectedOut,
			&s.ExpectedEntity, &retryOut, &contextOut, &s.CreatedTs, &s.UpdatedTs, &s.ExpiresTs); err != nil {
			return nil, fmt.Errorf("failed to scan dialog_state: %w", err)
		}
		_ = json.Unmarshal(requiredOut, &s.RequiredEntities)
		_ = json.Unmarshal(collectedOut, &s.Collected)
		_ = json.Unmarshal(retryOut, &s.RetryCounts)
		_ = json.Unmarshal(contextOut, &s.Context)
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dialog_states: %w", err)
	}

	return list, nil
}
