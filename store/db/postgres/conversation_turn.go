package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/convergeai/core/store"
)

func (d *DB) CreateConversationTurn(ctx context.Context, create *store.ConversationTurn) (*store.ConversationTurn, error) {
	agentsJSON, err := json.Marshal(create.AgentsInvoked)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal agents_invoked: %w", err)
	}
	tablesJSON, err := json.Marshal(create.SQLTablesUsed)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sql_tables_used: %w", err)
	}
	citedJSON, err := json.Marshal(create.CitedDocuments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cited_documents: %w", err)
	}

	fields := []string{
		"session_id", "role", "text", "intent", "confidence",
		"agents_invoked", "sql_tables_used", "cited_documents",
		"grounding_score", "faithfulness", "relevancy", "response_time_ms",
		"flagged_review", "created_ts",
	}
	args := []any{
		create.SessionID, create.Role, create.Text, create.Intent, create.Confidence,
		agentsJSON, tablesJSON, citedJSON,
		create.GroundingScore, create.Faithfulness, create.Relevancy, create.ResponseTimeMs,
		create.FlaggedReview, create.CreatedTs,
	}

	stmt := `INSERT INTO conversation_turn (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create conversation_turn: %w", err)
	}

	return create, nil
}

func (d *DB) ListConversationTurns(ctx context.Context, find *store.FindConversationTurn) ([]*store.ConversationTurn, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.SessionID != nil {
		where, args = append(where, "session_id = "+placeholder(len(args)+1)), append(args, *find.SessionID)
	}
	if find.FlaggedReview != nil {
		where, args = append(where, "flagged_review = "+placeholder(len(args)+1)), append(args, *find.FlaggedReview)
	}

	query := `SELECT id, session_id, role, text, intent, confidence,
			agents_invoked, sql_tables_used, cited_documents,
			grounding_score, faithfulness, relevancy, response_time_ms,
			flagged_review, created_ts
		FROM conversation_turn WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts DESC`
	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation_turns: %w", err)
	}
	defer rows.Close()

	list := make([]*store.ConversationTurn, 0)
	for rows.Next() {
		t := &store.ConversationTurn{}
		var agentsJSON, tablesJSON, citedJSON []byte
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Role, &t.Text, &t.Intent, &t.Confidence,
			&agentsJSON, &tablesJSON, &citedJSON,
			&t.GroundingScore, &t.Faithfulness, &t.Relevancy, &t.ResponseTimeMs,
			&t.FlaggedReview, &t.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan conversation_turn: %w", err)
		}
		_ = json.Unmarshal(agentsJSON, &t.AgentsInvoked)
		_ = json.Unmarshal(tablesJSON, &t.SQLTablesUsed)
		_ = json.Unmarshal(citedJSON, &t.CitedDocuments)
		list = append(list, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation_turns: %w", err)
	}

	return list, nil
}
