package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/convergeai/core/store"
)

func (d *DB) EnqueuePriorityItem(ctx context.Context, create *store.PriorityQueueEntry) (*store.PriorityQueueEntry, error) {
	stmt := `INSERT INTO priority_queue_entry (
			user_id, session_id, intent_kind, confidence, priority_score, sentiment_score,
			message_snippet, status, created_ts, updated_ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id`

	err := d.db.QueryRowContext(ctx, stmt,
		create.UserID, create.SessionID, create.IntentKind, create.Confidence, create.PriorityScore, create.SentimentScore,
		create.MessageSnippet, create.Status, create.CreatedTs).Scan(&create.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue priority item: %w", err)
	}

	return create, nil
}

func (d *DB) ListPriorityQueue(ctx context.Context, find *store.FindPriorityQueueEntry) ([]*store.PriorityQueueEntry, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.Status != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, *find.Status)
	}
	if find.MinPriority != nil {
		where, args = append(where, "priority_score >= "+placeholder(len(args)+1)), append(args, *find.MinPriority)
	}

	query := `SELECT id, user_id, session_id, intent_kind, confidence, priority_score, sentiment_score,
			message_snippet, status, reviewer_id, action_taken, created_ts, updated_ts
		FROM priority_queue_entry WHERE ` + strings.Join(where, " AND ") + ` ORDER BY priority_score DESC, created_ts ASC`
	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list priority queue: %w", err)
	}
	defer rows.Close()

	list := make([]*store.PriorityQueueEntry, 0)
	for rows.Next() {
		e := &store.PriorityQueueEntry{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.IntentKind, &e.Confidence, &e.PriorityScore, &e.SentimentScore,
			&e.MessageSnippet, &e.Status, &e.ReviewerID, &e.ActionTaken, &e.CreatedTs, &e.UpdatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan priority queue entry: %w", err)
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate priority queue: %w", err)
	}

	return list, nil
}

func (d *DB) ResolvePriorityItem(ctx context.Context, id int64, resolvedBy string) error {
	stmt := `UPDATE priority_queue_entry SET status = $1, reviewer_id = $2, updated_ts = $3 WHERE id = $4`
	result, err := d.db.ExecContext(ctx, stmt, store.ReviewStatusReviewed, resolvedBy, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to resolve priority item %d: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("priority item %d not found", id)
	}
	return nil
}
