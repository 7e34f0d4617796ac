package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/convergeai/core/store"
)

func (d *DB) CreateComplaint(ctx context.Context, create *store.Complaint) (*store.Complaint, error) {
	stmt := `INSERT INTO complaint (
			complaint_id, session_id, user_id, order_id, issue_type, description,
			sentiment_score, priority_score, status, created_ts, updated_ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`

	_, err := d.db.ExecContext(ctx, stmt,
		create.ComplaintID, create.SessionID, create.UserID, create.OrderID, create.IssueType, create.Description,
		create.SentimentScore, create.PriorityScore, create.Status, create.CreatedTs)
	if err != nil {
		return nil, fmt.Errorf("failed to create complaint: %w", err)
	}

	return create, nil
}

func (d *DB) UpdateComplaint(ctx context.Context, update *store.UpdateComplaint) (*store.Complaint, error) {
	set, args := []string{}, []any{}

	if update.Status != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, *update.Status)
	}
	if update.ResolutionNote != nil {
		set, args = append(set, "resolution_note = "+placeholder(len(args)+1)), append(args, *update.ResolutionNote)
	}
	set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, update.UpdatedTs)

	args = append(args, update.ComplaintID)
	stmt := `UPDATE complaint SET ` + strings.Join(set, ", ") + ` WHERE complaint_id = ` + placeholder(len(args)) + `
		RETURNING complaint_id, session_id, user_id, order_id, issue_type, description,
			sentiment_score, priority_score, status, resolution_note, created_ts, updated_ts`

	c := &store.Complaint{}
	err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&c.ComplaintID, &c.SessionID, &c.UserID, &c.OrderID, &c.IssueType, &c.Description,
		&c.SentimentScore, &c.PriorityScore, &c.Status, &c.ResolutionNote, &c.CreatedTs, &c.UpdatedTs)
	if err != nil {
		return nil, fmt.Errorf("failed to update complaint %s: %w", update.ComplaintID, err)
	}

	return c, nil
}

func (d *DB) ListComplaints(ctx context.Context, find *store.FindComplaint) ([]*store.Complaint, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}
	if find.Status != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, *find.Status)
	}

	query := `SELECT complaint_id, session_id, user_id, order_id, issue_type, description,
			sentiment_score, priority_score, status, resolution_note, created_ts, updated_ts
		FROM complaint WHERE ` + strings.Join(where, " AND ") + ` ORDER BY priority_score DESC, created_ts ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list complaints: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Complaint, 0)
	for rows.Next() {
		c := &store.Complaint{}
		if err := rows.Scan(&c.ComplaintID, &c.SessionID, &c.UserID, &c.OrderID, &c.IssueType, &c.Description,
			&c.SentimentScore, &c.PriorityScore, &c.Status, &c.ResolutionNote, &c.CreatedTs, &c.UpdatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan complaint: %w", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate complaints: %w", err)
	}

	return list, nil
}
