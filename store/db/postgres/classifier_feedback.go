package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/convergeai/core/store"
)

func (d *DB) CreateClassifierFeedback(ctx context.Context, create *store.CreateClassifierFeedback) error {
	if create.Timestamp == 0 {
		create.Timestamp = time.Now().Unix()
	}

	stmt := `INSERT INTO classifier_feedback (user_id, input, predicted_intent, actual_intent, outcome, timestamp, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := d.db.ExecContext(ctx, stmt,
		create.UserID, create.Input, create.Predicted, create.Actual,
		create.Outcome, create.Timestamp, create.Source)
	if err != nil {
		return fmt.Errorf("failed to create classifier feedback: %w", err)
	}

	return nil
}

func (d *DB) ListClassifierFeedback(ctx context.Context, find *store.FindClassifierFeedback) ([]*store.ClassifierFeedback, error) {
	query := `SELECT id, user_id, input, predicted_intent, actual_intent, outcome, source, timestamp
		FROM classifier_feedback WHERE 1=1`
	args := []any{}
	argIdx := 1

	if find.UserID != nil {
		query += fmt.Sprintf(" AND user_id = %s", placeholder(argIdx))
		args = append(args, *find.UserID)
		argIdx++
	}
	if find.StartTime != nil {
		query += fmt.Sprintf(" AND timestamp >= %s", placeholder(argIdx))
		args = append(args, *find.StartTime)
		argIdx++
	}
	if find.EndTime != nil {
		query += fmt.Sprintf(" AND timestamp <= %s", placeholder(argIdx))
		args = append(args, *find.EndTime)
		argIdx++
	}

	query += " ORDER BY timestamp DESC"
	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list classifier feedback: %w", err)
	}
	defer rows.Close()

	var feedback []*store.ClassifierFeedback
	for rows.Next() {
		var fb store.ClassifierFeedback
		if err := rows.Scan(&fb.ID, &fb.UserID, &fb.Input, &fb.Predicted, &fb.Actual, &fb.Outcome, &fb.Source, &fb.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan classifier feedback: %w", err)
		}
		feedback = append(feedback, &fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating classifier feedback rows: %w", err)
	}

	return feedback, nil
}

func (d *DB) GetClassifierStats(ctx context.Context, userID string, sinceUnix int64) (*store.ClassifierStats, error) {
	statsQuery := `SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE outcome = 'correct') AS correct,
			COUNT(*) FILTER (WHERE outcome != 'correct') AS incorrect
		FROM classifier_feedback WHERE user_id = $1 AND timestamp >= $2`

	var total, correct, incorrect int64
	err := d.db.QueryRowContext(ctx, statsQuery, userID, sinceUnix).Scan(&total, &correct, &incorrect)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get classifier stats: %w", err)
	}

	byIntent, err := d.groupCount(ctx, userID, sinceUnix, "predicted_intent")
	if err != nil {
		return nil, err
	}
	bySource, err := d.groupCount(ctx, userID, sinceUnix, "source")
	if err != nil {
		return nil, err
	}

	accuracy := 0.0
	if total > 0 {
		accuracy = float64(correct) / float64(total)
	}

	return &store.ClassifierStats{
		TotalPredictions: total,
		CorrectCount:     correct,
		IncorrectCount:   incorrect,
		Accuracy:         accuracy,
		ByIntent:         byIntent,
		BySource:         bySource,
	}, nil
}

func (d *DB) groupCount(ctx context.Context, userID string, sinceUnix int64, column string) (map[string]int64, error) {
	query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM classifier_feedback WHERE user_id = $1 AND timestamp >= $2 GROUP BY %s`, column, column)

	rows, err := d.db.QueryContext(ctx, query, userID, sinceUnix)
	if err != nil {
		return nil, fmt.Errorf("failed to group classifier feedback by %s: %w", column, err)
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("failed to scan group count: %w", err)
		}
		result[key] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group counts: %w", err)
	}

	return result, nil
}
