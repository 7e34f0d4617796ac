package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"
)

// PostgresIndex implements Index against a postgres table with a pgvector
// column, grounded on the positional-placeholder/RETURNING style used
// throughout store/db/postgres.
type PostgresIndex struct {
	db    *sql.DB
	table string
}

// NewPostgresIndex wraps db. table must have columns
// (id text primary key, doc_id text, content text, metadata jsonb,
// embedding vector(n)).
func NewPostgresIndex(db *sql.DB, table string) *PostgresIndex {
	return &PostgresIndex{db: db, table: table}
}

func (p *PostgresIndex) Upsert(ctx context.Context, chunk Chunk) error {
	metadataJSON, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal chunk metadata: %w", err)
	}

	stmt := fmt.Sprintf(`INSERT INTO %s (id, doc_id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			doc_id = EXCLUDED.doc_id,
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding`, p.table)

	_, err = p.db.ExecContext(ctx, stmt, chunk.ID, chunk.DocID, chunk.Content, metadataJSON, pgvector.NewVector(chunk.Vector))
	if err != nil {
		return fmt.Errorf("failed to upsert chunk %s: %w", chunk.ID, err)
	}
	return nil
}

func (p *PostgresIndex) Search(ctx context.Context, vector []float32, limit int, filter map[string]any) ([]ScoredChunk, error) {
	where := "1 = 1"
	args := []any{pgvector.NewVector(vector)}
	argIdx := 2

	if category, ok := filter["category"]; ok {
		where += fmt.Sprintf(" AND metadata->>'category' = $%d", argIdx)
		args = append(args, category)
		argIdx++
	}

	query := fmt.Sprintf(`SELECT id, doc_id, content, metadata, 1 - (embedding <=> $1) AS score
		FROM %s WHERE %s ORDER BY embedding <=> $1 LIMIT $%d`, p.table, where, argIdx)
	args = append(args, limit)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", p.table, err)
	}
	defer rows.Close()

	var results []ScoredChunk
	for rows.Next() {
		var c ScoredChunk
		var metadataJSON []byte
		if err := rows.Scan(&c.ID, &c.DocID, &c.Content, &metadataJSON, &c.Score); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &c.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal chunk metadata: %w", err)
			}
		}
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunk rows: %w", err)
	}

	return results, nil
}

func (p *PostgresIndex) Delete(ctx context.Context, id string) error {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, p.table)
	result, err := p.db.ExecContext(ctx, stmt, id)
	if err != nil {
		return fmt.Errorf("failed to delete chunk %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("chunk %s not found", id)
	}
	return nil
}

// KeywordSearch is the full-text leg of hybrid retrieval, ranked by postgres
// ts_rank_cd and fused with vector results by the policy agent using RRF.
func (p *PostgresIndex) KeywordSearch(ctx context.Context, query string, limit int) ([]ScoredChunk, error) {
	stmt := fmt.Sprintf(`SELECT id, doc_id, content, metadata,
			ts_rank_cd(to_tsvector('english', content), plainto_tsquery('english', $1)) AS score
		FROM %s
		WHERE to_tsvector('english', content) @@ plainto_tsquery('english', $1)
		ORDER BY score DESC LIMIT $2`, p.table)

	rows, err := p.db.QueryContext(ctx, stmt, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to keyword-search %s: %w", p.table, err)
	}
	defer rows.Close()

	var results []ScoredChunk
	for rows.Next() {
		var c ScoredChunk
		var metadataJSON []byte
		if err := rows.Scan(&c.ID, &c.DocID, &c.Content, &metadataJSON, &c.Score); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &c.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal chunk metadata: %w", err)
			}
		}
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keyword rows: %w", err)
	}

	return results, nil
}
