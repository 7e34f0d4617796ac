package postgres

import (
	"context"
	"fmt"
)

// policyChunkDimensions is the embedding width used by the policy corpus
// table (spec's 384-dim cosine vector index).
const policyChunkDimensions = 384

// schemaStatements creates every table this driver reads and writes, plus
// the policy_chunk vector table backing internal/vectorindex. Statements are
// idempotent so Migrate can run on every boot.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,

	`CREATE TABLE IF NOT EXISTS conversation_turn (
		id               BIGSERIAL PRIMARY KEY,
		session_id       TEXT NOT NULL,
		role             TEXT NOT NULL,
		text             TEXT NOT NULL,
		intent           TEXT,
		confidence       DOUBLE PRECISION,
		agents_invoked   JSONB,
		sql_tables_used  JSONB,
		cited_documents  JSONB,
		grounding_score  DOUBLE PRECISION,
		faithfulness     DOUBLE PRECISION,
		relevancy        DOUBLE PRECISION,
		response_time_ms BIGINT,
		flagged_review   BOOLEAN NOT NULL DEFAULT FALSE,
		created_ts       BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversation_turn_session ON conversation_turn (session_id, created_ts)`,

	`CREATE TABLE IF NOT EXISTS dialog_state (
		session_id        TEXT PRIMARY KEY,
		state             TEXT NOT NULL,
		target_intent     TEXT NOT NULL,
		required_entities JSONB,
		collected         JSONB,
		expected_entity   TEXT,
		retry_counts      JSONB,
		context           JSONB,
		created_ts        BIGINT NOT NULL,
		updated_ts        BIGINT NOT NULL,
		expires_ts        BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dialog_state_updated ON dialog_state (updated_ts)`,

	`CREATE TABLE IF NOT EXISTS booking (
		order_id       TEXT PRIMARY KEY,
		session_id     TEXT NOT NULL,
		user_id        TEXT NOT NULL,
		service_type   TEXT NOT NULL,
		preferred_date TEXT,
		preferred_time TEXT,
		location       TEXT,
		quantity       INTEGER,
		payment_method TEXT,
		status         TEXT NOT NULL,
		refund_amount  DOUBLE PRECISION,
		cancel_reason  TEXT,
		created_ts     BIGINT NOT NULL,
		updated_ts     BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_booking_user ON booking (user_id, created_ts)`,

	`CREATE TABLE IF NOT EXISTS complaint (
		complaint_id    TEXT PRIMARY KEY,
		session_id      TEXT NOT NULL,
		user_id         TEXT NOT NULL,
		order_id        TEXT,
		issue_type      TEXT NOT NULL,
		description     TEXT,
		sentiment_score DOUBLE PRECISION,
		priority_score  DOUBLE PRECISION,
		status          TEXT NOT NULL,
		resolution_note TEXT,
		created_ts      BIGINT NOT NULL,
		updated_ts      BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_complaint_priority ON complaint (priority_score DESC, created_ts)`,

	`CREATE TABLE IF NOT EXISTS priority_queue_entry (
		id              BIGSERIAL PRIMARY KEY,
		user_id         TEXT NOT NULL,
		session_id      TEXT NOT NULL,
		intent_kind     TEXT NOT NULL,
		confidence      DOUBLE PRECISION,
		priority_score  DOUBLE PRECISION NOT NULL,
		sentiment_score DOUBLE PRECISION,
		message_snippet TEXT,
		status          TEXT NOT NULL,
		reviewer_id     TEXT,
		action_taken    TEXT,
		created_ts      BIGINT NOT NULL,
		updated_ts      BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_priority_queue_status ON priority_queue_entry (status, priority_score DESC)`,

	`CREATE TABLE IF NOT EXISTS audit_event (
		id          BIGSERIAL PRIMARY KEY,
		session_id  TEXT NOT NULL,
		user_id     TEXT,
		event_type  TEXT NOT NULL,
		from_state  TEXT,
		to_state    TEXT,
		detail      JSONB,
		occurred_ts BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_event_session ON audit_event (session_id, occurred_ts)`,

	`CREATE TABLE IF NOT EXISTS classifier_feedback (
		id               BIGSERIAL PRIMARY KEY,
		user_id          TEXT,
		input            TEXT NOT NULL,
		predicted_intent TEXT NOT NULL,
		actual_intent    TEXT,
		outcome          TEXT NOT NULL,
		source           TEXT NOT NULL,
		timestamp        BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_classifier_feedback_user ON classifier_feedback (user_id, timestamp)`,

	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS policy_chunk (
		id        TEXT PRIMARY KEY,
		doc_id    TEXT NOT NULL,
		content   TEXT NOT NULL,
		metadata  JSONB,
		embedding vector(%d)
	)`, policyChunkDimensions),
	`CREATE INDEX IF NOT EXISTS idx_policy_chunk_doc ON policy_chunk (doc_id)`,
	`CREATE INDEX IF NOT EXISTS idx_policy_chunk_fts ON policy_chunk USING GIN (to_tsvector('english', content))`,
}

// Migrate creates the schema if it doesn't already exist. Every statement is
// idempotent, so this is safe to run on every boot rather than tracking
// applied versions.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w (statement: %s)", err, stmt)
		}
	}
	return nil
}
