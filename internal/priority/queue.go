package priority

import (
	"context"
	"fmt"
	"time"

	"github.com/convergeai/core/internal/config"
	"github.com/convergeai/core/store"
)

// Queue is the priority-queue read/write path used by task agents (to
// raise an entry) and by the operator-facing review surface (to list and
// resolve entries), with PII redaction and audit logging applied on read.
type Queue struct {
	st  *store.Store
	cfg *config.Store
}

func New(st *store.Store, cfg *config.Store) *Queue {
	return &Queue{st: st, cfg: cfg}
}

// RaiseInputs describes a turn a task agent or the coordinator wants
// flagged for operator review.
type RaiseInputs struct {
	UserID         string
	SessionID      string
	IntentKind     string
	MessageSnippet string
	Score          ScoreInputs
}

// Raise scores the turn and enqueues a priority-queue entry. Called on task
// agent failure, low-confidence classification, or any other confidence-
// reducing outcome per spec §4.9/§4.10.
func (q *Queue) Raise(ctx context.Context, in RaiseInputs) (*store.PriorityQueueEntry, error) {
	entry := &store.PriorityQueueEntry{
		UserID:         in.UserID,
		SessionID:      in.SessionID,
		IntentKind:     in.IntentKind,
		Confidence:     in.Score.IntentConfidence,
		PriorityScore:  Score(in.Score),
		SentimentScore: in.Score.SentimentScore,
		MessageSnippet: in.MessageSnippet,
		Status:         store.ReviewStatusPending,
	}
	created, err := q.st.EnqueuePriorityItem(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("enqueue priority item: %w", err)
	}
	return created, nil
}

// Entry is a priority-queue entry enriched with its SLA risk band, returned
// to a reviewer. MessageSnippet is redacted unless the reviewer has
// full_access.
type Entry struct {
	*store.PriorityQueueEntry
	SLARisk SLARisk
}

// List returns queue entries matching find, redacting MessageSnippet for a
// reviewer without full_access and appending an audit event for the access
// regardless of access level, per spec §4.10.
func (q *Queue) List(ctx context.Context, reviewerID string, hasFullAccess bool, find *store.FindPriorityQueueEntry) ([]*Entry, error) {
	raw, err := q.st.ListPriorityQueue(ctx, find)
	if err != nil {
		return nil, fmt.Errorf("list priority queue: %w", err)
	}

	now := time.Now()
	out := make([]*Entry, 0, len(raw))
	for _, e := range raw {
		if !hasFullAccess {
			e.MessageSnippet = RedactSnippet(e.MessageSnippet)
		}
		out = append(out, &Entry{
			PriorityQueueEntry: e,
			SLARisk:            ClassifySLA(q.cfg, e.IntentKind, e.CreatedTs, now),
		})

		if err := q.st.AppendAuditEvent(ctx, &store.AuditEvent{
			SessionID:  e.SessionID,
			UserID:     reviewerID,
			EventType:  "priority_queue_access",
			Detail:     fmt.Sprintf(`{"entry_id":%d,"full_access":%t}`, e.ID, hasFullAccess),
			OccurredTs: now.Unix(),
		}); err != nil {
			return nil, fmt.Errorf("append audit event: %w", err)
		}
	}
	return out, nil
}

// Resolve marks a queue entry reviewed by reviewerID and appends the
// corresponding audit event.
func (q *Queue) Resolve(ctx context.Context, id int64, reviewerID string) error {
	if err := q.st.ResolvePriorityItem(ctx, id, reviewerID); err != nil {
		return fmt.Errorf("resolve priority item: %w", err)
	}
	return q.st.AppendAuditEvent(ctx, &store.AuditEvent{
		EventType:  "priority_queue_resolved",
		UserID:     reviewerID,
		Detail:     fmt.Sprintf(`{"entry_id":%d}`, id),
		OccurredTs: time.Now().Unix(),
	})
}
