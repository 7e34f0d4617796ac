package store

// ReviewStatus tracks a priority queue entry through operator triage.
type ReviewStatus string

const (
	ReviewStatusPending   ReviewStatus = "pending"
	ReviewStatusReviewed  ReviewStatus = "reviewed"
	ReviewStatusEscalated ReviewStatus = "escalated"
)

// PriorityQueueEntry is raised by a task agent or by a low-confidence
// classification, for operations staff to triage. MessageSnippet has PII
// redacted unless the reader holds full_access — see internal/priority.
type PriorityQueueEntry struct {
	ID             int64
	UserID         string
	SessionID      string
	IntentKind     string
	Confidence     float64
	PriorityScore  float64 // 0-100, see internal/priority formula
	SentimentScore float64 // -1..1
	MessageSnippet string
	Status         ReviewStatus
	ReviewerID     string
	ActionTaken    string
	CreatedTs      int64
	UpdatedTs      int64
}

// FindPriorityQueueEntry specifies conditions for listing queue entries.
type FindPriorityQueueEntry struct {
	Status       *ReviewStatus
	MinPriority  *float64
	Limit        int
}
