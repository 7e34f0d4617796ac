package store

// ComplaintStatus tracks a complaint through triage and resolution.
type ComplaintStatus string

const (
	ComplaintStatusOpen      ComplaintStatus = "open"
	ComplaintStatusReviewing ComplaintStatus = "reviewing"
	ComplaintStatusResolved  ComplaintStatus = "resolved"
)

// Complaint is created by the Complaint task agent. Its priority score
// (computed by internal/priority) determines queue placement for human
// review.
type Complaint struct {
	ComplaintID    string
	SessionID      string
	UserID         string
	OrderID        string // optional, when tied to a specific booking
	IssueType      string
	Description    string
	SentimentScore float64 // -1..1
	PriorityScore  float64 // 0..100
	Status         ComplaintStatus
	ResolutionNote string
	CreatedTs      int64
	UpdatedTs      int64
}

// FindComplaint specifies conditions for listing complaints.
type FindComplaint struct {
	UserID *string
	Status *ComplaintStatus
}

// UpdateComplaint specifies a partial update, keyed by ComplaintID.
type UpdateComplaint struct {
	ComplaintID    string
	Status         *ComplaintStatus
	ResolutionNote *string
	UpdatedTs      int64
}
