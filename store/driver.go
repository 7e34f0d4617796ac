package store

import "context"

// Driver is the storage backend contract. The only implementation carried
// is postgres (store/db/postgres) — see DESIGN.md for why a second backend
// was not kept.
type Driver interface {
	Close() error

	// Migrate creates the domain schema if it doesn't already exist.
	Migrate(ctx context.Context) error

	// Conversation turns.
	CreateConversationTurn(ctx context.Context, create *ConversationTurn) (*ConversationTurn, error)
	ListConversationTurns(ctx context.Context, find *FindConversationTurn) ([]*ConversationTurn, error)

	// Dialog state (one row per active/recent session).
	UpsertDialogState(ctx context.Context, upsert *UpsertDialogState) (*DialogState, error)
	GetDialogState(ctx context.Context, sessionID string) (*DialogState, error)
	DeleteDialogState(ctx context.Context, sessionID string) error
	ListIdleDialogStates(ctx context.Context, idleSince int64) ([]*DialogState, error)

	// Bookings.
	CreateBooking(ctx context.Context, create *Booking) (*Booking, error)
	GetBooking(ctx context.Context, orderID string) (*Booking, error)
	UpdateBooking(ctx context.Context, update *UpdateBooking) (*Booking, error)
	ListBookings(ctx context.Context, find *FindBooking) ([]*Booking, error)

	// Complaints.
	CreateComplaint(ctx context.Context, create *Complaint) (*Complaint, error)
	UpdateComplaint(ctx context.Context, update *UpdateComplaint) (*Complaint, error)
	ListComplaints(ctx context.Context, find *FindComplaint) ([]*Complaint, error)

	// Priority queue.
	EnqueuePriorityItem(ctx context.Context, create *PriorityQueueEntry) (*PriorityQueueEntry, error)
	ListPriorityQueue(ctx context.Context, find *FindPriorityQueueEntry) ([]*PriorityQueueEntry, error)
	ResolvePriorityItem(ctx context.Context, id int64, resolvedBy string) error

	// Audit log.
	AppendAuditEvent(ctx context.Context, event *AuditEvent) error
	ListAuditEvents(ctx context.Context, find *FindAuditEvent) ([]*AuditEvent, error)

	// Classifier feedback (supplemented feature: router feedback loop).
	CreateClassifierFeedback(ctx context.Context, create *CreateClassifierFeedback) error
	ListClassifierFeedback(ctx context.Context, find *FindClassifierFeedback) ([]*ClassifierFeedback, error)
	GetClassifierStats(ctx context.Context, userID string, sinceUnix int64) (*ClassifierStats, error)
}
