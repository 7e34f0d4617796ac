package store

// AuditEvent records a dialog-state transition or classifier decision for
// traceability, grounded on the security-audit-logging shape used
// elsewhere for operational events.
type AuditEvent struct {
	ID            int64
	SessionID     string
	UserID        string
	EventType     string // "state_transition", "classification", "task_executed"
	FromState     string
	ToState       string
	Detail        string // free-form JSON blob describing the event
	OccurredTs    int64
}

// FindAuditEvent specifies conditions for listing audit events.
type FindAuditEvent struct {
	SessionID *string
	EventType *string
	Limit     int
}
