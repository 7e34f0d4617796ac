package store

// DialogStateKind is the slot-filling state machine's state-kind.
type DialogStateKind string

const (
	DialogStateIdle                 DialogStateKind = "idle"
	DialogStateCollectingInfo       DialogStateKind = "collecting_info"
	DialogStateAwaitingConfirmation DialogStateKind = "awaiting_confirmation"
	DialogStateCompleted            DialogStateKind = "completed"
	DialogStateCancelled            DialogStateKind = "cancelled"
)

// DialogState is the at-most-one active slot-filling state for a session.
type DialogState struct {
	SessionID       string
	State           DialogStateKind
	TargetIntent    string
	RequiredEntities []string          // ordered
	Collected       map[string]string // entity key -> normalized value
	ExpectedEntity  string            // entity key most recently asked for
	RetryCounts     map[string]int
	Context         map[string]string // free-form bag (last question text, etc.)
	CreatedTs       int64
	UpdatedTs       int64
	ExpiresTs       int64
}

// UpsertDialogState creates or replaces the state row for a session.
type UpsertDialogState struct {
	SessionID       string
	State           DialogStateKind
	TargetIntent    string
	RequiredEntities []string
	Collected       map[string]string
	ExpectedEntity  string
	RetryCounts     map[string]int
	Context         map[string]string
	UpdatedTs       int64
	ExpiresTs       int64
}
