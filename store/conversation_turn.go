package store

// TurnRole distinguishes a user message from an assistant response.
type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// ConversationTurn is an immutable record of one message exchange. Assistant
// turns additionally carry classification and quality-score provenance.
type ConversationTurn struct {
	ID             int64
	SessionID      string
	Role           TurnRole
	Text           string
	Intent         string  // set on assistant turns
	Confidence     float64 // classifier confidence for this turn
	AgentsInvoked  []string
	SQLTablesUsed  []string
	CitedDocuments []string
	GroundingScore float64
	Faithfulness   float64
	Relevancy      float64
	ResponseTimeMs int64
	FlaggedReview  bool
	CreatedTs      int64
}

// FindConversationTurn specifies conditions for listing turns.
type FindConversationTurn struct {
	SessionID     *string
	FlaggedReview *bool
	Limit         int // 0 means no limit
}
