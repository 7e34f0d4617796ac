package taskagent

import (
	"context"
	"fmt"
	"time"

	"github.com/convergeai/core/internal/config"
	"github.com/convergeai/core/internal/idgen"
	"github.com/convergeai/core/internal/priority"
	"github.com/convergeai/core/store"
)

// ComplaintAgent owns the complaint_file intent.
type ComplaintAgent struct {
	store *store.Store
	cfg   *config.Store
	queue *priority.Queue
}

func NewComplaintAgent(st *store.Store, cfg *config.Store, queue *priority.Queue) *ComplaintAgent {
	return &ComplaintAgent{store: st, cfg: cfg, queue: queue}
}

func (a *ComplaintAgent) Execute(ctx context.Context, intent string, entities map[string]string, userID, sessionID string) (*Result, error) {
	if intent != "complaint_file" {
		return nil, fmt.Errorf("complaint agent does not own intent %q", intent)
	}

	issueType := entities["issue_type"]
	priorityLabel := a.cfg.ComplaintPriority(issueType)
	sla := a.cfg.ComplaintSLA()

	now := time.Now()
	responseDeadline := now.Add(time.Duration(sla.ResponseHours) * time.Hour)
	resolutionDeadline := now.Add(time.Duration(sla.ResolutionHours) * time.Hour)

	complaint, err := a.store.CreateComplaint(ctx, &store.Complaint{
		ComplaintID: idgen.Complaint(),
		SessionID:   sessionID,
		UserID:      userID,
		OrderID:     entities["booking_id"],
		IssueType:   issueType,
		Description: entities["description"],
		Status:      store.ComplaintStatusOpen,
	})
	if err != nil {
		return nil, fmt.Errorf("create complaint: %w", err)
	}

	if a.queue != nil {
		urgency := priorityToConfidence(priorityLabel)
		if _, err := a.queue.Raise(ctx, priority.RaiseInputs{
			UserID:         userID,
			SessionID:      sessionID,
			IntentKind:     "complaint_file",
			MessageSnippet: complaint.Description,
			Score: priority.ScoreInputs{
				IntentConfidence: urgency,
				SentimentScore:   -urgency,
			},
		}); err != nil {
			return nil, fmt.Errorf("raise priority item: %w", err)
		}
	}

	response := fmt.Sprintf(
		"Your complaint %s has been logged with %s priority. You'll hear back by %s, with resolution expected by %s.",
		complaint.ComplaintID, priorityLabel,
		responseDeadline.Format(time.RFC3339), resolutionDeadline.Format(time.RFC3339),
	)

	return &Result{
		Response:    response,
		ActionTaken: "complaint_filed",
		Metadata: map[string]any{
			"complaint_id":        complaint.ComplaintID,
			"priority":            priorityLabel,
			"response_deadline":   responseDeadline,
			"resolution_deadline": resolutionDeadline,
		},
	}, nil
}

// priorityToConfidence maps a HIGH/MEDIUM/LOW complaint priority label to
// a 0..1 urgency term for the priority-queue score formula.
func priorityToConfidence(label string) float64 {
	switch label {
	case "HIGH":
		return 0.9
	case "MEDIUM":
		return 0.6
	default:
		return 0.3
	}
}
