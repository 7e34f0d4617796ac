package taskagent

import (
	"context"
	"fmt"
	"time"

	"github.com/convergeai/core/internal/config"
	"github.com/convergeai/core/internal/priority"
	"github.com/convergeai/core/store"
)

const bookingDateTimeLayout = "2006-01-02 15:04"

// CancellationAgent owns the booking_cancel intent.
type CancellationAgent struct {
	store *store.Store
	cfg   *config.Store
	queue *priority.Queue
}

func NewCancellationAgent(st *store.Store, cfg *config.Store, queue *priority.Queue) *CancellationAgent {
	return &CancellationAgent{store: st, cfg: cfg, queue: queue}
}

func (a *CancellationAgent) Execute(ctx context.Context, intent string, entities map[string]string, userID, sessionID string) (*Result, error) {
	if intent != "booking_cancel" {
		return nil, fmt.Errorf("cancellation agent does not own intent %q", intent)
	}

	orderID := entities["booking_id"]
	booking, err := a.store.GetBooking(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", orderID, err)
	}
	if booking == nil || booking.UserID != userID {
		if a.queue != nil {
			_, _ = a.queue.Raise(ctx, priority.RaiseInputs{
				UserID:         userID,
				SessionID:      sessionID,
				IntentKind:     "booking_cancel",
				MessageSnippet: fmt.Sprintf("cancellation requested for booking %s not owned by requester", orderID),
				Score:          priority.ScoreInputs{IntentConfidence: 0.3, SentimentScore: -0.4},
			})
		}
		return &Result{
			Response:    fmt.Sprintf("I couldn't find a booking with ID %s under your account.", orderID),
			ActionTaken: "cancellation_denied",
		}, nil
	}
	if booking.Status == store.BookingStatusCancelled {
		return &Result{
			Response:    fmt.Sprintf("Booking %s is already cancelled.", orderID),
			ActionTaken: "cancellation_noop",
		}, nil
	}

	refundPercent := a.refundPercentFor(booking)
	subtotal, _, _, _ := priceBooking(booking.ServiceType, booking.Quantity)
	refundAmount := subtotal * float64(refundPercent) / 100

	cancelled := store.BookingStatusCancelled
	reason := "customer requested cancellation"
	if _, err := a.store.UpdateBooking(ctx, &store.UpdateBooking{
		OrderID:      booking.OrderID,
		Status:       &cancelled,
		RefundAmount: &refundAmount,
		CancelReason: &reason,
	}); err != nil {
		return nil, fmt.Errorf("update booking %s: %w", orderID, err)
	}

	return &Result{
		Response: fmt.Sprintf(
			"Booking %s has been cancelled. Refund of %.2f (%d%%) will be processed within 3-5 business days.",
			booking.OrderID, refundAmount, refundPercent,
		),
		ActionTaken: "booking_cancelled",
		Metadata: map[string]any{
			"order_id":       booking.OrderID,
			"refund_amount":  refundAmount,
			"refund_percent": refundPercent,
		},
	}, nil
}

// refundPercentFor resolves the configured refund-window rule for how far
// ahead of the scheduled appointment the cancellation lands. A booking
// whose scheduled time can't be parsed is treated as already past, so it
// refunds nothing rather than risk an unearned refund.
func (a *CancellationAgent) refundPercentFor(booking *store.Booking) int {
	scheduled, err := time.Parse(bookingDateTimeLayout, booking.PreferredDate+" "+booking.PreferredTime)
	if err != nil {
		return a.cfg.RefundPercent(0)
	}
	hoursBefore := int(time.Until(scheduled).Hours())
	return a.cfg.RefundPercent(hoursBefore)
}
