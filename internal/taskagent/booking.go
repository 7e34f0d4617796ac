package taskagent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/convergeai/core/internal/idgen"
	"github.com/convergeai/core/internal/priority"
	"github.com/convergeai/core/store"
)

const (
	taxRate             = 0.18 // GST
	bulkDiscountQty     = 3
	bulkDiscountRate    = 0.10
	defaultServicePrice = 499.0
)

// servicePrices is the flat per-visit base price used to compute a
// booking's subtotal. A real deployment would source this from a catalog
// service; ConvergeAI's scope stops at the task-agent boundary, so a small
// static table stands in for it.
var servicePrices = map[string]float64{
	"plumbing":   499,
	"electrical": 399,
	"ac repair":  899,
	"cleaning":   599,
	"painting":   1499,
	"carpentry":  699,
}

// BookingAgent owns the booking_create and booking_status intents.
type BookingAgent struct {
	store *store.Store
	queue *priority.Queue
}

func NewBookingAgent(st *store.Store, queue *priority.Queue) *BookingAgent {
	return &BookingAgent{store: st, queue: queue}
}

func (a *BookingAgent) Execute(ctx context.Context, intent string, entities map[string]string, userID, sessionID string) (*Result, error) {
	switch intent {
	case "booking_create":
		return a.create(ctx, entities, userID, sessionID)
	case "booking_status":
		return a.status(ctx, entities)
	default:
		return nil, fmt.Errorf("booking agent does not own intent %q", intent)
	}
}

func (a *BookingAgent) create(ctx context.Context, entities map[string]string, userID, sessionID string) (*Result, error) {
	quantity := 1
	if q, ok := entities["quantity"]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(q)); err == nil && n > 0 {
			quantity = n
		}
	}

	subtotal, discount, tax, total := priceBooking(entities["service_type"], quantity)

	booking, err := a.store.CreateBooking(ctx, &store.Booking{
		OrderID:       idgen.Order(),
		SessionID:     sessionID,
		UserID:        userID,
		ServiceType:   entities["service_type"],
		PreferredDate: entities["preferred_date"],
		PreferredTime: entities["preferred_time"],
		Location:      entities["location"],
		Quantity:      quantity,
		PaymentMethod: entities["payment_method"],
		Status:        store.BookingStatusConfirmed,
	})
	if err != nil {
		if a.queue != nil {
			_, _ = a.queue.Raise(ctx, priority.RaiseInputs{
				UserID:         userID,
				SessionID:      sessionID,
				IntentKind:     "booking_create",
				MessageSnippet: fmt.Sprintf("booking creation failed: %v", err),
				Score:          priority.ScoreInputs{IntentConfidence: 0, SentimentScore: -0.5},
			})
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	response := fmt.Sprintf(
		"Your booking is confirmed. Order ID %s, scheduled for %s at %s. Total: %.2f (subtotal %.2f, discount %.2f, tax %.2f).",
		booking.OrderID, booking.PreferredDate, booking.PreferredTime, total, subtotal, discount, tax,
	)

	return &Result{
		Response:    response,
		ActionTaken: "booking_created",
		Metadata: map[string]any{
			"order_id": booking.OrderID,
			"subtotal": subtotal,
			"discount": discount,
			"tax":      tax,
			"total":    total,
		},
	}, nil
}

func (a *BookingAgent) status(ctx context.Context, entities map[string]string) (*Result, error) {
	orderID := entities["booking_id"]
	booking, err := a.store.GetBooking(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", orderID, err)
	}
	if booking == nil {
		return &Result{
			Response:    fmt.Sprintf("I couldn't find a booking with ID %s.", orderID),
			ActionTaken: "booking_status_not_found",
		}, nil
	}

	return &Result{
		Response: fmt.Sprintf("Booking %s is currently %s, scheduled for %s at %s.",
			booking.OrderID, booking.Status, booking.PreferredDate, booking.PreferredTime),
		ActionTaken: "booking_status_reported",
		Metadata:    map[string]any{"order_id": booking.OrderID, "status": string(booking.Status)},
	}, nil
}

// priceBooking computes subtotal, discount, and tax for a service type and
// quantity, in that order, with total as subtotal-discount+tax.
func priceBooking(serviceType string, quantity int) (subtotal, discount, tax, total float64) {
	price, ok := servicePrices[strings.ToLower(serviceType)]
	if !ok {
		price = defaultServicePrice
	}
	subtotal = price * float64(quantity)
	if quantity >= bulkDiscountQty {
		discount = subtotal * bulkDiscountRate
	}
	taxable := subtotal - discount
	tax = taxable * taxRate
	total = taxable + tax
	return subtotal, discount, tax, total
}
