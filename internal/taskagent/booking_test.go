package taskagent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergeai/core/store"
)

func TestBookingCreateConfirmsAndComputesTotal(t *testing.T) {
	st, _ := newTestStore()
	agent := NewBookingAgent(st, nil)

	result, err := agent.Execute(context.Background(), "booking_create", map[string]string{
		"service_type":   "plumbing",
		"preferred_date": "2026-08-05",
		"preferred_time": "15:00",
		"location":       "560001",
	}, "user-1", "sess-1")
	require.NoError(t, err)

	assert.Equal(t, "booking_created", result.ActionTaken)
	assert.Contains(t, result.Response, "Order ID")
	assert.Contains(t, result.Response, "2026-08-05")
	assert.Contains(t, result.Response, "15:00")
	assert.InDelta(t, 588.82, result.Metadata["total"].(float64), 0.01) // 499 * 1.18
}

func TestBookingCreateAppliesBulkDiscount(t *testing.T) {
	st, _ := newTestStore()
	agent := NewBookingAgent(st, nil)

	result, err := agent.Execute(context.Background(), "booking_create", map[string]string{
		"service_type":   "cleaning",
		"preferred_date": "2026-08-05",
		"preferred_time": "10:00",
		"location":       "Bengaluru",
		"quantity":       "3",
	}, "user-1", "sess-1")
	require.NoError(t, err)

	assert.Greater(t, result.Metadata["discount"].(float64), 0.0)
}

func TestBookingCreateFallsBackToDefaultPriceForUnknownService(t *testing.T) {
	subtotal, _, _, _ := priceBooking("unknown-service", 1)
	assert.Equal(t, defaultServicePrice, subtotal)
}

func TestBookingStatusReportsExistingBooking(t *testing.T) {
	st, driver := newTestStore()
	driver.bookings["ORD12345678"] = &store.Booking{
		OrderID:       "ORD12345678",
		UserID:        "user-1",
		Status:        store.BookingStatusConfirmed,
		PreferredDate: "2026-08-05",
		PreferredTime: "15:00",
	}
	agent := NewBookingAgent(st, nil)

	result, err := agent.Execute(context.Background(), "booking_status", map[string]string{"booking_id": "ORD12345678"}, "user-1", "sess-1")
	require.NoError(t, err)
	assert.Contains(t, result.Response, "confirmed")
}

func TestBookingStatusReportsNotFound(t *testing.T) {
	st, _ := newTestStore()
	agent := NewBookingAgent(st, nil)

	result, err := agent.Execute(context.Background(), "booking_status", map[string]string{"booking_id": "ORD00000000"}, "user-1", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "booking_status_not_found", result.ActionTaken)
}

func TestBookingAgentRejectsUnownedIntent(t *testing.T) {
	st, _ := newTestStore()
	agent := NewBookingAgent(st, nil)

	_, err := agent.Execute(context.Background(), "complaint_file", nil, "user-1", "sess-1")
	assert.Error(t, err)
}
