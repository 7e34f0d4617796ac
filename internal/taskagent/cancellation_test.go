package taskagent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergeai/core/store"
)

func bookingScheduledIn(hours int) (date, tm string) {
	t := time.Now().Add(time.Duration(hours) * time.Hour)
	return t.Format("2006-01-02"), t.Format("15:04")
}

func TestCancellationFullRefundBeyond24Hours(t *testing.T) {
	st, driver := newTestStore()
	date, tm := bookingScheduledIn(48)
	driver.bookings["ORD12345678"] = &store.Booking{
		OrderID: "ORD12345678", UserID: "user-1", ServiceType: "plumbing", Quantity: 1,
		Status: store.BookingStatusConfirmed, PreferredDate: date, PreferredTime: tm,
	}
	cfg := newTestConfigStore(t)
	agent := NewCancellationAgent(st, cfg, nil)

	result, err := agent.Execute(context.Background(), "booking_cancel", map[string]string{"booking_id": "ORD12345678"}, "user-1", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "booking_cancelled", result.ActionTaken)
	assert.Equal(t, 100, result.Metadata["refund_percent"])
	assert.InDelta(t, 499.0, result.Metadata["refund_amount"].(float64), 0.01)
	assert.Equal(t, store.BookingStatusCancelled, driver.bookings["ORD12345678"].Status)
}

func TestCancellationNoRefundWithinWindow(t *testing.T) {
	st, driver := newTestStore()
	date, tm := bookingScheduledIn(1)
	driver.bookings["ORD12345678"] = &store.Booking{
		OrderID: "ORD12345678", UserID: "user-1", ServiceType: "plumbing", Quantity: 1,
		Status: store.BookingStatusConfirmed, PreferredDate: date, PreferredTime: tm,
	}
	cfg := newTestConfigStore(t)
	agent := NewCancellationAgent(st, cfg, nil)

	result, err := agent.Execute(context.Background(), "booking_cancel", map[string]string{"booking_id": "ORD12345678"}, "user-1", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Metadata["refund_percent"])
}

func TestCancellationDeniedForOtherUsersBooking(t *testing.T) {
	st, driver := newTestStore()
	date, tm := bookingScheduledIn(48)
	driver.bookings["ORD12345678"] = &store.Booking{
		OrderID: "ORD12345678", UserID: "user-2", Status: store.BookingStatusConfirmed,
		PreferredDate: date, PreferredTime: tm,
	}
	cfg := newTestConfigStore(t)
	agent := NewCancellationAgent(st, cfg, nil)

	result, err := agent.Execute(context.Background(), "booking_cancel", map[string]string{"booking_id": "ORD12345678"}, "user-1", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "cancellation_denied", result.ActionTaken)
}

func TestCancellationNoopWhenAlreadyCancelled(t *testing.T) {
	st, driver := newTestStore()
	date, tm := bookingScheduledIn(48)
	driver.bookings["ORD12345678"] = &store.Booking{
		OrderID: "ORD12345678", UserID: "user-1", Status: store.BookingStatusCancelled,
		PreferredDate: date, PreferredTime: tm,
	}
	cfg := newTestConfigStore(t)
	agent := NewCancellationAgent(st, cfg, nil)

	result, err := agent.Execute(context.Background(), "booking_cancel", map[string]string{"booking_id": "ORD12345678"}, "user-1", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "cancellation_noop", result.ActionTaken)
}
