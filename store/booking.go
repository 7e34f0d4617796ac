package store

// BookingStatus tracks a booking through its lifecycle.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// Booking is created by the Booking task agent once all required entities
// for a booking intent are collected and confirmed.
type Booking struct {
	OrderID         string
	SessionID       string
	UserID          string
	ServiceType     string
	PreferredDate   string // ISO date, normalized from user input
	PreferredTime   string // normalized time-of-day window
	Location        string // city or pincode
	Quantity        int
	PaymentMethod   string
	Status          BookingStatus
	RefundAmount    float64 // populated on cancellation
	CancelReason    string
	CreatedTs       int64
	UpdatedTs       int64
}

// FindBooking specifies conditions for listing bookings.
type FindBooking struct {
	UserID    *string
	SessionID *string
	Status    *BookingStatus
}

// UpdateBooking specifies a partial update, keyed by OrderID.
type UpdateBooking struct {
	OrderID      string
	Status       *BookingStatus
	RefundAmount *float64
	CancelReason *string
	UpdatedTs    int64
}
