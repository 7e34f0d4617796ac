// Package store provides database access to ConvergeAI's domain objects:
// conversation turns, dialog state, bookings, complaints, the priority
// review queue, the audit log, and classifier feedback.
package store

import (
	"context"
	"time"

	"github.com/convergeai/core/internal/profile"
	"github.com/convergeai/core/store/cache"
)

// Store provides database access to all domain objects, with a thin
// read-through cache in front of hot, rarely-changing lookups.
type Store struct {
	profile *profile.Profile
	driver  Driver

	cacheConfig cache.Config

	// dialogStateCache caches active dialog states between graph nodes of
	// the same turn, avoiding a repository round-trip per node.
	dialogStateCache *cache.Cache
}

// New creates a new Store backed by driver.
func New(driver Driver, profile *profile.Profile) *Store {
	cacheConfig := cache.Config{
		DefaultTTL:      30 * time.Second,
		CleanupInterval: time.Minute,
		MaxItems:        5000,
	}

	return &Store{
		driver:           driver,
		profile:          profile,
		cacheConfig:      cacheConfig,
		dialogStateCache: cache.New(cacheConfig),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// Migrate creates the domain schema if it doesn't already exist.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	s.dialogStateCache.Close()
	return s.driver.Close()
}

// Conversation turns.

func (s *Store) CreateConversationTurn(ctx context.Context, create *ConversationTurn) (*ConversationTurn, error) {
	return s.driver.CreateConversationTurn(ctx, create)
}

func (s *Store) ListConversationTurns(ctx context.Context, find *FindConversationTurn) ([]*ConversationTurn, error) {
	return s.driver.ListConversationTurns(ctx, find)
}

// Dialog state. Reads go through a short-TTL cache; Upsert refreshes the
// cached entry and Delete drops it.

func (s *Store) UpsertDialogState(ctx context.Context, upsert *UpsertDialogState) (*DialogState, error) {
	state, err := s.driver.UpsertDialogState(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.dialogStateCache.Set(upsert.SessionID, state)
	return state, nil
}

func (s *Store) GetDialogState(ctx context.Context, sessionID string) (*DialogState, error) {
	if cached, ok := s.dialogStateCache.Get(sessionID); ok {
		return cached.(*DialogState), nil
	}
	state, err := s.driver.GetDialogState(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.dialogStateCache.Set(sessionID, state)
	return state, nil
}

func (s *Store) DeleteDialogState(ctx context.Context, sessionID string) error {
	s.dialogStateCache.Delete(sessionID)
	return s.driver.DeleteDialogState(ctx, sessionID)
}

func (s *Store) ListIdleDialogStates(ctx context.Context, idleSince int64) ([]*DialogState, error) {
	return s.driver.ListIdleDialogStates(ctx, idleSince)
}

// Bookings.

func (s *Store) CreateBooking(ctx context.Context, create *Booking) (*Booking, error) {
	return s.driver.CreateBooking(ctx, create)
}

func (s *Store) GetBooking(ctx context.Context, orderID string) (*Booking, error) {
	return s.driver.GetBooking(ctx, orderID)
}

func (s *Store) UpdateBooking(ctx context.Context, update *UpdateBooking) (*Booking, error) {
	return s.driver.UpdateBooking(ctx, update)
}

func (s *Store) ListBookings(ctx context.Context, find *FindBooking) ([]*Booking, error) {
	return s.driver.ListBookings(ctx, find)
}

// Complaints.

func (s *Store) CreateComplaint(ctx context.Context, create *Complaint) (*Complaint, error) {
	return s.driver.CreateComplaint(ctx, create)
}

func (s *Store) UpdateComplaint(ctx context.Context, update *UpdateComplaint) (*Complaint, error) {
	return s.driver.UpdateComplaint(ctx, update)
}

func (s *Store) ListComplaints(ctx context.Context, find *FindComplaint) ([]*Complaint, error) {
	return s.driver.ListComplaints(ctx, find)
}

// Priority queue.

func (s *Store) EnqueuePriorityItem(ctx context.Context, create *PriorityQueueEntry) (*PriorityQueueEntry, error) {
	return s.driver.EnqueuePriorityItem(ctx, create)
}

func (s *Store) ListPriorityQueue(ctx context.Context, find *FindPriorityQueueEntry) ([]*PriorityQueueEntry, error) {
	return s.driver.ListPriorityQueue(ctx, find)
}

func (s *Store) ResolvePriorityItem(ctx context.Context, id int64, resolvedBy string) error {
	return s.driver.ResolvePriorityItem(ctx, id, resolvedBy)
}

// Audit log.

func (s *Store) AppendAuditEvent(ctx context.Context, event *AuditEvent) error {
	return s.driver.AppendAuditEvent(ctx, event)
}

func (s *Store) ListAuditEvents(ctx context.Context, find *FindAuditEvent) ([]*AuditEvent, error) {
	return s.driver.ListAuditEvents(ctx, find)
}

// Classifier feedback.

func (s *Store) CreateClassifierFeedback(ctx context.Context, create *CreateClassifierFeedback) error {
	return s.driver.CreateClassifierFeedback(ctx, create)
}

func (s *Store) ListClassifierFeedback(ctx context.Context, find *FindClassifierFeedback) ([]*ClassifierFeedback, error) {
	return s.driver.ListClassifierFeedback(ctx, find)
}

func (s *Store) GetClassifierStats(ctx context.Context, userID string, sinceUnix int64) (*ClassifierStats, error) {
	return s.driver.GetClassifierStats(ctx, userID, sinceUnix)
}
