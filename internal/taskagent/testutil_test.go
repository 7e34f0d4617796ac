package taskagent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/convergeai/core/internal/config"
	"github.com/convergeai/core/internal/configloader"
	"github.com/convergeai/core/internal/priority"
	"github.com/convergeai/core/internal/profile"
	"github.com/convergeai/core/store"
)

// memDriver is a minimal in-memory store.Driver backing bookings,
// complaints, and the priority queue/audit log; every other method is a
// stub since these tests never touch it.
type memDriver struct {
	mu         sync.Mutex
	bookings   map[string]*store.Booking
	complaints map[string]*store.Complaint
	nextQID    int64
	queue      map[int64]*store.PriorityQueueEntry
	events     []*store.AuditEvent
}

func newTestMemDriver() *memDriver {
	return &memDriver{
		bookings:   make(map[string]*store.Booking),
		complaints: make(map[string]*store.Complaint),
		queue:      make(map[int64]*store.PriorityQueueEntry),
	}
}

func (d *memDriver) Close() error { return nil }

func (d *memDriver) Migrate(ctx context.Context) error { return nil }

func (d *memDriver) CreateConversationTurn(ctx context.Context, create *store.ConversationTurn) (*store.ConversationTurn, error) {
	return create, nil
}
func (d *memDriver) ListConversationTurns(ctx context.Context, find *store.FindConversationTurn) ([]*store.ConversationTurn, error) {
	return nil, nil
}
func (d *memDriver) UpsertDialogState(ctx context.Context, upsert *store.UpsertDialogState) (*store.DialogState, error) {
	return nil, nil
}
func (d *memDriver) GetDialogState(ctx context.Context, sessionID string) (*store.DialogState, error) {
	return nil, nil
}
func (d *memDriver) DeleteDialogState(ctx context.Context, sessionID string) error { return nil }
func (d *memDriver) ListIdleDialogStates(ctx context.Context, idleSince int64) ([]*store.DialogState, error) {
	return nil, nil
}

func (d *memDriver) CreateBooking(ctx context.Context, create *store.Booking) (*store.Booking, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := *create
	b.CreatedTs = time.Now().Unix()
	b.UpdatedTs = b.CreatedTs
	d.bookings[b.OrderID] = &b
	out := b
	return &out, nil
}

func (d *memDriver) GetBooking(ctx context.Context, orderID string) (*store.Booking, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.bookings[orderID]
	if !ok {
		return nil, nil
	}
	out := *b
	return &out, nil
}

func (d *memDriver) UpdateBooking(ctx context.Context, update *store.UpdateBooking) (*store.Booking, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.bookings[update.OrderID]
	if !ok {
		return nil, nil
	}
	if update.Status != nil {
		b.Status = *update.Status
	}
	if update.RefundAmount != nil {
		b.RefundAmount = *update.RefundAmount
	}
	if update.CancelReason != nil {
		b.CancelReason = *update.CancelReason
	}
	b.UpdatedTs = time.Now().Unix()
	out := *b
	return &out, nil
}

func (d *memDriver) ListBookings(ctx context.Context, find *store.FindBooking) ([]*store.Booking, error) {
	return nil, nil
}

func (d *memDriver) CreateComplaint(ctx context.Context, create *store.Complaint) (*store.Complaint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := *create
	c.CreatedTs = time.Now().Unix()
	c.UpdatedTs = c.CreatedTs
	d.complaints[c.ComplaintID] = &c
	out := c
	return &out, nil
}
func (d *memDriver) UpdateComplaint(ctx context.Context, update *store.UpdateComplaint) (*store.Complaint, error) {
	return nil, nil
}
func (d *memDriver) ListComplaints(ctx context.Context, find *store.FindComplaint) ([]*store.Complaint, error) {
	return nil, nil
}

func (d *memDriver) EnqueuePriorityItem(ctx context.Context, create *store.PriorityQueueEntry) (*store.PriorityQueueEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextQID++
	e := *create
	e.ID = d.nextQID
	e.CreatedTs = time.Now().Unix()
	e.UpdatedTs = e.CreatedTs
	d.queue[e.ID] = &e
	out := e
	return &out, nil
}
func (d *memDriver) ListPriorityQueue(ctx context.Context, find *store.FindPriorityQueueEntry) ([]*store.PriorityQueueEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*store.PriorityQueueEntry, 0, len(d.queue))
	for _, e := range d.queue {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}
func (d *memDriver) ResolvePriorityItem(ctx context.Context, id int64, resolvedBy string) error {
	return nil
}

func (d *memDriver) AppendAuditEvent(ctx context.Context, event *store.AuditEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}
func (d *memDriver) ListAuditEvents(ctx context.Context, find *store.FindAuditEvent) ([]*store.AuditEvent, error) {
	return nil, nil
}

func (d *memDriver) CreateClassifierFeedback(ctx context.Context, create *store.CreateClassifierFeedback) error {
	return nil
}
func (d *memDriver) ListClassifierFeedback(ctx context.Context, find *store.FindClassifierFeedback) ([]*store.ClassifierFeedback, error) {
	return nil, nil
}
func (d *memDriver) GetClassifierStats(ctx context.Context, userID string, sinceUnix int64) (*store.ClassifierStats, error) {
	return nil, nil
}

func newTestStore() (*store.Store, *memDriver) {
	driver := newTestMemDriver()
	return store.New(driver, &profile.Profile{}), driver
}

func newTestConfigStore(t *testing.T) *config.Store {
	t.Helper()
	loader := configloader.NewLoader("../../config")
	cfg, err := config.NewStore(loader, "runtime.yaml", time.Millisecond)
	require.NoError(t, err)
	return cfg
}

func newTestQueue(t *testing.T, st *store.Store) *priority.Queue {
	return priority.New(st, newTestConfigStore(t))
}
