package graph

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergeai/core/internal/catalog"
	"github.com/convergeai/core/internal/classifier"
	"github.com/convergeai/core/internal/configloader"
	"github.com/convergeai/core/internal/dialog"
	"github.com/convergeai/core/internal/entity"
	"github.com/convergeai/core/internal/llm"
	"github.com/convergeai/core/internal/profile"
	"github.com/convergeai/core/store"
)

// memDriver is a minimal in-memory store.Driver covering only the
// dialog-state methods the graph's DialogStateManager exercises; every
// other method is a stub since these tests never touch it.
type memDriver struct {
	mu     sync.Mutex
	states map[string]*store.DialogState
}

func newTestMemDriver() *memDriver {
	return &memDriver{states: make(map[string]*store.DialogState)}
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
	d.mu.Lock()
	defer d.mu.Unlock()
	existing := d.states[upsert.SessionID]
	createdTs := time.Now().Unix()
	if existing != nil {
		createdTs = existing.CreatedTs
	}
	state := &store.DialogState{
		SessionID:        upsert.SessionID,
		State:            upsert.State,
		TargetIntent:     upsert.TargetIntent,
		RequiredEntities: upsert.RequiredEntities,
		Collected:        upsert.Collected,
		ExpectedEntity:   upsert.ExpectedEntity,
		RetryCounts:      upsert.RetryCounts,
		Context:          upsert.Context,
		CreatedTs:        createdTs,
		UpdatedTs:        upsert.UpdatedTs,
		ExpiresTs:        upsert.ExpiresTs,
	}
	d.states[upsert.SessionID] = state
	return state, nil
}

func (d *memDriver) GetDialogState(ctx context.Context, sessionID string) (*store.DialogState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.states[sessionID], nil
}

func (d *memDriver) DeleteDialogState(ctx context.Context, sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.states, sessionID)
	return nil
}

func (d *memDriver) ListIdleDialogStates(ctx context.Context, idleSince int64) ([]*store.DialogState, error) {
	return nil, nil
}

func (d *memDriver) CreateBooking(ctx context.Context, create *store.Booking) (*store.Booking, error) {
	return create, nil
}
func (d *memDriver) GetBooking(ctx context.Context, orderID string) (*store.Booking, error) {
	return nil, nil
}
func (d *memDriver) UpdateBooking(ctx context.Context, update *store.UpdateBooking) (*store.Booking, error) {
	return nil, nil
}
func (d *memDriver) ListBookings(ctx context.Context, find *store.FindBooking) ([]*store.Booking, error) {
	return nil, nil
}
func (d *memDriver) CreateComplaint(ctx context.Context, create *store.Complaint) (*store.Complaint, error) {
	return create, nil
}
func (d *memDriver) UpdateComplaint(ctx context.Context, update *store.UpdateComplaint) (*store.Complaint, error) {
	return nil, nil
}
func (d *memDriver) ListComplaints(ctx context.Context, find *store.FindComplaint) ([]*store.Complaint, error) {
	return nil, nil
}
func (d *memDriver) EnqueuePriorityItem(ctx context.Context, create *store.PriorityQueueEntry) (*store.PriorityQueueEntry, error) {
	return create, nil
}
func (d *memDriver) ListPriorityQueue(ctx context.Context, find *store.FindPriorityQueueEntry) ([]*store.PriorityQueueEntry, error) {
	return nil, nil
}
func (d *memDriver) ResolvePriorityItem(ctx context.Context, id int64, resolvedBy string) error {
	return nil
}
func (d *memDriver) AppendAuditEvent(ctx context.Context, event *store.AuditEvent) error { return nil }
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

func newTestRegistry(t *testing.T) *catalog.Registry {
	t.Helper()
	loader := configloader.NewLoader("../../config")
	reg := catalog.NewRegistry(loader)
	require.NoError(t, reg.Reload())
	return reg
}

type fakeClassifier struct {
	result *classifier.Result
	err    error
}

func (f *fakeClassifier) Classify(ctx context.Context, message string, history []llm.Message, active *classifier.ActiveState) (*classifier.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeExtractor struct {
	extraction *entity.Extraction
	err        error
}

func (f *fakeExtractor) Extract(ctx context.Context, message, targetType string, collected map[string]string) (*entity.Extraction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.extraction, nil
}

type fakeValidator struct {
	result *entity.ValidationResult
	err    error
}

func (f *fakeValidator) Validate(ctx context.Context, entityType, normalizedValue, userID string) (*entity.ValidationResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeQuestions struct{}

func (fakeQuestions) SlotQuestion(ctx context.Context, intentKind, entityType string, retryCount int) (string, error) {
	return "slot question for " + entityType, nil
}
func (fakeQuestions) ValidationPrompt(ctx context.Context, errorMessage string, suggestions []string) (string, error) {
	return "validation error: " + errorMessage, nil
}
func (fakeQuestions) ConfirmationPrompt(ctx context.Context, intentKind string, collected map[string]string) (string, error) {
	return "please confirm", nil
}
func (fakeQuestions) EscalationPrompt(ctx context.Context, entityType string) (string, error) {
	return "escalation for " + entityType, nil
}

func newTestDialogManager(t *testing.T, reg *catalog.Registry) *dialog.Manager {
	t.Helper()
	st := store.New(newTestMemDriver(), &profile.Profile{})
	return dialog.New(st, reg, 0)
}

func TestRunAsksForFirstMissingEntityOnFreshIntent(t *testing.T) {
	reg := newTestRegistry(t)
	dm := newTestDialogManager(t, reg)

	rt := New(Config{
		Catalog: reg,
		Classifier: &fakeClassifier{result: &classifier.Result{
			Primary: "booking_create",
			Intents: []classifier.IntentGuess{{Intent: "booking_create", Confidence: 0.95, Entities: map[string]string{}}},
		}},
		Extractor: &fakeExtractor{},
		Validator: &fakeValidator{},
		DialogMgr: dm,
		Questions: fakeQuestions{},
	})

	state := &State{Message: "I want to book a plumbing service", SessionID: "sess-1", UserID: "user-1"}
	out, err := rt.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Nil(t, out.Err)
	assert.NotEmpty(t, out.FinalResponse)
	assert.False(t, out.ReadyForAgent)
	assert.NotEmpty(t, out.NeededEntities)
}

func TestRunGeneratesConfirmationWhenAllEntitiesCollected(t *testing.T) {
	reg := newTestRegistry(t)
	dm := newTestDialogManager(t, reg)
	ctx := context.Background()

	_, err := dm.Create(ctx, "sess-2", "booking_cancel", []string{"booking_id"})
	require.NoError(t, err)

	rt := New(Config{
		Catalog: reg,
		Classifier: &fakeClassifier{result: &classifier.Result{
			Primary: "booking_cancel",
			Intents: []classifier.IntentGuess{{Intent: "booking_cancel", Confidence: 0.95, Entities: map[string]string{"booking_id": "ORD12AB34CD"}}},
		}},
		Extractor: &fakeExtractor{},
		Validator: &fakeValidator{},
		DialogMgr: dm,
		Questions: fakeQuestions{},
	})

	state := &State{Message: "ORD12AB34CD", SessionID: "sess-2", UserID: "user-1"}
	out, err := rt.Run(ctx, state)
	require.NoError(t, err)
	assert.Empty(t, out.NeededEntities)
	assert.Equal(t, "please confirm", out.FinalResponse)

	active, err := dm.GetActive(ctx, "sess-2")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, store.DialogStateAwaitingConfirmation, active.State)
}

func TestRunHandsOffToTaskAgentOnAffirmativeConfirmation(t *testing.T) {
	reg := newTestRegistry(t)
	dm := newTestDialogManager(t, reg)
	ctx := context.Background()

	_, err := dm.Create(ctx, "sess-3", "booking_cancel", nil)
	require.NoError(t, err)
	_, err = dm.AddEntity(ctx, "sess-3", "booking_id", "ORD12AB34CD")
	require.NoError(t, err)
	_, err = dm.Transition(ctx, "sess-3", store.DialogStateAwaitingConfirmation)
	require.NoError(t, err)

	rt := New(Config{
		Catalog: reg,
		Classifier: &fakeClassifier{result: &classifier.Result{
			Primary: "booking_cancel",
			Intents: []classifier.IntentGuess{{Intent: "booking_cancel", Confidence: 0.95, Entities: map[string]string{}}},
		}},
		Extractor: &fakeExtractor{},
		Validator: &fakeValidator{},
		DialogMgr: dm,
		Questions: fakeQuestions{},
	})

	state := &State{Message: "yes go ahead", SessionID: "sess-3", UserID: "user-1"}
	out, err := rt.Run(ctx, state)
	require.NoError(t, err)
	assert.True(t, out.ReadyForAgent)
}

func TestRunFallsBackOnClassifierError(t *testing.T) {
	reg := newTestRegistry(t)
	dm := newTestDialogManager(t, reg)

	rt := New(Config{
		Catalog:    reg,
		Classifier: &fakeClassifier{err: assertErr{}},
		Extractor:  &fakeExtractor{},
		Validator:  &fakeValidator{},
		DialogMgr:  dm,
		Questions:  fakeQuestions{},
	})

	state := &State{Message: "hello", SessionID: "sess-4", UserID: "user-1"}
	out, err := rt.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Error(t, out.Err)
	assert.NotEmpty(t, out.FinalResponse)
}

func TestRunEscalatesAfterThirdInvalidAttempt(t *testing.T) {
	reg := newTestRegistry(t)
	dm := newTestDialogManager(t, reg)
	ctx := context.Background()

	_, err := dm.Create(ctx, "sess-5", "booking_create", []string{"preferred_date"})
	require.NoError(t, err)
	_, err = dm.SetExpected(ctx, "sess-5", "preferred_date")
	require.NoError(t, err)
	_, err = dm.IncrementRetry(ctx, "sess-5", "preferred_date")
	require.NoError(t, err)
	_, err = dm.IncrementRetry(ctx, "sess-5", "preferred_date")
	require.NoError(t, err)

	rt := New(Config{
		Catalog: reg,
		Classifier: &fakeClassifier{result: &classifier.Result{
			Primary: "booking_create",
			Intents: []classifier.IntentGuess{{Intent: "booking_create", Confidence: 0.3, Entities: map[string]string{}}},
		}},
		Extractor: &fakeExtractor{extraction: &entity.Extraction{RawValue: "next week", NormalizedValue: "next week"}},
		Validator: &fakeValidator{result: &entity.ValidationResult{IsValid: false, ErrorMessage: "that date doesn't work"}},
		DialogMgr: dm,
		Questions: fakeQuestions{},
	})

	state := &State{Message: "next week sometime", SessionID: "sess-5", UserID: "user-1"}
	out, err := rt.Run(ctx, state)
	require.NoError(t, err)
	assert.Contains(t, out.FinalResponse, "escalation")

	active, err := dm.GetActive(ctx, "sess-5")
	require.NoError(t, err)
	assert.Nil(t, active, "session should be cancelled (terminal) after escalation")
}

type assertErr struct{}

func (assertErr) Error() string { return "classifier unavailable" }
