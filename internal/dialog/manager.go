// Package dialog implements the Dialog State Manager: the sole owner of
// per-session slot-filling state and the only component allowed to persist
// it. It enforces legal state transitions and follow-up-message detection,
// and offers a per-session lock (WithSessionLock) that its individual
// operations do not take themselves.
package dialog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/convergeai/core/internal/catalog"
	"github.com/convergeai/core/store"
)

// legalTransitions enumerates the only allowed state-kind transitions.
// Terminal kinds (completed, cancelled) are absent as keys: they accept no
// further transitions.
var legalTransitions = map[store.DialogStateKind][]store.DialogStateKind{
	store.DialogStateIdle:                 {store.DialogStateCollectingInfo},
	store.DialogStateCollectingInfo:       {store.DialogStateAwaitingConfirmation, store.DialogStateCollectingInfo, store.DialogStateCancelled},
	store.DialogStateAwaitingConfirmation: {store.DialogStateCompleted, store.DialogStateCollectingInfo, store.DialogStateCancelled},
}

// FollowUp is the result of IsFollowUp.
type FollowUp struct {
	IsFollowUp     bool
	ExpectedEntity string
	Confidence     float32
	Reason         string
}

// Manager owns Dialog State lifecycle for every session. It keeps one mutex
// per session, which only WithSessionLock acquires; GetActive, Create,
// AddEntity and the other operations do not, and neither the slot-filling
// graph nor the coordinator calls WithSessionLock, so two turns on the same
// session can interleave their writes.
type Manager struct {
	store   *store.Store
	catalog *catalog.Registry
	expiry  time.Duration

	mu       sync.Mutex // guards sessionLocks
	sessionLocks map[string]*sync.Mutex
}

// New constructs a Manager. expiry sets each new state's ExpiresTs to its
// creation time plus expiry (30 minutes when expiry is not positive).
func New(st *store.Store, reg *catalog.Registry, expiry time.Duration) *Manager {
	if expiry <= 0 {
		expiry = 30 * time.Minute
	}
	return &Manager{
		store:        st,
		catalog:      reg,
		expiry:       expiry,
		sessionLocks: make(map[string]*sync.Mutex),
	}
}

// WithSessionLock runs fn while holding the per-session lock for sessionID,
// so functions passed to it for the same session run one at a time.
func (m *Manager) WithSessionLock(sessionID string, fn func() error) error {
	lock := m.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

func (m *Manager) lockFor(sessionID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.sessionLocks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		m.sessionLocks[sessionID] = lock
	}
	return lock
}

// GetActive returns the active dialog state for sessionID, or nil if none.
func (m *Manager) GetActive(ctx context.Context, sessionID string) (*store.DialogState, error) {
	state, err := m.store.GetDialogState(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get active dialog state: %w", err)
	}
	if state == nil || isTerminal(state.State) {
		return nil, nil
	}
	return state, nil
}

// Create starts a new dialog state for sessionID targeting intent, with
// requiredEntities still outstanding.
func (m *Manager) Create(ctx context.Context, sessionID, intent string, requiredEntities []string) (*store.DialogState, error) {
	now := time.Now().Unix()
	state := &store.UpsertDialogState{
		SessionID:        sessionID,
		State:            store.DialogStateCollectingInfo,
		TargetIntent:     intent,
		RequiredEntities: requiredEntities,
		Collected:        map[string]string{},
		Context:          map[string]string{},
		UpdatedTs:        now,
		ExpiresTs:        now + int64(m.expiry.Seconds()),
	}
	return m.store.UpsertDialogState(ctx, state)
}

// AddEntity records a validated entity value, moving it from required to
// collected, and bumps the update timestamp.
func (m *Manager) AddEntity(ctx context.Context, sessionID, key, value string) (*store.DialogState, error) {
	current, err := m.requireActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	collected := cloneMap(current.Collected)
	collected[key] = value

	required := make([]string, 0, len(current.RequiredEntities))
	for _, k := range current.RequiredEntities {
		if k != key {
			required = append(required, k)
		}
	}

	return m.store.UpsertDialogState(ctx, &store.UpsertDialogState{
		SessionID:        sessionID,
		State:            current.State,
		TargetIntent:     current.TargetIntent,
		RequiredEntities: required,
		Collected:        collected,
		ExpectedEntity:   current.ExpectedEntity,
		RetryCounts:      current.RetryCounts,
		Context:          current.Context,
		UpdatedTs:        time.Now().Unix(),
		ExpiresTs:        current.ExpiresTs,
	})
}

// SetExpected records which entity the next user turn is expected to supply.
func (m *Manager) SetExpected(ctx context.Context, sessionID, key string) (*store.DialogState, error) {
	current, err := m.requireActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	current.ExpectedEntity = key
	return m.persist(ctx, current)
}

// IncrementRetry bumps the retry counter for key and returns the new count.
func (m *Manager) IncrementRetry(ctx context.Context, sessionID, key string) (int, error) {
	current, err := m.requireActive(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	counts := cloneIntMap(current.RetryCounts)
	counts[key]++
	current.RetryCounts = counts
	if _, err := m.persist(ctx, current); err != nil {
		return 0, err
	}
	return counts[key], nil
}

// Transition moves sessionID's state to newKind, enforcing the legal
// transition table. Terminal kinds reject every further transition.
func (m *Manager) Transition(ctx context.Context, sessionID string, newKind store.DialogStateKind) (*store.DialogState, error) {
	current, err := m.requireActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	allowed := legalTransitions[current.State]
	ok := false
	for _, k := range allowed {
		if k == newKind {
			ok = true
			break
		}
	}
	if !ok {
		return nil, fmt.Errorf("illegal dialog state transition %s -> %s for session %s", current.State, newKind, sessionID)
	}

	current.State = newKind
	return m.persist(ctx, current)
}

// Clear ends the active state for sessionID, used on intent switch or
// explicit cancellation.
func (m *Manager) Clear(ctx context.Context, sessionID string) error {
	return m.store.DeleteDialogState(ctx, sessionID)
}

// IsFollowUp implements the follow-up detection rule from spec §4.1: a
// message is a follow-up iff an active collecting_info state exists, it has
// a non-null expected entity, and the message doesn't match a different
// intent's high-confidence pattern.
func (m *Manager) IsFollowUp(ctx context.Context, sessionID, message string) (*FollowUp, error) {
	state, err := m.GetActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state == nil || state.State != store.DialogStateCollectingInfo || state.ExpectedEntity == "" {
		return &FollowUp{IsFollowUp: false, Reason: "no active collecting_info state with an expected entity"}, nil
	}

	for _, in := range m.catalog.Intents() {
		if in.Kind == state.TargetIntent {
			continue
		}
		if matchesHighConfidence(in, message) {
			return &FollowUp{IsFollowUp: false, Reason: fmt.Sprintf("message matches a different intent: %s", in.Kind)}, nil
		}
	}

	confidence := m.expectedEntityMatchConfidence(state.ExpectedEntity, message)
	return &FollowUp{
		IsFollowUp:     true,
		ExpectedEntity: state.ExpectedEntity,
		Confidence:     confidence,
		Reason:         "active slot-filling state expects this entity and no competing intent matched",
	}, nil
}

// expectedEntityMatchConfidence heuristically scores how well message
// matches the expected entity's pattern set. Low-confidence follow-ups
// still defer to the Intent Classifier for a second opinion per spec §4.1.
func (m *Manager) expectedEntityMatchConfidence(expectedEntity, message string) float32 {
	et, ok := m.catalog.EntityType(expectedEntity)
	if !ok {
		return 0
	}
	for _, re := range et.CompiledPatterns() {
		if re.MatchString(message) {
			return 0.85
		}
	}
	return 0.3
}

func matchesHighConfidence(in *catalog.Intent, message string) bool {
	for _, re := range in.CompiledPatterns() {
		if re.MatchString(message) {
			return true
		}
	}
	return false
}

func (m *Manager) requireActive(ctx context.Context, sessionID string) (*store.DialogState, error) {
	state, err := m.GetActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("no active dialog state for session %s", sessionID)
	}
	return state, nil
}

// persist writes current back with a fresh UpdatedTs, resolving concurrent
// writes to the same session by last-write-wins on timestamp per spec §4.1.
func (m *Manager) persist(ctx context.Context, current *store.DialogState) (*store.DialogState, error) {
	return m.store.UpsertDialogState(ctx, &store.UpsertDialogState{
		SessionID:        current.SessionID,
		State:            current.State,
		TargetIntent:     current.TargetIntent,
		RequiredEntities: current.RequiredEntities,
		Collected:        current.Collected,
		ExpectedEntity:   current.ExpectedEntity,
		RetryCounts:      current.RetryCounts,
		Context:          current.Context,
		UpdatedTs:        time.Now().Unix(),
		ExpiresTs:        current.ExpiresTs,
	})
}

func isTerminal(kind store.DialogStateKind) bool {
	return kind == store.DialogStateCompleted || kind == store.DialogStateCancelled
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneIntMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
