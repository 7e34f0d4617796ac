// Package graph implements the Slot-Filling Graph: the turn orchestrator.
// A fixed set of named nodes runs over a shared State; the nodes are not
// pure functions: each one writes its results into the State directly, and
// Run follows the conditional routing edges between them. Every node has
// its own timeout,
// and the whole turn is bounded by an overall deadline, so a single slow
// dependency degrades into a polite fallback response instead of hanging
// the session.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/convergeai/core/internal/catalog"
	"github.com/convergeai/core/internal/classifier"
	"github.com/convergeai/core/internal/dialog"
	"github.com/convergeai/core/internal/entity"
	"github.com/convergeai/core/internal/llm"
	"github.com/convergeai/core/internal/metrics"
	"github.com/convergeai/core/store"
)

// NodeTimeout bounds a single node's execution (spec §5).
const NodeTimeout = 3 * time.Second

// TurnTimeout bounds the entire graph run for one inbound message (spec §5).
const TurnTimeout = 30 * time.Second

// maxEntityRetries is the retry count at which an entity escalates to a
// human-handoff offer instead of asking again (spec §4.6/§8).
const maxEntityRetries = 3

// intentSwitchConfidence is the confidence threshold above which a
// different intent than the active dialog state's target clears that state
// instead of being treated as a follow-up (spec §4.6).
const intentSwitchConfidence = 0.90

// followUpConfidenceThreshold gates whether check_follow_up routes to
// extract_entity or treats the turn as a fresh intent (spec §4.6).
const followUpConfidenceThreshold = 0.6

var affirmativePattern = regexp.MustCompile(`(?i)^\s*(yes|yeah|yep|sure|correct|confirm|go ahead|sounds good|please proceed|that's right)\b`)

// IntentClassifier is the subset of *classifier.Classifier the graph needs.
type IntentClassifier interface {
	Classify(ctx context.Context, message string, history []llm.Message, active *classifier.ActiveState) (*classifier.Result, error)
}

// EntityExtractor is the subset of *entity.Extractor the graph needs.
type EntityExtractor interface {
	Extract(ctx context.Context, message, targetType string, collected map[string]string) (*entity.Extraction, error)
}

// EntityValidator is the subset of *entity.Validator the graph needs.
type EntityValidator interface {
	Validate(ctx context.Context, entityType, normalizedValue, userID string) (*entity.ValidationResult, error)
}

// DialogStateManager is the subset of *dialog.Manager the graph needs.
type DialogStateManager interface {
	GetActive(ctx context.Context, sessionID string) (*store.DialogState, error)
	Create(ctx context.Context, sessionID, intent string, requiredEntities []string) (*store.DialogState, error)
	AddEntity(ctx context.Context, sessionID, key, value string) (*store.DialogState, error)
	SetExpected(ctx context.Context, sessionID, key string) (*store.DialogState, error)
	IncrementRetry(ctx context.Context, sessionID, key string) (int, error)
	Transition(ctx context.Context, sessionID string, newKind store.DialogStateKind) (*store.DialogState, error)
	Clear(ctx context.Context, sessionID string) error
	IsFollowUp(ctx context.Context, sessionID, message string) (*dialog.FollowUp, error)
}

// QuestionGenerator is the subset of *question.Generator the graph needs.
type QuestionGenerator interface {
	SlotQuestion(ctx context.Context, intentKind, entityType string, retryCount int) (string, error)
	ValidationPrompt(ctx context.Context, errorMessage string, suggestions []string) (string, error)
	ConfirmationPrompt(ctx context.Context, intentKind string, collected map[string]string) (string, error)
	EscalationPrompt(ctx context.Context, entityType string) (string, error)
}

// State is the shared object threaded through every node. Each node reads
// it and writes its results into it in place; there is no partial-update
// merging step.
type State struct {
	Message   string
	SessionID string
	UserID    string
	History   []llm.Message

	ActiveState *store.DialogState

	Intent     string
	Confidence float32
	Collected  map[string]string

	AllIntents           []classifier.IntentGuess
	ClassificationMethod classifier.Method

	IsFollowUp         bool
	ExpectedEntity     string
	FollowUpConfidence float32

	PendingEntityType  string
	PendingRawValue    string
	PendingNormalized  string
	ValidationResult   *entity.ValidationResult

	NeededEntities []string
	RetryCounts    map[string]int

	FinalResponse string
	ReadyForAgent bool // true once confirmation is affirmed; hands off to a task agent
	Err           error
}

// Runtime executes the Slot-Filling Graph for one inbound turn.
type Runtime struct {
	catalog    *catalog.Registry
	classifier IntentClassifier
	extractor  EntityExtractor
	validator  EntityValidator
	dialogMgr  DialogStateManager
	questions  QuestionGenerator
}

// Config collects the Runtime's dependencies.
type Config struct {
	Catalog    *catalog.Registry
	Classifier IntentClassifier
	Extractor  EntityExtractor
	Validator  EntityValidator
	DialogMgr  DialogStateManager
	Questions  QuestionGenerator
}

// New constructs a Runtime.
func New(cfg Config) *Runtime {
	return &Runtime{
		catalog:    cfg.Catalog,
		classifier: cfg.Classifier,
		extractor:  cfg.Extractor,
		validator:  cfg.Validator,
		dialogMgr:  cfg.DialogMgr,
		questions:  cfg.Questions,
	}
}

// Run executes the graph for one inbound message, returning the state with
// FinalResponse (and, if the turn completed slot-filling, ReadyForAgent set)
// populated. Node failures are captured by handle_error and surfaced as
// State.Err plus a polite fallback FinalResponse; the returned error is
// always nil.
func (r *Runtime) Run(ctx context.Context, state *State) (*State, error) {
	ctx, cancel := context.WithTimeout(ctx, TurnTimeout)
	defer cancel()

	if state.Collected == nil {
		state.Collected = map[string]string{}
	}

	active, err := r.dialogMgr.GetActive(ctx, state.SessionID)
	if err != nil {
		state.Err = err
		r.handleError(ctx, state)
		return state, nil
	}
	state.ActiveState = active
	if active != nil {
		state.Collected = mergeCollected(state.Collected, active.Collected)
		state.RetryCounts = active.RetryCounts
	}

	if err := r.runNode(ctx, "classify_intent", func(ctx context.Context) error {
		return r.classifyIntent(ctx, state)
	}); err != nil {
		state.Err = err
		r.handleError(ctx, state)
		return state, nil
	}

	if err := r.runNode(ctx, "check_follow_up", func(ctx context.Context) error {
		return r.checkFollowUp(ctx, state)
	}); err != nil {
		state.Err = err
		r.handleError(ctx, state)
		return state, nil
	}

	if state.IsFollowUp && state.FollowUpConfidence > followUpConfidenceThreshold {
		if err := r.runNode(ctx, "extract_entity", func(ctx context.Context) error {
			return r.extractEntity(ctx, state)
		}); err != nil {
			state.Err = err
			r.handleError(ctx, state)
			return state, nil
		}

		if err := r.runNode(ctx, "validate_entity", func(ctx context.Context) error {
			return r.validateEntity(ctx, state)
		}); err != nil {
			state.Err = err
			r.handleError(ctx, state)
			return state, nil
		}

		if state.ValidationResult != nil && state.ValidationResult.IsValid {
			if err := r.runNode(ctx, "update_dialog_state", func(ctx context.Context) error {
				return r.updateDialogState(ctx, state)
			}); err != nil {
				state.Err = err
				r.handleError(ctx, state)
				return state, nil
			}
		} else {
			if err := r.runNode(ctx, "generate_question", func(ctx context.Context) error {
				return r.generateValidationErrorQuestion(ctx, state)
			}); err != nil {
				state.Err = err
				r.handleError(ctx, state)
			}
			return state, nil
		}
	}

	if err := r.runNode(ctx, "determine_needed_entities", func(ctx context.Context) error {
		return r.determineNeededEntities(ctx, state)
	}); err != nil {
		state.Err = err
		r.handleError(ctx, state)
		return state, nil
	}

	if len(state.NeededEntities) == 0 && state.ActiveState != nil &&
		state.ActiveState.State == store.DialogStateAwaitingConfirmation && affirmativePattern.MatchString(state.Message) {
		// The graph decides state, not LLM phrasing: classifying "yes" in
		// isolation almost never lands back on the target intent, so the
		// confirmed intent comes from the active dialog state, not
		// whatever classify_intent just guessed for this turn's message.
		state.Intent = state.ActiveState.TargetIntent
		state.ReadyForAgent = true
		return state, nil
	}

	// Reserved intents (greeting, general_query, out_of_scope, unclear_intent)
	// own no entities and never reach a confirmation step; the Coordinator
	// replies to these itself, so the graph returns with no FinalResponse.
	if _, ok := r.catalog.Intent(state.Intent); !ok {
		return state, nil
	}

	if err := r.runNode(ctx, "generate_question", func(ctx context.Context) error {
		return r.generateNextQuestion(ctx, state)
	}); err != nil {
		state.Err = err
		r.handleError(ctx, state)
	}
	return state, nil
}

// runNode enforces a hard per-node timeout. errgroup propagates the node's
// cancellation-aware error, and a deferred recover turns a panicking node
// into an error instead of taking the whole turn down.
func (r *Runtime) runNode(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	nodeCtx, cancel := context.WithTimeout(ctx, NodeTimeout)
	defer cancel()

	g, gCtx := errgroup.WithContext(nodeCtx)
	g.Go(func() (recovered error) {
		defer func() {
			if p := recover(); p != nil {
				recovered = fmt.Errorf("node %s panicked: %v", name, p)
			}
		}()
		return fn(gCtx)
	})

	start := time.Now()
	err = g.Wait()
	duration := time.Since(start)
	metrics.GraphNodeLatency.WithLabelValues(name).Observe(duration.Seconds())
	slog.DebugContext(ctx, "graph: node executed", "node", name, "duration_ms", duration.Milliseconds(), "error", err)
	return err
}

func (r *Runtime) classifyIntent(ctx context.Context, state *State) error {
	var active *classifier.ActiveState
	if state.ActiveState != nil {
		active = &classifier.ActiveState{
			TargetIntent:   state.ActiveState.TargetIntent,
			ExpectedEntity: state.ActiveState.ExpectedEntity,
			Collecting:     state.ActiveState.State == store.DialogStateCollectingInfo,
		}
	}

	result, err := r.classifier.Classify(ctx, state.Message, state.History, active)
	if err != nil {
		return fmt.Errorf("classify intent: %w", err)
	}

	state.Intent = result.Primary
	state.AllIntents = result.Intents
	state.ClassificationMethod = result.Method
	for _, guess := range result.Intents {
		if guess.Intent == result.Primary {
			state.Confidence = guess.Confidence
			state.Collected = mergeCollected(state.Collected, guess.Entities)
			break
		}
	}

	// Intent-switch policy (spec §4.6): a confidently different intent
	// clears the active state rather than being folded into it.
	if state.ActiveState != nil && state.ActiveState.TargetIntent != state.Intent && state.Confidence >= intentSwitchConfidence {
		if err := r.dialogMgr.Clear(ctx, state.SessionID); err != nil {
			return fmt.Errorf("clear active state on intent switch: %w", err)
		}
		state.ActiveState = nil
		state.Collected = map[string]string{}
	}

	return nil
}

func (r *Runtime) checkFollowUp(ctx context.Context, state *State) error {
	fu, err := r.dialogMgr.IsFollowUp(ctx, state.SessionID, state.Message)
	if err != nil {
		return fmt.Errorf("check follow up: %w", err)
	}
	state.IsFollowUp = fu.IsFollowUp
	state.ExpectedEntity = fu.ExpectedEntity
	state.FollowUpConfidence = fu.Confidence
	return nil
}

func (r *Runtime) extractEntity(ctx context.Context, state *State) error {
	ext, err := r.extractor.Extract(ctx, state.Message, state.ExpectedEntity, state.Collected)
	if err != nil {
		return fmt.Errorf("extract entity %s: %w", state.ExpectedEntity, err)
	}
	state.PendingEntityType = state.ExpectedEntity
	state.PendingRawValue = ext.RawValue
	state.PendingNormalized = ext.NormalizedValue
	return nil
}

func (r *Runtime) validateEntity(ctx context.Context, state *State) error {
	if state.PendingEntityType == "" || state.PendingNormalized == "" {
		state.ValidationResult = &entity.ValidationResult{IsValid: false, ErrorMessage: "I didn't catch that — could you say it again?"}
		return nil
	}
	result, err := r.validator.Validate(ctx, state.PendingEntityType, state.PendingNormalized, state.UserID)
	if err != nil {
		return fmt.Errorf("validate entity %s: %w", state.PendingEntityType, err)
	}
	state.ValidationResult = result
	return nil
}

func (r *Runtime) updateDialogState(ctx context.Context, state *State) error {
	if _, err := r.dialogMgr.AddEntity(ctx, state.SessionID, state.PendingEntityType, state.ValidationResult.NormalizedValue); err != nil {
		return fmt.Errorf("update dialog state: %w", err)
	}
	state.Collected[state.PendingEntityType] = state.ValidationResult.NormalizedValue
	active, err := r.dialogMgr.GetActive(ctx, state.SessionID)
	if err != nil {
		return fmt.Errorf("reload dialog state: %w", err)
	}
	state.ActiveState = active
	return nil
}

func (r *Runtime) determineNeededEntities(ctx context.Context, state *State) error {
	intent, ok := r.catalog.Intent(state.Intent)
	if !ok {
		state.NeededEntities = nil
		return nil
	}
	needed := make([]string, 0, len(intent.RequiredEntities))
	for _, key := range intent.RequiredEntities {
		if _, have := state.Collected[key]; !have {
			needed = append(needed, key)
		}
	}
	state.NeededEntities = needed

	if state.ActiveState == nil {
		if _, err := r.dialogMgr.Create(ctx, state.SessionID, state.Intent, needed); err != nil {
			return fmt.Errorf("create dialog state: %w", err)
		}
		active, err := r.dialogMgr.GetActive(ctx, state.SessionID)
		if err != nil {
			return fmt.Errorf("reload created dialog state: %w", err)
		}
		state.ActiveState = active
	}
	return nil
}

// generateValidationErrorQuestion handles the invalid-entity branch of
// validate_entity: increment the retry counter, escalate at 3, otherwise
// re-ask with the validator's error and suggestions embedded.
func (r *Runtime) generateValidationErrorQuestion(ctx context.Context, state *State) error {
	retries, err := r.dialogMgr.IncrementRetry(ctx, state.SessionID, state.PendingEntityType)
	if err != nil {
		return fmt.Errorf("increment retry: %w", err)
	}

	if retries >= maxEntityRetries {
		prompt, err := r.questions.EscalationPrompt(ctx, state.PendingEntityType)
		if err != nil {
			return fmt.Errorf("generate escalation prompt: %w", err)
		}
		state.FinalResponse = prompt
		if _, err := r.dialogMgr.Transition(ctx, state.SessionID, store.DialogStateCancelled); err != nil {
			return fmt.Errorf("transition to cancelled on escalation: %w", err)
		}
		return nil
	}

	prompt, err := r.questions.ValidationPrompt(ctx, state.ValidationResult.ErrorMessage, state.ValidationResult.Suggestions)
	if err != nil {
		return fmt.Errorf("generate validation prompt: %w", err)
	}
	state.FinalResponse = prompt
	return nil
}

func (r *Runtime) generateNextQuestion(ctx context.Context, state *State) error {
	if len(state.NeededEntities) == 0 {
		prompt, err := r.questions.ConfirmationPrompt(ctx, state.Intent, state.Collected)
		if err != nil {
			return fmt.Errorf("generate confirmation prompt: %w", err)
		}
		state.FinalResponse = prompt
		if _, err := r.dialogMgr.Transition(ctx, state.SessionID, store.DialogStateAwaitingConfirmation); err != nil {
			return fmt.Errorf("transition to awaiting_confirmation: %w", err)
		}
		return nil
	}

	next := state.NeededEntities[0]
	retries := state.RetryCounts[next]
	if _, err := r.dialogMgr.SetExpected(ctx, state.SessionID, next); err != nil {
		return fmt.Errorf("set expected entity: %w", err)
	}
	prompt, err := r.questions.SlotQuestion(ctx, state.Intent, next, retries)
	if err != nil {
		return fmt.Errorf("generate slot question: %w", err)
	}
	state.FinalResponse = prompt
	return nil
}

// handleError is the terminal catch-all: it never returns an error itself,
// since there is nothing further downstream to route to.
func (r *Runtime) handleError(ctx context.Context, state *State) {
	slog.ErrorContext(ctx, "graph: turn failed, falling back", "session_id", state.SessionID, "error", state.Err)
	state.FinalResponse = "Sorry, I ran into a problem handling that — could you try again in a moment?"
}

func mergeCollected(existing, incoming map[string]string) map[string]string {
	merged := make(map[string]string, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		if _, has := merged[k]; !has && v != "" {
			merged[k] = v
		}
	}
	return merged
}
