// Package coordinator implements the Coordinator Agent: the single entry
// point from the outside (spec §4.7). It persists the inbound turn, runs
// the Slot-Filling Graph, and — depending on where the graph landed —
// either returns the graph's own question/confirmation/fallback, answers
// a general question through the Policy (RAG) Agent, replies with a warm
// conversational persona for greetings and out-of-scope turns, or hands
// off to the owning task agent once slot-filling is complete.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/convergeai/core/internal/catalog"
	"github.com/convergeai/core/internal/graph"
	"github.com/convergeai/core/internal/llm"
	"github.com/convergeai/core/internal/metrics"
	"github.com/convergeai/core/internal/policy"
	"github.com/convergeai/core/internal/priority"
	"github.com/convergeai/core/internal/taskagent"
	"github.com/convergeai/core/store"
)

// lowConfidenceThreshold is spec §8's review-queue trigger: any classified
// turn below this confidence must either raise a priority-queue entry or
// have already come back as a clarification question.
const lowConfidenceThreshold = 0.70

// PolicyAnswerer is the subset of *policy.Agent the Coordinator needs.
type PolicyAnswerer interface {
	Answer(ctx context.Context, query, namespace string) (*policy.Response, error)
}

// personaPrompt grounds the Coordinator's own conversational replies
// (greeting, out-of-scope, unclear intent) — no task agent and no policy
// retrieval backs these, so the LLM answers directly from the persona.
const personaPrompt = "You are a warm, empathetic customer-service assistant for a home-services " +
	"booking platform. No emoji, no bullet lists, one or two short sentences. If the user is " +
	"asking something unrelated to bookings, complaints, cancellations, or service policies, " +
	"say so politely and redirect them to what you can help with."

var staticPersonaReplies = map[string]string{
	catalog.IntentGreeting:     "Hello! I can help you book a service, check on a booking, file a complaint, or answer questions about our policies. What would you like to do?",
	catalog.IntentOutOfScope:   "I'm not able to help with that here, but I'd be glad to assist with booking a service, checking an order, or answering a policy question.",
	catalog.IntentUnclear:      "I didn't quite catch that — could you tell me a bit more about what you'd like help with?",
	catalog.IntentGeneralQuery: "I don't have enough information to answer that confidently. Could you rephrase, or would you like me to connect you with a human agent?",
}

// Result is the Coordinator's outward response for one inbound turn.
type Result struct {
	Response       string
	Intent         string
	Confidence     float32
	AgentUsed      []string
	Metadata       map[string]any
	ResponseTimeMs int64
}

// Input is one inbound message for a session.
type Input struct {
	Message   string
	UserID    string
	SessionID string
	History   []llm.Message
}

// Coordinator wires the graph, the task agent registry, and the policy
// agent behind the single `handle` entry point.
type Coordinator struct {
	store    *store.Store
	graphRt  *graph.Runtime
	catalog  *catalog.Registry
	tasks    *taskagent.Registry
	policy   PolicyAnswerer
	llmSvc   llm.Service
	priority *priority.Queue
}

// Config collects the Coordinator's dependencies.
type Config struct {
	Store      *store.Store
	GraphRt    *graph.Runtime
	Catalog    *catalog.Registry
	TaskAgents *taskagent.Registry
	Policy     PolicyAnswerer
	LLM        llm.Service
	Priority   *priority.Queue
}

func New(cfg Config) *Coordinator {
	return &Coordinator{
		store:    cfg.Store,
		graphRt:  cfg.GraphRt,
		catalog:  cfg.Catalog,
		tasks:    cfg.TaskAgents,
		policy:   cfg.Policy,
		llmSvc:   cfg.LLM,
		priority: cfg.Priority,
	}
}

// Handle is the contract of spec §4.7: persists the inbound turn, runs the
// graph, routes the outcome, and persists the assistant turn with full
// provenance before returning.
func (c *Coordinator) Handle(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()

	if _, err := c.store.CreateConversationTurn(ctx, &store.ConversationTurn{
		SessionID: in.SessionID,
		Role:      store.TurnRoleUser,
		Text:      in.Message,
		CreatedTs: start.Unix(),
	}); err != nil {
		return nil, fmt.Errorf("persist inbound turn: %w", err)
	}

	state := &graph.State{
		Message:   in.Message,
		SessionID: in.SessionID,
		UserID:    in.UserID,
		History:   in.History,
	}
	state, err := c.graphRt.Run(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("run slot-filling graph: %w", err)
	}

	result := c.route(ctx, state, in)
	c.dispatchSecondaryIntents(ctx, state, in, result)
	result.ResponseTimeMs = time.Since(start).Milliseconds()
	annotateContractMetadata(result, state)
	c.raiseLowConfidence(ctx, state, in, result)

	metrics.TurnLatency.Observe(time.Since(start).Seconds())
	metrics.TurnsProcessed.WithLabelValues(turnOutcome(state, result)).Inc()

	if _, err := c.store.CreateConversationTurn(ctx, &store.ConversationTurn{
		SessionID:      in.SessionID,
		Role:           store.TurnRoleAssistant,
		Text:           result.Response,
		Intent:         result.Intent,
		Confidence:     float64(result.Confidence),
		AgentsInvoked:  result.AgentUsed,
		ResponseTimeMs: result.ResponseTimeMs,
		GroundingScore: groundingScoreOf(result.Metadata),
		FlaggedReview:  result.Metadata["grounding_band"] == "hedge",
		CreatedTs:      time.Now().Unix(),
	}); err != nil {
		slog.ErrorContext(ctx, "coordinator: persist assistant turn failed", "session_id", in.SessionID, "error", err)
	}

	return result, nil
}

// route dispatches the graph's outcome: an in-flight question/confirmation/
// error response is returned as-is; a completed slot set hands off to the
// owning task agent or the policy agent; a reserved intent gets a
// persona reply from the Coordinator itself.
func (c *Coordinator) route(ctx context.Context, state *graph.State, in Input) *Result {
	if state.Err != nil {
		return &Result{Response: state.FinalResponse, Intent: state.Intent, Confidence: state.Confidence, Metadata: map[string]any{"outcome": "error"}}
	}

	if state.FinalResponse != "" {
		// The graph produced a slot question, a validation re-ask, or a
		// confirmation prompt — nothing to dispatch yet.
		return &Result{Response: state.FinalResponse, Intent: state.Intent, Confidence: state.Confidence, Metadata: map[string]any{"outcome": "collecting"}}
	}

	if state.ReadyForAgent {
		return c.dispatchTaskAgent(ctx, state, in)
	}

	// Neither a question nor a ready hand-off: the intent isn't in the
	// catalog, i.e. one of the four reserved kinds (spec §4.7).
	return c.respondReserved(ctx, state)
}

func (c *Coordinator) dispatchTaskAgent(ctx context.Context, state *graph.State, in Input) *Result {
	intent, ok := c.catalog.Intent(state.Intent)
	if !ok {
		slog.ErrorContext(ctx, "coordinator: ready-for-agent on unknown intent", "intent", state.Intent)
		return &Result{
			Response:   "Sorry, I ran into a problem handling that — could you try again in a moment?",
			Intent:     state.Intent,
			Confidence: state.Confidence,
			Metadata:   map[string]any{"outcome": "error"},
		}
	}

	agent, ok := c.tasks.Lookup(intent.OwningAgent)
	if !ok {
		slog.ErrorContext(ctx, "coordinator: no task agent registered", "owning_agent", intent.OwningAgent)
		return &Result{
			Response:   "Sorry, I ran into a problem handling that — could you try again in a moment?",
			Intent:     state.Intent,
			Confidence: state.Confidence,
			Metadata:   map[string]any{"outcome": "error"},
		}
	}

	out, err := agent.Execute(ctx, state.Intent, state.Collected, in.UserID, in.SessionID)
	if err != nil {
		slog.ErrorContext(ctx, "coordinator: task agent execution failed", "owning_agent", intent.OwningAgent, "error", err)
		return &Result{
			Response:   "Sorry, I ran into a problem handling that — could you try again in a moment?",
			Intent:     state.Intent,
			Confidence: state.Confidence,
			AgentUsed:  []string{intent.OwningAgent},
			Metadata:   map[string]any{"outcome": "error"},
		}
	}

	metadata := out.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["outcome"] = "completed"
	metadata["action_taken"] = out.ActionTaken

	return &Result{
		Response:   out.Response,
		Intent:     state.Intent,
		Confidence: state.Confidence,
		AgentUsed:  []string{intent.OwningAgent},
		Metadata:   metadata,
	}
}

// dispatchSecondaryIntents implements spec §4.7's multi-intent rule: task
// agents are invoked sequentially in priority order, their responses
// concatenated with brief connective text. It only fires once the primary
// intent's turn has actually completed (not still collecting/confirming/
// erroring), and only for a secondary intent whose required entities were
// already extracted alongside the primary one in the same message — there
// is no second pass through the Slot-Filling Graph to ask for anything
// missing, so an incomplete secondary intent is left for its own turn
// rather than attempted half-done.
func (c *Coordinator) dispatchSecondaryIntents(ctx context.Context, state *graph.State, in Input, result *Result) {
	outcome, _ := result.Metadata["outcome"].(string)
	if outcome != "completed" || len(state.AllIntents) < 2 {
		return
	}

	type candidate struct {
		intent   *catalog.Intent
		entities map[string]string
	}
	var candidates []candidate
	for _, guess := range state.AllIntents {
		if guess.Intent == state.Intent {
			continue
		}
		intent, ok := c.catalog.Intent(guess.Intent)
		if !ok {
			continue // reserved or unknown kind, never owns a task agent
		}
		if !hasAllRequiredEntities(intent.RequiredEntities, guess.Entities) {
			continue
		}
		candidates = append(candidates, candidate{intent: intent, entities: guess.Entities})
	}
	if len(candidates) == 0 {
		return
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].intent.Priority > candidates[j].intent.Priority })

	secondaryActions := make([]map[string]any, 0, len(candidates))
	for _, cand := range candidates {
		agent, ok := c.tasks.Lookup(cand.intent.OwningAgent)
		if !ok {
			continue
		}
		out, err := agent.Execute(ctx, cand.intent.Kind, cand.entities, in.UserID, in.SessionID)
		if err != nil {
			slog.ErrorContext(ctx, "coordinator: secondary task agent execution failed", "owning_agent", cand.intent.OwningAgent, "error", err)
			continue
		}
		result.Response += " Also, " + out.Response
		result.AgentUsed = append(result.AgentUsed, cand.intent.OwningAgent)
		secondaryActions = append(secondaryActions, map[string]any{
			"intent":       cand.intent.Kind,
			"action_taken": out.ActionTaken,
		})
	}
	if len(secondaryActions) > 0 {
		result.Metadata["secondary_actions"] = secondaryActions
	}
}

func hasAllRequiredEntities(required []string, have map[string]string) bool {
	for _, name := range required {
		if have[name] == "" {
			return false
		}
	}
	return true
}

// respondReserved handles greeting/general_query/out_of_scope/unclear_intent.
// general_query is answered through the Policy (RAG) Agent — spec §4.7 only
// forbids invoking a *task* agent for reserved kinds, and a policy lookup is
// exactly what a general question calls for. The other three get a warm
// persona reply with no retrieval behind it.
func (c *Coordinator) respondReserved(ctx context.Context, state *graph.State) *Result {
	if state.Intent == catalog.IntentGeneralQuery && c.policy != nil {
		resp, err := c.policy.Answer(ctx, state.Message, "")
		if err != nil {
			slog.ErrorContext(ctx, "coordinator: policy agent failed", "error", err)
			return &Result{
				Response:   staticPersonaReplies[catalog.IntentGeneralQuery],
				Intent:     state.Intent,
				Confidence: state.Confidence,
				AgentUsed:  []string{"policy"},
				Metadata:   map[string]any{"outcome": "error"},
			}
		}
		citationIDs := make([]string, 0, len(resp.Citations))
		for _, cit := range resp.Citations {
			citationIDs = append(citationIDs, cit.ChunkID)
		}
		return &Result{
			Response:   resp.Text,
			Intent:     state.Intent,
			Confidence: state.Confidence,
			AgentUsed:  []string{"policy"},
			Metadata: map[string]any{
				"outcome":         "completed",
				"grounding_score": resp.GroundingScore,
				"grounding_band":  resp.Band,
				"citations":       citationIDs,
			},
		}
	}

	response := c.personaReply(ctx, state.Intent, state.Message)
	return &Result{
		Response:   response,
		Intent:     state.Intent,
		Confidence: state.Confidence,
		Metadata:   map[string]any{"outcome": "completed"},
	}
}

// personaReply asks the LLM to respond in persona to a reserved-intent
// message; a static fallback reply covers nil service or call failure so
// the turn never blocks on a prompt timeout (spec §4.5's failure mode).
func (c *Coordinator) personaReply(ctx context.Context, intentKind, message string) string {
	fallback := staticPersonaReplies[intentKind]
	if c.llmSvc == nil {
		return fallback
	}
	reply, _, err := c.llmSvc.Chat(ctx, []llm.Message{
		{Role: "system", Content: personaPrompt},
		{Role: "user", Content: message},
	}, llm.TemperatureGeneration)
	if err != nil {
		slog.WarnContext(ctx, "coordinator: persona reply failed, using static fallback", "error", err)
		return fallback
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return fallback
	}
	return reply
}

// annotateContractMetadata fills in the fields spec §6's external response
// contract names beyond what any one route branch naturally produces:
// all_intents, classification_method, collected_entities, needed_entities,
// and should_trigger_agent.
func annotateContractMetadata(result *Result, state *graph.State) {
	if result.Metadata == nil {
		result.Metadata = map[string]any{}
	}
	allIntents := make([]map[string]any, 0, len(state.AllIntents))
	for _, guess := range state.AllIntents {
		allIntents = append(allIntents, map[string]any{
			"intent":     guess.Intent,
			"confidence": guess.Confidence,
		})
	}
	result.Metadata["all_intents"] = allIntents
	result.Metadata["classification_method"] = string(state.ClassificationMethod)
	result.Metadata["collected_entities"] = state.Collected
	result.Metadata["needed_entities"] = state.NeededEntities
	result.Metadata["should_trigger_agent"] = state.ReadyForAgent
}

// raiseLowConfidence enforces spec §8's invariant that every turn classified
// below lowConfidenceThreshold either surfaces a priority-queue entry or is
// itself a clarification question. "collecting" means the graph already
// asked one, so nothing further is owed.
func (c *Coordinator) raiseLowConfidence(ctx context.Context, state *graph.State, in Input, result *Result) {
	if c.priority == nil || state.Confidence >= lowConfidenceThreshold {
		return
	}
	if outcome, _ := result.Metadata["outcome"].(string); outcome == "collecting" {
		return
	}

	snippet := in.Message
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	if _, err := c.priority.Raise(ctx, priority.RaiseInputs{
		UserID:         in.UserID,
		SessionID:      in.SessionID,
		IntentKind:     state.Intent,
		MessageSnippet: snippet,
		Score: priority.ScoreInputs{
			IntentConfidence: float64(state.Confidence),
		},
	}); err != nil {
		slog.ErrorContext(ctx, "coordinator: raise low-confidence priority entry failed", "session_id", in.SessionID, "error", err)
	}
}

func turnOutcome(state *graph.State, result *Result) string {
	if outcome, ok := result.Metadata["outcome"].(string); ok {
		return outcome
	}
	if state.ActiveState != nil {
		return string(state.ActiveState.State)
	}
	return "completed"
}

func groundingScoreOf(metadata map[string]any) float64 {
	if v, ok := metadata["grounding_score"].(float64); ok {
		return v
	}
	return 0
}
