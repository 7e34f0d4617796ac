// Package taskagent implements the terminal task agents — booking,
// cancellation, complaint — that a confirmed dialog hands off to once
// slot-filling has collected and validated every required entity (spec
// §4.9). Each agent owns one category of side effect against the domain
// store and reports back a user-facing response plus enough metadata for
// the coordinator to attach to the turn record.
package taskagent

import "context"

// Result is what a task agent reports back to the Coordinator after
// running a side effect.
type Result struct {
	Response    string
	ActionTaken string
	Metadata    map[string]any
}

// Agent is the shared contract every task agent satisfies. It runs only
// after the slot-filling graph has delivered a validated, user-confirmed
// entity set for intent.
type Agent interface {
	Execute(ctx context.Context, intent string, entities map[string]string, userID, sessionID string) (*Result, error)
}

// Registry looks up the Agent owning an intent's catalog-declared
// owning_agent name ("booking", "cancellation", "complaint").
type Registry struct {
	agents map[string]Agent
}

func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

func (r *Registry) Register(owningAgent string, agent Agent) {
	r.agents[owningAgent] = agent
}

func (r *Registry) Lookup(owningAgent string) (Agent, bool) {
	a, ok := r.agents[owningAgent]
	return a, ok
}
