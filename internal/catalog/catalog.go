// Package catalog holds the closed set of intent kinds and entity types the
// core classifies and slot-fills against. Definitions are data, not code: an
// operator edits the YAML files under a config directory to add an intent or
// tune an entity's pattern set without a rebuild.
package catalog

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/convergeai/core/internal/configloader"
)

// Reserved intent kinds that never own entities and always route to the
// Coordinator rather than a task agent.
const (
	IntentGreeting     = "greeting"
	IntentGeneralQuery = "general_query"
	IntentOutOfScope   = "out_of_scope"
	IntentUnclear      = "unclear_intent"
)

// Intent describes one entry in the closed intent catalog.
type Intent struct {
	Kind             string   `yaml:"kind"`
	DisplayName      string   `yaml:"display_name"`
	Priority         int      `yaml:"priority"` // 1 (low) - 10 (high)
	OwningAgent      string   `yaml:"owning_agent"`
	RequiredEntities []string `yaml:"required_entities"`
	ExampleUtterance []string `yaml:"example_utterances"`
	Keywords         []string `yaml:"keywords"`
	Patterns         []string `yaml:"patterns"`

	compiled []*regexp.Regexp
}

// EntityType describes one entry in the closed entity-type set.
type EntityType struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	Patterns       []string `yaml:"patterns"`
	Normalization  string   `yaml:"normalization"` // free-form rule id consumed by internal/entity
	ValidationRule string   `yaml:"validation_rule"`
	SampleValues   []string `yaml:"sample_values"` // used to build suggestion lists on validation failure

	compiled []*regexp.Regexp
}

// CompiledPatterns returns the compiled regex patterns for the intent, compiling and
// caching them on first use.
func (i *Intent) CompiledPatterns() []*regexp.Regexp {
	if i.compiled == nil && len(i.Patterns) > 0 {
		i.compiled = make([]*regexp.Regexp, 0, len(i.Patterns))
		for _, p := range i.Patterns {
			if re, err := regexp.Compile(p); err == nil {
				i.compiled = append(i.compiled, re)
			}
		}
	}
	return i.compiled
}

// CompiledPatterns returns the compiled regex patterns for the entity type.
func (e *EntityType) CompiledPatterns() []*regexp.Regexp {
	if e.compiled == nil && len(e.Patterns) > 0 {
		e.compiled = make([]*regexp.Regexp, 0, len(e.Patterns))
		for _, p := range e.Patterns {
			if re, err := regexp.Compile(p); err == nil {
				e.compiled = append(e.compiled, re)
			}
		}
	}
	return e.compiled
}

type intentFile struct {
	Intents []Intent `yaml:"intents"`
}

type entityFile struct {
	EntityTypes []EntityType `yaml:"entity_types"`
}

// Registry is the in-memory, lock-protected view of the intent catalog and
// entity-type set. It is read on every classification and extraction call,
// so lookups are map-based and reloads replace the maps wholesale.
type Registry struct {
	mu      sync.RWMutex
	loader  *configloader.Loader
	intents map[string]*Intent
	byPriority []*Intent
	entities map[string]*EntityType
}

// NewRegistry constructs an empty registry backed by loader. Call Reload to
// populate it from disk before use.
func NewRegistry(loader *configloader.Loader) *Registry {
	return &Registry{
		loader:   loader,
		intents:  make(map[string]*Intent),
		entities: make(map[string]*EntityType),
	}
}

// Reload reads intents.yaml and entity_types.yaml from the loader's base
// directory and replaces the in-memory catalog. Catalog definitions are
// static for the life of a deployment, so Reload uses LoadCached rather than
// a TTL: pick up changes by restarting, not by waiting out a cache window.
func (r *Registry) Reload() error {
	rawIntents, err := r.loader.LoadCached("intents.yaml", func() any { return &intentFile{} })
	if err != nil {
		return fmt.Errorf("load intent catalog: %w", err)
	}
	rawEntities, err := r.loader.LoadCached("entity_types.yaml", func() any { return &entityFile{} })
	if err != nil {
		return fmt.Errorf("load entity types: %w", err)
	}

	intentList := rawIntents.(*intentFile).Intents
	entityList := rawEntities.(*entityFile).EntityTypes

	intents := make(map[string]*Intent, len(intentList))
	byPriority := make([]*Intent, 0, len(intentList))
	for idx := range intentList {
		in := &intentList[idx]
		in.CompiledPatterns()
		intents[in.Kind] = in
		byPriority = append(byPriority, in)
	}
	sortByPriorityDesc(byPriority)

	entities := make(map[string]*EntityType, len(entityList))
	for idx := range entityList {
		et := &entityList[idx]
		et.CompiledPatterns()
		entities[et.Name] = et
	}

	r.mu.Lock()
	r.intents = intents
	r.byPriority = byPriority
	r.entities = entities
	r.mu.Unlock()

	return nil
}

func sortByPriorityDesc(intents []*Intent) {
	for i := 1; i < len(intents); i++ {
		j := i
		for j > 0 && intents[j-1].Priority < intents[j].Priority {
			intents[j-1], intents[j] = intents[j], intents[j-1]
			j--
		}
	}
}

// Intent returns the catalog entry for kind, if any.
func (r *Registry) Intent(kind string) (*Intent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	in, ok := r.intents[kind]
	return in, ok
}

// Intents returns the catalog ordered by descending priority, the order the
// classifier's pattern-match step scans in.
func (r *Registry) Intents() []*Intent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Intent, len(r.byPriority))
	copy(out, r.byPriority)
	return out
}

// EntityType returns the entity-type entry for name, if any.
func (r *Registry) EntityType(name string) (*EntityType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	et, ok := r.entities[name]
	return et, ok
}

// IsReserved reports whether kind is one of the four kinds that always
// route to the Coordinator rather than a task agent.
func IsReserved(kind string) bool {
	switch kind {
	case IntentGreeting, IntentGeneralQuery, IntentOutOfScope, IntentUnclear:
		return true
	default:
		return false
	}
}
