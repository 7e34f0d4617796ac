// Package question implements the Question Generator: the component that
// produces every user-facing prompt — slot questions, validation-error
// re-asks, confirmation summaries, and retry escalations. Each prompt has a
// static template fallback so the turn never blocks on an LLM timeout; an
// LLM paraphrase is attempted first at the generation temperature band.
package question

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"text/template"

	"github.com/convergeai/core/internal/catalog"
	"github.com/convergeai/core/internal/llm"
)

const personaPrompt = "You rephrase a scripted customer-service prompt in a warm, empathetic voice. " +
	"No emoji, no bullet lists, one or two short sentences, keep every fact from the original prompt. " +
	"Reply with the rephrased prompt only, nothing else."

// slotTemplates holds at least three independently-worded variants per
// spec §4.5, rotated by retry count so a user re-asked the same slot never
// sees identical wording twice in a row.
var slotTemplates = []*template.Template{
	template.Must(template.New("slot1").Parse(
		"To {{.IntentDisplay}}, could you tell me the {{.EntityDescription}}?")),
	template.Must(template.New("slot2").Parse(
		"What {{.EntityDescription}} works for you?")),
	template.Must(template.New("slot3").Parse(
		"I still need the {{.EntityDescription}} to continue — could you share that?")),
}

var validationErrorTemplate = template.Must(template.New("validation_error").Parse(
	"{{.ErrorMessage}}{{if .Suggestions}} For example: {{.Suggestions}}.{{end}}"))

var confirmationTemplate = template.Must(template.New("confirmation").Parse(
	"Here's what I have for your {{.IntentDisplay}}: {{.Summary}}. Should I proceed?"))

var escalationTemplate = template.Must(template.New("escalation").Parse(
	"I'm having trouble pinning down the {{.EntityDescription}}. Would you like to try again, " +
		"skip it for now, or talk to a human agent?"))

// Generator produces the next user-facing prompt for a turn.
type Generator struct {
	catalog *catalog.Registry
	llmSvc  llm.Service
}

// New constructs a Generator. llmSvc may be nil, in which case every prompt
// falls back to its static template immediately.
func New(reg *catalog.Registry, llmSvc llm.Service) *Generator {
	return &Generator{catalog: reg, llmSvc: llmSvc}
}

type slotVars struct {
	IntentDisplay     string
	EntityDescription string
}

// SlotQuestion asks for the next needed entity. retryCount selects which of
// the ≥3 templates to use, rotating so repeated asks vary wording.
func (g *Generator) SlotQuestion(ctx context.Context, intentKind, entityType string, retryCount int) (string, error) {
	intent, ok := g.catalog.Intent(intentKind)
	if !ok {
		return "", fmt.Errorf("unknown intent %q", intentKind)
	}
	et, ok := g.catalog.EntityType(entityType)
	if !ok {
		return "", fmt.Errorf("unknown entity type %q", entityType)
	}

	idx := retryCount % len(slotTemplates)
	if idx < 0 {
		idx = 0
	}
	vars := slotVars{IntentDisplay: strings.ToLower(intent.DisplayName), EntityDescription: et.Description}

	static, err := render(slotTemplates[idx], vars)
	if err != nil {
		return "", err
	}
	return g.paraphrase(ctx, static), nil
}

type validationVars struct {
	ErrorMessage string
	Suggestions  string
}

// ValidationPrompt re-asks a failing entity, embedding the validator's
// human-readable error and its suggested valid values.
func (g *Generator) ValidationPrompt(ctx context.Context, errorMessage string, suggestions []string) (string, error) {
	vars := validationVars{ErrorMessage: errorMessage, Suggestions: strings.Join(suggestions, ", ")}
	static, err := render(validationErrorTemplate, vars)
	if err != nil {
		return "", err
	}
	return g.paraphrase(ctx, static), nil
}

type confirmationVars struct {
	IntentDisplay string
	Summary       string
}

// ConfirmationPrompt summarizes every collected entity and asks the user to
// confirm before a task agent runs a side effect.
func (g *Generator) ConfirmationPrompt(ctx context.Context, intentKind string, collected map[string]string) (string, error) {
	intent, ok := g.catalog.Intent(intentKind)
	if !ok {
		return "", fmt.Errorf("unknown intent %q", intentKind)
	}

	keys := make([]string, 0, len(collected))
	for k := range collected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", humanize(k), collected[k]))
	}

	vars := confirmationVars{IntentDisplay: strings.ToLower(intent.DisplayName), Summary: strings.Join(parts, "; ")}
	static, err := render(confirmationTemplate, vars)
	if err != nil {
		return "", err
	}
	return g.paraphrase(ctx, static), nil
}

type escalationVars struct {
	EntityDescription string
}

// EscalationPrompt fires once an entity's retry count reaches 3 (spec §8):
// offer to retry, skip, or hand off to a human rather than looping forever.
func (g *Generator) EscalationPrompt(ctx context.Context, entityType string) (string, error) {
	et, ok := g.catalog.EntityType(entityType)
	if !ok {
		return "", fmt.Errorf("unknown entity type %q", entityType)
	}
	static, err := render(escalationTemplate, escalationVars{EntityDescription: et.Description})
	if err != nil {
		return "", err
	}
	return g.paraphrase(ctx, static), nil
}

// paraphrase asks the LLM to rephrase static at the generation temperature.
// Any failure (nil service, timeout, malformed response) returns static
// unchanged — the system never blocks a turn on a prompt-generation call.
func (g *Generator) paraphrase(ctx context.Context, static string) string {
	if g.llmSvc == nil {
		return static
	}
	rephrased, _, err := g.llmSvc.Chat(ctx, []llm.Message{
		{Role: "system", Content: personaPrompt},
		{Role: "user", Content: static},
	}, llm.TemperatureGeneration)
	if err != nil {
		slog.WarnContext(ctx, "question paraphrase failed, using static template", "error", err)
		return static
	}
	rephrased = strings.TrimSpace(rephrased)
	if rephrased == "" {
		return static
	}
	return rephrased
}

func render(tmpl *template.Template, vars any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render prompt template: %w", err)
	}
	return buf.String(), nil
}

func humanize(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}
