package question

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergeai/core/internal/catalog"
	"github.com/convergeai/core/internal/configloader"
	"github.com/convergeai/core/internal/llm"
)

type fakeLLM struct {
	response string
	err      error
	calls    int
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message, temperature float32) (string, *llm.CallStats, error) {
	f.calls++
	if f.err != nil {
		return "", nil, f.err
	}
	return f.response, &llm.CallStats{}, nil
}

func (f *fakeLLM) Warmup(ctx context.Context) {}

func newTestRegistry(t *testing.T) *catalog.Registry {
	t.Helper()
	loader := configloader.NewLoader("../../config")
	reg := catalog.NewRegistry(loader)
	require.NoError(t, reg.Reload())
	return reg
}

func TestSlotQuestionFallsBackToStaticWithoutLLM(t *testing.T) {
	reg := newTestRegistry(t)
	g := New(reg, nil)

	q, err := g.SlotQuestion(context.Background(), "booking_create", "service_type", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, q)
}

func TestSlotQuestionRotatesTemplatesAcrossRetries(t *testing.T) {
	reg := newTestRegistry(t)
	g := New(reg, nil)

	seen := map[string]bool{}
	for retry := 0; retry < 3; retry++ {
		q, err := g.SlotQuestion(context.Background(), "booking_create", "service_type", retry)
		require.NoError(t, err)
		seen[q] = true
	}
	assert.Len(t, seen, 3, "expected three distinct template variants across retries 0-2")
}

func TestSlotQuestionUsesLLMParaphraseWhenAvailable(t *testing.T) {
	reg := newTestRegistry(t)
	fake := &fakeLLM{response: "What kind of service do you need done?"}
	g := New(reg, fake)

	q, err := g.SlotQuestion(context.Background(), "booking_create", "service_type", 0)
	require.NoError(t, err)
	assert.Equal(t, "What kind of service do you need done?", q)
	assert.Equal(t, 1, fake.calls)
}

func TestSlotQuestionFallsBackOnLLMError(t *testing.T) {
	reg := newTestRegistry(t)
	fake := &fakeLLM{err: assertErr{}}
	g := New(reg, fake)

	q, err := g.SlotQuestion(context.Background(), "booking_create", "service_type", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, q)
}

func TestSlotQuestionUnknownIntentErrors(t *testing.T) {
	reg := newTestRegistry(t)
	g := New(reg, nil)

	_, err := g.SlotQuestion(context.Background(), "not_a_real_intent", "service_type", 0)
	assert.Error(t, err)
}

func TestValidationPromptEmbedsErrorAndSuggestions(t *testing.T) {
	reg := newTestRegistry(t)
	g := New(reg, nil)

	q, err := g.ValidationPrompt(context.Background(), "That date doesn't quite work.", []string{"2026-08-01", "2026-08-02"})
	require.NoError(t, err)
	assert.Contains(t, q, "That date doesn't quite work.")
	assert.Contains(t, q, "2026-08-01")
}

func TestConfirmationPromptSummarizesCollectedEntities(t *testing.T) {
	reg := newTestRegistry(t)
	g := New(reg, nil)

	q, err := g.ConfirmationPrompt(context.Background(), "booking_create", map[string]string{
		"service_type":   "plumbing",
		"preferred_date": "2026-08-01",
	})
	require.NoError(t, err)
	assert.Contains(t, q, "plumbing")
	assert.Contains(t, q, "2026-08-01")
	assert.Contains(t, q, "proceed")
}

func TestEscalationPromptOffersAlternatives(t *testing.T) {
	reg := newTestRegistry(t)
	g := New(reg, nil)

	q, err := g.EscalationPrompt(context.Background(), "preferred_date")
	require.NoError(t, err)
	assert.Contains(t, q, "human")
}

type assertErr struct{}

func (assertErr) Error() string { return "llm unavailable" }
