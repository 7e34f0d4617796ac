package policy

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/convergeai/core/internal/llm"
	"github.com/convergeai/core/internal/vectorindex"
)

const systemPrompt = "You are a customer-service assistant answering strictly from the numbered context " +
	"passages below. Use only facts present in the context — never invent a policy, date, or number. " +
	"If the context doesn't answer the question, say so plainly. After any sentence that uses a fact " +
	"from a passage, cite it in brackets like [p2]. Keep the answer to two or three sentences."

// generate builds the grounded prompt and asks the LLM for an answer.
// Chunk content is rendered from markdown to plain text first, since the
// policy corpus is authored as markdown and raw formatting marks (#, **,
// etc.) would otherwise leak into the prompt and the cited answer.
func (a *Agent) generate(ctx context.Context, query string, chunks []vectorindex.ScoredChunk) (string, error) {
	var passages strings.Builder
	for i, c := range chunks {
		plain, err := renderPlain(c.Content)
		if err != nil {
			plain = c.Content
		}
		fmt.Fprintf(&passages, "[p%d] (id=%s) %s\n", i+1, c.ID, plain)
	}

	userPrompt := fmt.Sprintf("Context:\n%s\nQuestion: %s", passages.String(), query)

	answer, _, err := a.llmSvc.Chat(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}, llm.TemperaturePolicyAnswer)
	if err != nil {
		return "", fmt.Errorf("policy answer completion: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// renderPlain strips markdown formatting from a policy chunk, rendering
// to HTML and then dropping tags, so prompt context and citation snippets
// read as plain prose rather than raw markdown source.
func renderPlain(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render policy chunk markdown: %w", err)
	}
	return stripTags(buf.String()), nil
}

func stripTags(html string) string {
	var out strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			out.WriteRune(r)
		}
	}
	return strings.TrimSpace(out.String())
}
