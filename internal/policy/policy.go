// Package policy implements the Policy (RAG) Agent: hybrid full-text
// (postgres ts_rank_cd) plus vector retrieval over the policy/FAQ/service-description corpus, answer
// generation grounded strictly in retrieved context, and a grounding-score
// check that is the last line of defense against an unsupported claim
// reaching the user (spec §4.8).
package policy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/convergeai/core/ai"
	"github.com/convergeai/core/internal/config"
	"github.com/convergeai/core/internal/llm"
	"github.com/convergeai/core/internal/vectorindex"
)

const (
	// rrfK is the reciprocal-rank-fusion constant; 60 is the commonly used
	// value in information retrieval.
	rrfK = 60

	topK = 5

	// retrievalFloor is the minimum raw retrieval score (the higher of the
	// top vector and top keyword scores) a query's best match must clear
	// before the agent will even ask the LLM to answer.
	// Below this, no amount of careful prompting recovers a grounded
	// answer from context this thin.
	retrievalFloor = 0.55

	answerTimeout = 10 * time.Second
)

var noInformationResponse = "I don't have enough information to answer that confidently. " +
	"Could you rephrase, or would you like me to connect you with a human agent?"

// VectorIndex is the narrow retrieval contract the agent depends on;
// vectorindex.PostgresIndex satisfies it structurally.
type VectorIndex interface {
	Search(ctx context.Context, vector []float32, limit int, filter map[string]any) ([]vectorindex.ScoredChunk, error)
	KeywordSearch(ctx context.Context, query string, limit int) ([]vectorindex.ScoredChunk, error)
}

// Citation is a single retrieved chunk backing an answer, surfaced to the
// caller so a UI can render "source: ..." links.
type Citation struct {
	ChunkID string
	DocID   string
	Snippet string
}

// Response is what the agent returns for one query.
type Response struct {
	Text           string
	Citations      []Citation
	GroundingScore float64
	Band           string // publish, hedge, suppress
	Suppressed     bool
}

// Agent answers a query from the policy/FAQ corpus.
type Agent struct {
	index    VectorIndex
	embedder ai.EmbeddingService
	llmSvc   llm.Service
	cfg      *config.Store
}

func New(index VectorIndex, embedder ai.EmbeddingService, llmSvc llm.Service, cfg *config.Store) *Agent {
	return &Agent{index: index, embedder: embedder, llmSvc: llmSvc, cfg: cfg}
}

// Answer retrieves, generates, and grounding-checks an answer to query.
// namespace narrows retrieval to one corpus partition (policies, faqs,
// service-descriptions); empty searches the whole corpus.
func (a *Agent) Answer(ctx context.Context, query, namespace string) (*Response, error) {
	vector, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var filter map[string]any
	if namespace != "" {
		filter = map[string]any{"category": namespace}
	}

	vectorResults, err := a.index.Search(ctx, vector, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	keywordResults, err := a.index.KeywordSearch(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	// The floor is defined against raw retrieval similarity (spec §4.8 step
	// 3, e.g. the 0.92 cosine score in §8 scenario 5), not the RRF-fused
	// score — fused scores top out around 2/(rrfK+1) and would never clear
	// a 0.55 floor. RRF only decides ranking/dedup among the results that
	// already passed the floor.
	var topRawScore float32
	if len(vectorResults) > 0 {
		topRawScore = vectorResults[0].Score
	}
	if len(keywordResults) > 0 && keywordResults[0].Score > topRawScore {
		topRawScore = keywordResults[0].Score
	}
	if topRawScore < retrievalFloor {
		return &Response{Text: noInformationResponse, Band: "suppress", Suppressed: true}, nil
	}

	fused := fuseRRF(vectorResults, keywordResults)
	if len(fused) > topK {
		fused = fused[:topK]
	}

	answerCtx, cancel := context.WithTimeout(ctx, answerTimeout)
	defer cancel()

	answer, err := a.generate(answerCtx, query, fused)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	score := groundingScore(answer, fused)
	band := a.cfg.Grounding().Band(score)

	citations := make([]Citation, 0, len(fused))
	for _, c := range fused {
		citations = append(citations, Citation{ChunkID: c.ID, DocID: c.DocID, Snippet: snippet(c.Content)})
	}

	if band == "suppress" {
		return &Response{Text: noInformationResponse, GroundingScore: score, Band: band, Suppressed: true}, nil
	}
	if band == "hedge" {
		answer = "I'm not fully certain, but here's what I found: " + answer
	}

	return &Response{Text: answer, Citations: citations, GroundingScore: score, Band: band}, nil
}

func snippet(content string) string {
	if plain, err := renderPlain(content); err == nil {
		content = plain
	}
	const maxLen = 200
	if len(content) <= maxLen {
		return content
	}
	return content[:maxLen] + "..."
}

// fuseRRF combines vector and keyword results with reciprocal-rank fusion,
// equal-weighted, and returns them sorted by fused score descending.
func fuseRRF(vectorResults, keywordResults []vectorindex.ScoredChunk) []vectorindex.ScoredChunk {
	type fused struct {
		chunk vectorindex.ScoredChunk
		score float32
	}
	byID := make(map[string]*fused)

	for i, c := range vectorResults {
		byID[c.ID] = &fused{chunk: c, score: 1.0 / float32(rrfK+i+1)}
	}
	for i, c := range keywordResults {
		if f, ok := byID[c.ID]; ok {
			f.score += 1.0 / float32(rrfK+i+1)
		} else {
			byID[c.ID] = &fused{chunk: c, score: 1.0 / float32(rrfK+i+1)}
		}
	}

	out := make([]vectorindex.ScoredChunk, 0, len(byID))
	for _, f := range byID {
		chunk := f.chunk
		chunk.Score = f.score
		out = append(out, chunk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
