package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergeai/core/internal/config"
	"github.com/convergeai/core/internal/configloader"
	"github.com/convergeai/core/internal/llm"
	"github.com/convergeai/core/internal/vectorindex"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, f.err
}
func (f *fakeEmbedder) Dimensions() int { return len(f.vector) }

type fakeIndex struct {
	vectorResults  []vectorindex.ScoredChunk
	keywordResults []vectorindex.ScoredChunk
	err            error
}

func (f *fakeIndex) Search(ctx context.Context, vector []float32, limit int, filter map[string]any) ([]vectorindex.ScoredChunk, error) {
	return f.vectorResults, f.err
}
func (f *fakeIndex) KeywordSearch(ctx context.Context, query string, limit int) ([]vectorindex.ScoredChunk, error) {
	return f.keywordResults, f.err
}

type fakeLLM struct {
	reply string
	err   error
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message, temperature float32) (string, *llm.CallStats, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return f.reply, &llm.CallStats{}, nil
}
func (f *fakeLLM) Warmup(ctx context.Context) {}

func newTestConfigStore(t *testing.T) *config.Store {
	t.Helper()
	loader := configloader.NewLoader("../../config")
	s, err := config.NewStore(loader, "runtime.yaml", time.Millisecond)
	require.NoError(t, err)
	return s
}

func chunk(id, content string) vectorindex.ScoredChunk {
	return vectorindex.ScoredChunk{
		Chunk: vectorindex.Chunk{ID: id, DocID: "doc-" + id, Content: content},
	}
}

// scoredChunk sets a raw cosine-similarity score, the kind a real Search/
// KeywordSearch call returns and the retrieval floor is compared against.
func scoredChunk(id, content string, score float32) vectorindex.ScoredChunk {
	c := chunk(id, content)
	c.Score = score
	return c
}

func TestAnswerSuppressesBelowRetrievalFloor(t *testing.T) {
	index := &fakeIndex{
		vectorResults:  []vectorindex.ScoredChunk{},
		keywordResults: []vectorindex.ScoredChunk{},
	}
	agent := New(index, &fakeEmbedder{vector: []float32{0.1, 0.2}}, &fakeLLM{reply: "should never be called"}, newTestConfigStore(t))

	resp, err := agent.Answer(context.Background(), "what is your refund policy?", "")
	require.NoError(t, err)
	assert.True(t, resp.Suppressed)
	assert.Equal(t, "suppress", resp.Band)
	assert.Equal(t, noInformationResponse, resp.Text)
}

func TestAnswerPublishesWhenWellGrounded(t *testing.T) {
	content := "Cancellations made more than 24 hours before the appointment receive a full refund."
	index := &fakeIndex{
		vectorResults:  []vectorindex.ScoredChunk{scoredChunk("c1", content, 0.92)},
		keywordResults: []vectorindex.ScoredChunk{scoredChunk("c1", content, 0.92)},
	}
	llmReply := "Cancellations made more than 24 hours before the appointment receive a full refund. [p1]"
	agent := New(index, &fakeEmbedder{vector: []float32{0.1, 0.2}}, &fakeLLM{reply: llmReply}, newTestConfigStore(t))

	resp, err := agent.Answer(context.Background(), "what is your refund policy?", "policies")
	require.NoError(t, err)
	assert.False(t, resp.Suppressed)
	assert.Equal(t, "publish", resp.Band)
	assert.Contains(t, resp.Text, "full refund")
	require.Len(t, resp.Citations, 1)
	assert.Equal(t, "c1", resp.Citations[0].ChunkID)
}

func TestAnswerSuppressesWhenGenerationUnsupported(t *testing.T) {
	content := "Cancellations made more than 24 hours before the appointment receive a full refund."
	index := &fakeIndex{
		vectorResults:  []vectorindex.ScoredChunk{scoredChunk("c1", content, 0.92)},
		keywordResults: []vectorindex.ScoredChunk{scoredChunk("c1", content, 0.92)},
	}
	llmReply := "Our technicians are certified master electricians with decades of combined aerospace experience."
	agent := New(index, &fakeEmbedder{vector: []float32{0.1, 0.2}}, &fakeLLM{reply: llmReply}, newTestConfigStore(t))

	resp, err := agent.Answer(context.Background(), "what is your refund policy?", "policies")
	require.NoError(t, err)
	assert.True(t, resp.Suppressed)
	assert.Equal(t, "suppress", resp.Band)
	assert.Equal(t, noInformationResponse, resp.Text)
}

func TestFuseRRFCombinesOverlappingResults(t *testing.T) {
	vectorResults := []vectorindex.ScoredChunk{chunk("a", "alpha"), chunk("b", "beta")}
	keywordResults := []vectorindex.ScoredChunk{chunk("b", "beta"), chunk("c", "gamma")}

	fused := fuseRRF(vectorResults, keywordResults)
	require.Len(t, fused, 3)
	assert.Equal(t, "b", fused[0].ID, "chunk ranked in both legs should fuse to the top score")
}

func TestFuseRRFEmptyInputs(t *testing.T) {
	fused := fuseRRF(nil, nil)
	assert.Empty(t, fused)
}
