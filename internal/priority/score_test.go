package priority

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergeai/core/internal/config"
	"github.com/convergeai/core/internal/configloader"
)

func newTestConfigStore(t *testing.T) *config.Store {
	t.Helper()
	loader := configloader.NewLoader("../../config")
	s, err := config.NewStore(loader, "runtime.yaml", time.Millisecond)
	require.NoError(t, err)
	return s
}

func TestScoreWeightsConfidenceSentimentDecayAndHistory(t *testing.T) {
	high := Score(ScoreInputs{
		IntentConfidence:  1.0,
		SentimentScore:    -1.0,
		Age:               2 * timeDecayWindow,
		UserHistoryFactor: 1.0,
	})
	assert.InDelta(t, 100.0, high, 0.001)

	low := Score(ScoreInputs{
		IntentConfidence:  0,
		SentimentScore:    1.0,
		Age:               0,
		UserHistoryFactor: 0,
	})
	assert.InDelta(t, 0.0, low, 0.001)
}

func TestScoreIsMonotonicInEachFactor(t *testing.T) {
	base := ScoreInputs{IntentConfidence: 0.5, SentimentScore: 0, Age: 10 * time.Minute, UserHistoryFactor: 0.2}
	baseScore := Score(base)

	moreConfident := base
	moreConfident.IntentConfidence = 0.9
	assert.Greater(t, Score(moreConfident), baseScore)

	moreNegative := base
	moreNegative.SentimentScore = -0.8
	assert.Greater(t, Score(moreNegative), baseScore)

	older := base
	older.Age = 50 * time.Minute
	assert.Greater(t, Score(older), baseScore)
}

func TestScoreClampsOutOfRangeInputs(t *testing.T) {
	s := Score(ScoreInputs{IntentConfidence: 5, SentimentScore: -5, Age: 10 * timeDecayWindow, UserHistoryFactor: 5})
	assert.InDelta(t, 100.0, s, 0.001)
}

func TestClassifySLAOnTrackWithinExpectedWindow(t *testing.T) {
	cfg := newTestConfigStore(t)
	now := time.Now()
	created := now.Add(-1 * time.Minute).Unix()

	assert.Equal(t, SLAOnTrack, ClassifySLA(cfg, "booking_status", created, now))
}

func TestClassifySLAAtRiskWithinBuffer(t *testing.T) {
	cfg := newTestConfigStore(t)
	now := time.Now()
	// booking_create expects 5 minutes, sla_buffer_hours is 2.
	created := now.Add(-90 * time.Minute).Unix()

	assert.Equal(t, SLAAtRisk, ClassifySLA(cfg, "booking_create", created, now))
}

func TestClassifySLABreachedPastBuffer(t *testing.T) {
	cfg := newTestConfigStore(t)
	now := time.Now()
	created := now.Add(-5 * time.Hour).Unix()

	assert.Equal(t, SLABreached, ClassifySLA(cfg, "booking_create", created, now))
}
