// Package priority computes the priority-queue score and SLA risk band for
// a flagged turn (spec §4.10), and redacts PII in queue entries read by a
// reviewer without full_access.
package priority

import (
	"time"

	"github.com/convergeai/core/internal/config"
)

const (
	weightConfidence = 0.40
	weightSentiment  = 0.30
	weightTimeDecay  = 0.20
	weightHistory    = 0.10

	// timeDecayWindow is the age at which the time-decay term saturates at
	// its maximum contribution; older items don't score higher still.
	timeDecayWindow = 60 * time.Minute
)

// ScoreInputs are the four factors behind a priority score. Callers (task
// agents, the coordinator) compute these from the turn and the user's
// history before raising a queue entry.
type ScoreInputs struct {
	IntentConfidence float64 // 0..1
	SentimentScore   float64 // -1 (very negative) .. 1 (very positive)
	Age              time.Duration
	UserHistoryFactor float64 // 0..1, e.g. fraction of the user's recent turns that were escalations
}

// Score computes priority_score = (confidence*0.40 + urgency*0.30 +
// decay*0.20 + history*0.10) * 100. Sentiment is inverted into an urgency
// term since a negative sentiment score should raise priority, not lower it.
func Score(in ScoreInputs) float64 {
	confidence := clamp01(in.IntentConfidence)
	urgency := clamp01((1 - in.SentimentScore) / 2)
	decay := clamp01(float64(in.Age) / float64(timeDecayWindow))
	history := clamp01(in.UserHistoryFactor)

	return (confidence*weightConfidence + urgency*weightSentiment + decay*weightTimeDecay + history*weightHistory) * 100
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// SLARisk classifies how close a flagged entry is to breaching its expected
// response time.
type SLARisk string

const (
	SLAOnTrack  SLARisk = "on_track"
	SLAAtRisk   SLARisk = "at_risk"
	SLABreached SLARisk = "breached"
)

// ClassifySLA compares the elapsed time since createdTs against the
// intent's expected response budget plus the configured buffer.
func ClassifySLA(cfg *config.Store, intentKind string, createdTs int64, now time.Time) SLARisk {
	expected := time.Duration(cfg.ExpectedResponseMinutes(intentKind)) * time.Minute
	buffer := time.Duration(cfg.SLABufferHours()) * time.Hour
	elapsed := now.Sub(time.Unix(createdTs, 0))

	switch {
	case elapsed <= expected:
		return SLAOnTrack
	case elapsed <= expected+buffer:
		return SLAAtRisk
	default:
		return SLABreached
	}
}
