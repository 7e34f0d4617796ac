package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergeai/core/internal/configloader"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	loader := configloader.NewLoader("../../config")
	s, err := NewStore(loader, "runtime.yaml", time.Millisecond)
	require.NoError(t, err)
	return s
}

func TestStoreReadsScalarKeys(t *testing.T) {
	s := newTestStore(t)

	assert.Equal(t, "pending", s.DefaultStatusFilter())
	assert.Equal(t, 2, s.SLABufferHours())
	assert.Equal(t, 120, s.MaxExpandPerHour())
	assert.True(t, s.EnableAutoEnrichment())
}

func TestGroundingBandClassification(t *testing.T) {
	s := newTestStore(t)
	bands := s.Grounding()

	assert.Equal(t, "publish", bands.Band(0.70))
	assert.Equal(t, "publish", bands.Band(0.95))
	assert.Equal(t, "hedge", bands.Band(0.50))
	assert.Equal(t, "hedge", bands.Band(0.69))
	assert.Equal(t, "suppress", bands.Band(0.49))
}

func TestRefundPercentPicksMostSpecificRule(t *testing.T) {
	s := newTestStore(t)

	assert.Equal(t, 100, s.RefundPercent(48))
	assert.Equal(t, 50, s.RefundPercent(12))
	assert.Equal(t, 0, s.RefundPercent(1))
}

func TestComplaintPriorityDefaultsToMedium(t *testing.T) {
	s := newTestStore(t)

	assert.Equal(t, "HIGH", s.ComplaintPriority("no-show"))
	assert.Equal(t, "LOW", s.ComplaintPriority("delay"))
	assert.Equal(t, "MEDIUM", s.ComplaintPriority("unknown-issue"))
}

func TestExpectedResponseMinutesFallsBackToDefault(t *testing.T) {
	s := newTestStore(t)

	assert.Equal(t, 5, s.ExpectedResponseMinutes("booking_create"))
	assert.Equal(t, 15, s.ExpectedResponseMinutes("nonexistent_intent"))
}

func TestServiceAreasLoaded(t *testing.T) {
	s := newTestStore(t)

	areas := s.ServiceAreas()
	require.NotEmpty(t, areas)
	found := false
	for _, a := range areas {
		if a.Pincode == "560001" {
			found = true
		}
	}
	assert.True(t, found)
}
