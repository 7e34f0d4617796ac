package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergeai/core/internal/configloader"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	loader := configloader.NewLoader("../../config")
	reg := NewRegistry(loader)
	require.NoError(t, reg.Reload())
	return reg
}

func TestReloadPopulatesIntents(t *testing.T) {
	reg := newTestRegistry(t)

	in, ok := reg.Intent("booking_create")
	require.True(t, ok)
	assert.Equal(t, "booking", in.OwningAgent)
	assert.Contains(t, in.RequiredEntities, "preferred_date")
}

func TestIntentsOrderedByPriorityDescending(t *testing.T) {
	reg := newTestRegistry(t)

	ordered := reg.Intents()
	require.NotEmpty(t, ordered)
	for i := 1; i < len(ordered); i++ {
		assert.GreaterOrEqual(t, ordered[i-1].Priority, ordered[i].Priority)
	}
}

func TestEntityTypeLookup(t *testing.T) {
	reg := newTestRegistry(t)

	et, ok := reg.EntityType("preferred_date")
	require.True(t, ok)
	assert.Equal(t, "relative_date_to_iso", et.Normalization)
	assert.NotEmpty(t, et.CompiledPatterns())
}

func TestUnknownLookupsReturnFalse(t *testing.T) {
	reg := newTestRegistry(t)

	_, ok := reg.Intent("does_not_exist")
	assert.False(t, ok)

	_, ok = reg.EntityType("does_not_exist")
	assert.False(t, ok)
}

func TestIsReserved(t *testing.T) {
	assert.True(t, IsReserved(IntentGreeting))
	assert.True(t, IsReserved(IntentUnclear))
	assert.False(t, IsReserved("booking_create"))
}
