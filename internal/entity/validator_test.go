package entity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convergeai/core/internal/config"
	"github.com/convergeai/core/internal/configloader"
)

func newTestConfig(t *testing.T) *config.Store {
	t.Helper()
	loader := configloader.NewLoader("../../config")
	s, err := config.NewStore(loader, "runtime.yaml", time.Millisecond)
	require.NoError(t, err)
	return s
}

func TestValidateDateWithinWindow(t *testing.T) {
	reg := newTestRegistry(t)
	cfg := newTestConfig(t)
	v := NewValidator(reg, cfg, nil)
	v.clock = fixedClock(time.Date(2026, 7, 31, 23, 59, 0, 0, time.UTC))

	result, err := v.Validate(context.Background(), "preferred_date", "2026-07-31", "")
	require.NoError(t, err)
	assert.True(t, result.IsValid)

	result, err = v.Validate(context.Background(), "preferred_date", "2026-10-31", "")
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.NotEmpty(t, result.Suggestions)
}

func TestValidateServiceHoursBoundaries(t *testing.T) {
	reg := newTestRegistry(t)
	cfg := newTestConfig(t)
	v := NewValidator(reg, cfg, nil)

	ok, err := v.Validate(context.Background(), "preferred_time", "07:59", "")
	require.NoError(t, err)
	assert.False(t, ok.IsValid)

	ok, err = v.Validate(context.Background(), "preferred_time", "08:00", "")
	require.NoError(t, err)
	assert.True(t, ok.IsValid)

	ok, err = v.Validate(context.Background(), "preferred_time", "20:00", "")
	require.NoError(t, err)
	assert.True(t, ok.IsValid)

	ok, err = v.Validate(context.Background(), "preferred_time", "20:01", "")
	require.NoError(t, err)
	assert.False(t, ok.IsValid)
}

func TestValidateKnownServiceArea(t *testing.T) {
	reg := newTestRegistry(t)
	cfg := newTestConfig(t)
	v := NewValidator(reg, cfg, nil)

	result, err := v.Validate(context.Background(), "location", "560001", "")
	require.NoError(t, err)
	assert.True(t, result.IsValid)

	result, err = v.Validate(context.Background(), "location", "999999", "")
	require.NoError(t, err)
	assert.False(t, result.IsValid)
}

func TestValidateBookingExistsUsesLookup(t *testing.T) {
	reg := newTestRegistry(t)
	cfg := newTestConfig(t)
	v := NewValidator(reg, cfg, func(ctx context.Context, bookingID, userID string) (bool, error) {
		return bookingID == "ORD12AB34CD", nil
	})

	result, err := v.Validate(context.Background(), "booking_id", "ORD12AB34CD", "user-1")
	require.NoError(t, err)
	assert.True(t, result.IsValid)

	result, err = v.Validate(context.Background(), "booking_id", "ORD00000000", "user-1")
	require.NoError(t, err)
	assert.False(t, result.IsValid)
}

func TestValidateKnownServiceCatalogIsCaseInsensitive(t *testing.T) {
	reg := newTestRegistry(t)
	cfg := newTestConfig(t)
	v := NewValidator(reg, cfg, nil)

	result, err := v.Validate(context.Background(), "service_type", "Plumbing", "")
	require.NoError(t, err)
	assert.True(t, result.IsValid)

	result, err = v.Validate(context.Background(), "service_type", "roofing", "")
	require.NoError(t, err)
	assert.False(t, result.IsValid)
}

func TestValidateNonEmptyDescription(t *testing.T) {
	reg := newTestRegistry(t)
	cfg := newTestConfig(t)
	v := NewValidator(reg, cfg, nil)

	result, err := v.Validate(context.Background(), "description", "", "")
	require.NoError(t, err)
	assert.False(t, result.IsValid)

	result, err = v.Validate(context.Background(), "description", "technician never arrived", "")
	require.NoError(t, err)
	assert.True(t, result.IsValid)
}

func TestValidateUnknownEntityTypeErrors(t *testing.T) {
	reg := newTestRegistry(t)
	cfg := newTestConfig(t)
	v := NewValidator(reg, cfg, nil)

	_, err := v.Validate(context.Background(), "not_a_real_type", "x", "")
	assert.Error(t, err)
}
