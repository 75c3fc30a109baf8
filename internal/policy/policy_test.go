package policy

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDueDate(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	p := New(DefaultMaxWindow)

	tests := []struct {
		name      string
		requested time.Time
		reason    Reason
	}{
		{name: "exactly now", requested: now},
		{name: "exactly now plus 7 days", requested: now.Add(7 * 24 * time.Hour)},
		{name: "three days out", requested: now.Add(3 * 24 * time.Hour)},
		{name: "one second in the past", requested: now.Add(-time.Second), reason: ReasonPastDate},
		{name: "one second past the window", requested: now.Add(7*24*time.Hour + time.Second), reason: ReasonExceedsMaxWindow},
		{name: "a month out", requested: now.AddDate(0, 1, 0), reason: ReasonExceedsMaxWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.ValidateDueDate(tt.requested, now)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			var rejected *RejectedError
			require.True(t, errors.As(err, &rejected))
			assert.Equal(t, tt.reason, rejected.Reason)
			assert.NotEmpty(t, rejected.Error())
		})
	}
}

func TestZeroPolicyUsesDefaultWindow(t *testing.T) {
	now := time.Now()
	var p Policy

	assert.Equal(t, now.Add(DefaultMaxWindow), p.LatestDueDate(now))
	assert.NoError(t, p.ValidateDueDate(now.Add(DefaultMaxWindow), now))
}

func TestFromDays(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := FromDays(14)

	assert.NoError(t, p.ValidateDueDate(now.AddDate(0, 0, 14), now))
	assert.Error(t, p.ValidateDueDate(now.AddDate(0, 0, 15), now))

	assert.Equal(t, DefaultMaxWindow, FromDays(0).MaxWindow)
}

func TestIsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.True(t, IsOverdue(now.Add(-time.Nanosecond), now))
	assert.False(t, IsOverdue(now, now))
	assert.False(t, IsOverdue(now.Add(time.Hour), now))
}

func TestOnDay(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 15, 30, 0, time.UTC)
	p := New(DefaultMaxWindow)

	t.Run("today resolves to now", func(t *testing.T) {
		day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, now, OnDay(day, now))
		assert.NoError(t, p.ValidateDueDate(OnDay(day, now), now))
	})

	t.Run("last day of the window is accepted", func(t *testing.T) {
		day := time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC)
		assert.NoError(t, p.ValidateDueDate(OnDay(day, now), now))
	})

	t.Run("day after the window is rejected", func(t *testing.T) {
		day := time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC)
		assert.Error(t, p.ValidateDueDate(OnDay(day, now), now))
	})

	t.Run("yesterday is rejected", func(t *testing.T) {
		day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
		assert.Error(t, p.ValidateDueDate(OnDay(day, now), now))
	})
}
