package repository

import (
	"testing"
	"time"

	"fund-directory/config"
	"fund-directory/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestTracker(clock *fakeClock) *connectionTracker {
	return newConnectionTracker(config.ReconnectPolicy{
		MaxAttempts:   3,
		BaseBackoff:   100 * time.Millisecond,
		MaxBackoff:    time.Second,
		ProbeInterval: 30 * time.Second,
	}, clock.Now)
}

func TestConnectionTracker_Backoff(t *testing.T) {
	tracker := newTestTracker(&fakeClock{current: time.Unix(0, 0)})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{50, time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tracker.backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

// Disconnected -> Connecting(1..3) -> Degraded -> проба -> Connected
func TestConnectionTracker_Transitions(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	tracker := newTestTracker(clock)

	assert.Equal(t, model.ConnDisconnected, tracker.snapshot().State)

	require.NoError(t, tracker.beginAttempt(false))
	status := tracker.snapshot()
	assert.Equal(t, model.ConnConnecting, status.State)
	assert.Equal(t, 1, status.Attempt)

	assert.Equal(t, model.ConnConnecting, tracker.fail(assert.AnError))
	assert.ErrorIs(t, tracker.beginAttempt(false), errNotDue)
	assert.Equal(t, 100*time.Millisecond, tracker.delay())

	clock.Advance(100 * time.Millisecond)
	require.NoError(t, tracker.beginAttempt(false))
	assert.Equal(t, 2, tracker.snapshot().Attempt)
	tracker.fail(assert.AnError)

	clock.Advance(200 * time.Millisecond)
	require.NoError(t, tracker.beginAttempt(false))
	assert.Equal(t, 3, tracker.snapshot().Attempt)
	assert.Equal(t, model.ConnDegraded, tracker.fail(assert.AnError))
	assert.Equal(t, assert.AnError.Error(), tracker.snapshot().LastError)

	// в Degraded пробы не чаще probe_interval
	assert.ErrorIs(t, tracker.beginAttempt(false), errNotDue)
	clock.Advance(29 * time.Second)
	assert.ErrorIs(t, tracker.beginAttempt(false), errNotDue)
	clock.Advance(time.Second)
	require.NoError(t, tracker.beginAttempt(false))
	assert.Equal(t, model.ConnDegraded, tracker.snapshot().State)

	tracker.succeed()
	status = tracker.snapshot()
	assert.Equal(t, model.ConnConnected, status.State)
	assert.Equal(t, 0, status.Attempt)
	assert.Empty(t, status.LastError)
	assert.True(t, tracker.connected())
}

func TestConnectionTracker_ForcedProbeInDegraded(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	tracker := newTestTracker(clock)

	for i := 0; i < 3; i++ {
		require.NoError(t, tracker.beginAttempt(true))
		tracker.fail(assert.AnError)
	}
	require.Equal(t, model.ConnDegraded, tracker.snapshot().State)

	require.NoError(t, tracker.beginAttempt(true))
	assert.Equal(t, model.ConnDegraded, tracker.fail(assert.AnError))
}

func TestConnectionTracker_OneProbeInFlight(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	tracker := newTestTracker(clock)

	require.NoError(t, tracker.beginAttempt(false))
	assert.ErrorIs(t, tracker.beginAttempt(false), model.ErrCacheProbeInFlight)
	assert.ErrorIs(t, tracker.beginAttempt(true), model.ErrCacheProbeInFlight)

	tracker.succeed()
	assert.True(t, tracker.connected())
}

func TestConnectionTracker_LostConnection(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	tracker := newTestTracker(clock)

	require.NoError(t, tracker.beginAttempt(false))
	tracker.succeed()

	tracker.lost(assert.AnError)
	status := tracker.snapshot()
	assert.Equal(t, model.ConnDisconnected, status.State)
	assert.Equal(t, assert.AnError.Error(), status.LastError)

	// переподключение разрешено сразу
	require.NoError(t, tracker.beginAttempt(false))
	assert.Equal(t, 1, tracker.snapshot().Attempt)
}

func TestConnectionTracker_Closed(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	tracker := newTestTracker(clock)

	tracker.close()
	assert.Equal(t, model.ConnClosed, tracker.snapshot().State)
	assert.ErrorIs(t, tracker.beginAttempt(true), model.ErrCacheClosed)
	assert.False(t, tracker.connected())
}
