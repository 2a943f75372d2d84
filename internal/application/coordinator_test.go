package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/mirrorctl/internal/domain"
)

func newTestCoordinator(t *testing.T, backend *fakeBackend, clock *fakeClock, notices *recorder) *Coordinator {
	t.Helper()

	c := NewCoordinator(backend, nil, Config{
		Clock:           clock,
		Notifier:        notices,
		Logger:          testLog,
		SessionInterval: -1,
		StatsInterval:   -1,
	})
	t.Cleanup(c.Stop)

	return c
}

func TestCoordinatorConstructionDoesNoIO(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	clock := newFakeClock()
	c := newTestCoordinator(t, backend, clock, &recorder{})

	assert.Zero(t, backend.scans)
	assert.Zero(t, clock.liveTickers())
	assert.False(t, c.Running())
	assert.Len(t, c.RunID(), 8)
}

func TestCoordinatorStartStopLifecycle(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	clock := newFakeClock()
	c := newTestCoordinator(t, backend, clock, &recorder{})

	require.NoError(t, c.Start(context.Background()))
	require.ErrorIs(t, c.Start(context.Background()), ErrCoordinatorRunning)
	assert.True(t, c.Running())
	require.Eventually(t, func() bool { return clock.liveTickers() == 1 }, waitFor, time.Millisecond)

	c.Stop()
	c.Stop()

	assert.False(t, c.Running())
	assert.Zero(t, clock.liveTickers())
	require.ErrorIs(t, c.Start(context.Background()), ErrCoordinatorStopped)
	_, err := c.SubscribeStatus("sid1", func(domain.SessionID, domain.SessionStatus) {})
	require.ErrorIs(t, err, ErrCoordinatorStopped)
}

func TestCoordinatorStopsWithContext(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := newTestCoordinator(t, newFakeBackend(), clock, &recorder{})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))
	cancel()

	require.Eventually(t, func() bool { return !c.Running() && clock.liveTickers() == 0 }, waitFor, time.Millisecond)
}

func TestCoordinatorCrashScenario(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.setDevices(connected("d1"))
	backend.nextSession = "sid1"
	backend.script("sid1", domain.SessionRunning, domain.SessionRunning, domain.SessionStopped)
	clock := newFakeClock()
	notices := &recorder{}
	c := newTestCoordinator(t, backend, clock, notices)

	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.Start(context.Background()))

	id, err := c.StartMirroring(context.Background(), StartMirroringCommand{DeviceID: "d1"})
	require.NoError(t, err)
	require.Equal(t, domain.SessionID("sid1"), id)

	require.Eventually(t, func() bool {
		clock.Tick(DefaultStatusInterval)
		return notices.count(domain.EventSessionCrashed) == 1
	}, waitFor, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		_, ok := c.Session("sid1")
		return !ok
	}, waitFor, time.Millisecond)

	for range 3 {
		clock.Tick(DefaultStatusInterval)
		clock.Tick(DefaultRefreshInterval)
		time.Sleep(2 * time.Millisecond)
	}
	assert.Equal(t, 1, notices.count(domain.EventSessionCrashed))
	assert.Zero(t, notices.count(domain.EventSessionVanished))

	crash := notices.all()
	var found domain.Notification
	for _, n := range crash {
		if n.Kind == domain.EventSessionCrashed {
			found = n
		}
	}
	assert.Equal(t, domain.LevelError, found.Level)
	assert.Equal(t, domain.SessionID("sid1"), found.SessionID)
	assert.Equal(t, domain.DeviceID("d1"), found.DeviceID)
}

func TestCoordinatorStopScenario(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.setDevices(connected("d1"))
	backend.nextSession = "sid1"
	clock := newFakeClock()
	notices := &recorder{}
	c := newTestCoordinator(t, backend, clock, notices)

	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.Start(context.Background()))
	_, err := c.StartMirroring(context.Background(), StartMirroringCommand{DeviceID: "d1"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		clock.Tick(DefaultStatusInterval)
		return backend.calls("sid1") >= 1
	}, waitFor, 5*time.Millisecond)

	require.NoError(t, c.StopMirroring(context.Background(), "sid1"))
	backend.script("sid1", domain.SessionStopped)

	for range 3 {
		clock.Tick(DefaultStatusInterval)
		clock.Tick(DefaultRefreshInterval)
		time.Sleep(2 * time.Millisecond)
	}

	assert.Zero(t, notices.count(domain.EventSessionCrashed))
	assert.Equal(t, 1, notices.count(domain.EventSessionStopped))
	assert.Zero(t, notices.count(domain.EventSessionVanished))
	_, ok := c.Session("sid1")
	assert.False(t, ok)
}

func TestCoordinatorStopAllThenRefresh(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.setDevices(connected("d1"), connected("d2"))
	clock := newFakeClock()
	notices := &recorder{}
	c := newTestCoordinator(t, backend, clock, notices)
	require.NoError(t, c.Refresh(context.Background()))

	_, err := c.StartMirroring(context.Background(), StartMirroringCommand{DeviceID: "d1"})
	require.NoError(t, err)
	_, err = c.StartMirroring(context.Background(), StartMirroringCommand{DeviceID: "d2"})
	require.NoError(t, err)

	n, err := c.StopAllMirroring(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, c.Refresh(context.Background()))

	assert.Empty(t, c.Snapshot().Sessions)
	assert.Zero(t, notices.count(domain.EventSessionCrashed))
	assert.Zero(t, notices.count(domain.EventSessionVanished))
	assert.Equal(t, 1, notices.count(domain.EventSessionsStopped))
}

func TestCoordinatorStartUsesOptionOverride(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.setDevices(connected("d1"))
	c := newTestCoordinator(t, backend, newFakeClock(), &recorder{})
	require.NoError(t, c.Refresh(context.Background()))

	opts := domain.MirrorOptions{MaxFPS: -1}
	_, err := c.StartMirroring(context.Background(), StartMirroringCommand{DeviceID: "d1", Options: &opts})
	require.ErrorIs(t, err, domain.ErrRejected)
}

func TestCoordinatorSnapshotJoinsDevicesAndSessions(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.setDevices(connected("d1"))
	backend.setSessions(mirrorSession("s1", "d1", 0), mirrorSession("s2", "gone", time.Second))
	backend.stats = domain.ProcessStats{ActiveSessions: 2, TotalStarted: 7}
	c := newTestCoordinator(t, backend, newFakeClock(), &recorder{})

	require.NoError(t, c.Refresh(context.Background()))
	snap := c.Snapshot()

	require.Len(t, snap.Sessions, 2)
	require.NotNil(t, snap.Sessions[0].Device)
	assert.Equal(t, domain.DeviceID("d1"), snap.Sessions[0].Device.ID)
	assert.Nil(t, snap.Sessions[1].Device)
	assert.Equal(t, 7, snap.Stats.TotalStarted)
	assert.Empty(t, snap.LastError)

	view, ok := snap.SessionForDevice("d1")
	require.True(t, ok)
	assert.Equal(t, domain.SessionID("s1"), view.Session.ID)
}

func TestCoordinatorEventsFanOut(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.setDevices(connected("d1"))
	c := newTestCoordinator(t, backend, newFakeClock(), &recorder{})
	require.NoError(t, c.Refresh(context.Background()))

	events, cancel := c.Events(4)
	_, err := c.StartMirroring(context.Background(), StartMirroringCommand{DeviceID: "d1"})
	require.NoError(t, err)

	select {
	case n := <-events:
		assert.Equal(t, domain.EventSessionStarted, n.Kind)
	case <-time.After(waitFor):
		t.Fatal("no event received")
	}

	cancel()
	cancel()
	_, open := <-events
	assert.False(t, open)
}

func TestCoordinatorSubscribeStatusUnknownSession(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t, newFakeBackend(), newFakeClock(), &recorder{})

	_, err := c.SubscribeStatus("ghost", func(domain.SessionID, domain.SessionStatus) {})
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}
