package scrcpy

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/mirrorctl/internal/domain"
	"github.com/bnema/mirrorctl/internal/ports"
)

type fakeProcess struct {
	pid     int
	exited  atomic.Bool
	killed  atomic.Bool
	killErr error
}

func (p *fakeProcess) Pid() int     { return p.pid }
func (p *fakeProcess) Exited() bool { return p.exited.Load() }

func (p *fakeProcess) Kill() error {
	if p.killErr != nil {
		return p.killErr
	}
	p.killed.Store(true)
	p.exited.Store(true)
	return nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time                         { return c.now }
func (c fixedClock) NewTicker(d time.Duration) ports.Ticker { return ports.SystemClock{}.NewTicker(d) }

func newTestManager(t *testing.T) (*Manager, *[]*fakeProcess, *[][]string) {
	t.Helper()

	var procs []*fakeProcess
	var argv [][]string
	m := NewManager("scrcpy", "", fixedClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}, zerolog.Nop())
	m.spawn = func(_ string, args []string, _ []string) (process, error) {
		p := &fakeProcess{pid: 100 + len(procs)}
		procs = append(procs, p)
		argv = append(argv, args)
		return p, nil
	}
	return m, &procs, &argv
}

func TestArgs(t *testing.T) {
	t.Parallel()

	args := Args("R58M", domain.MirrorOptions{MaxSize: 1024, BitRate: 4_000_000, MaxFPS: 30, AlwaysOnTop: true, StayAwake: true, TurnScreenOff: true})
	assert.Equal(t, []string{
		"-s", "R58M",
		"--max-size", "1024",
		"--video-bit-rate", "4000000",
		"--max-fps", "30",
		"--always-on-top",
		"--stay-awake",
		"--turn-screen-off",
	}, args)

	assert.Equal(t, []string{"-s", "R58M"}, Args("R58M", domain.MirrorOptions{}))
}

func TestManagerStartTracksSession(t *testing.T) {
	t.Parallel()

	m, _, argv := newTestManager(t)

	id, err := m.Start("R58M", domain.DefaultMirrorOptions())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("session_R58M_100"), id)
	assert.Equal(t, "R58M", (*argv)[0][1])

	assert.Equal(t, domain.SessionRunning, m.Status(id))
	sessions := m.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, domain.DeviceID("R58M"), sessions[0].DeviceID)
	assert.Equal(t, 2026, sessions[0].StartedAt.Year())
	assert.Equal(t, domain.ProcessStats{ActiveSessions: 1, TotalStarted: 1}, m.Stats())
}

func TestManagerSpawnFailure(t *testing.T) {
	t.Parallel()

	m := NewManager("scrcpy", "", nil, zerolog.Nop())
	m.spawn = func(string, []string, []string) (process, error) {
		return nil, ErrUnavailable
	}

	_, err := m.Start("R58M", domain.MirrorOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, 0, m.Stats().TotalStarted)
}

func TestManagerCleansUpExitedProcesses(t *testing.T) {
	t.Parallel()

	m, procs, _ := newTestManager(t)

	first, err := m.Start("R58M", domain.MirrorOptions{})
	require.NoError(t, err)
	_, err = m.Start("192.168.1.20:5555", domain.MirrorOptions{})
	require.NoError(t, err)

	(*procs)[0].exited.Store(true)

	assert.Equal(t, domain.SessionStopped, m.Status(first))
	assert.Len(t, m.Sessions(), 1)
	assert.Equal(t, domain.ProcessStats{ActiveSessions: 1, TotalStarted: 2}, m.Stats())
}

func TestManagerStop(t *testing.T) {
	t.Parallel()

	m, procs, _ := newTestManager(t)

	id, err := m.Start("R58M", domain.MirrorOptions{})
	require.NoError(t, err)

	ok, err := m.Stop(id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, (*procs)[0].killed.Load())
	assert.Empty(t, m.Sessions())

	_, err = m.Stop(id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManagerStopKillFailure(t *testing.T) {
	t.Parallel()

	m, procs, _ := newTestManager(t)

	id, err := m.Start("R58M", domain.MirrorOptions{})
	require.NoError(t, err)
	(*procs)[0].killErr = errors.New("operation not permitted")

	ok, err := m.Stop(id)
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrRejected)
}

func TestManagerStopAll(t *testing.T) {
	t.Parallel()

	m, procs, _ := newTestManager(t)

	for _, device := range []domain.DeviceID{"a", "b", "c"} {
		_, err := m.Start(device, domain.MirrorOptions{})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, m.StopAll())
	for _, p := range *procs {
		assert.True(t, p.killed.Load())
	}
	assert.Equal(t, 0, m.StopAll())
	assert.Equal(t, domain.ProcessStats{ActiveSessions: 0, TotalStarted: 3}, m.Stats())
}
