package cmd

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/mirrorctl/internal/application"
	"github.com/bnema/mirrorctl/internal/domain"
)

const waitTimeout = 5 * time.Second

func TestWaitForSessionExitPaths(t *testing.T) {
	t.Parallel()

	const (
		id     = domain.SessionID("session_d1_42")
		device = domain.DeviceID("d1")
	)

	tests := []struct {
		name    string
		events  []domain.Notification
		wantErr string
	}{
		{
			name:    "crash",
			events:  []domain.Notification{{Kind: domain.EventSessionCrashed, SessionID: id, Message: "Mirroring on d1 stopped unexpectedly"}},
			wantErr: "stopped unexpectedly",
		},
		{
			name:    "vanish",
			events:  []domain.Notification{{Kind: domain.EventSessionVanished, SessionID: id, Message: "Mirroring session on d1 ended unexpectedly"}},
			wantErr: "ended unexpectedly",
		},
		{
			name:    "session ended with its device",
			events:  []domain.Notification{{Kind: domain.EventSessionEnded, SessionID: id, DeviceID: device, Message: "Mirroring on d1 ended, device removed"}},
			wantErr: "device removed",
		},
		{
			name:    "unplug",
			events:  []domain.Notification{{Kind: domain.EventDeviceRemoved, DeviceID: device, Message: "Device d1 removed"}},
			wantErr: "device d1 removed while mirroring",
		},
		{
			name:   "stopped",
			events: []domain.Notification{{Kind: domain.EventSessionStopped, SessionID: id}},
		},
		{
			name:   "stop all",
			events: []domain.Notification{{Kind: domain.EventSessionsStopped, Message: "Stopped 1 session(s)"}},
		},
		{
			name: "unrelated events are skipped",
			events: []domain.Notification{
				{Kind: domain.EventDeviceRemoved, DeviceID: "d2"},
				{Kind: domain.EventSessionCrashed, SessionID: "session_d2_7"},
				{Kind: domain.EventDeviceAdded, DeviceID: "d3"},
				{Kind: domain.EventSessionStopped, SessionID: id},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			events := make(chan domain.Notification, len(tt.events))
			for _, n := range tt.events {
				events <- n
			}

			interrupted, err := waitForSession(context.Background(), events, id, device)
			assert.False(t, interrupted)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWaitForSessionInterrupt(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	interrupted, err := waitForSession(ctx, make(chan domain.Notification), "session_d1_42", "d1")
	require.NoError(t, err)
	assert.True(t, interrupted)
}

func TestWaitForSessionClosedStream(t *testing.T) {
	t.Parallel()

	events := make(chan domain.Notification)
	close(events)

	interrupted, err := waitForSession(context.Background(), events, "session_d1_42", "d1")
	require.NoError(t, err)
	assert.False(t, interrupted)
}

func TestWaitForSessionStreamClosedByInterrupt(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	events := make(chan domain.Notification)
	close(events)

	for range 20 {
		interrupted, err := waitForSession(ctx, events, "session_d1_42", "d1")
		require.NoError(t, err)
		assert.True(t, interrupted)
	}
}

func TestRunAndWaitReturnsWhenDeviceIsUnplugged(t *testing.T) {
	t.Parallel()

	backend := newWaitBackend("d1")
	result, _ := startWaiting(t, context.Background(), backend)

	backend.unplug()

	err := awaitResult(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "removed")
}

func TestRunAndWaitReturnsOnCrash(t *testing.T) {
	t.Parallel()

	backend := newWaitBackend("d1")
	result, _ := startWaiting(t, context.Background(), backend)

	require.Eventually(t, func() bool { return backend.statusPolls() >= 2 }, waitTimeout, 5*time.Millisecond)
	backend.setStatus(domain.SessionStopped)

	err := awaitResult(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped unexpectedly")
}

func TestRunAndWaitStopsSessionOnInterrupt(t *testing.T) {
	t.Parallel()

	backend := newWaitBackend("d1")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	result, out := startWaiting(t, ctx, backend)

	cancel()

	require.NoError(t, awaitResult(t, result))
	assert.Equal(t, []domain.SessionID{"session_d1_1"}, backend.stoppedSessions())
	assert.Contains(t, out.String(), "Mirroring stopped")
}

// startWaiting runs runAndWait in the background and returns once the
// session is up.
func startWaiting(t *testing.T, ctx context.Context, backend *waitBackend) (<-chan error, *syncBuffer) {
	t.Helper()

	a := &app{
		config: appConfig{
			RefreshInterval: 10 * time.Millisecond,
			// Full refreshes only, so an unplug is seen as one device and session change.
			SessionInterval: -1,
			StatusInterval:  10 * time.Millisecond,
			StatsInterval:   10 * time.Millisecond,
		},
		log:     zerolog.Nop(),
		backend: backend,
	}
	ctrl := localController{a.newCoordinator(zerolog.Nop())}
	t.Cleanup(ctrl.Close)
	require.NoError(t, ctrl.Refresh(ctx))

	out := &syncBuffer{}
	cmd := &cobra.Command{}
	cmd.SetContext(ctx)
	cmd.SetOut(out)

	result := make(chan error, 1)
	go func() {
		result <- runAndWait(cmd, ctrl, application.StartMirroringCommand{DeviceID: "d1"})
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "interrupt to stop")
	}, waitTimeout, 5*time.Millisecond)

	return result, out
}

func awaitResult(t *testing.T, result <-chan error) error {
	t.Helper()

	select {
	case err := <-result:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("runAndWait did not return")
		return nil
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// waitBackend is one USB device whose scrcpy session lives and dies on command.
type waitBackend struct {
	mu       sync.Mutex
	devices  []domain.Device
	sessions []domain.MirrorSession
	status   domain.SessionStatus
	polls    int
	stopped  []domain.SessionID
}

func newWaitBackend(id domain.DeviceID) *waitBackend {
	return &waitBackend{
		devices: []domain.Device{{
			ID:             id,
			Name:           "Pixel 7",
			Model:          "Pixel 7",
			ConnectionType: domain.ConnectionUSB,
			Status:         domain.DeviceConnected,
		}},
		status: domain.SessionRunning,
	}
}

func (b *waitBackend) unplug() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = nil
	b.sessions = nil
}

func (b *waitBackend) setStatus(status domain.SessionStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = status
}

func (b *waitBackend) statusPolls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.polls
}

func (b *waitBackend) stoppedSessions() []domain.SessionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.SessionID(nil), b.stopped...)
}

func (b *waitBackend) ScanDevices(context.Context) ([]domain.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Device(nil), b.devices...), nil
}

func (b *waitBackend) ConnectWireless(context.Context, string) error { return nil }

func (b *waitBackend) DisconnectDevice(context.Context, domain.DeviceID) error { return nil }

func (b *waitBackend) EnableWirelessMode(context.Context, domain.DeviceID) (string, error) {
	return "", domain.ErrRejected
}

func (b *waitBackend) ListActiveSessions(context.Context) ([]domain.MirrorSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.MirrorSession(nil), b.sessions...), nil
}

func (b *waitBackend) GetSessionStatus(context.Context, domain.SessionID) (domain.SessionStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.polls++
	return b.status, nil
}

func (b *waitBackend) GetProcessStats(context.Context) (domain.ProcessStats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return domain.ProcessStats{ActiveSessions: len(b.sessions), TotalStarted: len(b.sessions)}, nil
}

func (b *waitBackend) StartMirroring(_ context.Context, id domain.DeviceID, _ domain.MirrorOptions) (domain.SessionID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	session := domain.MirrorSession{ID: domain.SessionID("session_" + string(id) + "_1"), DeviceID: id, StartedAt: time.Now()}
	b.sessions = append(b.sessions, session)
	return session.ID, nil
}

func (b *waitBackend) StopMirroring(_ context.Context, id domain.SessionID) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = append(b.stopped, id)
	b.sessions = nil
	return true, nil
}

func (b *waitBackend) StopAllMirroring(context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := len(b.sessions)
	b.sessions = nil
	return count, nil
}
