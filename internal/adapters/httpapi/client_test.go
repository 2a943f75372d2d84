package httpapi

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/mirrorctl/internal/application"
	"github.com/bnema/mirrorctl/internal/domain"
)

func newTestClient(t *testing.T, coord Coordinator) *Client {
	t.Helper()

	srv := httptest.NewServer(NewServer(coord, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)

	return NewClient(srv.URL, srv.Client())
}

func TestClientSnapshot(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, newFakeCoordinator())

	snapshot, err := client.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abcd1234", snapshot.RunID)
	assert.True(t, snapshot.Running)
	require.Len(t, snapshot.Devices, 2)
	assert.Equal(t, domain.ConnectionWireless, snapshot.Devices[0].ConnectionType)
	require.Len(t, snapshot.Sessions, 1)
	require.NotNil(t, snapshot.Sessions[0].Device)
	assert.Equal(t, "Pixel 7", snapshot.Sessions[0].Device.Name)
	assert.Equal(t, domain.SessionRunning, snapshot.Sessions[0].Status)
	assert.Equal(t, 2, snapshot.Stats.TotalStarted)
	assert.True(t, snapshot.UpdatedAt.Equal(apiNow))
}

func TestClientLifecycle(t *testing.T) {
	t.Parallel()

	coord := newFakeCoordinator()
	coord.stopAll = 2
	coord.ip = "192.168.1.33"
	client := newTestClient(t, coord)
	ctx := context.Background()

	opts := domain.MirrorOptions{MaxSize: 720}
	id, err := client.StartMirroring(ctx, application.StartMirroringCommand{DeviceID: "192.168.1.20:5555", Options: &opts})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("session_192.168.1.20:5555_7"), id)
	assert.Equal(t, domain.DeviceID("192.168.1.20:5555"), coord.startCmd.DeviceID)
	require.NotNil(t, coord.startCmd.Options)
	assert.Equal(t, 720, coord.startCmd.Options.MaxSize)

	require.NoError(t, client.StopMirroring(ctx, id))
	assert.Equal(t, []domain.SessionID{id}, coord.stopped)

	count, err := client.StopAllMirroring(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, client.ConnectWireless(ctx, "10.0.0.2"))
	assert.Equal(t, "10.0.0.2", coord.connected)

	ip, err := client.EnableWireless(ctx, "R58M")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.33", ip)

	require.NoError(t, client.Refresh(ctx))
}

func TestClientPreservesErrorKinds(t *testing.T) {
	t.Parallel()

	coord := newFakeCoordinator()
	coord.startErr = fmt.Errorf("start R58M: %w", domain.ErrSessionActive)
	client := newTestClient(t, coord)

	_, err := client.StartMirroring(context.Background(), application.StartMirroringCommand{DeviceID: "R58M"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBusy)
	assert.Contains(t, err.Error(), "start R58M")

	err = client.DisconnectDevice(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClientUnreachableServerIsTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(nil)
	addr := srv.URL
	srv.Close()

	_, err := NewClient(addr, nil).Snapshot(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestClientEvents(t *testing.T) {
	t.Parallel()

	coord := newFakeCoordinator()
	client := newTestClient(t, coord)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := client.Events(ctx)
	require.NoError(t, err)

	coord.events <- domain.Notification{ID: "n1", Kind: domain.EventSessionCrashed, Level: domain.LevelError, Message: "Mirroring on Pixel 7 stopped unexpectedly", SessionID: "s1", At: apiNow}

	select {
	case n := <-events:
		assert.Equal(t, domain.EventSessionCrashed, n.Kind)
		assert.Equal(t, domain.LevelError, n.Level)
		assert.Equal(t, domain.SessionID("s1"), n.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
