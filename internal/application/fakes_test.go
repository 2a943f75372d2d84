package application

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/mirrorctl/internal/domain"
	"github.com/bnema/mirrorctl/internal/ports"
)

var testLog = zerolog.Nop()

type fakeTicker struct {
	interval time.Duration
	ch       chan time.Time
	mu       sync.Mutex
	stopped  bool
}

func (t *fakeTicker) Chan() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) NewTicker(d time.Duration) ports.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTicker{interval: d, ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

// Tick fires every live ticker created with interval d.
func (c *fakeClock) Tick(d time.Duration) {
	c.mu.Lock()
	now := c.now
	tickers := append([]*fakeTicker(nil), c.tickers...)
	c.mu.Unlock()

	for _, t := range tickers {
		if t.interval != d || t.isStopped() {
			continue
		}
		select {
		case t.ch <- now:
		default:
		}
	}
}

func (c *fakeClock) liveTickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.tickers {
		if !t.isStopped() {
			n++
		}
	}
	return n
}

// fakeBackend is a scripted, concurrency-safe ports.Backend.
type fakeBackend struct {
	mu          sync.Mutex
	devices     []domain.Device
	sessions    []domain.MirrorSession
	stats       domain.ProcessStats
	scanErr     error
	listErr     error
	statusErr   error
	statuses    map[domain.SessionID][]domain.SessionStatus
	statusCalls map[domain.SessionID]int
	nextSession domain.SessionID
	startErr    error
	startGate   chan struct{}
	scans       int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		statuses:    map[domain.SessionID][]domain.SessionStatus{},
		statusCalls: map[domain.SessionID]int{},
	}
}

func (b *fakeBackend) setDevices(devices ...domain.Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = devices
}

func (b *fakeBackend) setSessions(sessions ...domain.MirrorSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions = sessions
}

func (b *fakeBackend) setScanErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scanErr = err
}

func (b *fakeBackend) script(id domain.SessionID, statuses ...domain.SessionStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses[id] = statuses
}

func (b *fakeBackend) calls(id domain.SessionID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusCalls[id]
}

func (b *fakeBackend) ScanDevices(context.Context) ([]domain.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scans++
	if b.scanErr != nil {
		return nil, b.scanErr
	}
	return append([]domain.Device(nil), b.devices...), nil
}

func (b *fakeBackend) ConnectWireless(context.Context, string) error { return nil }

func (b *fakeBackend) DisconnectDevice(context.Context, domain.DeviceID) error { return nil }

func (b *fakeBackend) EnableWirelessMode(context.Context, domain.DeviceID) (string, error) {
	return "192.168.1.50", nil
}

func (b *fakeBackend) ListActiveSessions(context.Context) ([]domain.MirrorSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]domain.MirrorSession(nil), b.sessions...), nil
}

// GetSessionStatus plays the scripted statuses in order and then repeats the last one.
func (b *fakeBackend) GetSessionStatus(_ context.Context, id domain.SessionID) (domain.SessionStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.statusCalls[id]
	b.statusCalls[id] = n + 1
	if b.statusErr != nil {
		return "", b.statusErr
	}
	status := domain.SessionRunning
	if script := b.statuses[id]; len(script) > 0 {
		status = script[min(n, len(script)-1)]
	}
	if status == domain.SessionStopped {
		// Finished processes are cleaned up by the process manager.
		b.dropSessionLocked(id)
	}
	return status, nil
}

func (b *fakeBackend) dropSessionLocked(id domain.SessionID) bool {
	for i, s := range b.sessions {
		if s.ID == id {
			b.sessions = append(b.sessions[:i], b.sessions[i+1:]...)
			return true
		}
	}
	return false
}

func (b *fakeBackend) GetProcessStats(context.Context) (domain.ProcessStats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats, nil
}

func (b *fakeBackend) StartMirroring(ctx context.Context, id domain.DeviceID, _ domain.MirrorOptions) (domain.SessionID, error) {
	b.mu.Lock()
	gate := b.startGate
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.startErr != nil {
		return "", b.startErr
	}
	sid := b.nextSession
	if sid == "" {
		sid = domain.SessionID("session_" + string(id))
	}
	b.sessions = append(b.sessions, domain.MirrorSession{ID: sid, DeviceID: id})
	b.stats.TotalStarted++
	return sid, nil
}

func (b *fakeBackend) StopMirroring(_ context.Context, id domain.SessionID) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropSessionLocked(id), nil
}

func (b *fakeBackend) StopAllMirroring(context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.sessions)
	b.sessions = nil
	return n, nil
}

type recorder struct {
	mu     sync.Mutex
	events []domain.Notification
}

func (r *recorder) Notify(n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n)
}

func (r *recorder) all() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.events...)
}

func (r *recorder) count(kind domain.EventKind) int {
	n := 0
	for _, e := range r.all() {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) countLevel(level domain.NotificationLevel) int {
	n := 0
	for _, e := range r.all() {
		if e.Level == level {
			n++
		}
	}
	return n
}

func connected(id string) domain.Device {
	return domain.Device{
		ID:             domain.DeviceID(id),
		Name:           "Pixel " + id,
		Model:          "Pixel",
		ConnectionType: domain.ConnectionUSB,
		Status:         domain.DeviceConnected,
	}
}
