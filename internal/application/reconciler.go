package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/mirrorctl/internal/domain"
	"github.com/bnema/mirrorctl/internal/ports"
)

const (
	loopRefresh  = "refresh"
	loopSessions = "sessions"
	loopStats    = "stats"
)

type inflightView interface {
	DeviceBusy(id domain.DeviceID) bool
	StopAllInFlight() bool
}

// Reconciler replaces the registries with fresh backend snapshots and decides
// what the differences mean.
type Reconciler struct {
	backend  ports.Backend
	devices  *DeviceRegistry
	sessions *SessionRegistry
	intents  *IntentLedger
	inflight inflightView
	poller   *StatusPoller
	notifier ports.Notifier
	clock    ports.Clock
	log      zerolog.Logger

	fullMu  sync.Mutex
	sessMu  sync.Mutex
	statsMu sync.Mutex
	applyMu sync.Mutex

	stateMu   sync.RWMutex
	stats     domain.ProcessStats
	statsAt   time.Time
	updatedAt time.Time
	failing   map[string]error
}

func NewReconciler(
	backend ports.Backend,
	devices *DeviceRegistry,
	sessions *SessionRegistry,
	intents *IntentLedger,
	inflight inflightView,
	poller *StatusPoller,
	notifier ports.Notifier,
	clock ports.Clock,
	log zerolog.Logger,
) *Reconciler {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if notifier == nil {
		notifier = discardNotifier{}
	}

	r := &Reconciler{
		backend:  backend,
		devices:  devices,
		sessions: sessions,
		intents:  intents,
		inflight: inflight,
		poller:   poller,
		notifier: notifier,
		clock:    clock,
		log:      log.With().Str("component", "reconciler").Logger(),
		failing:  map[string]error{},
	}
	devices.OnChange(r.onDevicesChanged)

	return r
}

// Full fetches devices and sessions together and swaps both registries. On
// failure both snapshots are left as they were.
func (r *Reconciler) Full(ctx context.Context) error {
	if !r.fullMu.TryLock() {
		return fmt.Errorf("full refresh: %w", domain.ErrBusy)
	}
	defer r.fullMu.Unlock()

	issued := r.intents.Seq()

	var (
		devices  []domain.Device
		sessions []domain.MirrorSession
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		devices, err = r.backend.ScanDevices(gctx)
		if err != nil {
			return fmt.Errorf("scan devices: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		sessions, err = r.backend.ListActiveSessions(gctx)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		r.failed(loopRefresh, err)
		return err
	}

	r.applyMu.Lock()
	r.devices.Replace(devices)
	r.applySessionsLocked(issued, sessions)
	r.applyMu.Unlock()

	r.succeeded(loopRefresh)
	return nil
}

// SessionsOnly refreshes mirroring state without rescanning devices.
func (r *Reconciler) SessionsOnly(ctx context.Context) error {
	if !r.sessMu.TryLock() {
		return fmt.Errorf("session refresh: %w", domain.ErrBusy)
	}
	defer r.sessMu.Unlock()

	issued := r.intents.Seq()
	sessions, err := r.backend.ListActiveSessions(ctx)
	if err != nil {
		err = fmt.Errorf("list sessions: %w", err)
		r.failed(loopSessions, err)
		return err
	}

	r.applyMu.Lock()
	r.applySessionsLocked(issued, sessions)
	r.applyMu.Unlock()

	r.succeeded(loopSessions)
	return nil
}

func (r *Reconciler) Stats(ctx context.Context) error {
	if !r.statsMu.TryLock() {
		return fmt.Errorf("stats refresh: %w", domain.ErrBusy)
	}
	defer r.statsMu.Unlock()

	stats, err := r.backend.GetProcessStats(ctx)
	if err != nil {
		err = fmt.Errorf("process stats: %w", err)
		r.failed(loopStats, err)
		return err
	}

	r.stateMu.Lock()
	r.stats = stats
	r.statsAt = r.clock.Now()
	r.stateMu.Unlock()

	r.succeeded(loopStats)
	return nil
}

func (r *Reconciler) ProcessStats() (domain.ProcessStats, time.Time) {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()

	return r.stats, r.statsAt
}

func (r *Reconciler) UpdatedAt() time.Time {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()

	return r.updatedAt
}

// LastError returns the error of a loop that is currently failing, if any.
func (r *Reconciler) LastError() error {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()

	for _, loop := range []string{loopRefresh, loopSessions, loopStats} {
		if err := r.failing[loop]; err != nil {
			return err
		}
	}

	return nil
}

func (r *Reconciler) applySessionsLocked(issued Seq, fetched []domain.MirrorSession) {
	next := make([]domain.MirrorSession, 0, len(fetched))
	seen := make(map[domain.SessionID]bool, len(fetched))
	reported := make(map[domain.SessionID]bool, len(fetched))

	for _, session := range fetched {
		reported[session.ID] = true
		if r.intents.Superseded(session.ID, issued) {
			continue
		}
		if device, flagged := r.intents.VanishedDevice(session.ID); flagged {
			if _, present := r.devices.Get(device); !present {
				continue
			}
			r.intents.ClearVanished(session.ID)
		}
		seen[session.ID] = true
		r.intents.ConfirmStart(session.ID)
		next = append(next, session)
	}

	for _, pending := range r.intents.PendingStarts() {
		if seen[pending.Session.ID] {
			continue
		}
		if pending.Seq > issued {
			// Fetch predates the start; keep the optimistic entry.
			next = append(next, pending.Session)
			continue
		}
		r.intents.ConfirmStart(pending.Session.ID)
	}

	delta := r.sessions.Replace(next)

	for _, session := range delta.Removed {
		r.poller.Drop(session.ID)
		if r.endedWithDevice(session) {
			r.notifier.Notify(newNotification(r.clock, domain.EventSessionEnded,
				fmt.Sprintf("Mirroring on %s ended, device removed", session.DeviceID),
				withDevice(session.DeviceID), withSession(session.ID)))
			continue
		}
		if r.explained(session) {
			r.log.Debug().Str("session_id", string(session.ID)).Msg("session removal explained by local intent")
			continue
		}

		r.log.Warn().
			Str("session_id", string(session.ID)).
			Str("device_id", string(session.DeviceID)).
			Msg("session disappeared without a stop or crash")
		r.notifier.Notify(newNotification(r.clock, domain.EventSessionVanished,
			fmt.Sprintf("Mirroring session on %s ended unexpectedly", session.DeviceID),
			withDevice(session.DeviceID), withSession(session.ID)))
	}

	for _, id := range r.intents.VanishedSessions() {
		if !reported[id] {
			r.intents.ClearVanished(id)
		}
	}
}

// endedWithDevice reports whether session is leaving only because its device
// vanished. Stops and crashes announce themselves.
func (r *Reconciler) endedWithDevice(session domain.MirrorSession) bool {
	if _, flagged := r.intents.VanishedDevice(session.ID); !flagged {
		return false
	}

	return !r.intents.StopRequested(session.ID) && !r.intents.Crashed(session.ID)
}

func (r *Reconciler) explained(session domain.MirrorSession) bool {
	if r.intents.Explains(session.ID) {
		return true
	}
	if r.inflight == nil {
		return false
	}

	return r.inflight.DeviceBusy(session.DeviceID) || r.inflight.StopAllInFlight()
}

func (r *Reconciler) onDevicesChanged(delta DeviceDelta) {
	now := r.clock.Now()
	for _, id := range delta.Removed {
		for _, session := range r.sessions.ListByDevice(id) {
			r.intents.FlagVanished(session.ID, id, now)
			r.log.Info().
				Str("device_id", string(id)).
				Str("session_id", string(session.ID)).
				Msg("device vanished, flagging its session for cleanup")
		}
	}

	if delta.Initial {
		return
	}
	for _, id := range delta.Added {
		r.notifier.Notify(newNotification(r.clock, domain.EventDeviceAdded,
			fmt.Sprintf("Device %s found", r.label(id)), withDevice(id)))
	}
	for _, id := range delta.Removed {
		r.notifier.Notify(newNotification(r.clock, domain.EventDeviceRemoved,
			fmt.Sprintf("Device %s removed", id), withDevice(id)))
	}
	for _, id := range delta.StatusChanged {
		device, _ := r.devices.Get(id)
		r.notifier.Notify(newNotification(r.clock, domain.EventDeviceStatusChanged,
			fmt.Sprintf("Device %s is now %s", device.DisplayName(), device.Status), withDevice(id)))
	}
}

func (r *Reconciler) label(id domain.DeviceID) string {
	if device, ok := r.devices.Get(id); ok {
		return device.DisplayName()
	}

	return string(id)
}

func (r *Reconciler) failed(loop string, err error) {
	r.stateMu.Lock()
	_, already := r.failing[loop]
	r.failing[loop] = err
	r.stateMu.Unlock()

	r.log.Error().Err(err).Str("loop", loop).Msg("reconciliation fetch failed, keeping previous snapshot")
	if already {
		return
	}

	r.notifier.Notify(newNotification(r.clock, domain.EventRefreshFailed,
		fmt.Sprintf("Refreshing %s failed: %v", loop, err), withError(err)))
}

func (r *Reconciler) succeeded(loop string) {
	r.stateMu.Lock()
	_, wasFailing := r.failing[loop]
	delete(r.failing, loop)
	if loop != loopStats {
		r.updatedAt = r.clock.Now()
	}
	r.stateMu.Unlock()

	if wasFailing {
		r.log.Info().Str("loop", loop).Msg("reconciliation recovered")
		r.notifier.Notify(newNotification(r.clock, domain.EventRefreshRecovered,
			fmt.Sprintf("Refreshing %s recovered", loop)))
	}
}
