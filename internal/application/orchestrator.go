package application

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bnema/mirrorctl/internal/domain"
	"github.com/bnema/mirrorctl/internal/ports"
)

const stopAllKey = "*"

// Orchestrator serializes lifecycle operations. Each device admits one
// operation at a time and a conflicting call fails fast with domain.ErrBusy.
// stop-all conflicts with every other operation.
type Orchestrator struct {
	backend  ports.Backend
	devices  *DeviceRegistry
	sessions *SessionRegistry
	intents  *IntentLedger
	notifier ports.Notifier
	clock    ports.Clock
	log      zerolog.Logger

	mu       sync.Mutex
	inflight map[string]string
}

func NewOrchestrator(
	backend ports.Backend,
	devices *DeviceRegistry,
	sessions *SessionRegistry,
	intents *IntentLedger,
	notifier ports.Notifier,
	clock ports.Clock,
	log zerolog.Logger,
) *Orchestrator {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if notifier == nil {
		notifier = discardNotifier{}
	}

	return &Orchestrator{
		backend:  backend,
		devices:  devices,
		sessions: sessions,
		intents:  intents,
		notifier: notifier,
		clock:    clock,
		log:      log.With().Str("component", "orchestrator").Logger(),
		inflight: map[string]string{},
	}
}

func (o *Orchestrator) acquire(key, op string) (func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if pending, ok := o.inflight[stopAllKey]; ok {
		return nil, fmt.Errorf("%s: %s in progress: %w", op, pending, domain.ErrBusy)
	}
	if pending, ok := o.inflight[key]; ok {
		return nil, fmt.Errorf("%s: %s in progress: %w", op, pending, domain.ErrBusy)
	}
	o.inflight[key] = op

	return func() { o.release(key) }, nil
}

func (o *Orchestrator) acquireAll(op string) (func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.inflight) > 0 {
		return nil, fmt.Errorf("%s: %d operation(s) in progress: %w", op, len(o.inflight), domain.ErrBusy)
	}
	o.inflight[stopAllKey] = op

	return func() { o.release(stopAllKey) }, nil
}

func (o *Orchestrator) release(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	delete(o.inflight, key)
}

// DeviceBusy reports whether a lifecycle operation touching id is in flight.
func (o *Orchestrator) DeviceBusy(id domain.DeviceID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, ok := o.inflight[string(id)]
	return ok
}

func (o *Orchestrator) StopAllInFlight() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, ok := o.inflight[stopAllKey]
	return ok
}

func (o *Orchestrator) Start(ctx context.Context, id domain.DeviceID, opts domain.MirrorOptions) (domain.SessionID, error) {
	sessionID, err := o.start(ctx, id, opts)
	if err != nil {
		o.fail(err, fmt.Sprintf("Failed to start mirroring %s: %v", id, err), withDevice(id))
		return "", err
	}

	o.notifier.Notify(newNotification(o.clock, domain.EventSessionStarted,
		fmt.Sprintf("Mirroring started for %s", o.deviceLabel(id)),
		withDevice(id), withSession(sessionID)))
	return sessionID, nil
}

func (o *Orchestrator) start(ctx context.Context, id domain.DeviceID, opts domain.MirrorOptions) (domain.SessionID, error) {
	release, err := o.acquire(string(id), "start")
	if err != nil {
		return "", err
	}
	defer release()

	device, ok := o.devices.Get(id)
	if !ok {
		return "", fmt.Errorf("start %s: %w", id, domain.ErrDeviceNotFound)
	}
	if !device.IsConnected() {
		return "", fmt.Errorf("start %s: device is %s: %w", id, strings.ToLower(string(device.Status)), domain.ErrDeviceNotConnected)
	}
	if existing, ok := o.sessions.FindByDevice(id); ok {
		return "", fmt.Errorf("start %s: session %s: %w", id, existing.ID, domain.ErrSessionActive)
	}
	if err := opts.Validate(); err != nil {
		return "", fmt.Errorf("start %s: %v: %w", id, err, domain.ErrRejected)
	}

	sessionID, err := o.backend.StartMirroring(ctx, id, opts)
	if err != nil {
		return "", err
	}

	session := domain.MirrorSession{ID: sessionID, DeviceID: id, StartedAt: o.clock.Now()}
	o.intents.MarkStart(session, session.StartedAt)
	o.sessions.Insert(session)
	o.log.Info().Str("device_id", string(id)).Str("session_id", string(sessionID)).Msg("mirroring started")

	return sessionID, nil
}

func (o *Orchestrator) Stop(ctx context.Context, id domain.SessionID) error {
	session, err := o.stop(ctx, id)
	if err != nil {
		o.fail(err, fmt.Sprintf("Failed to stop session %s: %v", id, err), withSession(id), withDevice(session.DeviceID))
		return err
	}

	o.notifier.Notify(newNotification(o.clock, domain.EventSessionStopped,
		fmt.Sprintf("Mirroring stopped for %s", o.deviceLabel(session.DeviceID)),
		withDevice(session.DeviceID), withSession(id)))
	return nil
}

func (o *Orchestrator) stop(ctx context.Context, id domain.SessionID) (domain.MirrorSession, error) {
	session, ok := o.sessions.Get(id)
	if !ok {
		return domain.MirrorSession{}, fmt.Errorf("stop %s: %w", id, domain.ErrSessionNotFound)
	}

	release, err := o.acquire(string(session.DeviceID), "stop")
	if err != nil {
		return session, err
	}
	defer release()

	o.intents.BeginStop(id)
	stopped, err := o.backend.StopMirroring(ctx, id)
	if err != nil {
		o.intents.AbortStop(id)
		return session, err
	}
	if !stopped {
		o.intents.AbortStop(id)
		return session, fmt.Errorf("stop %s: backend did not stop session: %w", id, domain.ErrRejected)
	}

	o.intents.CommitStop(o.clock.Now(), id)
	o.sessions.Remove(id)
	o.log.Info().Str("session_id", string(id)).Msg("mirroring stopped")

	return session, nil
}

func (o *Orchestrator) StopAll(ctx context.Context) (int, error) {
	count, err := o.stopAll(ctx)
	if err != nil {
		o.fail(err, fmt.Sprintf("Failed to stop all sessions: %v", err))
		return 0, err
	}

	o.notifier.Notify(newNotification(o.clock, domain.EventSessionsStopped,
		fmt.Sprintf("Stopped %d mirroring session(s)", count)))
	return count, nil
}

func (o *Orchestrator) stopAll(ctx context.Context) (int, error) {
	release, err := o.acquireAll("stop-all")
	if err != nil {
		return 0, err
	}
	defer release()

	current := o.sessions.List()
	ids := make([]domain.SessionID, 0, len(current))
	for _, session := range current {
		ids = append(ids, session.ID)
	}

	o.intents.BeginStopAll(ids)
	count, err := o.backend.StopAllMirroring(ctx)
	if err != nil {
		o.intents.AbortStopAll(ids)
		return 0, err
	}

	o.intents.CommitStopAll(o.clock.Now(), ids)
	for _, id := range ids {
		o.sessions.Remove(id)
	}
	o.log.Info().Int("count", count).Msg("all mirroring stopped")

	return count, nil
}

func (o *Orchestrator) Connect(ctx context.Context, address string) error {
	address = strings.TrimSpace(address)
	err := o.connect(ctx, address)
	if err != nil {
		o.fail(err, fmt.Sprintf("Failed to connect to %s: %v", address, err))
		return err
	}

	o.notifier.Notify(newNotification(o.clock, domain.EventDeviceConnected,
		fmt.Sprintf("Connected to %s", address)))
	return nil
}

func (o *Orchestrator) connect(ctx context.Context, address string) error {
	if address == "" {
		return fmt.Errorf("connect: address is required: %w", domain.ErrRejected)
	}

	release, err := o.acquire("host:"+address, "connect")
	if err != nil {
		return err
	}
	defer release()

	return o.backend.ConnectWireless(ctx, address)
}

func (o *Orchestrator) Disconnect(ctx context.Context, id domain.DeviceID) error {
	if err := o.disconnect(ctx, id); err != nil {
		o.fail(err, fmt.Sprintf("Failed to disconnect %s: %v", id, err), withDevice(id))
		return err
	}

	o.notifier.Notify(newNotification(o.clock, domain.EventDeviceDisconnected,
		fmt.Sprintf("Disconnected %s", o.deviceLabel(id)), withDevice(id)))
	return nil
}

func (o *Orchestrator) disconnect(ctx context.Context, id domain.DeviceID) error {
	release, err := o.acquire(string(id), "disconnect")
	if err != nil {
		return err
	}
	defer release()

	// Sessions on the device end with it; that is the user's doing, not a crash.
	var ids []domain.SessionID
	for _, session := range o.sessions.ListByDevice(id) {
		ids = append(ids, session.ID)
	}
	o.intents.BeginStop(ids...)

	if err := o.backend.DisconnectDevice(ctx, id); err != nil {
		o.intents.AbortStop(ids...)
		return err
	}
	if len(ids) > 0 {
		o.intents.CommitStop(o.clock.Now(), ids...)
	}

	return nil
}

func (o *Orchestrator) EnableWireless(ctx context.Context, id domain.DeviceID) (string, error) {
	ip, err := o.enableWireless(ctx, id)
	if err != nil {
		o.fail(err, fmt.Sprintf("Failed to enable wireless on %s: %v", id, err), withDevice(id))
		return "", err
	}

	o.notifier.Notify(newNotification(o.clock, domain.EventWirelessEnabled,
		fmt.Sprintf("Wireless mode enabled for %s at %s", o.deviceLabel(id), ip), withDevice(id)))
	return ip, nil
}

func (o *Orchestrator) enableWireless(ctx context.Context, id domain.DeviceID) (string, error) {
	release, err := o.acquire(string(id), "enable-wireless")
	if err != nil {
		return "", err
	}
	defer release()

	if _, ok := o.devices.Get(id); !ok {
		return "", fmt.Errorf("enable wireless %s: %w", id, domain.ErrDeviceNotFound)
	}

	return o.backend.EnableWirelessMode(ctx, id)
}

func (o *Orchestrator) fail(err error, message string, opts ...noticeOption) {
	o.log.Error().Err(err).Str("kind", string(domain.KindOf(err))).Msg("lifecycle operation failed")
	opts = append(opts, withError(err))
	o.notifier.Notify(newNotification(o.clock, domain.EventLifecycleFailed, message, opts...))
}

func (o *Orchestrator) deviceLabel(id domain.DeviceID) string {
	if device, ok := o.devices.Get(id); ok {
		return device.DisplayName()
	}

	return string(id)
}
