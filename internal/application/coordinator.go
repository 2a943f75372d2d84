package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bnema/mirrorctl/internal/domain"
	"github.com/bnema/mirrorctl/internal/ports"
)

const (
	DefaultRefreshInterval = 2 * time.Second
	DefaultSessionInterval = 5 * time.Second
	DefaultStatusInterval  = 3 * time.Second
	DefaultStatsInterval   = 5 * time.Second
	DefaultIntentTTL       = 30 * time.Second
)

var (
	ErrCoordinatorRunning = errors.New("coordinator already running")
	ErrCoordinatorStopped = errors.New("coordinator stopped")
)

type Config struct {
	RefreshInterval time.Duration
	// SessionInterval drives the lighter session-only refresh. Negative disables it.
	SessionInterval time.Duration
	StatusInterval  time.Duration
	// StatsInterval drives the process stats refresh. Negative disables it.
	StatsInterval time.Duration
	IntentTTL     time.Duration
	// ManualWatch disables automatic status polling of every known session.
	ManualWatch bool

	Logger   zerolog.Logger
	Clock    ports.Clock
	Notifier ports.Notifier
}

func (c Config) withDefaults() Config {
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.SessionInterval == 0 {
		c.SessionInterval = DefaultSessionInterval
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = DefaultStatusInterval
	}
	if c.StatsInterval == 0 {
		c.StatsInterval = DefaultStatsInterval
	}
	if c.IntentTTL <= 0 {
		c.IntentTTL = DefaultIntentTTL
	}
	if c.Clock == nil {
		c.Clock = ports.SystemClock{}
	}
	if c.Notifier == nil {
		c.Notifier = discardNotifier{}
	}

	return c
}

type coordinatorState int

const (
	stateIdle coordinatorState = iota
	stateRunning
	stateStopped
)

// Coordinator owns the registries and every periodic task. Construction does
// no I/O; Start begins the timers and Stop tears everything down once.
type Coordinator struct {
	cfg      Config
	runID    string
	log      zerolog.Logger
	settings *SettingsService

	devices      *DeviceRegistry
	sessions     *SessionRegistry
	intents      *IntentLedger
	arena        *TaskArena
	poller       *StatusPoller
	orchestrator *Orchestrator
	reconciler   *Reconciler

	mu      sync.Mutex
	state   coordinatorState
	watches map[domain.SessionID]func()

	subsMu  sync.Mutex
	subs    map[uint64]chan domain.Notification
	nextSub uint64
}

func NewCoordinator(backend ports.Backend, settings *SettingsService, cfg Config) *Coordinator {
	cfg = cfg.withDefaults()
	runID := uuid.New().String()[:8]
	log := cfg.Logger.With().Str("run_id", runID).Logger()

	c := &Coordinator{
		cfg:      cfg,
		runID:    runID,
		log:      log.With().Str("component", "coordinator").Logger(),
		settings: settings,
		watches:  map[domain.SessionID]func(){},
		subs:     map[uint64]chan domain.Notification{},
	}
	notifier := ports.NotifierFunc(c.dispatch)

	c.devices = NewDeviceRegistry(log)
	c.sessions = NewSessionRegistry(log)
	c.intents = NewIntentLedger(cfg.IntentTTL)
	c.arena = NewTaskArena(cfg.Clock, log)
	c.poller = NewStatusPoller(backend, c.sessions, c.intents, c.arena, cfg.Clock, cfg.StatusInterval, c.handleCrash, log)
	c.orchestrator = NewOrchestrator(backend, c.devices, c.sessions, c.intents, notifier, cfg.Clock, log)
	c.reconciler = NewReconciler(backend, c.devices, c.sessions, c.intents, c.orchestrator, c.poller, notifier, cfg.Clock, log)
	c.sessions.OnChange(c.onSessionsChanged)

	return c
}

func (c *Coordinator) RunID() string {
	return c.runID
}

// Start schedules the reconciliation tasks. The coordinator stops on its own
// when ctx is done. A stopped coordinator cannot be started again.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case stateRunning:
		c.mu.Unlock()
		return ErrCoordinatorRunning
	case stateStopped:
		c.mu.Unlock()
		return ErrCoordinatorStopped
	}
	c.state = stateRunning
	c.mu.Unlock()

	err := c.arena.Schedule(loopRefresh, c.cfg.RefreshInterval, func(ctx context.Context) {
		c.intents.Expire(c.cfg.Clock.Now())
		_ = c.reconciler.Full(ctx)
	})
	if err == nil && c.cfg.SessionInterval > 0 {
		err = c.arena.Schedule(loopSessions, c.cfg.SessionInterval, func(ctx context.Context) {
			_ = c.reconciler.SessionsOnly(ctx)
		})
	}
	if err == nil && c.cfg.StatsInterval > 0 {
		err = c.arena.Schedule(loopStats, c.cfg.StatsInterval, func(ctx context.Context) {
			_ = c.reconciler.Stats(ctx)
		})
	}
	if err != nil {
		c.Stop()
		return fmt.Errorf("start coordinator: %w", err)
	}

	c.watchSessions(c.sessions.List())
	context.AfterFunc(ctx, c.Stop)

	c.log.Info().
		Dur("refresh_interval", c.cfg.RefreshInterval).
		Dur("session_interval", c.cfg.SessionInterval).
		Dur("status_interval", c.cfg.StatusInterval).
		Msg("coordinator started")
	return nil
}

// Stop cancels every task and status subscription and waits for them to
// return. It is idempotent.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.state == stateStopped {
		c.mu.Unlock()
		return
	}
	wasRunning := c.state == stateRunning
	c.state = stateStopped
	watches := c.watches
	c.watches = map[domain.SessionID]func(){}
	c.mu.Unlock()

	c.arena.Close()
	for _, unsubscribe := range watches {
		unsubscribe()
	}

	c.subsMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	if wasRunning {
		c.log.Info().Msg("coordinator stopped")
	}
}

func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state == stateRunning
}

// Refresh runs a full reconciliation and a stats refresh right now.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.intents.Expire(c.cfg.Clock.Now())
	return errors.Join(c.reconciler.Full(ctx), c.reconciler.Stats(ctx))
}

func (c *Coordinator) RefreshSessions(ctx context.Context) error {
	return c.reconciler.SessionsOnly(ctx)
}

func (c *Coordinator) Device(id domain.DeviceID) (domain.Device, bool) {
	return c.devices.Get(id)
}

func (c *Coordinator) Session(id domain.SessionID) (domain.MirrorSession, bool) {
	return c.sessions.Get(id)
}

func (c *Coordinator) Snapshot() Snapshot {
	devices := c.devices.List()
	byID := make(map[domain.DeviceID]domain.Device, len(devices))
	for _, device := range devices {
		byID[device.ID] = device
	}

	sessions := c.sessions.List()
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		view := SessionView{Session: session}
		if device, ok := byID[session.DeviceID]; ok {
			view.Device = &device
		}
		if status, ok := c.poller.Last(session.ID); ok {
			view.Status = status
		}
		views = append(views, view)
	}

	stats, statsAt := c.reconciler.ProcessStats()
	snapshot := Snapshot{
		RunID:     c.runID,
		Running:   c.Running(),
		Devices:   devices,
		Sessions:  views,
		Stats:     stats,
		StatsAt:   statsAt,
		UpdatedAt: c.reconciler.UpdatedAt(),
	}
	if err := c.reconciler.LastError(); err != nil {
		snapshot.LastError = err.Error()
	}

	return snapshot
}

// SubscribeStatus polls the session's status until the returned func is called.
func (c *Coordinator) SubscribeStatus(id domain.SessionID, fn StatusListener) (func(), error) {
	c.mu.Lock()
	stopped := c.state == stateStopped
	c.mu.Unlock()
	if stopped {
		return nil, ErrCoordinatorStopped
	}
	if _, ok := c.sessions.Get(id); !ok {
		return nil, fmt.Errorf("subscribe %s: %w", id, domain.ErrSessionNotFound)
	}

	return c.poller.Subscribe(id, fn)
}

// Events returns a feed of notifications. Slow readers miss notifications
// rather than blocking the coordinator. The channel is closed by cancel or Stop.
func (c *Coordinator) Events(buffer int) (<-chan domain.Notification, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan domain.Notification, buffer)

	c.mu.Lock()
	stopped := c.state == stateStopped
	c.mu.Unlock()
	if stopped {
		close(ch)
		return ch, func() {}
	}

	c.subsMu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = ch
	c.subsMu.Unlock()

	return ch, func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()

		if ch, ok := c.subs[id]; ok {
			close(ch)
			delete(c.subs, id)
		}
	}
}

func (c *Coordinator) StartMirroring(ctx context.Context, cmd StartMirroringCommand) (domain.SessionID, error) {
	opts := domain.DefaultMirrorOptions()
	switch {
	case cmd.Options != nil:
		opts = *cmd.Options
	case c.settings != nil:
		stored, err := c.settings.OptionsFor(ctx, cmd.DeviceID)
		if err != nil {
			c.log.Warn().Err(err).Str("device_id", string(cmd.DeviceID)).Msg("falling back to default mirror options")
		} else {
			opts = stored
		}
	}

	return c.orchestrator.Start(ctx, cmd.DeviceID, opts)
}

func (c *Coordinator) StopMirroring(ctx context.Context, id domain.SessionID) error {
	return c.orchestrator.Stop(ctx, id)
}

func (c *Coordinator) StopAllMirroring(ctx context.Context) (int, error) {
	return c.orchestrator.StopAll(ctx)
}

func (c *Coordinator) ConnectWireless(ctx context.Context, address string) error {
	if err := c.orchestrator.Connect(ctx, address); err != nil {
		return err
	}

	if c.settings != nil {
		if err := c.settings.RememberHost(ctx, address); err != nil {
			c.log.Warn().Err(err).Str("address", address).Msg("remember wireless host")
		}
	}
	c.triggerRefresh()
	return nil
}

func (c *Coordinator) DisconnectDevice(ctx context.Context, id domain.DeviceID) error {
	if err := c.orchestrator.Disconnect(ctx, id); err != nil {
		return err
	}

	c.triggerRefresh()
	return nil
}

func (c *Coordinator) EnableWireless(ctx context.Context, id domain.DeviceID) (string, error) {
	ip, err := c.orchestrator.EnableWireless(ctx, id)
	if err != nil {
		return "", err
	}

	c.triggerRefresh()
	return ip, nil
}

func (c *Coordinator) triggerRefresh() {
	c.arena.Trigger(loopRefresh)
}

func (c *Coordinator) onSessionsChanged(delta SessionDelta) {
	for _, session := range delta.Removed {
		c.unwatch(session.ID)
	}
	c.watchSessions(delta.Added)
}

func (c *Coordinator) watchSessions(sessions []domain.MirrorSession) {
	if c.cfg.ManualWatch || len(sessions) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateRunning {
		return
	}
	for _, session := range sessions {
		if _, ok := c.watches[session.ID]; ok {
			continue
		}
		unsubscribe, err := c.poller.Subscribe(session.ID, func(domain.SessionID, domain.SessionStatus) {})
		if err != nil {
			c.log.Warn().Err(err).Str("session_id", string(session.ID)).Msg("watch session status")
			continue
		}
		c.watches[session.ID] = unsubscribe
	}
}

func (c *Coordinator) unwatch(id domain.SessionID) {
	c.mu.Lock()
	unsubscribe, ok := c.watches[id]
	delete(c.watches, id)
	c.mu.Unlock()

	if ok {
		unsubscribe()
	}
}

func (c *Coordinator) handleCrash(id domain.SessionID) {
	session, _ := c.sessions.Get(id)
	c.sessions.Remove(id)
	c.poller.Drop(id)

	label := string(session.DeviceID)
	if device, ok := c.devices.Get(session.DeviceID); ok {
		label = device.DisplayName()
	}
	c.dispatch(newNotification(c.cfg.Clock, domain.EventSessionCrashed,
		fmt.Sprintf("Mirroring on %s stopped unexpectedly", label),
		withDevice(session.DeviceID), withSession(id)))
}

func (c *Coordinator) dispatch(n domain.Notification) {
	var event *zerolog.Event
	switch n.Level {
	case domain.LevelError:
		event = c.log.Warn()
	default:
		event = c.log.Info()
	}
	event.Str("event", string(n.Kind)).
		Str("device_id", string(n.DeviceID)).
		Str("session_id", string(n.SessionID)).
		Msg(n.Message)

	c.cfg.Notifier.Notify(n)

	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	for _, ch := range c.subs {
		select {
		case ch <- n:
		default:
			c.log.Debug().Str("event", string(n.Kind)).Msg("event subscriber lagging, dropping notification")
		}
	}
}
