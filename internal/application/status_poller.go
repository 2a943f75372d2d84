package application

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/mirrorctl/internal/domain"
	"github.com/bnema/mirrorctl/internal/ports"
)

type StatusListener func(id domain.SessionID, status domain.SessionStatus)

type watch struct {
	listeners map[uint64]StatusListener
	last      domain.SessionStatus
	observed  bool
}

// StatusPoller runs one polling task per watched session and classifies
// Running to Stopped transitions that nobody asked for as crashes.
type StatusPoller struct {
	backend  ports.MirrorService
	sessions *SessionRegistry
	intents  *IntentLedger
	arena    *TaskArena
	clock    ports.Clock
	interval time.Duration
	onCrash  func(domain.SessionID)
	log      zerolog.Logger

	mu      sync.Mutex
	watches map[domain.SessionID]*watch
	nextID  uint64
}

func NewStatusPoller(
	backend ports.MirrorService,
	sessions *SessionRegistry,
	intents *IntentLedger,
	arena *TaskArena,
	clock ports.Clock,
	interval time.Duration,
	onCrash func(domain.SessionID),
	log zerolog.Logger,
) *StatusPoller {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &StatusPoller{
		backend:  backend,
		sessions: sessions,
		intents:  intents,
		arena:    arena,
		clock:    clock,
		interval: interval,
		onCrash:  onCrash,
		log:      log.With().Str("component", "status_poller").Logger(),
		watches:  map[domain.SessionID]*watch{},
	}
}

func statusTaskName(id domain.SessionID) string {
	return "status:" + string(id)
}

// Subscribe starts polling id if nobody was watching it yet. The returned
// func releases this subscription; polling stops with the last one.
func (p *StatusPoller) Subscribe(id domain.SessionID, fn StatusListener) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.watches[id]
	if !ok {
		w = &watch{listeners: map[uint64]StatusListener{}}
		if err := p.arena.Schedule(statusTaskName(id), p.interval, func(ctx context.Context) {
			p.poll(ctx, id)
		}); err != nil {
			return nil, err
		}
		p.watches[id] = w
	}

	p.nextID++
	listenerID := p.nextID
	w.listeners[listenerID] = fn

	var once sync.Once
	return func() {
		once.Do(func() { p.unsubscribe(id, listenerID) })
	}, nil
}

func (p *StatusPoller) unsubscribe(id domain.SessionID, listenerID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.watches[id]
	if !ok {
		return
	}
	if _, ok := w.listeners[listenerID]; !ok {
		return
	}
	delete(w.listeners, listenerID)
	if len(w.listeners) == 0 {
		delete(p.watches, id)
		p.arena.Cancel(statusTaskName(id))
	}
}

// Drop stops polling id regardless of outstanding subscriptions.
func (p *StatusPoller) Drop(id domain.SessionID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.watches[id]; !ok {
		return
	}
	delete(p.watches, id)
	p.arena.Cancel(statusTaskName(id))
}

func (p *StatusPoller) Watching(id domain.SessionID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.watches[id]
	return ok
}

// Last returns the most recent status observed for id.
func (p *StatusPoller) Last(id domain.SessionID) (domain.SessionStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.watches[id]
	if !ok || !w.observed {
		return "", false
	}

	return w.last, true
}

func (p *StatusPoller) poll(ctx context.Context, id domain.SessionID) {
	if _, ok := p.sessions.Get(id); !ok {
		p.log.Debug().Str("session_id", string(id)).Msg("session no longer present, stop polling")
		p.Drop(id)
		return
	}

	status, err := p.backend.GetSessionStatus(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// Ambiguous cause: show the session as unavailable but never call it a crash.
		p.log.Warn().Err(err).Str("session_id", string(id)).Msg("status query failed, treating session as stopped")
		p.observe(id, domain.SessionStopped, false)
		return
	}

	p.observe(id, status, true)
}

func (p *StatusPoller) observe(id domain.SessionID, status domain.SessionStatus, classify bool) {
	p.mu.Lock()
	w, ok := p.watches[id]
	if !ok {
		p.mu.Unlock()
		return
	}
	prev, had := w.last, w.observed
	w.last = status
	w.observed = true
	listeners := make([]StatusListener, 0, len(w.listeners))
	for _, fn := range w.listeners {
		listeners = append(listeners, fn)
	}

	// The crash is recorded before the watch lock is released, so a
	// reconciliation that drops this session afterwards sees it as explained.
	crashed := false
	if classify && had && prev == domain.SessionRunning && status == domain.SessionStopped {
		switch {
		case p.intents.StopRequested(id):
			p.log.Debug().Str("session_id", string(id)).Msg("session stopped on request")
		case p.intents.MarkCrashed(id, p.clock.Now()):
			p.intents.ClearStop(id)
			crashed = true
		}
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(id, status)
	}

	if crashed {
		p.log.Warn().Str("session_id", string(id)).Msg("session crashed")
		if p.onCrash != nil {
			p.onCrash(id)
		}
	}
}
