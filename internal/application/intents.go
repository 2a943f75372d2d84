package application

import (
	"sync"
	"time"

	"github.com/bnema/mirrorctl/internal/domain"
)

// Seq orders intent marks against reconciliation fetches. A fetch captures the
// current Seq when it is issued; any mark with a larger Seq happened after it.
type Seq uint64

type PendingStart struct {
	Session  domain.MirrorSession
	Seq      Seq
	MarkedAt time.Time
}

type mark struct {
	seq Seq
	at  time.Time
}

type vanishedMark struct {
	device domain.DeviceID
	at     time.Time
}

// IntentLedger records short-lived explicit-intent markers so that transitions
// caused by the user are not classified as crashes or disappearances.
type IntentLedger struct {
	ttl time.Duration

	mu          sync.Mutex
	seq         Seq
	pending     map[domain.SessionID]PendingStart
	stopping    map[domain.SessionID]struct{}
	stopped     map[domain.SessionID]mark
	crashed     map[domain.SessionID]mark
	vanished    map[domain.SessionID]vanishedMark
	stopAll     bool
	lastStopAll mark
}

func NewIntentLedger(ttl time.Duration) *IntentLedger {
	return &IntentLedger{
		ttl:      ttl,
		pending:  map[domain.SessionID]PendingStart{},
		stopping: map[domain.SessionID]struct{}{},
		stopped:  map[domain.SessionID]mark{},
		crashed:  map[domain.SessionID]mark{},
		vanished: map[domain.SessionID]vanishedMark{},
	}
}

func (l *IntentLedger) Seq() Seq {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.seq
}

func (l *IntentLedger) next(at time.Time) mark {
	l.seq++
	return mark{seq: l.seq, at: at}
}

func (l *IntentLedger) MarkStart(session domain.MirrorSession, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := l.next(at)
	l.pending[session.ID] = PendingStart{Session: session, Seq: m.seq, MarkedAt: at}
	delete(l.stopped, session.ID)
	delete(l.crashed, session.ID)
}

func (l *IntentLedger) PendingStarts() []PendingStart {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]PendingStart, 0, len(l.pending))
	for _, p := range l.pending {
		out = append(out, p)
	}

	return out
}

func (l *IntentLedger) ConfirmStart(id domain.SessionID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.pending, id)
}

func (l *IntentLedger) BeginStop(ids ...domain.SessionID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, id := range ids {
		l.stopping[id] = struct{}{}
	}
}

func (l *IntentLedger) BeginStopAll(ids []domain.SessionID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopAll = true
	for _, id := range ids {
		l.stopping[id] = struct{}{}
	}
}

func (l *IntentLedger) CommitStop(at time.Time, ids ...domain.SessionID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := l.next(at)
	for _, id := range ids {
		delete(l.stopping, id)
		delete(l.pending, id)
		l.stopped[id] = m
	}
}

func (l *IntentLedger) CommitStopAll(at time.Time, ids []domain.SessionID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := l.next(at)
	l.stopAll = false
	l.lastStopAll = m
	for _, id := range ids {
		delete(l.stopping, id)
		delete(l.pending, id)
		l.stopped[id] = m
	}
}

func (l *IntentLedger) AbortStop(ids ...domain.SessionID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, id := range ids {
		delete(l.stopping, id)
	}
}

func (l *IntentLedger) AbortStopAll(ids []domain.SessionID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopAll = false
	for _, id := range ids {
		delete(l.stopping, id)
	}
}

// StopRequested reports whether a stop for id is in flight or has completed.
func (l *IntentLedger) StopRequested(id domain.SessionID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.stopping[id]; ok {
		return true
	}
	_, ok := l.stopped[id]
	return ok || l.stopAll
}

func (l *IntentLedger) ClearStop(id domain.SessionID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.stopped, id)
}

// MarkCrashed records a crash for id and reports whether it was the first one.
func (l *IntentLedger) MarkCrashed(id domain.SessionID, at time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.crashed[id]; ok {
		return false
	}
	l.crashed[id] = l.next(at)
	delete(l.pending, id)
	return true
}

func (l *IntentLedger) Crashed(id domain.SessionID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.crashed[id]
	return ok
}

func (l *IntentLedger) FlagVanished(id domain.SessionID, device domain.DeviceID, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.vanished[id] = vanishedMark{device: device, at: at}
}

func (l *IntentLedger) VanishedDevice(id domain.SessionID) (domain.DeviceID, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.vanished[id]
	return m.device, ok
}

func (l *IntentLedger) ClearVanished(id domain.SessionID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.vanished, id)
}

func (l *IntentLedger) VanishedSessions() []domain.SessionID {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.SessionID, 0, len(l.vanished))
	for id := range l.vanished {
		out = append(out, id)
	}

	return out
}

// Superseded reports whether a fetch issued at seq is older than a stop or
// crash recorded for id, in which case its view of id must not be applied.
func (l *IntentLedger) Superseded(id domain.SessionID, seq Seq) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lastStopAll.seq > seq {
		return true
	}
	if m, ok := l.stopped[id]; ok && m.seq > seq {
		return true
	}
	m, ok := l.crashed[id]
	return ok && m.seq > seq
}

// Explains reports whether the disappearance of id is accounted for by a
// recorded intent.
func (l *IntentLedger) Explains(id domain.SessionID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopAll {
		return true
	}
	if _, ok := l.stopping[id]; ok {
		return true
	}
	if _, ok := l.stopped[id]; ok {
		return true
	}
	if _, ok := l.crashed[id]; ok {
		return true
	}
	_, ok := l.vanished[id]
	return ok
}

// Expire drops completed markers older than the ledger TTL. In-flight stops
// and vanished flags are never expired here.
func (l *IntentLedger) Expire(now time.Time) int {
	if l.ttl <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.ttl)
	expired := 0
	for id, p := range l.pending {
		if p.MarkedAt.Before(cutoff) {
			delete(l.pending, id)
			expired++
		}
	}
	for id, m := range l.stopped {
		if m.at.Before(cutoff) {
			delete(l.stopped, id)
			expired++
		}
	}
	for id, m := range l.crashed {
		if m.at.Before(cutoff) {
			delete(l.crashed, id)
			expired++
		}
	}

	return expired
}
