package application

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bnema/mirrorctl/internal/domain"
)

type SessionDelta struct {
	Added   []domain.MirrorSession
	Removed []domain.MirrorSession
}

func (d SessionDelta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// SessionRegistry is the local view of which mirroring sessions exist.
// Writers are Replace (reconciliation) and Insert/Remove (lifecycle operations).
type SessionRegistry struct {
	log zerolog.Logger

	mu        sync.RWMutex
	sessions  map[domain.SessionID]domain.MirrorSession
	listeners []func(SessionDelta)
}

func NewSessionRegistry(log zerolog.Logger) *SessionRegistry {
	return &SessionRegistry{
		log:      log.With().Str("component", "session_registry").Logger(),
		sessions: map[domain.SessionID]domain.MirrorSession{},
	}
}

func (r *SessionRegistry) OnChange(fn func(SessionDelta)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listeners = append(r.listeners, fn)
}

func (r *SessionRegistry) Replace(sessions []domain.MirrorSession) SessionDelta {
	next := make(map[domain.SessionID]domain.MirrorSession, len(sessions))
	for _, session := range sessions {
		if err := session.Validate(); err != nil {
			r.log.Warn().Str("device_id", string(session.DeviceID)).Msg("dropping session without id from snapshot")
			continue
		}
		next[session.ID] = session
	}

	r.mu.Lock()
	prev := r.sessions
	r.sessions = next
	listeners := r.listenersLocked()
	r.mu.Unlock()

	var delta SessionDelta
	for id, session := range next {
		if _, ok := prev[id]; !ok {
			delta.Added = append(delta.Added, session)
		}
	}
	for id, session := range prev {
		if _, ok := next[id]; !ok {
			delta.Removed = append(delta.Removed, session)
		}
	}
	sortSessions(delta.Added)
	sortSessions(delta.Removed)

	r.emit(listeners, delta)
	return delta
}

// Insert adds or overwrites a single session. Sessions without an id are refused.
func (r *SessionRegistry) Insert(session domain.MirrorSession) bool {
	if err := session.Validate(); err != nil {
		r.log.Warn().Str("device_id", string(session.DeviceID)).Msg("refusing to insert session without id")
		return false
	}

	r.mu.Lock()
	_, existed := r.sessions[session.ID]
	r.sessions[session.ID] = session
	listeners := r.listenersLocked()
	r.mu.Unlock()

	if !existed {
		r.emit(listeners, SessionDelta{Added: []domain.MirrorSession{session}})
	}

	return true
}

func (r *SessionRegistry) Remove(id domain.SessionID) (domain.MirrorSession, bool) {
	r.mu.Lock()
	session, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	listeners := r.listenersLocked()
	r.mu.Unlock()

	if ok {
		r.emit(listeners, SessionDelta{Removed: []domain.MirrorSession{session}})
	}

	return session, ok
}

func (r *SessionRegistry) Get(id domain.SessionID) (domain.MirrorSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	return session, ok
}

// FindByDevice returns the device's session. When the backend reports more than
// one, the most recently started wins and the anomaly is logged.
func (r *SessionRegistry) FindByDevice(id domain.DeviceID) (domain.MirrorSession, bool) {
	matches := r.ListByDevice(id)
	if len(matches) == 0 {
		return domain.MirrorSession{}, false
	}
	if len(matches) > 1 {
		ids := make([]string, 0, len(matches))
		for _, m := range matches {
			ids = append(ids, string(m.ID))
		}
		r.log.Warn().
			Str("device_id", string(id)).
			Strs("session_ids", ids).
			Msg("multiple sessions for one device, preferring most recent")
	}

	return matches[len(matches)-1], true
}

func (r *SessionRegistry) ListByDevice(id domain.DeviceID) []domain.MirrorSession {
	r.mu.RLock()
	var out []domain.MirrorSession
	for _, session := range r.sessions {
		if session.DeviceID == id {
			out = append(out, session)
		}
	}
	r.mu.RUnlock()

	sortSessions(out)
	return out
}

// List returns sessions ordered by start time, oldest first.
func (r *SessionRegistry) List() []domain.MirrorSession {
	r.mu.RLock()
	out := make([]domain.MirrorSession, 0, len(r.sessions))
	for _, session := range r.sessions {
		out = append(out, session)
	}
	r.mu.RUnlock()

	sortSessions(out)
	return out
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

func (r *SessionRegistry) listenersLocked() []func(SessionDelta) {
	return append([]func(SessionDelta){}, r.listeners...)
}

func (r *SessionRegistry) emit(listeners []func(SessionDelta), delta SessionDelta) {
	if delta.Empty() {
		return
	}
	for _, fn := range listeners {
		fn(delta)
	}
}

func sortSessions(sessions []domain.MirrorSession) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].StartedAt.Equal(sessions[j].StartedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})
}
