package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bnema/mirrorctl/internal/domain"
)

const (
	eventBuffer  = 32
	writeTimeout = 5 * time.Second
)

// streamMessage is one frame sent to /events clients.
type streamMessage struct {
	Type         string            `json:"type"` // "notification", "status", "subscribed", "unsubscribed", "error"
	Notification *notificationJSON `json:"notification,omitempty"`
	SessionID    string            `json:"session_id,omitempty"`
	Status       string            `json:"status,omitempty"`
	Error        string            `json:"error,omitempty"`
	Kind         string            `json:"kind,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

type clientMessage struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id"`
}

type statusSubscriptions struct {
	mu     sync.Mutex
	closed bool
	byID   map[domain.SessionID]func()
}

func newStatusSubscriptions() *statusSubscriptions {
	return &statusSubscriptions{byID: map[domain.SessionID]func(){}}
}

func (s *statusSubscriptions) has(id domain.SessionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.byID[id]
	return ok
}

func (s *statusSubscriptions) add(id domain.SessionID, cancel func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return
	}
	if prev, ok := s.byID[id]; ok {
		defer prev()
	}
	s.byID[id] = cancel
	s.mu.Unlock()
}

func (s *statusSubscriptions) remove(id domain.SessionID) bool {
	s.mu.Lock()
	cancel, ok := s.byID[id]
	delete(s.byID, id)
	s.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

func (s *statusSubscriptions) closeAll() {
	s.mu.Lock()
	s.closed = true
	subs := s.byID
	s.byID = map[domain.SessionID]func(){}
	s.mu.Unlock()

	for _, cancel := range subs {
		cancel()
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("failed to upgrade to websocket")
		return
	}
	defer conn.Close()

	s.log.Debug().Str("remote_addr", r.RemoteAddr).Msg("event stream opened")

	events, cancelEvents := s.coord.Events(eventBuffer)
	defer cancelEvents()

	subs := newStatusSubscriptions()
	defer subs.closeAll()

	out := make(chan streamMessage, eventBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.readClientMessages(conn, subs, out)
	}()

	for {
		var msg streamMessage
		select {
		case <-done:
			return
		case n, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "coordinator stopped"),
					time.Now().Add(writeTimeout))
				return
			}
			payload := toNotificationJSON(n)
			msg = streamMessage{Type: "notification", Notification: &payload, Timestamp: n.At}
		case msg = <-out:
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			s.log.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("event stream write failed")
			return
		}
	}
}

func (s *Server) readClientMessages(conn *websocket.Conn, subs *statusSubscriptions, out chan<- streamMessage) {
	send := func(msg streamMessage) {
		msg.Timestamp = time.Now().UTC()
		select {
		case out <- msg:
		default:
		}
	}

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		id := domain.SessionID(msg.SessionID)
		switch msg.Action {
		case "subscribe":
			if id == "" {
				send(streamMessage{Type: "error", Error: "session_id is required", Kind: string(domain.KindRejected)})
				continue
			}
			if subs.has(id) {
				send(streamMessage{Type: "subscribed", SessionID: string(id)})
				continue
			}
			cancel, err := s.coord.SubscribeStatus(id, func(id domain.SessionID, status domain.SessionStatus) {
				send(streamMessage{Type: "status", SessionID: string(id), Status: string(status)})
			})
			if err != nil {
				send(streamMessage{Type: "error", SessionID: string(id), Error: err.Error(), Kind: string(domain.KindOf(err))})
				continue
			}
			subs.add(id, cancel)
			send(streamMessage{Type: "subscribed", SessionID: string(id)})
		case "unsubscribe":
			if subs.remove(id) {
				send(streamMessage{Type: "unsubscribed", SessionID: string(id)})
			}
		default:
			send(streamMessage{Type: "error", Error: "unknown action " + msg.Action, Kind: string(domain.KindRejected)})
		}
	}
}
