// Package httpapi exposes a running coordinator over HTTP and a websocket
// event stream.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/bnema/mirrorctl/internal/application"
	"github.com/bnema/mirrorctl/internal/domain"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 60 * time.Second
	shutdownTimeout     = 5 * time.Second
	maxBodyBytes        = 64 << 10
)

// Coordinator is the part of application.Coordinator the API serves.
type Coordinator interface {
	RunID() string
	Snapshot() application.Snapshot
	Refresh(ctx context.Context) error
	StartMirroring(ctx context.Context, cmd application.StartMirroringCommand) (domain.SessionID, error)
	StopMirroring(ctx context.Context, id domain.SessionID) error
	StopAllMirroring(ctx context.Context) (int, error)
	ConnectWireless(ctx context.Context, address string) error
	DisconnectDevice(ctx context.Context, id domain.DeviceID) error
	EnableWireless(ctx context.Context, id domain.DeviceID) (string, error)
	SubscribeStatus(id domain.SessionID, fn application.StatusListener) (func(), error)
	Events(buffer int) (<-chan domain.Notification, func())
}

var _ Coordinator = (*application.Coordinator)(nil)

type Server struct {
	coord    Coordinator
	router   *mux.Router
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewServer(coord Coordinator, log zerolog.Logger) *Server {
	s := &Server{
		coord:  coord,
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log.With().Str("component", "httpapi").Logger(),
	}
	s.routes()

	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.getHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/devices", s.getDevices).Methods(http.MethodGet)
	s.router.HandleFunc("/sessions", s.getSessions).Methods(http.MethodGet)
	s.router.HandleFunc("/stats", s.getStats).Methods(http.MethodGet)
	s.router.HandleFunc("/refresh", s.postRefresh).Methods(http.MethodPost)
	s.router.HandleFunc("/devices/{id}/mirror", s.startMirroring).Methods(http.MethodPost)
	s.router.HandleFunc("/devices/{id}/disconnect", s.disconnectDevice).Methods(http.MethodPost)
	s.router.HandleFunc("/devices/{id}/wireless", s.enableWireless).Methods(http.MethodPost)
	s.router.HandleFunc("/sessions/stop-all", s.stopAll).Methods(http.MethodPost)
	s.router.HandleFunc("/sessions/{id}", s.stopMirroring).Methods(http.MethodDelete)
	s.router.HandleFunc("/wireless/connect", s.connectWireless).Methods(http.MethodPost)
	s.router.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.coord.Snapshot()
	status := "ok"
	if !snapshot.Running {
		status = "stopped"
	} else if snapshot.LastError != "" {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, healthJSON{
		Status:    status,
		RunID:     s.coord.RunID(),
		Running:   snapshot.Running,
		UpdatedAt: timePtr(snapshot.UpdatedAt),
		LastError: snapshot.LastError,
	})
}

func (s *Server) getDevices(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.coord.Snapshot()
	out := make([]deviceJSON, 0, len(snapshot.Devices))
	for _, device := range snapshot.Devices {
		out = append(out, toDeviceJSON(device, snapshot))
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getSessions(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.coord.Snapshot()
	out := make([]sessionJSON, 0, len(snapshot.Sessions))
	for _, view := range snapshot.Sessions {
		out = append(out, toSessionJSON(view))
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getStats(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.coord.Snapshot()
	writeJSON(w, http.StatusOK, statsJSON{
		ActiveSessions: snapshot.Stats.ActiveSessions,
		TotalStarted:   snapshot.Stats.TotalStarted,
		UpdatedAt:      timePtr(snapshot.StatsAt),
	})
}

func (s *Server) postRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Refresh(r.Context()); err != nil {
		s.writeFailure(w, "refresh", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) startMirroring(w http.ResponseWriter, r *http.Request) {
	cmd := application.StartMirroringCommand{DeviceID: domain.DeviceID(mux.Vars(r)["id"])}

	var body optionsJSON
	found, err := decodeBody(r, &body)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest, "")
		return
	}
	if found {
		opts := body.toDomain()
		cmd.Options = &opts
	}

	id, err := s.coord.StartMirroring(r.Context(), cmd)
	if err != nil {
		s.writeFailure(w, "start mirroring", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"session_id": string(id)})
}

func (s *Server) stopMirroring(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.StopMirroring(r.Context(), domain.SessionID(mux.Vars(r)["id"])); err != nil {
		s.writeFailure(w, "stop mirroring", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) stopAll(w http.ResponseWriter, r *http.Request) {
	count, err := s.coord.StopAllMirroring(r.Context())
	if err != nil {
		s.writeFailure(w, "stop all", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"stopped": count})
}

func (s *Server) connectWireless(w http.ResponseWriter, r *http.Request) {
	var body connectRequest
	found, err := decodeBody(r, &body)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest, "")
		return
	}
	if !found || body.Address == "" {
		writeError(w, "address is required", http.StatusBadRequest, "")
		return
	}

	if err := s.coord.ConnectWireless(r.Context(), body.Address); err != nil {
		s.writeFailure(w, "connect", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) disconnectDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.DisconnectDevice(r.Context(), domain.DeviceID(mux.Vars(r)["id"])); err != nil {
		s.writeFailure(w, "disconnect", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) enableWireless(w http.ResponseWriter, r *http.Request) {
	ip, err := s.coord.EnableWireless(r.Context(), domain.DeviceID(mux.Vars(r)["id"]))
	if err != nil {
		s.writeFailure(w, "enable wireless", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"ip_address": ip})
}

func (s *Server) writeFailure(w http.ResponseWriter, op string, err error) {
	status := StatusForError(err)
	event := s.log.Warn()
	if status >= http.StatusInternalServerError {
		event = s.log.Error()
	}
	event.Err(err).Str("op", op).Int("status", status).Msg("request failed")

	writeError(w, err.Error(), status, string(domain.KindOf(err)))
}

// StatusForError maps the coordinator error taxonomy onto HTTP status codes.
func StatusForError(err error) int {
	if errors.Is(err, application.ErrCoordinatorStopped) {
		return http.StatusServiceUnavailable
	}

	switch domain.KindOf(err) {
	case domain.KindBusy:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindRejected:
		return http.StatusUnprocessableEntity
	case domain.KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody reports false when the request carries no body.
func decodeBody(r *http.Request, dst any) (bool, error) {
	if r.Body == nil {
		return false, nil
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, fmt.Errorf("invalid request body: %w", err)
	}

	return true, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, status int, kind string) {
	writeJSON(w, status, errorResponse{Message: message, Status: status, Kind: kind})
}
