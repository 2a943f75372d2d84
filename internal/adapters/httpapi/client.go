package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bnema/mirrorctl/internal/application"
	"github.com/bnema/mirrorctl/internal/domain"
)

const defaultClientTimeout = 30 * time.Second

// Client talks to a Server started by `mirrorctl serve`. Failures carry the
// server's error kind so errors.Is works against the domain sentinels.
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

func NewClient(addr string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultClientTimeout}
	}

	base := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Client{baseURL: base, httpClient: httpClient, dialer: websocket.DefaultDialer}
}

func (c *Client) Health(ctx context.Context) (healthJSON, error) {
	var out healthJSON
	err := c.do(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

// Snapshot assembles a snapshot from the listing endpoints.
func (c *Client) Snapshot(ctx context.Context) (application.Snapshot, error) {
	health, err := c.Health(ctx)
	if err != nil {
		return application.Snapshot{}, err
	}

	var devices []deviceJSON
	if err := c.do(ctx, http.MethodGet, "/devices", nil, &devices); err != nil {
		return application.Snapshot{}, err
	}
	var sessions []sessionJSON
	if err := c.do(ctx, http.MethodGet, "/sessions", nil, &sessions); err != nil {
		return application.Snapshot{}, err
	}
	var stats statsJSON
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &stats); err != nil {
		return application.Snapshot{}, err
	}

	snapshot := application.Snapshot{
		RunID:     health.RunID,
		Running:   health.Running,
		LastError: health.LastError,
		Stats:     domain.ProcessStats{ActiveSessions: stats.ActiveSessions, TotalStarted: stats.TotalStarted},
	}
	if health.UpdatedAt != nil {
		snapshot.UpdatedAt = *health.UpdatedAt
	}
	if stats.UpdatedAt != nil {
		snapshot.StatsAt = *stats.UpdatedAt
	}

	byID := make(map[domain.DeviceID]domain.Device, len(devices))
	for _, d := range devices {
		device := domain.Device{
			ID:             domain.DeviceID(d.ID),
			Name:           d.Name,
			Model:          d.Model,
			ConnectionType: domain.ConnectionType(d.ConnectionType),
			Status:         domain.DeviceStatus(d.Status),
			IPAddress:      d.IPAddress,
		}
		byID[device.ID] = device
		snapshot.Devices = append(snapshot.Devices, device)
	}
	for _, s := range sessions {
		view := application.SessionView{
			Session: domain.MirrorSession{ID: domain.SessionID(s.ID), DeviceID: domain.DeviceID(s.DeviceID), StartedAt: s.StartedAt},
			Status:  domain.SessionStatus(s.Status),
		}
		if device, ok := byID[view.Session.DeviceID]; ok {
			view.Device = &device
		}
		snapshot.Sessions = append(snapshot.Sessions, view)
	}

	return snapshot, nil
}

func (c *Client) Refresh(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/refresh", nil, nil)
}

func (c *Client) StartMirroring(ctx context.Context, cmd application.StartMirroringCommand) (domain.SessionID, error) {
	var body any
	if cmd.Options != nil {
		o := *cmd.Options
		body = optionsJSON{
			MaxSize:       o.MaxSize,
			BitRate:       o.BitRate,
			MaxFPS:        o.MaxFPS,
			AlwaysOnTop:   o.AlwaysOnTop,
			StayAwake:     o.StayAwake,
			TurnScreenOff: o.TurnScreenOff,
		}
	}

	var out map[string]string
	if err := c.do(ctx, http.MethodPost, "/devices/"+url.PathEscape(string(cmd.DeviceID))+"/mirror", body, &out); err != nil {
		return "", err
	}

	return domain.SessionID(out["session_id"]), nil
}

func (c *Client) StopMirroring(ctx context.Context, id domain.SessionID) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(string(id)), nil, nil)
}

func (c *Client) StopAllMirroring(ctx context.Context) (int, error) {
	var out map[string]int
	if err := c.do(ctx, http.MethodPost, "/sessions/stop-all", nil, &out); err != nil {
		return 0, err
	}

	return out["stopped"], nil
}

func (c *Client) ConnectWireless(ctx context.Context, address string) error {
	return c.do(ctx, http.MethodPost, "/wireless/connect", connectRequest{Address: address}, nil)
}

func (c *Client) DisconnectDevice(ctx context.Context, id domain.DeviceID) error {
	return c.do(ctx, http.MethodPost, "/devices/"+url.PathEscape(string(id))+"/disconnect", nil, nil)
}

func (c *Client) EnableWireless(ctx context.Context, id domain.DeviceID) (string, error) {
	var out map[string]string
	if err := c.do(ctx, http.MethodPost, "/devices/"+url.PathEscape(string(id))+"/wireless", nil, &out); err != nil {
		return "", err
	}

	return out["ip_address"], nil
}

// Events streams server notifications until ctx is done or the server goes
// away. The returned channel is closed when the stream ends.
func (c *Client) Events(ctx context.Context) (<-chan domain.Notification, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/events"
	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial event stream: %w: %w", err, domain.ErrTransport)
	}

	out := make(chan domain.Notification, eventBuffer)
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	go func() {
		defer close(out)
		defer stop()
		defer conn.Close()

		for {
			var msg streamMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type != "notification" || msg.Notification == nil {
				continue
			}
			n := msg.Notification
			select {
			case out <- domain.Notification{
				ID:        n.ID,
				Kind:      domain.EventKind(n.Kind),
				Level:     domain.NotificationLevel(n.Level),
				Message:   n.Message,
				DeviceID:  domain.DeviceID(n.DeviceID),
				SessionID: domain.SessionID(n.SessionID),
				ErrorKind: domain.ErrorKind(n.ErrorKind),
				At:        n.At,
			}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, err, domain.ErrTransport)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	return nil
}

func decodeError(resp *http.Response) error {
	var body errorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		body.Message = strings.TrimSpace(string(data))
		if body.Message == "" {
			body.Message = resp.Status
		}
	}

	var kind error
	switch domain.ErrorKind(body.Kind) {
	case domain.KindBusy:
		kind = domain.ErrBusy
	case domain.KindNotFound:
		kind = domain.ErrNotFound
	case domain.KindRejected:
		kind = domain.ErrRejected
	case domain.KindTransport:
		kind = domain.ErrTransport
	}
	if kind == nil && resp.StatusCode == http.StatusServiceUnavailable {
		kind = application.ErrCoordinatorStopped
	}
	if kind == nil {
		return errors.New(body.Message)
	}

	return &remoteError{message: body.Message, kind: kind}
}

type remoteError struct {
	message string
	kind    error
}

func (e *remoteError) Error() string { return e.message }
func (e *remoteError) Unwrap() error { return e.kind }
