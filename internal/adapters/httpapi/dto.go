package httpapi

import (
	"time"

	"github.com/bnema/mirrorctl/internal/application"
	"github.com/bnema/mirrorctl/internal/domain"
)

type deviceJSON struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Model          string `json:"model"`
	ConnectionType string `json:"connection_type"`
	Status         string `json:"status"`
	IPAddress      string `json:"ip_address,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
}

type sessionJSON struct {
	ID         string    `json:"id"`
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name,omitempty"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
}

type statsJSON struct {
	ActiveSessions int        `json:"active_sessions"`
	TotalStarted   int        `json:"total_started"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

type healthJSON struct {
	Status    string     `json:"status"`
	RunID     string     `json:"run_id"`
	Running   bool       `json:"running"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

type notificationJSON struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	DeviceID  string    `json:"device_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	At        time.Time `json:"at"`
}

type optionsJSON struct {
	MaxSize       int  `json:"max_size"`
	BitRate       int  `json:"bit_rate"`
	MaxFPS        int  `json:"max_fps"`
	AlwaysOnTop   bool `json:"always_on_top"`
	StayAwake     bool `json:"stay_awake"`
	TurnScreenOff bool `json:"turn_screen_off"`
}

type connectRequest struct {
	Address string `json:"address"`
}

type errorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	Kind    string `json:"kind,omitempty"`
}

func toDeviceJSON(device domain.Device, snapshot application.Snapshot) deviceJSON {
	out := deviceJSON{
		ID:             string(device.ID),
		Name:           device.Name,
		Model:          device.Model,
		ConnectionType: string(device.ConnectionType),
		Status:         string(device.Status),
		IPAddress:      device.IPAddress,
	}
	if view, ok := snapshot.SessionForDevice(device.ID); ok {
		out.SessionID = string(view.Session.ID)
	}

	return out
}

func toSessionJSON(view application.SessionView) sessionJSON {
	out := sessionJSON{
		ID:        string(view.Session.ID),
		DeviceID:  string(view.Session.DeviceID),
		Status:    string(view.Status),
		StartedAt: view.Session.StartedAt,
	}
	if view.Device != nil {
		out.DeviceName = view.Device.DisplayName()
	}

	return out
}

func toNotificationJSON(n domain.Notification) notificationJSON {
	return notificationJSON{
		ID:        n.ID,
		Kind:      string(n.Kind),
		Level:     string(n.Level),
		Message:   n.Message,
		DeviceID:  string(n.DeviceID),
		SessionID: string(n.SessionID),
		ErrorKind: string(n.ErrorKind),
		At:        n.At,
	}
}

func (o optionsJSON) toDomain() domain.MirrorOptions {
	return domain.MirrorOptions{
		MaxSize:       o.MaxSize,
		BitRate:       o.BitRate,
		MaxFPS:        o.MaxFPS,
		AlwaysOnTop:   o.AlwaysOnTop,
		StayAwake:     o.StayAwake,
		TurnScreenOff: o.TurnScreenOff,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	return &t
}
