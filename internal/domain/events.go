package domain

import "time"

type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
)

type EventKind string

const (
	EventSessionStarted      EventKind = "session_started"
	EventSessionStopped      EventKind = "session_stopped"
	EventSessionsStopped     EventKind = "sessions_stopped"
	EventSessionCrashed      EventKind = "session_crashed"
	EventSessionVanished     EventKind = "session_vanished"
	EventSessionEnded        EventKind = "session_ended"
	EventDeviceConnected     EventKind = "device_connected"
	EventDeviceDisconnected  EventKind = "device_disconnected"
	EventWirelessEnabled     EventKind = "wireless_enabled"
	EventLifecycleFailed     EventKind = "lifecycle_failed"
	EventRefreshFailed       EventKind = "refresh_failed"
	EventRefreshRecovered    EventKind = "refresh_recovered"
	EventDeviceAdded         EventKind = "device_added"
	EventDeviceRemoved       EventKind = "device_removed"
	EventDeviceStatusChanged EventKind = "device_status_changed"
)

// Level is the message class presented for an event kind.
func (k EventKind) Level() NotificationLevel {
	switch k {
	case EventSessionStarted, EventSessionStopped, EventSessionsStopped,
		EventDeviceConnected, EventDeviceDisconnected, EventWirelessEnabled:
		return LevelSuccess
	case EventSessionCrashed, EventSessionVanished, EventLifecycleFailed, EventRefreshFailed:
		return LevelError
	default:
		return LevelInfo
	}
}

type Notification struct {
	ID        string
	Kind      EventKind
	Level     NotificationLevel
	Message   string
	DeviceID  DeviceID
	SessionID SessionID
	ErrorKind ErrorKind
	At        time.Time
}
