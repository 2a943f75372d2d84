package domain

import (
	"errors"
	"fmt"
)

var (
	ErrTransport = errors.New("backend unreachable")
	ErrRejected  = errors.New("backend rejected operation")
	ErrBusy      = errors.New("operation already in progress")
	ErrNotFound  = errors.New("not found")
)

var (
	ErrDeviceNotFound     = fmt.Errorf("device %w", ErrNotFound)
	ErrSessionNotFound    = fmt.Errorf("session %w", ErrNotFound)
	ErrSessionActive      = fmt.Errorf("mirroring session already active: %w", ErrBusy)
	ErrDeviceNotConnected = fmt.Errorf("device not connected: %w", ErrRejected)
	ErrSettingsNotFound   = fmt.Errorf("settings %w", ErrNotFound)
)

type ErrorKind string

const (
	KindUnknown   ErrorKind = "unknown"
	KindTransport ErrorKind = "transport"
	KindRejected  ErrorKind = "rejected"
	KindBusy      ErrorKind = "busy"
	KindNotFound  ErrorKind = "not_found"
)

// KindOf classifies err into the coordinator error taxonomy.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrRejected):
		return KindRejected
	case errors.Is(err, ErrTransport):
		return KindTransport
	default:
		return KindUnknown
	}
}
