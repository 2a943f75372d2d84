package domain

import (
	"fmt"
	"strings"
	"time"
)

type SessionID string

type MirrorSession struct {
	ID        SessionID
	DeviceID  DeviceID
	StartedAt time.Time
}

func (s MirrorSession) Validate() error {
	if strings.TrimSpace(string(s.ID)) == "" {
		return fmt.Errorf("session id is required")
	}

	return nil
}

// SessionStatus is a point-in-time projection obtained by an explicit status query.
type SessionStatus string

const (
	SessionRunning SessionStatus = "Running"
	SessionStopped SessionStatus = "Stopped"
	SessionError   SessionStatus = "Error"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionRunning, SessionStopped, SessionError:
		return true
	default:
		return false
	}
}

type ProcessStats struct {
	ActiveSessions int
	TotalStarted   int
}
