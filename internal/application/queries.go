package application

import (
	"time"

	"github.com/bnema/mirrorctl/internal/domain"
)

type SessionView struct {
	Session domain.MirrorSession
	// Device is nil when the session's device is not in the last scan.
	Device *domain.Device
	Status domain.SessionStatus
}

type Snapshot struct {
	RunID     string
	Running   bool
	Devices   []domain.Device
	Sessions  []SessionView
	Stats     domain.ProcessStats
	StatsAt   time.Time
	UpdatedAt time.Time
	LastError string
}

func (s Snapshot) SessionForDevice(id domain.DeviceID) (SessionView, bool) {
	for i := len(s.Sessions) - 1; i >= 0; i-- {
		if s.Sessions[i].Session.DeviceID == id {
			return s.Sessions[i], true
		}
	}

	return SessionView{}, false
}
