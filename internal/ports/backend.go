package ports

//go:generate mockgen -destination=mock_backend.go -package=ports github.com/bnema/mirrorctl/internal/ports Backend

import (
	"context"

	"github.com/bnema/mirrorctl/internal/domain"
)

type DeviceService interface {
	ScanDevices(ctx context.Context) ([]domain.Device, error)
	ConnectWireless(ctx context.Context, address string) error
	DisconnectDevice(ctx context.Context, id domain.DeviceID) error
	EnableWirelessMode(ctx context.Context, id domain.DeviceID) (string, error)
}

type MirrorService interface {
	ListActiveSessions(ctx context.Context) ([]domain.MirrorSession, error)
	GetSessionStatus(ctx context.Context, id domain.SessionID) (domain.SessionStatus, error)
	GetProcessStats(ctx context.Context) (domain.ProcessStats, error)
	StartMirroring(ctx context.Context, id domain.DeviceID, opts domain.MirrorOptions) (domain.SessionID, error)
	StopMirroring(ctx context.Context, id domain.SessionID) (bool, error)
	StopAllMirroring(ctx context.Context) (int, error)
}

// Backend is the external device scanner and process manager the coordinator consumes.
type Backend interface {
	DeviceService
	MirrorService
}
