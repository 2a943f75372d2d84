package local

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/mirrorctl/internal/adapters/adb"
	"github.com/bnema/mirrorctl/internal/domain"
)

const (
	DefaultWirelessPort = 5555
	DefaultSettleDelay  = time.Second
)

type adbClient interface {
	StartServer(ctx context.Context) error
	Devices(ctx context.Context) ([]adb.Entry, error)
	Model(ctx context.Context, serial string) (string, error)
	Connect(ctx context.Context, address string) (string, error)
	Disconnect(ctx context.Context, serial string) (string, error)
	TCPIP(ctx context.Context, serial string, port int) error
	DeviceIP(ctx context.Context, serial string) (string, error)
}

type processManager interface {
	Start(deviceID domain.DeviceID, opts domain.MirrorOptions) (domain.SessionID, error)
	Stop(id domain.SessionID) (bool, error)
	StopAll() int
	Status(id domain.SessionID) domain.SessionStatus
	Sessions() []domain.MirrorSession
	Stats() domain.ProcessStats
}

type Option func(*Backend)

func WithWirelessPort(port int) Option {
	return func(b *Backend) {
		if port > 0 {
			b.port = port
		}
	}
}

func WithSettleDelay(d time.Duration) Option {
	return func(b *Backend) {
		if d >= 0 {
			b.settle = d
		}
	}
}

// Backend runs devices through adb and mirrors through scrcpy on this machine.
type Backend struct {
	adb    adbClient
	procs  processManager
	port   int
	settle time.Duration
	log    zerolog.Logger
}

func NewBackend(adbClient adbClient, procs processManager, log zerolog.Logger, opts ...Option) *Backend {
	b := &Backend{
		adb:    adbClient,
		procs:  procs,
		port:   DefaultWirelessPort,
		settle: DefaultSettleDelay,
		log:    log.With().Str("component", "local_backend").Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

func (b *Backend) ScanDevices(ctx context.Context) ([]domain.Device, error) {
	if err := b.adb.StartServer(ctx); err != nil {
		b.log.Debug().Err(err).Msg("adb start-server failed")
	}

	entries, err := b.adb.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan devices: %w", err)
	}

	devices := make([]domain.Device, 0, len(entries))
	for _, entry := range entries {
		device := deviceFromEntry(entry)
		if device.Model == "" && device.Status == domain.DeviceConnected {
			if model, err := b.adb.Model(ctx, entry.Serial); err == nil {
				device.Model = model
			}
		}
		device.Name = device.Model
		if device.Model == "" {
			device.Model = "Unknown"
			device.Name = "Unknown Device"
		}
		devices = append(devices, device)
	}

	return devices, nil
}

func deviceFromEntry(entry adb.Entry) domain.Device {
	device := domain.Device{
		ID:             domain.DeviceID(entry.Serial),
		Model:          entry.Model,
		ConnectionType: domain.ConnectionUSB,
		Status:         statusFromState(entry.State),
	}

	if host, _, ok := strings.Cut(entry.Serial, ":"); ok {
		device.ConnectionType = domain.ConnectionWireless
		device.IPAddress = host
	}

	return device
}

func statusFromState(state string) domain.DeviceStatus {
	switch state {
	case "device":
		return domain.DeviceConnected
	case "unauthorized":
		return domain.DeviceUnauthorized
	case "offline":
		return domain.DeviceOffline
	default:
		return domain.DeviceDisconnected
	}
}

func (b *Backend) ConnectWireless(ctx context.Context, address string) error {
	address = strings.TrimSpace(address)
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, strconv.Itoa(b.port))
	}

	out, err := b.adb.Connect(ctx, address)
	if err != nil {
		return fmt.Errorf("connect %s: %w", address, err)
	}
	if !strings.Contains(out, "connected") {
		return fmt.Errorf("connect %s: %s: %w", address, out, domain.ErrRejected)
	}

	return nil
}

func (b *Backend) DisconnectDevice(ctx context.Context, id domain.DeviceID) error {
	out, err := b.adb.Disconnect(ctx, string(id))
	if err != nil {
		return fmt.Errorf("disconnect %s: %w", id, err)
	}
	if !strings.Contains(out, "disconnected") {
		return fmt.Errorf("disconnect %s: %s: %w", id, out, domain.ErrRejected)
	}

	return nil
}

func (b *Backend) EnableWirelessMode(ctx context.Context, id domain.DeviceID) (string, error) {
	if err := b.adb.TCPIP(ctx, string(id), b.port); err != nil {
		return "", fmt.Errorf("enable wireless on %s: %w", id, err)
	}

	if b.settle > 0 {
		timer := time.NewTimer(b.settle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("enable wireless on %s: %w: %w", id, ctx.Err(), domain.ErrTransport)
		case <-timer.C:
		}
	}

	ip, err := b.adb.DeviceIP(ctx, string(id))
	if err != nil {
		return "", fmt.Errorf("enable wireless on %s: %w", id, err)
	}

	return ip, nil
}

func (b *Backend) ListActiveSessions(context.Context) ([]domain.MirrorSession, error) {
	return b.procs.Sessions(), nil
}

func (b *Backend) GetSessionStatus(_ context.Context, id domain.SessionID) (domain.SessionStatus, error) {
	return b.procs.Status(id), nil
}

func (b *Backend) GetProcessStats(context.Context) (domain.ProcessStats, error) {
	return b.procs.Stats(), nil
}

func (b *Backend) StartMirroring(ctx context.Context, id domain.DeviceID, opts domain.MirrorOptions) (domain.SessionID, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("start mirroring %s: %w: %w", id, err, domain.ErrTransport)
	}

	sessionID, err := b.procs.Start(id, opts)
	if err != nil {
		return "", fmt.Errorf("start mirroring %s: %w", id, err)
	}

	return sessionID, nil
}

func (b *Backend) StopMirroring(_ context.Context, id domain.SessionID) (bool, error) {
	return b.procs.Stop(id)
}

func (b *Backend) StopAllMirroring(context.Context) (int, error) {
	return b.procs.StopAll(), nil
}
