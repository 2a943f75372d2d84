package cmd

import (
	"context"
	"fmt"

	"github.com/bnema/mirrorctl/internal/adapters/httpapi"
	"github.com/bnema/mirrorctl/internal/application"
	"github.com/bnema/mirrorctl/internal/domain"
)

// controller is what the one-shot commands drive: an in-process coordinator,
// or a `mirrorctl serve` daemon when --remote is set.
type controller interface {
	Snapshot(ctx context.Context) (application.Snapshot, error)
	StartMirroring(ctx context.Context, cmd application.StartMirroringCommand) (domain.SessionID, error)
	StopMirroring(ctx context.Context, id domain.SessionID) error
	StopAllMirroring(ctx context.Context) (int, error)
	ConnectWireless(ctx context.Context, address string) error
	DisconnectDevice(ctx context.Context, id domain.DeviceID) error
	EnableWireless(ctx context.Context, id domain.DeviceID) (string, error)
	Close()
}

type localController struct {
	*application.Coordinator
}

func (c localController) Snapshot(context.Context) (application.Snapshot, error) {
	return c.Coordinator.Snapshot(), nil
}

func (c localController) Close() {
	c.Coordinator.Stop()
}

type remoteController struct {
	*httpapi.Client
}

func (remoteController) Close() {}

func (a *app) openController(ctx context.Context, remote bool) (controller, error) {
	if remote {
		return remoteController{httpapi.NewClient(a.config.ServerAddr, nil)}, nil
	}

	coord := a.newCoordinator(a.log)
	if err := coord.Refresh(ctx); err != nil {
		coord.Stop()
		return nil, fmt.Errorf("scan devices: %w", err)
	}

	return localController{coord}, nil
}
