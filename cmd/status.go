package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cobra"

	statusadapter "github.com/bnema/mirrorctl/internal/adapters/render/status"
	"github.com/bnema/mirrorctl/internal/application"
	"github.com/bnema/mirrorctl/internal/domain"
)

const staleAfter = 30 * time.Second

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSnapshotOutput(cmd *cobra.Command, app *app, snapshot application.Snapshot, devices []domain.DeviceID) error {
	rendered, err := app.statusRenderer(snapshot, statusadapter.RenderOptions{
		Now:        app.now(),
		StaleAfter: staleAfter,
		Devices:    devices,
	})
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

// loadController opens a controller, with a scanning spinner on stderr unless
// the output is machine readable.
func loadController(cmd *cobra.Command, app *app, quiet bool) (controller, error) {
	remote := remoteFlag(cmd)
	if quiet || remote {
		return app.openController(cmd.Context(), remote)
	}

	var ctrl controller
	err := runScanSpinner(cmd.Context(), cmd.ErrOrStderr(), "Scanning devices...", func(ctx context.Context) error {
		var err error
		ctrl, err = app.openController(ctx, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	return ctrl, nil
}

func loadSnapshot(cmd *cobra.Command, app *app, quiet bool) (application.Snapshot, error) {
	ctrl, err := loadController(cmd, app, quiet)
	if err != nil {
		return application.Snapshot{}, err
	}
	defer ctrl.Close()

	return ctrl.Snapshot(cmd.Context())
}

func sanitizeForTerminal(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
}

func deviceIDs(args []string) []domain.DeviceID {
	ids := make([]domain.DeviceID, 0, len(args))
	for _, arg := range args {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			ids = append(ids, domain.DeviceID(trimmed))
		}
	}

	return ids
}
