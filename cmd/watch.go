package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bnema/mirrorctl/internal/adapters/httpapi"
	statusadapter "github.com/bnema/mirrorctl/internal/adapters/render/status"
	"github.com/bnema/mirrorctl/internal/application"
	"github.com/bnema/mirrorctl/internal/domain"
)

func newWatchCmd(app *app) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch [device...]",
		Short: "Live view of devices, sessions and events",
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive, got %s", interval)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var (
				snapshot func() application.Snapshot
				events   <-chan domain.Notification
			)
			if remoteFlag(cmd) {
				client := httpapi.NewClient(app.config.ServerAddr, nil)
				stream, err := client.Events(ctx)
				if err != nil {
					return err
				}
				events = stream
				snapshot = pollRemoteSnapshot(ctx, client, interval)
			} else {
				// Logs would tear the live view.
				coord := app.newCoordinator(zerolog.Nop())
				stream, cancel := coord.Events(32)
				defer cancel()
				if err := coord.Start(ctx); err != nil {
					return err
				}
				defer coord.Stop()
				events = stream
				snapshot = coord.Snapshot
			}

			model := statusadapter.NewLiveModel(snapshot, events, interval, statusadapter.RenderOptions{
				StaleAfter: staleAfter,
				Devices:    deviceIDs(args),
			})
			p := tea.NewProgram(model,
				tea.WithContext(ctx),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			)
			if _, err := p.Run(); err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
				return err
			}

			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Redraw interval")

	return cmd
}

// pollRemoteSnapshot keeps the latest daemon snapshot in the background so the
// view never blocks on the network.
func pollRemoteSnapshot(ctx context.Context, client *httpapi.Client, interval time.Duration) func() application.Snapshot {
	var (
		mu     sync.Mutex
		latest application.Snapshot
	)

	fetch := func() {
		snapshot, err := client.Snapshot(ctx)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			latest.LastError = err.Error()
			return
		}
		latest = snapshot
	}

	fetch()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fetch()
			}
		}
	}()

	return func() application.Snapshot {
		mu.Lock()
		defer mu.Unlock()
		return latest
	}
}
