package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bnema/mirrorctl/internal/adapters/httpapi"
)

func newServeCmd(app *app) *cobra.Command {
	var addr string
	var keepSessions bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the coordinator and expose it over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			coord := app.newCoordinator(app.log)
			if err := coord.Start(ctx); err != nil {
				return err
			}
			defer coord.Stop()

			if !keepSessions {
				defer func() {
					stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
					defer cancel()
					if count, err := coord.StopAllMirroring(stopCtx); err != nil {
						app.log.Warn().Err(err).Msg("stop sessions on exit")
					} else if count > 0 {
						app.log.Info().Int("count", count).Msg("stopped sessions on exit")
					}
				}()
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s (run %s)\n", addr, coord.RunID())
			return httpapi.NewServer(coord, app.log).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", app.config.ServerAddr, "Listen address")
	cmd.Flags().BoolVar(&keepSessions, "keep-sessions", false, "Leave mirroring sessions running on exit")

	return cmd
}
