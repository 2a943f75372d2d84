package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDevicesCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "devices [device...]",
		Aliases: []string{"status"},
		Short:   "Scan and show Android devices and their mirroring sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := loadSnapshot(cmd, app, asJSON)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, snapshot.Devices)
			}

			return writeSnapshotOutput(cmd, app, snapshot, deviceIDs(args))
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newSessionsCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List active mirroring sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snapshot, err := loadSnapshot(cmd, app, true)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, snapshot.Sessions)
			}

			if len(snapshot.Sessions) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no active sessions")
				return nil
			}
			for _, view := range snapshot.Sessions {
				name := string(view.Session.DeviceID)
				if view.Device != nil {
					name = view.Device.DisplayName()
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n",
					view.Session.ID, view.Session.DeviceID, sanitizeForTerminal(name))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newStatsCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show mirroring process statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snapshot, err := loadSnapshot(cmd, app, true)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, snapshot.Stats)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "active sessions: %d\n", snapshot.Stats.ActiveSessions)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "total started: %d\n", snapshot.Stats.TotalStarted)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}
