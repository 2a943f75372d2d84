package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const doctorTimeout = 10 * time.Second

var errDoctorProblems = errors.New("doctor found problems")

func newDoctorCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that adb and scrcpy are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
			defer cancel()

			out := cmd.OutOrStdout()
			healthy := true
			check := func(name, path string, version func(context.Context) (string, error)) {
				v, err := version(ctx)
				if err != nil {
					healthy = false
					_, _ = fmt.Fprintf(out, "%s (%s): unavailable: %v\n", name, path, err)
					return
				}
				_, _ = fmt.Fprintf(out, "%s (%s): %s\n", name, path, v)
			}

			check("adb", app.config.ADBPath, app.adb.Version)
			check("scrcpy", app.config.ScrcpyPath, app.scrcpy.Version)

			if !healthy {
				return errDoctorProblems
			}
			return nil
		},
	}
}
