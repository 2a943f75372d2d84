package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/mirrorctl/internal/application"
	"github.com/bnema/mirrorctl/internal/domain"
)

const stopTimeout = 5 * time.Second

type mirrorFlags struct {
	maxSize       int
	bitRate       int
	maxFPS        int
	alwaysOnTop   bool
	stayAwake     bool
	turnScreenOff bool
}

func (f *mirrorFlags) register(cmd *cobra.Command) {
	defaults := domain.DefaultMirrorOptions()
	cmd.Flags().IntVar(&f.maxSize, "max-size", defaults.MaxSize, "Limit the mirrored frame's largest dimension")
	cmd.Flags().IntVar(&f.bitRate, "bit-rate", defaults.BitRate, "Video bit rate in bits per second")
	cmd.Flags().IntVar(&f.maxFPS, "max-fps", defaults.MaxFPS, "Limit the frame rate")
	cmd.Flags().BoolVar(&f.alwaysOnTop, "always-on-top", defaults.AlwaysOnTop, "Keep the mirror window above others")
	cmd.Flags().BoolVar(&f.stayAwake, "stay-awake", defaults.StayAwake, "Keep the device awake while mirroring")
	cmd.Flags().BoolVar(&f.turnScreenOff, "turn-screen-off", defaults.TurnScreenOff, "Turn the device screen off while mirroring")
}

// apply overrides base with the flags the user set explicitly.
func (f *mirrorFlags) apply(cmd *cobra.Command, base domain.MirrorOptions) (domain.MirrorOptions, bool) {
	changed := false
	set := func(name string, fn func()) {
		if cmd.Flags().Changed(name) {
			fn()
			changed = true
		}
	}

	set("max-size", func() { base.MaxSize = f.maxSize })
	set("bit-rate", func() { base.BitRate = f.bitRate })
	set("max-fps", func() { base.MaxFPS = f.maxFPS })
	set("always-on-top", func() { base.AlwaysOnTop = f.alwaysOnTop })
	set("stay-awake", func() { base.StayAwake = f.stayAwake })
	set("turn-screen-off", func() { base.TurnScreenOff = f.turnScreenOff })

	return base, changed
}

func newStartCmd(app *app) *cobra.Command {
	var flags mirrorFlags
	var wait bool

	cmd := &cobra.Command{
		Use:   "start <device>",
		Short: "Start mirroring a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deviceID := domain.DeviceID(args[0])
			start := application.StartMirroringCommand{DeviceID: deviceID}

			stored, err := app.settings.OptionsFor(cmd.Context(), deviceID)
			if err != nil {
				return err
			}
			if opts, changed := flags.apply(cmd, stored); changed {
				start.Options = &opts
			}

			if wait && remoteFlag(cmd) {
				return errors.New("--wait is only available without --remote")
			}

			ctrl, err := loadController(cmd, app, true)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			if wait {
				return runAndWait(cmd, ctrl.(localController), start)
			}

			id, err := ctrl.StartMirroring(cmd.Context(), start)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Started session %s on %s\n", id, deviceID)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&wait, "wait", false, "Stay in the foreground until the session ends; interrupt stops it")

	return cmd
}

// runAndWait keeps a coordinator running around a single session and returns
// once that session ends or the user interrupts.
func runAndWait(cmd *cobra.Command, ctrl localController, start application.StartMirroringCommand) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, cancel := ctrl.Events(16)
	defer cancel()

	if err := ctrl.Start(ctx); err != nil {
		return err
	}

	id, err := ctrl.StartMirroring(ctx, start)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Mirroring %s (session %s), interrupt to stop\n", start.DeviceID, id)

	interrupted, err := waitForSession(ctx, events, id, start.DeviceID)
	if interrupted {
		return stopWaitedSession(cmd, ctrl, id)
	}

	return err
}

// waitForSession blocks until session id ends. It reports interrupted when
// ctx ends first, leaving the session to the caller.
func waitForSession(ctx context.Context, events <-chan domain.Notification, id domain.SessionID, device domain.DeviceID) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			return true, nil
		case n, ok := <-events:
			if !ok {
				// The coordinator closes the stream when ctx ends.
				return ctx.Err() != nil, nil
			}
			switch {
			case n.Kind == domain.EventSessionsStopped:
				return false, nil
			case n.Kind == domain.EventDeviceRemoved && n.DeviceID == device:
				return false, fmt.Errorf("device %s removed while mirroring", device)
			case n.SessionID != id:
				continue
			}
			switch n.Kind {
			case domain.EventSessionCrashed, domain.EventSessionVanished, domain.EventSessionEnded:
				return false, errors.New(n.Message)
			case domain.EventSessionStopped:
				return false, nil
			}
		}
	}
}

func stopWaitedSession(cmd *cobra.Command, ctrl localController, id domain.SessionID) error {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := ctrl.StopMirroring(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Mirroring stopped")
	return nil
}

func newStopCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <session>",
		Short: "Stop a mirroring session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := loadController(cmd, app, true)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			id := domain.SessionID(args[0])
			if err := ctrl.StopMirroring(cmd.Context(), id); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stopped session %s\n", id)
			return nil
		},
	}
}

func newStopAllCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop-all",
		Short: "Stop every mirroring session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, err := loadController(cmd, app, true)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			count, err := ctrl.StopAllMirroring(cmd.Context())
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stopped %d session(s)\n", count)
			return nil
		},
	}
}
