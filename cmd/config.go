package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bnema/mirrorctl/internal/application"
	"github.com/bnema/mirrorctl/internal/domain"
)

func newConfigCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and edit mirroring settings",
	}

	cmd.AddCommand(
		newConfigShowCmd(app),
		newConfigSetDefaultCmd(app),
		newConfigSetDeviceCmd(app),
		newConfigHostsCmd(app),
	)

	return cmd
}

type configView struct {
	ConfigFile     string                 `json:"config_file,omitempty"`
	SettingsFile   string                 `json:"settings_file"`
	ADBPath        string                 `json:"adb_path"`
	ScrcpyPath     string                 `json:"scrcpy_path"`
	ServerAddr     string                 `json:"server_addr"`
	DefaultOptions optionsView            `json:"default_options"`
	DeviceOptions  map[string]optionsView `json:"device_options"`
	KnownHosts     []string               `json:"known_hosts"`
}

type optionsView struct {
	MaxSize       int  `json:"max_size"`
	BitRate       int  `json:"bit_rate"`
	MaxFPS        int  `json:"max_fps"`
	AlwaysOnTop   bool `json:"always_on_top"`
	StayAwake     bool `json:"stay_awake"`
	TurnScreenOff bool `json:"turn_screen_off"`
}

func toOptionsView(opts domain.MirrorOptions) optionsView {
	return optionsView(opts)
}

func newConfigShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration and stored settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := app.settings.Load(cmd.Context())
			if err != nil {
				return err
			}

			view := configView{
				ConfigFile:     app.configFile,
				SettingsFile:   app.settingsPath,
				ADBPath:        app.config.ADBPath,
				ScrcpyPath:     app.config.ScrcpyPath,
				ServerAddr:     app.config.ServerAddr,
				DefaultOptions: toOptionsView(settings.DefaultOptions),
				DeviceOptions:  make(map[string]optionsView, len(settings.DeviceOptions)),
				KnownHosts:     settings.KnownHosts,
			}
			for id, opts := range settings.DeviceOptions {
				view.DeviceOptions[string(id)] = toOptionsView(opts)
			}
			if view.KnownHosts == nil {
				view.KnownHosts = []string{}
			}
			if asJSON {
				return writeJSON(cmd, view)
			}

			out := cmd.OutOrStdout()
			configFile := view.ConfigFile
			if configFile == "" {
				configFile = "(none, using defaults)"
			}
			_, _ = fmt.Fprintf(out, "config file: %s\n", configFile)
			_, _ = fmt.Fprintf(out, "settings file: %s\n", view.SettingsFile)
			_, _ = fmt.Fprintf(out, "adb: %s\n", view.ADBPath)
			_, _ = fmt.Fprintf(out, "scrcpy: %s\n", view.ScrcpyPath)
			_, _ = fmt.Fprintf(out, "server: %s\n", view.ServerAddr)
			_, _ = fmt.Fprintf(out, "default options: %s\n", formatOptions(settings.DefaultOptions))

			ids := make([]string, 0, len(settings.DeviceOptions))
			for id := range settings.DeviceOptions {
				ids = append(ids, string(id))
			}
			sort.Strings(ids)
			for _, id := range ids {
				_, _ = fmt.Fprintf(out, "device %s: %s\n", sanitizeForTerminal(id), formatOptions(settings.DeviceOptions[domain.DeviceID(id)]))
			}

			if len(view.KnownHosts) == 0 {
				_, _ = fmt.Fprintln(out, "known hosts: none")
			} else {
				_, _ = fmt.Fprintf(out, "known hosts: %d\n", len(view.KnownHosts))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newConfigSetDefaultCmd(app *app) *cobra.Command {
	var flags mirrorFlags

	cmd := &cobra.Command{
		Use:   "set-default",
		Short: "Change the default mirroring options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := app.settings.Load(cmd.Context())
			if err != nil {
				return err
			}

			opts, changed := flags.apply(cmd, settings.DefaultOptions)
			if !changed {
				return fmt.Errorf("no options given")
			}
			if err := app.settings.SetOptions(cmd.Context(), application.SetOptionsCommand{Options: opts}); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "default options: %s\n", formatOptions(opts))
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

func newConfigSetDeviceCmd(app *app) *cobra.Command {
	var flags mirrorFlags
	var reset bool

	cmd := &cobra.Command{
		Use:   "set-device <device>",
		Short: "Store mirroring options for one device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.DeviceID(args[0])
			if reset {
				if err := app.settings.ClearDeviceOptions(cmd.Context(), id); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "device %s: using default options\n", id)
				return nil
			}

			current, err := app.settings.OptionsFor(cmd.Context(), id)
			if err != nil {
				return err
			}
			opts, changed := flags.apply(cmd, current)
			if !changed {
				return fmt.Errorf("no options given")
			}
			if err := app.settings.SetOptions(cmd.Context(), application.SetOptionsCommand{DeviceID: id, Options: opts}); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "device %s: %s\n", id, formatOptions(opts))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&reset, "clear", false, "Drop the device's options and fall back to the defaults")

	return cmd
}

func newConfigHostsCmd(app *app) *cobra.Command {
	var forget string

	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "List remembered wireless hosts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if forget != "" {
				if err := app.settings.ForgetHost(cmd.Context(), forget); err != nil {
					return err
				}
			}

			hosts, err := app.settings.KnownHosts(cmd.Context())
			if err != nil {
				return err
			}
			for _, host := range hosts {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), sanitizeForTerminal(host))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&forget, "forget", "", "Remove a remembered host first")

	return cmd
}

func formatOptions(opts domain.MirrorOptions) string {
	return fmt.Sprintf("max-size=%d bit-rate=%d max-fps=%d always-on-top=%t stay-awake=%t turn-screen-off=%t",
		opts.MaxSize, opts.BitRate, opts.MaxFPS, opts.AlwaysOnTop, opts.StayAwake, opts.TurnScreenOff)
}
