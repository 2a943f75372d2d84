package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/mirrorctl/internal/domain"
)

func newConnectCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "connect <ip[:port]>",
		Short: "Connect to a device over Wi-Fi",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := loadController(cmd, app, true)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			if err := ctrl.ConnectWireless(cmd.Context(), args[0]); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s\n", args[0])
			return nil
		},
	}
}

func newDisconnectCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <device>",
		Short: "Disconnect a wireless device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := loadController(cmd, app, true)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			id := domain.DeviceID(args[0])
			if err := ctrl.DisconnectDevice(cmd.Context(), id); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Disconnected %s\n", id)
			return nil
		},
	}
}

func newEnableWirelessCmd(app *app) *cobra.Command {
	var connect bool

	cmd := &cobra.Command{
		Use:   "enable-wireless <device>",
		Short: "Switch a USB device to wireless debugging and print its address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := loadController(cmd, app, true)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			id := domain.DeviceID(args[0])
			ip, err := ctrl.EnableWireless(cmd.Context(), id)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wireless debugging enabled on %s at %s\n", id, ip)

			if !connect {
				return nil
			}
			if err := ctrl.ConnectWireless(cmd.Context(), ip); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s\n", ip)
			return nil
		},
	}

	cmd.Flags().BoolVar(&connect, "connect", false, "Connect to the device's wireless address afterwards")

	return cmd
}
