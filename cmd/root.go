package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mirrorctl",
		Short:         "mirrorctl: mirror Android devices with scrcpy",
		Long:          "mirrorctl discovers Android devices through adb, starts and stops scrcpy mirroring sessions, manages wireless connections, and keeps a live view of devices and sessions.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.PersistentFlags().Bool("remote", false, "Talk to a running `mirrorctl serve` instead of adb directly")

	rootCmd.AddCommand(
		newVersionCmd(),
		newDevicesCmd(app),
		newSessionsCmd(app),
		newStatsCmd(app),
		newStartCmd(app),
		newStopCmd(app),
		newStopAllCmd(app),
		newConnectCmd(app),
		newDisconnectCmd(app),
		newEnableWirelessCmd(app),
		newWatchCmd(app),
		newServeCmd(app),
		newConfigCmd(app),
		newDoctorCmd(app),
	)

	return rootCmd
}

func remoteFlag(cmd *cobra.Command) bool {
	remote, _ := cmd.Flags().GetBool("remote")
	return remote
}
