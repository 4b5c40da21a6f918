package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. Running the binary without a
// subcommand serves.
func newRootCmd() *cobra.Command {
	var configFlag string

	root := &cobra.Command{
		Use:           "graylogic-sequencer",
		Short:         "Gray Logic presentation sequencer",
		Long:          `Plays showfiles of timed surface, animator, media and scene steps over MQTT.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), getConfigPath(configFlag))
		},
	}
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "path to config.yaml (default $GRAYLOGIC_CONFIG or "+defaultConfigPath+")")

	configPath := func() string { return getConfigPath(configFlag) }

	root.AddCommand(
		newServeCmd(configPath),
		newValidateCmd(configPath),
		newImportCmd(configPath),
		newPlayCmd(configPath),
		newTokenCmd(configPath),
		newHashPasswordCmd(),
		newVersionCmd(),
	)
	return root
}
