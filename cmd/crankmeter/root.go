package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/torosent/crankmeter/internal/config"
)

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "crankmeter",
		Short:         "Measure bench runs: host monitoring and result statistics",
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewLoader().Load(cmd.Flags())
			if err != nil {
				return err
			}
			return a.init(cmd.Context(), cfg)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close(cmd.Context())
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	config.RegisterCommonFlags(root.PersistentFlags())

	root.AddCommand(
		newReportCommand(a),
		newMonitorCommand(a),
		newAgentCommand(a),
		newCUsCommand(a),
	)
	return root
}
