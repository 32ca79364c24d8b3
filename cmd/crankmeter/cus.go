package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/torosent/crankmeter/internal/agent/plugins"
)

// newCUsCommand records the bench's current concurrency level where the
// MonitorCUs plugin reads it.
func newCUsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cus LEVEL",
		Short: "Record the current concurrency level for the agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			level, err := strconv.Atoi(args[0])
			if err != nil || level < 0 {
				return fmt.Errorf("invalid level %q", args[0])
			}
			path := a.cfg.Agent.CUsFile
			if path == "" {
				return errors.New("no cus file: set --cus-file or agent.cus_file")
			}
			if err := plugins.WriteCUs(path, level); err != nil {
				return err
			}
			a.logger.Debug("concurrency level recorded", zap.String("path", path), zap.Int("cus", level))
			return nil
		},
	}
	cmd.Flags().String("cus-file", "", "File the agent's MonitorCUs plugin reads")
	return cmd
}
