package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"squash/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Show where ffmpeg and ffprobe resolve to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.CheckBinaries(deps.Tools(cfg.Tools.FFmpeg, cfg.Tools.FFprobe))
			rows := make([][]string, 0, len(statuses))
			missing := 0
			for _, status := range statuses {
				state := "ok"
				location := status.Command
				if !status.Available {
					state = "missing"
					location = status.Detail
					missing++
				}
				rows = append(rows, []string{status.Name, state, status.Source, location, status.Description})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Tool", "Status", "Source", "Location", "Purpose"},
				rows,
				nil,
			))
			if missing > 0 {
				_, err := deps.Require(deps.Tools(cfg.Tools.FFmpeg, cfg.Tools.FFprobe))
				return err
			}
			return nil
		},
	}
}
