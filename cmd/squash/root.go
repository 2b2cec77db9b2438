package main

import (
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

type runFlags struct {
	output     string
	tolerance  float64
	iterations int
	quality    int
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string
	var flags runFlags

	ctx := newCommandContext(&configFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:   "squash <input> <size-mb>",
		Short: "Re-encode a video until it fits a target size",
		Long: "squash searches for the video bitrate that brings <input> just under <size-mb> megabytes,\n" +
			"re-encoding with ffmpeg and adjusting the bitrate after each attempt.",
		Version:       version,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSquash(cmd, ctx, flags, args)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug also mirrors the log to stderr)")

	rootCmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output path (default <input>-squashed-<timestamp><ext>)")
	rootCmd.Flags().Float64VarP(&flags.tolerance, "tolerance", "t", 0, "Accepted shortfall below the target, in percent (0 < t <= 50)")
	rootCmd.Flags().IntVarP(&flags.iterations, "iterations", "i", 0, "Maximum encode attempts")
	rootCmd.Flags().CountVarP(&flags.quality, "quality", "q", "Quality tier; repeat for slower, more efficient presets (-q to -qqqq)")

	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newDepsCommand(ctx))

	return rootCmd
}
