package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/uilens/pkg/uilens"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var skipVision bool
	var skipExtraction bool

	cmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Run the extraction pipeline against a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, cleanup, err := ctx.buildPipeline(dryRun)
			if err != nil {
				return err
			}
			defer cleanup()

			var opts []uilens.RunOption
			if dryRun {
				opts = append(opts, uilens.WithDryRun())
			}
			if skipVision {
				opts = append(opts, uilens.WithSkipVision())
			}
			if skipExtraction {
				opts = append(opts, uilens.WithSkipExtraction())
			}

			result, err := pipeline.Run(cmd.Context(), args[0], opts...)
			if err != nil {
				return err
			}
			printRunResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Walk the state machine without capturing or calling the capability")
	cmd.Flags().BoolVar(&skipVision, "skip-vision", false, "Skip component identification")
	cmd.Flags().BoolVar(&skipExtraction, "skip-extraction", false, "Skip token extraction")

	return cmd
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var reuse bool
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "resume <checkpoint-id>",
		Short: "Resume a previous run from its checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, cleanup, err := ctx.buildPipeline(dryRun)
			if err != nil {
				return err
			}
			defer cleanup()

			var opts []uilens.RunOption
			if reuse {
				opts = append(opts, uilens.WithReuseCompleted())
			}
			if dryRun {
				opts = append(opts, uilens.WithDryRun())
			}

			result, err := pipeline.Resume(cmd.Context(), args[0], opts...)
			if err != nil {
				return err
			}
			printRunResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reuse, "reuse", false, "Keep stage outputs already present on the checkpoint")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Walk the state machine without capturing or calling the capability")

	return cmd
}

func printRunResult(cmd *cobra.Command, result *uilens.RunResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Checkpoint: %s\n", result.CheckpointID)
	fmt.Fprintf(out, "URL:        %s\n", result.URL)
	fmt.Fprintf(out, "Status:     %s (%d%%)\n", result.Status, result.Progress)

	rows := make([][]string, 0, len(result.Steps))
	for _, step := range result.Steps {
		rows = append(rows, []string{
			string(step.Stage),
			string(step.Status),
			fmt.Sprintf("%.0fms", step.DurationMs),
			step.Error,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"STAGE", "STATUS", "DURATION", "ERROR"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))

	if s := result.Summary; s != nil {
		fmt.Fprintf(out, "Comparisons: %d/%d passed, average score %s\n",
			s.Passed, s.Total, strconv.FormatFloat(s.AverageScore, 'f', 3, 64))
	}
	if result.Err != nil {
		fmt.Fprintf(out, "Run halted: %v\n", result.Err)
	}
}
