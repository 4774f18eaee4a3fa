package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/uilens/pkg/uilens/advisor"
)

func newAdviseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "advise <original.png> <generated.png>",
		Short: "Compare two component renderings and suggest refinements",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			original, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read original: %w", err)
			}
			generated, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read generated: %w", err)
			}

			result, err := ctx.engine().Compare(original, generated)
			if err != nil {
				return err
			}

			client, err := ctx.llmClient()
			if err != nil {
				return err
			}

			advice, err := advisor.New(client).Advise(cmd.Context(), result, original, generated)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Structural: %.3f  Color: %.3f  Combined: %.3f  Passed: %v\n",
				result.SSIMScore, result.ColorScore, result.CombinedScore, result.Passed)

			if len(advice.Suggestions) == 0 {
				fmt.Fprintf(out, "%s\n", advice.Summary)
				return nil
			}

			rows := make([][]string, 0, len(advice.Suggestions))
			for _, s := range advice.Suggestions {
				rows = append(rows, []string{string(s.Severity), string(s.Category), s.Description})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"SEVERITY", "CATEGORY", "SUGGESTION"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "%s (confidence %.2f)\n", advice.Summary, advice.Confidence)
			return nil
		},
	}
}
