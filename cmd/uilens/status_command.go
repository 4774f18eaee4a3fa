package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/uilens/pkg/uilens/checkpoint"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var showTokens bool

	cmd := &cobra.Command{
		Use:   "status <checkpoint-id>",
		Short: "Show a checkpoint's current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store checkpoint.Store) error {
				cp, err := store.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if cp == nil {
					return fmt.Errorf("checkpoint %s not found", args[0])
				}
				printCheckpoint(cmd, cp, showTokens)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showTokens, "tokens", false, "Print the extracted design tokens")

	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store checkpoint.Store) error {
				ids, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(ids) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No checkpoints.")
					return nil
				}

				rows := make([][]string, 0, len(ids))
				for _, id := range ids {
					cp, err := store.Load(cmd.Context(), id)
					if err != nil {
						return err
					}
					if cp == nil {
						continue
					}
					rows = append(rows, []string{
						cp.ID,
						cp.URL,
						string(cp.Status),
						fmt.Sprintf("%d%%", cp.Progress),
						cp.UpdatedAt.Local().Format(time.DateTime),
					})
				}
				sort.Slice(rows, func(i, j int) bool { return rows[i][4] > rows[j][4] })

				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "URL", "STATUS", "PROGRESS", "UPDATED"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <checkpoint-id>",
		Short: "Delete a checkpoint and its stored images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store checkpoint.Store) error {
				if err := store.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func printCheckpoint(cmd *cobra.Command, cp *checkpoint.Checkpoint, showTokens bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:       %s\n", cp.ID)
	fmt.Fprintf(out, "URL:      %s\n", cp.URL)
	fmt.Fprintf(out, "Status:   %s (%d%%)\n", cp.Status, cp.Progress)
	fmt.Fprintf(out, "Started:  %s\n", cp.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Updated:  %s\n", cp.UpdatedAt.Local().Format(time.DateTime))
	if cp.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", cp.Error)
	}
	if cp.Screenshots != nil {
		fmt.Fprintf(out, "Images:   viewport %d bytes, full page %d bytes\n",
			len(cp.Screenshots.Viewport), len(cp.Screenshots.FullPage))
	}

	if len(cp.IdentifiedComponents) > 0 {
		rows := make([][]string, 0, len(cp.IdentifiedComponents))
		for _, comp := range cp.IdentifiedComponents {
			rows = append(rows, []string{
				comp.Type,
				comp.Name,
				fmt.Sprintf("%.0fx%.0f @ %.0f,%.0f",
					comp.BoundingBox.Width, comp.BoundingBox.Height,
					comp.BoundingBox.X, comp.BoundingBox.Y),
				fmt.Sprintf("%.2f", comp.Confidence),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"TYPE", "NAME", "BOUNDS", "CONFIDENCE"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
		))
	}

	if showTokens && len(cp.ExtractedTokens) > 0 {
		keys := make([]string, 0, len(cp.ExtractedTokens))
		for k := range cp.ExtractedTokens {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rows := make([][]string, 0, len(keys))
		for _, k := range keys {
			rows = append(rows, []string{k, cp.ExtractedTokens[k]})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"TOKEN", "VALUE"},
			rows,
			[]columnAlignment{alignLeft, alignLeft},
		))
	} else if len(cp.ExtractedTokens) > 0 {
		fmt.Fprintf(out, "Tokens:   %d extracted (use --tokens to print)\n", len(cp.ExtractedTokens))
	}

	if len(cp.Comparisons) > 0 {
		rows := make([][]string, 0, len(cp.Comparisons))
		for _, cr := range cp.Comparisons {
			passed := "no"
			if cr.Passed {
				passed = "yes"
			}
			rows = append(rows, []string{
				cr.ComponentID,
				fmt.Sprintf("%.3f", cr.SSIMScore),
				fmt.Sprintf("%.3f", cr.ColorScore),
				fmt.Sprintf("%.3f", cr.CombinedScore),
				passed,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"COMPONENT", "STRUCTURAL", "COLOR", "COMBINED", "PASSED"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
		))
	}
}
