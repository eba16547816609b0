// Package main provides graphdiff, an offline diff and merge tool for graph
// state files.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"filon/domain/diff"
	"filon/domain/merge"

	"github.com/spf13/cobra"
)

// Version is the current graphdiff version
var Version = "0.3.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "graphdiff",
		Short:         "Diff and merge FILON graph states",
		Long:          `graphdiff compares and merges graph state files (JSON or YAML) the same way the snapshot service does.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newDiffCmd(), newMergeCmd())
	return root
}

func newDiffCmd() *cobra.Command {
	var (
		fields  []string
		asJSON  bool
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Show what changed between two graph states",
		Long: `Show what changed between two graph states.

Nodes are compared on label, note and position unless --field selects
other fields. Data keys are addressed as data.<key>.

Examples:
  graphdiff diff before.json after.json
  graphdiff diff v1.yaml v2.yaml --field label --field data.status
  graphdiff diff a.json b.json --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldState, err := loadState(args[0])
			if err != nil {
				return err
			}
			newState, err := loadState(args[1])
			if err != nil {
				return err
			}

			d := diff.ComputeWith(oldState, newState, diff.Options{Fields: diff.ParseFields(fields)})
			out := cmd.OutOrStdout()

			switch {
			case asJSON:
				text, err := d.FormatJSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, text)
			case summary:
				s := d.Summary()
				fmt.Fprintf(out, "nodes: +%d -%d ~%d  edges: +%d -%d\n",
					s.NodesAdded, s.NodesRemoved, s.NodesChanged, s.EdgesAdded, s.EdgesRemoved)
			default:
				fmt.Fprint(out, d.FormatText())
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&fields, "field", "f", nil, "Node field to compare (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the diff as JSON")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print bucket counts only")
	return cmd
}

func newMergeCmd() *cobra.Command {
	var (
		strategy string
		fields   []string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "merge <base> <incoming>",
		Short: "Merge an incoming graph state into a base state",
		Long: `Merge an incoming graph state into a base state.

Strategies:
  combine         keep every add and removal, take incoming content (default)
  preferIncoming  take incoming content for changed nodes
  preferBase      keep base content for changed nodes

Examples:
  graphdiff merge main.json feature.json
  graphdiff merge main.json feature.yaml --strategy preferBase -o merged.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolution, err := merge.ParseResolution(strategy)
			if err != nil {
				return err
			}
			base, err := loadState(args[0])
			if err != nil {
				return err
			}
			incoming, err := loadState(args[1])
			if err != nil {
				return err
			}

			merged := merge.SnapshotsWith(base, incoming, resolution, diff.Options{Fields: diff.ParseFields(fields)})
			data, err := encodeState(merged)
			if err != nil {
				return err
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "merged %s into %s (%s) -> %s\n",
				filepath.Base(args[1]), filepath.Base(args[0]), resolution, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&strategy, "strategy", "s", string(merge.ResolveCombine), "Conflict resolution strategy")
	cmd.Flags().StringSliceVarP(&fields, "field", "f", nil, "Node field to compare (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the merged state to a file instead of stdout")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "graphdiff:", err)
		os.Exit(1)
	}
}
