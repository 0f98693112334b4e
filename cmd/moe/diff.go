package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"moe/internal/difference"
	"moe/internal/expression"
)

var (
	diffCodebase1 string
	diffCodebase2 string
	diffFormat    string
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare two codebases",
	Long: `Evaluate two codebase expressions and print how they differ.

Exits 0 when the codebases are identical and 1 when they differ.

Examples:
  moe diff -c project.json --codebase1 'internal>public' --codebase2 public
  moe diff -c project.json --codebase1 internal --codebase2 'public>internal' --format json`,
	Args: cobra.NoArgs,
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().StringVar(&diffCodebase1, "codebase1", "", "First codebase expression")
	diffCmd.Flags().StringVar(&diffCodebase2, "codebase2", "", "Second codebase expression")
	diffCmd.Flags().StringVar(&diffFormat, "format", "human", "Output format: human or json")
	_ = diffCmd.MarkFlagRequired("codebase1")
	_ = diffCmd.MarkFlagRequired("codebase2")

	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, _ []string) error {
	format, err := parseFormat(diffFormat)
	if err != nil {
		return err
	}
	x1, err := expression.Parse(diffCodebase1)
	if err != nil {
		return err
	}
	x2, err := expression.Parse(diffCodebase2)
	if err != nil {
		return err
	}

	s, err := newSession(cmd, true)
	if err != nil {
		return err
	}
	defer s.close()

	cbs, err := s.engine.CreateAll(cmd.Context(), x1, x2)
	if err != nil {
		return err
	}
	d, err := difference.Compare(s.fs, *cbs[0], *cbs[1])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == FormatJSON {
		if err := writeJSON(out, d); err != nil {
			return err
		}
	} else if err := printDifferenceHuman(out, d); err != nil {
		return err
	}
	if !d.Empty() {
		return &exitError{code: exitFailure}
	}
	return nil
}

func printDifferenceHuman(w io.Writer, d *difference.CodebaseDifference) error {
	if d.Empty() {
		_, err := fmt.Fprintf(w, "No differences between %s and %s\n", d.Codebase1, d.Codebase2)
		return err
	}
	rendered, err := d.Render()
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, rendered); err != nil {
		return err
	}
	stat := d.Stat()
	_, err = fmt.Fprintf(w, "%d file(s) differ, %d insertion(s), %d deletion(s)\n",
		len(d.Files), stat.Added+stat.Changed, stat.Deleted+stat.Changed)
	return err
}
