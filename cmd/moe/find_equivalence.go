package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	findFrom   string
	findIn     string
	findFormat string
)

var findEquivalenceCmd = &cobra.Command{
	Use:   "find-equivalence",
	Short: "Find the latest recorded equivalence between two repositories",
	Long: `Find the equivalence whose --from revision is newest in --from's history.

Examples:
  moe find-equivalence -c project.json --from internal --in public
  moe find-equivalence -c project.json --from internal --in public --db sqlite:moe.db`,
	Args: cobra.NoArgs,
	RunE: runFindEquivalence,
}

func init() {
	findEquivalenceCmd.Flags().StringVar(&findFrom, "from", "", "Repository whose history orders the equivalences")
	findEquivalenceCmd.Flags().StringVar(&findIn, "in", "", "Repository on the other side")
	findEquivalenceCmd.Flags().StringVar(&findFormat, "format", "human", "Output format: human or json")
	_ = findEquivalenceCmd.MarkFlagRequired("from")
	_ = findEquivalenceCmd.MarkFlagRequired("in")

	rootCmd.AddCommand(findEquivalenceCmd)
}

func runFindEquivalence(cmd *cobra.Command, _ []string) error {
	format, err := parseFormat(findFormat)
	if err != nil {
		return err
	}
	s, err := newSession(cmd, true)
	if err != nil {
		return err
	}
	defer s.close()

	from, err := s.project.Repository(findFrom)
	if err != nil {
		return err
	}
	if _, err := s.project.Repository(findIn); err != nil {
		return err
	}
	db, err := s.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	eq, ok, err := db.FindLatestEquivalence(cmd.Context(), findFrom, findIn, from)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == FormatJSON {
		if !ok {
			return writeJSON(out, map[string]interface{}{"found": false})
		}
		return writeJSON(out, map[string]interface{}{"found": true, "equivalence": eq})
	}
	if !ok {
		fmt.Fprintf(out, "No equivalence found between %s and %s\n", findFrom, findIn)
		return nil
	}
	fmt.Fprintln(out, eq.String())
	return nil
}
