package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	evaluateExpression string
	evaluateKeep       bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a codebase expression and print its directory",
	Long: `Evaluate a codebase expression and print the directory holding the result.

The directory is removed when moe exits unless --keep is given.

Examples:
  moe evaluate -c project.json --expression 'internal(revision=42)>public'
  moe evaluate -c project.json --expression 'public|scrub' --keep`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVarP(&evaluateExpression, "expression", "e", "", "Codebase expression to evaluate")
	evaluateCmd.Flags().BoolVar(&evaluateKeep, "keep", false, "Keep the codebase directory after exit")
	_ = evaluateCmd.MarkFlagRequired("expression")

	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	s, err := newSession(cmd, true)
	if err != nil {
		return err
	}
	defer s.close()

	cb, err := s.engine.Parse(cmd.Context(), evaluateExpression)
	if err != nil {
		return err
	}
	if evaluateKeep {
		s.temp.Keep(cb.Path)
	}
	s.logger.Info("Evaluated expression", "expression", evaluateExpression, "project_space", cb.ProjectSpace)
	fmt.Fprintln(cmd.OutOrStdout(), cb.Path)
	return nil
}
