package main

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"moe/internal/errors"
	"moe/internal/expression"
	"moe/internal/version"
)

// Exit statuses.
const (
	exitOK            = 0
	exitFailure       = 1
	exitConfiguration = 2
	exitCorruptDB     = 3
)

var (
	verbosity   int
	quiet       bool
	logFormat   string
	dbFlag      string
	projectPath string
)

var rootCmd = &cobra.Command{
	Use:   "moe",
	Short: "moe - make open easy",
	Long: `moe keeps codebases that live in different project spaces in sync.

A codebase is described by an expression such as

  internal(revision=42)>public|scrub

which names a repository revision, translates it into another project space
and runs editors over it. moe evaluates expressions, compares the results,
records which revisions are equivalent and plans migrations between
repositories.`,
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("moe version {{.Version}}\n")
	pf := rootCmd.PersistentFlags()
	pf.CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	pf.BoolVar(&quiet, "quiet", false, "Suppress all logging")
	pf.StringVar(&logFormat, "log-format", "", "Log format: human or json (default from config)")
	pf.StringVar(&dbFlag, "db", "", "Equivalence database: path, file:<path>, sqlite:<path> or memory")
	pf.StringVarP(&projectPath, "project", "c", "", "Project configuration file (.json, .yaml or .toml)")
}

// exitError carries an exit status without an error message, e.g. diff
// finding differences.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// execute runs the command line and returns the process exit status.
func execute(args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if stderrors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	printFixes(err)
	return exitCode(err)
}

func exitCode(err error) int {
	var pe *expression.ParseError
	switch {
	case err == nil:
		return exitOK
	case errors.HasCode(err, errors.DatabaseCorrupt):
		return exitCorruptDB
	case errors.IsConfiguration(err), errors.HasCode(err, errors.ParseError), stderrors.As(err, &pe):
		return exitConfiguration
	default:
		return exitFailure
	}
}

func printFixes(err error) {
	var me *errors.MoeError
	if !stderrors.As(err, &me) {
		return
	}
	project := projectPath
	if project == "" {
		project = "<project>"
	}
	db := dbFlag
	if db == "" {
		db = "<db>"
	}
	vars := strings.NewReplacer("${project_config}", project, "${db_uri}", db)
	for _, fix := range me.SuggestedFixes {
		switch {
		case fix.Command != "":
			fmt.Fprintf(os.Stderr, "  hint: %s (%s)\n", fix.Description, vars.Replace(fix.Command))
		case fix.Description != "":
			fmt.Fprintf(os.Stderr, "  hint: %s\n", fix.Description)
		}
	}
}
