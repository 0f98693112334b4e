package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"moe/internal/errors"
	"moe/internal/project"
)

var (
	checkStrict bool
	checkExport string
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate a project configuration",
	Long: `Load a project configuration, validate it and construct its repositories,
editors and translators.

--strict rejects unknown keys. --export prints the configuration in another
format instead of the summary.

Examples:
  moe check-config -c project.json
  moe check-config -c project.yaml --strict --export toml`,
	Args: cobra.NoArgs,
	RunE: runCheckConfig,
}

func init() {
	checkConfigCmd.Flags().BoolVar(&checkStrict, "strict", false, "Reject unknown keys")
	checkConfigCmd.Flags().StringVar(&checkExport, "export", "", "Print the configuration as json, yaml or toml")

	rootCmd.AddCommand(checkConfigCmd)
}

func runCheckConfig(cmd *cobra.Command, _ []string) error {
	if projectPath == "" {
		return errors.Newf(errors.InvalidProject, "no project configuration given; use -c/--project")
	}
	var exportFormat project.Format
	if checkExport != "" {
		var err error
		if exportFormat, err = project.ParseFormat(checkExport); err != nil {
			return err
		}
	}
	if checkStrict {
		if _, err := project.LoadStrict(projectPath); err != nil {
			return err
		}
	}

	s, err := newSession(cmd, true)
	if err != nil {
		return err
	}
	defer s.close()

	cfg := s.project.Config
	out := cmd.OutOrStdout()
	if exportFormat != "" {
		data, err := project.Export(cfg, exportFormat)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	fmt.Fprintf(out, "Project %s is valid\n", cfg.Name)
	fmt.Fprintf(out, "  repositories: %d\n", len(cfg.Repositories))
	fmt.Fprintf(out, "  editors:      %d\n", len(cfg.Editors))
	fmt.Fprintf(out, "  translators:  %d\n", len(s.project.Translators.Paths()))
	fmt.Fprintf(out, "  migrations:   %d\n", len(cfg.Migrations))
	return nil
}
