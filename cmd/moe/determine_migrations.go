package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"moe/internal/migration"
)

var (
	migrationName   string
	migrationFormat string
)

var determineMigrationsCmd = &cobra.Command{
	Use:   "determine-migrations",
	Short: "List the revisions a configured migration would carry over",
	Long: `Plan a configured migration: find the latest equivalence between its
repositories and list the newer revisions of the source repository that are
not yet marked as migrated in the destination.

Examples:
  moe determine-migrations -c project.json --migration internal_to_public
  moe determine-migrations -c project.json --migration internal_to_public --format json`,
	Args: cobra.NoArgs,
	RunE: runDetermineMigrations,
}

func init() {
	determineMigrationsCmd.Flags().StringVar(&migrationName, "migration", "", "Name of a migration in the project")
	determineMigrationsCmd.Flags().StringVar(&migrationFormat, "format", "human", "Output format: human or json")
	_ = determineMigrationsCmd.MarkFlagRequired("migration")

	rootCmd.AddCommand(determineMigrationsCmd)
}

// MigrationCLI is the JSON form of one planned migration.
type MigrationCLI struct {
	FromRepository string   `json:"fromRepository"`
	ToRepository   string   `json:"toRepository"`
	Revisions      []string `json:"revisions"`
	Author         string   `json:"author"`
	Description    string   `json:"description"`
	Base           string   `json:"base,omitempty"`
	Expression     string   `json:"expression"`
}

// PlanResponseCLI is the JSON form of a migration plan.
type PlanResponseCLI struct {
	Migration  string         `json:"migration"`
	Base       string         `json:"base,omitempty"`
	Migrations []MigrationCLI `json:"migrations"`
}

func runDetermineMigrations(cmd *cobra.Command, _ []string) error {
	format, err := parseFormat(migrationFormat)
	if err != nil {
		return err
	}
	s, err := newSession(cmd, true)
	if err != nil {
		return err
	}
	defer s.close()

	mc, err := s.project.Config.Migration(migrationName)
	if err != nil {
		return err
	}
	from, err := s.project.Repository(mc.FromRepository)
	if err != nil {
		return err
	}
	to, err := s.project.Repository(mc.ToRepository)
	if err != nil {
		return err
	}
	db, err := s.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	plan, err := migration.NewMatcher(db, from, to, s.logger).Plan(cmd.Context(), mc)
	if err != nil {
		return err
	}
	resp := planResponse(plan, to.ProjectSpace())

	if format == FormatJSON {
		return writeJSON(cmd.OutOrStdout(), resp)
	}
	printPlanHuman(cmd.OutOrStdout(), resp)
	return nil
}

func planResponse(plan *migration.Plan, toSpace string) *PlanResponseCLI {
	resp := &PlanResponseCLI{Migration: plan.Config.Name, Migrations: []MigrationCLI{}}
	if plan.Base != nil {
		resp.Base = plan.Base.String()
	}
	for _, m := range plan.Migrations {
		revs := make([]string, len(m.Revisions))
		for i, r := range m.Revisions {
			revs[i] = r.RevID
		}
		mc := MigrationCLI{
			FromRepository: m.FromRepository,
			ToRepository:   m.ToRepository,
			Revisions:      revs,
			Author:         m.Metadata.Author,
			Description:    m.Metadata.Description,
			Expression:     m.FromExpression(toSpace).String(),
		}
		if m.Base != nil {
			mc.Base = m.Base.String()
		}
		resp.Migrations = append(resp.Migrations, mc)
	}
	return resp
}

func printPlanHuman(w io.Writer, resp *PlanResponseCLI) {
	if resp.Base != "" {
		fmt.Fprintf(w, "Merge base: %s\n", resp.Base)
	} else {
		fmt.Fprintln(w, "Merge base: none")
	}
	if len(resp.Migrations) == 0 {
		fmt.Fprintf(w, "Migration %s is up to date\n", resp.Migration)
		return
	}
	for i, m := range resp.Migrations {
		fmt.Fprintf(w, "\n[%d] %s -> %s: %s\n", i+1, m.FromRepository, m.ToRepository, strings.Join(m.Revisions, ", "))
		fmt.Fprintf(w, "    author:     %s\n", m.Author)
		fmt.Fprintf(w, "    expression: %s\n", m.Expression)
		for _, line := range strings.Split(m.Description, "\n") {
			fmt.Fprintf(w, "    | %s\n", line)
		}
	}
}
