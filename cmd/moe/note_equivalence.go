package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"moe/internal/database"
	"moe/internal/errors"
	"moe/internal/migration"
	"moe/internal/revision"
)

var (
	noteRepo1 string
	noteRepo2 string
)

var noteEquivalenceCmd = &cobra.Command{
	Use:   "note-equivalence",
	Short: "Record that two revisions hold equivalent code",
	Long: `Record an equivalence between two revisions of different repositories.

Revisions are written as repository{revId}. Recording a known equivalence,
in either orientation, is a no-op.

Examples:
  moe note-equivalence --repo1 'internal{42}' --repo2 'public{1f3a9c}'
  moe note-equivalence -c project.json --repo1 'internal{42}' --repo2 'public{7}'`,
	Args: cobra.NoArgs,
	RunE: runNoteEquivalence,
}

func init() {
	noteEquivalenceCmd.Flags().StringVar(&noteRepo1, "repo1", "", "First revision, as repository{revId}")
	noteEquivalenceCmd.Flags().StringVar(&noteRepo2, "repo2", "", "Second revision, as repository{revId}")
	_ = noteEquivalenceCmd.MarkFlagRequired("repo1")
	_ = noteEquivalenceCmd.MarkFlagRequired("repo2")

	rootCmd.AddCommand(noteEquivalenceCmd)
}

func parseRevisionFlag(flag, value string) (revision.Revision, error) {
	rev, err := revision.Parse(value)
	if err != nil {
		return revision.Revision{}, errors.Wrapf(err, errors.ParseError, "--%s", flag)
	}
	return rev, nil
}

func runNoteEquivalence(cmd *cobra.Command, _ []string) error {
	rev1, err := parseRevisionFlag("repo1", noteRepo1)
	if err != nil {
		return err
	}
	rev2, err := parseRevisionFlag("repo2", noteRepo2)
	if err != nil {
		return err
	}

	s, err := newSession(cmd, false)
	if err != nil {
		return err
	}
	defer s.close()

	db, err := s.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	eq := database.NewEquivalence(rev1, rev2)
	var added bool
	if s.project != nil {
		added, err = recordMigration(cmd.Context(), s, db, rev1, rev2)
	} else {
		added, err = noteEquivalence(cmd.Context(), db, eq)
	}
	if err != nil {
		return err
	}

	if added {
		fmt.Fprintf(cmd.OutOrStdout(), "Noted %s\n", eq)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Already known: %s\n", eq)
	}
	return nil
}

// recordMigration records the pair through a Matcher between the two project
// repositories, so both names are checked against the project.
func recordMigration(ctx context.Context, s *session, db database.DB, rev1, rev2 revision.Revision) (bool, error) {
	from, err := s.project.Repository(rev1.RepositoryName)
	if err != nil {
		return false, err
	}
	to, err := s.project.Repository(rev2.RepositoryName)
	if err != nil {
		return false, err
	}
	return migration.NewMatcher(db, from, to, s.logger).RecordMigration(ctx, rev1, rev2)
}

func noteEquivalence(ctx context.Context, db database.DB, eq database.Equivalence) (bool, error) {
	added, err := db.NoteEquivalence(ctx, eq)
	if err != nil {
		return false, err
	}
	return added, db.Save(ctx)
}
