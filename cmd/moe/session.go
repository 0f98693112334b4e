package main

import (
	"log/slog"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"moe/internal/config"
	"moe/internal/database"
	"moe/internal/engine"
	"moe/internal/errors"
	"moe/internal/project"
	"moe/internal/slogutil"
	"moe/internal/tempfs"
)

// session is the per-invocation state shared by directives.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	fs      afero.Fs
	temp    *tempfs.Manager
	project *project.Context
	engine  *engine.Engine
}

// newSession loads the tool configuration, sets up logging and the temp
// manager and, when needProject is set, loads the project from -c. The
// caller must close the session.
func newSession(cmd *cobra.Command, needProject bool) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrapf(err, errors.InvalidProject, "load tool configuration")
	}

	format := cfg.Logging.Format
	if logFormat != "" {
		format = logFormat
	}
	level := slogutil.LevelFromString(cfg.Logging.Level)
	if quiet || verbosity > 0 {
		level = slogutil.LevelFromVerbosity(verbosity, quiet)
	}
	logger := slogutil.NewLoggerWithFormat(cmd.ErrOrStderr(), format, level)

	fs := afero.NewOsFs()
	temp, err := tempfs.NewManager(fs, cfg.Temp.Root, logger)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, logger: logger, fs: fs, temp: temp}

	if projectPath == "" {
		if needProject {
			s.close()
			return nil, errors.Newf(errors.InvalidProject, "no project configuration given; use -c/--project")
		}
		return s, nil
	}
	if err := s.loadProject(projectPath); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *session) loadProject(path string) error {
	pcfg, err := project.Load(path)
	if err != nil {
		return err
	}
	pctx, err := project.NewContext(pcfg, project.Deps{
		Fs:             s.fs,
		Temp:           s.temp,
		Logger:         s.logger,
		CommandTimeout: s.cfg.CommandTimeout(),
	})
	if err != nil {
		return err
	}
	s.project = pctx
	s.engine = engine.New(pctx, s.temp, s.logger)
	s.logger.Debug("Loaded project", "project", pcfg.Name, "path", path)
	return nil
}

// databaseURI picks the database by precedence: --db, the project's
// database_uri, the tool configuration, then the default file.
func (s *session) databaseURI() string {
	var pcfg *project.Config
	if s.project != nil {
		pcfg = s.project.Config
	}
	return resolveDatabaseURI(dbFlag, pcfg, s.cfg)
}

func resolveDatabaseURI(flag string, pcfg *project.Config, cfg *config.Config) string {
	switch {
	case flag != "":
		return flag
	case pcfg != nil && pcfg.DatabaseURI != "":
		return pcfg.DatabaseURI
	case cfg != nil:
		return cfg.Database.URI
	default:
		return ""
	}
}

func (s *session) openDatabase() (database.DB, error) {
	uri := s.databaseURI()
	db, err := database.Open(uri, s.logger)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Opened equivalence database", "uri", uri)
	return db, nil
}

func (s *session) close() {
	if err := s.temp.Cleanup(); err != nil {
		s.logger.Warn("Failed to clean up temporary directories", "error", err.Error())
	}
}
