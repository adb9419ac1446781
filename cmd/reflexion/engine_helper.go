package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"reflexion/internal/architecture"
	"reflexion/internal/config"
	rerrors "reflexion/internal/errors"
	"reflexion/internal/facts"
	"reflexion/internal/mapping"
	"reflexion/internal/reflexion"
	"reflexion/internal/slogutil"
	"reflexion/internal/storage"
)

// errViolations is returned by gated commands when divergent edges exist.
var errViolations = errors.New("architecture violations found")

// session carries what every command needs: the project root, the validated
// configuration and the loggers built from it.
type session struct {
	root   string
	cfg    *config.Config
	logs   *slogutil.LoggerFactory
	logger *slog.Logger
}

// newSession resolves the root, loads the configuration and builds the
// loggers. Callers must Close the session.
func newSession() (*session, error) {
	root, err := getRepoRoot()
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}

	var cliLevel *slog.Level
	if verbosity > 0 || quiet {
		level := slogutil.LevelFromVerbosity(verbosity, quiet)
		cliLevel = &level
	}
	logs := slogutil.NewLoggerFactory(root, cfg, cliLevel, os.Stderr)

	return &session{
		root:   root,
		cfg:    cfg,
		logs:   logs,
		logger: logs.Logger(),
	}, nil
}

// Close releases log files.
func (s *session) Close() error {
	return s.logs.Close()
}

// engineOptions maps the analysis section onto engine options.
func (s *session) engineOptions() reflexion.Options {
	return reflexion.OptionsFromConfig(s.cfg, s.logs.EngineLogger())
}

// openRunStore opens the run history database named by storage.path.
func (s *session) openRunStore() (*storage.DB, *storage.RunStore, error) {
	if !s.cfg.Storage.Enabled {
		return nil, nil, rerrors.New(rerrors.ConfigInvalid, "run history is disabled (storage.enabled=false)", nil)
	}
	compression, err := storage.ParseCompression(s.cfg.Storage.Compression)
	if err != nil {
		return nil, nil, rerrors.New(rerrors.ConfigInvalid, err.Error(), err)
	}
	db, err := storage.Open(config.ResolvePath(s.root, s.cfg.Storage.Path), s.logger)
	if err != nil {
		return nil, nil, err
	}
	return db, storage.NewRunStore(db, compression), nil
}

// loadConfig reads --config or <root>/.reflexion/config.json and validates it.
func loadConfig(root string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadConfigFromPath(config.ResolvePath(root, configPath))
	} else {
		cfg, err = config.LoadConfig(root)
	}
	if err != nil {
		return nil, rerrors.New(rerrors.ConfigInvalid, "failed to load config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// inputFlags are the input file flags shared by analyze and recompute.
type inputFlags struct {
	model   string
	facts   string
	mapping string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.model, "model", architecture.ModelFile, "Architecture model (.toml, .yaml)")
	cmd.Flags().StringVar(&f.facts, "facts", "facts.json", "Implementation facts (.json, .yaml)")
	cmd.Flags().StringVar(&f.mapping, "mapping", mapping.MappingFile, "Node-to-component mapping (.toml)")
}

// analysisInputs is everything a fresh analysis needs.
type analysisInputs struct {
	model   *architecture.Model
	facts   *facts.Facts
	mapping *mapping.Table
}

// digest identifies the inputs; extra parts (deltas) are folded in.
func (in *analysisInputs) digest(extra ...interface{}) (string, error) {
	parts := append([]interface{}{in.model, in.facts, in.mapping.Entries()}, extra...)
	return storage.Digest(parts...)
}

// load reads the three inputs relative to the session root. A missing
// mapping file at the default location means every node is unmapped.
func (f *inputFlags) load(s *session) (*analysisInputs, error) {
	model, err := architecture.LoadFile(config.ResolvePath(s.root, f.model))
	if err != nil {
		return nil, inputError("architecture model", err)
	}
	fs, err := facts.LoadFile(config.ResolvePath(s.root, f.facts))
	if err != nil {
		return nil, inputError("facts", err)
	}

	mappingPath := config.ResolvePath(s.root, f.mapping)
	var table *mapping.Table
	if _, statErr := os.Stat(mappingPath); os.IsNotExist(statErr) && f.mapping == mapping.MappingFile {
		s.logger.Warn("No mapping file, every node is unmapped", "path", mappingPath)
		table = mapping.New()
	} else {
		table, err = mapping.LoadFile(mappingPath)
		if err != nil {
			return nil, inputError("mapping", err)
		}
	}

	s.logger.Debug("Inputs loaded",
		"model", filepath.Base(f.model),
		"components", len(model.Components),
		"contracts", len(model.Contracts),
		"nodes", len(fs.Nodes),
		"edges", len(fs.Edges),
		"mapped", table.Len(),
	)
	return &analysisInputs{model: model, facts: fs, mapping: table}, nil
}

// inputError gives loader failures the InputInvalid code unless they
// already carry one.
func inputError(what string, err error) error {
	var coded rerrors.Coded
	if errors.As(err, &coded) {
		return err
	}
	return rerrors.New(rerrors.InputInvalid, "failed to load "+what, err)
}

// getRepoRoot returns --root or the working directory.
func getRepoRoot() (string, error) {
	if rootDir != "" {
		return filepath.Abs(rootDir)
	}
	return os.Getwd()
}

// newContext creates a context cancelled on interrupt.
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// checkFormat rejects unknown --format values before any work is done.
func checkFormat(format string) (OutputFormat, error) {
	switch f := OutputFormat(format); f {
	case FormatJSON, FormatHuman:
		return f, nil
	default:
		return "", rerrors.New(rerrors.InputInvalid, fmt.Sprintf("unsupported format: %s", format), nil)
	}
}
