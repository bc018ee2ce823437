package main

import (
	"os"
	"path/filepath"

	"steward/pkg/protocol"
)

// Paths holds all resolved steward state file paths for one repository
// instance. Use ResolvePaths() to populate with defaults + env overrides.
type Paths struct {
	RepoRoot   string // repository the instance controls
	StewardDir string // <repo>/.steward or STEWARD_HOME
	DBPath     string // state.db or STEWARD_DB_PATH
	ConfigPath string // config.yaml
	RulesPath  string // rules.toml
	ResultsDir string // worker completion files
	LogDir     string // per-task worker logs
}

// ResolvePaths returns all steward paths, respecting env overrides.
// Environment variables:
//   - STEWARD_REPO: repository root (default: current directory)
//   - STEWARD_HOME: base directory for all steward state (default: $STEWARD_REPO/.steward)
//   - STEWARD_DB_PATH: state database (default: $STEWARD_HOME/state.db)
func ResolvePaths() (*Paths, error) {
	repoRoot := os.Getenv("STEWARD_REPO")
	if repoRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		repoRoot = wd
	}

	stewardDir := os.Getenv("STEWARD_HOME")
	if stewardDir == "" {
		stewardDir = filepath.Join(repoRoot, protocol.StewardDir)
	}

	dbPath := os.Getenv("STEWARD_DB_PATH")
	if dbPath == "" {
		dbPath = filepath.Join(stewardDir, "state.db")
	}

	return &Paths{
		RepoRoot:   repoRoot,
		StewardDir: stewardDir,
		DBPath:     dbPath,
		ConfigPath: filepath.Join(stewardDir, "config.yaml"),
		RulesPath:  filepath.Join(stewardDir, "rules.toml"),
		ResultsDir: filepath.Join(stewardDir, protocol.ResultsDir),
		LogDir:     filepath.Join(stewardDir, "logs"),
	}, nil
}
