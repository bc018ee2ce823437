package main

import (
	"database/sql"

	"steward/pkg/config"
	"steward/pkg/hooks"
	"steward/pkg/store"
)

// env bundles the shared runtime every subcommand needs: resolved paths,
// configuration, the open store, and the output classifier.
type env struct {
	paths      *Paths
	cfg        config.Config
	db         *sql.DB
	store      *store.Store
	classifier *hooks.Classifier
}

// openEnv resolves paths, loads configuration and rule data, and opens the
// state database. Callers must Close when done.
func openEnv() (*env, error) {
	paths, err := ResolvePaths()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(paths.ConfigPath)
	if err != nil {
		return nil, err
	}

	classifier, err := hooks.LoadRules(paths.RulesPath)
	if err != nil {
		return nil, err
	}

	db, err := openStateDB(paths.DBPath)
	if err != nil {
		return nil, err
	}

	return &env{
		paths:      paths,
		cfg:        cfg,
		db:         db,
		store:      store.New(db),
		classifier: classifier,
	}, nil
}

func (e *env) Close() {
	_ = e.db.Close()
}
