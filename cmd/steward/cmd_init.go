package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"steward/pkg/config"
	"steward/pkg/hooks"
)

// newInitCmd creates the "steward init" subcommand.
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize steward state in this repository",
		Long:  "Creates the .steward directory with the state database, the\ndefault config.yaml, and the default classification rules.toml.\nExisting files are left untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return err
			}

			if err := os.MkdirAll(paths.StewardDir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", paths.StewardDir, err)
			}
			if err := os.MkdirAll(paths.ResultsDir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", paths.ResultsDir, err)
			}

			if _, err := os.Stat(paths.ConfigPath); os.IsNotExist(err) {
				if err := config.Write(paths.ConfigPath, config.Default()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", paths.ConfigPath)
			}

			if _, err := os.Stat(paths.RulesPath); os.IsNotExist(err) {
				if err := hooks.WriteRules(paths.RulesPath, hooks.DefaultRules()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", paths.RulesPath)
			}

			db, err := openStateDB(paths.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "initialized steward state in %s\n", paths.StewardDir)
			return nil
		},
	}
}
