package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// classifyConfig holds configuration for the classify command.
type classifyConfig struct {
	session string
	gate    bool
}

// newClassifyCmd creates the "steward classify" subcommand.
func newClassifyCmd() *cobra.Command {
	var cfg classifyConfig

	cmd := &cobra.Command{
		Use:   "classify [text]",
		Short: "Classify worker output against the rule vocabulary",
		Long: "Runs the rule-based classifier over the given text (or stdin) and\n" +
			"prints the outcome. With --gate the command behaves as the session\n" +
			"exit gate: anything other than a valid completion signal exits 2.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			var text string
			if len(args) == 1 {
				text = args[0]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				text = string(data)
			}

			if cfg.gate {
				if err := e.classifier.CheckExit(cfg.session, text); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(e.classifier.Classify(text)))
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.session, "session", "", "session id for gate errors")
	cmd.Flags().BoolVar(&cfg.gate, "gate", false, "act as the exit gate (exit 2 on block)")

	return cmd
}
