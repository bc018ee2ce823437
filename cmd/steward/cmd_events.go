package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"steward/pkg/store"
)

// eventsConfig holds configuration for the events command.
type eventsConfig struct {
	session  string
	evType   string
	category string
	limit    int
}

// newEventsCmd creates the "steward events" subcommand.
func newEventsCmd() *cobra.Command {
	var cfg eventsConfig

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query the audit event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			events, err := e.store.QueryEvents(cmd.Context(), store.EventQuery{
				SessionID: cfg.session,
				Type:      cfg.evType,
				Category:  cfg.category,
				Limit:     cfg.limit,
			})
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no events")
				return nil
			}

			w := cmd.OutOrStdout()
			for _, ev := range events {
				fmt.Fprintf(w, "%s  %-18s %-10s %s\n", ev.CreatedAt, ev.Type, ev.Category, ev.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.session, "session", "", "filter by session id")
	cmd.Flags().StringVar(&cfg.evType, "type", "", "filter by event type")
	cmd.Flags().StringVar(&cfg.category, "category", "", "filter by category")
	cmd.Flags().IntVar(&cfg.limit, "limit", 50, "maximum events to show")

	return cmd
}
