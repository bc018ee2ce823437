package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"steward/pkg/baseline"
	"steward/pkg/protocol"
	"steward/pkg/store"
	"steward/pkg/validate"
	"steward/pkg/worktree"
)

// newSessionCmd creates the "steward session" command group.
func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage orchestration sessions",
	}
	cmd.AddCommand(newSessionStartCmd(), newSessionEndCmd(), newSessionShowCmd())
	return cmd
}

// sessionStartConfig holds configuration for session start.
type sessionStartConfig struct {
	command     string
	sessionType string
}

func newSessionStartCmd() *cobra.Command {
	var cfg sessionStartConfig

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a new session and make it current",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			sess, err := e.store.CreateSession(ctx, cfg.command, cfg.sessionType)
			if err != nil {
				return err
			}
			if err := e.store.SetCurrent(ctx, store.SlotSession, sess.ID); err != nil {
				return err
			}
			if err := e.store.LogEvent(ctx, sess.ID, "session_started", "session",
				fmt.Sprintf("session %s started (%s)", sess.ID, cfg.command), ""); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), sess.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.command, "command", "orchestrate", "command driving this session")
	cmd.Flags().StringVar(&cfg.sessionType, "type", "worker", "session type (worker, controller)")

	return cmd
}

// sessionEndConfig holds configuration for session end.
type sessionEndConfig struct {
	status string
	output string
	force  bool
}

func newSessionEndCmd() *cobra.Command {
	var cfg sessionEndConfig

	cmd := &cobra.Command{
		Use:   "end [session-id]",
		Short: "End a session, gated on a valid completion signal",
		Long: "Classifies the session's final output before allowing the exit.\n" +
			"Passive abandonment, permission-seeking, failure vocabulary or a\n" +
			"missing completion marker block the exit (exit code 2) and keep\n" +
			"the session open. Reads output from --output or stdin.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			id, err := resolveSessionID(cmd, e, args)
			if err != nil {
				return err
			}

			status, err := validate.TerminalSessionStatus(cfg.status)
			if err != nil {
				return err
			}

			text := cfg.output
			if text == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read output: %w", err)
				}
				text = string(data)
			}

			if !cfg.force && status == protocol.SessionCompleted {
				if err := e.classifier.CheckExit(id, text); err != nil {
					outcome := string(e.classifier.Classify(text))
					_ = e.store.LogEvent(ctx, id, "exit_blocked", "hooks",
						fmt.Sprintf("session exit blocked: classified as %s", outcome), "")
					return err
				}
			}

			// A clean completion is a recovery point; capture it before the
			// session is allowed to end, and keep the session open if the
			// checkpoint cannot be taken.
			if status == protocol.SessionCompleted {
				mgr := baseline.NewManager(e.paths.RepoRoot, &worktree.ExecGitRunner{}, e.store)
				b, err := mgr.Create(ctx, "session-"+id, "")
				if err != nil {
					return fmt.Errorf("checkpoint baseline for session %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "checkpoint %s\n", b.ID)
			}

			sess, err := e.store.EndSession(ctx, id, status)
			if err != nil {
				return err
			}
			if err := e.store.ClearCurrent(ctx, store.SlotSession); err != nil {
				return err
			}
			if err := e.store.LogEvent(ctx, id, "session_ended", "session",
				fmt.Sprintf("session %s ended: %s", id, sess.Status), ""); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "session %s %s\n", id, sess.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.status, "status", string(protocol.SessionCompleted), "final status (completed, failed, aborted)")
	cmd.Flags().StringVar(&cfg.output, "output", "", "final worker output to classify (default: stdin)")
	cmd.Flags().BoolVar(&cfg.force, "force", false, "skip the exit gate")

	return cmd
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [session-id]",
		Short: "Show a session's state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			id, err := resolveSessionID(cmd, e, args)
			if err != nil {
				return err
			}

			sess, err := e.store.GetSession(ctx, id)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "session:   %s\n", sess.ID)
			fmt.Fprintf(w, "command:   %s\n", sess.Command)
			fmt.Fprintf(w, "status:    %s\n", sess.Status)
			fmt.Fprintf(w, "phase:     %s\n", sess.Phase)
			fmt.Fprintf(w, "tier:      %s\n", sess.ModelTier)
			fmt.Fprintf(w, "failures:  %d\n", sess.ConsecutiveFailures)
			fmt.Fprintf(w, "started:   %s\n", sess.StartedAt)
			if sess.EndedAt != "" {
				fmt.Fprintf(w, "ended:     %s\n", sess.EndedAt)
			}
			return nil
		},
	}
}

// resolveSessionID returns the explicit session argument or falls back to
// the current-session pointer.
func resolveSessionID(cmd *cobra.Command, e *env, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	id, err := e.store.Current(cmd.Context(), store.SlotSession)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("no current session; pass a session id")
	}
	return id, nil
}

// defaultHolder identifies this process as a lock holder: the current
// session if one is set, otherwise host:pid.
func defaultHolder(cmd *cobra.Command, e *env) string {
	if id, err := e.store.Current(cmd.Context(), store.SlotSession); err == nil && id != "" {
		return id
	}
	host, _ := os.Hostname()
	return fmt.Sprintf("%s:%d", strings.TrimSpace(host), os.Getpid())
}
