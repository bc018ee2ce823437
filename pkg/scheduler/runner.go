package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// ExecWorkerRunner launches one external worker process per task. The task
// spec travels as JSON on the worker's stdin; the worker writes its
// completion file into the results directory when done. In-flight processes
// are terminated on Shutdown as part of cancellation teardown.
type ExecWorkerRunner struct {
	// Command is the worker executable, e.g. the AI CLI wrapper.
	Command string
	// Args are prepended before the per-task arguments.
	Args []string
	// ResultsDir is passed to the worker via environment.
	ResultsDir string
	// LogDir receives one output log per task.
	LogDir string

	mu      sync.Mutex
	running map[string]*exec.Cmd
}

// Start spawns the worker process for a task and returns without waiting.
func (r *ExecWorkerRunner) Start(ctx context.Context, spec TaskSpec) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("marshal task spec: %w", err)
	}

	args := append(append([]string{}, r.Args...), "--task", spec.Task.ID, "--model", spec.Model)
	cmd := exec.CommandContext(ctx, r.Command, args...)
	cmd.Env = append(os.Environ(),
		"STEWARD_RESULTS_DIR="+r.ResultsDir,
		"STEWARD_TASK_ID="+spec.Task.ID,
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("worker stdin: %w", err)
	}

	if r.LogDir != "" {
		if err := os.MkdirAll(r.LogDir, 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		logFile, err := os.OpenFile(
			filepath.Join(r.LogDir, spec.Task.ID+".log"),
			os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open worker log: %w", err)
		}
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start worker for %s: %w", spec.Task.ID, err)
	}

	go func() {
		_, _ = stdin.Write(specJSON)
		_ = stdin.Close()
	}()

	r.mu.Lock()
	if r.running == nil {
		r.running = make(map[string]*exec.Cmd)
	}
	r.running[spec.Task.ID] = cmd
	r.mu.Unlock()

	// Reap the process so it never zombies; the result arrives separately
	// through the completion file.
	go func() {
		_ = cmd.Wait()
		r.mu.Lock()
		delete(r.running, spec.Task.ID)
		r.mu.Unlock()
	}()

	return nil
}

// Kill terminates the in-flight worker for a task, if any.
func (r *ExecWorkerRunner) Kill(taskID string) {
	r.mu.Lock()
	cmd := r.running[taskID]
	r.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// Shutdown terminates every in-flight worker.
func (r *ExecWorkerRunner) Shutdown() {
	r.mu.Lock()
	cmds := make([]*exec.Cmd, 0, len(r.running))
	for _, cmd := range r.running {
		cmds = append(cmds, cmd)
	}
	r.mu.Unlock()
	for _, cmd := range cmds {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}
}
