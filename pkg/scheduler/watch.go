package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"steward/pkg/protocol"
)

// Watch blocks on the results directory, feeding each worker completion
// file through HandleResult and re-running Admit when a slot frees. It
// returns when ctx is cancelled. Files already present at startup are
// drained first so a controller restart never strands a finished task.
func (s *Scheduler) Watch(ctx context.Context, resultsDir, planID, sessionID string) error {
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(resultsDir); err != nil {
		return fmt.Errorf("watch %s: %w", resultsDir, err)
	}

	if err := s.drain(ctx, resultsDir, planID, sessionID); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if err := s.consume(ctx, ev.Name, planID, sessionID); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher: %w", err)
		}
	}
}

// drain processes completion files already sitting in the results dir.
func (s *Scheduler) drain(ctx context.Context, resultsDir, planID, sessionID string) error {
	entries, err := os.ReadDir(resultsDir)
	if err != nil {
		return fmt.Errorf("read results dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := s.consume(ctx, filepath.Join(resultsDir, entry.Name()), planID, sessionID); err != nil {
			return err
		}
	}
	return nil
}

// consume parses one completion file, routes it through HandleResult,
// removes it, and runs a fresh admission round. Non-JSON files and partial
// writes are skipped silently; the next Write event retries them.
func (s *Scheduler) consume(ctx context.Context, path, planID, sessionID string) error {
	if !strings.HasSuffix(path, ".json") {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var report protocol.CompletionReport
	if err := json.Unmarshal(data, &report); err != nil || report.TaskID == "" {
		return nil
	}

	if err := s.HandleResult(ctx, sessionID, report); err != nil {
		return err
	}
	_ = os.Remove(path)

	_, err = s.Admit(ctx, planID, sessionID)
	return err
}
