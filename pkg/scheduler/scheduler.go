// Package scheduler maintains a bounded set of concurrent execution slots
// over a plan's task graph. Admission requires completed dependencies,
// parallel eligibility, and conflict-free file locks; tasks that fail any of
// these stay queued rather than being rejected. On completion the outcome is
// routed through the hook classifier and the escalation ladder before being
// written back to the store.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"steward/pkg/hooks"
	"steward/pkg/policy"
	"steward/pkg/protocol"
	"steward/pkg/scope"
	"steward/pkg/store"
)

// TaskSpec is what the scheduler hands a worker: the task, its scope
// boundary, the model to use, and prior attempt history.
type TaskSpec struct {
	Task    protocol.Task
	Model   string
	Attempt int
	History []protocol.TaskAttempt
}

// WorkerRunner starts an external worker process for a task. The worker
// reports back by writing a completion file into the results directory;
// Start only launches it.
type WorkerRunner interface {
	Start(ctx context.Context, spec TaskSpec) error
}

// Scheduler admits tasks to slots and processes their results.
type Scheduler struct {
	store      *store.Store
	ladder     *policy.Ladder
	classifier *hooks.Classifier
	runner     WorkerRunner
	maxSlots   int

	mu     sync.Mutex
	active map[string]bool // task id -> occupying a slot
}

// New creates a Scheduler with the given slot capacity.
func New(st *store.Store, ladder *policy.Ladder, cls *hooks.Classifier, runner WorkerRunner, maxSlots int) *Scheduler {
	if maxSlots <= 0 {
		maxSlots = 3
	}
	return &Scheduler{
		store:      st,
		ladder:     ladder,
		classifier: cls,
		runner:     runner,
		maxSlots:   maxSlots,
		active:     make(map[string]bool),
	}
}

// ActiveSlots reports how many slots are currently occupied.
func (s *Scheduler) ActiveSlots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Admit runs one admission round for a plan: it evaluates the queue in
// priority/FIFO order and admits every task that is ready, eligible, and
// conflict-free until the slots are full. It returns the ids of the tasks
// admitted this round. Deferred tasks are simply left queued; the caller
// re-runs Admit whenever a slot frees.
func (s *Scheduler) Admit(ctx context.Context, planID, sessionID string) ([]string, error) {
	tasks, err := s.store.ListTasks(ctx, planID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]protocol.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	// Terminal tasks are archived out of ListTasks, so completed
	// dependencies must be resolved individually.
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if _, ok := byID[dep]; ok {
				continue
			}
			depTask, err := s.store.GetTask(ctx, dep)
			if err != nil {
				return nil, err
			}
			byID[dep] = *depTask
		}
	}

	var admitted []string
	for _, t := range tasks {
		s.mu.Lock()
		free := s.maxSlots - len(s.active)
		sequentialRunning := s.sequentialActiveLocked(byID)
		s.mu.Unlock()

		if free == 0 {
			break
		}
		if sequentialRunning {
			// A sequential-only task owns the scheduler until it vacates.
			break
		}
		if !s.ready(t, byID) {
			continue
		}
		if !t.Parallel && s.ActiveSlots() > 0 {
			// Sequential-only tasks run alone; wait for quiescence.
			continue
		}

		ok, err := s.admitOne(ctx, t, sessionID)
		if err != nil {
			return admitted, err
		}
		if ok {
			admitted = append(admitted, t.ID)
		}
	}
	return admitted, nil
}

// sequentialActiveLocked reports whether any occupied slot holds a
// sequential-only task. Caller holds s.mu.
func (s *Scheduler) sequentialActiveLocked(byID map[string]protocol.Task) bool {
	for id := range s.active {
		if t, ok := byID[id]; ok && !t.Parallel {
			return true
		}
	}
	return false
}

// ready reports whether a task is pending with every dependency completed.
// Dependency-not-ready is not an error; the task just stays queued.
func (s *Scheduler) ready(t protocol.Task, byID map[string]protocol.Task) bool {
	if t.Status != protocol.TaskPending {
		return false
	}
	s.mu.Lock()
	occupied := s.active[t.ID]
	s.mu.Unlock()
	if occupied {
		return false
	}
	for _, dep := range t.DependsOn {
		depTask, ok := byID[dep]
		if !ok || depTask.Status != protocol.TaskCompleted {
			return false
		}
	}
	return true
}

// admitOne claims the task's declared files, transitions it to in_progress
// and dispatches it. A file conflict defers the task (returns false, nil);
// it is not an error and the task stays pending.
func (s *Scheduler) admitOne(ctx context.Context, t protocol.Task, sessionID string) (bool, error) {
	conflictPath, holder, err := s.store.AcquireFileLocks(ctx, t.ID, declaredFiles(t))
	if err != nil {
		return false, err
	}
	if conflictPath != "" {
		if err := s.store.LogEvent(ctx, sessionID, "task_deferred", "scheduler",
			fmt.Sprintf("task %s deferred: %s locked by %s", t.ID, conflictPath, holder), ""); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := s.store.SetTaskStatus(ctx, t.ID, protocol.TaskInProgress); err != nil {
		// Undo the claim; the slot was never taken.
		_ = s.store.ReleaseFileLocks(ctx, t.ID)
		return false, err
	}
	if sessionID != "" {
		if err := s.store.AssignTaskSession(ctx, t.ID, sessionID); err != nil {
			return false, err
		}
	}

	history, err := s.store.ListAttempts(ctx, t.ID)
	if err != nil {
		return false, err
	}
	attempt := len(history) + 1
	model := s.ladder.ModelFor(t.Tier, attempt)

	s.mu.Lock()
	s.active[t.ID] = true
	s.mu.Unlock()

	payload, _ := json.Marshal(map[string]any{"model": model, "attempt": attempt})
	if err := s.store.LogEvent(ctx, sessionID, "task_dispatched", "scheduler",
		fmt.Sprintf("task %s attempt %d on %s", t.ID, attempt, model), string(payload)); err != nil {
		return false, err
	}

	spec := TaskSpec{Task: t, Model: model, Attempt: attempt, History: history}
	if err := s.runner.Start(ctx, spec); err != nil {
		// Worker failed to launch: vacate the slot and surface the failure
		// as an attempt so the ladder advances.
		s.vacate(t.ID)
		report := protocol.CompletionReport{TaskID: t.ID, Status: "failed", Summary: err.Error()}
		if herr := s.HandleResult(ctx, sessionID, report); herr != nil {
			return false, herr
		}
		return true, nil
	}
	return true, nil
}

// declaredFiles returns the file set a task declares it will modify: the
// scope's exact allowed files. Glob-scoped tasks conflict only on exact
// paths; the commit-time scope check still bounds what they may touch.
func declaredFiles(t protocol.Task) []string {
	return t.Scope.AllowedFiles
}

// vacate frees a task's slot.
func (s *Scheduler) vacate(taskID string) {
	s.mu.Lock()
	delete(s.active, taskID)
	s.mu.Unlock()
}

// HandleResult routes a worker's completion report back into the store:
// outcome classification, attempt accounting, failure escalation, and the
// atomic status-update-plus-lock-release.
func (s *Scheduler) HandleResult(ctx context.Context, sessionID string, report protocol.CompletionReport) error {
	defer s.vacate(report.TaskID)

	t, err := s.store.GetTask(ctx, report.TaskID)
	if err != nil {
		return err
	}

	outcome := s.classifier.Classify(report.Output + "\n" + report.Summary)
	succeeded := report.Status == "complete" && outcome != hooks.OutcomeFailure

	attemptOutcome := string(outcome)
	if succeeded {
		attemptOutcome = string(hooks.OutcomeSuccess)
	}

	history, err := s.store.ListAttempts(ctx, t.ID)
	if err != nil {
		return err
	}
	attemptNum := len(history) + 1
	model := s.ladder.ModelFor(t.Tier, attemptNum)

	if _, err := s.store.AddAttempt(ctx, store.AttemptParams{
		TaskID:    t.ID,
		ModelTier: t.Tier,
		Model:     model,
		Outcome:   attemptOutcome,
		TokensIn:  report.TokensIn,
		TokensOut: report.TokensOut,
		Cost:      report.Cost,
		Error:     failureSummary(report, succeeded),
	}); err != nil {
		return err
	}

	if succeeded {
		if err := s.store.SetTaskStatus(ctx, t.ID, protocol.TaskCompleted); err != nil {
			return err
		}
		if sessionID != "" {
			if err := s.store.ResetFailures(ctx, sessionID); err != nil {
				return err
			}
		}
		return s.store.LogEvent(ctx, sessionID, "task_completed", "scheduler",
			fmt.Sprintf("task %s completed on attempt %d", t.ID, attemptNum), "")
	}

	return s.handleFailure(ctx, sessionID, t, attemptNum, model)
}

// handleFailure advances the escalation ladder, or marks the task failed
// and escalates the session to human review once the ladder is exhausted.
func (s *Scheduler) handleFailure(ctx context.Context, sessionID string, t *protocol.Task, attemptNum int, model string) error {
	if sessionID != "" {
		if _, err := s.store.RecordFailure(ctx, sessionID); err != nil {
			return err
		}
	}

	if s.ladder.Exhausted(t.Tier, attemptNum) {
		if err := s.store.SetTaskStatus(ctx, t.ID, protocol.TaskFailed); err != nil {
			return err
		}
		if sessionID != "" {
			if err := s.store.SetSessionPhase(ctx, sessionID, protocol.PhaseHumanReview); err != nil {
				return err
			}
		}
		return s.store.LogEvent(ctx, sessionID, "task_abandoned", "scheduler",
			fmt.Sprintf("task %s failed after %d attempt(s); escalated to human review", t.ID, attemptNum), "")
	}

	// Requeue for the next rung of the ladder. The terminal-status path has
	// already released the file locks via SetTaskStatus; a pending task
	// holds none.
	if err := s.store.ReleaseFileLocks(ctx, t.ID); err != nil {
		return err
	}
	if err := s.store.SetTaskStatus(ctx, t.ID, protocol.TaskPending); err != nil {
		return err
	}

	nextModel := s.ladder.ModelFor(t.Tier, attemptNum+1)
	if nextModel != model && sessionID != "" {
		if err := s.store.AddEscalation(ctx, sessionID,
			s.ladder.TierOfModel(model), s.ladder.TierOfModel(nextModel),
			fmt.Sprintf("task %s attempt %d failed", t.ID, attemptNum)); err != nil {
			return err
		}
	}
	return s.store.LogEvent(ctx, sessionID, "task_retry", "scheduler",
		fmt.Sprintf("task %s requeued for attempt %d on %s", t.ID, attemptNum+1, nextModel), "")
}

func failureSummary(report protocol.CompletionReport, succeeded bool) string {
	if succeeded {
		return ""
	}
	return report.Summary
}

// CheckWrite is the advisory pre-execution scope check: it logs intent and
// reports whether a single file write would violate the task's boundary.
func (s *Scheduler) CheckWrite(ctx context.Context, sessionID string, t protocol.Task, path string) error {
	if scope.InScope(path, t.Scope) {
		return nil
	}
	if err := s.store.LogEvent(ctx, sessionID, "scope_warning", "scope",
		fmt.Sprintf("task %s attempted out-of-scope write: %s", t.ID, path), ""); err != nil {
		return err
	}
	return &protocol.ScopeViolationError{TaskID: t.ID, Paths: []string{path}}
}
