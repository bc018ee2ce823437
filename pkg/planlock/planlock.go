// Package planlock grants exclusive execution rights over a plan via a
// store-backed lock table with insert-if-absent semantics. Locks are
// cooperative: a crashed controller leaves a row behind, and the expiry and
// stale-heartbeat thresholds decide when another controller may reclaim it.
package planlock

import (
	"context"
	"fmt"
	"os"
	"time"

	"steward/pkg/protocol"
	"steward/pkg/store"
)

// Manager acquires, releases and reclaims plan locks.
type Manager struct {
	store          *store.Store
	expiry         time.Duration
	staleHeartbeat time.Duration

	// now is swappable for tests exercising expiry windows.
	now func() time.Time
}

// New creates a lock Manager with the given expiry and stale-heartbeat
// thresholds (defaults: 2h and 30m, via pkg/config).
func New(st *store.Store, expiry, staleHeartbeat time.Duration) *Manager {
	return &Manager{
		store:          st,
		expiry:         expiry,
		staleHeartbeat: staleHeartbeat,
		now:            time.Now,
	}
}

// Acquire attempts to take the lock on planID for holder. A second
// acquisition on an unexpired, live lock fails with *protocol.LockHeldError
// rather than blocking. An expired or heartbeat-stale lock is reclaimed:
// a forced-reclamation audit event is written first, then the row is
// replaced.
func (m *Manager) Acquire(ctx context.Context, planID, holder string) (*protocol.PlanLock, error) {
	host, _ := os.Hostname()
	want := protocol.PlanLock{
		PlanID:    planID,
		Holder:    holder,
		PID:       os.Getpid(),
		Host:      host,
		ExpiresAt: m.now().UTC().Add(m.expiry).Format(protocol.TimeLayout),
	}

	inserted, err := m.store.InsertPlanLock(ctx, want)
	if err != nil {
		return nil, err
	}
	if inserted {
		if err := m.store.LogEvent(ctx, "", "lock_acquired", "planlock",
			fmt.Sprintf("plan %s locked by %s", planID, holder), ""); err != nil {
			return nil, err
		}
		return m.store.GetPlanLock(ctx, planID)
	}

	existing, err := m.store.GetPlanLock(ctx, planID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		// Lock vanished between the failed insert and the read; retry once.
		inserted, err = m.store.InsertPlanLock(ctx, want)
		if err != nil {
			return nil, err
		}
		if !inserted {
			return nil, &protocol.LockHeldError{PlanID: planID, Holder: "unknown", ExpiresAt: ""}
		}
		return m.store.GetPlanLock(ctx, planID)
	}

	if !m.reclaimable(*existing) {
		return nil, &protocol.LockHeldError{
			PlanID:    planID,
			Holder:    existing.Holder,
			ExpiresAt: existing.ExpiresAt,
		}
	}

	// Forced reclamation: audit first, then replace the row.
	if err := m.store.LogEvent(ctx, "", "lock_reclaimed", "planlock",
		fmt.Sprintf("stale lock on plan %s reclaimed from %s by %s", planID, existing.Holder, holder), ""); err != nil {
		return nil, err
	}
	if _, err := m.store.DeletePlanLock(ctx, planID, existing.Holder); err != nil {
		return nil, err
	}
	inserted, err = m.store.InsertPlanLock(ctx, want)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Another controller won the reclamation race.
		winner, err := m.store.GetPlanLock(ctx, planID)
		if err != nil {
			return nil, err
		}
		holderName, expires := "unknown", ""
		if winner != nil {
			holderName, expires = winner.Holder, winner.ExpiresAt
		}
		return nil, &protocol.LockHeldError{PlanID: planID, Holder: holderName, ExpiresAt: expires}
	}
	return m.store.GetPlanLock(ctx, planID)
}

// Release drops holder's lock on planID. Releasing a lock held by someone
// else (or not held at all) is reported, not silently ignored.
func (m *Manager) Release(ctx context.Context, planID, holder string) error {
	removed, err := m.store.DeletePlanLock(ctx, planID, holder)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("plan %s: no lock held by %s", planID, holder)
	}
	return m.store.LogEvent(ctx, "", "lock_released", "planlock",
		fmt.Sprintf("plan %s unlocked by %s", planID, holder), "")
}

// Heartbeat refreshes the holder's liveness signal on a held lock.
func (m *Manager) Heartbeat(ctx context.Context, planID, holder string) error {
	return m.store.TouchPlanLock(ctx, planID, holder)
}

// reclaimable reports whether a lock is past its expiry or its heartbeat
// has been silent past the stale threshold. Unparseable timestamps count
// as stale: a corrupt lock row must not wedge the plan forever.
func (m *Manager) reclaimable(l protocol.PlanLock) bool {
	now := m.now().UTC()

	expires, err := time.Parse(protocol.TimeLayout, l.ExpiresAt)
	if err != nil || now.After(expires) {
		return true
	}

	heartbeat, err := time.Parse(protocol.TimeLayout, l.HeartbeatAt)
	if err != nil || now.Sub(heartbeat) > m.staleHeartbeat {
		return true
	}

	return false
}
