// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package interaction

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/npcforge/npcforge/internal/entity"
)

// DefaultCooldown is the spam-click window applied when a registration
// does not set its own.
const DefaultCooldown = 500 * time.Millisecond

// CooldownTracker records when each (entity, subject) pair may interact
// again. Expired entries are evicted lazily on check and in bulk by
// SweepExpired. Entries never imply the entity still exists.
// Not safe for concurrent use.
type CooldownTracker struct {
	now     func() time.Time
	entries map[entity.ID]map[ulid.ULID]time.Time
}

// NewCooldownTracker creates an empty tracker. A nil clock uses time.Now.
func NewCooldownTracker(now func() time.Time) *CooldownTracker {
	if now == nil {
		now = time.Now
	}
	return &CooldownTracker{now: now, entries: make(map[entity.ID]map[ulid.ULID]time.Time)}
}

// SetCooldown blocks subject from interacting with id for d.
func (t *CooldownTracker) SetCooldown(id entity.ID, subject ulid.ULID, d time.Duration) {
	subjects, ok := t.entries[id]
	if !ok {
		subjects = make(map[ulid.ULID]time.Time)
		t.entries[id] = subjects
	}
	subjects[subject] = t.now().Add(d)
	t.updateGauge()
}

// IsOnCooldown reports whether subject is still blocked. An expired entry
// is evicted as a side effect.
func (t *CooldownTracker) IsOnCooldown(id entity.ID, subject ulid.ULID) bool {
	expiry, ok := t.entries[id][subject]
	if !ok {
		return false
	}
	if t.now().Before(expiry) {
		return true
	}
	t.ClearPair(id, subject)
	return false
}

// Remaining returns how long subject stays blocked, or zero.
func (t *CooldownTracker) Remaining(id entity.ID, subject ulid.ULID) time.Duration {
	expiry, ok := t.entries[id][subject]
	if !ok {
		return 0
	}
	return max(expiry.Sub(t.now()), 0)
}

// ClearPair drops a single entry.
func (t *CooldownTracker) ClearPair(id entity.ID, subject ulid.ULID) {
	subjects, ok := t.entries[id]
	if !ok {
		return
	}
	delete(subjects, subject)
	if len(subjects) == 0 {
		delete(t.entries, id)
	}
	t.updateGauge()
}

// Clear drops every entry for an entity.
func (t *CooldownTracker) Clear(id entity.ID) {
	delete(t.entries, id)
	t.updateGauge()
}

// ClearSubject drops every entry for a subject, typically on disconnect.
func (t *CooldownTracker) ClearSubject(subject ulid.ULID) {
	for id, subjects := range t.entries {
		delete(subjects, subject)
		if len(subjects) == 0 {
			delete(t.entries, id)
		}
	}
	t.updateGauge()
}

// ClearAll drops everything.
func (t *CooldownTracker) ClearAll() {
	clear(t.entries)
	t.updateGauge()
}

// SweepExpired evicts every expired entry and returns how many went.
func (t *CooldownTracker) SweepExpired() int {
	now := t.now()
	removed := 0
	for id, subjects := range t.entries {
		for subject, expiry := range subjects {
			if !now.Before(expiry) {
				delete(subjects, subject)
				removed++
			}
		}
		if len(subjects) == 0 {
			delete(t.entries, id)
		}
	}
	t.updateGauge()
	return removed
}

// Count returns the number of stored entries, expired or not.
func (t *CooldownTracker) Count() int {
	n := 0
	for _, subjects := range t.entries {
		n += len(subjects)
	}
	return n
}

// Active returns the remaining time of every unexpired entry of id.
func (t *CooldownTracker) Active(id entity.ID) map[ulid.ULID]time.Duration {
	now := t.now()
	out := make(map[ulid.ULID]time.Duration)
	for subject, expiry := range t.entries[id] {
		if now.Before(expiry) {
			out[subject] = expiry.Sub(now)
		}
	}
	return out
}

func (t *CooldownTracker) updateGauge() {
	CooldownEntries.Set(float64(t.Count()))
}
