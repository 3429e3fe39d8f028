package engine

import (
	"sort"
	"sync"
	"time"

	"CrashCast/internal/domain/models"
)

// RuleTable is the only shared mutable state of the core. Lookups and
// updates are serialized through an internal lock; every update replaces an
// entry whole, so concurrent readers never observe partial field writes.
type RuleTable struct {
	mu           sync.RWMutex
	entries      map[string]models.RuleEntry
	defaults     map[string]models.RuleEntry
	calibrations map[string]int
}

// NewRuleTable builds a table from configuration-supplied entries. The
// entries become the reset defaults.
func NewRuleTable(entries map[string]models.RuleEntry) (*RuleTable, error) {
	if len(entries) == 0 {
		return nil, configErrorf("rule table: no entries")
	}
	for key, e := range entries {
		if err := validateEntry(key, e); err != nil {
			return nil, err
		}
	}
	t := &RuleTable{
		entries:      make(map[string]models.RuleEntry, len(entries)),
		defaults:     make(map[string]models.RuleEntry, len(entries)),
		calibrations: make(map[string]int, len(entries)),
	}
	for key, e := range entries {
		t.entries[key] = e.Clone()
		t.defaults[key] = e.Clone()
	}
	return t, nil
}

func validateEntry(key string, e models.RuleEntry) error {
	if e.Volatility < 0 {
		return configErrorf("rule %q: volatility must be non-negative, got %v", key, e.Volatility)
	}
	for cat, w := range e.CategoryWeights {
		if w < 0 {
			return configErrorf("rule %q: weight for category %q must be non-negative, got %v", key, cat, w)
		}
	}
	return nil
}

// Lookup returns a copy of the entry for the phase key. A missing key is an
// invariant violation, reported as ConfigurationError.
func (t *RuleTable) Lookup(key string) (models.RuleEntry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[key]
	if !ok {
		return models.RuleEntry{}, configErrorf("no rule entry for phase %q", key)
	}
	return e.Clone(), nil
}

// Update atomically replaces the entry for the phase key. The key must
// already exist; entries are never created or deleted after construction.
func (t *RuleTable) Update(key string, e models.RuleEntry) error {
	if err := validateEntry(key, e); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[key]; !ok {
		return configErrorf("no rule entry for phase %q", key)
	}
	t.entries[key] = e.Clone()
	t.calibrations[key]++
	return nil
}

// Apply atomically rewrites the entries for the given phase keys. All keys
// are resolved and the rewritten entries validated before any mutation, and
// fn runs under the write lock, so a read-modify-write sequence is a single
// step relative to concurrent callers.
func (t *RuleTable) Apply(keys []string, fn func(key string, e models.RuleEntry) models.RuleEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, key := range keys {
		if _, ok := t.entries[key]; !ok {
			return configErrorf("no rule entry for phase %q", key)
		}
	}
	staged := make(map[string]models.RuleEntry, len(keys))
	for _, key := range keys {
		e := fn(key, t.entries[key].Clone())
		if err := validateEntry(key, e); err != nil {
			return err
		}
		staged[key] = e
	}
	for _, key := range keys {
		t.entries[key] = staged[key].Clone()
		t.calibrations[key]++
	}
	return nil
}

// Reset restores every entry to its configuration-supplied default and
// clears calibration counters.
func (t *RuleTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, e := range t.defaults {
		t.entries[key] = e.Clone()
	}
	t.calibrations = make(map[string]int, len(t.defaults))
}

// Snapshot captures the full table for later restore.
func (t *RuleTable) Snapshot() models.RuleSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := models.RuleSnapshot{TakenAt: time.Now(), Entries: make(map[string]models.RuleEntry, len(t.entries))}
	for key, e := range t.entries {
		s.Entries[key] = e.Clone()
	}
	return s
}

// Restore replaces the table with a snapshot. The snapshot must cover
// exactly the configured phase keys; on any error the table is untouched.
func (t *RuleTable) Restore(s models.RuleSnapshot) error {
	if len(s.Entries) == 0 {
		return configErrorf("restore: empty snapshot")
	}
	for key, e := range s.Entries {
		if err := validateEntry(key, e); err != nil {
			return err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for key := range t.entries {
		if _, ok := s.Entries[key]; !ok {
			return configErrorf("restore: snapshot missing phase %q", key)
		}
	}
	for key := range s.Entries {
		if _, ok := t.entries[key]; !ok {
			return configErrorf("restore: snapshot has unknown phase %q", key)
		}
	}
	for key, e := range s.Entries {
		t.entries[key] = e.Clone()
	}
	return nil
}

// Entries returns a deep copy of the current table, keyed by phase.
func (t *RuleTable) Entries() map[string]models.RuleEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]models.RuleEntry, len(t.entries))
	for key, e := range t.entries {
		out[key] = e.Clone()
	}
	return out
}

// Keys returns the configured phase keys in sorted order.
func (t *RuleTable) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([]string, 0, len(t.entries))
	for key := range t.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Calibrations returns how many feedback samples the phase has absorbed
// since the last reset.
func (t *RuleTable) Calibrations(key string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.calibrations[key]
}
