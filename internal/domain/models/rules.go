package models

import "time"

// RuleEntry controls multiplier generation for one phase. Entries are
// replaced whole on every mutation, never patched field by field.
type RuleEntry struct {
	Bias            float64            `json:"bias"`
	Volatility      float64            `json:"volatility"`
	CategoryWeights map[string]float64 `json:"category_weights"`
}

// Clone returns a deep copy so callers cannot alias the table's maps.
func (e RuleEntry) Clone() RuleEntry {
	out := RuleEntry{Bias: e.Bias, Volatility: e.Volatility}
	if e.CategoryWeights != nil {
		out.CategoryWeights = make(map[string]float64, len(e.CategoryWeights))
		for k, v := range e.CategoryWeights {
			out.CategoryWeights[k] = v
		}
	}
	return out
}

// Equal compares two entries field by field, weights included.
func (e RuleEntry) Equal(o RuleEntry) bool {
	if e.Bias != o.Bias || e.Volatility != o.Volatility {
		return false
	}
	if len(e.CategoryWeights) != len(o.CategoryWeights) {
		return false
	}
	for k, v := range e.CategoryWeights {
		if o.CategoryWeights[k] != v {
			return false
		}
	}
	return true
}

// RuleSnapshot is a point-in-time copy of the full Rule Table, suitable for
// restore without coupling to any storage format.
type RuleSnapshot struct {
	TakenAt time.Time            `json:"taken_at"`
	Entries map[string]RuleEntry `json:"entries"`
}

// Clone deep-copies the snapshot.
func (s RuleSnapshot) Clone() RuleSnapshot {
	out := RuleSnapshot{TakenAt: s.TakenAt, Entries: make(map[string]RuleEntry, len(s.Entries))}
	for k, e := range s.Entries {
		out.Entries[k] = e.Clone()
	}
	return out
}

// Category is a labeled numeric band with a display color. The set is fixed
// at startup and read-only afterwards.
type Category struct {
	Name  string  `json:"name"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Color string  `json:"color"`
}

// Contains reports whether v falls in [Min, Max). Bands are left-closed;
// the top band's upper edge is handled by CategorySet.Categorize.
func (c Category) Contains(v float64) bool {
	return v >= c.Min && v < c.Max
}

// CategorySet is the closed category list ordered by ascending Min.
type CategorySet []Category

// Categorize finds the band containing v. The last band is right-closed so
// the domain maximum itself is categorizable.
func (s CategorySet) Categorize(v float64) (Category, bool) {
	for i, c := range s {
		if c.Contains(v) {
			return c, true
		}
		if i == len(s)-1 && v == c.Max {
			return c, true
		}
	}
	return Category{}, false
}

// ByName looks a category up by its label.
func (s CategorySet) ByName(name string) (Category, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// Domain returns the covered multiplier range [min, max].
func (s CategorySet) Domain() (float64, float64) {
	if len(s) == 0 {
		return 0, 0
	}
	return s[0].Min, s[len(s)-1].Max
}
