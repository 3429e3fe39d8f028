package models

import (
	"fmt"
	"strings"
)

// PhaseKind enumerates the time-bucket granularities the detector knows.
type PhaseKind string

const (
	KindHourly       PhaseKind = "hourly"
	KindQuarterly    PhaseKind = "quarterly"
	KindMinuteParity PhaseKind = "parity"
)

const (
	ParityEven = "even"
	ParityOdd  = "odd"
)

// Phase is one time-bucket classification of a timestamp. A timestamp can
// map to several phases at once, one per active granularity.
type Phase struct {
	Kind   PhaseKind `json:"kind"`
	Bucket int       `json:"bucket,omitempty"` // hour 0-23 or quarter 0-3
	Parity string    `json:"parity,omitempty"` // even/odd, minute parity only
}

func Hourly(h int) Phase { return Phase{Kind: KindHourly, Bucket: h} }

func Quarterly(q int) Phase { return Phase{Kind: KindQuarterly, Bucket: q} }

func MinuteParity(p string) Phase { return Phase{Kind: KindMinuteParity, Parity: p} }

// Key returns the Rule Table lookup key for the phase.
func (p Phase) Key() string {
	if p.Kind == KindMinuteParity {
		return string(p.Kind) + ":" + p.Parity
	}
	return fmt.Sprintf("%s:%d", p.Kind, p.Bucket)
}

// PhaseKey is the composite of every phase active for one timestamp, in
// detector order (hourly, quarterly, parity).
type PhaseKey struct {
	Phases []Phase `json:"phases"`
}

// String renders the composite key, e.g. "hourly:14|quarterly:0|parity:even".
func (k PhaseKey) String() string {
	parts := make([]string, 0, len(k.Phases))
	for _, p := range k.Phases {
		parts = append(parts, p.Key())
	}
	return strings.Join(parts, "|")
}

// DetectionMode selects which granularities the detector evaluates.
type DetectionMode struct {
	Hourly       bool
	Quarterly    bool
	MinuteParity bool
}

// Enabled reports whether at least one granularity is active.
func (m DetectionMode) Enabled() bool {
	return m.Hourly || m.Quarterly || m.MinuteParity
}
