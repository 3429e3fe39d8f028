package engine

import (
	"math"
	"math/rand"
	"time"

	"CrashCast/internal/domain/models"
	"CrashCast/pkg/logger"
)

// Epsilon keeps floored multipliers strictly above break-even.
const Epsilon = 0.01

// Crash-time projection bands, seconds. A low multiplier crashes fast.
const (
	lowBandMaxSeconds  = 5
	medBandMaxSeconds  = 20
	highBandMaxSeconds = 120
)

// Generator produces prediction events from a phase's rule entry. It never
// mutates the rule table; its only side effect is advancing the injected
// RNG.
type Generator struct {
	categories models.CategorySet
	maxMult    float64
	log        *logger.Logger
}

// NewGenerator builds a generator over a validated category set covering
// [1.0, maxMultiplier].
func NewGenerator(categories models.CategorySet, maxMultiplier float64, log *logger.Logger) (*Generator, error) {
	if err := ValidateCategories(categories, maxMultiplier); err != nil {
		return nil, err
	}
	return &Generator{categories: categories, maxMult: maxMultiplier, log: log}, nil
}

// MaxMultiplier returns the upper bound of the valid domain.
func (g *Generator) MaxMultiplier() float64 {
	return g.maxMult
}

// Generate draws one multiplier for the phase and packages it as an event.
//
// The draw window is [bias-volatility, bias+volatility]. When the entry's
// category weights name a band that overlaps the window, a weighted pick
// narrows the draw to that overlap, skewing outcomes toward recently
// observed categories. The final value is clamped to (1.0, max] and
// categorized after the draw, so the reported category always contains the
// reported multiplier.
func (g *Generator) Generate(now time.Time, key models.PhaseKey, entry models.RuleEntry, rng *rand.Rand) models.PredictionEvent {
	lo := entry.Bias - entry.Volatility
	hi := entry.Bias + entry.Volatility

	if cat, ok := g.pickCategory(entry, rng); ok {
		if overlapLo, overlapHi, ok := overlap(lo, hi, cat.Min, cat.Max); ok {
			lo, hi = overlapLo, overlapHi
		}
	}

	v := lo
	if hi > lo {
		v = lo + rng.Float64()*(hi-lo)
	}
	v = g.clamp(v)

	cat, _ := g.categories.Categorize(v)
	return models.PredictionEvent{
		Timestamp:  now,
		PhaseKey:   key.String(),
		Multiplier: v,
		Category:   cat.Name,
		Color:      cat.Color,
		CrashTime:  now.Add(g.projectCrashDuration(v, rng)),
		Source:     models.SourceGenerated,
	}
}

// Override wraps a manually supplied multiplier as an event, bypassing
// generation. The value must lie in the valid domain.
func (g *Generator) Override(now time.Time, key models.PhaseKey, multiplier float64, rng *rand.Rand) (models.PredictionEvent, error) {
	if math.IsNaN(multiplier) || multiplier <= 1.0 {
		return models.PredictionEvent{}, &ValidationError{Field: "multiplier", Reason: "must be greater than 1.0"}
	}
	if multiplier > g.maxMult {
		return models.PredictionEvent{}, &ValidationError{Field: "multiplier", Reason: "exceeds maximum multiplier"}
	}
	cat, _ := g.categories.Categorize(multiplier)
	return models.PredictionEvent{
		Timestamp:  now,
		PhaseKey:   key.String(),
		Multiplier: multiplier,
		Category:   cat.Name,
		Color:      cat.Color,
		CrashTime:  now.Add(g.projectCrashDuration(multiplier, rng)),
		Source:     models.SourceOverridden,
	}, nil
}

// pickCategory draws a category proportionally to the entry's weights.
// Returns false when no usable weights exist, leaving the draw unskewed.
func (g *Generator) pickCategory(entry models.RuleEntry, rng *rand.Rand) (models.Category, bool) {
	total := 0.0
	for _, c := range g.categories {
		if w := entry.CategoryWeights[c.Name]; w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return models.Category{}, false
	}
	target := rng.Float64() * total
	acc := 0.0
	for _, c := range g.categories {
		w := entry.CategoryWeights[c.Name]
		if w <= 0 {
			continue
		}
		acc += w
		if target < acc {
			return c, true
		}
	}
	return g.categories[len(g.categories)-1], true
}

// clamp forces v into (1.0, max]. A non-finite value is a RangeViolation:
// recovered by flooring, logged, never surfaced.
func (g *Generator) clamp(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		if g.log != nil {
			g.log.Warn("multiplier out of domain, re-clamped", logger.Error(&RangeViolation{Value: v}))
		}
		return 1.0 + Epsilon
	}
	if v <= 1.0 {
		return 1.0 + Epsilon
	}
	if v > g.maxMult {
		return g.maxMult
	}
	return v
}

// projectCrashDuration estimates seconds until crash from the multiplier
// band: small multipliers crash within seconds, large ones run long.
func (g *Generator) projectCrashDuration(v float64, rng *rand.Rand) time.Duration {
	maxSeconds := highBandMaxSeconds
	switch {
	case v < 2.0:
		maxSeconds = lowBandMaxSeconds
	case v < 10.0:
		maxSeconds = medBandMaxSeconds
	}
	seconds := 1 + rng.Float64()*float64(maxSeconds-1)
	return time.Duration(seconds * float64(time.Second))
}

func overlap(aLo, aHi, bLo, bHi float64) (float64, float64, bool) {
	lo := math.Max(aLo, bLo)
	hi := math.Min(aHi, bHi)
	if hi <= lo {
		return 0, 0, false
	}
	return lo, hi, true
}

// ValidateCategories checks that the bands are non-overlapping, contiguous,
// and cover the full multiplier domain [1.0, maxMultiplier].
func ValidateCategories(categories models.CategorySet, maxMultiplier float64) error {
	if len(categories) == 0 {
		return configErrorf("categories: empty set")
	}
	if maxMultiplier <= 1.0 {
		return configErrorf("categories: max multiplier must exceed 1.0")
	}
	if categories[0].Min != 1.0 {
		return configErrorf("categories: first band must start at 1.0, got %v", categories[0].Min)
	}
	for i, c := range categories {
		if c.Max <= c.Min {
			return configErrorf("categories: band %q is empty", c.Name)
		}
		if i > 0 && c.Min != categories[i-1].Max {
			return configErrorf("categories: gap or overlap between %q and %q", categories[i-1].Name, c.Name)
		}
	}
	if last := categories[len(categories)-1]; last.Max != maxMultiplier {
		return configErrorf("categories: last band must end at %v, got %v", maxMultiplier, last.Max)
	}
	return nil
}
