package engine

import (
	"math"

	"CrashCast/internal/domain/models"
	"CrashCast/pkg/logger"
)

// Calibrator folds operator feedback back into the rule table so future
// generation tracks observed reality. Each feedback sample nudges the bias
// of every phase active at the feedback timestamp toward the observed
// multiplier by one EMA step, and shifts category weights toward the
// observed band.
type Calibrator struct {
	detector     *Detector
	table        *RuleTable
	categories   models.CategorySet
	maxMult      float64
	learningRate float64
	weightStep   float64
	weightFloor  float64
	log          *logger.Logger
}

// CalibratorConfig carries the tuning constants.
type CalibratorConfig struct {
	LearningRate float64 // EMA step, (0, 1]
	WeightStep   float64 // additive weight increment per sample
	WeightFloor  float64 // minimum post-normalization weight per category
}

// NewCalibrator validates the tuning constants and builds a calibrator
// bound to the detector and table it serves.
func NewCalibrator(detector *Detector, table *RuleTable, categories models.CategorySet, maxMultiplier float64, cfg CalibratorConfig, log *logger.Logger) (*Calibrator, error) {
	if cfg.LearningRate <= 0 || cfg.LearningRate > 1 {
		return nil, configErrorf("calibrator: learning rate must be in (0, 1], got %v", cfg.LearningRate)
	}
	if cfg.WeightStep <= 0 {
		return nil, configErrorf("calibrator: weight step must be positive, got %v", cfg.WeightStep)
	}
	if cfg.WeightFloor <= 0 || cfg.WeightFloor*float64(len(categories)) >= 1 {
		return nil, configErrorf("calibrator: weight floor must be positive and leave room for %d categories, got %v", len(categories), cfg.WeightFloor)
	}
	return &Calibrator{
		detector:     detector,
		table:        table,
		categories:   categories,
		maxMult:      maxMultiplier,
		learningRate: cfg.LearningRate,
		weightStep:   cfg.WeightStep,
		weightFloor:  cfg.WeightFloor,
		log:          log,
	}, nil
}

// Calibrate consumes one feedback sample. Invalid observations are rejected
// with ValidationError before any state changes. All phases active at the
// feedback timestamp are adjusted in one atomic table step, so concurrent
// submissions each absorb a full EMA step and a failing lookup leaves the
// table untouched.
func (c *Calibrator) Calibrate(fb models.FeedbackSample) error {
	if math.IsNaN(fb.ObservedMultiplier) || fb.ObservedMultiplier <= 1.0 {
		return &ValidationError{Field: "observed_multiplier", Reason: "must be greater than 1.0"}
	}

	key := c.detector.Detect(fb.Timestamp)
	observedCat := c.categorizeObserved(fb.ObservedMultiplier)

	phaseKeys := make([]string, len(key.Phases))
	for i, p := range key.Phases {
		phaseKeys[i] = p.Key()
	}

	biases := make(map[string]float64, len(phaseKeys))
	err := c.table.Apply(phaseKeys, func(pk string, e models.RuleEntry) models.RuleEntry {
		updated := c.adjust(e, fb.ObservedMultiplier, observedCat)
		biases[pk] = updated.Bias
		return updated
	})
	if err != nil {
		return err
	}

	if c.log != nil {
		for _, pk := range phaseKeys {
			c.log.Debug("rule calibrated",
				logger.String("phase", pk),
				logger.Float64("observed", fb.ObservedMultiplier),
				logger.Float64("bias", biases[pk]),
			)
		}
	}
	return nil
}

// adjust computes the replacement entry: one EMA step of the bias toward
// the observation, plus a floored, re-normalized weight nudge toward the
// observed category. Volatility is left to explicit configuration.
func (c *Calibrator) adjust(e models.RuleEntry, observed float64, observedCat string) models.RuleEntry {
	out := e.Clone()
	out.Bias = e.Bias + c.learningRate*(observed-e.Bias)

	if out.CategoryWeights == nil {
		out.CategoryWeights = make(map[string]float64, len(c.categories))
	}
	for _, cat := range c.categories {
		if _, ok := out.CategoryWeights[cat.Name]; !ok {
			out.CategoryWeights[cat.Name] = c.weightFloor
		}
	}
	out.CategoryWeights[observedCat] += c.weightStep

	total := 0.0
	for name, w := range out.CategoryWeights {
		if w < c.weightFloor {
			out.CategoryWeights[name] = c.weightFloor
		}
		total += out.CategoryWeights[name]
	}
	for name := range out.CategoryWeights {
		out.CategoryWeights[name] /= total
	}
	return out
}

// categorizeObserved maps the observation into a band, clamping into the
// domain first since real crash data may exceed the generator's ceiling.
func (c *Calibrator) categorizeObserved(v float64) string {
	if v > c.maxMult {
		v = c.maxMult
	}
	cat, ok := c.categories.Categorize(v)
	if !ok {
		cat = c.categories[len(c.categories)-1]
	}
	return cat.Name
}
