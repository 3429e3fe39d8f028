package engine

import (
	"sort"
	"strconv"

	"CrashCast/internal/domain/models"
	"CrashCast/pkg/config"
)

// BuildCategories converts configured bands into a validated CategorySet.
func BuildCategories(cfgs []config.CategoryConfig, maxMultiplier float64) (models.CategorySet, error) {
	cats := make(models.CategorySet, 0, len(cfgs))
	for _, c := range cfgs {
		cats = append(cats, models.Category{Name: c.Name, Min: c.Min, Max: c.Max, Color: c.Color})
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Min < cats[j].Min })
	if err := ValidateCategories(cats, maxMultiplier); err != nil {
		return nil, err
	}
	return cats, nil
}

// BuildDetectionMode converts the engine detection flags.
func BuildDetectionMode(cfg config.EngineConfig) models.DetectionMode {
	return models.DetectionMode{
		Hourly:       cfg.Detection.Hourly,
		Quarterly:    cfg.Detection.Quarterly,
		MinuteParity: cfg.Detection.MinuteParity,
	}
}

// BuildRuleTable expands the configured default plus per-bucket overrides
// into a full table covering every phase key the detector can emit, and
// rejects overrides naming unreachable buckets or unknown categories. This
// is what makes ConfigurationError from lookup unreachable at runtime.
func BuildRuleTable(rules config.RulesConfig, detector *Detector, categories models.CategorySet) (*RuleTable, error) {
	overrides := make(map[string]config.RuleConfig)
	for bucket, rc := range rules.Hourly {
		h, err := strconv.Atoi(bucket)
		if err != nil || h < 0 || h > 23 {
			return nil, configErrorf("rules.hourly: invalid hour %q", bucket)
		}
		overrides[models.Hourly(h).Key()] = rc
	}
	for bucket, rc := range rules.Quarterly {
		q, err := strconv.Atoi(bucket)
		if err != nil || q < 0 || q > 3 {
			return nil, configErrorf("rules.quarterly: invalid quarter %q", bucket)
		}
		overrides[models.Quarterly(q).Key()] = rc
	}
	for parity, rc := range rules.Parity {
		if parity != models.ParityEven && parity != models.ParityOdd {
			return nil, configErrorf("rules.parity: invalid parity %q", parity)
		}
		overrides[models.MinuteParity(parity).Key()] = rc
	}

	entries := make(map[string]models.RuleEntry)
	for _, key := range detector.ReachableKeys() {
		rc := rules.Default
		if o, ok := overrides[key]; ok {
			rc = o
		}
		entry, err := buildEntry(key, rc, categories)
		if err != nil {
			return nil, err
		}
		entries[key] = entry
	}
	return NewRuleTable(entries)
}

func buildEntry(key string, rc config.RuleConfig, categories models.CategorySet) (models.RuleEntry, error) {
	if rc.Volatility < 0 {
		return models.RuleEntry{}, configErrorf("rule %q: volatility must be non-negative", key)
	}
	weights := make(map[string]float64, len(rc.Weights))
	for name, w := range rc.Weights {
		if _, ok := categories.ByName(name); !ok {
			return models.RuleEntry{}, configErrorf("rule %q: unknown category %q in weights", key, name)
		}
		if w < 0 {
			return models.RuleEntry{}, configErrorf("rule %q: weight for %q must be non-negative", key, name)
		}
		weights[name] = w
	}
	return models.RuleEntry{Bias: rc.Bias, Volatility: rc.Volatility, CategoryWeights: weights}, nil
}
