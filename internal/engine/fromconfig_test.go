package engine

import (
	"testing"

	"CrashCast/internal/domain/models"
	"CrashCast/pkg/config"
)

func testCategoryConfigs() []config.CategoryConfig {
	return []config.CategoryConfig{
		{Name: "low", Min: 1.0, Max: 2.0, Color: "grey"},
		{Name: "medium", Min: 2.0, Max: 3.0, Color: "green"},
		{Name: "high", Min: 3.0, Max: 4.0, Color: "purple"},
		{Name: "extreme", Min: 4.0, Max: 10.0, Color: "yellow"},
		{Name: "moon", Min: 10.0, Max: 50.0, Color: "cyan"},
	}
}

func TestBuildCategoriesSortsAndValidates(t *testing.T) {
	// Deliberately unordered input.
	cfgs := []config.CategoryConfig{
		{Name: "moon", Min: 10.0, Max: 50.0, Color: "cyan"},
		{Name: "low", Min: 1.0, Max: 10.0, Color: "grey"},
	}
	cats, err := BuildCategories(cfgs, 50.0)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cats[0].Name != "low" || cats[1].Name != "moon" {
		t.Fatalf("not sorted by min: %+v", cats)
	}

	// Coverage gap must be rejected at load time.
	cfgs[1].Max = 9.0
	if _, err := BuildCategories(cfgs, 50.0); err == nil {
		t.Fatalf("expected rejection of gap in coverage")
	}
}

func TestBuildRuleTableExpandsDefaultsAndOverrides(t *testing.T) {
	d, _ := NewDetector(models.DetectionMode{Hourly: true, Quarterly: true, MinuteParity: true})
	cats, _ := BuildCategories(testCategoryConfigs(), 50.0)

	rules := config.RulesConfig{
		Default: config.RuleConfig{Bias: 2.0, Volatility: 0.5, Weights: map[string]float64{"low": 0.6, "medium": 0.4}},
		Hourly: map[string]config.RuleConfig{
			"14": {Bias: 3.5, Volatility: 0.2, Weights: map[string]float64{"high": 1}},
		},
		Parity: map[string]config.RuleConfig{
			"odd": {Bias: 1.4, Volatility: 0.3},
		},
	}

	tbl, err := BuildRuleTable(rules, d, cats)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// Every reachable key has an entry: lookups cannot fail.
	for _, key := range d.ReachableKeys() {
		if _, err := tbl.Lookup(key); err != nil {
			t.Fatalf("missing entry for reachable phase %q", key)
		}
	}

	e, _ := tbl.Lookup("hourly:14")
	if e.Bias != 3.5 {
		t.Fatalf("override not applied: %+v", e)
	}
	e, _ = tbl.Lookup("hourly:13")
	if e.Bias != 2.0 {
		t.Fatalf("default not applied: %+v", e)
	}
	e, _ = tbl.Lookup("parity:odd")
	if e.Bias != 1.4 {
		t.Fatalf("parity override not applied: %+v", e)
	}
}

func TestBuildRuleTableRejectsInvalidConfig(t *testing.T) {
	d, _ := NewDetector(models.DetectionMode{Hourly: true})
	cats, _ := BuildCategories(testCategoryConfigs(), 50.0)

	cases := []struct {
		name  string
		rules config.RulesConfig
	}{
		{"out of range hour", config.RulesConfig{
			Default: config.RuleConfig{Bias: 2, Volatility: 0.5},
			Hourly:  map[string]config.RuleConfig{"24": {Bias: 1}},
		}},
		{"out of range quarter", config.RulesConfig{
			Default:   config.RuleConfig{Bias: 2, Volatility: 0.5},
			Quarterly: map[string]config.RuleConfig{"5": {Bias: 1}},
		}},
		{"non-numeric hour", config.RulesConfig{
			Default: config.RuleConfig{Bias: 2, Volatility: 0.5},
			Hourly:  map[string]config.RuleConfig{"noon": {Bias: 1}},
		}},
		{"negative volatility", config.RulesConfig{
			Default: config.RuleConfig{Bias: 2, Volatility: -0.1},
		}},
		{"unknown category in weights", config.RulesConfig{
			Default: config.RuleConfig{Bias: 2, Volatility: 0.5, Weights: map[string]float64{"mystery": 1}},
		}},
		{"negative weight", config.RulesConfig{
			Default: config.RuleConfig{Bias: 2, Volatility: 0.5, Weights: map[string]float64{"low": -1}},
		}},
	}
	for _, tc := range cases {
		_, err := BuildRuleTable(tc.rules, d, cats)
		if err == nil {
			t.Fatalf("%s: expected rejection", tc.name)
		}
		var cfgErr *ConfigurationError
		if !asErr(err, &cfgErr) {
			t.Fatalf("%s: expected ConfigurationError, got %T", tc.name, err)
		}
	}
}
