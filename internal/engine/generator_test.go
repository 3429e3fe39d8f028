package engine

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"CrashCast/internal/domain/models"
)

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator(testCategories(), 50.0, nil)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	return g
}

func TestGenerateStaysInDomainAndCategoryMatches(t *testing.T) {
	g := newTestGenerator(t)
	rng := rand.New(rand.NewSource(7))
	key := models.PhaseKey{Phases: []models.Phase{models.Hourly(10)}}
	now := time.Date(2026, 3, 14, 10, 2, 0, 0, time.UTC)

	entries := []models.RuleEntry{
		{Bias: 1.5, Volatility: 0.2},
		{Bias: 2.0, Volatility: 3.0},
		{Bias: 0.5, Volatility: 0.1},  // window entirely below break-even
		{Bias: 60.0, Volatility: 5.0}, // window above the ceiling
		{Bias: 2.5, Volatility: 0.0},  // degenerate window
	}
	for _, entry := range entries {
		for i := 0; i < 500; i++ {
			ev := g.Generate(now, key, entry, rng)
			if !(ev.Multiplier > 1.0 && ev.Multiplier <= 50.0) {
				t.Fatalf("multiplier %v outside (1.0, 50.0] for entry %+v", ev.Multiplier, entry)
			}
			cat, ok := testCategories().ByName(ev.Category)
			if !ok {
				t.Fatalf("unknown category %q", ev.Category)
			}
			if !cat.Contains(ev.Multiplier) && ev.Multiplier != cat.Max {
				t.Fatalf("category %q does not contain %v", ev.Category, ev.Multiplier)
			}
			if ev.Source != models.SourceGenerated {
				t.Fatalf("source = %q", ev.Source)
			}
			if !ev.CrashTime.After(ev.Timestamp) {
				t.Fatalf("crash time %v not after %v", ev.CrashTime, ev.Timestamp)
			}
		}
	}
}

func TestGenerateSingleCategoryScenario(t *testing.T) {
	// A lone "Medium" band covering [1.0, 3.0]: generation at 14:05 with
	// bias 1.5 and volatility 0.2 must stay inside it.
	cats := models.CategorySet{{Name: "medium", Min: 1.0, Max: 3.0, Color: "green"}}
	g, err := NewGenerator(cats, 3.0, nil)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	rng := rand.New(rand.NewSource(14))
	key := models.PhaseKey{Phases: []models.Phase{models.Hourly(14)}}
	now := time.Date(2026, 3, 14, 14, 5, 0, 0, time.UTC)
	entry := models.RuleEntry{Bias: 1.5, Volatility: 0.2}

	for i := 0; i < 1000; i++ {
		ev := g.Generate(now, key, entry, rng)
		if ev.Category != "medium" {
			t.Fatalf("category = %q, want medium", ev.Category)
		}
		if ev.Multiplier < 1.0 || ev.Multiplier > 3.0 {
			t.Fatalf("multiplier %v outside [1.0, 3.0]", ev.Multiplier)
		}
		if ev.PhaseKey != "hourly:14" {
			t.Fatalf("phase key = %q", ev.PhaseKey)
		}
	}
}

func TestGenerateReproducibleWithSeededRNG(t *testing.T) {
	g := newTestGenerator(t)
	key := models.PhaseKey{Phases: []models.Phase{models.Hourly(3)}}
	now := time.Date(2026, 3, 14, 3, 0, 0, 0, time.UTC)
	entry := models.RuleEntry{Bias: 2.2, Volatility: 1.0}

	a := g.Generate(now, key, entry, rand.New(rand.NewSource(42)))
	b := g.Generate(now, key, entry, rand.New(rand.NewSource(42)))
	if a.Multiplier != b.Multiplier || a.Category != b.Category {
		t.Fatalf("same seed produced different events: %+v vs %+v", a, b)
	}
}

func TestGenerateRecoversNonFiniteBias(t *testing.T) {
	g := newTestGenerator(t)
	rng := rand.New(rand.NewSource(1))
	key := models.PhaseKey{Phases: []models.Phase{models.Hourly(0)}}
	entry := models.RuleEntry{Bias: math.NaN(), Volatility: 0.5}

	ev := g.Generate(time.Now(), key, entry, rng)
	if !(ev.Multiplier > 1.0 && ev.Multiplier <= 50.0) {
		t.Fatalf("non-finite bias not recovered, got %v", ev.Multiplier)
	}
}

func TestGenerateWeightsSkewTowardCategory(t *testing.T) {
	g := newTestGenerator(t)
	rng := rand.New(rand.NewSource(99))
	key := models.PhaseKey{Phases: []models.Phase{models.Hourly(9)}}
	now := time.Now()

	// A wide window with all weight on "high" should land there far more
	// often than an unweighted draw over [1.0, 9.0] would.
	entry := models.RuleEntry{
		Bias:            5.0,
		Volatility:      4.0,
		CategoryWeights: map[string]float64{"high": 1.0},
	}
	hits := 0
	const n = 2000
	for i := 0; i < n; i++ {
		if ev := g.Generate(now, key, entry, rng); ev.Category == "high" {
			hits++
		}
	}
	if hits < n*9/10 {
		t.Fatalf("weighted draw landed in high only %d/%d times", hits, n)
	}
}

func TestOverride(t *testing.T) {
	g := newTestGenerator(t)
	rng := rand.New(rand.NewSource(5))
	key := models.PhaseKey{Phases: []models.Phase{models.Hourly(16)}}
	now := time.Date(2026, 3, 14, 16, 30, 0, 0, time.UTC)

	ev, err := g.Override(now, key, 3.5, rng)
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if ev.Source != models.SourceOverridden {
		t.Fatalf("source = %q", ev.Source)
	}
	if ev.Multiplier != 3.5 || ev.Category != "high" {
		t.Fatalf("override altered value: %+v", ev)
	}
	if !ev.Timestamp.Equal(now) {
		t.Fatalf("override not stamped with submission time")
	}

	if _, err := g.Override(now, key, 1.0, rng); err == nil {
		t.Fatalf("expected rejection of multiplier 1.0")
	}
	var verr *ValidationError
	if _, err := g.Override(now, key, 0.4, rng); !asErr(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := g.Override(now, key, 51.0, rng); err == nil {
		t.Fatalf("expected rejection above max multiplier")
	}
}

func TestValidateCategories(t *testing.T) {
	cases := []struct {
		name string
		cats models.CategorySet
		max  float64
	}{
		{"empty", models.CategorySet{}, 10},
		{"gap", models.CategorySet{
			{Name: "a", Min: 1.0, Max: 2.0},
			{Name: "b", Min: 2.5, Max: 10.0},
		}, 10},
		{"overlap", models.CategorySet{
			{Name: "a", Min: 1.0, Max: 3.0},
			{Name: "b", Min: 2.0, Max: 10.0},
		}, 10},
		{"wrong start", models.CategorySet{
			{Name: "a", Min: 1.5, Max: 10.0},
		}, 10},
		{"short coverage", models.CategorySet{
			{Name: "a", Min: 1.0, Max: 8.0},
		}, 10},
	}
	for _, tc := range cases {
		if err := ValidateCategories(tc.cats, tc.max); err == nil {
			t.Fatalf("%s: expected validation failure", tc.name)
		}
	}

	if err := ValidateCategories(testCategories(), 50.0); err != nil {
		t.Fatalf("valid set rejected: %v", err)
	}
}
