package usecase

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"CrashCast/internal/domain/models"
	"CrashCast/internal/engine"
)

func testCategories() models.CategorySet {
	return models.CategorySet{
		{Name: "low", Min: 1.0, Max: 2.0, Color: "grey"},
		{Name: "medium", Min: 2.0, Max: 3.0, Color: "green"},
		{Name: "high", Min: 3.0, Max: 4.0, Color: "purple"},
		{Name: "extreme", Min: 4.0, Max: 10.0, Color: "yellow"},
		{Name: "moon", Min: 10.0, Max: 50.0, Color: "cyan"},
	}
}

func newTestForecaster(t *testing.T, mode models.DetectionMode, tick time.Duration) *Forecaster {
	t.Helper()

	detector, err := engine.NewDetector(mode)
	if err != nil {
		t.Fatalf("detector: %v", err)
	}
	entries := make(map[string]models.RuleEntry)
	for _, k := range detector.ReachableKeys() {
		entries[k] = models.RuleEntry{
			Bias:       2.0,
			Volatility: 0.5,
			CategoryWeights: map[string]float64{
				"low": 0.5, "medium": 0.3, "high": 0.1, "extreme": 0.07, "moon": 0.03,
			},
		}
	}
	table, err := engine.NewRuleTable(entries)
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	cats := testCategories()
	gen, err := engine.NewGenerator(cats, 50.0, nil)
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	cal, err := engine.NewCalibrator(detector, table, cats, 50.0, engine.CalibratorConfig{
		LearningRate: 0.1,
		WeightStep:   0.05,
		WeightFloor:  0.01,
	}, nil)
	if err != nil {
		t.Fatalf("calibrator: %v", err)
	}
	rng := rand.New(rand.NewSource(7))
	return NewForecaster(detector, table, gen, cal, NewEmitter(nil), nil, nil, tick, rng)
}

func TestTickEmitsConsistentEvent(t *testing.T) {
	f := newTestForecaster(t, models.DetectionMode{Hourly: true}, time.Second)

	var got []models.PredictionEvent
	f.Emitter().Subscribe(func(ev models.PredictionEvent) { got = append(got, ev) })

	now := time.Date(2026, 3, 12, 14, 5, 0, 0, time.UTC)
	ev, err := f.Tick(now)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if ev.Round != 1 {
		t.Fatalf("round = %d, want 1", ev.Round)
	}
	if ev.PhaseKey != "hourly:14" {
		t.Fatalf("phase key = %q", ev.PhaseKey)
	}
	if ev.Multiplier <= 1.0 || ev.Multiplier > 50.0 {
		t.Fatalf("multiplier %v out of domain", ev.Multiplier)
	}
	cat, ok := testCategories().ByName(ev.Category)
	if !ok || !cat.Contains(ev.Multiplier) {
		t.Fatalf("category %q does not contain %v", ev.Category, ev.Multiplier)
	}
	if len(got) != 1 || got[0].Round != 1 {
		t.Fatalf("subscriber saw %v", got)
	}
}

func TestRoundCounterIsSequential(t *testing.T) {
	f := newTestForecaster(t, models.DetectionMode{Hourly: true}, time.Second)

	now := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 10; i++ {
		ev, err := f.Tick(now.Add(time.Duration(i) * time.Second))
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		if ev.Round != i {
			t.Fatalf("round = %d, want %d", ev.Round, i)
		}
	}
	if st := f.State(); st.Round != 10 || st.LastEvent == nil {
		t.Fatalf("state = %+v", st)
	}
}

func TestCompositeModeBlendsPhaseEntries(t *testing.T) {
	mode := models.DetectionMode{Hourly: true, Quarterly: true, MinuteParity: true}
	f := newTestForecaster(t, mode, time.Second)

	// Skew one granularity and verify the blend moves with it.
	if err := f.table.Update("hourly:14", models.RuleEntry{
		Bias:       8.0,
		Volatility: 0.5,
		CategoryWeights: map[string]float64{
			"low": 0.5, "medium": 0.3, "high": 0.1, "extreme": 0.07, "moon": 0.03,
		},
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	key := f.detector.Detect(time.Date(2026, 3, 12, 14, 5, 0, 0, time.UTC))
	entry, err := f.resolve(key)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := (8.0 + 2.0 + 2.0) / 3.0
	if math.Abs(entry.Bias-want) > 1e-9 {
		t.Fatalf("blended bias = %v, want %v", entry.Bias, want)
	}
	if math.Abs(entry.Volatility-0.5) > 1e-9 {
		t.Fatalf("blended volatility = %v, want 0.5", entry.Volatility)
	}
	if math.Abs(entry.CategoryWeights["low"]-1.5) > 1e-9 {
		t.Fatalf("summed weight = %v, want 1.5", entry.CategoryWeights["low"])
	}
}

func TestOverrideEmitsAndCounts(t *testing.T) {
	f := newTestForecaster(t, models.DetectionMode{Hourly: true}, time.Second)

	var got []models.PredictionEvent
	f.Emitter().Subscribe(func(ev models.PredictionEvent) { got = append(got, ev) })

	ev, err := f.SubmitOverride(7.5)
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if ev.Source != models.SourceOverridden {
		t.Fatalf("source = %q", ev.Source)
	}
	if ev.Multiplier != 7.5 || ev.Category != "extreme" {
		t.Fatalf("event = %+v", ev)
	}
	if len(got) != 1 {
		t.Fatalf("subscriber saw %d events", len(got))
	}

	if _, err := f.SubmitOverride(1.0); err == nil {
		t.Fatalf("override at lower bound accepted")
	}
	if _, err := f.SubmitOverride(51.0); err == nil {
		t.Fatalf("override above max accepted")
	}
	if st := f.State(); st.Round != 1 {
		t.Fatalf("rejected overrides advanced the round counter: %d", st.Round)
	}
}

func TestFeedbackAdjustsActivePhase(t *testing.T) {
	f := newTestForecaster(t, models.DetectionMode{Hourly: true}, time.Second)

	ts := time.Date(2026, 3, 12, 14, 10, 0, 0, time.UTC)
	if err := f.SubmitFeedback(models.FeedbackSample{Timestamp: ts, ObservedMultiplier: 3.0}); err != nil {
		t.Fatalf("feedback: %v", err)
	}
	e, err := f.table.Lookup("hourly:14")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	want := 2.0 + 0.1*(3.0-2.0)
	if math.Abs(e.Bias-want) > 1e-9 {
		t.Fatalf("bias = %v, want %v", e.Bias, want)
	}
	if f.Calibrations("hourly:14") != 1 {
		t.Fatalf("calibration count = %d", f.Calibrations("hourly:14"))
	}

	err = f.SubmitFeedback(models.FeedbackSample{Timestamp: ts, ObservedMultiplier: 0.5})
	if err == nil {
		t.Fatalf("invalid observation accepted")
	}
	if st := f.Stats(); st.FeedbackCount != 1 {
		t.Fatalf("feedback count = %d, want 1", st.FeedbackCount)
	}
}

func TestSessionStatsAccumulate(t *testing.T) {
	f := newTestForecaster(t, models.DetectionMode{Hourly: true}, time.Second)

	now := time.Date(2026, 3, 12, 20, 0, 0, 0, time.UTC)
	sum, min, max := 0.0, math.Inf(1), 0.0
	for i := 0; i < 50; i++ {
		ev, err := f.Tick(now.Add(time.Duration(i) * time.Second))
		if err != nil {
			t.Fatalf("tick: %v", err)
		}
		sum += ev.Multiplier
		if ev.Multiplier < min {
			min = ev.Multiplier
		}
		if ev.Multiplier > max {
			max = ev.Multiplier
		}
	}

	st := f.Stats()
	if st.TotalRounds != 50 {
		t.Fatalf("total = %d", st.TotalRounds)
	}
	if math.Abs(st.AvgMultiplier-sum/50.0) > 1e-9 {
		t.Fatalf("avg = %v, want %v", st.AvgMultiplier, sum/50.0)
	}
	if st.MinMultiplier != min || st.MaxMultiplier != max {
		t.Fatalf("min/max = %v/%v, want %v/%v", st.MinMultiplier, st.MaxMultiplier, min, max)
	}
	var n int64
	for _, c := range st.CategoryCounts {
		n += c
	}
	if n != 50 {
		t.Fatalf("category counts sum to %d", n)
	}
}

func TestStopWaitsForLoop(t *testing.T) {
	f := newTestForecaster(t, models.DetectionMode{Hourly: true}, 5*time.Millisecond)

	events := make(chan models.PredictionEvent, 256)
	f.Emitter().Subscribe(func(ev models.PredictionEvent) { events <- ev })

	f.Start(context.Background())
	deadline := time.After(2 * time.Second)
	select {
	case <-events:
	case <-deadline:
		t.Fatalf("no event emitted before deadline")
	}
	f.Stop()

	// Drain whatever was in flight, then confirm silence.
	for len(events) > 0 {
		<-events
	}
	time.Sleep(30 * time.Millisecond)
	if len(events) != 0 {
		t.Fatalf("event emitted after Stop returned")
	}
	if st := f.State(); st.Running {
		t.Fatalf("state still running after Stop")
	}
}

func TestPauseSuppressesEmission(t *testing.T) {
	f := newTestForecaster(t, models.DetectionMode{Hourly: true}, 5*time.Millisecond)

	events := make(chan models.PredictionEvent, 256)
	f.Emitter().Subscribe(func(ev models.PredictionEvent) { events <- ev })

	f.Start(context.Background())
	defer f.Stop()

	select {
	case <-events:
	case <-time.After(2 * time.Second):
		t.Fatalf("no event before pause")
	}

	f.Pause()
	time.Sleep(15 * time.Millisecond)
	for len(events) > 0 {
		<-events
	}
	time.Sleep(50 * time.Millisecond)
	if len(events) != 0 {
		t.Fatalf("emission continued while paused")
	}

	f.Resume()
	select {
	case <-events:
	case <-time.After(2 * time.Second):
		t.Fatalf("no event after resume")
	}
}

func TestRulesAdminPassthrough(t *testing.T) {
	f := newTestForecaster(t, models.DetectionMode{Hourly: true}, time.Second)

	snap := f.SnapshotRules()
	if len(snap.Entries) != 24 {
		t.Fatalf("snapshot has %d entries", len(snap.Entries))
	}

	ts := time.Date(2026, 3, 12, 14, 10, 0, 0, time.UTC)
	if err := f.SubmitFeedback(models.FeedbackSample{Timestamp: ts, ObservedMultiplier: 5.0}); err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if err := f.RestoreRules(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	e, _ := f.table.Lookup("hourly:14")
	if e.Bias != 2.0 {
		t.Fatalf("restore did not revert bias: %v", e.Bias)
	}

	if err := f.SubmitFeedback(models.FeedbackSample{Timestamp: ts, ObservedMultiplier: 5.0}); err != nil {
		t.Fatalf("feedback: %v", err)
	}
	f.ResetRules()
	e, _ = f.table.Lookup("hourly:14")
	if e.Bias != 2.0 {
		t.Fatalf("reset did not revert bias: %v", e.Bias)
	}
	if f.Calibrations("hourly:14") != 0 {
		t.Fatalf("reset did not clear calibration count")
	}
}
