package usecase

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"CrashCast/internal/domain/models"
	drepo "CrashCast/internal/domain/repository"
	"CrashCast/internal/engine"
	"CrashCast/pkg/logger"
)

// Forecaster drives the prediction loop: on every tick it detects the
// current phase, resolves the rule table, generates one event and emits it.
// Feedback, overrides and rule-table administration all pass through the
// same instance, so the rule table is only ever touched via its serialized
// interface.
type Forecaster struct {
	detector *engine.Detector
	table    *engine.RuleTable
	gen      *engine.Generator
	cal      *engine.Calibrator
	emitter  *Emitter
	metrics  drepo.Metrics
	log      *logger.Logger
	tick     time.Duration
	rng      *rand.Rand

	mu      sync.Mutex
	running bool
	paused  bool
	round   int64
	last    *models.PredictionEvent
	stats   statsAccumulator
	cancel  context.CancelFunc
	done    chan struct{}
}

type statsAccumulator struct {
	total     int64
	feedback  int64
	sum       float64
	min       float64
	max       float64
	byCat     map[string]int64
}

// NewForecaster wires the core components together. The RNG is injected so
// tests can seed it; metrics and logger may be nil.
func NewForecaster(
	detector *engine.Detector,
	table *engine.RuleTable,
	gen *engine.Generator,
	cal *engine.Calibrator,
	emitter *Emitter,
	metrics drepo.Metrics,
	log *logger.Logger,
	tick time.Duration,
	rng *rand.Rand,
) *Forecaster {
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Forecaster{
		detector: detector,
		table:    table,
		gen:      gen,
		cal:      cal,
		emitter:  emitter,
		metrics:  metrics,
		log:      log,
		tick:     tick,
		rng:      rng,
		stats:    statsAccumulator{byCat: make(map[string]int64)},
	}
}

// Emitter exposes the emission channel for subscriber wiring.
func (f *Forecaster) Emitter() *Emitter {
	return f.emitter
}

// Start launches the tick loop. Idempotent while running.
func (f *Forecaster) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	f.running = true
	f.paused = false
	f.cancel = cancel
	f.done = make(chan struct{})
	go f.loop(loopCtx, f.done)

	if f.log != nil {
		f.log.Info("forecaster started", logger.Duration("tick_ms", f.tick))
	}
}

// Stop halts the loop cooperatively and waits for it to drain. No event is
// emitted after Stop returns.
func (f *Forecaster) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	cancel, done := f.cancel, f.done
	f.mu.Unlock()

	cancel()
	<-done

	if f.log != nil {
		f.log.Info("forecaster stopped")
	}
}

// Pause suspends tick emission without tearing down the loop.
func (f *Forecaster) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
}

// Resume re-enables tick emission.
func (f *Forecaster) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = false
}

func (f *Forecaster) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(f.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			f.mu.Lock()
			skip := f.paused || !f.running
			f.mu.Unlock()
			if skip {
				continue
			}
			if _, err := f.Tick(now); err != nil {
				f.metrics.RecordError("tick")
				if f.log != nil {
					f.log.Error("tick failed", logger.Error(err))
				}
			}
		}
	}
}

// Tick generates and emits one prediction event for the given instant.
// Exported so tests and manual stepping can drive the loop directly.
func (f *Forecaster) Tick(now time.Time) (models.PredictionEvent, error) {
	start := time.Now()
	key := f.detector.Detect(now)

	entry, err := f.resolve(key)
	if err != nil {
		return models.PredictionEvent{}, err
	}

	f.mu.Lock()
	ev := f.gen.Generate(now, key, entry, f.rng)
	f.round++
	ev.Round = f.round
	f.record(ev)
	f.mu.Unlock()

	f.metrics.RecordRound(ev.Source, ev.Category)
	f.metrics.RecordLastMultiplier(ev.Multiplier)
	f.metrics.RecordLatency("tick", time.Since(start).Seconds())

	f.emitter.Emit(ev)

	if f.log != nil {
		f.log.Debug("round emitted",
			logger.Int64("round", ev.Round),
			logger.Float64("multiplier", ev.Multiplier),
			logger.String("category", ev.Category),
			logger.String("phase", ev.PhaseKey),
		)
	}
	return ev, nil
}

// resolve looks up every active phase and blends the entries into one
// effective rule: mean bias and volatility, summed category weights. With a
// single active granularity this is the entry itself.
func (f *Forecaster) resolve(key models.PhaseKey) (models.RuleEntry, error) {
	combined := models.RuleEntry{CategoryWeights: make(map[string]float64)}
	n := 0
	for _, p := range key.Phases {
		e, err := f.table.Lookup(p.Key())
		if err != nil {
			return models.RuleEntry{}, err
		}
		combined.Bias += e.Bias
		combined.Volatility += e.Volatility
		for cat, w := range e.CategoryWeights {
			combined.CategoryWeights[cat] += w
		}
		n++
	}
	if n > 1 {
		combined.Bias /= float64(n)
		combined.Volatility /= float64(n)
	}
	return combined, nil
}

// SubmitFeedback validates and applies one operator observation.
func (f *Forecaster) SubmitFeedback(fb models.FeedbackSample) error {
	start := time.Now()
	if err := f.cal.Calibrate(fb); err != nil {
		f.metrics.RecordFeedback("rejected")
		if f.log != nil {
			f.log.Warn("feedback rejected", logger.Error(err), logger.Float64("observed", fb.ObservedMultiplier))
		}
		return err
	}

	f.mu.Lock()
	f.stats.feedback++
	f.mu.Unlock()

	f.metrics.RecordFeedback("accepted")
	f.metrics.RecordLatency("calibrate", time.Since(start).Seconds())
	for _, p := range f.detector.Detect(fb.Timestamp).Phases {
		if e, err := f.table.Lookup(p.Key()); err == nil {
			f.metrics.RecordRuleBias(p.Key(), e.Bias)
		}
	}
	return nil
}

// SubmitOverride emits a manually supplied multiplier, bypassing
// generation. The event is stamped with the submission time.
func (f *Forecaster) SubmitOverride(multiplier float64) (models.PredictionEvent, error) {
	now := time.Now()
	key := f.detector.Detect(now)

	f.mu.Lock()
	ev, err := f.gen.Override(now, key, multiplier, f.rng)
	if err != nil {
		f.mu.Unlock()
		f.metrics.RecordError("override")
		return models.PredictionEvent{}, err
	}
	f.round++
	ev.Round = f.round
	f.record(ev)
	f.mu.Unlock()

	f.metrics.RecordRound(ev.Source, ev.Category)
	f.metrics.RecordLastMultiplier(ev.Multiplier)

	f.emitter.Emit(ev)
	return ev, nil
}

// record updates last-event and session stats. Caller holds f.mu.
func (f *Forecaster) record(ev models.PredictionEvent) {
	evCopy := ev
	f.last = &evCopy

	s := &f.stats
	s.total++
	s.sum += ev.Multiplier
	if s.total == 1 || ev.Multiplier < s.min {
		s.min = ev.Multiplier
	}
	if ev.Multiplier > s.max {
		s.max = ev.Multiplier
	}
	s.byCat[ev.Category]++
}

// ResetRules restores configuration defaults.
func (f *Forecaster) ResetRules() {
	f.table.Reset()
	if f.log != nil {
		f.log.Info("rule table reset to defaults")
	}
}

// SnapshotRules captures the current rule table.
func (f *Forecaster) SnapshotRules() models.RuleSnapshot {
	return f.table.Snapshot()
}

// RestoreRules replaces the rule table with a snapshot.
func (f *Forecaster) RestoreRules(s models.RuleSnapshot) error {
	return f.table.Restore(s)
}

// Rules returns a copy of the current rule table entries.
func (f *Forecaster) Rules() map[string]models.RuleEntry {
	return f.table.Entries()
}

// Calibrations reports absorbed feedback per phase key.
func (f *Forecaster) Calibrations(key string) int {
	return f.table.Calibrations(key)
}

// Stats returns session statistics over all emitted events.
func (f *Forecaster) Stats() models.SessionStats {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := models.SessionStats{
		TotalRounds:    f.stats.total,
		FeedbackCount:  f.stats.feedback,
		MinMultiplier:  f.stats.min,
		MaxMultiplier:  f.stats.max,
		CategoryCounts: make(map[string]int64, len(f.stats.byCat)),
	}
	if f.stats.total > 0 {
		out.AvgMultiplier = f.stats.sum / float64(f.stats.total)
	}
	for k, v := range f.stats.byCat {
		out.CategoryCounts[k] = v
	}
	return out
}

// State reports the loop status for the API.
func (f *Forecaster) State() models.EngineState {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := models.EngineState{Running: f.running, Paused: f.paused, Round: f.round}
	if f.last != nil {
		evCopy := *f.last
		st.LastEvent = &evCopy
	}
	return st
}
