package repository

import (
	"context"
	"time"

	"CrashCast/internal/domain/models"
)

// EventPublisher pushes prediction events to an external broker.
type EventPublisher interface {
	Publish(ctx context.Context, ev models.PredictionEvent) error
	Close() error
}

// HistoryStore persists emitted events and serves history queries.
type HistoryStore interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, ev models.PredictionEvent) error
	Query(ctx context.Context, from, to time.Time, category string, limit int) ([]models.PredictionEvent, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics records operational counters for the forecasting loop.
type Metrics interface {
	RecordRound(source, category string)
	RecordFeedback(result string)
	RecordError(kind string)
	RecordLastMultiplier(v float64)
	RecordRuleBias(phase string, bias float64)
	RecordLatency(op string, seconds float64)
}

// NopMetrics discards all recordings; handy default for tests.
type NopMetrics struct{}

func (NopMetrics) RecordRound(string, string)      {}
func (NopMetrics) RecordFeedback(string)           {}
func (NopMetrics) RecordError(string)              {}
func (NopMetrics) RecordLastMultiplier(float64)    {}
func (NopMetrics) RecordRuleBias(string, float64)  {}
func (NopMetrics) RecordLatency(string, float64)   {}
