package models

import "time"

// Event sources.
const (
	SourceGenerated  = "generated"
	SourceOverridden = "overridden"
)

// PredictionEvent is the unit flowing through the emission channel.
// Immutable after creation.
type PredictionEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	Round      int64     `json:"round"`
	PhaseKey   string    `json:"phase_key"`
	Multiplier float64   `json:"multiplier"`
	Category   string    `json:"category"`
	Color      string    `json:"color"`
	CrashTime  time.Time `json:"crash_time"`
	Source     string    `json:"source"`
}

// FeedbackSample is an operator-supplied observation of a real multiplier.
// Consumed once by the calibrator, never retained by the core.
type FeedbackSample struct {
	Timestamp          time.Time `json:"timestamp"`
	ObservedMultiplier float64   `json:"observed_multiplier"`
}

// SessionStats aggregates the emitted events of the current session.
type SessionStats struct {
	TotalRounds    int64            `json:"total_rounds"`
	FeedbackCount  int64            `json:"feedback_count"`
	AvgMultiplier  float64          `json:"avg_multiplier"`
	MinMultiplier  float64          `json:"min_multiplier"`
	MaxMultiplier  float64          `json:"max_multiplier"`
	CategoryCounts map[string]int64 `json:"category_counts"`
}

// EngineState describes the forecaster loop for status endpoints.
type EngineState struct {
	Running   bool             `json:"running"`
	Paused    bool             `json:"paused"`
	Round     int64            `json:"round"`
	LastEvent *PredictionEvent `json:"last_event,omitempty"`
}
