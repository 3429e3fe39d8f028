package models

// HTTP request bodies. Validation tags are enforced by pkg/http
// ReadAndValidateRequest (go-playground/validator + creasty/defaults).

// FeedbackRequest carries an operator observation. Timestamp is optional;
// empty means "now".
type FeedbackRequest struct {
	Timestamp          string  `json:"timestamp"`
	ObservedMultiplier float64 `json:"observed_multiplier" validate:"required,gt=1"`
}

// OverrideRequest submits a manual multiplier, bypassing generation.
type OverrideRequest struct {
	Multiplier float64 `json:"multiplier" validate:"required,gt=1"`
}

// ControlRequest drives the forecaster lifecycle.
type ControlRequest struct {
	Action string `json:"action" validate:"required,oneof=start stop pause resume"`
}

// RestoreRequest replaces the Rule Table with a previously taken snapshot.
type RestoreRequest struct {
	Snapshot RuleSnapshot `json:"snapshot" validate:"required"`
}

// HistoryRequest filters the stored event history.
type HistoryRequest struct {
	From     string `query:"from" json:"from"`
	To       string `query:"to" json:"to"`
	Category string `query:"category" json:"category"`
	Limit    int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=10000"`
}
