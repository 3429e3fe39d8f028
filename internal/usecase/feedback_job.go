package usecase

import (
	"context"
	"fmt"

	"CrashCast/internal/domain/models"
	"CrashCast/pkg/queue"
)

// FeedbackMessageType is the queue message type carrying feedback samples.
const FeedbackMessageType = "feedback.submitted"

// FeedbackJob consumes queued operator feedback and applies it to the
// calibrator. Used when feedback arrives asynchronously through Redis
// instead of the HTTP intake.
type FeedbackJob struct {
	fc *Forecaster
}

// NewFeedbackJob creates the queue job bound to a forecaster.
func NewFeedbackJob(fc *Forecaster) *FeedbackJob {
	return &FeedbackJob{fc: fc}
}

func (j *FeedbackJob) Name() string { return "feedback-calibration" }

func (j *FeedbackJob) Type() string { return FeedbackMessageType }

func (j *FeedbackJob) Handle(_ context.Context, payload interface{}) error {
	fb, err := queue.ParsePayload[models.FeedbackSample](payload)
	if err != nil {
		return fmt.Errorf("parse feedback payload: %w", err)
	}
	return j.fc.SubmitFeedback(*fb)
}
