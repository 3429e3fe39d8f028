package engine

import (
	"time"

	"CrashCast/internal/domain/models"
)

// Detector maps a timestamp to the set of phases active under the
// configured detection mode. Pure and deterministic: the same timestamp and
// mode always produce the same composite key.
type Detector struct {
	mode models.DetectionMode
}

// NewDetector builds a detector. At least one granularity must be active.
func NewDetector(mode models.DetectionMode) (*Detector, error) {
	if !mode.Enabled() {
		return nil, configErrorf("detection mode: no granularity enabled")
	}
	return &Detector{mode: mode}, nil
}

// Mode returns the active detection mode.
func (d *Detector) Mode() models.DetectionMode {
	return d.mode
}

// Detect classifies t into every active granularity. Buckets are
// left-closed intervals: an instant on a boundary (minute 15, second 0)
// belongs to the bucket that starts there. Bucket values are bounded by
// construction (hour 0-23, quarter 0-3, parity even/odd), so every emitted
// phase key is resolvable in a fully built rule table.
func (d *Detector) Detect(t time.Time) models.PhaseKey {
	phases := make([]models.Phase, 0, 3)
	if d.mode.Hourly {
		phases = append(phases, models.Hourly(t.Hour()))
	}
	if d.mode.Quarterly {
		phases = append(phases, models.Quarterly(t.Minute()/15))
	}
	if d.mode.MinuteParity {
		parity := models.ParityEven
		if t.Minute()%2 == 1 {
			parity = models.ParityOdd
		}
		phases = append(phases, models.MinuteParity(parity))
	}
	return models.PhaseKey{Phases: phases}
}

// ReachableKeys enumerates every phase key the detector can emit, used to
// verify full table coverage at startup.
func (d *Detector) ReachableKeys() []string {
	var keys []string
	if d.mode.Hourly {
		for h := 0; h < 24; h++ {
			keys = append(keys, models.Hourly(h).Key())
		}
	}
	if d.mode.Quarterly {
		for q := 0; q < 4; q++ {
			keys = append(keys, models.Quarterly(q).Key())
		}
	}
	if d.mode.MinuteParity {
		keys = append(keys, models.MinuteParity(models.ParityEven).Key())
		keys = append(keys, models.MinuteParity(models.ParityOdd).Key())
	}
	return keys
}
