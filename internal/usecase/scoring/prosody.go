package scoring

import (
	"github.com/chemicheck/chemicheck/internal/domain/entities"
)

// SummarizeProsody aggregates the raw per-sample RMS and pitch measurements
// captured during a recording into the summary the scorer consumes. It is
// called once per session, after recording stops. Pitch fields stay nil
// unless at least one sample carried pitch data.
func SummarizeProsody(samples []entities.ProsodySample) entities.ProsodySummary {
	if len(samples) == 0 {
		return entities.ProsodySummary{}
	}

	var sum float64
	for _, s := range samples {
		sum += s.RMS
	}
	mean := sum / float64(len(samples))

	var varSum float64
	for _, s := range samples {
		d := s.RMS - mean
		varSum += d * d
	}
	variance := varSum / float64(len(samples))

	summary := entities.ProsodySummary{
		AvgRMS:      mean,
		RMSVariance: variance,
	}

	var pitchSum, pitchMin, pitchMax float64
	pitchCount := 0
	for _, s := range samples {
		if s.Pitch == nil {
			continue
		}
		p := *s.Pitch
		if pitchCount == 0 {
			pitchMin, pitchMax = p, p
		} else {
			if p < pitchMin {
				pitchMin = p
			}
			if p > pitchMax {
				pitchMax = p
			}
		}
		pitchSum += p
		pitchCount++
	}
	if pitchCount > 0 {
		avgPitch := pitchSum / float64(pitchCount)
		pitchRange := pitchMax - pitchMin
		summary.AvgPitch = &avgPitch
		summary.PitchRange = &pitchRange
	}

	return summary
}
