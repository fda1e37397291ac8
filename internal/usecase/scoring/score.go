// Package scoring turns the provider analyses and a local prosody summary
// into the composite 0-100 match score. Everything here is pure computation
// with no I/O and no failure modes.
package scoring

import (
	"math"

	"github.com/chemicheck/chemicheck/internal/domain/entities"
)

// Sub-score weights and the red-flag penalty are fixed product constants.
const (
	textWeight    = 0.45
	voiceWeight   = 0.35
	balanceWeight = 0.20

	redFlagPenalty = 0.05
	maxPenalty     = 0.20
)

// ComputeMatchScore combines emotion, conversation and prosody signals into
// a match score. The computation is deterministic: identical inputs always
// produce an identical result. Inputs outside their documented ranges are
// not clamped; only the final score is rounded and floored at zero.
func ComputeMatchScore(emotion entities.EmotionAnalysis, conversation entities.ConversationAnalysis, prosody entities.ProsodySummary) entities.MatchScore {
	// Valence arrives in [-1,1]; rapport already sits in [0,1].
	normalizedValence := (emotion.Valence + 1) / 2
	textScore := 0.5*normalizedValence + 0.5*conversation.Rapport

	prosodyHealth := assessProsodyHealth(prosody)
	voiceScore := 0.7*prosodyHealth + 0.3*emotion.Arousal

	// Peaks at 1.0 for a perfect 50:50 split, linear to 0 at either extreme.
	balanceScore := 1 - 2*math.Abs(conversation.TurnTakingBalance-0.5)

	total := textWeight*textScore + voiceWeight*voiceScore + balanceWeight*balanceScore

	penalty := math.Min(float64(len(conversation.RedFlags))*redFlagPenalty, maxPenalty)
	adjusted := math.Max(0, total-penalty)

	// Breakdown reflects the raw sub-scores; only the top-level score
	// carries the penalty.
	return entities.MatchScore{
		Score: int(math.Round(adjusted * 100)),
		Breakdown: entities.ScoreBreakdown{
			Text:    int(math.Round(textScore * 100)),
			Voice:   int(math.Round(voiceScore * 100)),
			Balance: int(math.Round(balanceScore * 100)),
		},
	}
}

// assessProsodyHealth blends volume, dynamics and pitch range into a single
// [0,1] vocal vitality signal.
func assessProsodyHealth(summary entities.ProsodySummary) float64 {
	// avgRMS of 0.5 is treated as ideal loudness.
	volumeScore := math.Min(summary.AvgRMS*2, 1)

	// Rewards dynamic, non-monotonic speech.
	varianceScore := math.Min(summary.RMSVariance*5, 1)

	// A 100 Hz pitch range is treated as ideal. Neutral when the capture
	// produced no pitch data.
	pitchScore := 0.5
	if summary.PitchRange != nil && summary.AvgPitch != nil {
		pitchScore = math.Min(*summary.PitchRange/100, 1)
	}

	return 0.5*volumeScore + 0.3*varianceScore + 0.2*pitchScore
}
