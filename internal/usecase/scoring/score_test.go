package scoring

import (
	"math"
	"testing"

	"github.com/chemicheck/chemicheck/internal/domain/entities"
)

func baseInputs() (entities.EmotionAnalysis, entities.ConversationAnalysis, entities.ProsodySummary) {
	emotion := entities.EmotionAnalysis{Valence: 0.4, Arousal: 0.6}
	conversation := entities.ConversationAnalysis{
		Rapport:           0.75,
		TurnTakingBalance: 0.45,
		Empathy:           0.65,
		RedFlags:          []string{},
	}
	prosody := entities.ProsodySummary{AvgRMS: 0.3, RMSVariance: 0.1}
	return emotion, conversation, prosody
}

func TestComputeMatchScore_HappyPath(t *testing.T) {
	emotion, conversation, prosody := baseInputs()
	got := ComputeMatchScore(emotion, conversation, prosody)

	// Recomputed from the formula:
	// text    = 0.5*((0.4+1)/2) + 0.5*0.75            = 0.725
	// health  = 0.5*min(0.3*2,1) + 0.3*min(0.1*5,1) + 0.2*0.5 = 0.55
	// voice   = 0.7*0.55 + 0.3*0.6                    = 0.565
	// balance = 1 - 2*|0.45-0.5|                      = 0.90
	// total   = 0.45*0.725 + 0.35*0.565 + 0.20*0.90   = 0.704
	if got.Score != 70 {
		t.Fatalf("expected score 70, got %d", got.Score)
	}
	text := 0.5*((emotion.Valence+1)/2) + 0.5*conversation.Rapport
	if got.Breakdown.Text != int(math.Round(text*100)) {
		t.Fatalf("unexpected text sub-score %d", got.Breakdown.Text)
	}
	health := 0.5*math.Min(prosody.AvgRMS*2, 1) + 0.3*math.Min(prosody.RMSVariance*5, 1) + 0.2*0.5
	voice := 0.7*health + 0.3*emotion.Arousal
	if got.Breakdown.Voice != int(math.Round(voice*100)) {
		t.Fatalf("unexpected voice sub-score %d", got.Breakdown.Voice)
	}
	if got.Breakdown.Balance != 90 {
		t.Fatalf("expected balance 90, got %d", got.Breakdown.Balance)
	}
}

func TestComputeMatchScore_Deterministic(t *testing.T) {
	emotion, conversation, prosody := baseInputs()
	first := ComputeMatchScore(emotion, conversation, prosody)
	for i := 0; i < 100; i++ {
		if got := ComputeMatchScore(emotion, conversation, prosody); got != first {
			t.Fatalf("call %d: %+v != %+v", i, got, first)
		}
	}
}

func TestComputeMatchScore_BalanceSymmetry(t *testing.T) {
	emotion, conversation, prosody := baseInputs()

	conversation.TurnTakingBalance = 0.5
	peak := ComputeMatchScore(emotion, conversation, prosody)
	if peak.Breakdown.Balance != 100 {
		t.Fatalf("expected peak balance 100 at 0.5, got %d", peak.Breakdown.Balance)
	}

	conversation.TurnTakingBalance = 0.0
	atZero := ComputeMatchScore(emotion, conversation, prosody)
	conversation.TurnTakingBalance = 1.0
	atOne := ComputeMatchScore(emotion, conversation, prosody)
	if atZero.Breakdown.Balance != 0 || atOne.Breakdown.Balance != 0 {
		t.Fatalf("expected 0 at both extremes, got %d and %d",
			atZero.Breakdown.Balance, atOne.Breakdown.Balance)
	}

	prev := 101
	for _, balance := range []float64{0.5, 0.6, 0.7, 0.8, 0.9, 1.0} {
		conversation.TurnTakingBalance = balance
		got := ComputeMatchScore(emotion, conversation, prosody).Breakdown.Balance
		if got >= prev {
			t.Fatalf("balance sub-score must strictly decrease away from 0.5: %d then %d", prev, got)
		}
		prev = got
	}
}

func TestComputeMatchScore_RedFlagPenaltyCap(t *testing.T) {
	emotion, conversation, prosody := baseInputs()

	flags := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = "flag"
		}
		return out
	}

	conversation.RedFlags = flags(4)
	atCap := ComputeMatchScore(emotion, conversation, prosody)
	conversation.RedFlags = flags(10)
	beyondCap := ComputeMatchScore(emotion, conversation, prosody)

	if atCap.Score != beyondCap.Score {
		t.Fatalf("penalty must cap at 4 flags: %d vs %d", atCap.Score, beyondCap.Score)
	}

	conversation.RedFlags = nil
	clean := ComputeMatchScore(emotion, conversation, prosody)
	if clean.Score-atCap.Score != 20 {
		t.Fatalf("expected a 20 point cap, got %d", clean.Score-atCap.Score)
	}
	if clean.Breakdown != atCap.Breakdown {
		t.Fatal("breakdown must not reflect the penalty")
	}
}

func TestComputeMatchScore_NeverNegative(t *testing.T) {
	emotion := entities.EmotionAnalysis{Valence: -1, Arousal: 0}
	conversation := entities.ConversationAnalysis{
		Rapport:           0,
		TurnTakingBalance: 1,
		RedFlags:          []string{"a", "b", "c", "d", "e"},
	}
	prosody := entities.ProsodySummary{}

	got := ComputeMatchScore(emotion, conversation, prosody)
	if got.Score < 0 {
		t.Fatalf("score must never be negative, got %d", got.Score)
	}
}

func TestComputeMatchScore_PitchFallback(t *testing.T) {
	emotion, conversation, prosody := baseInputs()

	neutral := ComputeMatchScore(emotion, conversation, prosody)

	avgPitch, pitchRange := 180.0, 100.0
	prosody.AvgPitch = &avgPitch
	prosody.PitchRange = &pitchRange
	withPitch := ComputeMatchScore(emotion, conversation, prosody)

	// A full 100 Hz range scores 1.0 against the neutral 0.5, lifting the
	// voice sub-score.
	if withPitch.Breakdown.Voice <= neutral.Breakdown.Voice {
		t.Fatalf("expected pitch data to raise voice sub-score: %d vs %d",
			withPitch.Breakdown.Voice, neutral.Breakdown.Voice)
	}
}

func TestSummarizeProsody(t *testing.T) {
	pitch := func(v float64) *float64 { return &v }
	samples := []entities.ProsodySample{
		{T: 0, RMS: 0.2, Pitch: pitch(150)},
		{T: 1, RMS: 0.4, Pitch: pitch(250)},
		{T: 2, RMS: 0.3},
	}

	got := SummarizeProsody(samples)
	if math.Abs(got.AvgRMS-0.3) > 1e-9 {
		t.Fatalf("expected avg RMS 0.3, got %v", got.AvgRMS)
	}
	wantVar := ((0.2-0.3)*(0.2-0.3) + (0.4-0.3)*(0.4-0.3) + 0) / 3
	if math.Abs(got.RMSVariance-wantVar) > 1e-9 {
		t.Fatalf("expected variance %v, got %v", wantVar, got.RMSVariance)
	}
	if got.AvgPitch == nil || math.Abs(*got.AvgPitch-200) > 1e-9 {
		t.Fatalf("expected avg pitch 200, got %v", got.AvgPitch)
	}
	if got.PitchRange == nil || math.Abs(*got.PitchRange-100) > 1e-9 {
		t.Fatalf("expected pitch range 100, got %v", got.PitchRange)
	}
}

func TestSummarizeProsody_NoPitchData(t *testing.T) {
	samples := []entities.ProsodySample{{RMS: 0.2}, {RMS: 0.4}}
	got := SummarizeProsody(samples)
	if got.AvgPitch != nil || got.PitchRange != nil {
		t.Fatal("pitch fields must stay nil without pitch samples")
	}
}

func TestSummarizeProsody_Empty(t *testing.T) {
	got := SummarizeProsody(nil)
	if got.AvgRMS != 0 || got.RMSVariance != 0 || got.AvgPitch != nil {
		t.Fatalf("expected zero summary, got %+v", got)
	}
}

func TestDemoOutcome(t *testing.T) {
	outcome := DemoOutcome()
	if !outcome.IsFallback() {
		t.Fatal("demo outcome must be tagged as fallback")
	}
	if outcome.Match.Score != 73 {
		t.Fatalf("expected demo score 73, got %d", outcome.Match.Score)
	}
	if len(outcome.Feedback.Tips) != 3 {
		t.Fatalf("expected exactly 3 tips, got %d", len(outcome.Feedback.Tips))
	}
	if len(outcome.Conversation.RedFlags) != 0 {
		t.Fatal("demo conversation must carry no red flags")
	}
}
