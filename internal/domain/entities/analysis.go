package entities

// TranscriptSegment is one utterance captured during a conversation session.
// Timestamps are seconds relative to the start of the recording.
type TranscriptSegment struct {
	T0      float64 `json:"t0"`
	T1      float64 `json:"t1"`
	Text    string  `json:"text"`
	Speaker Speaker `json:"speaker,omitempty"`
}

// Speaker identifies which party produced a transcript segment.
type Speaker string

const (
	SpeakerMe      Speaker = "me"
	SpeakerPartner Speaker = "partner"
)

// ProsodySample is one raw audio-energy measurement taken while recording.
type ProsodySample struct {
	T     float64  `json:"t"`
	RMS   float64  `json:"rms"`
	Pitch *float64 `json:"pitch,omitempty"`
}

// ProsodySummary aggregates the raw prosody samples of a session. It is
// computed once after recording stops. AvgPitch and PitchRange are nil when
// the capture produced no pitch data.
type ProsodySummary struct {
	AvgRMS      float64  `json:"avg_rms"`
	RMSVariance float64  `json:"rms_variance"`
	AvgPitch    *float64 `json:"avg_pitch,omitempty"`
	PitchRange  *float64 `json:"pitch_range,omitempty"`
}

// EmotionLabel is a single labeled emotion with its confidence.
type EmotionLabel struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// EmotionAnalysis is the provider's emotional read of the conversation.
// Valence ranges over [-1,1], arousal over [0,1]. Immutable once received.
type EmotionAnalysis struct {
	Valence  float64        `json:"valence"`
	Arousal  float64        `json:"arousal"`
	Emotions []EmotionLabel `json:"emotions"`
	Evidence []string       `json:"evidence,omitempty"`
}

// ConversationAnalysis is the provider's read of conversational quality.
// TurnTakingBalance of 0.5 means perfectly balanced speaking time.
type ConversationAnalysis struct {
	Rapport           float64  `json:"rapport"`
	TurnTakingBalance float64  `json:"turnTakingBalance"`
	Empathy           float64  `json:"empathy"`
	RedFlags          []string `json:"redFlags"`
	Highlights        []string `json:"highlights"`
}

// ScoreBreakdown holds the three sub-scores of a match score, each in
// [0,100]. The breakdown reflects the raw sub-scores before the red-flag
// penalty; only the top-level score includes the penalty.
type ScoreBreakdown struct {
	Text    int `json:"text"`
	Voice   int `json:"voice"`
	Balance int `json:"balance"`
}

// MatchScore is the composite 0-100 score for a conversation. Never mutated
// after creation; a new one replaces it.
type MatchScore struct {
	Score     int            `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// Feedback is the coaching output generated from the full analysis.
// Tips is expected to hold exactly three entries.
type Feedback struct {
	Summary string   `json:"summary"`
	Tips    []string `json:"tips"`
}

// ResultSource records whether an analysis outcome came from the provider
// or from the demo fallback set.
type ResultSource string

const (
	ResultSourceLive     ResultSource = "live"
	ResultSourceFallback ResultSource = "fallback"
)

// AnalysisOutcome bundles the four per-session results with their
// provenance. Fallback outcomes carry the fixed demo result set.
type AnalysisOutcome struct {
	Source       ResultSource         `json:"source"`
	Emotion      EmotionAnalysis      `json:"emotion"`
	Conversation ConversationAnalysis `json:"conversation"`
	Match        MatchScore           `json:"match"`
	Feedback     Feedback             `json:"feedback"`
}

// IsFallback reports whether the outcome is demo data substituted after a
// provider failure.
func (o *AnalysisOutcome) IsFallback() bool {
	return o.Source == ResultSourceFallback
}
