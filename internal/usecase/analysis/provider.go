package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chemicheck/chemicheck/internal/domain/entities"
	"github.com/chemicheck/chemicheck/pkg/llm"
)

// Provider exposes the four typed analysis operations on top of the
// resilient chat-completions client. Prompt wording is an internal detail;
// callers see only domain types and classified errors.
type Provider struct {
	client *llm.Client
}

// NewProvider creates a provider backed by the given client
func NewProvider(client *llm.Client) *Provider {
	return &Provider{client: client}
}

// BreakerState exposes the underlying breaker state for health reporting
func (p *Provider) BreakerState() llm.BreakerState {
	return p.client.BreakerState()
}

// AnalyzeEmotion asks the model for an emotional read of the transcript
func (p *Provider) AnalyzeEmotion(ctx context.Context, segments []entities.TranscriptSegment, prosody entities.ProsodySummary) (entities.EmotionAnalysis, error) {
	prompt := fmt.Sprintf(`Analyze the emotional state of the following dating conversation and respond with JSON.

Transcript segments: %s
Prosody summary: %s

Respond in this exact format:
{
  "valence": 0.7,
  "arousal": 0.6,
  "emotions": [
    {"label": "joy", "score": 0.8},
    {"label": "interest", "score": 0.7}
  ],
  "evidence": ["positive tone", "lively exchange"]
}

valence ranges from -1 (very negative) to 1 (very positive), arousal and emotion scores from 0 to 1.`,
		mustJSON(segments), mustJSON(prosody))

	content, err := p.client.Complete(ctx, prompt)
	if err != nil {
		return entities.EmotionAnalysis{}, err
	}
	return llm.Decode[entities.EmotionAnalysis](content)
}

// ConversationStats carries transcript shape hints for the conversation
// analysis prompt. It is derived locally, keeping the emotion and
// conversation calls independent so they can run concurrently.
type ConversationStats struct {
	SegmentCount     int     `json:"segmentCount"`
	AvgSegmentLength float64 `json:"avgSegmentLength"`
	DurationSeconds  int     `json:"durationSeconds"`
}

// AnalyzeConversation asks the model for a conversational-quality read
func (p *Provider) AnalyzeConversation(ctx context.Context, segments []entities.TranscriptSegment, stats ConversationStats) (entities.ConversationAnalysis, error) {
	prompt := fmt.Sprintf(`Assess the quality of the following dating conversation and respond with JSON.

Transcript segments: %s
Transcript stats: %s

Respond in this exact format:
{
  "rapport": 0.75,
  "turnTakingBalance": 0.5,
  "empathy": 0.7,
  "redFlags": [],
  "highlights": ["natural conversational flow", "mutual interest expressed"]
}

All numeric fields range from 0 to 1. turnTakingBalance of 0.5 means perfectly balanced speaking time. List any concerning signals in redFlags.`,
		mustJSON(segments), mustJSON(stats))

	content, err := p.client.Complete(ctx, prompt)
	if err != nil {
		return entities.ConversationAnalysis{}, err
	}
	return llm.Decode[entities.ConversationAnalysis](content)
}

// CalculateMatchScore asks the model to score the match. The pipeline uses
// the deterministic local formula instead; this operation exists for parity
// with the provider contract and for experimentation.
func (p *Provider) CalculateMatchScore(ctx context.Context, emotion entities.EmotionAnalysis, conversation entities.ConversationAnalysis) (entities.MatchScore, error) {
	prompt := fmt.Sprintf(`Compute a dating match score from the analysis results below and respond with JSON.

Emotion analysis: %s
Conversation analysis: %s

Respond in this exact format:
{
  "score": 78,
  "breakdown": {
    "text": 80,
    "voice": 75,
    "balance": 80
  }
}

All values are integers from 0 to 100.`,
		mustJSON(emotion), mustJSON(conversation))

	content, err := p.client.Complete(ctx, prompt)
	if err != nil {
		return entities.MatchScore{}, err
	}
	return llm.Decode[entities.MatchScore](content)
}

// GenerateFeedback asks the model for coaching feedback on the conversation
func (p *Provider) GenerateFeedback(ctx context.Context, emotion entities.EmotionAnalysis, conversation entities.ConversationAnalysis, match entities.MatchScore) (entities.Feedback, error) {
	prompt := fmt.Sprintf(`Generate helpful, encouraging feedback for the user based on the analysis results below, and respond with JSON.

Emotion analysis: %s
Conversation analysis: %s
Match score: %s

Respond in this exact format:
{
  "summary": "Overall this was a good conversation...",
  "tips": [
    "Ask deeper questions to get to know your partner",
    "Talk more about your shared interests",
    "Use light humor to keep the mood relaxed"
  ]
}

Provide exactly 3 tips.`,
		mustJSON(emotion), mustJSON(conversation), mustJSON(match))

	content, err := p.client.Complete(ctx, prompt)
	if err != nil {
		return entities.Feedback{}, err
	}
	return llm.Decode[entities.Feedback](content)
}

// mustJSON renders v for prompt embedding. The domain types always marshal.
func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
