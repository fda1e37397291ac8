package scoring

import (
	"github.com/chemicheck/chemicheck/internal/domain/entities"
)

// DemoOutcome returns the fixed fallback result set substituted when the
// analysis provider is unavailable. The outcome is tagged as fallback so it
// can never be mistaken for genuine provider output.
func DemoOutcome() entities.AnalysisOutcome {
	return entities.AnalysisOutcome{
		Source:       entities.ResultSourceFallback,
		Emotion:      DemoEmotion(),
		Conversation: DemoConversation(),
		Match:        DemoScore(),
		Feedback:     DemoFeedback(),
	}
}

// DemoScore returns the fixed fallback match score.
func DemoScore() entities.MatchScore {
	return entities.MatchScore{
		Score: 73,
		Breakdown: entities.ScoreBreakdown{
			Text:    78,
			Voice:   69,
			Balance: 71,
		},
	}
}

// DemoEmotion returns the fixed fallback emotion analysis.
func DemoEmotion() entities.EmotionAnalysis {
	return entities.EmotionAnalysis{
		Valence: 0.4,
		Arousal: 0.6,
		Emotions: []entities.EmotionLabel{
			{Label: "joy", Score: 0.7},
			{Label: "surprise", Score: 0.3},
			{Label: "anger", Score: 0.0},
			{Label: "sadness", Score: 0.1},
			{Label: "fear", Score: 0.0},
		},
		Evidence: []string{
			"Frequent laughter throughout the conversation",
			"Plenty of curious, engaged questions",
		},
	}
}

// DemoConversation returns the fixed fallback conversation analysis.
func DemoConversation() entities.ConversationAnalysis {
	return entities.ConversationAnalysis{
		Rapport:           0.75,
		TurnTakingBalance: 0.45,
		Empathy:           0.65,
		RedFlags:          []string{},
		Highlights: []string{
			"Discovered shared interests",
			"Natural, well-timed humor",
			"Active, attentive listening",
		},
	}
}

// DemoFeedback returns the fixed fallback feedback with exactly three tips.
func DemoFeedback() entities.Feedback {
	return entities.Feedback{
		Summary: "Genuine curiosity about each other came through clearly. The way you found common ground together felt natural and unforced.",
		Tips: []string{
			"Wait two or three extra seconds when your partner finishes speaking. A relaxed pace invites deeper conversation.",
			"Make your emotional reactions one notch more specific. Try \"that's fascinating\" instead of just \"that's fun\".",
			"End more of your questions with \"what do you think?\" to draw out your partner's opinions.",
		},
	}
}
