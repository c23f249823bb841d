package quiz

import "fmt"

// Answer is the learner's submission for a quiz instance. Text variants use
// TextAnswer, keyword match uses MatchAnswer, and pronunciation uses
// AudioAnswer (sent as multipart, outside BuildValidateRequest).
type Answer interface {
	answer()
}

// TextAnswer is a typed-in answer.
type TextAnswer struct {
	Text string
}

func (TextAnswer) answer() {}

// MatchAnswer is the learner's attempted pairings for keyword match.
type MatchAnswer struct {
	Matches []Pair
}

func (MatchAnswer) answer() {}

// AudioAnswer is a recorded clip for pronunciation, WAV-framed.
type AudioAnswer struct {
	WAV []byte
}

func (AudioAnswer) answer() {}

// BuildValidateRequest assembles the JSON body for the variant's validate
// endpoint, echoing back the context the backend expects (correct answer,
// reference sentence, article text). Pronunciation is excluded: its clip
// travels as multipart form data.
func BuildValidateRequest(sessionID string, data Data, ans Answer) (any, error) {
	switch d := data.(type) {
	case UnitCompletionData:
		text, ok := ans.(TextAnswer)
		if !ok {
			return nil, fmt.Errorf("unit completion expects a text answer, got %T", ans)
		}
		return map[string]any{
			"sessionId":  sessionID,
			"userAnswer": text.Text,
			"maskedWord": d.MaskedWord,
			"sentence":   d.Sentence,
		}, nil

	case KeywordMatchData:
		m, ok := ans.(MatchAnswer)
		if !ok {
			return nil, fmt.Errorf("keyword match expects match answers, got %T", ans)
		}
		return map[string]any{
			"sessionId": sessionID,
			"matches":   m.Matches,
		}, nil

	case ImageDetectionData:
		text, ok := ans.(TextAnswer)
		if !ok {
			return nil, fmt.Errorf("image detection expects a text answer, got %T", ans)
		}
		return map[string]any{
			"sessionId":   sessionID,
			"userAnswer":  text.Text,
			"correctWord": d.ObjectWord,
		}, nil

	case PodcastData:
		text, ok := ans.(TextAnswer)
		if !ok {
			return nil, fmt.Errorf("podcast expects a text answer, got %T", ans)
		}
		return map[string]any{
			"sessionId":     sessionID,
			"userAnswer":    text.Text,
			"correctAnswer": d.CorrectAnswer,
		}, nil

	case ReadingData:
		text, ok := ans.(TextAnswer)
		if !ok {
			return nil, fmt.Errorf("reading expects a text answer, got %T", ans)
		}
		return map[string]any{
			"sessionId":   sessionID,
			"userAnswer":  text.Text,
			"articleText": d.ArticleText,
			"question":    d.Question,
		}, nil

	case PronunciationData:
		return nil, fmt.Errorf("pronunciation answers are submitted as multipart audio")
	}

	return nil, fmt.Errorf("unknown quiz data type %T", data)
}
