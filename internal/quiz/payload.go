package quiz

import (
	"encoding/json"
	"fmt"
)

// Data is the variant-specific prompt payload populated once an instance is
// ready. Concrete types mirror the backend's generate responses.
type Data interface {
	Variant() Variant
}

// UnitCompletionData is a masked-sentence exercise. MaskedWord is the echoed
// correct answer, carried so validation can send it back as context.
type UnitCompletionData struct {
	Sentence   string `json:"sentence"`
	Hint       string `json:"hint,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	MaskedWord string `json:"masked_word"`
}

func (UnitCompletionData) Variant() Variant { return VariantUnitCompletion }

// Pair is one Spanish-English vocabulary pairing.
type Pair struct {
	Spanish string `json:"spanish"`
	English string `json:"english"`
}

// KeywordMatchData is a five-pair vocabulary matching exercise.
type KeywordMatchData struct {
	Pairs      []Pair `json:"pairs"`
	Difficulty string `json:"difficulty,omitempty"`
}

func (KeywordMatchData) Variant() Variant { return VariantKeywordMatch }

// ImageDetectionData asks the learner to name the pictured object.
type ImageDetectionData struct {
	ObjectWord  string `json:"object_word"`
	ImageURL    string `json:"image_url,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
	Difficulty  string `json:"difficulty,omitempty"`
}

func (ImageDetectionData) Variant() Variant { return VariantImageDetection }

// PodcastData is a listening exercise: a dialogue rendered to audio plus a
// comprehension question. CorrectAnswer is echoed for validation.
type PodcastData struct {
	Conversation  string `json:"conversation"`
	Question      string `json:"question"`
	Topic         string `json:"topic,omitempty"`
	AudioBase64   string `json:"audio_base64,omitempty"`
	Difficulty    string `json:"difficulty,omitempty"`
	CorrectAnswer string `json:"correct_answer"`
}

func (PodcastData) Variant() Variant { return VariantPodcast }

// PronunciationData is a sentence the learner records themselves reading.
type PronunciationData struct {
	Sentence   string `json:"sentence"`
	Difficulty string `json:"difficulty,omitempty"`
}

func (PronunciationData) Variant() Variant { return VariantPronunciation }

// ReadingData is a short article with a comprehension question.
type ReadingData struct {
	ArticleTitle string `json:"article_title,omitempty"`
	ArticleText  string `json:"article_text"`
	Question     string `json:"question"`
	Difficulty   string `json:"difficulty,omitempty"`
	OriginalURL  string `json:"original_url,omitempty"`
}

func (ReadingData) Variant() Variant { return VariantReading }

// generateEnvelope is the backend's generate response wrapper. Some variants
// carry the correct answer at the top level, next to the quiz payload.
type generateEnvelope struct {
	Success       bool            `json:"success"`
	Quiz          json.RawMessage `json:"quiz"`
	MaskedWord    string          `json:"masked_word"`
	CorrectAnswer string          `json:"correct_answer"`
}

// ParseGenerateResponse decodes and validates a generate response for v.
// The quiz payload is checked against the variant's JSON schema before it is
// trusted; a mismatch is reported as an error so the instance can be failed
// rather than presented half-formed.
func ParseGenerateResponse(v Variant, raw json.RawMessage) (Data, error) {
	var env generateEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode generate response: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("backend reported generate failure for %s", v)
	}
	if len(env.Quiz) == 0 {
		return nil, fmt.Errorf("generate response for %s has no quiz payload", v)
	}

	spec := SpecFor(v)
	if err := validatePayload(spec.Schema, env.Quiz); err != nil {
		return nil, err
	}

	switch v {
	case VariantUnitCompletion:
		var d UnitCompletionData
		if err := json.Unmarshal(env.Quiz, &d); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", v, err)
		}
		d.MaskedWord = env.MaskedWord
		if d.MaskedWord == "" {
			return nil, fmt.Errorf("generate response for %s is missing masked_word", v)
		}
		return d, nil

	case VariantKeywordMatch:
		var d KeywordMatchData
		if err := json.Unmarshal(env.Quiz, &d); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", v, err)
		}
		return d, nil

	case VariantImageDetection:
		var d ImageDetectionData
		if err := json.Unmarshal(env.Quiz, &d); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", v, err)
		}
		return d, nil

	case VariantPodcast:
		var d PodcastData
		if err := json.Unmarshal(env.Quiz, &d); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", v, err)
		}
		d.CorrectAnswer = env.CorrectAnswer
		if d.CorrectAnswer == "" {
			return nil, fmt.Errorf("generate response for %s is missing correct_answer", v)
		}
		return d, nil

	case VariantPronunciation:
		var d PronunciationData
		if err := json.Unmarshal(env.Quiz, &d); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", v, err)
		}
		return d, nil

	case VariantReading:
		var d ReadingData
		if err := json.Unmarshal(env.Quiz, &d); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", v, err)
		}
		return d, nil
	}

	return nil, fmt.Errorf("unknown quiz variant %q", v)
}
