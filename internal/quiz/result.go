package quiz

import (
	"encoding/json"
	"fmt"
)

// Passing thresholds for the graded (non-binary) variants.
const (
	// PronunciationPassScore is the minimum 0-100 pronunciation score
	// considered a pass.
	PronunciationPassScore = 70.0

	// ReadingPassScore is the minimum 1-10 comprehension score considered
	// a pass.
	ReadingPassScore = 7.0
)

// Result is the variant-specific validation outcome, populated once an
// instance completes. Passed and Score give the orchestrator and the history
// log a uniform view over the three scoring interpretations: binary
// correct/incorrect, 0-100 multi-axis pronunciation, and 1-10 comprehension.
type Result interface {
	Variant() Variant

	// Passed reports whether the attempt clears the variant's threshold.
	Passed() bool

	// Score is normalized to 0.0-1.0 regardless of the variant's native scale.
	Score() float64

	// Feedback is the teacher-voice feedback line, possibly empty.
	Feedback() string
}

// BinaryResult covers the correct/incorrect variants: unit completion,
// image detection, and podcast.
type BinaryResult struct {
	QuizVariant   Variant `json:"-"`
	Correct       bool    `json:"correct"`
	RawScore      float64 `json:"score"`
	FeedbackText  string  `json:"feedback"`
	CorrectAnswer string  `json:"correct_answer,omitempty"`
}

func (r BinaryResult) Variant() Variant { return r.QuizVariant }
func (r BinaryResult) Passed() bool     { return r.Correct }
func (r BinaryResult) Score() float64   { return r.RawScore }
func (r BinaryResult) Feedback() string { return r.FeedbackText }

// MatchResult is one judged pairing within a keyword match attempt.
type MatchResult struct {
	Spanish        string `json:"spanish"`
	English        string `json:"english"`
	IsCorrect      bool   `json:"is_correct"`
	CorrectEnglish string `json:"correct_english,omitempty"`
}

// KeywordMatchResult is all-or-nothing with a partial count.
type KeywordMatchResult struct {
	AllCorrect   bool          `json:"all_correct"`
	CorrectCount int           `json:"correct_count"`
	Total        int           `json:"total"`
	RawScore     float64       `json:"score"`
	Results      []MatchResult `json:"results"`
}

func (KeywordMatchResult) Variant() Variant { return VariantKeywordMatch }
func (r KeywordMatchResult) Passed() bool   { return r.AllCorrect }
func (r KeywordMatchResult) Score() float64 { return r.RawScore }
func (KeywordMatchResult) Feedback() string { return "" }

// PronunciationResult carries the 0-100 multi-axis assessment.
type PronunciationResult struct {
	Accuracy      float64 `json:"accuracy_score"`
	Fluency       float64 `json:"fluency_score"`
	Completeness  float64 `json:"completeness_score"`
	Pronunciation float64 `json:"pronunciation_score"`
	RawScore      float64 `json:"score"`
	UserSpoke     string  `json:"user_spoke,omitempty"`
}

func (PronunciationResult) Variant() Variant { return VariantPronunciation }
func (r PronunciationResult) Passed() bool   { return r.Pronunciation >= PronunciationPassScore }
func (r PronunciationResult) Score() float64 { return r.RawScore }
func (PronunciationResult) Feedback() string { return "" }

// ReadingResult carries the 1-10 comprehension grade.
type ReadingResult struct {
	Grade           float64 `json:"score"`
	NormalizedScore float64 `json:"normalized_score"`
	FeedbackText    string  `json:"feedback"`
	Explanation     string  `json:"explanation,omitempty"`
}

func (ReadingResult) Variant() Variant   { return VariantReading }
func (r ReadingResult) Passed() bool     { return r.Grade >= ReadingPassScore }
func (r ReadingResult) Score() float64   { return r.NormalizedScore }
func (r ReadingResult) Feedback() string { return r.FeedbackText }

// validateEnvelope is the success flag common to all validate responses.
type validateEnvelope struct {
	Success bool `json:"success"`
}

// ParseValidateResponse decodes a validate response for v into its typed
// result.
func ParseValidateResponse(v Variant, raw json.RawMessage) (Result, error) {
	var env validateEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode validate response: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("backend reported validate failure for %s", v)
	}

	switch v {
	case VariantUnitCompletion, VariantImageDetection, VariantPodcast:
		var r BinaryResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode %s result: %w", v, err)
		}
		r.QuizVariant = v
		return r, nil

	case VariantKeywordMatch:
		var r KeywordMatchResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode %s result: %w", v, err)
		}
		return r, nil

	case VariantPronunciation:
		var r PronunciationResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode %s result: %w", v, err)
		}
		return r, nil

	case VariantReading:
		var r ReadingResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode %s result: %w", v, err)
		}
		return r, nil
	}

	return nil, fmt.Errorf("unknown quiz variant %q", v)
}
