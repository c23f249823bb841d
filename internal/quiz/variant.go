// Package quiz defines the closed set of quiz variants, their generate and
// validate payload shapes, and the lifecycle of a quiz instance within a
// tutoring session.
package quiz

import "fmt"

// Variant identifies one of the six quiz kinds. The set is closed: the
// orchestrator dispatches on the registry, so adding a variant means adding
// a registry entry, not touching the orchestrator.
type Variant string

const (
	// VariantUnitCompletion is a fill-in-the-blank sentence exercise.
	VariantUnitCompletion Variant = "unit_completion"

	// VariantKeywordMatch is a Spanish-English word pairing exercise.
	VariantKeywordMatch Variant = "keyword_match"

	// VariantImageDetection asks the learner to name a pictured object.
	VariantImageDetection Variant = "image_detection"

	// VariantPodcast is a listening comprehension exercise with generated audio.
	VariantPodcast Variant = "podcast"

	// VariantPronunciation scores a recorded reading of a reference sentence.
	VariantPronunciation Variant = "pronunciation"

	// VariantReading is a reading comprehension exercise over a short article.
	VariantReading Variant = "reading"
)

// Variants lists all registered variants in a stable order.
func Variants() []Variant {
	return []Variant{
		VariantUnitCompletion,
		VariantKeywordMatch,
		VariantImageDetection,
		VariantPodcast,
		VariantPronunciation,
		VariantReading,
	}
}

// ParseVariant converts a wire name (the test_type field of a quiz signal)
// into a Variant. Unknown names are rejected.
func ParseVariant(name string) (Variant, error) {
	v := Variant(name)
	if _, ok := registry[v]; !ok {
		return "", fmt.Errorf("unknown quiz variant %q", name)
	}
	return v, nil
}

func (v Variant) String() string { return string(v) }
