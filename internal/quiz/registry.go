package quiz

import "time"

// Spec is one registry entry: everything variant-specific the orchestrator
// needs, declared as data. Endpoint slugs and payload schemas follow the
// tutor backend's API contract.
type Spec struct {
	Variant Variant

	// Slug is the path segment of the backend endpoints:
	// /api/quiz/<slug>/generate and /api/quiz/<slug>/validate.
	Slug string

	// RevealDelay is how long after the instance becomes ready the learner
	// must be given to take in supplementary content (podcast audio, article
	// text) before an answer is accepted. Zero for prompt-only variants.
	RevealDelay time.Duration

	// AdvanceDelay is how long after the instance reaches a terminal state
	// the auto-advance continue token fires.
	AdvanceDelay time.Duration

	// Schema validates the generate response's quiz payload.
	Schema *payloadSchema
}

var registry = map[Variant]Spec{
	VariantUnitCompletion: {
		Variant:      VariantUnitCompletion,
		Slug:         "unit-completion",
		AdvanceDelay: 2 * time.Second,
		Schema:       unitCompletionSchema,
	},
	VariantKeywordMatch: {
		Variant:      VariantKeywordMatch,
		Slug:         "keyword-match",
		AdvanceDelay: 2 * time.Second,
		Schema:       keywordMatchSchema,
	},
	VariantImageDetection: {
		Variant:      VariantImageDetection,
		Slug:         "image-detection",
		AdvanceDelay: 2 * time.Second,
		Schema:       imageDetectionSchema,
	},
	VariantPodcast: {
		Variant:      VariantPodcast,
		Slug:         "podcast",
		RevealDelay:  3 * time.Second,
		AdvanceDelay: 5 * time.Second,
		Schema:       podcastSchema,
	},
	VariantPronunciation: {
		Variant:      VariantPronunciation,
		Slug:         "pronunciation",
		AdvanceDelay: 2 * time.Second,
		Schema:       pronunciationSchema,
	},
	VariantReading: {
		Variant:      VariantReading,
		Slug:         "reading",
		RevealDelay:  3 * time.Second,
		AdvanceDelay: 4 * time.Second,
		Schema:       readingSchema,
	},
}

// SpecFor returns the registry entry for v. Variants are a closed set, so a
// miss is a programming error; callers holding a Variant parsed through
// ParseVariant always hit.
func SpecFor(v Variant) Spec {
	return registry[v]
}
