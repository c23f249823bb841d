package quiz

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// payloadSchema is a named JSON Schema for a variant's generate payload.
// Compiled lazily and cached, so the registry stays plain data.
type payloadSchema struct {
	Name       string
	Definition map[string]any
}

// schemaCache caches compiled schemas by name.
var schemaCache sync.Map // map[string]*jsonschema.Schema

// validatePayload checks raw JSON against the schema. A mismatch means the
// backend returned a malformed quiz and the instance must go to error.
func validatePayload(s *payloadSchema, raw json.RawMessage) error {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("invalid JSON payload: %w", err)
	}

	compiled, err := compiledSchema(s)
	if err != nil {
		return fmt.Errorf("compile schema %q: %w", s.Name, err)
	}

	if err := compiled.Validate(parsed); err != nil {
		return fmt.Errorf("payload does not match schema %q: %w", s.Name, err)
	}
	return nil
}

func compiledSchema(s *payloadSchema) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(s.Name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	// The jsonschema library expects a parsed JSON value, not raw bytes.
	defBytes, err := json.Marshal(s.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	var defParsed any
	if err := json.Unmarshal(defBytes, &defParsed); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	schemaURL := fmt.Sprintf("schema://%s.json", s.Name)
	if err := c.AddResource(schemaURL, defParsed); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	schemaCache.Store(s.Name, compiled)
	return compiled, nil
}

var unitCompletionSchema = &payloadSchema{
	Name: "unit-completion-quiz",
	Definition: map[string]any{
		"type":     "object",
		"required": []any{"sentence"},
		"properties": map[string]any{
			"sentence":   map[string]any{"type": "string", "minLength": 1},
			"hint":       map[string]any{"type": "string"},
			"difficulty": map[string]any{"type": "string"},
		},
	},
}

var keywordMatchSchema = &payloadSchema{
	Name: "keyword-match-quiz",
	Definition: map[string]any{
		"type":     "object",
		"required": []any{"pairs"},
		"properties": map[string]any{
			"pairs": map[string]any{
				"type":     "array",
				"minItems": 5,
				"maxItems": 5,
				"items": map[string]any{
					"type":     "object",
					"required": []any{"spanish", "english"},
					"properties": map[string]any{
						"spanish": map[string]any{"type": "string", "minLength": 1},
						"english": map[string]any{"type": "string", "minLength": 1},
					},
				},
			},
			"difficulty": map[string]any{"type": "string"},
		},
	},
}

var imageDetectionSchema = &payloadSchema{
	Name: "image-detection-quiz",
	Definition: map[string]any{
		"type":     "object",
		"required": []any{"object_word"},
		"properties": map[string]any{
			"object_word":  map[string]any{"type": "string", "minLength": 1},
			"image_url":    map[string]any{"type": []any{"string", "null"}},
			"image_base64": map[string]any{"type": []any{"string", "null"}},
			"difficulty":   map[string]any{"type": "string"},
		},
	},
}

var podcastSchema = &payloadSchema{
	Name: "podcast-quiz",
	Definition: map[string]any{
		"type":     "object",
		"required": []any{"conversation", "question"},
		"properties": map[string]any{
			"conversation": map[string]any{"type": "string", "minLength": 1},
			"question":     map[string]any{"type": "string", "minLength": 1},
			"topic":        map[string]any{"type": "string"},
			"audio_base64": map[string]any{"type": []any{"string", "null"}},
			"difficulty":   map[string]any{"type": "string"},
		},
	},
}

var pronunciationSchema = &payloadSchema{
	Name: "pronunciation-quiz",
	Definition: map[string]any{
		"type":     "object",
		"required": []any{"sentence"},
		"properties": map[string]any{
			"sentence":   map[string]any{"type": "string", "minLength": 1},
			"difficulty": map[string]any{"type": "string"},
		},
	},
}

var readingSchema = &payloadSchema{
	Name: "reading-quiz",
	Definition: map[string]any{
		"type":     "object",
		"required": []any{"article_text", "question"},
		"properties": map[string]any{
			"article_title": map[string]any{"type": "string"},
			"article_text":  map[string]any{"type": "string", "minLength": 1},
			"question":      map[string]any{"type": "string", "minLength": 1},
			"difficulty":    map[string]any{"type": "string"},
			"original_url":  map[string]any{"type": "string"},
		},
	},
}
