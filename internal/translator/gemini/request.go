// Package gemini translates prompts into Gemini generateContent payloads and
// reads the first candidate back out of the response.
package gemini

import (
	"fmt"

	"github.com/tidwall/sjson"
)

const requestTemplate = `{"contents":[{"parts":[{"text":""}]}],"generationConfig":{}}`

// GenerationConfig mirrors the generationConfig block of a generateContent call.
type GenerationConfig struct {
	Temperature     float64
	MaxOutputTokens int
	TopK            int
	TopP            float64
}

// DefaultGenerationConfig returns the sampling parameters used when none are configured.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.7,
		MaxOutputTokens: 300,
		TopK:            40,
		TopP:            0.95,
	}
}

// BuildRequest renders the JSON body for a single-turn generateContent call.
func BuildRequest(prompt string, cfg GenerationConfig) ([]byte, error) {
	body := []byte(requestTemplate)
	var err error
	if body, err = sjson.SetBytes(body, "contents.0.parts.0.text", prompt); err != nil {
		return nil, fmt.Errorf("gemini translator: set prompt: %w", err)
	}
	fields := []struct {
		path  string
		value any
	}{
		{"generationConfig.temperature", cfg.Temperature},
		{"generationConfig.maxOutputTokens", cfg.MaxOutputTokens},
		{"generationConfig.topK", cfg.TopK},
		{"generationConfig.topP", cfg.TopP},
	}
	for _, f := range fields {
		if body, err = sjson.SetBytes(body, f.path, f.value); err != nil {
			return nil, fmt.Errorf("gemini translator: set %s: %w", f.path, err)
		}
	}
	return body, nil
}
