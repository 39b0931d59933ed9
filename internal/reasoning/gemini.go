package reasoning

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"voicecoach/internal/logging"
	"voicecoach/internal/types"
)

// GeminiReasoner answers specialist queries through the Google GenAI API.
type GeminiReasoner struct {
	client *genai.Client
	model  string
}

// NewGeminiReasoner creates a Gemini-backed reasoner.
func NewGeminiReasoner(cfg Config) (*GeminiReasoner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiReasoner{client: client, model: model}, nil
}

// Route implements types.Reasoner.
func (g *GeminiReasoner) Route(ctx context.Context, specialist types.SpecialistTag, query string) (string, error) {
	logging.Get(logging.CategoryAPI).Debug("[Gemini] routing to %s: %d chars", specialist, len(query))

	result, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(query),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(SystemPrompt(specialist), genai.RoleUser),
		},
	)
	if err != nil {
		return "", fmt.Errorf("gemini call failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned no text")
	}
	return text, nil
}
