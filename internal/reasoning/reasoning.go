// Package reasoning provides the delegated-reasoning backends. Provider
// selection is plain configuration lookup, kept entirely outside the session
// controller. Each backend implements types.Reasoner: one non-streaming
// request per call, no retries (retrying a reasoning call is the caller's
// decision, not the transport's).
package reasoning

import (
	"fmt"
	"time"

	"voicecoach/internal/types"
)

// Provider identifies a reasoning backend.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// Config selects and configures a provider.
type Config struct {
	Provider Provider
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// New returns the reasoner for the configured provider.
func New(cfg Config) (types.Reasoner, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}

	switch cfg.Provider {
	case ProviderGemini:
		return NewGeminiReasoner(cfg)
	case ProviderAnthropic:
		return NewAnthropicReasoner(cfg), nil
	case ProviderOpenAI:
		return NewOpenAIReasoner(cfg), nil
	default:
		return nil, fmt.Errorf("unknown reasoning provider: %q", cfg.Provider)
	}
}

// specialistPrompts maps each specialist tag to its system prompt. The
// persona keeps answers short enough to speak aloud.
var specialistPrompts = map[types.SpecialistTag]string{
	types.SpecialistWorkout: "You are a strength and conditioning specialist inside a voice " +
		"coaching app. Answer training questions concisely, in two or three spoken sentences. " +
		"Never prescribe medical treatment.",
	types.SpecialistDiet: "You are a sports nutrition specialist inside a voice coaching app. " +
		"Answer diet and macro questions concisely, in two or three spoken sentences. " +
		"Never prescribe medical treatment.",
	types.SpecialistSupplement: "You are a supplementation specialist inside a voice coaching " +
		"app. Answer supplement questions concisely, in two or three spoken sentences, and " +
		"flag anything that needs a doctor's sign-off.",
}

// SystemPrompt returns the persona for a specialist tag.
func SystemPrompt(tag types.SpecialistTag) string {
	if p, ok := specialistPrompts[tag]; ok {
		return p
	}
	return specialistPrompts[types.SpecialistWorkout]
}
