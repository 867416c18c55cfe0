package provider

import (
	"context"
	"fmt"

	"github.com/medscribe/notequeue/internal/config"
)

// NewGenerator returns the generator selected by GENERATOR_BACKEND.
func NewGenerator(ctx context.Context, cfg *config.Config) (Generator, error) {
	switch cfg.GeneratorBackend {
	case config.BackendOpenAI:
		return NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	case config.BackendGemini:
		g, err := NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown generator backend %q", cfg.GeneratorBackend)
	}
}
