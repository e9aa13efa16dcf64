package llm

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/hazyhaar/paperforge/internal/config"
)

// NewFromConfig builds a backend registry from the application config.
// Every backend is probed and only reachable ones are registered, so
// role assignment never lands on a dead endpoint.
func NewFromConfig(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger, meter metric.Meter) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := NewRegistry(meter)

	if cfg.Ollama.BaseURL != "" {
		ollama := NewOllamaBackend(cfg.Ollama.BaseURL, cfg.Ollama.Model)
		if ollama.IsAvailable(ctx) {
			r.Register(ollama.Name(), ollama)
			logger.Info("backend registered", "name", ollama.Name(), "model", cfg.Ollama.Model)
		} else {
			logger.Warn("ollama unreachable, skipping", "base_url", cfg.Ollama.BaseURL)
		}
	}

	for i, ep := range cfg.Endpoints {
		if ep.BaseURL == "" || ep.Model == "" {
			logger.Warn("endpoint missing base_url or model, skipping", "index", i)
			continue
		}
		name := ep.Name
		if name == "" {
			name = fmt.Sprintf("api_%d_%s", i+1, ep.Model)
		}
		b := NewOpenAIBackend(OpenAIConfig{
			Name:    name,
			BaseURL: ep.BaseURL,
			APIKey:  ep.APIKey,
			Model:   ep.Model,
		})
		if !b.IsAvailable(ctx) {
			logger.Warn("endpoint unreachable, skipping", "name", name, "base_url", ep.BaseURL)
			continue
		}
		r.Register(name, b)
		logger.Info("backend registered", "name", name, "model", ep.Model)
	}

	if len(r.Names()) == 0 {
		logger.Warn("no backends available, all role dispatch will fail")
	}

	return r
}
