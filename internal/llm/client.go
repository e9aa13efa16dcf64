// Package llm provides named chat-capable backends (Ollama and any
// OpenAI-compatible endpoint) behind a single Registry with per-call
// latency metrics.
package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Message represents a chat message (system/user/assistant).
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Backend is a single LLM chat capability reachable by name.
type Backend interface {
	// Name returns the backend identifier (e.g. "ollama", "api_1_gpt-4o").
	Name() string
	// IsAvailable probes the backend with a cheap request.
	IsAvailable(ctx context.Context) bool
	// Chat sends the transcript and returns the assistant text.
	// Transport failures and non-2xx responses surface as *BackendError.
	Chat(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error)
}

// Registry holds the named backends, in registration order.
type Registry struct {
	backends map[string]Backend
	order    []string
	latency  metric.Float64Histogram
}

// NewRegistry creates an empty backend registry. meter may be nil,
// in which case no metrics are recorded.
func NewRegistry(meter metric.Meter) *Registry {
	r := &Registry{backends: make(map[string]Backend)}
	if meter != nil {
		r.latency, _ = meter.Float64Histogram(
			"llm.request.duration",
			metric.WithDescription("LLM chat request duration in milliseconds"),
		)
	}
	return r
}

// Register adds a backend. Re-registering a name replaces the backend
// but keeps its original position.
func (r *Registry) Register(name string, b Backend) {
	if _, exists := r.backends[name]; !exists {
		r.order = append(r.order, name)
	}
	r.backends[name] = b
}

// Get returns the named backend. An empty name returns the first
// registered backend; callers must not depend on which one that is.
func (r *Registry) Get(name string) (Backend, bool) {
	if name == "" {
		if len(r.order) == 0 {
			return nil, false
		}
		return r.backends[r.order[0]], true
	}
	b, ok := r.backends[name]
	return b, ok
}

// Names returns backend names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Chat sends the transcript via the named backend, or the first
// registered backend when name is empty.
func (r *Registry) Chat(ctx context.Context, messages []Message, name string, temperature float64, maxTokens int) (string, error) {
	if len(r.order) == 0 {
		return "", ErrNoBackend
	}
	b, ok := r.Get(name)
	if !ok {
		return "", &BackendError{Backend: name, Err: ErrBackendNotFound}
	}

	start := time.Now()
	text, err := b.Chat(ctx, messages, temperature, maxTokens)
	if r.latency != nil {
		r.latency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}
	return text, err
}
