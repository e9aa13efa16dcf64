package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaBackend implements Backend for a local or remote Ollama instance.
type OllamaBackend struct {
	name    string
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaBackend(baseURL, model string) *OllamaBackend {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	return &OllamaBackend{
		name:    "ollama",
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (b *OllamaBackend) Name() string { return b.name }

// IsAvailable checks the tags endpoint, which is cheap and unauthenticated.
func (b *OllamaBackend) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", b.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (b *OllamaBackend) Chat(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	body := ollamaRequest{
		Model:    b.model,
		Messages: messages,
		Stream:   false,
		Options: ollamaOptions{
			Temperature: temperature,
			NumPredict:  maxTokens,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", &BackendError{Backend: b.name, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", &BackendError{Backend: b.name, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", &BackendError{Backend: b.name, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &BackendError{Backend: b.name, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &BackendError{Backend: b.name,
			Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200))}
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &BackendError{Backend: b.name, Err: fmt.Errorf("decoding response: %w", err)}
	}

	return parsed.Message.Content, nil
}

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
