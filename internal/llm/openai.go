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

// OpenAIBackend implements Backend for any OpenAI-compatible chat API
// (OpenAI, DeepSeek, Groq, Mistral, OpenRouter, vLLM, and others).
type OpenAIBackend struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// OpenAIConfig configures an OpenAI-compatible backend.
type OpenAIConfig struct {
	Name    string
	BaseURL string // e.g. "https://api.deepseek.com/v1"
	APIKey  string
	Model   string
}

func NewOpenAIBackend(cfg OpenAIConfig) *OpenAIBackend {
	return &OpenAIBackend{
		name:    cfg.Name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (b *OpenAIBackend) Name() string { return b.name }

// IsAvailable probes the models listing endpoint.
func (b *OpenAIBackend) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", b.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (b *OpenAIBackend) Chat(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	body := openAIRequest{
		Model:       b.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", &BackendError{Backend: b.name, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", &BackendError{Backend: b.name, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

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

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &BackendError{Backend: b.name, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &BackendError{Backend: b.name, Err: fmt.Errorf("no choices in response")}
	}

	return parsed.Choices[0].Message.Content, nil
}

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}
