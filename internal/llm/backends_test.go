package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "testmodel", req.Model)
		assert.False(t, req.Stream)
		assert.InDelta(t, 0.7, req.Options.Temperature, 1e-9)
		assert.Equal(t, 2000, req.Options.NumPredict)

		json.NewEncoder(w).Encode(ollamaResponse{
			Message: Message{Role: "assistant", Content: "hello back"},
			Done:    true,
		})
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, "testmodel")
	out, err := b.Chat(context.Background(), []Message{{Role: "user", Content: "hello"}}, 0.7, 2000)
	require.NoError(t, err)
	assert.Equal(t, "hello back", out)
}

func TestOllamaChatHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, "testmodel")
	_, err := b.Chat(context.Background(), []Message{{Role: "user", Content: "hello"}}, 0.7, 100)
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "ollama", be.Backend)
	assert.Contains(t, be.Error(), "404")
}

func TestOllamaIsAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	assert.True(t, NewOllamaBackend(srv.URL, "m").IsAvailable(context.Background()))

	srv.Close()
	assert.False(t, NewOllamaBackend(srv.URL, "m").IsAvailable(context.Background()))
}

func TestOpenAIChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		assert.Equal(t, 3000, req.MaxTokens)

		resp := map[string]any{
			"model": "gpt-test",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "reviewed"}, "finish_reason": "stop"},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	b := NewOpenAIBackend(OpenAIConfig{Name: "api_1", BaseURL: srv.URL + "/v1", APIKey: "sk-test", Model: "gpt-test"})
	out, err := b.Chat(context.Background(), []Message{{Role: "user", Content: "review this"}}, 0.3, 3000)
	require.NoError(t, err)
	assert.Equal(t, "reviewed", out)
}

func TestOpenAIChatNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	b := NewOpenAIBackend(OpenAIConfig{Name: "api_1", BaseURL: srv.URL, Model: "m"})
	_, err := b.Chat(context.Background(), []Message{{Role: "user", Content: "x"}}, 0.5, 100)
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, be.Error(), "no choices")
}
