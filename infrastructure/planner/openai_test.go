package planner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOpenAIProvider(t *testing.T) {
	t.Parallel()

	provider := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", Model: "gpt-4o"})
	if provider.baseURL != "https://api.openai.com" {
		t.Errorf("BaseURL = %s, want https://api.openai.com", provider.baseURL)
	}
	if provider.Name() != "openai" {
		t.Errorf("Name() = %s, want openai", provider.Name())
	}
}

func openAIServer(t *testing.T, check func(*http.Request, openAIChatRequest), body string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Path = %s, want /v1/chat/completions", r.URL.Path)
		}
		var req openAIChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if check != nil {
			check(r, req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOpenAIProvider_Complete(t *testing.T) {
	t.Parallel()

	t.Run("successful completion", func(t *testing.T) {
		t.Parallel()

		body := `{"id":"chatcmpl-123","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"Thought: x\nAction: get_platform_info\nAction Input:"},"finish_reason":"stop"}],"usage":{"prompt_tokens":9,"completion_tokens":12,"total_tokens":21}}`
		server := openAIServer(t, func(r *http.Request, req openAIChatRequest) {
			if r.Header.Get("Authorization") != "Bearer test-key" {
				t.Errorf("Authorization header not set correctly")
			}
			if req.Model != "gpt-4o" {
				t.Errorf("Model = %s, want gpt-4o", req.Model)
			}
			if len(req.Stop) != 1 || req.Stop[0] != "\nObservation" {
				t.Errorf("Stop = %q", req.Stop)
			}
			if req.TopP != 0.5 {
				t.Errorf("TopP = %v, want 0.5", req.TopP)
			}
		}, body)

		provider := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-4o"})
		resp, err := provider.Complete(context.Background(), CompletionRequest{
			Messages: []Message{{Role: RoleUser, Content: "Hello"}},
			TopP:     0.5,
			Stop:     DefaultStop,
		})
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if resp.ID != "chatcmpl-123" || resp.Usage.TotalTokens != 21 {
			t.Errorf("resp = %+v", resp)
		}
		if resp.Text() != "Thought: x\nAction: get_platform_info\nAction Input:" {
			t.Errorf("Text() = %q", resp.Text())
		}
	})

	t.Run("omits authorization without key", func(t *testing.T) {
		t.Parallel()

		body := `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`
		server := openAIServer(t, func(r *http.Request, _ openAIChatRequest) {
			if got := r.Header.Get("Authorization"); got != "" {
				t.Errorf("Authorization = %q, want empty", got)
			}
		}, body)

		provider := NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL, Model: "local"})
		if _, err := provider.Complete(context.Background(), CompletionRequest{}); err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
	})

	t.Run("handles error in response body", func(t *testing.T) {
		t.Parallel()

		body := `{"error":{"message":"Rate limit exceeded","type":"rate_limit_error","code":"rate_limit"}}`
		server := openAIServer(t, nil, body)
		provider := NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL})

		_, err := Complete(context.Background(), provider, CompletionRequest{})
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Code != "rate_limit" {
			t.Errorf("Complete() error = %v, want rate_limit APIError", err)
		}
	})

	t.Run("handles empty choices", func(t *testing.T) {
		t.Parallel()

		server := openAIServer(t, nil, `{"id":"chatcmpl-123","choices":[]}`)
		provider := NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL})

		if _, err := provider.Complete(context.Background(), CompletionRequest{}); !errors.Is(err, ErrEmptyCompletion) {
			t.Errorf("Complete() error = %v, want ErrEmptyCompletion", err)
		}
	})

	t.Run("handles API error status", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Invalid API key"}}`))
		}))
		t.Cleanup(server.Close)

		provider := NewOpenAIProvider(OpenAIConfig{APIKey: "bad", BaseURL: server.URL})
		if _, err := provider.Complete(context.Background(), CompletionRequest{}); err == nil {
			t.Error("Expected error for unauthorized request")
		}
	})
}
