package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Ollama defaults tuned for ReAct-style completions.
const (
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "qwen:14b"
)

// DefaultStop ends a completion before the model invents its own observation.
var DefaultStop = []string{"\nObservation"}

// OllamaProvider implements the Provider interface for Ollama.
type OllamaProvider struct {
	baseURL  string
	model    string
	defaults ollamaOptions
	client   *http.Client
}

// OllamaConfig configures the Ollama provider.
type OllamaConfig struct {
	BaseURL     string   // Default: http://localhost:11434
	Model       string   // Default: qwen:14b
	Timeout     int      // Timeout in seconds (default: 120)
	Temperature float64  // Default: 0.5
	TopK        int      // Default: 10
	TopP        float64  // Default: 0.5
	Stop        []string // Default: DefaultStop
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(config OllamaConfig) *OllamaProvider {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}

	model := config.Model
	if model == "" {
		model = DefaultOllamaModel
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 120
	}

	defaults := ollamaOptions{
		Temperature: config.Temperature,
		TopK:        config.TopK,
		TopP:        config.TopP,
		Stop:        config.Stop,
	}
	if defaults.Temperature == 0 {
		defaults.Temperature = 0.5
	}
	if defaults.TopK == 0 {
		defaults.TopK = 10
	}
	if defaults.TopP == 0 {
		defaults.TopP = 0.5
	}
	if defaults.Stop == nil {
		defaults.Stop = DefaultStop
	}

	return &OllamaProvider{
		baseURL:  baseURL,
		model:    model,
		defaults: defaults,
		client: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}
}

// Name returns the provider name.
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// ollamaChatRequest represents the Ollama chat API request.
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64  `json:"temperature"`
	TopK        int      `json:"top_k,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// ollamaChatResponse represents the Ollama chat API response.
type ollamaChatResponse struct {
	Model           string        `json:"model"`
	CreatedAt       string        `json:"created_at"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error,omitempty"`
}

// options merges request sampling parameters over the provider defaults.
func (p *OllamaProvider) options(req CompletionRequest) *ollamaOptions {
	opts := p.defaults
	if req.Temperature != 0 {
		opts.Temperature = req.Temperature
	}
	if req.TopK != 0 {
		opts.TopK = req.TopK
	}
	if req.TopP != 0 {
		opts.TopP = req.TopP
	}
	if req.Stop != nil {
		opts.Stop = req.Stop
	}
	opts.NumPredict = req.MaxTokens
	return &opts
}

// Complete implements the Provider interface.
func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	ollamaMessages := make([]ollamaMessage, len(req.Messages))
	for i, msg := range req.Messages {
		ollamaMessages[i] = ollamaMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	// Use model from request or fallback to provider default
	model := req.Model
	if model == "" {
		model = p.model
	}

	ollamaReq := ollamaChatRequest{
		Model:    model,
		Messages: ollamaMessages,
		Stream:   false,
		Options:  p.options(req),
	}

	body, err := json.Marshal(ollamaReq)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return CompletionResponse{}, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var ollamaResp ollamaChatResponse
	if err := json.Unmarshal(respBody, &ollamaResp); err != nil {
		return CompletionResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if ollamaResp.Error != "" {
		return CompletionResponse{Error: &APIError{Type: "ollama_error", Message: ollamaResp.Error}}, nil
	}

	return CompletionResponse{
		Model: ollamaResp.Model,
		Message: Message{
			Role:    ollamaResp.Message.Role,
			Content: ollamaResp.Message.Content,
		},
		Usage: Usage{
			PromptTokens:     ollamaResp.PromptEvalCount,
			CompletionTokens: ollamaResp.EvalCount,
			TotalTokens:      ollamaResp.PromptEvalCount + ollamaResp.EvalCount,
		},
	}, nil
}
