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

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/docqa/types"
)

// Config holds the configuration for an OpenAI-compatible chat provider.
// Groq, OpenAI, DeepSeek, and most self-hosted gateways share this wire
// format and only differ in base URL and model names.
type Config struct {
	// ProviderName identifies the provider in logs and errors (e.g. "groq").
	ProviderName string `yaml:"provider" json:"provider"`

	// APIKey authenticates against the provider's API.
	APIKey string `yaml:"api_key" json:"api_key"`

	// BaseURL is the API root (e.g. "https://api.groq.com/openai").
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Model is the completion model to request.
	Model string `yaml:"model" json:"model"`

	// Temperature for sampling; answer composition keeps this low.
	Temperature float64 `yaml:"temperature" json:"temperature"`

	// Timeout is the HTTP client timeout. Defaults to 60s if zero.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// EndpointPath is the chat completions path. Defaults to
	// "/v1/chat/completions".
	EndpointPath string `yaml:"endpoint_path" json:"endpoint_path"`

	// RequestsPerMinute caps outgoing requests; 0 disables the limiter.
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// OpenAICompatProvider implements Provider against an OpenAI-compatible
// chat completions endpoint.
type OpenAICompatProvider struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a new OpenAI-compatible completion provider.
func New(cfg Config, logger *zap.Logger) *OpenAICompatProvider {
	if cfg.ProviderName == "" {
		cfg.ProviderName = "openai-compat"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}

	return &OpenAICompatProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger.With(zap.String("component", "llm"), zap.String("provider", cfg.ProviderName)),
	}
}

// NewGroq creates a provider preconfigured for Groq's OpenAI-compatible API.
func NewGroq(apiKey, model string, logger *zap.Logger) *OpenAICompatProvider {
	if model == "" {
		model = "llama-3.1-8b-instant"
	}
	return New(Config{
		ProviderName: "groq",
		APIKey:       apiKey,
		BaseURL:      "https://api.groq.com/openai",
		Model:        model,
	}, logger)
}

// Name returns the provider name.
func (p *OpenAICompatProvider) Name() string { return p.cfg.ProviderName }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt as a single user message and returns the first
// choice's content.
func (p *OpenAICompatProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	body := chatCompletionRequest{
		Model:       p.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: p.cfg.Temperature,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.BaseURL, "/")+p.cfg.EndpointPath,
		bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", types.NewError(types.ErrLanguageModel, "completion request failed").
			WithProvider(p.Name()).WithRetryable(true).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		return "", types.NewError(types.ErrLanguageModel,
			fmt.Sprintf("completion error: status=%d body=%s", resp.StatusCode, string(raw))).
			WithProvider(p.Name()).
			WithRetryable(resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500)
	}

	var ccResp chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&ccResp); err != nil {
		return "", types.NewError(types.ErrLanguageModel, "decode completion response").
			WithProvider(p.Name()).WithCause(err)
	}

	if len(ccResp.Choices) == 0 {
		return "", types.NewError(types.ErrLanguageModel, "completion returned no choices").
			WithProvider(p.Name())
	}

	p.logger.Debug("completion received",
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("completion_chars", len(ccResp.Choices[0].Message.Content)))

	return ccResp.Choices[0].Message.Content, nil
}
