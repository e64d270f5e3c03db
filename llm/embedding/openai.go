package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/docqa/types"
)

// OpenAIConfig configures the OpenAI-compatible embedding provider.
type OpenAIConfig struct {
	APIKey     string        `yaml:"api_key" json:"api_key"`
	BaseURL    string        `yaml:"base_url" json:"base_url"`
	Model      string        `yaml:"model" json:"model"`
	Dimensions int           `yaml:"dimensions" json:"dimensions"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`

	// RequestsPerMinute caps outgoing requests; 0 disables the limiter.
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// OpenAIProvider implements Provider against an OpenAI-compatible
// /v1/embeddings endpoint. Vectors are L2-normalized before being returned.
type OpenAIProvider struct {
	cfg     OpenAIConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewOpenAIProvider creates a new OpenAI-compatible embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 1536
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}

	return &OpenAIProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger.With(zap.String("component", "openai_embedding")),
	}
}

func (p *OpenAIProvider) Name() string      { return "openai-embedding" }
func (p *OpenAIProvider) Dimensions() int   { return p.cfg.Dimensions }
func (p *OpenAIProvider) MaxBatchSize() int { return 2048 }

type openAIEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

// EmbedDocuments embeds a batch of texts, splitting into provider-sized
// sub-batches. The result is one vector per input, in input order.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	if len(documents) == 0 {
		return [][]float64{}, nil
	}

	vectors := make([][]float64, 0, len(documents))
	for start := 0; start < len(documents); start += p.MaxBatchSize() {
		end := start + p.MaxBatchSize()
		if end > len(documents) {
			end = len(documents)
		}
		batch, err := p.embedBatch(ctx, documents[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	vectors, err := p.embedBatch(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *OpenAIProvider) embedBatch(ctx context.Context, inputs []string) ([][]float64, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body := openAIEmbedRequest{
		Input:      inputs,
		Model:      p.cfg.Model,
		Dimensions: p.cfg.Dimensions,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/v1/embeddings",
		bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrEmbeddingProvider, "embedding request failed").
			WithProvider(p.Name()).WithRetryable(true).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, types.NewError(types.ErrEmbeddingProvider,
			fmt.Sprintf("embedding error: status=%d body=%s", resp.StatusCode, string(raw))).
			WithProvider(p.Name()).
			WithRetryable(resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500)
	}

	var oaResp openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaResp); err != nil {
		return nil, types.NewError(types.ErrEmbeddingProvider, "decode embedding response").
			WithProvider(p.Name()).WithCause(err)
	}

	if len(oaResp.Data) != len(inputs) {
		return nil, types.NewError(types.ErrEmbeddingProvider,
			fmt.Sprintf("expected %d embeddings, got %d", len(inputs), len(oaResp.Data))).
			WithProvider(p.Name())
	}

	// The API may return data out of order; place by index and validate
	// every vector length before use.
	vectors := make([][]float64, len(inputs))
	for _, d := range oaResp.Data {
		if d.Index < 0 || d.Index >= len(inputs) {
			return nil, types.NewError(types.ErrEmbeddingProvider,
				fmt.Sprintf("embedding index %d out of range", d.Index)).
				WithProvider(p.Name())
		}
		if len(d.Embedding) != p.cfg.Dimensions {
			return nil, types.NewError(types.ErrEmbeddingProvider,
				fmt.Sprintf("embedding has %d dimensions, expected %d", len(d.Embedding), p.cfg.Dimensions)).
				WithProvider(p.Name())
		}
		vectors[d.Index] = Normalize(d.Embedding)
	}
	for i, v := range vectors {
		if v == nil {
			return nil, types.NewError(types.ErrEmbeddingProvider,
				fmt.Sprintf("missing embedding for input %d", i)).
				WithProvider(p.Name())
		}
	}

	p.logger.Debug("embedded batch",
		zap.Int("inputs", len(inputs)),
		zap.String("model", oaResp.Model))

	return vectors, nil
}

// Normalize returns the L2-normalized copy of v. A zero vector is returned
// unchanged.
func Normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
