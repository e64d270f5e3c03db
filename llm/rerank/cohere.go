package rerank

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

	"github.com/BaSui01/docqa/types"
)

// CohereConfig configures the Cohere reranker provider.
type CohereConfig struct {
	APIKey  string        `yaml:"api_key" json:"api_key"`
	BaseURL string        `yaml:"base_url" json:"base_url"`
	Model   string        `yaml:"model,omitempty" json:"model,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// CohereProvider performs reranking via the Cohere API.
type CohereProvider struct {
	cfg    CohereConfig
	client *http.Client
	logger *zap.Logger
}

// NewCohereProvider creates a new Cohere reranker provider.
func NewCohereProvider(cfg CohereConfig, logger *zap.Logger) *CohereProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cohere.ai"
	}
	if cfg.Model == "" {
		cfg.Model = "rerank-v3.5"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CohereProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "cohere_rerank")),
	}
}

func (p *CohereProvider) Name() string      { return "cohere-rerank" }
func (p *CohereProvider) MaxDocuments() int { return 1000 }

type cohereRerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
	TopN      int      `json:"top_n,omitempty"`
}

type cohereRerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// RerankSimple scores documents against the query in one call.
func (p *CohereProvider) RerankSimple(ctx context.Context, query string, documents []string, topN int) ([]Result, error) {
	if len(documents) == 0 {
		return []Result{}, nil
	}

	body := cohereRerankRequest{
		Query:     query,
		Documents: documents,
		Model:     p.cfg.Model,
	}
	if topN > 0 {
		body.TopN = topN
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/v2/rerank",
		bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrRerankProvider, "rerank request failed").
			WithProvider(p.Name()).WithRetryable(true).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, types.NewError(types.ErrRerankProvider,
			fmt.Sprintf("rerank error: status=%d body=%s", resp.StatusCode, string(raw))).
			WithProvider(p.Name()).
			WithRetryable(resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500)
	}

	var cResp cohereRerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return nil, types.NewError(types.ErrRerankProvider, "decode rerank response").
			WithProvider(p.Name()).WithCause(err)
	}

	results := make([]Result, len(cResp.Results))
	for i, r := range cResp.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			return nil, types.NewError(types.ErrRerankProvider,
				fmt.Sprintf("rerank index %d out of range", r.Index)).
				WithProvider(p.Name())
		}
		results[i] = Result{Index: r.Index, RelevanceScore: r.RelevanceScore}
	}

	p.logger.Debug("reranked documents",
		zap.Int("documents", len(documents)),
		zap.Int("results", len(results)))

	return results, nil
}
