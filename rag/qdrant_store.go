package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/docqa/types"
)

// QdrantConfig configures the Qdrant-backed vector index.
type QdrantConfig struct {
	// BaseURL is the Qdrant REST endpoint, e.g. "http://localhost:6333".
	BaseURL string `yaml:"base_url" json:"base_url"`

	// APIKey is sent as the api-key header when non-empty.
	APIKey string `yaml:"api_key" json:"api_key"`

	// Collection is the collection name holding the fragments.
	Collection string `yaml:"collection" json:"collection"`

	// Dimensions is the embedding dimensionality, used when creating the
	// collection.
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// AutoCreateCollection creates the collection on first use when it does
	// not exist.
	AutoCreateCollection bool `yaml:"auto_create_collection" json:"auto_create_collection"`
}

// QdrantStore is a VectorStore backed by Qdrant's REST API, using cosine
// distance. Point IDs are the fragment IDs, so upserts replace by ID.
type QdrantStore struct {
	config QdrantConfig
	client *http.Client
	logger *zap.Logger

	ensureOnce sync.Once
	ensureErr  error
}

// NewQdrantStore creates a Qdrant-backed store.
func NewQdrantStore(config QdrantConfig, logger *zap.Logger) *QdrantStore {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QdrantStore{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With(zap.String("component", "qdrant_store")),
	}
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float64      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type qdrantSearchHit struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Upsert writes fragments as points. Idempotent by fragment ID.
func (s *QdrantStore) Upsert(ctx context.Context, fragments []Fragment) error {
	if len(fragments) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}

	points := make([]qdrantPoint, len(fragments))
	for i, f := range fragments {
		points[i] = qdrantPoint{
			ID:     f.ID,
			Vector: f.Embedding,
			Payload: map[string]any{
				"text":            f.Text,
				"doc_id":          f.DocumentID,
				"source":          f.Source,
				"paragraph_index": f.ParagraphIndex,
				"fragment_index":  f.FragmentIndex,
			},
		}
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", s.config.Collection)
	if err := s.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil); err != nil {
		return err
	}
	s.logger.Debug("points upserted", zap.Int("points", len(points)))
	return nil
}

// Query returns up to nResults nearest candidates by cosine similarity.
// Querying an absent or empty collection returns an empty slice.
func (s *QdrantStore) Query(ctx context.Context, embedding []float64, nResults int) ([]Candidate, error) {
	if nResults <= 0 {
		return []Candidate{}, nil
	}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}

	var out struct {
		Result []qdrantSearchHit `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", s.config.Collection)
	body := map[string]any{
		"vector":       embedding,
		"limit":        nResults,
		"with_payload": true,
	}
	if err := s.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(out.Result))
	for _, hit := range out.Result {
		candidates = append(candidates, Candidate{
			Text: stringPayload(hit.Payload, "text"),
			Metadata: CandidateMetadata{
				DocumentID:     stringPayload(hit.Payload, "doc_id"),
				Source:         stringPayload(hit.Payload, "source"),
				ParagraphIndex: intPayload(hit.Payload, "paragraph_index"),
				FragmentIndex:  intPayload(hit.Payload, "fragment_index"),
			},
			Score: hit.Score,
		})
	}
	return candidates, nil
}

// Count returns the number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	if err := s.ensureCollection(ctx); err != nil {
		return 0, err
	}
	var out struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/count", s.config.Collection)
	if err := s.do(ctx, http.MethodPost, path, map[string]any{"exact": true}, &out); err != nil {
		return 0, err
	}
	return out.Result.Count, nil
}

// ensureCollection creates the collection once per process when configured
// to do so. Creation is idempotent on the Qdrant side.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	if !s.config.AutoCreateCollection {
		return nil
	}
	s.ensureOnce.Do(func() {
		var out struct {
			Result struct {
				Exists bool `json:"exists"`
			} `json:"result"`
		}
		path := fmt.Sprintf("/collections/%s/exists", s.config.Collection)
		if err := s.do(ctx, http.MethodGet, path, nil, &out); err != nil {
			s.ensureErr = err
			return
		}
		if out.Result.Exists {
			return
		}
		body := map[string]any{
			"vectors": map[string]any{
				"size":     s.config.Dimensions,
				"distance": "Cosine",
			},
		}
		s.ensureErr = s.do(ctx, http.MethodPut, "/collections/"+s.config.Collection, body, nil)
	})
	return s.ensureErr
}

func (s *QdrantStore) do(ctx context.Context, method, path string, body any, out any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return types.NewError(types.ErrIndexUnavailable, "encode index request").WithCause(err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.BaseURL+path, payload)
	if err != nil {
		return types.NewError(types.ErrIndexUnavailable, "build index request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("api-key", s.config.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return types.NewError(types.ErrIndexUnavailable, "index unreachable").
			WithCause(err).
			WithRetryable(true)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.NewError(types.ErrIndexUnavailable, "read index response").WithCause(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.NewError(types.ErrIndexUnavailable,
			fmt.Sprintf("index returned status %d: %s", resp.StatusCode, truncateBody(data))).
			WithRetryable(resp.StatusCode >= 500)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return types.NewError(types.ErrIndexUnavailable, "decode index response").WithCause(err)
		}
	}
	return nil
}

func stringPayload(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func intPayload(payload map[string]any, key string) int {
	if v, ok := payload[key].(float64); ok {
		return int(v)
	}
	return 0
}

func truncateBody(data []byte) string {
	const limit = 256
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}
