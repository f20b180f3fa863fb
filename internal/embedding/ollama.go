package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/MariusDragic/RailwayRAG/pkg/utils"
)

// OllamaConfig holds connection settings for an Ollama server.
type OllamaConfig struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	RetryCount int
}

// OllamaEmbedder requests embeddings from an Ollama server's /api/embed endpoint.
// Vectors are L2-normalized before they are returned.
type OllamaEmbedder struct {
	client     *resty.Client
	model      string
	dimensions atomic.Int64
}

var _ Embedder = (*OllamaEmbedder)(nil)

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

type ollamaError struct {
	Message string `json:"error"`
}

// NewOllamaEmbedder creates an embedder for the given server and model.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	client.AddRetryCondition(retryCondition)
	return &OllamaEmbedder{client: client, model: cfg.Model}
}

// retryCondition retries transport errors and server-side failures, but never a
// cancelled or expired request.
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
}

// Embed returns the embedding of a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return e.embed(ctx, texts)
}

func (e *OllamaEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out ollamaEmbedResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(ollamaEmbedRequest{Model: e.model, Input: texts}).
		SetResult(&out).
		SetError(&ollamaError{}).
		Post("/api/embed")
	if err != nil {
		return nil, fmt.Errorf("ollama embed request: %w", err)
	}
	if resp.IsError() {
		if apiErr, ok := resp.Error().(*ollamaError); ok && apiErr.Message != "" {
			return nil, fmt.Errorf("ollama embed: status %d: %s", resp.StatusCode(), apiErr.Message)
		}
		return nil, fmt.Errorf("ollama embed: status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d inputs", len(out.Embeddings), len(texts))
	}
	vecs := make([][]float32, len(out.Embeddings))
	for i, raw := range out.Embeddings {
		if len(raw) == 0 {
			return nil, fmt.Errorf("ollama embed: empty embedding at %d", i)
		}
		v := make([]float32, len(raw))
		for j, x := range raw {
			v[j] = float32(x)
		}
		if utils.NormalizeL2(v) == 0 {
			return nil, fmt.Errorf("ollama embed: zero vector at %d", i)
		}
		vecs[i] = v
	}
	e.dimensions.CompareAndSwap(0, int64(len(vecs[0])))
	return vecs, nil
}

// Ping checks that the server is reachable.
func (e *OllamaEmbedder) Ping(ctx context.Context) error {
	resp, err := e.client.R().SetContext(ctx).Get("/api/tags")
	if err != nil {
		return fmt.Errorf("ollama ping: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("ollama ping: status %d", resp.StatusCode())
	}
	return nil
}

// Dimensions returns the dimension seen in the first response, or 0 before any request.
func (e *OllamaEmbedder) Dimensions() int {
	return int(e.dimensions.Load())
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.client.GetClient().CloseIdleConnections()
	return nil
}
