// Package httprt provides an inference engine adapter speaking JSON over
// HTTP to a GPU rendering worker.
package httprt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/viseme-labs/talksync/internal/core/domain"
	"github.com/viseme-labs/talksync/internal/core/ports/driven"
)

// Ensure Engine implements the interface.
var _ driven.InferenceEngine = (*Engine)(nil)

// Default configuration values.
const (
	DefaultBaseURL  = "http://localhost:9090"
	DefaultMaxBatch = 8
	DefaultTimeout  = 120 * time.Second
)

// Config holds configuration for the HTTP engine client.
type Config struct {
	// BaseURL is the worker API base URL (default: http://localhost:9090).
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// MaxBatch is the largest batch the worker accepts (default: 8).
	MaxBatch int

	// Timeout is the per-request timeout (default: 120s).
	Timeout time.Duration
}

// Engine renders feature batches by calling a remote worker.
type Engine struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	maxBatch int
}

// inferRequest is the worker /v1/infer request format.
type inferRequest struct {
	JobID string      `json:"job_id"`
	Items []inferItem `json:"items"`
}

// inferItem carries one segment's tensor and visual conditioning.
type inferItem struct {
	Index  int64     `json:"index"`
	Shape  []int     `json:"shape"`
	Data   []float32 `json:"data"`
	Visual []byte    `json:"visual,omitempty"`
	Width  int       `json:"width,omitempty"`
	Height int       `json:"height,omitempty"`
}

// inferResponse is the worker /v1/infer response format.
type inferResponse struct {
	Frames []inferFrame `json:"frames"`
}

// inferFrame is one rendered segment in the response.
type inferFrame struct {
	Index   int64  `json:"index"`
	Payload []byte `json:"payload"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// New creates an HTTP engine client.
func New(cfg Config) *Engine {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxBatch == 0 {
		cfg.MaxBatch = DefaultMaxBatch
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Engine{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		maxBatch: cfg.MaxBatch,
	}
}

// Name returns the engine implementation identifier.
func (e *Engine) Name() string {
	return "httprt"
}

// MaxBatchSize returns the largest batch Infer accepts.
func (e *Engine) MaxBatchSize() int {
	return e.maxBatch
}

// Infer renders one batch via the worker's /v1/infer endpoint.
// Connection failures and retryable status codes come back as transient
// *domain.EngineError so the scheduler's retry policy applies.
func (e *Engine) Infer(ctx context.Context, batch domain.FeatureBatch) (map[int64]domain.OutputFrame, error) {
	reqBody := inferRequest{
		JobID: batch.JobID,
		Items: make([]inferItem, len(batch.Items)),
	}
	for i, item := range batch.Items {
		reqBody.Items[i] = inferItem{
			Index:  item.Index,
			Shape:  item.Tensor.Shape,
			Data:   item.Tensor.Data,
			Visual: item.Visual.Payload,
			Width:  item.Visual.Width,
			Height: item.Visual.Height,
		}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &domain.EngineError{Op: "infer", Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		e.baseURL+"/v1/infer",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, &domain.EngineError{Op: "infer", Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.EngineError{Op: "infer", Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			body = []byte("failed to read response")
		}
		return nil, &domain.EngineError{
			Op:        "infer",
			Transient: transientStatus(resp.StatusCode),
			Err:       fmt.Errorf("worker status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var infResp inferResponse
	if err := json.NewDecoder(resp.Body).Decode(&infResp); err != nil {
		return nil, &domain.EngineError{Op: "infer", Transient: true, Err: fmt.Errorf("decode response: %w", err)}
	}

	results := make(map[int64]domain.OutputFrame, len(infResp.Frames))
	for _, f := range infResp.Frames {
		results[f.Index] = domain.OutputFrame{
			Payload: f.Payload,
			Width:   f.Width,
			Height:  f.Height,
		}
	}
	return results, nil
}

// transientStatus reports whether a retry may succeed for a status code.
// Timeouts, throttling and server-side failures (a GPU worker recovering
// from a transient out-of-memory reports 503) are worth retrying.
func transientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}

// Ping validates the worker is reachable by checking the /v1/health endpoint.
func (e *Engine) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/v1/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("httprt: failed to create ping request: %w", err)
	}
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEngineUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: worker status %d", domain.ErrEngineUnavailable, resp.StatusCode)
	}
	return nil
}

// Close releases resources.
func (e *Engine) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
