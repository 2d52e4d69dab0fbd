// Package judge talks to the external code-execution service and wraps it in
// a rate-limit-aware orchestration layer.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exam-engine/internal/engine"
	"github.com/stemsi/exam-engine/internal/model"
)

// Client is the wire-level judge API: submit source, poll by token.
type Client interface {
	Submit(ctx context.Context, req model.ExecutionRequest) (string, error)
	Poll(ctx context.Context, token string) (*model.ExecutionResult, error)
}

// HTTPClient is the production judge client.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

// NewHTTPClient creates a judge client for the given base URL. An empty
// apiKey sends no auth header.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "judge_client").Logger(),
	}
}

type submitResponse struct {
	Token string `json:"token"`
}

type pollResponse struct {
	Status struct {
		ID int `json:"id"`
	} `json:"status"`
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	CompileOutput string `json:"compile_output"`
}

// Submit posts a new execution and returns its token.
func (c *HTTPClient) Submit(ctx context.Context, req model.ExecutionRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal execution request: %w", err)
	}

	url := c.baseURL + "/submissions?base64_encoded=false&wait=false"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setAuth(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", engine.WrapError(engine.KindNetwork, "judge unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", engine.NewError(engine.KindRateLimited, "judge rate limit hit")
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", engine.NewError(engine.KindNetwork, fmt.Sprintf("judge submit failed: status %d: %s", resp.StatusCode, raw))
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", engine.WrapError(engine.KindNetwork, "decode submit response", err)
	}
	if out.Token == "" {
		return "", engine.NewError(engine.KindNetwork, "judge returned empty token")
	}
	return out.Token, nil
}

// Poll fetches the current result for a token.
func (c *HTTPClient) Poll(ctx context.Context, token string) (*model.ExecutionResult, error) {
	url := fmt.Sprintf("%s/submissions/%s?base64_encoded=false", c.baseURL, token)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build poll request: %w", err)
	}
	c.setAuth(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, engine.WrapError(engine.KindNetwork, "judge unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, engine.NewError(engine.KindRateLimited, "judge rate limit hit")
	}
	if resp.StatusCode >= 400 {
		return nil, engine.NewError(engine.KindNetwork, fmt.Sprintf("judge poll failed: status %d", resp.StatusCode))
	}

	var out pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, engine.WrapError(engine.KindNetwork, "decode poll response", err)
	}
	return &model.ExecutionResult{
		StatusID:      out.Status.ID,
		Stdout:        out.Stdout,
		Stderr:        out.Stderr,
		CompileOutput: out.CompileOutput,
	}, nil
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-Auth-Token", c.apiKey)
	}
}
