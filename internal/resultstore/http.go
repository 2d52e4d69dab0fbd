package resultstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exam-engine/internal/engine"
	"github.com/stemsi/exam-engine/internal/model"
)

// HTTPSink posts submission records to the external persistence collaborator.
// The engine's single-call guarantee is the only idempotency protection, so
// this client never retries on its own.
type HTTPSink struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewHTTPSink creates a persistence-collaborator client.
func NewHTTPSink(baseURL string, timeout time.Duration, log zerolog.Logger) *HTTPSink {
	return &HTTPSink{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "result_sink").Logger(),
	}
}

type persistResponse struct {
	ID string `json:"id"`
}

// Persist sends the record and returns the collaborator-assigned ID.
func (s *HTTPSink) Persist(ctx context.Context, record *model.SubmissionRecord) (string, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal submission record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/results", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build persist request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", engine.WrapError(engine.KindNetwork, "persistence collaborator unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", engine.NewError(engine.KindNetwork, fmt.Sprintf("persist failed: status %d", resp.StatusCode))
	}

	var out persistResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", engine.WrapError(engine.KindNetwork, "decode persist response", err)
	}
	return out.ID, nil
}
