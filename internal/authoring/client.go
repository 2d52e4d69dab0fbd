// Package authoring fetches assessment definitions from the content-authoring
// collaborator. Definitions are read-only input: fetched once at session
// start, never re-fetched mid-session.
package authoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exam-engine/internal/engine"
	"github.com/stemsi/exam-engine/internal/model"
)

// Provider is the content-authoring port.
type Provider interface {
	AssessmentWithQuestions(ctx context.Context, assessmentID uuid.UUID) (*model.AssessmentDefinition, error)
}

// HTTPProvider is the production authoring client.
type HTTPProvider struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewHTTPProvider creates an authoring client for the given base URL.
func NewHTTPProvider(baseURL string, timeout time.Duration, log zerolog.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "authoring_client").Logger(),
	}
}

// AssessmentWithQuestions fetches the full definition including questions.
func (p *HTTPProvider) AssessmentWithQuestions(ctx context.Context, assessmentID uuid.UUID) (*model.AssessmentDefinition, error) {
	url := fmt.Sprintf("%s/assessments/%s?include=questions", p.baseURL, assessmentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build authoring request: %w", err)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, engine.WrapError(engine.KindNetwork, "authoring service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, engine.NewError(engine.KindValidation, "assessment not found")
	}
	if resp.StatusCode >= 400 {
		return nil, engine.NewError(engine.KindNetwork, fmt.Sprintf("authoring fetch failed: status %d", resp.StatusCode))
	}

	var def model.AssessmentDefinition
	if err := json.NewDecoder(resp.Body).Decode(&def); err != nil {
		return nil, engine.WrapError(engine.KindNetwork, "decode assessment definition", err)
	}
	if def.ID == uuid.Nil {
		return nil, engine.NewError(engine.KindValidation, "assessment definition missing id")
	}
	return &def, nil
}
