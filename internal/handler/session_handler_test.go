package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exam-engine/internal/clockwork"
	"github.com/stemsi/exam-engine/internal/config"
	"github.com/stemsi/exam-engine/internal/engine"
	"github.com/stemsi/exam-engine/internal/handler"
	"github.com/stemsi/exam-engine/internal/model"
	"github.com/stemsi/exam-engine/internal/response"
	"github.com/stemsi/exam-engine/internal/router"
	"github.com/stemsi/exam-engine/internal/service"
	"github.com/stemsi/exam-engine/internal/timerstore"
	"github.com/stemsi/exam-engine/internal/validator"
)

const handlerTestSecret = "handler-test-secret"

var handlerStart = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type stubProvider struct {
	defs map[uuid.UUID]*model.AssessmentDefinition
}

func (s *stubProvider) AssessmentWithQuestions(_ context.Context, id uuid.UUID) (*model.AssessmentDefinition, error) {
	def, ok := s.defs[id]
	if !ok {
		return nil, engine.NewError(engine.KindValidation, "assessment not found")
	}
	return def, nil
}

type memSink struct {
	mu      sync.Mutex
	records []*model.SubmissionRecord
}

func (m *memSink) Persist(_ context.Context, record *model.SubmissionRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return uuid.NewString(), nil
}

type okExecutor struct{}

func (okExecutor) Run(_ context.Context, _ model.ExecutionRequest) (*model.ExecutionResult, error) {
	return &model.ExecutionResult{StatusID: 3, Stdout: "3\n"}, nil
}

type apiFixture struct {
	srv    http.Handler
	def    *model.AssessmentDefinition
	mcqID  uuid.UUID
	codeID uuid.UUID
	token  string
}

func newAPIFixture(t *testing.T) *apiFixture {
	return newAPIFixtureWithExecutor(t, okExecutor{})
}

func newAPIFixtureWithExecutor(t *testing.T, exec engine.Executor) *apiFixture {
	t.Helper()
	validator.Setup()

	mcqID := uuid.New()
	codeID := uuid.New()
	def := &model.AssessmentDefinition{
		ID:              uuid.New(),
		Title:           "API Test",
		DurationMinutes: 30,
		Questions: []model.Question{
			{
				ID:            mcqID,
				Kind:          model.QuestionKindMCQ,
				Options:       []model.Option{{ID: "opt-a"}, {ID: "opt-b"}},
				CorrectAnswer: []string{"opt-a"},
			},
			{
				ID:        codeID,
				Kind:      model.QuestionKindCoding,
				TestCases: []model.TestCase{{Input: "1 2", ExpectedOutput: "3"}},
			},
		},
	}

	cfg := &config.Config{
		GinMode:           "release",
		JWTSecret:         handlerTestSecret,
		StartTolerance:    time.Second,
		TimerStaleness:    time.Hour,
		SubmitUnlockAfter: 20 * time.Minute,
		InterCaseDelay:    time.Second,
		FallbackDurationS: 3600,
	}

	fake := clockwork.NewFake(handlerStart)
	sessions := service.NewSessionService(
		&stubProvider{defs: map[uuid.UUID]*model.AssessmentDefinition{def.ID: def}},
		timerstore.NewMemoryStore(fake, time.Hour),
		&memSink{},
		nil,
		func() engine.Executor { return exec },
		fake,
		cfg,
		zerolog.Nop(),
	)
	t.Cleanup(sessions.Shutdown)

	authService := service.NewAuthService(cfg)
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(sessions),
		WS:      handler.NewWSHandler(sessions, zerolog.Nop(), nil),
	}

	claims := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"candidate_id": 7,
		"exp":          time.Now().Add(time.Hour).Unix(),
	})
	token, err := claims.SignedString([]byte(handlerTestSecret))
	require.NoError(t, err)

	return &apiFixture{
		srv:    router.SetupRouter(authService, handlers, cfg),
		def:    def,
		mcqID:  mcqID,
		codeID: codeID,
		token:  token,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.token)
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, req)
	return w
}

func TestAttemptRoutesRejectMissingToken(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attempts/"+f.def.ID.String()+"/state", nil)
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOpenAttemptEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/attempts/"+f.def.ID.String()+"/open", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			Phase           string `json:"phase"`
			TimeLeftSeconds int    `json:"time_left_seconds"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ACTIVE", resp.Data.Phase)
	assert.Equal(t, 1800, resp.Data.TimeLeftSeconds)
}

func TestOpenUnknownAssessmentEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/attempts/"+uuid.NewString()+"/open", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecordMCQEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	base := "/api/v1/attempts/" + f.def.ID.String()

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/open", nil).Code)

	idx := 1
	w := f.do(t, http.MethodPut, base+"/answers/mcq", map[string]interface{}{
		"question_id":  f.mcqID,
		"option_index": idx,
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Out-of-range index maps to a validation failure.
	w = f.do(t, http.MethodPut, base+"/answers/mcq", map[string]interface{}{
		"question_id":  f.mcqID,
		"option_index": 9,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordMCQBeforeOpen(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPut, "/api/v1/attempts/"+f.def.ID.String()+"/answers/mcq", map[string]interface{}{
		"question_id":  f.mcqID,
		"option_index": 0,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEvaluateEndpointRecordsOutcome(t *testing.T) {
	f := newAPIFixture(t)
	base := "/api/v1/attempts/" + f.def.ID.String()

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/open", nil).Code)

	w := f.do(t, http.MethodPost, base+"/questions/"+f.codeID.String()+"/evaluate", map[string]interface{}{
		"language_id": 71,
		"source":      "print(sum(map(int, input().split())))",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data model.ExecutionOutcome `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Success)

	// The outcome is visible in the state view afterwards.
	w = f.do(t, http.MethodGet, base+"/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), f.codeID.String())
}

func TestSubmitEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	base := "/api/v1/attempts/" + f.def.ID.String()

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/open", nil).Code)

	w := f.do(t, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The attempt is gone; its state can no longer be read.
	w = f.do(t, http.MethodGet, base+"/state", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// stallExecutor holds Run open until released, keeping an execution in flight
// while the test issues a competing request.
type stallExecutor struct {
	entered chan struct{}
	release chan struct{}
}

func newStallExecutor() *stallExecutor {
	return &stallExecutor{entered: make(chan struct{}, 4), release: make(chan struct{})}
}

func (e *stallExecutor) Run(_ context.Context, _ model.ExecutionRequest) (*model.ExecutionResult, error) {
	e.entered <- struct{}{}
	<-e.release
	return &model.ExecutionResult{StatusID: 3, Stdout: "3\n"}, nil
}

func TestConcurrentEvaluateSameQuestionConflicts(t *testing.T) {
	exec := newStallExecutor()
	f := newAPIFixtureWithExecutor(t, exec)
	base := "/api/v1/attempts/" + f.def.ID.String()
	path := base + "/questions/" + f.codeID.String() + "/evaluate"
	body := map[string]interface{}{
		"language_id": 71,
		"source":      "print(sum(map(int, input().split())))",
	}

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/open", nil).Code)

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		first <- f.do(t, http.MethodPost, path, body)
	}()
	<-exec.entered

	// A second evaluate on the same question while the first is outstanding.
	w := f.do(t, http.MethodPost, path, body)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), string(response.ErrExecutionInFlight))

	close(exec.release)
	require.Equal(t, http.StatusOK, (<-first).Code)
}
