//go:build e2e
// +build e2e

// Package e2e exercises a running server end to end. It expects the server,
// its Redis, and the authoring collaborator to be up, and mints candidate
// tokens with the same JWT_SECRET the server uses.
//
//	go test -tags e2e ./test/e2e/
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

const (
	defaultBaseURL = "http://localhost:8080"
	candidateID    = 424242
)

var (
	baseURL        string
	jwtSecret      string
	assessmentID   string
	candidateToken string
)

func TestMain(m *testing.M) {
	// Load .env if present (ignore error)
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	jwtSecret = os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "change-this-to-a-secure-random-string"
	}
	// The assessment must exist in the authoring collaborator and be inside
	// its scheduling window.
	assessmentID = os.Getenv("E2E_ASSESSMENT_ID")

	token, err := mintCandidateToken()
	if err != nil {
		fmt.Printf("Token setup failed: %v\n", err)
		os.Exit(1)
	}
	candidateToken = token

	os.Exit(m.Run())
}

func mintCandidateToken() (string, error) {
	claims := jwt.MapClaims{
		"candidate_id": candidateID,
		"exp":          time.Now().Add(2 * time.Hour).Unix(),
		"iat":          time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

func doJSON(t *testing.T, method, path, token string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, raw
}

func TestHealth(t *testing.T) {
	resp, _ := doJSON(t, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAttemptRoutesRequireAuth(t *testing.T) {
	resp, _ := doJSON(t, http.MethodGet, "/api/v1/attempts/00000000-0000-0000-0000-000000000000/state", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestStateBeforeOpenIsNotFound(t *testing.T) {
	resp, _ := doJSON(t, http.MethodGet, "/api/v1/attempts/11111111-1111-1111-1111-111111111111/state", candidateToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unopened attempt, got %d", resp.StatusCode)
	}
}

func TestOpenAnswerAndState(t *testing.T) {
	if assessmentID == "" {
		t.Skip("E2E_ASSESSMENT_ID not set")
	}

	resp, raw := doJSON(t, http.MethodPost, "/api/v1/attempts/"+assessmentID+"/open", candidateToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open: expected 200, got %d: %s", resp.StatusCode, raw)
	}

	var opened struct {
		Data struct {
			Phase           string `json:"phase"`
			TimeLeftSeconds int    `json:"time_left_seconds"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &opened); err != nil {
		t.Fatalf("decode open response: %v", err)
	}
	if opened.Data.Phase != "ACTIVE" {
		t.Fatalf("expected ACTIVE phase, got %q", opened.Data.Phase)
	}
	if opened.Data.TimeLeftSeconds <= 0 {
		t.Fatalf("expected positive time left, got %d", opened.Data.TimeLeftSeconds)
	}

	// Re-open resumes the same session instead of restarting the clock.
	resp, raw = doJSON(t, http.MethodPost, "/api/v1/attempts/"+assessmentID+"/open", candidateToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("re-open: expected 200, got %d: %s", resp.StatusCode, raw)
	}

	resp, raw = doJSON(t, http.MethodGet, "/api/v1/attempts/"+assessmentID+"/state", candidateToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("state: expected 200, got %d: %s", resp.StatusCode, raw)
	}
}
