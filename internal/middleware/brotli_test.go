package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func brotliTestRouter(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Brotli())
	r.GET("/body", handler)
	return r
}

func TestBrotliSkipsSmallBodies(t *testing.T) {
	r := brotliTestRouter(func(c *gin.Context) {
		c.String(http.StatusOK, "tiny")
	})

	req := httptest.NewRequest(http.MethodGet, "/body", nil)
	req.Header.Set("Accept-Encoding", "br")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "tiny", w.Body.String())
}

func TestBrotliCompressesLargeBodies(t *testing.T) {
	body := strings.Repeat("exam clock tick ", 200)
	r := brotliTestRouter(func(c *gin.Context) {
		c.String(http.StatusOK, body)
	})

	req := httptest.NewRequest(http.MethodGet, "/body", nil)
	req.Header.Set("Accept-Encoding", "br")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, "br", w.Header().Get("Content-Encoding"))
	decoded, err := io.ReadAll(brotli.NewReader(w.Body))
	require.NoError(t, err)
	assert.Equal(t, body, string(decoded))
}

func TestBrotliEncodesTailAfterThreshold(t *testing.T) {
	// A small write after the threshold has been crossed stays buffered until
	// the end of the request; it must still come out of the encoder, not the
	// raw writer.
	head := strings.Repeat("a", 1500)
	tail := "closing-tail"
	r := brotliTestRouter(func(c *gin.Context) {
		c.Status(http.StatusOK)
		_, _ = c.Writer.WriteString(head)
		_, _ = c.Writer.WriteString(tail)
	})

	req := httptest.NewRequest(http.MethodGet, "/body", nil)
	req.Header.Set("Accept-Encoding", "br")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, "br", w.Header().Get("Content-Encoding"))
	decoded, err := io.ReadAll(brotli.NewReader(w.Body))
	require.NoError(t, err)
	assert.Equal(t, head+tail, string(decoded))
}

func TestBrotliIgnoredWithoutAcceptHeader(t *testing.T) {
	body := strings.Repeat("b", 2048)
	r := brotliTestRouter(func(c *gin.Context) {
		c.String(http.StatusOK, body)
	})

	req := httptest.NewRequest(http.MethodGet, "/body", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, body, w.Body.String())
}
