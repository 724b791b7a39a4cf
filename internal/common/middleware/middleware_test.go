package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/ahwlsqja/zklogin-session-engine/internal/common/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRedactQuery(t *testing.T) {
	got := redactQuery("id_token=eyJhbGciOi.x.y&nonce=abc&page=2")
	assert.NotContains(t, got, "eyJhbGciOi")
	assert.NotContains(t, got, "abc")
	assert.Contains(t, got, "page=2")
	assert.Equal(t, "", redactQuery(""))
}

func TestLogger_RedactsTokens(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	router := gin.New()
	router.Use(RequestID(), Logger(zap.New(core)))
	router.GET("/cb", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cb?id_token=secret-jwt", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "request completed", entry.Message)
	assert.NotContains(t, entry.ContextMap()["query"], "secret-jwt")
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	t.Run("keeps valid client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-123_abc")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, "req-123_abc", w.Body.String())
	})

	t.Run("replaces forged id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "x\" level=error")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Len(t, w.Body.String(), 36)
		assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))
	})

	t.Run("replaces oversized id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("a", 65))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Len(t, w.Body.String(), 36)
	})
}

func TestRespondError(t *testing.T) {
	router := gin.New()
	router.GET("/app", func(c *gin.Context) {
		RespondError(c, apperrors.NonceMismatch())
	})
	router.GET("/wrapped", func(c *gin.Context) {
		RespondError(c, errors.Join(errors.New("ctx"), apperrors.ExpiredWindow()))
	})
	router.GET("/plain", func(c *gin.Context) {
		RespondError(c, errors.New("redis: connection refused"))
	})

	cases := []struct {
		path   string
		status int
		code   string
	}{
		{"/app", http.StatusUnauthorized, "NONCE_MISMATCH"},
		{"/wrapped", http.StatusUnauthorized, "EXPIRED_WINDOW"},
		{"/plain", http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, tc.status, w.Code, tc.path)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tc.code, body.Error.Code, tc.path)
		assert.NotContains(t, w.Body.String(), "connection refused")
	}
}
