package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"skincheck-back/internal/auth"
	"skincheck-back/internal/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func protectedRouter(issuer *auth.Issuer, revoker *auth.Revoker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(issuer, revoker), func(c *gin.Context) {
		if Claims(c) == nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetUint(UserIDKey)})
	})
	return r
}

func get(r http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	issuer := auth.NewIssuer("secret", time.Hour)
	r := protectedRouter(issuer, nil)

	token, _, err := issuer.GenerateToken(7)
	require.NoError(t, err)

	w := get(r, "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"user_id":7}`, w.Body.String())

	w = get(r, "bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)

	for _, header := range []string{"", "Token " + token, "Bearer", "Bearer not-a-jwt"} {
		w = get(r, header)
		require.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
		require.Contains(t, w.Body.String(), `"error"`)
	}

	other, _, err := auth.NewIssuer("other", time.Hour).GenerateToken(7)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, get(r, "Bearer "+other).Code)
}

func TestAuthMiddleware_RejectsRevokedToken(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	defer rdb.Close()

	issuer := auth.NewIssuer("secret", time.Hour)
	revoker := auth.NewRevoker(rdb)
	r := protectedRouter(issuer, revoker)

	token, jti, err := issuer.GenerateToken(1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, get(r, "Bearer "+token).Code)

	require.NoError(t, revoker.Revoke(context.Background(), jti, time.Hour))
	w := get(r, "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "token revoked")

	// redis outage fails closed
	s.Close()
	require.Equal(t, http.StatusServiceUnavailable, get(r, "Bearer "+token).Code)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)

	open := gin.New()
	open.Use(CORS(nil))
	open.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	open.ServeHTTP(w, req)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	restricted := gin.New()
	restricted.Use(CORS([]string{" https://app.example.com ", ""}))
	restricted.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req = httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w = httptest.NewRecorder()
	restricted.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "Origin", w.Header().Get("Vary"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	restricted.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLoggerAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	r := gin.New()
	r.Use(RequestLogger(logger), Metrics())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	require.Equal(t, http.StatusTeapot, w.Code)

	out := buf.String()
	require.Contains(t, out, "http request")
	require.Contains(t, out, "path=/items/42")
	require.Contains(t, out, "status=418")

	require.Positive(t, testutil.CollectAndCount(metrics.HTTPRequestDuration))
}
