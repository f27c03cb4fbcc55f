package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mongograph/config"
	"mongograph/util/goroutine"

	"github.com/graph-gophers/graphql-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type helloResolver struct{}

func (helloResolver) Hello() string { return "world" }

type fakeHealth struct {
	err error
}

func (f fakeHealth) HealthCheck(ctx context.Context) error { return f.err }

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.API.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.API.RateLimit.RequestsPerSecond = 1000
	cfg.API.RateLimit.Burst = 1000
	return cfg
}

func setupTestAPI(t *testing.T, health HealthChecker, cfg *config.Config) *API {
	t.Helper()
	schema := graphql.MustParseSchema(`type Query { hello: String! }`, &helloResolver{})
	a := NewAPI(schema, health, "mongo-0:27017", cfg, zap.NewNop().Sugar())
	t.Cleanup(func() { _ = a.Stop(context.Background()) })
	return a
}

func TestGraphQLEndpoint(t *testing.T) {
	a := setupTestAPI(t, fakeHealth{}, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":{"hello":"world"}}`, rr.Body.String())
}

func TestGraphQLEndpoint_RejectsGet(t *testing.T) {
	a := setupTestAPI(t, fakeHealth{}, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/graphql", nil)
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		healthErr  error
		wantStatus int
		wantState  string
		connected  bool
	}{
		{"healthy", nil, http.StatusOK, "healthy", true},
		{"unhealthy", errors.New("server selection error"), http.StatusServiceUnavailable, "unhealthy", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := setupTestAPI(t, fakeHealth{err: tt.healthErr}, testConfig())

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rr := httptest.NewRecorder()
			a.Handler().ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var resp healthResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantState, resp.Status)
			assert.Equal(t, tt.connected, resp.Database.Connected)
			assert.Equal(t, "mongo-0:27017", resp.Database.Host)
		})
	}
}

func TestHealthCheck_SanitizesError(t *testing.T) {
	a := setupTestAPI(t, fakeHealth{err: errors.New("auth failed for mongodb://admin:hunter2@db:27017")}, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)

	assert.NotContains(t, rr.Body.String(), "hunter2")
}

func TestMetricsEndpoint(t *testing.T) {
	a := setupTestAPI(t, fakeHealth{}, testConfig())

	// Generate one GraphQL request so the counter exists
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ hello }"}`))
	a.Handler().ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "mongograph_graphql_requests_total")
}

func TestRequestIDMiddleware(t *testing.T) {
	a := setupTestAPI(t, fakeHealth{}, testConfig())

	t.Run("generated when absent", func(t *testing.T) {
		rr := httptest.NewRecorder()
		a.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Len(t, rr.Header().Get(RequestIDHeader), 36)
	})

	t.Run("propagated when present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rr := httptest.NewRecorder()
		a.Handler().ServeHTTP(rr, req)
		assert.Equal(t, "abc-123", rr.Header().Get(RequestIDHeader))
	})
}

func TestCORSMiddleware(t *testing.T) {
	a := setupTestAPI(t, fakeHealth{}, testConfig())

	t.Run("preflight allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rr := httptest.NewRecorder()
		a.Handler().ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")
	})

	t.Run("unknown origin gets no allow header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
		req.Header.Set("Origin", "http://evil.example")
		rr := httptest.NewRecorder()
		a.Handler().ServeHTTP(rr, req)

		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.API.RateLimit.RequestsPerSecond = 1
	cfg.API.RateLimit.Burst = 2
	a := setupTestAPI(t, fakeHealth{}, cfg)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rr := httptest.NewRecorder()
		a.Handler().ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Other clients have their own bucket
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.7:4321"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	assert.Equal(t, "192.168.1.7", clientIP(req))

	req.RemoteAddr = "not-a-host-port"
	assert.Equal(t, "not-a-host-port", clientIP(req))
}

func TestStartStop(t *testing.T) {
	goroutine.AssertNoLeaks(t)
	a := setupTestAPI(t, fakeHealth{}, testConfig())

	errCh := make(chan error, 1)
	go func() { errCh <- a.Start("127.0.0.1:0") }()

	// Wait until the server has been created before stopping it
	require.Eventually(t, func() bool {
		a.serverMu.Lock()
		defer a.serverMu.Unlock()
		return a.server != nil
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
