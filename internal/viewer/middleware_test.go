package viewer

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	if cfg.RequestsPerSecond != 10 || cfg.Burst != 20 || cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestRateLimiter(t *testing.T) {
	s := newTestServer(t, &fakeCameraInfo{}, RateLimiter(RateLimiterConfig{
		RequestsPerSecond: 0.001,
		Burst:             2,
	}))

	for i := 0; i < 2; i++ {
		if rec := s.do(http.MethodPost, "/api/actions/capture", ""); rec.Code != http.StatusAccepted {
			t.Fatalf("request %d: expected 202, got %d", i, rec.Code)
		}
	}
	if rec := s.do(http.MethodPost, "/api/actions/capture", ""); rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}

	if rec := s.do(http.MethodGet, "/api/state", ""); rec.Code != http.StatusOK {
		t.Errorf("reads should not be limited, got %d", rec.Code)
	}
}

func TestRateLimiter_PerAddress(t *testing.T) {
	e := echo.New()
	e.Use(RateLimiter(RateLimiterConfig{RequestsPerSecond: 0.001, Burst: 1}))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, addr := range []string{"10.0.0.1:1000", "10.0.0.2:1000"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", addr, rec.Code)
		}
	}
}

func TestRateLimiterStore_Cleanup(t *testing.T) {
	store := newRateLimiterStore(RateLimiterConfig{RequestsPerSecond: 1, Burst: 1, CleanupInterval: time.Millisecond})

	first := store.getLimiter("a")
	time.Sleep(5 * time.Millisecond)
	second := store.getLimiter("a")

	if first == second {
		t.Error("expected limiter to be recreated after cleanup interval")
	}
}
