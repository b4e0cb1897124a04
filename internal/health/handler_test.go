package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eleven-am/vision-client/internal/camera"
	"github.com/labstack/echo/v4"
)

type fakeConn struct {
	connected bool
}

func (f fakeConn) Connected() bool { return f.connected }
func (f fakeConn) TransportName() string {
	if f.connected {
		return "websocket"
	}
	return ""
}

type fakeCamera struct {
	info *camera.Info
	err  error
}

func (f fakeCamera) Info(context.Context) (*camera.Info, error) { return f.info, f.err }

func get(t *testing.T, h *Handler, path string) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp HealthResponse
	if path == "/healthz/ready" {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, resp
}

func TestLiveness(t *testing.T) {
	h := NewHandler(fakeConn{}, fakeCamera{}, "test")

	rec, _ := get(t, h, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["connected"] != false {
		t.Errorf("unexpected body %v", body)
	}
}

func TestReadiness_Healthy(t *testing.T) {
	h := NewHandler(fakeConn{connected: true}, fakeCamera{info: &camera.Info{Available: true}}, "1.2.3")

	rec, resp := get(t, h, "/healthz/ready")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", resp.Status)
	}
	if resp.Version != "1.2.3" {
		t.Errorf("unexpected version %q", resp.Version)
	}
	if resp.Components["socket"].Detail != "websocket" {
		t.Errorf("expected transport detail, got %+v", resp.Components["socket"])
	}
	if resp.Components["camera"].Detail != "available" {
		t.Errorf("unexpected camera status %+v", resp.Components["camera"])
	}
}

func TestReadiness_Disconnected(t *testing.T) {
	h := NewHandler(fakeConn{}, fakeCamera{info: &camera.Info{}}, "test")

	rec, resp := get(t, h, "/healthz/ready")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if resp.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", resp.Status)
	}
}

func TestReadiness_CameraFailureDegrades(t *testing.T) {
	h := NewHandler(fakeConn{connected: true}, fakeCamera{err: errors.New("connection refused")}, "test")

	rec, resp := get(t, h, "/healthz/ready")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", resp.Status)
	}
	if resp.Components["camera"].Error != "connection refused" {
		t.Errorf("unexpected camera status %+v", resp.Components["camera"])
	}
}

func TestComputeOverallStatus(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]ComponentStatus
		want       Status
	}{
		{"all healthy", map[string]ComponentStatus{"socket": {Status: StatusHealthy}, "camera": {Status: StatusHealthy}}, StatusHealthy},
		{"socket down", map[string]ComponentStatus{"socket": {Status: StatusUnhealthy}, "camera": {Status: StatusHealthy}}, StatusUnhealthy},
		{"camera degraded", map[string]ComponentStatus{"socket": {Status: StatusHealthy}, "camera": {Status: StatusDegraded}}, StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeOverallStatus(tt.components); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
