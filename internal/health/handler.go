package health

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/eleven-am/vision-client/internal/camera"
	"github.com/eleven-am/vision-client/internal/shared"
	"github.com/labstack/echo/v4"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

type ComponentStatus struct {
	Status    Status `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
}

type RuntimeStats struct {
	Goroutines    int    `json:"goroutines"`
	MemoryAllocMB uint64 `json:"memory_alloc_mb"`
	MemorySysMB   uint64 `json:"memory_sys_mb"`
	NumGC         uint32 `json:"num_gc"`
}

type HealthResponse struct {
	Status        Status                     `json:"status"`
	Timestamp     time.Time                  `json:"timestamp"`
	Version       string                     `json:"version"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Runtime       RuntimeStats               `json:"runtime"`
	Components    map[string]ComponentStatus `json:"components"`
}

// Connection reports the state of the backend socket.
type Connection interface {
	Connected() bool
	TransportName() string
}

type Camera interface {
	Info(ctx context.Context) (*camera.Info, error)
}

type Handler struct {
	conn      Connection
	camera    Camera
	version   string
	startTime time.Time
	timeout   time.Duration
}

func NewHandler(conn Connection, cam Camera, version string) *Handler {
	return &Handler{
		conn:      conn,
		camera:    cam,
		version:   version,
		startTime: time.Now(),
		timeout:   5 * time.Second,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Liveness)
	e.GET("/healthz/ready", h.Readiness)
}

func (h *Handler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"connected": h.conn.Connected(),
	})
}

// Readiness checks the socket and the camera API. Only a missing socket
// connection makes the client unready; a failing camera API degrades it.
func (h *Handler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	components := make(map[string]ComponentStatus)
	var mu sync.Mutex
	var wg sync.WaitGroup

	checks := []struct {
		name  string
		check func(context.Context) ComponentStatus
	}{
		{"socket", h.checkSocket},
		{"camera", h.checkCamera},
	}

	wg.Add(len(checks))
	for _, check := range checks {
		go func(name string, fn func(context.Context) ComponentStatus) {
			defer wg.Done()
			status := fn(ctx)
			mu.Lock()
			components[name] = status
			mu.Unlock()
		}(check.name, check.check)
	}
	wg.Wait()

	overallStatus := computeOverallStatus(components)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := HealthResponse{
		Status:        overallStatus,
		Timestamp:     time.Now().UTC(),
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Runtime: RuntimeStats{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: memStats.Alloc / 1024 / 1024,
			MemorySysMB:   memStats.Sys / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Components: components,
	}

	statusCode := http.StatusOK
	if overallStatus == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, resp)
}

func (h *Handler) checkSocket(context.Context) ComponentStatus {
	if !h.conn.Connected() {
		return ComponentStatus{
			Status: StatusUnhealthy,
			Error:  shared.ErrNotConnected.Error(),
		}
	}
	return ComponentStatus{
		Status: StatusHealthy,
		Detail: h.conn.TransportName(),
	}
}

func (h *Handler) checkCamera(ctx context.Context) ComponentStatus {
	start := time.Now()
	if h.camera == nil {
		return ComponentStatus{
			Status: StatusDegraded,
			Error:  "camera api not configured",
		}
	}

	info, err := h.camera.Info(ctx)
	if err != nil {
		return ComponentStatus{
			Status:    StatusDegraded,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     err.Error(),
		}
	}

	status := ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
		Detail:    "available",
	}
	if !info.Available {
		status.Detail = "unavailable"
	}
	return status
}

func computeOverallStatus(components map[string]ComponentStatus) Status {
	if status, ok := components["socket"]; ok && status.Status == StatusUnhealthy {
		return StatusUnhealthy
	}

	for _, status := range components {
		if status.Status != StatusHealthy {
			return StatusDegraded
		}
	}
	return StatusHealthy
}
