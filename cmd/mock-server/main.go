// Command mock-server is a stand-in backend for local development. It serves
// the Socket.IO endpoint and the camera API, streams synthetic frames while the
// camera runs and answers questions, scene analysis and capture requests.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/eleven-am/vision-client/internal/protocol"
	"github.com/eleven-am/vision-client/internal/socketio/sockettest"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var classes = []string{"person", "chair", "cup", "laptop", "bottle", "dog"}

type backend struct {
	io     *sockettest.Server
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	frame   int
	last    []map[string]any
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	addr := os.Getenv("MOCK_ADDR")
	if addr == "" {
		addr = "127.0.0.1:5000"
	}

	b := &backend{
		io:     sockettest.New(sockettest.Config{Logger: logger}),
		logger: logger.With("component", "mock-server"),
	}
	b.io.OnEvent(b.onEvent)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Any("/socket.io/*", echo.WrapHandler(b.io))

	api := e.Group("/api")
	api.POST("/camera/start", b.startCamera)
	api.POST("/camera/stop", b.stopCamera)
	api.GET("/camera/info", b.cameraInfo)
	api.GET("/detection/summary", b.detectionSummary)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go b.stream(ctx, 100*time.Millisecond)

	go func() {
		b.logger.Info("mock server starting", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	b.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b.io.Close()
	_ = e.Shutdown(shutdownCtx)
}

func (b *backend) startCamera(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return c.JSON(http.StatusOK, map[string]any{"success": false, "message": "Camera already running"})
	}
	b.running = true
	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "Camera started"})
}

func (b *backend) stopCamera(c echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = false
	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "Camera stopped"})
}

func (b *backend) cameraInfo(c echo.Context) error {
	b.mu.Lock()
	running := b.running
	b.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"available":    running,
			"width":        640,
			"height":       480,
			"fps":          10,
			"camera_index": 0,
		},
	})
}

func (b *backend) detectionSummary(c echo.Context) error {
	objects := b.lastObjects()
	return c.JSON(http.StatusOK, map[string]any{
		"success":      true,
		"summary":      describe(objects),
		"object_count": len(objects),
		"objects":      objects,
	})
}

func (b *backend) stream(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		b.mu.Lock()
		if !b.running {
			b.mu.Unlock()
			continue
		}
		b.frame++
		n := b.frame
		objects := randomObjects()
		b.last = objects
		b.mu.Unlock()

		err := b.io.Emit(protocol.EventVideoFrame, map[string]any{
			"frame":     frameImage(n),
			"timestamp": time.Now().Format(time.RFC3339),
			"detection_info": map[string]any{
				"object_count": len(objects),
				"objects":      objects,
			},
		})
		if err != nil {
			b.logger.Debug("emit frame failed", "error", err)
		}
	}
}

func (b *backend) onEvent(s *sockettest.Server, sid, name string, args []json.RawMessage) {
	b.logger.Info("event received", "sid", sid, "event", name)

	var err error
	switch name {
	case protocol.EventAskQuestion:
		var q protocol.AskQuestionPayload
		if len(args) > 0 {
			_ = json.Unmarshal(args[0], &q)
		}
		err = s.EmitTo(sid, protocol.EventAIResponse, b.answer(q.Question))
	case protocol.EventAnalyzeScene:
		err = s.EmitTo(sid, protocol.EventSceneAnalysis, b.analysis())
	case protocol.EventCaptureImage:
		err = s.EmitTo(sid, protocol.EventImageCaptured, b.capture())
	default:
		return
	}
	if err != nil {
		b.logger.Warn("reply failed", "event", name, "error", err)
	}
}

func (b *backend) answer(question string) map[string]any {
	if question == "" {
		return map[string]any{"error": "No question provided"}
	}
	objects := b.lastObjects()
	if len(objects) == 0 {
		return map[string]any{"answer": fmt.Sprintf("I can't see anything yet. You asked: %s", question)}
	}
	return map[string]any{"answer": fmt.Sprintf("You asked %q. I can see %s.", question, describe(objects))}
}

func (b *backend) analysis() map[string]any {
	b.mu.Lock()
	running := b.running
	b.mu.Unlock()
	if !running {
		return map[string]any{"error": "Camera is not running"}
	}

	objects := b.lastObjects()
	level := "low"
	switch {
	case len(objects) >= 4:
		level = "high"
	case len(objects) >= 2:
		level = "medium"
	}
	return map[string]any{
		"description": "A synthetic scene with " + describe(objects) + ".",
		"safety": map[string]any{
			"level":       level,
			"description": fmt.Sprintf("%d objects in view", len(objects)),
		},
		"detection_summary": describe(objects),
		"timestamp":         time.Now().Format(time.RFC3339),
	}
}

func (b *backend) capture() map[string]any {
	b.mu.Lock()
	running, n := b.running, b.frame
	b.mu.Unlock()
	if !running {
		return map[string]any{"error": "Camera is not running"}
	}
	now := time.Now()
	return map[string]any{
		"image":     frameImage(n),
		"timestamp": now.Format(time.RFC3339),
		"filename":  fmt.Sprintf("capture_%s.svg", now.Format("20060102_150405")),
	}
}

func (b *backend) lastObjects() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

func randomObjects() []map[string]any {
	n := rand.IntN(5)
	objects := make([]map[string]any, 0, n)
	for range n {
		objects = append(objects, map[string]any{
			"class":      classes[rand.IntN(len(classes))],
			"confidence": 0.5 + rand.Float64()/2,
		})
	}
	return objects
}

func describe(objects []map[string]any) string {
	if len(objects) == 0 {
		return "no objects"
	}
	counts := make(map[string]int)
	var order []string
	for _, o := range objects {
		class, _ := o["class"].(string)
		if counts[class] == 0 {
			order = append(order, class)
		}
		counts[class]++
	}
	out := ""
	for i, class := range order {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%d %s", counts[class], class)
	}
	return out
}

func frameImage(n int) string {
	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="640" height="480">`+
		`<rect width="100%%" height="100%%" fill="#222"/>`+
		`<text x="50%%" y="50%%" fill="#eee" font-size="32" text-anchor="middle">frame %d</text></svg>`, n)
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}
