package viewer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/eleven-am/vision-client/internal/camera"
	"github.com/eleven-am/vision-client/internal/session"
	"github.com/eleven-am/vision-client/internal/shared"
	"github.com/eleven-am/vision-client/internal/view"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, a session.Action) error
}

type StateSource interface {
	Latest() view.State
	Subscribe() (<-chan view.State, func())
}

// CameraInfo is the read-only part of the camera API.
type CameraInfo interface {
	Info(ctx context.Context) (*camera.Info, error)
	DetectionSummary(ctx context.Context) (*camera.Summary, error)
}

type Handler struct {
	dispatcher Dispatcher
	states     StateSource
	camera     CameraInfo
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
}

func NewHandler(dispatcher Dispatcher, states StateSource, cam CameraInfo, gatherer prometheus.Gatherer, logger *slog.Logger) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		states:     states,
		camera:     cam,
		gatherer:   gatherer,
		logger:     logger.With("component", "viewer"),
	}
}

type textRequest struct {
	Text string `json:"text"`
}

type keyRequest struct {
	Key string `json:"key"`
}

type acceptedResponse struct {
	Status string `json:"status"`
}

func (h *Handler) RegisterRoutes(e *echo.Echo, limiter echo.MiddlewareFunc) {
	e.GET("/", h.Page)
	e.GET("/fragments/:name", h.Fragment)
	if h.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")
	api.GET("/state", h.State)
	api.GET("/events", h.Events)
	api.GET("/camera/info", h.CameraInfo)
	api.GET("/detection/summary", h.DetectionSummary)

	actions := api.Group("/actions")
	if limiter != nil {
		actions.Use(limiter)
	}
	actions.POST("/camera/start", h.action(func(echo.Context) (session.Action, error) { return session.StartCamera{}, nil }))
	actions.POST("/camera/stop", h.action(func(echo.Context) (session.Action, error) { return session.StopCamera{}, nil }))
	actions.POST("/capture", h.action(func(echo.Context) (session.Action, error) { return session.CaptureImage{}, nil }))
	actions.POST("/capture/close", h.action(func(echo.Context) (session.Action, error) { return session.CloseCapture{}, nil }))
	actions.POST("/analyze", h.action(func(echo.Context) (session.Action, error) { return session.AnalyzeScene{}, nil }))
	actions.POST("/input", h.action(func(c echo.Context) (session.Action, error) {
		var req textRequest
		if err := c.Bind(&req); err != nil {
			return nil, err
		}
		return session.SetQuestion{Text: req.Text}, nil
	}))
	actions.POST("/key", h.action(func(c echo.Context) (session.Action, error) {
		var req keyRequest
		if err := c.Bind(&req); err != nil {
			return nil, err
		}
		if req.Key == "" {
			return nil, errors.New("key is required")
		}
		return session.KeyPress{Key: req.Key}, nil
	}))
	actions.POST("/preset", h.action(func(c echo.Context) (session.Action, error) {
		var req textRequest
		if err := c.Bind(&req); err != nil {
			return nil, err
		}
		return session.PresetQuestion{Text: req.Text}, nil
	}))
	actions.POST("/notifications/:id/dismiss", h.action(func(c echo.Context) (session.Action, error) {
		return session.DismissNotification{ID: c.Param("id")}, nil
	}))
	actions.POST("/question", h.AskQuestion)
}

func (h *Handler) Page(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return view.RenderPage(c.Response(), h.states.Latest())
}

func (h *Handler) Fragment(c echo.Context) error {
	var buf bytes.Buffer
	if err := view.RenderFragment(&buf, c.Param("name"), h.states.Latest()); err != nil {
		return shared.NotFound("fragment_not_found", err.Error())
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (h *Handler) State(c echo.Context) error {
	return c.JSON(http.StatusOK, h.states.Latest())
}

func (h *Handler) Events(c echo.Context) error {
	states, unsubscribe := h.states.Subscribe()
	defer unsubscribe()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)

	stream, err := newStateStream(w, states)
	if err != nil {
		return shared.InternalError("streaming_unsupported", "streaming not supported")
	}

	if err := stream.Run(c.Request().Context()); err != nil {
		h.logger.Debug("event stream closed", "error", err)
	}
	return nil
}

// AskQuestion types the text into the input and submits it, the same two
// gestures the page performs.
func (h *Handler) AskQuestion(c echo.Context) error {
	var req textRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	ctx := c.Request().Context()
	for _, a := range []session.Action{session.SetQuestion{Text: req.Text}, session.SubmitQuestion{}} {
		if err := h.dispatch(ctx, a); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusAccepted, acceptedResponse{Status: "accepted"})
}

func (h *Handler) CameraInfo(c echo.Context) error {
	info, err := h.camera.Info(c.Request().Context())
	if err != nil {
		h.logger.Warn("camera info failed", "error", err)
		return cameraError(err)
	}
	return c.JSON(http.StatusOK, info)
}

func (h *Handler) DetectionSummary(c echo.Context) error {
	summary, err := h.camera.DetectionSummary(c.Request().Context())
	if err != nil {
		h.logger.Warn("detection summary failed", "error", err)
		return cameraError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) action(build func(echo.Context) (session.Action, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		a, err := build(c)
		if err != nil {
			return shared.BadRequest("invalid_request", err.Error())
		}
		if err := h.dispatch(c.Request().Context(), a); err != nil {
			return err
		}
		return c.JSON(http.StatusAccepted, acceptedResponse{Status: "accepted"})
	}
}

func (h *Handler) dispatch(ctx context.Context, a session.Action) error {
	if err := h.dispatcher.Dispatch(ctx, a); err != nil {
		if errors.Is(err, shared.ErrClosed) {
			return shared.ServiceUnavailable("session_closed", "session is shutting down")
		}
		return shared.InternalError("dispatch_failed", err.Error())
	}
	return nil
}

func cameraError(err error) error {
	if errors.Is(err, camera.ErrRejected) {
		return shared.BadGateway("camera_rejected", err.Error())
	}
	return shared.BadGateway("camera_unreachable", err.Error())
}
