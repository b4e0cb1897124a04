package session

import (
	"context"
	"strings"

	"github.com/eleven-am/vision-client/internal/camera"
	"github.com/eleven-am/vision-client/internal/protocol"
	"github.com/eleven-am/vision-client/internal/socketio"
	"github.com/eleven-am/vision-client/internal/view"
)

const (
	textThinking       = "thinking…"
	textConnected      = "Connected"
	textEmptyQuestion  = "Please enter a question"
	textCameraStarted  = "Camera started"
	textCameraStopped  = "Camera stopped"
	textImageCaptured  = "Image captured"
	prefixConnectError = "Connection failed: "
	prefixDisconnected = "Disconnected: "
	prefixStartFailed  = "Failed to start camera: "
	prefixStopFailed   = "Failed to stop camera: "
	prefixAnswerError  = "Sorry, an error occurred: "
	prefixUnknownReply = "Received an answer in an unknown format: "
)

func (c *Controller) handleEvent(ev socketio.Event) {
	switch ev.Kind {
	case socketio.EventConnect:
		c.model.Connected = true
		c.metrics.SetConnected(true)
		c.notify(view.LevelSuccess, textConnected)
	case socketio.EventConnectError:
		c.notify(view.LevelError, prefixConnectError+ev.Reason)
	case socketio.EventDisconnect:
		c.model.Connected = false
		c.metrics.SetConnected(false)
		c.notify(view.LevelWarning, prefixDisconnected+ev.Reason)
	case socketio.EventMessage:
		c.handleMessage(ev)
	}
}

func (c *Controller) handleMessage(ev socketio.Event) {
	c.metrics.InboundMessages.WithLabelValues(ev.Name).Inc()

	msg, err := protocol.Parse(ev.Name, ev.Args)
	if err != nil {
		c.log.Debug("ignoring server event", "event", ev.Name, "error", err)
		return
	}

	switch m := msg.(type) {
	case protocol.VideoFrame:
		c.onVideoFrame(m)
	case protocol.AIAnswer:
		c.onAIAnswer(m)
	case protocol.SceneAnalysis:
		c.onSceneAnalysis(m)
	case protocol.ImageCaptured:
		c.onImageCaptured(m)
	}
}

func (c *Controller) onVideoFrame(f protocol.VideoFrame) {
	if f.HasFrame() {
		c.model.Video = view.Video{Src: f.Frame, Timestamp: f.Timestamp}
	} else {
		c.log.Debug("video frame without image data")
	}
	c.model.Detection = f.Detection
	c.frames++
}

func (c *Controller) onAIAnswer(a protocol.AIAnswer) {
	now := c.clock.Now()
	c.model.Transcript.RemoveProvisional()

	switch a.Outcome {
	case protocol.OutcomeError:
		c.model.Transcript.Append(view.SenderAssistant, prefixAnswerError+a.Text, now)
		c.notify(view.LevelError, a.Text)
	case protocol.OutcomeAnswer:
		c.model.Transcript.Append(view.SenderAssistant, a.Text, now)
	default:
		c.log.Warn("answer in unknown format", "payload", a.Text)
		c.model.Transcript.Append(view.SenderAssistant, prefixUnknownReply+a.Text, now)
	}
}

func (c *Controller) onSceneAnalysis(s protocol.SceneAnalysis) {
	c.model.Busy = false
	c.model.Scene = view.SceneFrom(s)
}

func (c *Controller) onImageCaptured(img protocol.ImageCaptured) {
	if img.Failed() {
		c.notify(view.LevelError, img.Error)
		return
	}

	c.model.Capture = view.Capture{
		Open:      true,
		Image:     img.Image,
		Timestamp: img.Timestamp,
		Filename:  img.Filename,
	}
	c.notify(view.LevelSuccess, textImageCaptured)
}

func (c *Controller) handleAction(ctx context.Context, a Action) {
	switch a := a.(type) {
	case StartCamera:
		c.startCamera(ctx)
	case StopCamera:
		c.stopCamera(ctx)
	case SetQuestion:
		c.model.Question = a.Text
	case SubmitQuestion:
		c.submitQuestion()
	case KeyPress:
		if a.Key == "Enter" {
			c.submitQuestion()
		}
	case CaptureImage:
		c.emit(protocol.EventCaptureImage)
	case AnalyzeScene:
		c.model.Busy = true
		c.emit(protocol.EventAnalyzeScene)
	case PresetQuestion:
		c.model.Question = a.Text
		c.submitQuestion()
	case DismissNotification:
		c.model.Notifications.Dismiss(a.ID)
	case CloseCapture:
		c.model.Capture.Open = false
	default:
		c.log.Warn("unknown action", "action", a)
	}
}

func (c *Controller) submitQuestion() {
	question := strings.TrimSpace(c.model.Question)
	if question == "" {
		c.notify(view.LevelWarning, textEmptyQuestion)
		return
	}

	now := c.clock.Now()
	c.model.Transcript.Append(view.SenderUser, question, now)
	c.emit(protocol.EventAskQuestion, protocol.AskQuestionPayload{Question: question})
	c.model.Question = ""
	c.model.Transcript.AppendProvisional(textThinking, now)
}

// emit is fire-and-forget; a send while disconnected is dropped without
// telling the user.
func (c *Controller) emit(event string, args ...any) {
	if !c.emitter.Emit(event, args...) {
		c.log.Debug("emit dropped", "event", event)
	}
}

func (c *Controller) startCamera(ctx context.Context) {
	c.model.Busy = true
	c.async(ctx, func(ctx context.Context) func() {
		result, err := c.camera.Start(ctx)
		return func() {
			c.model.Busy = false
			c.observeCamera("start", result, err)
			switch {
			case err != nil:
				c.notify(view.LevelError, prefixStartFailed+err.Error())
			case !result.Success:
				c.notify(view.LevelError, result.Message)
			default:
				c.model.Camera = view.CameraRunning
				c.notify(view.LevelSuccess, textCameraStarted)
			}
		}
	})
}

func (c *Controller) stopCamera(ctx context.Context) {
	c.async(ctx, func(ctx context.Context) func() {
		result, err := c.camera.Stop(ctx)
		return func() {
			c.observeCamera("stop", result, err)
			switch {
			case err != nil:
				c.notify(view.LevelError, prefixStopFailed+err.Error())
			case !result.Success:
				c.notify(view.LevelError, result.Message)
			default:
				c.model.Camera = view.CameraStopped
				c.model.Video = view.Video{Src: view.PlaceholderFrame}
				c.notify(view.LevelInfo, textCameraStopped)
			}
		}
	})
}

func (c *Controller) observeCamera(op string, result *camera.Result, err error) {
	c.metrics.ObserveCamera(op, err, err == nil && result.Success)
	if err != nil {
		c.log.Warn("camera call failed", "op", op, "error", err)
	}
}
