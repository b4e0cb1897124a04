package view

import (
	"time"

	"github.com/eleven-am/vision-client/internal/protocol"
)

const DefaultNotificationTTL = 5 * time.Second

// PlaceholderFrame is shown on the video surface before the first frame and
// after the camera is stopped.
const PlaceholderFrame = "data:image/svg+xml;base64,PHN2ZyB3aWR0aD0iNjQwIiBoZWlnaHQ9IjQ4MCIgeG1sbnM9Imh0dHA6Ly93d3cudzMub3JnLzIwMDAvc3ZnIj48cmVjdCB3aWR0aD0iMTAwJSIgaGVpZ2h0PSIxMDAlIiBmaWxsPSIjZGRkIi8+PHRleHQgeD0iNTAlIiB5PSI1MCUiIGZvbnQtc2l6ZT0iMTgiIHRleHQtYW5jaG9yPSJtaWRkbGUiIGR5PSIuM2VtIj7op4blkpHmtYHlvIE8L3RleHQ+PC9zdmc+"

type CameraStatus string

const (
	CameraUnknown CameraStatus = "unknown"
	CameraRunning CameraStatus = "running"
	CameraStopped CameraStatus = "stopped"
)

func (s CameraStatus) Class() string {
	switch s {
	case CameraRunning:
		return "h6 mb-0 text-success"
	case CameraStopped:
		return "h6 mb-0 text-secondary"
	default:
		return "h6 mb-0 text-muted"
	}
}

type Video struct {
	Src       string `json:"src"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (v Video) Placeholder() bool {
	return v.Src == PlaceholderFrame
}

// Scene is the scene analysis panel. It is replaced wholesale by every
// analysis result.
type Scene struct {
	Analyzed          bool              `json:"analyzed"`
	Error             string            `json:"error,omitempty"`
	Description       string            `json:"description,omitempty"`
	SafetyLevel       string            `json:"safety_level,omitempty"`
	SafetyDescription string            `json:"safety_description,omitempty"`
	DetectionSummary  string            `json:"detection_summary,omitempty"`
	Timestamp         string            `json:"timestamp,omitempty"`
	Severity          protocol.Severity `json:"severity,omitempty"`
}

func SceneFrom(a protocol.SceneAnalysis) Scene {
	if a.Failed() {
		return Scene{Analyzed: true, Error: a.Error}
	}
	return Scene{
		Analyzed:          true,
		Description:       a.Description,
		SafetyLevel:       a.SafetyLevel,
		SafetyDescription: a.SafetyDescription,
		DetectionSummary:  a.DetectionSummary,
		Timestamp:         a.Timestamp,
		Severity:          a.Severity,
	}
}

type Capture struct {
	Open      bool   `json:"open"`
	Image     string `json:"image,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Filename  string `json:"filename,omitempty"`
}

// Model is the whole visible state of a session. It is not safe for
// concurrent use; the session controller owns it and publishes snapshots.
type Model struct {
	Connected     bool
	Camera        CameraStatus
	Video         Video
	FPS           int
	Detection     protocol.DetectionSummary
	Scene         Scene
	Transcript    Transcript
	Notifications *Notifications
	Busy          bool
	Capture       Capture
	Question      string
}

func NewModel(notificationTTL time.Duration) *Model {
	return &Model{
		Camera:        CameraUnknown,
		Video:         Video{Src: PlaceholderFrame},
		Detection:     protocol.DetectionSummary{Objects: []protocol.DetectedObject{}},
		Notifications: NewNotifications(notificationTTL),
	}
}

func (m *Model) Notify(level Level, text string, now time.Time) Notification {
	return m.Notifications.Add(level, text, now)
}

func (m *Model) Snapshot() State {
	objects := make([]protocol.DetectedObject, len(m.Detection.Objects))
	copy(objects, m.Detection.Objects)

	return State{
		Connected:     m.Connected,
		Camera:        m.Camera,
		Video:         m.Video,
		FPS:           m.FPS,
		Detection:     protocol.DetectionSummary{ObjectCount: m.Detection.ObjectCount, Objects: objects},
		Scene:         m.Scene,
		Transcript:    m.Transcript.Entries(),
		Notifications: m.Notifications.Items(),
		Busy:          m.Busy,
		Capture:       m.Capture,
		Question:      m.Question,
	}
}

// State is an immutable copy of the model, safe to hand to other goroutines.
type State struct {
	Version       uint64                    `json:"version"`
	Connected     bool                      `json:"connected"`
	Camera        CameraStatus              `json:"camera"`
	Video         Video                     `json:"video"`
	FPS           int                       `json:"fps"`
	Detection     protocol.DetectionSummary `json:"detection"`
	Scene         Scene                     `json:"scene"`
	Transcript    []Entry                   `json:"transcript"`
	Notifications []Notification            `json:"notifications"`
	Busy          bool                      `json:"busy"`
	Capture       Capture                   `json:"capture"`
	Question      string                    `json:"question"`
}
