package camera

import (
	"errors"
	"time"

	"github.com/eleven-am/vision-client/internal/protocol"
)

// ErrRejected marks a well-formed response whose success flag was false.
var ErrRejected = errors.New("camera api rejected request")

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Result is the reply of the start and stop endpoints.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Info struct {
	Available   bool    `json:"available"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	FPS         float64 `json:"fps,omitempty"`
	CameraIndex int     `json:"camera_index,omitempty"`
	Error       string  `json:"error,omitempty"`
}

type Summary struct {
	Summary   string                    `json:"summary"`
	Detection protocol.DetectionSummary `json:"detection"`
}
