package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eleven-am/vision-client/internal/shared"
)

// Message is one of VideoFrame, AIAnswer, SceneAnalysis or ImageCaptured.
type Message interface {
	Event() string
	sealed()
}

type VideoFrame struct {
	Frame     string
	Timestamp string
	Detection DetectionSummary
}

func (VideoFrame) Event() string { return EventVideoFrame }
func (VideoFrame) sealed()       {}

func (f VideoFrame) HasFrame() bool { return f.Frame != "" }

type Outcome int

const (
	OutcomeAnswer Outcome = iota
	OutcomeError
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAnswer:
		return "answer"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

type AIAnswer struct {
	Outcome Outcome
	// Text is the answer, the error text or the pretty-printed raw payload,
	// depending on Outcome.
	Text string
}

func (AIAnswer) Event() string { return EventAIResponse }
func (AIAnswer) sealed()       {}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) Class() string {
	return "safety-" + string(s)
}

// SeverityOf maps a safety level label onto a severity bucket.
func SeverityOf(level string) Severity {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "中", "medium":
		return SeverityMedium
	case "高", "high":
		return SeverityHigh
	default:
		return SeverityLow
	}
}

type SceneAnalysis struct {
	Error             string
	Description       string
	SafetyLevel       string
	SafetyDescription string
	DetectionSummary  string
	Timestamp         string
	Severity          Severity
}

func (SceneAnalysis) Event() string { return EventSceneAnalysis }
func (SceneAnalysis) sealed()       {}

func (s SceneAnalysis) Failed() bool { return s.Error != "" }

type ImageCaptured struct {
	Error     string
	Image     string
	Timestamp string
	Filename  string
}

func (ImageCaptured) Event() string { return EventImageCaptured }
func (ImageCaptured) sealed()       {}

func (c ImageCaptured) Failed() bool { return c.Error != "" }

// Parse decodes an inbound event into its typed form. Malformed payloads never
// fail; only unknown event names do.
func Parse(event string, args []json.RawMessage) (Message, error) {
	var payload any
	if len(args) > 0 {
		payload = DecodePayload(args[0])
	}

	switch event {
	case EventVideoFrame:
		return ParseVideoFrame(payload), nil
	case EventAIResponse:
		return ParseAIAnswer(payload), nil
	case EventSceneAnalysis:
		return ParseSceneAnalysis(payload), nil
	case EventImageCaptured:
		return ParseImageCaptured(payload), nil
	default:
		return nil, fmt.Errorf("%w: %q", shared.ErrUnknownEvent, event)
	}
}

func ParseVideoFrame(payload any) VideoFrame {
	frame := VideoFrame{}
	if raw, ok := Field(payload, "frame"); ok {
		if s, ok := raw.(string); ok {
			frame.Frame = s
		}
	}
	if raw, ok := Field(payload, "timestamp"); ok {
		frame.Timestamp = Text(raw, "")
	}
	info, _ := Field(payload, "detection_info")
	frame.Detection = ParseDetectionSummary(info)
	return frame
}

func ParseAIAnswer(payload any) AIAnswer {
	if errVal, _ := Field(payload, "error"); Present(errVal) {
		return AIAnswer{Outcome: OutcomeError, Text: Text(errVal, PlaceholderUnknown)}
	}
	if answer, _ := Field(payload, "answer"); Present(answer) {
		return AIAnswer{Outcome: OutcomeAnswer, Text: Text(answer, "")}
	}
	return AIAnswer{Outcome: OutcomeUnknown, Text: Pretty(payload)}
}

func ParseSceneAnalysis(payload any) SceneAnalysis {
	if errVal, _ := Field(payload, "error"); Present(errVal) {
		return SceneAnalysis{Error: Text(errVal, PlaceholderUnknown)}
	}

	description, _ := Field(payload, "description")
	summary, _ := Field(payload, "detection_summary")
	timestamp, _ := Field(payload, "timestamp")
	safety, _ := Field(payload, "safety")
	level, _ := Field(safety, "level")
	safetyDescription, _ := Field(safety, "description")

	result := SceneAnalysis{
		Description:       Text(description, PlaceholderNone),
		SafetyLevel:       Text(level, PlaceholderUnknown),
		SafetyDescription: Text(safetyDescription, PlaceholderNone),
		DetectionSummary:  Text(summary, PlaceholderNone),
		Timestamp:         Text(timestamp, PlaceholderUnknown),
	}
	result.Severity = SeverityOf(result.SafetyLevel)
	return result
}

func ParseImageCaptured(payload any) ImageCaptured {
	if errVal, _ := Field(payload, "error"); Present(errVal) {
		return ImageCaptured{Error: Text(errVal, PlaceholderUnknown)}
	}

	image, _ := Field(payload, "image")
	timestamp, _ := Field(payload, "timestamp")
	filename, _ := Field(payload, "filename")

	captured := ImageCaptured{
		Timestamp: Text(timestamp, PlaceholderUnknown),
		Filename:  Text(filename, ""),
	}
	if s, ok := image.(string); ok {
		captured.Image = s
	}
	return captured
}
