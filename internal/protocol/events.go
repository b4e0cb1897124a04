package protocol

const (
	EventVideoFrame    = "video_frame"
	EventAIResponse    = "ai_response"
	EventSceneAnalysis = "scene_analysis"
	EventImageCaptured = "image_captured"
)

const (
	EventAskQuestion  = "ask_question"
	EventAnalyzeScene = "analyze_scene"
	EventCaptureImage = "capture_image"
)

type AskQuestionPayload struct {
	Question string `json:"question"`
}

const (
	PlaceholderUnknown = "unknown"
	PlaceholderNone    = "none"
)
