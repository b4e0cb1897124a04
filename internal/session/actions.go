package session

// Action is a user gesture delivered to the controller loop.
type Action interface {
	action()
}

type StartCamera struct{}

type StopCamera struct{}

// SetQuestion mirrors typing into the question input.
type SetQuestion struct {
	Text string
}

type SubmitQuestion struct{}

// KeyPress on the question input; Enter submits.
type KeyPress struct {
	Key string
}

type CaptureImage struct{}

type AnalyzeScene struct{}

// PresetQuestion fills the input with Text and submits it.
type PresetQuestion struct {
	Text string
}

type DismissNotification struct {
	ID string
}

type CloseCapture struct{}

func (StartCamera) action()         {}
func (StopCamera) action()          {}
func (SetQuestion) action()         {}
func (SubmitQuestion) action()      {}
func (KeyPress) action()            {}
func (CaptureImage) action()        {}
func (AnalyzeScene) action()        {}
func (PresetQuestion) action()      {}
func (DismissNotification) action() {}
func (CloseCapture) action()        {}
