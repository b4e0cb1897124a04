package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/eleven-am/vision-client/internal/session"
	"github.com/eleven-am/vision-client/internal/view"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, a session.Action) error
}

type StateSource interface {
	Subscribe() (<-chan view.State, func())
}

// Console drives a session from line-oriented input. Plain lines are asked as
// questions; lines starting with a slash are commands.
type Console struct {
	in         io.Reader
	out        io.Writer
	dispatcher Dispatcher
	states     StateSource
	logger     *slog.Logger

	seen map[string]struct{}
}

func New(in io.Reader, out io.Writer, dispatcher Dispatcher, states StateSource, logger *slog.Logger) *Console {
	return &Console{
		in:         in,
		out:        out,
		dispatcher: dispatcher,
		states:     states,
		logger:     logger.With("component", "console"),
		seen:       make(map[string]struct{}),
	}
}

func (c *Console) Run(ctx context.Context) error {
	states, unsubscribe := c.states.Subscribe()
	defer unsubscribe()

	lines := make(chan string)
	go c.scan(ctx, lines)

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if err := c.handleLine(ctx, line); err != nil {
				fmt.Fprintf(c.out, "! %v\n", err)
			}
		case state, ok := <-states:
			if !ok {
				return nil
			}
			c.print(state)
		}
	}
}

func (c *Console) scan(ctx context.Context, lines chan<- string) {
	defer close(lines)

	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		c.logger.Warn("console input closed", "error", err)
	}
}

func (c *Console) handleLine(ctx context.Context, line string) error {
	actions, err := Parse(line)
	if err != nil {
		return err
	}
	for _, a := range actions {
		if err := c.dispatcher.Dispatch(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Parse turns an input line into the gestures it stands for.
func Parse(line string) ([]session.Action, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return []session.Action{session.SetQuestion{Text: line}, session.SubmitQuestion{}}, nil
	}

	cmd, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/start":
		return []session.Action{session.StartCamera{}}, nil
	case "/stop":
		return []session.Action{session.StopCamera{}}, nil
	case "/capture":
		return []session.Action{session.CaptureImage{}}, nil
	case "/close":
		return []session.Action{session.CloseCapture{}}, nil
	case "/analyze":
		return []session.Action{session.AnalyzeScene{}}, nil
	case "/preset":
		if arg == "" {
			return nil, fmt.Errorf("usage: /preset <question>")
		}
		return []session.Action{session.PresetQuestion{Text: arg}}, nil
	default:
		return nil, fmt.Errorf("unknown command %s", cmd)
	}
}

// print writes transcript entries and notifications not shown before.
func (c *Console) print(s view.State) {
	for _, e := range s.Transcript {
		if c.markSeen(e.ID) {
			fmt.Fprintf(c.out, "[%s] %s\n", e.Sender, e.Text)
		}
	}
	for _, n := range s.Notifications {
		if c.markSeen(n.ID) {
			fmt.Fprintf(c.out, "(%s) %s\n", n.Level, n.Text)
		}
	}
	if s.Scene.Analyzed && c.markSeen(sceneKey(s.Scene)) {
		if s.Scene.Error != "" {
			fmt.Fprintf(c.out, "scene: %s\n", s.Scene.Error)
		} else {
			fmt.Fprintf(c.out, "scene: %s [%s: %s] %s\n", s.Scene.Description, s.Scene.Severity, s.Scene.SafetyLevel, s.Scene.SafetyDescription)
		}
	}
}

func (c *Console) markSeen(id string) bool {
	if _, ok := c.seen[id]; ok {
		return false
	}
	c.seen[id] = struct{}{}
	return true
}

func sceneKey(s view.Scene) string {
	return "scene:" + s.Timestamp + ":" + s.Error + ":" + s.Description
}
