package viewer

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/eleven-am/vision-client/internal/view"
)

const sseKeepAliveInterval = 30 * time.Second

// stateStream writes state snapshots to one SSE client.
type stateStream struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	states  <-chan view.State
}

func newStateStream(w http.ResponseWriter, states <-chan view.State) (*stateStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, http.ErrNotSupported
	}
	return &stateStream{writer: w, flusher: flusher, states: states}, nil
}

func (s *stateStream) Run(ctx context.Context) error {
	ticker := time.NewTicker(sseKeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case state, ok := <-s.states:
			if !ok {
				return nil
			}
			if err := s.writeState(state); err != nil {
				return err
			}
		case <-ticker.C:
			if err := s.writeKeepAlive(); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *stateStream) writeState(state view.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	if _, err := s.writer.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := s.writer.Write(data); err != nil {
		return err
	}
	if _, err := s.writer.Write([]byte("\n\n")); err != nil {
		return err
	}

	s.flusher.Flush()
	return nil
}

func (s *stateStream) writeKeepAlive() error {
	if _, err := s.writer.Write([]byte(":keepalive\n\n")); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
