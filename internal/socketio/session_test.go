package socketio

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"
)

type scriptedTransport struct {
	inbound chan []Packet

	mu      sync.Mutex
	written []Packet

	closeOnce sync.Once
	closed    chan struct{}
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{
		inbound: make(chan []Packet, 4),
		closed:  make(chan struct{}),
	}
}

func (t *scriptedTransport) Name() string { return TransportWebsocket }

func (t *scriptedTransport) Read(ctx context.Context) ([]Packet, error) {
	select {
	case packets := <-t.inbound:
		return packets, nil
	case <-t.closed:
		return nil, net.ErrClosed
	case <-ctx.Done():
		return nil, net.ErrClosed
	}
}

func (t *scriptedTransport) Write(_ context.Context, packets ...Packet) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.written = append(t.written, packets...)
	return nil
}

func (t *scriptedTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

func nextEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestJoin_ConnectRacingTimeoutIsUndone(t *testing.T) {
	c, err := New(DefaultOptions("http://127.0.0.1:1"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := newScriptedTransport()
	sess := c.newSession(tr, &OpenInfo{SID: "abc", PingInterval: 25000, PingTimeout: 20000})
	sess.start(ctx)

	tr.inbound <- []Packet{{Type: PacketMessage, Data: SocketPacket{Type: SocketConnect, Data: []byte(`{"sid":"ns"}`)}.Encode()}}

	if ev := nextEvent(t, c); ev.Kind != EventConnect {
		t.Fatalf("expected connect event, got %s", ev.Kind)
	}
	if !c.Connected() {
		t.Fatal("expected connected after CONNECT reply")
	}

	// The reply is consumed here so join only sees its deadline.
	<-sess.connectResult

	dialCtx, dialCancel := context.WithCancel(ctx)
	dialCancel()
	if err := c.join(ctx, dialCtx, sess); err == nil {
		t.Fatal("expected join to fail after the deadline")
	}

	ev := nextEvent(t, c)
	if ev.Kind != EventDisconnect {
		t.Fatalf("expected disconnect event, got %s", ev.Kind)
	}
	if ev.Reason != ReasonClientDisconnect {
		t.Errorf("unexpected reason %q", ev.Reason)
	}
	if c.Connected() {
		t.Error("client should not report connected without a session")
	}
}

func TestJoin_FailureBeforeConnectPublishesNothing(t *testing.T) {
	c, err := New(DefaultOptions("http://127.0.0.1:1"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := c.newSession(newScriptedTransport(), &OpenInfo{SID: "abc"})
	sess.start(ctx)

	dialCtx, dialCancel := context.WithCancel(ctx)
	dialCancel()
	if err := c.join(ctx, dialCtx, sess); err == nil {
		t.Fatal("expected join to fail")
	}

	select {
	case ev := <-c.Events():
		t.Errorf("unexpected event %s", ev.Kind)
	default:
	}
}
