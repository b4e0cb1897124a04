package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

type EventKind int

const (
	EventConnect EventKind = iota
	EventConnectError
	EventDisconnect
	EventMessage
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventConnectError:
		return "connect_error"
	case EventDisconnect:
		return "disconnect"
	case EventMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Event multiplexes connection lifecycle changes and server pushes onto one
// channel.
type Event struct {
	Kind      EventKind
	Name      string
	Args      []json.RawMessage
	Reason    string
	Transport string
}

type EmitHook func(event string, sent bool)

type Client struct {
	opts     Options
	endpoint *endpoint
	log      *slog.Logger

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.RWMutex
	sess     *engineSession
	upgraded bool
	emitHook EmitHook
}

func New(opts Options, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	opts = opts.withDefaults()

	for _, name := range opts.Transports {
		if name != TransportPolling && name != TransportWebsocket {
			return nil, fmt.Errorf("unknown transport %q", name)
		}
	}

	ep, err := newEndpoint(opts.URL, opts.Path)
	if err != nil {
		return nil, err
	}

	return &Client{
		opts:     opts,
		endpoint: ep,
		log:      log.With("component", "socketio"),
		events:   make(chan Event, 256),
		done:     make(chan struct{}),
	}, nil
}

func (c *Client) Events() <-chan Event {
	return c.events
}

func (c *Client) SetEmitHook(hook EmitHook) {
	c.mu.Lock()
	c.emitHook = hook
	c.mu.Unlock()
}

func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sess != nil && !c.sess.isClosed()
}

func (c *Client) TransportName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sess == nil {
		return ""
	}
	return c.sess.TransportName()
}

// Upgraded reports whether a websocket upgrade has succeeded and is being
// remembered for later reconnects.
func (c *Client) Upgraded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.upgraded
}

// Emit sends an event without acknowledgement. Events emitted while
// disconnected are dropped and Emit returns false.
func (c *Client) Emit(event string, args ...any) bool {
	c.mu.RLock()
	sess := c.sess
	hook := c.emitHook
	c.mu.RUnlock()

	sent := false
	defer func() {
		if hook != nil {
			hook(event, sent)
		}
	}()

	if sess == nil {
		c.log.Debug("dropping emit while disconnected", "event", event)
		return false
	}

	pkt, err := encodeEvent(event, args...)
	if err != nil {
		c.log.Error("failed to encode event", "event", event, "error", err)
		return false
	}

	sent = sess.enqueue(Packet{Type: PacketMessage, Data: pkt.Encode()})
	return sent
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// Run connects and keeps the connection supervised until ctx is cancelled or
// Close is called. Reconnects follow the configured backoff; a server-side
// namespace disconnect is final.
func (c *Client) Run(ctx context.Context) error {
	bo := newBackoff(c.opts.ReconnectionDelay, c.opts.ReconnectionDelayMax, c.opts.RandomizationFactor)

	for {
		sess, err := c.open(ctx)
		if err != nil {
			if c.stopped(ctx) {
				return nil
			}
			c.log.Warn("connect failed", "error", err, "attempt", bo.Attempts()+1)
			c.publish(ctx, Event{Kind: EventConnectError, Reason: err.Error()})
			if !c.opts.Reconnection {
				return err
			}
			if !c.sleep(ctx, bo.Duration()) {
				return nil
			}
			continue
		}
		bo.Reset()

		var reason string
		select {
		case <-sess.Done():
			reason = sess.Reason()
		case <-ctx.Done():
			sess.shutdown()
			reason = ReasonClientDisconnect
		case <-c.done:
			sess.shutdown()
			reason = ReasonClientDisconnect
		}
		sess.wg.Wait()

		c.mu.Lock()
		c.sess = nil
		c.mu.Unlock()

		c.log.Info("disconnected", "reason", reason)
		c.publish(ctx, Event{Kind: EventDisconnect, Reason: reason})

		switch {
		case reason == ReasonClientDisconnect:
			return nil
		case reason == ReasonServerDisconnect, !c.opts.Reconnection:
			return nil
		}

		if !c.sleep(ctx, bo.Duration()) {
			return nil
		}
	}
}

func (c *Client) open(ctx context.Context) (*engineSession, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	tr, info, err := c.openTransport(dialCtx)
	if err != nil {
		return nil, err
	}

	sess := c.newSession(tr, info)
	sess.start(ctx)

	if err := c.join(ctx, dialCtx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (c *Client) newSession(tr transport, info *OpenInfo) *engineSession {
	return newEngineSession(tr, info, c.log, sessionCallbacks{
		onConnect: c.onConnect,
		onEvent: func(ctx context.Context, name string, args []json.RawMessage) {
			c.publish(ctx, Event{Kind: EventMessage, Name: name, Args: args})
		},
	})
}

// join connects the namespace on a started session. The CONNECT reply can be
// handled, and EventConnect published, just before dialCtx expires; in that
// case the session is torn down with an EventDisconnect so listeners never
// keep a connected state without a live session.
func (c *Client) join(ctx, dialCtx context.Context, sess *engineSession) error {
	err := sess.connectNamespace(dialCtx)
	if err == nil {
		return nil
	}

	sess.close(ReasonClientDisconnect)
	sess.wg.Wait()

	c.mu.Lock()
	announced := c.sess == sess
	if announced {
		c.sess = nil
	}
	c.mu.Unlock()

	if announced {
		c.publish(ctx, Event{Kind: EventDisconnect, Reason: ReasonClientDisconnect})
	}
	return err
}

func (c *Client) onConnect(s *engineSession) {
	c.mu.Lock()
	c.sess = s
	c.mu.Unlock()

	c.log.Info("connected", "sid", s.info.SID, "transport", s.TransportName())
	c.publish(s.ctx, Event{Kind: EventConnect, Transport: s.TransportName()})
}

func (c *Client) openTransport(ctx context.Context) (transport, *OpenInfo, error) {
	if c.opts.RememberUpgrade && c.Upgraded() && c.opts.allows(TransportWebsocket) {
		tr, info, err := c.openWebsocket(ctx)
		if err == nil {
			return tr, info, nil
		}
		c.log.Warn("remembered websocket transport failed, falling back", "error", err)
		c.mu.Lock()
		c.upgraded = false
		c.mu.Unlock()
	}

	if c.opts.Transports[0] == TransportWebsocket {
		return c.openWebsocket(ctx)
	}

	pt := newPollingTransport(c.opts.HTTPClient, c.endpoint)
	info, err := pt.handshake(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("handshake: %w", err)
	}

	if c.opts.Upgrade && c.opts.allows(TransportWebsocket) && slices.Contains(info.Upgrades, TransportWebsocket) {
		ws, err := c.upgrade(ctx, info.SID)
		if err == nil {
			_ = pt.Close()
			c.mu.Lock()
			c.upgraded = true
			c.mu.Unlock()
			return ws, info, nil
		}
		c.log.Debug("websocket upgrade failed, staying on polling", "error", err)
	}

	return pt, info, nil
}

func (c *Client) upgrade(ctx context.Context, sid string) (*websocketTransport, error) {
	ws, err := dialWebsocket(ctx, c.opts.Dialer, c.endpoint, sid)
	if err != nil {
		return nil, err
	}
	if err := probe(ctx, ws); err != nil {
		_ = ws.Close()
		return nil, err
	}
	return ws, nil
}

func (c *Client) openWebsocket(ctx context.Context) (*websocketTransport, *OpenInfo, error) {
	ws, err := dialWebsocket(ctx, c.opts.Dialer, c.endpoint, "")
	if err != nil {
		return nil, nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = ws.ws.SetReadDeadline(deadline)
	}
	packets, err := ws.Read(ctx)
	_ = ws.ws.SetReadDeadline(time.Time{})
	if err != nil {
		_ = ws.Close()
		return nil, nil, fmt.Errorf("read open packet: %w", err)
	}
	if len(packets) == 0 {
		_ = ws.Close()
		return nil, nil, errors.New("missing open packet")
	}

	info, err := parseOpen(packets[0])
	if err != nil {
		_ = ws.Close()
		return nil, nil, err
	}
	return ws, info, nil
}

func (c *Client) publish(ctx context.Context, ev Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	case <-c.done:
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-c.done:
		return false
	}
}

func (c *Client) stopped(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
