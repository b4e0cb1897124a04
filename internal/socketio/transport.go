package socketio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	TransportPolling   = "polling"
	TransportWebsocket = "websocket"

	engineVersion  = "4"
	writeWait      = 10 * time.Second
	maxMessageSize = 8 * 1024 * 1024
)

type transport interface {
	Name() string
	Read(ctx context.Context) ([]Packet, error)
	Write(ctx context.Context, packets ...Packet) error
	Close() error
}

// endpoint builds Engine.IO URLs from the configured same-origin base.
type endpoint struct {
	base *url.URL
	path string
}

func newEndpoint(rawURL, path string) (*endpoint, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return nil, fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if path == "" {
		path = "/socket.io/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return &endpoint{base: u, path: path}, nil
}

func (e *endpoint) url(transportName, sid string) *url.URL {
	u := *e.base
	u.Path = strings.TrimRight(e.base.Path, "/") + e.path
	if transportName == TransportWebsocket {
		if u.Scheme == "https" {
			u.Scheme = "wss"
		} else {
			u.Scheme = "ws"
		}
	}

	q := url.Values{}
	q.Set("EIO", engineVersion)
	q.Set("transport", transportName)
	if sid != "" {
		q.Set("sid", sid)
	}
	u.RawQuery = q.Encode()
	return &u
}

type pollingTransport struct {
	client   *http.Client
	endpoint *endpoint
	sid      string
	seq      atomic.Int64

	mu     sync.Mutex
	closed bool
}

func newPollingTransport(client *http.Client, ep *endpoint) *pollingTransport {
	return &pollingTransport{client: client, endpoint: ep}
}

func (t *pollingTransport) Name() string { return TransportPolling }

// handshake performs the initial GET and returns the server's open packet.
func (t *pollingTransport) handshake(ctx context.Context) (*OpenInfo, error) {
	packets, err := t.Read(ctx)
	if err != nil {
		return nil, err
	}
	if len(packets) == 0 {
		return nil, fmt.Errorf("empty handshake response")
	}
	info, err := parseOpen(packets[0])
	if err != nil {
		return nil, err
	}
	t.sid = info.SID
	return info, nil
}

func (t *pollingTransport) requestURL() string {
	u := t.endpoint.url(TransportPolling, t.sid)
	q := u.Query()
	q.Set("t", strconv.FormatInt(time.Now().UnixNano(), 36)+"-"+strconv.FormatInt(t.seq.Add(1), 10))
	u.RawQuery = q.Encode()
	return u.String()
}

func (t *pollingTransport) Read(ctx context.Context) ([]Packet, error) {
	if t.isClosed() {
		return nil, io.EOF
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.requestURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("create poll request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMessageSize))
	if err != nil {
		return nil, fmt.Errorf("read poll response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return DecodePayload(string(body))
}

func (t *pollingTransport) Write(ctx context.Context, packets ...Packet) error {
	if len(packets) == 0 {
		return nil
	}
	if t.isClosed() {
		return io.ErrClosedPipe
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.requestURL(), strings.NewReader(EncodePayload(packets)))
	if err != nil {
		return fmt.Errorf("create post request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post returned status %d", resp.StatusCode)
	}
	return nil
}

func (t *pollingTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *pollingTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

type websocketTransport struct {
	ws *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func dialWebsocket(ctx context.Context, dialer *websocket.Dialer, ep *endpoint, sid string) (*websocketTransport, error) {
	u := ep.url(TransportWebsocket, sid).String()
	ws, resp, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial websocket: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	ws.SetReadLimit(maxMessageSize)
	return &websocketTransport{ws: ws}, nil
}

func (t *websocketTransport) Name() string { return TransportWebsocket }

func (t *websocketTransport) Read(_ context.Context) ([]Packet, error) {
	msgType, data, err := t.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	if msgType == websocket.BinaryMessage {
		return []Packet{{Type: PacketMessage, Data: string(data)}}, nil
	}
	p, err := DecodePacket(string(data))
	if err != nil {
		return nil, err
	}
	return []Packet{p}, nil
}

func (t *websocketTransport) Write(_ context.Context, packets ...Packet) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	for _, p := range packets {
		_ = t.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := t.ws.WriteMessage(websocket.TextMessage, []byte(p.Encode())); err != nil {
			return err
		}
	}
	return nil
}

func (t *websocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		_ = t.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = t.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()
		err = t.ws.Close()
	})
	return err
}

// probe runs the Engine.IO upgrade handshake on a freshly dialed websocket.
func probe(ctx context.Context, ws *websocketTransport) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = ws.ws.SetReadDeadline(deadline)
		defer ws.ws.SetReadDeadline(time.Time{})
	}

	if err := ws.Write(ctx, Packet{Type: PacketPing, Data: "probe"}); err != nil {
		return fmt.Errorf("send probe: %w", err)
	}
	packets, err := ws.Read(ctx)
	if err != nil {
		return fmt.Errorf("read probe: %w", err)
	}
	if len(packets) != 1 || packets[0].Type != PacketPong || packets[0].Data != "probe" {
		return fmt.Errorf("unexpected probe response")
	}
	if err := ws.Write(ctx, Packet{Type: PacketUpgrade}); err != nil {
		return fmt.Errorf("send upgrade: %w", err)
	}
	return nil
}
