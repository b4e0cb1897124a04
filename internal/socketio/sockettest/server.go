// Package sockettest provides an in-process Engine.IO v4 / Socket.IO server
// for tests and local development. It supports the long-polling handshake,
// websocket upgrade probes and direct websocket connections.
package sockettest

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/eleven-am/vision-client/internal/socketio"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Config struct {
	PingInterval time.Duration
	PingTimeout  time.Duration
	// NoUpgrades hides websocket from the handshake's upgrade list.
	NoUpgrades bool
	// RejectConnect makes namespace connects fail with this message.
	RejectConnect string
	PollWait      time.Duration
	// SuppressPings advertises the ping interval but never sends pings.
	SuppressPings bool
	Logger        *slog.Logger
}

type ReceivedEvent struct {
	SID  string
	Name string
	Args []json.RawMessage
}

type Stats struct {
	PollingHandshakes   int
	WebsocketHandshakes int
	Upgrades            int
	NamespaceConnects   int
}

type EventHandler func(s *Server, sid string, name string, args []json.RawMessage)

type Server struct {
	cfg      Config
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session
	received []ReceivedEvent
	stats    Stats
	handler  EventHandler
	notify   chan struct{}
}

type session struct {
	sid       string
	outbox    chan string
	done      chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	ws        *websocket.Conn
	connected bool
}

func New(cfg Config) *Server {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 25 * time.Second
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 20 * time.Second
	}
	if cfg.PollWait <= 0 {
		cfg.PollWait = 250 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Server{
		cfg: cfg,
		log: cfg.Logger.With("component", "sockettest"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*session),
		notify:   make(chan struct{}, 1),
	}
}

// OnEvent registers the handler called for every event a client emits.
func (s *Server) OnEvent(h EventHandler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Server) Received() []ReceivedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ReceivedEvent, len(s.received))
	copy(out, s.received)
	return out
}

// WaitForEvents blocks until at least n events were received or timeout.
func (s *Server) WaitForEvents(n int, timeout time.Duration) []ReceivedEvent {
	deadline := time.After(timeout)
	for {
		if got := s.Received(); len(got) >= n {
			return got
		}
		select {
		case <-s.notify:
		case <-deadline:
			return s.Received()
		}
	}
}

func (s *Server) ConnectedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.isConnected() {
			n++
		}
	}
	return n
}

// Emit pushes an event to every client that joined the namespace.
func (s *Server) Emit(event string, args ...any) error {
	data, err := encodeEvent(event, args...)
	if err != nil {
		return err
	}
	for _, sess := range s.connectedSessions() {
		sess.send(data)
	}
	return nil
}

// EmitRaw pushes a pre-encoded JSON argument list, used to deliver payloads
// that a well-behaved encoder would never produce.
func (s *Server) EmitRaw(event string, rawArgs ...string) {
	name, _ := json.Marshal(event)
	data := "2[" + string(name)
	for _, a := range rawArgs {
		data += "," + a
	}
	data += "]"
	for _, sess := range s.connectedSessions() {
		sess.send(string(socketio.PacketMessage) + data)
	}
}

// Disconnect sends a namespace disconnect to every client.
func (s *Server) Disconnect() {
	for _, sess := range s.connectedSessions() {
		sess.send(string(socketio.PacketMessage) + socketio.SocketPacket{Type: socketio.SocketDisconnect}.Encode())
		sess.setConnected(false)
	}
}

// Drop tears down every session without a goodbye, as a crashed server would.
func (s *Server) Drop() {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for sid, sess := range s.sessions {
		sessions = append(sessions, sess)
		delete(s.sessions, sid)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
}

func (s *Server) Close() {
	s.Drop()
}

func (s *Server) connectedSessions() []*session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.isConnected() {
			out = append(out, sess)
		}
	}
	return out
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("EIO") != "4" {
		http.Error(w, "unsupported protocol version", http.StatusBadRequest)
		return
	}

	sid := q.Get("sid")
	switch q.Get("transport") {
	case socketio.TransportPolling:
		s.servePolling(w, r, sid)
	case socketio.TransportWebsocket:
		s.serveWebsocket(w, r, sid)
	default:
		http.Error(w, "unknown transport", http.StatusBadRequest)
	}
}

func (s *Server) newSession() *session {
	sess := &session{
		sid:    uuid.NewString(),
		outbox: make(chan string, 256),
		done:   make(chan struct{}),
	}
	s.mu.Lock()
	s.sessions[sess.sid] = sess
	s.mu.Unlock()

	if !s.cfg.SuppressPings {
		go s.pingLoop(sess)
	}
	return sess
}

func (s *Server) lookup(sid string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sid]
}

func (s *Server) remove(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.sid)
	s.mu.Unlock()
	sess.close()
}

func (s *Server) openPacket(sid string) string {
	upgrades := []string{socketio.TransportWebsocket}
	if s.cfg.NoUpgrades {
		upgrades = []string{}
	}
	info, _ := json.Marshal(socketio.OpenInfo{
		SID:          sid,
		Upgrades:     upgrades,
		PingInterval: int(s.cfg.PingInterval / time.Millisecond),
		PingTimeout:  int(s.cfg.PingTimeout / time.Millisecond),
		MaxPayload:   1000000,
	})
	return string(socketio.PacketOpen) + string(info)
}

func (s *Server) servePolling(w http.ResponseWriter, r *http.Request, sid string) {
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")

	if sid == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "handshake must be GET", http.StatusBadRequest)
			return
		}
		sess := s.newSession()
		s.mu.Lock()
		s.stats.PollingHandshakes++
		s.mu.Unlock()
		_, _ = io.WriteString(w, s.openPacket(sess.sid))
		return
	}

	sess := s.lookup(sid)
	if sess == nil {
		http.Error(w, "unknown sid", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		_, _ = io.WriteString(w, sess.drain(r, s.cfg.PollWait))
	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		packets, err := socketio.DecodePayload(string(body))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, p := range packets {
			s.handlePacket(sess, p)
		}
		_, _ = io.WriteString(w, "ok")
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request, sid string) {
	var sess *session
	if sid != "" {
		sess = s.lookup(sid)
		if sess == nil {
			http.Error(w, "unknown sid", http.StatusBadRequest)
			return
		}
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}

	if sess == nil {
		sess = s.newSession()
		s.mu.Lock()
		s.stats.WebsocketHandshakes++
		s.mu.Unlock()
		if err := ws.WriteMessage(websocket.TextMessage, []byte(s.openPacket(sess.sid))); err != nil {
			_ = ws.Close()
			s.remove(sess)
			return
		}
	} else if err := s.acceptProbe(ws); err != nil {
		s.log.Debug("probe failed", "error", err)
		_ = ws.Close()
		return
	} else {
		s.mu.Lock()
		s.stats.Upgrades++
		s.mu.Unlock()
	}

	sess.attach(ws)
	go sess.writePump(ws)
	s.readPump(sess, ws)
}

func (s *Server) acceptProbe(ws *websocket.Conn) error {
	_, data, err := ws.ReadMessage()
	if err != nil {
		return err
	}
	if string(data) != "2probe" {
		return fmt.Errorf("unexpected probe %q", data)
	}
	if err := ws.WriteMessage(websocket.TextMessage, []byte("3probe")); err != nil {
		return err
	}
	_, data, err = ws.ReadMessage()
	if err != nil {
		return err
	}
	if string(data) != string(socketio.PacketUpgrade) {
		return fmt.Errorf("expected upgrade packet, got %q", data)
	}
	return nil
}

func (s *Server) readPump(sess *session, ws *websocket.Conn) {
	defer s.remove(sess)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		p, err := socketio.DecodePacket(string(data))
		if err != nil {
			continue
		}
		if !s.handlePacket(sess, p) {
			return
		}
	}
}

// handlePacket returns false once the client closed the engine session.
func (s *Server) handlePacket(sess *session, p socketio.Packet) bool {
	switch p.Type {
	case socketio.PacketClose:
		s.remove(sess)
		return false
	case socketio.PacketMessage:
		s.handleSocketPacket(sess, p.Data)
	}
	return true
}

func (s *Server) handleSocketPacket(sess *session, data string) {
	sp, err := socketio.DecodeSocketPacket(data)
	if err != nil {
		return
	}

	switch sp.Type {
	case socketio.SocketConnect:
		if s.cfg.RejectConnect != "" {
			msg, _ := json.Marshal(map[string]string{"message": s.cfg.RejectConnect})
			sess.send(string(socketio.PacketMessage) + socketio.SocketPacket{Type: socketio.SocketConnectError, Data: msg}.Encode())
			return
		}
		reply, _ := json.Marshal(map[string]string{"sid": uuid.NewString()})
		sess.setConnected(true)
		s.mu.Lock()
		s.stats.NamespaceConnects++
		s.mu.Unlock()
		sess.send(string(socketio.PacketMessage) + socketio.SocketPacket{Type: socketio.SocketConnect, Data: reply}.Encode())
	case socketio.SocketDisconnect:
		sess.setConnected(false)
	case socketio.SocketEvent:
		var items []json.RawMessage
		if err := json.Unmarshal(sp.Data, &items); err != nil || len(items) == 0 {
			return
		}
		var name string
		if err := json.Unmarshal(items[0], &name); err != nil {
			return
		}

		ev := ReceivedEvent{SID: sess.sid, Name: name, Args: items[1:]}
		s.mu.Lock()
		s.received = append(s.received, ev)
		handler := s.handler
		s.mu.Unlock()

		select {
		case s.notify <- struct{}{}:
		default:
		}

		if handler != nil {
			handler(s, sess.sid, name, ev.Args)
		}
	}
}

// EmitTo pushes an event to a single session.
func (s *Server) EmitTo(sid, event string, args ...any) error {
	sess := s.lookup(sid)
	if sess == nil {
		return fmt.Errorf("unknown sid %s", sid)
	}
	data, err := encodeEvent(event, args...)
	if err != nil {
		return err
	}
	sess.send(data)
	return nil
}

func (s *Server) pingLoop(sess *session) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sess.send(string(socketio.PacketPing))
		case <-sess.done:
			return
		}
	}
}

func encodeEvent(event string, args ...any) (string, error) {
	items := append([]any{event}, args...)
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(socketio.PacketMessage) + socketio.SocketPacket{Type: socketio.SocketEvent, Data: data}.Encode(), nil
}

func (sess *session) send(packet string) {
	select {
	case sess.outbox <- packet:
	case <-sess.done:
	default:
	}
}

func (sess *session) drain(r *http.Request, wait time.Duration) string {
	var packets []string
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case p := <-sess.outbox:
		packets = append(packets, p)
	case <-timer.C:
		return string(socketio.PacketNoop)
	case <-sess.done:
		return string(socketio.PacketClose)
	case <-r.Context().Done():
		return string(socketio.PacketNoop)
	}

	for {
		select {
		case p := <-sess.outbox:
			packets = append(packets, p)
		default:
			return strings.Join(packets, "\x1e")
		}
	}
}

func (sess *session) attach(ws *websocket.Conn) {
	sess.mu.Lock()
	sess.ws = ws
	sess.mu.Unlock()
}

func (sess *session) writePump(ws *websocket.Conn) {
	for {
		select {
		case p := <-sess.outbox:
			if err := ws.WriteMessage(websocket.TextMessage, []byte(p)); err != nil {
				return
			}
		case <-sess.done:
			_ = ws.Close()
			return
		}
	}
}

func (sess *session) setConnected(v bool) {
	sess.mu.Lock()
	sess.connected = v
	sess.mu.Unlock()
}

func (sess *session) isConnected() bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.connected
}

func (sess *session) close() {
	sess.closeOnce.Do(func() {
		close(sess.done)
		sess.mu.Lock()
		ws := sess.ws
		sess.connected = false
		sess.mu.Unlock()
		if ws != nil {
			_ = ws.Close()
		}
	})
}
