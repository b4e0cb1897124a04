package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	ReasonTransportClose   = "transport close"
	ReasonTransportError   = "transport error"
	ReasonPingTimeout      = "ping timeout"
	ReasonServerDisconnect = "io server disconnect"
	ReasonClientDisconnect = "io client disconnect"

	defaultPingInterval = 25 * time.Second
	defaultPingTimeout  = 20 * time.Second
	outboundBuffer      = 128
	maxBatch            = 32
)

type sessionCallbacks struct {
	onConnect func(s *engineSession)
	onEvent   func(ctx context.Context, name string, args []json.RawMessage)
}

// engineSession is one Engine.IO session with the "/" namespace joined on top.
type engineSession struct {
	tr   transport
	info *OpenInfo
	log  *slog.Logger
	cb   sessionCallbacks

	ctx    context.Context
	cancel context.CancelFunc

	outbound      chan Packet
	connectResult chan error
	heartbeat     *time.Timer
	heartbeatWait time.Duration

	closeOnce sync.Once
	closed    chan struct{}
	reason    string
	wg        sync.WaitGroup
}

func newEngineSession(tr transport, info *OpenInfo, log *slog.Logger, cb sessionCallbacks) *engineSession {
	interval := time.Duration(info.PingInterval) * time.Millisecond
	if interval <= 0 {
		interval = defaultPingInterval
	}
	timeout := time.Duration(info.PingTimeout) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}

	return &engineSession{
		tr:            tr,
		info:          info,
		log:           log.With("sid", info.SID, "transport", tr.Name()),
		cb:            cb,
		outbound:      make(chan Packet, outboundBuffer),
		connectResult: make(chan error, 1),
		heartbeatWait: interval + timeout,
		closed:        make(chan struct{}),
	}
}

func (s *engineSession) start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.heartbeat = time.AfterFunc(s.heartbeatWait, func() {
		s.log.Warn("no ping from server", "wait", s.heartbeatWait)
		s.close(ReasonPingTimeout)
	})

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
}

func (s *engineSession) TransportName() string {
	return s.tr.Name()
}

func (s *engineSession) Done() <-chan struct{} {
	return s.closed
}

// Reason is valid once Done is closed.
func (s *engineSession) Reason() string {
	<-s.closed
	return s.reason
}

func (s *engineSession) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *engineSession) connectNamespace(ctx context.Context) error {
	if !s.enqueue(Packet{Type: PacketMessage, Data: SocketPacket{Type: SocketConnect}.Encode()}) {
		return fmt.Errorf("queue connect packet: session closed")
	}

	select {
	case err := <-s.connectResult:
		return err
	case <-s.closed:
		return fmt.Errorf("connection closed during connect: %s", s.reason)
	case <-ctx.Done():
		return fmt.Errorf("connect timeout: %w", ctx.Err())
	}
}

func (s *engineSession) enqueue(p Packet) bool {
	if s.isClosed() {
		return false
	}
	select {
	case s.outbound <- p:
		return true
	case <-s.closed:
		return false
	default:
		s.log.Warn("send buffer full, dropping packet")
		return false
	}
}

func (s *engineSession) readLoop() {
	defer s.wg.Done()

	for {
		packets, err := s.tr.Read(s.ctx)
		if err != nil {
			s.close(readFailureReason(err))
			return
		}

		for _, p := range packets {
			s.heartbeat.Reset(s.heartbeatWait)

			switch p.Type {
			case PacketPing:
				s.enqueue(Packet{Type: PacketPong, Data: p.Data})
			case PacketClose:
				s.close(ReasonTransportClose)
				return
			case PacketMessage:
				s.handleMessage(p.Data)
			case PacketNoop, PacketPong:
			default:
				s.log.Debug("ignoring packet", "type", string(p.Type))
			}
		}
	}
}

func (s *engineSession) handleMessage(data string) {
	sp, err := DecodeSocketPacket(data)
	if err != nil {
		s.log.Warn("failed to decode socket packet", "error", err)
		return
	}
	if sp.Namespace != "/" {
		return
	}

	switch sp.Type {
	case SocketConnect:
		if s.cb.onConnect != nil {
			s.cb.onConnect(s)
		}
		s.signalConnect(nil)
	case SocketConnectError:
		s.signalConnect(errors.New(connectErrorMessage(sp.Data)))
	case SocketDisconnect:
		s.close(ReasonServerDisconnect)
	case SocketEvent:
		name, args, err := decodeEvent(sp.Data)
		if err != nil {
			s.log.Warn("failed to decode event", "error", err)
			return
		}
		if s.cb.onEvent != nil {
			s.cb.onEvent(s.ctx, name, args)
		}
	case SocketBinaryEvent, SocketBinaryAck:
		s.log.Warn("binary packets are not supported, dropping")
	case SocketAck:
	}
}

func (s *engineSession) signalConnect(err error) {
	select {
	case s.connectResult <- err:
	default:
	}
}

func (s *engineSession) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case p := <-s.outbound:
			batch := []Packet{p}
		drain:
			for len(batch) < maxBatch {
				select {
				case next := <-s.outbound:
					batch = append(batch, next)
				default:
					break drain
				}
			}

			if err := s.tr.Write(s.ctx, batch...); err != nil {
				if s.ctx.Err() == nil {
					s.log.Error("write failed", "error", err)
				}
				s.close(ReasonTransportError)
				return
			}
		case <-s.closed:
			return
		}
	}
}

// shutdown leaves the namespace and closes the engine session.
func (s *engineSession) shutdown() {
	if s.isClosed() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := s.tr.Write(ctx,
		Packet{Type: PacketMessage, Data: SocketPacket{Type: SocketDisconnect}.Encode()},
		Packet{Type: PacketClose},
	)
	if err != nil {
		s.log.Debug("failed to send close packets", "error", err)
	}
	s.close(ReasonClientDisconnect)
}

func (s *engineSession) close(reason string) {
	s.closeOnce.Do(func() {
		s.reason = reason
		if s.heartbeat != nil {
			s.heartbeat.Stop()
		}
		if s.cancel != nil {
			s.cancel()
		}
		close(s.closed)
		_ = s.tr.Close()
	})
}

func readFailureReason(err error) string {
	var closeErr *websocket.CloseError
	switch {
	case errors.As(err, &closeErr), errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		return ReasonTransportClose
	default:
		return ReasonTransportError
	}
}
