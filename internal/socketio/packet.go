package socketio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Engine.IO v4 packet types.
type PacketType byte

const (
	PacketOpen    PacketType = '0'
	PacketClose   PacketType = '1'
	PacketPing    PacketType = '2'
	PacketPong    PacketType = '3'
	PacketMessage PacketType = '4'
	PacketUpgrade PacketType = '5'
	PacketNoop    PacketType = '6'
)

// recordSeparator joins packets in a long-polling payload.
const recordSeparator = "\x1e"

type Packet struct {
	Type PacketType
	Data string
}

func (p Packet) Encode() string {
	return string(p.Type) + p.Data
}

func DecodePacket(s string) (Packet, error) {
	if s == "" {
		return Packet{}, fmt.Errorf("empty packet")
	}
	t := PacketType(s[0])
	if t < PacketOpen || t > PacketNoop {
		return Packet{}, fmt.Errorf("invalid packet type %q", s[0])
	}
	return Packet{Type: t, Data: s[1:]}, nil
}

func EncodePayload(packets []Packet) string {
	parts := make([]string, len(packets))
	for i, p := range packets {
		parts[i] = p.Encode()
	}
	return strings.Join(parts, recordSeparator)
}

func DecodePayload(body string) ([]Packet, error) {
	if body == "" {
		return nil, nil
	}
	parts := strings.Split(body, recordSeparator)
	packets := make([]Packet, 0, len(parts))
	for _, part := range parts {
		p, err := DecodePacket(part)
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
	}
	return packets, nil
}

type OpenInfo struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

func parseOpen(p Packet) (*OpenInfo, error) {
	if p.Type != PacketOpen {
		return nil, fmt.Errorf("expected open packet, got %q", byte(p.Type))
	}
	var info OpenInfo
	if err := json.Unmarshal([]byte(p.Data), &info); err != nil {
		return nil, fmt.Errorf("decode open packet: %w", err)
	}
	if info.SID == "" {
		return nil, fmt.Errorf("open packet without sid")
	}
	return &info, nil
}

// Socket.IO v5 packet types, carried inside Engine.IO message packets.
type SocketType byte

const (
	SocketConnect      SocketType = '0'
	SocketDisconnect   SocketType = '1'
	SocketEvent        SocketType = '2'
	SocketAck          SocketType = '3'
	SocketConnectError SocketType = '4'
	SocketBinaryEvent  SocketType = '5'
	SocketBinaryAck    SocketType = '6'
)

type SocketPacket struct {
	Type      SocketType
	Namespace string
	ID        *int
	Data      json.RawMessage
}

func (p SocketPacket) Encode() string {
	var b strings.Builder
	b.WriteByte(byte(p.Type))
	if p.Namespace != "" && p.Namespace != "/" {
		b.WriteString(p.Namespace)
		b.WriteByte(',')
	}
	if p.ID != nil {
		b.WriteString(strconv.Itoa(*p.ID))
	}
	b.Write(p.Data)
	return b.String()
}

func DecodeSocketPacket(s string) (SocketPacket, error) {
	if s == "" {
		return SocketPacket{}, fmt.Errorf("empty socket packet")
	}
	p := SocketPacket{Type: SocketType(s[0]), Namespace: "/"}
	if p.Type < SocketConnect || p.Type > SocketBinaryAck {
		return SocketPacket{}, fmt.Errorf("invalid socket packet type %q", s[0])
	}
	rest := s[1:]

	if p.Type == SocketBinaryEvent || p.Type == SocketBinaryAck {
		i := strings.IndexByte(rest, '-')
		if i < 0 {
			return SocketPacket{}, fmt.Errorf("binary packet without attachment count")
		}
		rest = rest[i+1:]
	}

	if strings.HasPrefix(rest, "/") {
		i := strings.IndexByte(rest, ',')
		if i < 0 {
			p.Namespace, rest = rest, ""
		} else {
			p.Namespace, rest = rest[:i], rest[i+1:]
		}
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.Atoi(rest[:digits])
		if err != nil {
			return SocketPacket{}, fmt.Errorf("invalid packet id: %w", err)
		}
		p.ID = &id
		rest = rest[digits:]
	}

	if rest != "" {
		if !json.Valid([]byte(rest)) {
			return SocketPacket{}, fmt.Errorf("invalid socket packet data")
		}
		p.Data = json.RawMessage(rest)
	}
	return p, nil
}

func encodeEvent(event string, args ...any) (SocketPacket, error) {
	items := make([]any, 0, len(args)+1)
	items = append(items, event)
	items = append(items, args...)

	data, err := json.Marshal(items)
	if err != nil {
		return SocketPacket{}, fmt.Errorf("encode event %s: %w", event, err)
	}
	return SocketPacket{Type: SocketEvent, Data: data}, nil
}

// decodeEvent splits an event packet's data into the event name and raw args.
func decodeEvent(data json.RawMessage) (string, []json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return "", nil, fmt.Errorf("decode event: %w", err)
	}
	if len(items) == 0 {
		return "", nil, fmt.Errorf("event without name")
	}
	var name string
	if err := json.Unmarshal(items[0], &name); err != nil {
		return "", nil, fmt.Errorf("decode event name: %w", err)
	}
	return name, items[1:], nil
}

// connectErrorMessage extracts the reason from a CONNECT_ERROR payload, which
// is either {"message": "..."} or a bare string.
func connectErrorMessage(data json.RawMessage) string {
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil && s != "" {
		return s
	}
	if len(bytes.TrimSpace(data)) > 0 {
		return string(data)
	}
	return "connect error"
}
