package socketio

import (
	"encoding/json"
	"testing"
)

func TestDecodePacket(t *testing.T) {
	tests := []struct {
		in      string
		want    Packet
		wantErr bool
	}{
		{"2", Packet{Type: PacketPing}, false},
		{"3probe", Packet{Type: PacketPong, Data: "probe"}, false},
		{`42["x"]`, Packet{Type: PacketMessage, Data: `2["x"]`}, false},
		{"", Packet{}, true},
		{"9", Packet{}, true},
	}

	for _, tt := range tests {
		got, err := DecodePacket(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("DecodePacket(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("DecodePacket(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	packets := []Packet{
		{Type: PacketMessage, Data: `2["a",{"k":1}]`},
		{Type: PacketPing},
		{Type: PacketMessage, Data: "0"},
	}

	encoded := EncodePayload(packets)
	if encoded != "42[\"a\",{\"k\":1}]\x1e2\x1e40" {
		t.Fatalf("unexpected payload %q", encoded)
	}

	decoded, err := DecodePayload(encoded)
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if len(decoded) != len(packets) {
		t.Fatalf("expected %d packets, got %d", len(packets), len(decoded))
	}
	for i := range packets {
		if decoded[i] != packets[i] {
			t.Errorf("packet %d: got %#v, want %#v", i, decoded[i], packets[i])
		}
	}
}

func TestParseOpen(t *testing.T) {
	info, err := parseOpen(Packet{Type: PacketOpen, Data: `{"sid":"abc","upgrades":["websocket"],"pingInterval":25000,"pingTimeout":20000}`})
	if err != nil {
		t.Fatalf("parseOpen failed: %v", err)
	}
	if info.SID != "abc" || len(info.Upgrades) != 1 || info.PingInterval != 25000 {
		t.Errorf("unexpected open info %#v", info)
	}

	if _, err := parseOpen(Packet{Type: PacketOpen, Data: `{}`}); err == nil {
		t.Error("expected error for missing sid")
	}
	if _, err := parseOpen(Packet{Type: PacketMessage, Data: `{}`}); err == nil {
		t.Error("expected error for non-open packet")
	}
}

func TestDecodeSocketPacket(t *testing.T) {
	p, err := DecodeSocketPacket(`2["ai_response",{"answer":"hi"}]`)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if p.Type != SocketEvent || p.Namespace != "/" || p.ID != nil {
		t.Errorf("unexpected packet %#v", p)
	}

	p, err = DecodeSocketPacket(`2/admin,12["x"]`)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if p.Namespace != "/admin" || p.ID == nil || *p.ID != 12 || string(p.Data) != `["x"]` {
		t.Errorf("unexpected packet %#v", p)
	}

	p, err = DecodeSocketPacket(`0{"sid":"s1"}`)
	if err != nil || p.Type != SocketConnect {
		t.Errorf("unexpected connect packet %#v err=%v", p, err)
	}

	p, err = DecodeSocketPacket(`51-["bin",{"_placeholder":true,"num":0}]`)
	if err != nil || p.Type != SocketBinaryEvent {
		t.Errorf("unexpected binary packet %#v err=%v", p, err)
	}

	if _, err := DecodeSocketPacket(`2[broken`); err == nil {
		t.Error("expected error for invalid data")
	}
	if _, err := DecodeSocketPacket(`x`); err == nil {
		t.Error("expected error for invalid type")
	}
}

func TestSocketPacketEncode(t *testing.T) {
	id := 3
	tests := []struct {
		p    SocketPacket
		want string
	}{
		{SocketPacket{Type: SocketConnect}, "0"},
		{SocketPacket{Type: SocketDisconnect, Namespace: "/"}, "1"},
		{SocketPacket{Type: SocketEvent, Namespace: "/chat", ID: &id, Data: json.RawMessage(`["a"]`)}, `2/chat,3["a"]`},
	}
	for _, tt := range tests {
		if got := tt.p.Encode(); got != tt.want {
			t.Errorf("Encode() = %q, want %q", got, tt.want)
		}
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	pkt, err := encodeEvent("ask_question", map[string]string{"question": "what is this?"})
	if err != nil {
		t.Fatalf("encodeEvent failed: %v", err)
	}
	if got := pkt.Encode(); got != `2["ask_question",{"question":"what is this?"}]` {
		t.Errorf("unexpected encoding %s", got)
	}

	name, args, err := decodeEvent(pkt.Data)
	if err != nil {
		t.Fatalf("decodeEvent failed: %v", err)
	}
	if name != "ask_question" || len(args) != 1 {
		t.Errorf("unexpected decode %s %v", name, args)
	}

	pkt, _ = encodeEvent("analyze_scene")
	if got := pkt.Encode(); got != `2["analyze_scene"]` {
		t.Errorf("unexpected encoding %s", got)
	}

	if _, _, err := decodeEvent(json.RawMessage(`[]`)); err == nil {
		t.Error("expected error for empty event")
	}
	if _, _, err := decodeEvent(json.RawMessage(`[1]`)); err == nil {
		t.Error("expected error for non-string name")
	}
}

func TestConnectErrorMessage(t *testing.T) {
	tests := map[string]string{
		`{"message":"not authorized"}`: "not authorized",
		`"plain"`:                      "plain",
		`{"code":1}`:                   `{"code":1}`,
		``:                             "connect error",
	}
	for in, want := range tests {
		if got := connectErrorMessage(json.RawMessage(in)); got != want {
			t.Errorf("connectErrorMessage(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestEndpointURL(t *testing.T) {
	ep, err := newEndpoint("http://127.0.0.1:5000", "")
	if err != nil {
		t.Fatalf("newEndpoint failed: %v", err)
	}

	polling := ep.url(TransportPolling, "")
	if polling.String() != "http://127.0.0.1:5000/socket.io/?EIO=4&transport=polling" {
		t.Errorf("unexpected polling url %s", polling)
	}

	ws := ep.url(TransportWebsocket, "abc")
	if ws.String() != "ws://127.0.0.1:5000/socket.io/?EIO=4&sid=abc&transport=websocket" {
		t.Errorf("unexpected websocket url %s", ws)
	}

	secure, _ := newEndpoint("wss://example.com/app", "custom")
	if got := secure.url(TransportWebsocket, "").String(); got != "wss://example.com/app/custom/?EIO=4&transport=websocket" {
		t.Errorf("unexpected secure url %s", got)
	}

	if _, err := newEndpoint("ftp://example.com", ""); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}
