package socketio

import (
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
)

type Options struct {
	URL        string
	Path       string
	Transports []string

	Upgrade         bool
	RememberUpgrade bool

	Reconnection         bool
	ReconnectionDelay    time.Duration
	ReconnectionDelayMax time.Duration
	RandomizationFactor  float64

	Timeout time.Duration

	HTTPClient *http.Client
	Dialer     *websocket.Dialer
}

func DefaultOptions(url string) Options {
	return Options{
		URL:                  url,
		Path:                 "/socket.io/",
		Transports:           []string{TransportPolling, TransportWebsocket},
		Upgrade:              true,
		RememberUpgrade:      true,
		Reconnection:         true,
		ReconnectionDelay:    time.Second,
		ReconnectionDelayMax: 5 * time.Second,
		RandomizationFactor:  0.5,
		Timeout:              20 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	if len(o.Transports) == 0 {
		o.Transports = []string{TransportPolling, TransportWebsocket}
	}
	if o.Timeout <= 0 {
		o.Timeout = 20 * time.Second
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	if o.Dialer == nil {
		o.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: o.Timeout,
		}
	}
	return o
}

func (o Options) allows(transportName string) bool {
	return slices.Contains(o.Transports, transportName)
}
