package mqttiot

import (
	"context"
	"net"
)

// UnixTransport dials MQTT brokers over a Unix domain socket, typically a
// broker and client colocated on the same host.
type UnixTransport struct{}

// NewUnixTransport creates a UnixTransport.
func NewUnixTransport() *UnixTransport {
	return &UnixTransport{}
}

// Create dials the Unix socket at addr (a filesystem path).
func (t *UnixTransport) Create(ctx context.Context, addr string) (TransportHandle, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", addr)
	if err != nil {
		return nil, err
	}
	return newStreamTransportHandle(conn), nil
}
