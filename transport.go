package mqttiot

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"
)

// TransportHandle is an open byte-stream connection to a broker. Received
// bytes are pushed to the callback registered with SetReceiveCallback
// rather than pulled with Read, so a Connection never blocks waiting on
// the network — it reacts to whatever the transport hands it next.
type TransportHandle interface {
	// Send writes b to the connection, returning the number of bytes
	// written before any error.
	Send(b []byte) (int, error)

	// SetReceiveCallback installs the function invoked with each chunk of
	// bytes read off the wire, or a non-nil error once the connection can
	// no longer be read from (including a clean close). It must be called
	// before the handle begins delivering data and is not safe to change
	// concurrently with reads already in flight.
	SetReceiveCallback(fn func(data []byte, err error))

	// RemoteAddr returns the address of the peer, if known.
	RemoteAddr() net.Addr

	// Close tears the connection down.
	Close() error
}

// Transport creates TransportHandles for a given scheme (tcp, tls, ws,
// wss, quic, unix). A Runtime-level client picks the Transport matching
// the broker URL scheme it was configured with.
type Transport interface {
	// Create dials addr and returns a handle once the underlying
	// connection is established; it does not block on MQTT handshake
	// traffic, only on the transport-level connect.
	Create(ctx context.Context, addr string) (TransportHandle, error)
}

// streamTransportHandle adapts a net.Conn (TCP or TLS) to the
// push-callback TransportHandle contract with a single background reader
// goroutine per connection.
type streamTransportHandle struct {
	conn net.Conn

	mu       sync.Mutex
	callback func([]byte, error)
	started  bool
	closed   bool
}

func newStreamTransportHandle(conn net.Conn) *streamTransportHandle {
	return &streamTransportHandle{conn: conn}
}

func (h *streamTransportHandle) Send(b []byte) (int, error) {
	return h.conn.Write(b)
}

func (h *streamTransportHandle) SetReceiveCallback(fn func([]byte, error)) {
	h.mu.Lock()
	h.callback = fn
	already := h.started
	h.started = true
	h.mu.Unlock()

	if !already {
		go h.readLoop()
	}
}

func (h *streamTransportHandle) readLoop() {
	buf := make([]byte, 32*1024)
	for {
		n, err := h.conn.Read(buf)
		h.mu.Lock()
		cb := h.callback
		closed := h.closed
		h.mu.Unlock()
		if closed || cb == nil {
			return
		}
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			cb(chunk, nil)
		}
		if err != nil {
			cb(nil, err)
			return
		}
	}
}

func (h *streamTransportHandle) RemoteAddr() net.Addr {
	return h.conn.RemoteAddr()
}

func (h *streamTransportHandle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return h.conn.Close()
}

// TCPTransport dials plain TCP connections.
type TCPTransport struct {
	// Timeout is the maximum time to wait for the TCP handshake. Zero
	// means no timeout beyond ctx's own deadline.
	Timeout time.Duration
}

// Create dials addr over TCP.
func (t *TCPTransport) Create(ctx context.Context, addr string) (TransportHandle, error) {
	dialer := net.Dialer{Timeout: t.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return newStreamTransportHandle(conn), nil
}

// TLSTransport dials TCP connections wrapped in TLS.
type TLSTransport struct {
	// Config is the TLS configuration used for the handshake. A nil
	// Config uses Go's defaults (system root CAs, no client cert).
	Config *tls.Config

	// Timeout is the maximum time to wait for the combined TCP+TLS
	// handshake. Zero means no timeout beyond ctx's own deadline.
	Timeout time.Duration
}

// Create dials addr over TLS.
func (t *TLSTransport) Create(ctx context.Context, addr string) (TransportHandle, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: t.Timeout},
		Config:    t.Config,
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return newStreamTransportHandle(conn), nil
}
