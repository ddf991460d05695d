package mqttiot

import (
	"context"
	"crypto/tls"
	"net"
	"sync"

	"github.com/quic-go/quic-go"
)

// quicTransportHandle adapts a QUIC stream opened over a QUIC connection
// to the push-callback TransportHandle contract.
type quicTransportHandle struct {
	conn   quic.Connection
	stream quic.Stream

	mu       sync.Mutex
	callback func([]byte, error)
	started  bool
	closed   bool
}

func newQUICTransportHandle(conn quic.Connection, stream quic.Stream) *quicTransportHandle {
	return &quicTransportHandle{conn: conn, stream: stream}
}

func (h *quicTransportHandle) Send(b []byte) (int, error) {
	return h.stream.Write(b)
}

func (h *quicTransportHandle) SetReceiveCallback(fn func([]byte, error)) {
	h.mu.Lock()
	h.callback = fn
	already := h.started
	h.started = true
	h.mu.Unlock()

	if !already {
		go h.readLoop()
	}
}

func (h *quicTransportHandle) readLoop() {
	buf := make([]byte, 32*1024)
	for {
		n, err := h.stream.Read(buf)

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

func (h *quicTransportHandle) RemoteAddr() net.Addr {
	return h.conn.RemoteAddr()
}

func (h *quicTransportHandle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	if err := h.stream.Close(); err != nil {
		return err
	}
	return h.conn.CloseWithError(0, "")
}

// QUICTransport dials MQTT brokers over QUIC. QUIC mandates TLS 1.3, so a
// TLSConfig is always applied, defaulted to the "mqtt" ALPN protocol.
type QUICTransport struct {
	// TLSConfig is the TLS configuration for the QUIC connection.
	TLSConfig *tls.Config

	// QUICConfig is the QUIC transport configuration.
	QUICConfig *quic.Config
}

// NewQUICTransport creates a QUICTransport with the given TLS config,
// defaulting to TLS 1.3 and the "mqtt" ALPN protocol if tlsConfig is nil.
func NewQUICTransport(tlsConfig *tls.Config) *QUICTransport {
	if tlsConfig == nil {
		tlsConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
			NextProtos: []string{"mqtt"},
		}
	}
	return &QUICTransport{TLSConfig: tlsConfig}
}

// Create dials addr over QUIC and opens a single bidirectional stream
// that carries the MQTT byte stream.
func (t *QUICTransport) Create(ctx context.Context, addr string) (TransportHandle, error) {
	tlsConfig := t.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS13}
	}
	if len(tlsConfig.NextProtos) == 0 {
		tlsConfig = tlsConfig.Clone()
		tlsConfig.NextProtos = []string{"mqtt"}
	}

	conn, err := quic.DialAddr(ctx, addr, tlsConfig, t.QUICConfig)
	if err != nil {
		return nil, err
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "failed to open stream")
		return nil, err
	}

	return newQUICTransportHandle(conn, stream), nil
}
