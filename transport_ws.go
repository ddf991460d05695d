package mqttiot

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketSubprotocol is the MQTT WebSocket subprotocol name brokers and
// clients negotiate during the WebSocket handshake.
const WebSocketSubprotocol = "mqtt"

// wsTransportHandle adapts a *websocket.Conn, which frames messages, to
// the push-callback TransportHandle contract, which deals in raw byte
// chunks. Each inbound binary WebSocket message is delivered to the
// callback as one chunk.
type wsTransportHandle struct {
	conn *websocket.Conn

	mu       sync.Mutex
	callback func([]byte, error)
	started  bool
	closed   bool
}

func newWSTransportHandle(conn *websocket.Conn) *wsTransportHandle {
	return &wsTransportHandle{conn: conn}
}

func (h *wsTransportHandle) Send(b []byte) (int, error) {
	if err := h.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (h *wsTransportHandle) SetReceiveCallback(fn func([]byte, error)) {
	h.mu.Lock()
	h.callback = fn
	already := h.started
	h.started = true
	h.mu.Unlock()

	if !already {
		go h.readLoop()
	}
}

func (h *wsTransportHandle) readLoop() {
	for {
		messageType, data, err := h.conn.ReadMessage()

		h.mu.Lock()
		cb := h.callback
		closed := h.closed
		h.mu.Unlock()
		if closed || cb == nil {
			return
		}

		if err != nil {
			cb(nil, err)
			return
		}
		if messageType != websocket.BinaryMessage {
			cb(nil, ErrProtocolViolation)
			return
		}
		cb(data, nil)
	}
}

func (h *wsTransportHandle) RemoteAddr() net.Addr {
	return h.conn.RemoteAddr()
}

func (h *wsTransportHandle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return h.conn.Close()
}

// WSTransport dials MQTT brokers over WebSocket (ws:// or wss://).
type WSTransport struct {
	// Dialer is the underlying WebSocket dialer. A nil Dialer uses
	// websocket.DefaultDialer, which requests no subprotocol;
	// NewWSTransport sets a Dialer that requests the MQTT subprotocol.
	Dialer *websocket.Dialer

	// Header is the HTTP header sent with the handshake.
	Header http.Header
}

// NewWSTransport creates a WSTransport with the MQTT subprotocol set.
func NewWSTransport() *WSTransport {
	return &WSTransport{
		Dialer: &websocket.Dialer{
			Subprotocols:    []string{WebSocketSubprotocol},
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Create dials addr over WebSocket.
func (t *WSTransport) Create(ctx context.Context, addr string) (TransportHandle, error) {
	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	header := t.Header
	if header == nil {
		header = http.Header{}
	}

	conn, _, err := dialer.DialContext(ctx, addr, header)
	if err != nil {
		return nil, err
	}

	return newWSTransportHandle(conn), nil
}
