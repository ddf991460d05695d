package mqttiot

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
)

// Client is the thin public surface over a Connection: every call here
// validates nothing itself and schedules nothing itself — it delegates
// straight to the Connection methods that implement the actual
// connect/publish/subscribe/unsubscribe/disconnect/wait semantics.
type Client struct {
	cfg *clientConfig

	mu     sync.Mutex
	conn   *Connection
	closed atomic.Bool
}

// NewClient builds a Client against the given options. It does not dial
// anything — call Connect to establish a session.
func NewClient(opts ...ClientOption) *Client {
	return &Client{cfg: applyClientOptions(opts...)}
}

// Connect establishes a session against the broker described by
// addr (a URL such as "tcp://host:1883", "tls://host:8883",
// "ws://host:8080/mqtt", "wss://host:8080/mqtt", "quic://host:4433" or
// "unix:///path/to/socket") and the given ConnectInfo. It blocks until
// CONNACK arrives or timeout elapses, returning whether the broker
// reported a restored session.
func (c *Client) Connect(ctx context.Context, addr string, info *ConnectInfo) (bool, error) {
	if c.closed.Load() {
		return false, ErrClientClosed
	}

	transport, address, err := c.resolveTransport(addr)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return false, ErrConnected
	}
	conn := newConnection(c.cfg.runtime, info.AWSMode)
	c.mu.Unlock()

	net := &NetworkInfo{Transport: transport, Address: address, OwnNetwork: true}
	sessionPresent, status, err := conn.connect(ctx, net, info, c.cfg.connectTimeout)
	if err != nil {
		return false, err
	}
	if status != StatusSuccess {
		return false, NewOperationError(status, OpConnect, 0)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	return sessionPresent, nil
}

// ConnectHandle establishes a session over an already-open
// TransportHandle, handing ownership of it to the Connection (ownNetwork
// controls whether Disconnect/teardown closes it).
func (c *Client) ConnectHandle(ctx context.Context, handle TransportHandle, ownNetwork bool, info *ConnectInfo) (bool, error) {
	if c.closed.Load() {
		return false, ErrClientClosed
	}

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return false, ErrConnected
	}
	conn := newConnection(c.cfg.runtime, info.AWSMode)
	c.mu.Unlock()

	net := &NetworkInfo{Handle: handle, OwnNetwork: ownNetwork}
	sessionPresent, status, err := conn.connect(ctx, net, info, c.cfg.connectTimeout)
	if err != nil {
		return false, err
	}
	if status != StatusSuccess {
		return false, NewOperationError(status, OpConnect, 0)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	return sessionPresent, nil
}

func (c *Client) resolveTransport(addr string) (Transport, string, error) {
	if c.cfg.transport != nil {
		return c.cfg.transport, addr, nil
	}

	u, err := url.Parse(addr)
	if err != nil {
		return nil, "", fmt.Errorf("mqttiot: invalid broker address %q: %w", addr, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "tcp", "mqtt":
		if c.cfg.proxy != nil {
			pt, err := NewProxyTransport(c.cfg.proxy.URL, c.cfg.proxy.Username, c.cfg.proxy.Password, nil)
			if err != nil {
				return nil, "", err
			}
			return pt, u.Host, nil
		}
		return &TCPTransport{}, u.Host, nil
	case "tls", "mqtts", "ssl":
		if c.cfg.proxy != nil {
			pt, err := NewProxyTransport(c.cfg.proxy.URL, c.cfg.proxy.Username, c.cfg.proxy.Password, c.tlsConfig())
			if err != nil {
				return nil, "", err
			}
			return pt, u.Host, nil
		}
		return &TLSTransport{Config: c.tlsConfig()}, u.Host, nil
	case "ws":
		return NewWSTransport(), addr, nil
	case "wss":
		t := NewWSTransport()
		t.Dialer.TLSClientConfig = c.tlsConfig()
		return t, addr, nil
	case "quic":
		return NewQUICTransport(c.tlsConfig()), u.Host, nil
	case "unix":
		return NewUnixTransport(), u.Path, nil
	default:
		return nil, "", fmt.Errorf("mqttiot: unsupported broker scheme %q", u.Scheme)
	}
}

func (c *Client) tlsConfig() *tls.Config {
	if c.cfg.tlsConfig != nil {
		return c.cfg.tlsConfig
	}
	return &tls.Config{}
}

func (c *Client) activeConn() (*Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

// Publish enqueues a PUBLISH and returns immediately (QoS0) or once the
// operation has been accepted onto pending-send (QoS1) — it does not
// wait for PUBACK. Use TimedPublish to block for acknowledgement.
func (c *Client) Publish(info *PublishInfo) error {
	conn, err := c.activeConn()
	if err != nil {
		return err
	}
	_, status, err := conn.publish(info, false, nil)
	if err != nil {
		return err
	}
	if status != StatusPending && status != StatusSuccess {
		return NewOperationError(status, OpPublish, 0)
	}
	return nil
}

// PublishAsync enqueues a PUBLISH and invokes cb exactly once with the
// terminal error (nil on success) once the operation completes, or with
// a non-nil error immediately if it could not even be enqueued.
func (c *Client) PublishAsync(info *PublishInfo, cb func(err error)) error {
	conn, err := c.activeConn()
	if err != nil {
		return err
	}
	_, status, err := conn.publish(info, false, func(_ Status, cbErr error) { cb(cbErr) })
	if err != nil {
		return err
	}
	if status != StatusPending && status != StatusSuccess {
		return NewOperationError(status, OpPublish, 0)
	}
	return nil
}

// TimedPublish enqueues a PUBLISH and, for QoS1, blocks up to the
// client's configured response wait for PUBACK; a QoS0 PUBLISH returns
// once it is enqueued. A PUBLISH refused because the connection is
// already disconnected is reported as an *OperationError with
// StatusNetworkError that also matches ErrNotConnected.
func (c *Client) TimedPublish(info *PublishInfo) error {
	conn, err := c.activeConn()
	if err != nil {
		return err
	}
	op, status, err := conn.publish(info, true, nil)
	if err != nil {
		if status == StatusNetworkError {
			return &OperationError{Status: status, OpType: OpPublish, err: fmt.Errorf("%w: %w", ErrNetworkError, err)}
		}
		return err
	}
	if status == StatusSuccess {
		return nil
	}
	final := conn.wait(op, c.cfg.responseWait)
	if final != StatusSuccess {
		return NewOperationError(final, OpPublish, op.packetID)
	}
	return nil
}

// Subscribe registers topic filters and their callbacks, returning once
// the SUBSCRIBE has been accepted onto pending-send. Use TimedSubscribe
// to block for SUBACK.
func (c *Client) Subscribe(subs []Subscription, handlers []MessageHandler) error {
	conn, err := c.activeConn()
	if err != nil {
		return err
	}
	_, status, err := conn.subscribe(subs, handlers, 0)
	if err != nil {
		return err
	}
	if status != StatusPending {
		return NewOperationError(status, OpSubscribe, 0)
	}
	return nil
}

// TimedSubscribe registers topic filters and blocks up to the client's
// configured response wait for SUBACK. On timeout, any provisionally
// added subscription records for this SUBSCRIBE are removed.
func (c *Client) TimedSubscribe(subs []Subscription, handlers []MessageHandler) error {
	conn, err := c.activeConn()
	if err != nil {
		return err
	}
	op, status, err := conn.subscribe(subs, handlers, FlagWaitable)
	if err != nil {
		return err
	}
	if status != StatusPending {
		return NewOperationError(status, OpSubscribe, 0)
	}
	final := conn.wait(op, c.cfg.responseWait)
	if final != StatusSuccess {
		return NewOperationError(final, OpSubscribe, op.packetID)
	}
	return nil
}

// Unsubscribe removes topic filters, returning once the UNSUBSCRIBE has
// been accepted onto pending-send. Use TimedUnsubscribe to block for
// UNSUBACK.
func (c *Client) Unsubscribe(filters ...string) error {
	conn, err := c.activeConn()
	if err != nil {
		return err
	}
	_, status, err := conn.unsubscribe(filters)
	if err != nil {
		return err
	}
	if status != StatusPending {
		return NewOperationError(status, OpUnsubscribe, 0)
	}
	return nil
}

// TimedUnsubscribe removes topic filters and blocks up to the client's
// configured response wait for UNSUBACK.
func (c *Client) TimedUnsubscribe(filters ...string) error {
	conn, err := c.activeConn()
	if err != nil {
		return err
	}
	op, status, err := conn.unsubscribe(filters)
	if err != nil {
		return err
	}
	if status != StatusPending {
		return NewOperationError(status, OpUnsubscribe, 0)
	}
	final := conn.wait(op, c.cfg.responseWait)
	if final != StatusSuccess {
		return NewOperationError(final, OpUnsubscribe, op.packetID)
	}
	return nil
}

// Disconnect sends a DISCONNECT and waits for it to be flushed (unless
// cleanupOnly is set), then unconditionally tears the connection down
// and releases the Client's hold on it. Calling Disconnect more than
// once is safe: the second call is a no-op that still returns success.
func (c *Client) Disconnect(cleanupOnly bool) error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	status := conn.disconnect(cleanupOnly)
	if status != StatusSuccess {
		return NewOperationError(status, OpDisconnect, 0)
	}
	return nil
}

// Close disconnects (if connected) and marks the Client unusable for
// any further Connect call.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.Disconnect(false)
}

// Strerror returns the human-readable name of a Status, matching the
// public API's introspection contract.
func Strerror(s Status) string { return s.String() }

// OperationTypeName returns the human-readable name of an OperationType,
// matching the public API's introspection contract.
func OperationTypeName(t OperationType) string { return t.String() }
