package mqttiot

import (
	"crypto/tls"
	"time"
)

// WillInfo describes the Last Will and Testament to register with a
// CONNECT, validated by ValidateWillInfo.
type WillInfo struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// maxWillPayload is the will-only payload ceiling Connect enforces in
// every mode, AWS or not; the wire format itself allows up to 65535 bytes
// via its 2-byte length prefix, and a larger will payload is a
// will-specific bad-parameter rejection distinct from publish payload
// limits.
const maxWillPayload = 65535

// ConnectInfo is the validated input to Connect: everything that ends up
// in a CONNECT packet, plus the runtime knobs (keep-alive, AWS-mode
// clamping) that only make sense at connection-establishment time.
type ConnectInfo struct {
	ClientID     string
	CleanSession bool
	KeepAlive    uint16
	Username     string
	Password     []byte
	Will         *WillInfo

	// PreviousSubscriptions, when CleanSession is false and the CONNACK
	// reports a session present, restores these as fresh SUBSCRIBE
	// operations once the CONNECT succeeds.
	PreviousSubscriptions []Subscription

	// AWSMode clamps KeepAlive to the AWS IoT range [30, 1200] seconds,
	// remapping 0 to 1200, and makes QoS1 retransmits rewrite the packet
	// identifier in place. The will-payload ceiling applies either way.
	AWSMode bool
}

func (c *ConnectInfo) effectiveKeepAlive() uint16 {
	if !c.AWSMode {
		return c.KeepAlive
	}
	const awsMin, awsMax = 30, 1200
	k := c.KeepAlive
	if k == 0 {
		return awsMax
	}
	if k < awsMin {
		return awsMin
	}
	if k > awsMax {
		return awsMax
	}
	return k
}

// PublishInfo is the validated input to Publish.
type PublishInfo struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
	DUP     bool
}

// NetworkInfo describes how Connect should obtain its transport: either
// a Transport factory to dial addr, or an already-open TransportHandle
// the caller retains ownership responsibility for (OwnNetwork false).
type NetworkInfo struct {
	Transport Transport
	Address   string

	Handle     TransportHandle
	OwnNetwork bool
}

// ClientOption configures a Client constructed with NewClient.
type ClientOption func(*clientConfig)

type clientConfig struct {
	runtime        *Runtime
	connectTimeout time.Duration
	responseWait   time.Duration
	tlsConfig      *tls.Config
	transport      Transport
	proxy          *ProxyConfig
}

func defaultClientConfig() *clientConfig {
	return &clientConfig{
		runtime:        DefaultRuntime(),
		connectTimeout: 10 * time.Second,
		responseWait:   defaultResponseWait,
	}
}

// WithRuntime overrides the Runtime (logger, metrics, allocator, timing
// defaults) a Client is built against.
func WithRuntime(rt *Runtime) ClientOption {
	return func(c *clientConfig) { c.runtime = rt }
}

// WithConnectTimeout overrides how long Connect waits for CONNACK.
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) { c.connectTimeout = d }
}

// WithClientResponseWait overrides how long TimedPublish, TimedSubscribe
// and TimedUnsubscribe wait for their acknowledgement; Publish, Subscribe
// and Unsubscribe do not wait. This is distinct from a Runtime's
// WithResponseWait, which governs keep-alive PINGRESP and disconnect
// round-trip waits shared across every connection the Runtime builds.
func WithClientResponseWait(d time.Duration) ClientOption {
	return func(c *clientConfig) { c.responseWait = d }
}

// WithClientTLS supplies the *tls.Config used for tls://, mqtts://, ssl://,
// wss:// and quic:// broker URLs. It does not change which transport a
// URL scheme selects: tcp:// and ws:// stay unencrypted.
func WithClientTLS(cfg *tls.Config) ClientOption {
	return func(c *clientConfig) { c.tlsConfig = cfg }
}

// WithTransport overrides transport selection entirely, bypassing the
// broker-URL-scheme dispatch Connect otherwise does.
func WithTransport(t Transport) ClientOption {
	return func(c *clientConfig) { c.transport = t }
}

// WithProxy routes tcp/tls broker connections through an HTTP CONNECT or
// SOCKS5 proxy. It has no effect on ws/wss/quic/unix schemes, which carry
// their own dial path.
func WithProxy(cfg *ProxyConfig) ClientOption {
	return func(c *clientConfig) { c.proxy = cfg }
}

func applyClientOptions(opts ...ClientOption) *clientConfig {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
