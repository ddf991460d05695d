// Package mqttiot provides an MQTT 3.1.1 client connection runtime.
//
// It implements the connect/publish/subscribe/unsubscribe/disconnect
// surface of an MQTT client and the state machine each operation moves
// through, modeled on the connection runtime of embedded MQTT clients
// rather than a general-purpose broker or server. QoS 0 and QoS 1 are
// supported; QoS 2, retained-message delivery, and MQTT 5 features
// (properties, reason codes, enhanced auth) are out of scope.
//
// # Client
//
//	client := mqttiot.NewClient(
//	    mqttiot.WithRuntime(mqttiot.DefaultRuntime()),
//	    mqttiot.WithClientResponseWait(10 * time.Second),
//	)
//
//	sessionPresent, err := client.Connect(ctx, "tls://broker.example.com:8883", &mqttiot.ConnectInfo{
//	    ClientID:     "device-42",
//	    CleanSession: true,
//	    KeepAlive:    60,
//	})
//	defer client.Close()
//
// Broker addresses are plain URLs; the scheme selects the transport:
// tcp/mqtt, tls/mqtts/ssl, ws, wss, quic, unix.
//
// # Publish and subscribe
//
//	err = client.TimedPublish(&mqttiot.PublishInfo{
//	    Topic:   "devices/42/status",
//	    Payload: []byte("online"),
//	    QoS:     1,
//	})
//
//	err = client.TimedSubscribe(
//	    []mqttiot.Subscription{{TopicFilter: "devices/+/status", QoS: 1}},
//	    []mqttiot.MessageHandler{func(msg *mqttiot.Message) {
//	        log.Printf("%s: %s", msg.Topic, msg.Payload)
//	    }},
//	)
//
// Publish, Subscribe, and Unsubscribe return once the operation is
// queued; the Timed variants additionally block for the broker's
// acknowledgement, up to the Client's configured response wait.
//
// # Runtime
//
// A Runtime holds the knobs shared across every Client built against
// it: the Logger and Metrics sink operations report through, the
// Allocator connections take outgoing packet buffers from, and the
// keep-alive/retry timing defaults.
//
//	rt := mqttiot.NewRuntime(
//	    mqttiot.WithLogger(mqttiot.NewDefaultLogger(mqttiot.LogLevelDebug)),
//	    mqttiot.WithRetryCeiling(30 * time.Second),
//	)
//
// # AWS IoT mode
//
// ConnectInfo.AWSMode clamps the requested keep-alive into the AWS IoT
// Core range; it also makes QoS 1 PUBLISH retransmission rewrite the
// packet identifier in place at a fixed byte offset of the encoded
// packet, matching the wire behavior of AWS IoT Device SDK clients.
// Outside AWS mode a retransmission resends the encoded bytes as they
// are. The will-payload size cap applies in every mode.
//
// # Transports
//
// Transport implementations dial a broker and hand received bytes to a
// Connection via a push callback rather than being read from directly:
// TCPTransport, TLSTransport, WSTransport, QUICTransport, UnixTransport,
// and ProxyTransport (SOCKS5/HTTP CONNECT tunneling for tcp/tls).
package mqttiot
