package mqttiot

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readRawPacket decodes one packet from conn and returns both the
// decoded value and the exact bytes ReadPacket consumed for it, so a
// test can compare two packets for byte-for-byte identity rather than
// just field equality.
func readRawPacket(t *testing.T, conn net.Conn) (Packet, []byte) {
	t.Helper()
	var raw bytes.Buffer
	pkt, _, err := ReadPacket(io.TeeReader(conn, &raw), 256*1024)
	require.NoError(t, err)
	return pkt, raw.Bytes()
}

func TestConnectionPublishQoS1RetransmitIsByteIdentical(t *testing.T) {
	addr, cleanup := mockBroker(t, func(conn net.Conn) {
		_ = readConnectPacket(t, conn)
		sendConnack(t, conn, false, ConnectAccepted)

		_, firstBytes := readRawPacket(t, conn)
		_, secondBytes := readRawPacket(t, conn)
		assert.Equal(t, firstBytes, secondBytes, "AWS-mode retransmit must be byte-identical to the original PUBLISH")

		pkt, _, err := ReadPacket(conn, 256*1024)
		require.NoError(t, err)
		pub, ok := pkt.(*PublishPacket)
		require.True(t, ok)

		ack := &PubackPacket{PacketIdentifier: pub.PacketIdentifier}
		_, err = WritePacket(conn, ack, 256*1024)
		require.NoError(t, err)
	})
	defer cleanup()

	client := NewClient(WithClientResponseWait(5 * time.Second))
	defer client.Close()

	_, err := client.Connect(context.Background(), "tcp://"+addr, &ConnectInfo{
		ClientID:     "test-client",
		CleanSession: true,
		AWSMode:      true,
	})
	require.NoError(t, err)

	err = client.TimedPublish(&PublishInfo{Topic: "devices/1/status", Payload: []byte("online"), QoS: 1})
	require.NoError(t, err)
}

func TestConnectionSubscribeWildcardDispatchExact(t *testing.T) {
	received := make(chan *Message, 4)

	addr, cleanup := mockBroker(t, func(conn net.Conn) {
		_ = readConnectPacket(t, conn)
		sendConnack(t, conn, false, ConnectAccepted)

		pkt, _, err := ReadPacket(conn, 256*1024)
		require.NoError(t, err)
		sub, ok := pkt.(*SubscribePacket)
		require.True(t, ok)

		suback := &SubackPacket{PacketIdentifier: sub.PacketIdentifier, ReturnCodes: []SubackReturnCode{SubackMaxQoS0}}
		_, err = WritePacket(conn, suback, 256*1024)
		require.NoError(t, err)

		match := &PublishPacket{Topic: "sensors/room1/temp", Payload: []byte("21.5"), QoS: 0}
		_, err = WritePacket(conn, match, 256*1024)
		require.NoError(t, err)

		noMatch := &PublishPacket{Topic: "sensors/room1/humidity", Payload: []byte("40"), QoS: 0}
		_, err = WritePacket(conn, noMatch, 256*1024)
		require.NoError(t, err)

		time.Sleep(150 * time.Millisecond)
	})
	defer cleanup()

	client := NewClient(WithClientResponseWait(5 * time.Second))
	defer client.Close()

	_, err := client.Connect(context.Background(), "tcp://"+addr, &ConnectInfo{ClientID: "test-client", CleanSession: true})
	require.NoError(t, err)

	err = client.TimedSubscribe(
		[]Subscription{{TopicFilter: "sensors/+/temp", QoS: 0}},
		[]MessageHandler{func(msg *Message) { received <- msg }},
	)
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, "sensors/room1/temp", msg.Topic)
	case <-time.After(2 * time.Second):
		t.Fatal("matching PUBLISH never dispatched")
	}

	select {
	case msg := <-received:
		t.Fatalf("non-matching PUBLISH delivered: %s", msg.Topic)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestConnectionTimedSubscribeTimeoutRemovesProvisionalEntry(t *testing.T) {
	addr, cleanup := mockBroker(t, func(conn net.Conn) {
		_ = readConnectPacket(t, conn)
		sendConnack(t, conn, false, ConnectAccepted)

		// Read the SUBSCRIBE but never answer it.
		_, _, _ = ReadPacket(conn, 256*1024)
		time.Sleep(500 * time.Millisecond)
	})
	defer cleanup()

	client := NewClient(WithClientResponseWait(100 * time.Millisecond))
	defer client.Close()

	_, err := client.Connect(context.Background(), "tcp://"+addr, &ConnectInfo{ClientID: "test-client", CleanSession: true})
	require.NoError(t, err)

	err = client.TimedSubscribe([]Subscription{{TopicFilter: "a/b", QoS: 0}}, nil)
	require.Error(t, err)

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, StatusTimeout, opErr.Status)

	conn, connErr := client.activeConn()
	require.NoError(t, connErr)
	assert.Equal(t, 0, conn.subs.Len(), "a timed-out SUBSCRIBE must leave no subscription record behind")
}

func TestConnectionNetworkErrorThenCleanupDisconnect(t *testing.T) {
	addr, cleanup := mockBroker(t, func(conn net.Conn) {
		_ = readConnectPacket(t, conn)
		sendConnack(t, conn, false, ConnectAccepted)
		conn.Close()
	})
	defer cleanup()

	client := NewClient(WithClientResponseWait(2 * time.Second))

	_, err := client.Connect(context.Background(), "tcp://"+addr, &ConnectInfo{ClientID: "test-client", CleanSession: true})
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	err = client.TimedPublish(&PublishInfo{Topic: "a/b", Payload: []byte("x"), QoS: 1})
	require.Error(t, err)

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, StatusNetworkError, opErr.Status)

	assert.NoError(t, client.Disconnect(true))
}
