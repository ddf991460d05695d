package mqttiot

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionKeepAliveSendsPingreqAndSurvivesPingresp(t *testing.T) {
	pingreqSeen := make(chan struct{}, 4)

	addr, cleanup := mockBroker(t, func(conn net.Conn) {
		cp := readConnectPacket(t, conn)
		assert.Equal(t, uint16(1), cp.KeepAlive)
		sendConnack(t, conn, false, ConnectAccepted)

		for i := 0; i < 2; i++ {
			pkt, _, err := ReadPacket(conn, 256*1024)
			if err != nil {
				return
			}
			if _, ok := pkt.(*PingreqPacket); !ok {
				continue
			}
			pingreqSeen <- struct{}{}
			_, err = WritePacket(conn, &PingrespPacket{}, 256*1024)
			require.NoError(t, err)
		}

		time.Sleep(200 * time.Millisecond)
	})
	defer cleanup()

	rt := NewRuntime(WithResponseWait(2 * time.Second))
	client := NewClient(WithRuntime(rt))
	defer client.Close()

	_, err := client.Connect(context.Background(), "tcp://"+addr, &ConnectInfo{
		ClientID:     "test-client",
		CleanSession: true,
		KeepAlive:    1,
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		select {
		case <-pingreqSeen:
		case <-time.After(3 * time.Second):
			t.Fatalf("expected PINGREQ #%d, broker never received one", i+1)
		}
	}
}

func TestConnectionKeepAlivePingrespTimeoutClosesConnection(t *testing.T) {
	addr, cleanup := mockBroker(t, func(conn net.Conn) {
		_ = readConnectPacket(t, conn)
		sendConnack(t, conn, false, ConnectAccepted)

		// Read and discard the PINGREQ, but never reply with PINGRESP.
		_, _, _ = ReadPacket(conn, 256*1024)
		time.Sleep(500 * time.Millisecond)
	})
	defer cleanup()

	rt := NewRuntime(WithResponseWait(150 * time.Millisecond))
	client := NewClient(WithRuntime(rt))
	defer client.Close()

	_, err := client.Connect(context.Background(), "tcp://"+addr, &ConnectInfo{
		ClientID:     "test-client",
		CleanSession: true,
		KeepAlive:    1,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		err := client.Publish(&PublishInfo{Topic: "a/b", Payload: []byte("x"), QoS: 0})
		return errors.Is(err, ErrNotConnected)
	}, 3*time.Second, 50*time.Millisecond, "connection should close once PINGRESP never arrives, rejecting further calls with ErrNotConnected")
}
