package mqttiot

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBroker accepts one connection and runs handler against it.
func mockBroker(t *testing.T, handler func(net.Conn)) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}()

	cleanup := func() {
		listener.Close()
		wg.Wait()
	}

	return listener.Addr().String(), cleanup
}

func sendConnack(t *testing.T, conn net.Conn, sessionPresent bool, code ConnectReturnCode) {
	t.Helper()
	pkt := &ConnackPacket{SessionPresent: sessionPresent, ReturnCode: code}
	_, err := WritePacket(conn, pkt, 256*1024)
	require.NoError(t, err)
}

func readConnectPacket(t *testing.T, conn net.Conn) *ConnectPacket {
	t.Helper()
	pkt, _, err := ReadPacket(conn, 256*1024)
	require.NoError(t, err)
	cp, ok := pkt.(*ConnectPacket)
	require.True(t, ok, "expected CONNECT, got %T", pkt)
	return cp
}

func TestClientConnectSuccess(t *testing.T) {
	addr, cleanup := mockBroker(t, func(conn net.Conn) {
		cp := readConnectPacket(t, conn)
		assert.Equal(t, "test-client", cp.ClientID)
		sendConnack(t, conn, false, ConnectAccepted)
		time.Sleep(100 * time.Millisecond)
	})
	defer cleanup()

	client := NewClient()
	defer client.Close()

	sessionPresent, err := client.Connect(context.Background(), "tcp://"+addr, &ConnectInfo{
		ClientID:     "test-client",
		CleanSession: true,
	})
	require.NoError(t, err)
	assert.False(t, sessionPresent)
}

func TestClientConnectSessionPresent(t *testing.T) {
	addr, cleanup := mockBroker(t, func(conn net.Conn) {
		_ = readConnectPacket(t, conn)
		sendConnack(t, conn, true, ConnectAccepted)
		time.Sleep(100 * time.Millisecond)
	})
	defer cleanup()

	client := NewClient()
	defer client.Close()

	sessionPresent, err := client.Connect(context.Background(), "tcp://"+addr, &ConnectInfo{
		ClientID:     "test-client",
		CleanSession: false,
	})
	require.NoError(t, err)
	assert.True(t, sessionPresent)
}

func TestClientConnectRefused(t *testing.T) {
	addr, cleanup := mockBroker(t, func(conn net.Conn) {
		_ = readConnectPacket(t, conn)
		sendConnack(t, conn, false, ConnectRefusedBadCredentials)
	})
	defer cleanup()

	client := NewClient()
	defer client.Close()

	_, err := client.Connect(context.Background(), "tcp://"+addr, &ConnectInfo{
		ClientID:     "test-client",
		CleanSession: true,
	})
	require.Error(t, err)

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, StatusServerRefused, opErr.Status)
}

func TestClientConnectAlreadyConnected(t *testing.T) {
	addr, cleanup := mockBroker(t, func(conn net.Conn) {
		_ = readConnectPacket(t, conn)
		sendConnack(t, conn, false, ConnectAccepted)
		time.Sleep(200 * time.Millisecond)
	})
	defer cleanup()

	client := NewClient()
	defer client.Close()

	_, err := client.Connect(context.Background(), "tcp://"+addr, &ConnectInfo{ClientID: "a", CleanSession: true})
	require.NoError(t, err)

	_, err = client.Connect(context.Background(), "tcp://"+addr, &ConnectInfo{ClientID: "b", CleanSession: true})
	assert.ErrorIs(t, err, ErrConnected)
}

func TestClientWillPayloadTooLarge(t *testing.T) {
	client := NewClient()
	defer client.Close()

	_, err := client.Connect(context.Background(), "tcp://127.0.0.1:1", &ConnectInfo{
		ClientID:     "test-client",
		CleanSession: true,
		Will: &WillInfo{
			Topic:   "will/topic",
			Payload: make([]byte, maxWillPayload+1),
		},
	})
	require.Error(t, err)

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, StatusBadParameter, opErr.Status)
}

func TestClientDisconnectSendsDisconnectPacket(t *testing.T) {
	disconnectSeen := make(chan struct{}, 1)

	addr, cleanup := mockBroker(t, func(conn net.Conn) {
		_ = readConnectPacket(t, conn)
		sendConnack(t, conn, false, ConnectAccepted)

		pkt, _, err := ReadPacket(conn, 256*1024)
		if err == nil {
			if _, ok := pkt.(*DisconnectPacket); ok {
				disconnectSeen <- struct{}{}
			}
		}
	})
	defer cleanup()

	client := NewClient()

	_, err := client.Connect(context.Background(), "tcp://"+addr, &ConnectInfo{ClientID: "test-client", CleanSession: true})
	require.NoError(t, err)

	require.NoError(t, client.Disconnect(false))

	select {
	case <-disconnectSeen:
	case <-time.After(2 * time.Second):
		t.Fatal("broker never saw a DISCONNECT packet")
	}
}

func TestClientCloseIsIdempotent(t *testing.T) {
	addr, cleanup := mockBroker(t, func(conn net.Conn) {
		_ = readConnectPacket(t, conn)
		sendConnack(t, conn, false, ConnectAccepted)
		time.Sleep(200 * time.Millisecond)
	})
	defer cleanup()

	client := NewClient()

	_, err := client.Connect(context.Background(), "tcp://"+addr, &ConnectInfo{ClientID: "test-client", CleanSession: true})
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, err = client.Connect(context.Background(), "tcp://"+addr, &ConnectInfo{ClientID: "test-client", CleanSession: true})
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClientResolveTransportSchemes(t *testing.T) {
	c := NewClient()

	cases := map[string]bool{
		"tcp://host:1883":         true,
		"mqtt://host:1883":        true,
		"tls://host:8883":         true,
		"mqtts://host:8883":       true,
		"ssl://host:8883":         true,
		"ws://host:8080/mqtt":     true,
		"wss://host:8080/mqtt":    true,
		"quic://host:4433":       true,
		"unix:///var/run/mqtt":    true,
		"gopher://host:70":        false,
	}

	for addr, wantOK := range cases {
		_, _, err := c.resolveTransport(addr)
		if wantOK {
			assert.NoError(t, err, addr)
		} else {
			assert.Error(t, err, addr)
		}
	}
}
