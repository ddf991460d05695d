package mqttiot

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMetricsRecordsConnectPublishAndDisconnect(t *testing.T) {
	addr, cleanup := mockBroker(t, func(conn net.Conn) {
		_ = readConnectPacket(t, conn)
		sendConnack(t, conn, false, ConnectAccepted)

		pkt, _, err := ReadPacket(conn, 256*1024)
		require.NoError(t, err)
		_, ok := pkt.(*PublishPacket)
		require.True(t, ok)

		_, _, _ = ReadPacket(conn, 256*1024) // DISCONNECT
	})
	defer cleanup()

	mem := NewMemoryMetrics()
	rt := NewRuntime(WithMetrics(mem))
	client := NewClient(WithRuntime(rt))
	defer client.Close()

	_, err := client.Connect(context.Background(), "tcp://"+addr, &ConnectInfo{
		ClientID:     "test-client",
		CleanSession: true,
	})
	require.NoError(t, err)

	assert.Equal(t, float64(1), mem.GetGauge(MetricConnections, nil).Value())
	assert.Equal(t, float64(1), mem.GetCounter(MetricConnectionsTotal, nil).Value())

	err = client.Publish(&PublishInfo{Topic: "devices/1/status", Payload: []byte("online"), QoS: 0})
	require.NoError(t, err)

	labels := MetricLabels{LabelPacketType: PacketPUBLISH.String()}
	require.Eventually(t, func() bool {
		sent, ok := mem.GetCounter(MetricPacketsSent, labels).(*memoryCounter)
		return ok && sent != nil && sent.Value() >= 1
	}, time.Second, 10*time.Millisecond, "PUBLISH should be recorded via ConnectionMetrics.PacketSent")

	assert.GreaterOrEqual(t, mem.GetCounter(MetricPacketsSent, labels).Value(), float64(1))
	assert.Greater(t, mem.GetCounter(MetricBytesSent, nil).Value(), float64(0))

	require.NoError(t, client.Disconnect(false))

	require.Eventually(t, func() bool {
		return mem.GetGauge(MetricConnections, nil).Value() == 0
	}, time.Second, 10*time.Millisecond, "ConnectionClosed should decrement the active-connections gauge")
}
