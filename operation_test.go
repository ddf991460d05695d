package mqttiot

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationReferenceCountArithmetic(t *testing.T) {
	op := newOperation(OpPublish, 0, []byte{0x30, 0x00}, 0, nil)
	assert.Equal(t, 1, op.references, "a non-waitable operation starts with only the scheduler's own reference")

	op.addRef()
	op.addRef()
	assert.Equal(t, 3, op.references)

	op.release()
	assert.Equal(t, 2, op.references)

	op.release()
	op.release()
	assert.Equal(t, 0, op.references)

	op.release()
	assert.Equal(t, 0, op.references, "release is floored at zero: a stray extra release must not go negative")
}

func TestOperationWaitableStartsWithTwoReferences(t *testing.T) {
	op := newOperation(OpSubscribe, FlagWaitable, []byte{0x82, 0x00}, 1, nil)
	assert.Equal(t, 2, op.references, "a waitable operation holds the scheduler's reference plus the waiter's own")

	// The scheduler's drop (processComplete) and the waiter's drop (Wait
	// returning, here via direct release since there is no Connection to
	// complete it) must each land exactly once and independently.
	op.release()
	assert.Equal(t, 1, op.references)

	op.release()
	assert.Equal(t, 0, op.references)
}

func TestOperationWaitTimeoutThenLateCompleteDestroysExactlyOnce(t *testing.T) {
	released := make(chan struct{}, 4)
	conn := newConnection(DefaultRuntime(), false)
	op := newOperation(OpPublish, FlagWaitable, []byte{0x30, 0x00}, 7, conn)

	status := op.Wait(10 * time.Millisecond)
	assert.Equal(t, StatusTimeout, status)
	assert.Equal(t, 1, op.references, "timing out drops only the waiter's reference, leaving the scheduler's outstanding")

	// The late PUBACK path: the scheduler's own drop runs once the send
	// actually resolves, after the waiter already gave up.
	go func() {
		op.release()
		released <- struct{}{}
	}()

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("scheduler's release never completed")
	}
	assert.Equal(t, 0, op.references)

	// A further stray release (there should never be one) must not drive
	// the count negative or call conn.releaseRef a second time.
	op.release()
	assert.Equal(t, 0, op.references)
}

func TestConnectionRetryBackoffDoublesThenGivesUp(t *testing.T) {
	type arrival struct {
		at time.Time
	}
	arrivals := make(chan arrival, 8)

	addr, cleanup := mockBroker(t, func(conn net.Conn) {
		_ = readConnectPacket(t, conn)
		sendConnack(t, conn, false, ConnectAccepted)

		// The client retransmits its unacknowledged QoS1 PUBLISH three
		// times (initial send plus three retries) before giving up; never
		// send a PUBACK so every retransmit in the schedule is observed.
		for i := 0; i < 4; i++ {
			pkt, _, err := ReadPacket(conn, 256*1024)
			if err != nil {
				return
			}
			if _, ok := pkt.(*PublishPacket); ok {
				arrivals <- arrival{at: time.Now()}
			}
		}
		// Keep the connection open until the client disconnects, so the
		// operation ends by retry exhaustion rather than a closed socket.
		_, _, _ = ReadPacket(conn, 256*1024)
	})
	defer cleanup()

	client := NewClient(WithClientResponseWait(10 * time.Second))
	defer client.Close()

	_, err := client.Connect(context.Background(), "tcp://"+addr, &ConnectInfo{ClientID: "test-client", CleanSession: true})
	require.NoError(t, err)

	done := make(chan error, 1)
	require.NoError(t, client.PublishAsync(&PublishInfo{Topic: "a/b", Payload: []byte("x"), QoS: 1}, func(err error) {
		done <- err
	}))

	var times []time.Time
	for i := 0; i < 4; i++ {
		select {
		case a := <-arrivals:
			times = append(times, a.at)
		case <-time.After(5 * time.Second):
			t.Fatalf("expected 4 PUBLISH arrivals (initial + 3 retries), got %d", len(times))
		}
	}

	gap1 := times[1].Sub(times[0])
	gap2 := times[2].Sub(times[1])
	gap3 := times[3].Sub(times[2])

	// nextPeriod starts at 500ms and doubles on each retransmit: ~500ms,
	// ~1000ms, ~2000ms. Assert ordering and rough doubling rather than
	// exact durations to tolerate scheduler jitter.
	assert.Greater(t, gap2, gap1, "second retry gap should be roughly double the first")
	assert.Greater(t, gap3, gap2, "third retry gap should be roughly double the second")
	assert.InDelta(t, gap1.Seconds()*2, gap2.Seconds(), 0.4)
	assert.InDelta(t, gap2.Seconds()*2, gap3.Seconds(), 0.4)

	// After the third retransmit the operation waits one more doubled
	// period (~4s) for a PUBACK before completing.
	select {
	case err := <-done:
		var opErr *OperationError
		require.ErrorAs(t, err, &opErr)
		assert.Equal(t, StatusRetryNoResponse, opErr.Status)
	case <-time.After(6 * time.Second):
		t.Fatal("operation never completed after exhausting its retry budget")
	}
}
