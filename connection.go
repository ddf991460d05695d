package mqttiot

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"time"
)

// Connection is the per-session runtime: it owns the subscription table,
// the two operation lists (pending-send, pending-response), the
// keep-alive job, the transport handle, and the reference count that
// gates its own destruction. One Client wraps exactly one Connection at
// a time; a reconnect builds a fresh Connection.
type Connection struct {
	runtime *Runtime

	awsMode    bool
	ownNetwork bool
	transport  Transport
	handle     TransportHandle

	clientID string

	refsMu       sync.Mutex // guards references, disconnected, pendingSend, pendingResponse
	references   int
	disconnected bool
	pendingSend  []*Operation
	pendingResponse map[uint16]*Operation

	sendMu sync.Mutex // turnstile serializing process-send per connection

	subs *subscriptionTable

	packetIDs *PacketIdentifierAllocator
	jobs      *JobPool

	keepAliveMS       uint32
	nextKeepAliveMS   uint32
	pingreqPacket     []byte
	keepAliveJob      *Job
	pingOutstanding   bool
	keepAliveRefHeld  bool

	prevSubs *previousSubscriptionStore

	metrics *ConnectionMetrics
	logger  Logger

	recvBuf bytes.Buffer

	lastConnackSessionPresent bool
}

func newConnection(rt *Runtime, awsMode bool) *Connection {
	return &Connection{
		runtime:         rt,
		awsMode:         awsMode,
		references:      1,
		pendingResponse: make(map[uint16]*Operation),
		subs:            newSubscriptionTable(),
		packetIDs:       NewPacketIdentifierAllocator(),
		jobs:            NewJobPool(),
		prevSubs:        newPreviousSubscriptionStore(),
		metrics:         NewConnectionMetrics(rt.Metrics),
		logger:          rt.Logger,
	}
}

// addRef increments the connection's reference count.
func (c *Connection) addRef() {
	c.refsMu.Lock()
	c.references++
	c.refsMu.Unlock()
}

// releaseRef drops one reference, running teardown on the last one.
func (c *Connection) releaseRef() {
	c.refsMu.Lock()
	c.references--
	zero := c.references <= 0
	c.refsMu.Unlock()

	if zero {
		c.destroy()
	}
}

func (c *Connection) destroy() {
	c.jobs.CancelAll()
	if c.pingreqPacket != nil {
		c.runtime.Allocator.Free(c.pingreqPacket)
	}
	if c.handle != nil && c.ownNetwork {
		_ = c.handle.Close()
	}
}

func (c *Connection) isDisconnected() bool {
	c.refsMu.Lock()
	defer c.refsMu.Unlock()
	return c.disconnected
}

// allocEncoded copies an encoded packet out of the scratch buffer Encode
// wrote into into a buffer obtained from the Runtime's Allocator. This is
// the connection's one outbound-packet-buffer allocation path: the
// returned slice backs an Operation's packet field (freed on the
// operation's last reference, see Operation.release) or, for the
// keep-alive PINGREQ, c.pingreqPacket (freed in destroy).
func (c *Connection) allocEncoded(buf *bytes.Buffer) ([]byte, error) {
	encoded := buf.Bytes()
	out, err := c.runtime.Allocator.Alloc(len(encoded))
	if err != nil {
		return nil, err
	}
	copy(out, encoded)
	return out, nil
}

// connect performs connection establishment per the component design:
// obtain a transport handle, register the receive callback, build and
// send a waitable CONNECT, and wait for CONNACK.
func (c *Connection) connect(ctx context.Context, net *NetworkInfo, info *ConnectInfo, timeout time.Duration) (bool, Status, error) {
	if err := ValidateConnectInfo(info); err != nil {
		return false, StatusBadParameter, err
	}
	if info.Will != nil && len(info.Will.Payload) > maxWillPayload {
		return false, StatusBadParameter, NewOperationError(StatusBadParameter, OpConnect, 0)
	}

	c.clientID = info.ClientID
	c.awsMode = info.AWSMode

	if net.Handle != nil {
		c.handle = net.Handle
		c.ownNetwork = net.OwnNetwork
	} else {
		handle, err := net.Transport.Create(ctx, net.Address)
		if err != nil {
			return false, StatusNetworkError, err
		}
		c.handle = handle
		c.ownNetwork = true
	}

	keepAlive := info.effectiveKeepAlive()
	if keepAlive > 0 {
		c.keepAliveMS = uint32(keepAlive) * 1000
		c.nextKeepAliveMS = c.keepAliveMS
		pkt := &PingreqPacket{}
		var buf bytes.Buffer
		if _, err := pkt.Encode(&buf); err != nil {
			return false, StatusInitFailed, err
		}
		pingBuf, err := c.allocEncoded(&buf)
		if err != nil {
			return false, StatusNoMemory, err
		}
		c.pingreqPacket = pingBuf
		c.addRef() // held on behalf of the keep-alive job
		c.keepAliveRefHeld = true
	}

	c.handle.SetReceiveCallback(func(data []byte, err error) {
		c.onReceive(data, err)
	})

	connectPkt := &ConnectPacket{
		ClientID:     info.ClientID,
		CleanSession: info.CleanSession,
		KeepAlive:    keepAlive,
		Username:     info.Username,
		Password:     info.Password,
	}
	if will := willMessageFromInfo(info.Will); will != nil {
		if err := will.Validate(); err != nil {
			c.teardownAfterFailedConnect()
			return false, StatusBadParameter, err
		}
		connectPkt.WillFlag = true
		connectPkt.WillTopic = will.Topic
		connectPkt.WillPayload = will.Payload
		connectPkt.WillQoS = will.QoS
		connectPkt.WillRetain = will.Retain
	}
	if err := connectPkt.Validate(); err != nil {
		c.teardownAfterFailedConnect()
		return false, StatusBadParameter, err
	}

	var buf bytes.Buffer
	if _, err := connectPkt.Encode(&buf); err != nil {
		c.teardownAfterFailedConnect()
		return false, StatusInitFailed, err
	}
	packetBuf, err := c.allocEncoded(&buf)
	if err != nil {
		c.teardownAfterFailedConnect()
		return false, StatusNoMemory, err
	}

	op := newOperation(OpConnect, FlagWaitable, packetBuf, 0, c)
	c.addRef()
	c.enqueueSend(op)
	c.scheduleProcessSend(op)

	status := op.Wait(timeout)
	if status != StatusSuccess {
		c.teardownAfterFailedConnect()
		return false, status, NewOperationError(status, OpConnect, 0)
	}

	sessionPresent := c.lastConnackSessionPresent

	if !info.CleanSession {
		if sessionPresent {
			c.restoreSubscriptions(info.PreviousSubscriptions)
		} else {
			c.prevSubs.Forget(info.ClientID)
		}
	} else {
		c.prevSubs.Forget(info.ClientID)
	}

	if c.keepAliveMS > 0 {
		c.armKeepAlive(time.Duration(c.nextKeepAliveMS) * time.Millisecond)
	}

	c.metrics.ConnectionOpened()
	return sessionPresent, StatusSuccess, nil
}

func (c *Connection) teardownAfterFailedConnect() {
	if c.handle != nil && c.ownNetwork {
		_ = c.handle.Close()
	}
	if c.keepAliveRefHeld {
		c.keepAliveRefHeld = false
		c.releaseRef()
	}
}

// restoreSubscriptions replays previously-known subscriptions as a fresh
// SUBSCRIBE, allocating a normal packet identifier from the connection's
// own allocator rather than any fixed sentinel value — the resolved Open
// Question recorded in DESIGN.md.
func (c *Connection) restoreSubscriptions(subs []Subscription) {
	if len(subs) == 0 {
		subs = c.prevSubs.Take(c.clientID)
	}
	if len(subs) == 0 {
		return
	}

	_, _, _ = c.subscribe(subs, nil, 0)
}

// publish builds and enqueues a PUBLISH operation.
func (c *Connection) publish(info *PublishInfo, waitable bool, cb func(Status, error)) (*Operation, Status, error) {
	if c.isDisconnected() {
		return nil, StatusNetworkError, ErrNotConnected
	}
	if err := ValidatePublishInfo(info); err != nil {
		return nil, StatusBadParameter, err
	}
	if info.QoS == 0 && (waitable || cb != nil) {
		c.logger.Warn("QoS0 publish does not support waiting or callbacks; ignoring", LogFields{LogFieldTopic: info.Topic})
		waitable = false
		cb = nil
	}

	var packetID uint16
	if info.QoS > 0 {
		id, err := c.packetIDs.Allocate()
		if err != nil {
			return nil, StatusNoMemory, err
		}
		packetID = id
	}

	pkt := &PublishPacket{
		Topic:            info.Topic,
		Payload:          info.Payload,
		QoS:              info.QoS,
		Retain:           info.Retain,
		DUP:              info.DUP,
		PacketIdentifier: packetID,
	}
	if err := pkt.Validate(); err != nil {
		if packetID != 0 {
			_ = c.packetIDs.Release(packetID)
		}
		return nil, StatusBadParameter, err
	}

	var buf bytes.Buffer
	if _, err := pkt.Encode(&buf); err != nil {
		if packetID != 0 {
			_ = c.packetIDs.Release(packetID)
		}
		return nil, StatusInitFailed, err
	}
	packetBuf, err := c.allocEncoded(&buf)
	if err != nil {
		if packetID != 0 {
			_ = c.packetIDs.Release(packetID)
		}
		return nil, StatusNoMemory, err
	}

	flags := OperationFlags(0)
	if waitable {
		flags |= FlagWaitable
	}

	op := newOperation(OpPublish, flags, packetBuf, packetID, c)
	op.packetIDOffset = publishPacketIDOffset(packetBuf)
	op.callback = cb
	if info.QoS > 0 {
		op.retry = retryState{limit: 3, nextPeriod: 500 * time.Millisecond}
	}

	c.addRef()
	c.enqueueSend(op)
	c.scheduleProcessSend(op)

	if info.QoS == 0 {
		return op, StatusSuccess, nil
	}
	return op, StatusPending, nil
}

// publishPacketIDOffset locates the byte offset of the packet identifier
// field within an encoded PUBLISH so a retransmit can rewrite it in
// place (AWS mode) instead of re-serializing the whole packet.
func publishPacketIDOffset(packet []byte) int {
	if len(packet) < 2 {
		return 0
	}
	// fixed header: 1 type/flags byte + 1-4 byte remaining length
	i := 1
	for i < len(packet) && packet[i]&0x80 != 0 {
		i++
	}
	pos := i + 1
	if pos+2 > len(packet) {
		return 0
	}
	topicLen := int(binary.BigEndian.Uint16(packet[pos:]))
	pos += 2 + topicLen
	return pos
}

// subscribe builds and enqueues a SUBSCRIBE, registering provisional
// subscription records immediately after serialization succeeds but
// before the send is scheduled.
func (c *Connection) subscribe(subs []Subscription, cbs []MessageHandler, flags OperationFlags) (*Operation, Status, error) {
	if c.isDisconnected() {
		return nil, StatusNetworkError, ErrNotConnected
	}
	if err := ValidateSubscriptions(subs); err != nil {
		return nil, StatusBadParameter, err
	}

	packetID, err := c.packetIDs.Allocate()
	if err != nil {
		return nil, StatusNoMemory, err
	}

	pkt := &SubscribePacket{PacketIdentifier: packetID, Subscriptions: subs}
	var buf bytes.Buffer
	if _, err := pkt.Encode(&buf); err != nil {
		_ = c.packetIDs.Release(packetID)
		return nil, StatusInitFailed, err
	}
	packetBuf, err := c.allocEncoded(&buf)
	if err != nil {
		_ = c.packetIDs.Release(packetID)
		return nil, StatusNoMemory, err
	}

	for i, s := range subs {
		var cb MessageHandler
		if i < len(cbs) {
			cb = cbs[i]
		}
		c.subs.Add(s.TopicFilter, s.QoS, packetID, cb)
	}

	op := newOperation(OpSubscribe, flags, packetBuf, packetID, c)
	c.addRef()
	c.enqueueSend(op)
	c.scheduleProcessSend(op)

	return op, StatusPending, nil
}

// unsubscribe removes matching subscription records before sending, so
// an immediate same-filter SUBSCRIBE cannot race the in-flight UNSUBACK.
func (c *Connection) unsubscribe(filters []string) (*Operation, Status, error) {
	if c.isDisconnected() {
		return nil, StatusNetworkError, ErrNotConnected
	}
	if len(filters) == 0 {
		return nil, StatusBadParameter, errors.New("no topic filters given")
	}

	for _, f := range filters {
		c.subs.RemoveByFilter(f)
	}

	packetID, err := c.packetIDs.Allocate()
	if err != nil {
		return nil, StatusNoMemory, err
	}

	pkt := &UnsubscribePacket{PacketIdentifier: packetID, TopicFilters: filters}
	var buf bytes.Buffer
	if _, err := pkt.Encode(&buf); err != nil {
		_ = c.packetIDs.Release(packetID)
		return nil, StatusInitFailed, err
	}
	packetBuf, err := c.allocEncoded(&buf)
	if err != nil {
		_ = c.packetIDs.Release(packetID)
		return nil, StatusNoMemory, err
	}

	op := newOperation(OpUnsubscribe, FlagWaitable, packetBuf, packetID, c)
	c.addRef()
	c.enqueueSend(op)
	c.scheduleProcessSend(op)

	return op, StatusPending, nil
}

// wait blocks on op per Operation.Wait, additionally rolling back any
// subscription records a timed-out SUBSCRIBE provisionally added — the
// broker may still answer after the caller stopped waiting, but the
// caller no longer has a handle to react to it, so the table should not
// keep entries whose owning operation nobody is watching.
func (c *Connection) wait(op *Operation, timeout time.Duration) Status {
	status := op.Wait(timeout)
	if status == StatusTimeout && op.opType == OpSubscribe {
		c.subs.RemoveByPacketID(op.packetID)
	}
	return status
}

func (c *Connection) enqueueSend(op *Operation) {
	c.refsMu.Lock()
	c.pendingSend = append(c.pendingSend, op)
	c.refsMu.Unlock()
}

func (c *Connection) scheduleProcessSend(op *Operation) {
	c.jobs.Schedule(0, func() { c.processSend(op) })
}

// processSend moves an operation from pending-send to pending-response
// (if it expects an ack) and writes it to the transport, serialized per
// connection by sendMu.
func (c *Connection) processSend(op *Operation) {
	c.refsMu.Lock()
	if c.disconnected {
		c.refsMu.Unlock()
		op.complete(StatusNetworkError)
		op.release()
		return
	}
	for i, pending := range c.pendingSend {
		if pending == op {
			c.pendingSend = append(c.pendingSend[:i], c.pendingSend[i+1:]...)
			break
		}
	}
	if op.expectsAck() {
		c.pendingResponse[op.packetID] = op
	}
	c.refsMu.Unlock()

	c.sendMu.Lock()
	n, err := c.handle.Send(op.packet)
	c.sendMu.Unlock()

	if err != nil || n < len(op.packet) {
		if err == nil {
			err = io.ErrShortWrite
		}
		c.logger.Error("transport write failed", LogFields{LogFieldError: err.Error()})
		c.processCompleteStatus(op, StatusNetworkError)
		return
	}

	c.metrics.PacketSent(packetTypeForOp(op.opType))
	c.metrics.BytesSent(n)

	if !op.expectsAck() {
		op.complete(StatusSuccess)
		c.processComplete(op)
		return
	}

	if op.retry.limit > 0 {
		c.scheduleRetry(op)
	}
}

func packetTypeForOp(t OperationType) PacketType {
	switch t {
	case OpConnect:
		return PacketCONNECT
	case OpPublish:
		return PacketPUBLISH
	case OpPuback:
		return PacketPUBACK
	case OpSubscribe:
		return PacketSUBSCRIBE
	case OpUnsubscribe:
		return PacketUNSUBSCRIBE
	case OpPingreq:
		return PacketPINGREQ
	case OpDisconnect:
		return PacketDISCONNECT
	default:
		return 0
	}
}

func (c *Connection) scheduleRetry(op *Operation) {
	delay := op.retry.nextPeriod
	op.job = c.jobs.Schedule(delay, func() {
		op.mu.Lock()
		if op.completed {
			op.mu.Unlock()
			return
		}
		if op.retry.count >= op.retry.limit {
			op.mu.Unlock()
			c.processCompleteStatus(op, StatusRetryNoResponse)
			return
		}
		op.retry.count++
		op.retry.nextPeriod *= 2
		if c.runtime.RetryCeiling > 0 && op.retry.nextPeriod > c.runtime.RetryCeiling {
			op.retry.nextPeriod = c.runtime.RetryCeiling
		}
		op.mu.Unlock()

		if c.awsMode && op.packetIDOffset > 0 && op.packetIDOffset+2 <= len(op.packet) {
			binary.BigEndian.PutUint16(op.packet[op.packetIDOffset:], op.packetID)
		}

		c.sendMu.Lock()
		n, err := c.handle.Send(op.packet)
		c.sendMu.Unlock()

		if err != nil || n < len(op.packet) {
			c.processCompleteStatus(op, StatusNetworkError)
			return
		}

		c.metrics.Retransmit()
		c.scheduleRetry(op)
	})
}

// onReceive is the transport's push callback. It accumulates bytes and
// decodes as many complete packets as are available.
func (c *Connection) onReceive(data []byte, err error) {
	if err != nil {
		c.handleNetworkError(err)
		return
	}

	c.recvBuf.Write(data)
	for {
		pkt, n, decErr := ReadPacket(bytes.NewReader(c.recvBuf.Bytes()), 0)
		if decErr == io.EOF || decErr == io.ErrUnexpectedEOF {
			return // incomplete packet, wait for more bytes
		}
		if decErr != nil {
			c.logger.Error("malformed packet from broker", LogFields{LogFieldError: decErr.Error()})
			c.failCorrelated(nil, StatusBadResponse)
			c.handleNetworkError(decErr)
			return
		}
		remaining := make([]byte, c.recvBuf.Len()-n)
		copy(remaining, c.recvBuf.Bytes()[n:])
		c.recvBuf.Reset()
		c.recvBuf.Write(remaining)

		c.metrics.BytesReceived(n)
		c.dispatch(pkt)

		if c.recvBuf.Len() == 0 {
			return
		}
	}
}

func (c *Connection) handleNetworkError(err error) {
	c.logger.Warn("transport receive error", LogFields{LogFieldError: err.Error()})
	c.closeConnection(StatusNetworkError)
}

// dispatch routes one decoded inbound packet per the process-receive
// component design.
func (c *Connection) dispatch(pkt Packet) {
	c.metrics.PacketReceived(pkt.Type())

	switch p := pkt.(type) {
	case *ConnackPacket:
		c.lastConnackSessionPresent = p.SessionPresent
		op := c.takePendingByType(OpConnect)
		if op == nil {
			return
		}
		if p.ReturnCode == ConnectAccepted {
			c.processCompleteStatus(op, StatusSuccess)
		} else {
			c.processCompleteStatus(op, StatusServerRefused)
		}

	case *SubackPacket:
		op := c.takePendingResponse(p.PacketIdentifier)
		if op == nil {
			return
		}
		c.pruneRejectedSubscriptions(p)
		c.processCompleteStatus(op, StatusSuccess)

	case *UnsubackPacket:
		op := c.takePendingResponse(p.PacketIdentifier)
		if op == nil {
			return
		}
		c.processCompleteStatus(op, StatusSuccess)

	case *PublishPacket:
		c.deliverInbound(p)

	case *PubackPacket:
		op := c.takePendingResponse(p.PacketIdentifier)
		if op == nil {
			return
		}
		if op.job != nil {
			op.job.TryCancel()
		}
		_ = c.packetIDs.Release(op.packetID)
		c.processCompleteStatus(op, StatusSuccess)

	case *PingrespPacket:
		c.refsMu.Lock()
		c.pingOutstanding = false
		c.refsMu.Unlock()

	case *DisconnectPacket:
		c.closeConnection(StatusNetworkError)
	}
}

func (c *Connection) pruneRejectedSubscriptions(p *SubackPacket) {
	entries := c.subs.byPacketIDSnapshot(p.PacketIdentifier)
	for i, e := range entries {
		if i >= len(p.ReturnCodes) || p.ReturnCodes[i].Failure() {
			c.subs.removeEntry(e)
		}
	}
}

func (c *Connection) deliverInbound(p *PublishPacket) {
	c.metrics.MessageReceived(p.QoS)
	msg := p.ToMessage()

	entries := c.subs.Match(p.Topic)
	for _, e := range entries {
		e.mu.Lock()
		cb := e.callback
		e.mu.Unlock()
		if cb != nil {
			cb(msg)
		}
		if e.release() {
			c.subs.forget(e)
		}
	}

	if p.QoS == 1 {
		ack := &PubackPacket{PacketIdentifier: p.PacketIdentifier}
		var buf bytes.Buffer
		if _, err := ack.Encode(&buf); err != nil {
			return
		}
		packetBuf, err := c.allocEncoded(&buf)
		if err != nil {
			return
		}
		op := newOperation(OpPuback, 0, packetBuf, p.PacketIdentifier, c)
		c.addRef()
		c.enqueueSend(op)
		c.scheduleProcessSend(op)
	}
}

func (c *Connection) takePendingByType(opType OperationType) *Operation {
	c.refsMu.Lock()
	defer c.refsMu.Unlock()
	for id, op := range c.pendingResponse {
		if op.opType == opType {
			delete(c.pendingResponse, id)
			return op
		}
	}
	return nil
}

func (c *Connection) takePendingResponse(packetID uint16) *Operation {
	c.refsMu.Lock()
	defer c.refsMu.Unlock()
	op, ok := c.pendingResponse[packetID]
	if !ok {
		return nil
	}
	delete(c.pendingResponse, packetID)
	return op
}

func (c *Connection) failCorrelated(op *Operation, status Status) {
	if op == nil {
		return
	}
	c.processCompleteStatus(op, status)
}

// processCompleteStatus removes the operation from whichever list it is
// on, completes it, and drops the scheduler's reference.
func (c *Connection) processCompleteStatus(op *Operation, status Status) {
	c.refsMu.Lock()
	delete(c.pendingResponse, op.packetID)
	for i, pending := range c.pendingSend {
		if pending == op {
			c.pendingSend = append(c.pendingSend[:i], c.pendingSend[i+1:]...)
			break
		}
	}
	c.refsMu.Unlock()

	if op.packetID != 0 && status != StatusPending {
		_ = c.packetIDs.Release(op.packetID)
	}
	op.complete(status)
	c.processComplete(op)
}

func (c *Connection) processComplete(op *Operation) {
	op.release()
}

func (c *Connection) armKeepAlive(delay time.Duration) {
	c.keepAliveJob = c.jobs.Schedule(delay, c.fireKeepAlive)
}

func (c *Connection) fireKeepAlive() {
	if c.isDisconnected() {
		return
	}

	c.sendMu.Lock()
	_, err := c.handle.Send(c.pingreqPacket)
	c.sendMu.Unlock()
	if err != nil {
		c.closeConnection(StatusNetworkError)
		return
	}

	c.refsMu.Lock()
	c.pingOutstanding = true
	c.refsMu.Unlock()

	c.jobs.Schedule(c.runtime.ResponseWait, func() {
		c.refsMu.Lock()
		stillWaiting := c.pingOutstanding
		c.refsMu.Unlock()
		if stillWaiting {
			c.closeConnection(StatusNetworkError)
		}
	})

	c.armKeepAlive(time.Duration(c.keepAliveMS) * time.Millisecond)
}

// closeConnection marks the connection disconnected, fails every
// outstanding operation with NETWORK_ERROR, cancels the keep-alive job,
// and closes the transport.
func (c *Connection) closeConnection(reason Status) {
	c.refsMu.Lock()
	if c.disconnected {
		c.refsMu.Unlock()
		return
	}
	c.disconnected = true
	pending := append([]*Operation{}, c.pendingSend...)
	for _, op := range c.pendingResponse {
		pending = append(pending, op)
	}
	c.pendingSend = nil
	c.pendingResponse = make(map[uint16]*Operation)
	hadKeepAlive := c.keepAliveJob != nil
	c.refsMu.Unlock()

	if c.subs.Len() > 0 {
		c.prevSubs.Snapshot(c.clientID, c.subs.Snapshot())
	}
	c.subs.Clear()

	for _, op := range pending {
		op.complete(reason)
		op.release()
	}

	c.jobs.CancelAll()
	if hadKeepAlive {
		c.releaseRef()
	}

	if c.handle != nil && c.ownNetwork {
		_ = c.handle.Close()
	}

	c.metrics.ConnectionClosed()
}

// disconnect implements the public Disconnect contract: optionally send
// a waitable DISCONNECT, then unconditionally tear the connection down.
func (c *Connection) disconnect(cleanupOnly bool) Status {
	if !c.isDisconnected() && !cleanupOnly {
		pkt := &DisconnectPacket{}
		var buf bytes.Buffer
		if _, err := pkt.Encode(&buf); err == nil {
			if packetBuf, err := c.allocEncoded(&buf); err == nil {
				op := newOperation(OpDisconnect, FlagWaitable, packetBuf, 0, c)
				c.addRef()
				c.enqueueSend(op)
				c.scheduleProcessSend(op)
				op.Wait(c.runtime.ResponseWait)
			}
		}
	}

	c.closeConnection(StatusNetworkError)
	c.releaseRef()
	return StatusSuccess
}
