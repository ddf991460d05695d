package mqttiot

// WillMessage represents an MQTT Last Will and Testament message: the
// message a broker publishes on the client's behalf if the network
// connection closes without a prior DISCONNECT.
type WillMessage struct {
	// Topic is the will topic.
	Topic string

	// Payload is the will payload.
	Payload []byte

	// QoS is the quality of service level (0 or 1).
	QoS byte

	// Retain indicates if the will message should be retained.
	Retain bool
}

// WillMessageFromConnect extracts the will message from a CONNECT
// packet's will fields, or returns nil if the packet carries no will.
func WillMessageFromConnect(pkt *ConnectPacket) *WillMessage {
	if !pkt.WillFlag {
		return nil
	}

	return &WillMessage{
		Topic:   pkt.WillTopic,
		Payload: pkt.WillPayload,
		QoS:     pkt.WillQoS,
		Retain:  pkt.WillRetain,
	}
}

// willMessageFromInfo converts the public WillInfo a caller supplies to
// Connect into the WillMessage representation the rest of this file
// operates on, or returns nil if w is nil.
func willMessageFromInfo(w *WillInfo) *WillMessage {
	if w == nil {
		return nil
	}
	return &WillMessage{
		Topic:   w.Topic,
		Payload: w.Payload,
		QoS:     w.QoS,
		Retain:  w.Retain,
	}
}

// ToMessage converts a WillMessage to a Message for publishing.
func (w *WillMessage) ToMessage() *Message {
	return &Message{
		Topic:   w.Topic,
		Payload: w.Payload,
		QoS:     w.QoS,
		Retain:  w.Retain,
	}
}

// Validate validates the will message.
func (w *WillMessage) Validate() error {
	if err := ValidateTopicName(w.Topic); err != nil {
		return err
	}
	if w.QoS > 1 {
		return ErrInvalidQoS
	}
	return nil
}
