package mqttiot

import (
	"errors"
	"io"
)

var (
	ErrInvalidPacketID   = errors.New("invalid packet identifier")
	ErrProtocolViolation = errors.New("protocol violation")
)

// Subscription represents a topic filter and the maximum QoS the client
// requests for it. MQTT 3.1.1's subscription options are a single QoS
// value — there is no NoLocal, RetainAsPublish, RetainHandling or
// subscription identifier (all MQTT 5 additions).
type Subscription struct {
	TopicFilter string
	QoS         byte
}

// SubscribePacket represents an MQTT 3.1.1 SUBSCRIBE packet.
type SubscribePacket struct {
	PacketIdentifier uint16
	Subscriptions    []Subscription
}

// Type returns the packet type.
func (p *SubscribePacket) Type() PacketType { return PacketSUBSCRIBE }

// PacketID returns the packet identifier.
func (p *SubscribePacket) PacketID() uint16 { return p.PacketIdentifier }

// SetPacketID sets the packet identifier.
func (p *SubscribePacket) SetPacketID(id uint16) { p.PacketIdentifier = id }

// Encode writes the packet to the writer.
func (p *SubscribePacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	buf := getBytesBuffer()
	defer putBytesBuffer(buf)

	if _, err := buf.Write([]byte{byte(p.PacketIdentifier >> 8), byte(p.PacketIdentifier)}); err != nil {
		return 0, err
	}

	for _, sub := range p.Subscriptions {
		if _, err := encodeString(buf, sub.TopicFilter); err != nil {
			return 0, err
		}
		if err := writeByte(buf, sub.QoS&0x03); err != nil {
			return 0, err
		}
	}

	header := FixedHeader{
		PacketType:      PacketSUBSCRIBE,
		Flags:           0x02,
		RemainingLength: uint32(len(buf.Bytes())),
	}

	total, err := header.Encode(w)
	if err != nil {
		return total, err
	}

	n, err := w.Write(buf.Bytes())
	return total + n, err
}

// Decode reads the packet from the reader.
func (p *SubscribePacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketSUBSCRIBE {
		return 0, ErrInvalidPacketType
	}
	if header.Flags != 0x02 {
		return 0, ErrInvalidPacketFlags
	}

	var totalRead int

	var idBuf [2]byte
	n, err := io.ReadFull(r, idBuf[:])
	totalRead += n
	if err != nil {
		return totalRead, err
	}
	p.PacketIdentifier = uint16(idBuf[0])<<8 | uint16(idBuf[1])

	p.Subscriptions = nil
	for totalRead < int(header.RemainingLength) {
		var sub Subscription

		topicFilter, n, err := decodeString(r)
		totalRead += n
		if err != nil {
			return totalRead, err
		}
		sub.TopicFilter = topicFilter

		var optBuf [1]byte
		n, err = io.ReadFull(r, optBuf[:])
		totalRead += n
		if err != nil {
			return totalRead, err
		}
		options := optBuf[0]

		// Reserved bits (2-7) must be 0.
		if options&0xFC != 0 {
			return totalRead, ErrProtocolViolation
		}
		sub.QoS = options & 0x03

		p.Subscriptions = append(p.Subscriptions, sub)
	}

	return totalRead, nil
}

// Validate validates the packet contents.
func (p *SubscribePacket) Validate() error {
	if p.PacketIdentifier == 0 {
		return ErrInvalidPacketID
	}
	if len(p.Subscriptions) == 0 {
		return ErrProtocolViolation
	}
	for _, sub := range p.Subscriptions {
		if sub.TopicFilter == "" {
			return ErrProtocolViolation
		}
		if sub.QoS > 1 {
			return ErrInvalidQoS
		}
	}
	return nil
}
