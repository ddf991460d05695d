package mqttiot

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// qosRule validates that a QoS byte is 0 or 1; this profile never offers
// QoS2.
type qosRule struct{}

func (qosRule) Validate(value any) error {
	qos, ok := value.(byte)
	if !ok {
		return nil
	}
	if qos > 1 {
		return ErrInvalidQoS
	}
	return nil
}

// topicNameRule validates a publish topic name via ValidateTopicName.
type topicNameRule struct{}

func (topicNameRule) Validate(value any) error {
	topic, ok := value.(string)
	if !ok {
		return nil
	}
	return ValidateTopicName(topic)
}

// topicFilterRule validates a subscribe topic filter via ValidateTopicFilter.
type topicFilterRule struct{}

func (topicFilterRule) Validate(value any) error {
	filter, ok := value.(string)
	if !ok {
		return nil
	}
	return ValidateTopicFilter(filter)
}

// ValidateConnectInfo checks a ConnectInfo for the constraints the wire
// encoding itself cannot express: a client identifier of at most 23
// characters (an empty one is accepted here), and a will whose QoS and
// topic are valid when a will is set at all. The will payload size is
// not checked here.
func ValidateConnectInfo(info *ConnectInfo) error {
	if info == nil {
		return errors.New("connect info is nil")
	}

	err := validation.Errors{
		"ClientID":  validation.Validate(info.ClientID, validation.Length(0, 23)),
		"KeepAlive": validation.Validate(info.KeepAlive, validation.Min(uint16(0))),
	}.Filter()
	if err != nil {
		return err
	}

	if info.Will != nil {
		return ValidateWillInfo(info.Will)
	}
	return nil
}

// ValidateWillInfo checks a WillInfo's topic and QoS.
func ValidateWillInfo(w *WillInfo) error {
	if w == nil {
		return nil
	}
	return validation.Errors{
		"Topic": validation.Validate(w.Topic, validation.Required, topicNameRule{}),
		"QoS":   validation.Validate(w.QoS, qosRule{}),
	}.Filter()
}

// ValidatePublishInfo checks a PublishInfo's topic and QoS.
func ValidatePublishInfo(p *PublishInfo) error {
	if p == nil {
		return errors.New("publish info is nil")
	}
	return validation.Errors{
		"Topic": validation.Validate(p.Topic, validation.Required, topicNameRule{}),
		"QoS":   validation.Validate(p.QoS, qosRule{}),
	}.Filter()
}

// ValidateSubscriptions checks a non-empty list of subscriptions, each
// with a valid topic filter and QoS.
func ValidateSubscriptions(subs []Subscription) error {
	if len(subs) == 0 {
		return errors.New("subscription list is empty")
	}
	for i, sub := range subs {
		err := validation.Errors{
			"TopicFilter": validation.Validate(sub.TopicFilter, validation.Required, topicFilterRule{}),
			"QoS":         validation.Validate(sub.QoS, qosRule{}),
		}.Filter()
		if err != nil {
			return errorsJoin(i, err)
		}
	}
	return nil
}

func errorsJoin(index int, err error) error {
	return validation.Errors{"Subscriptions": err}.Filter()
}
