package mqsession

import "fmt"

// PublishOptions holds configuration for a publish operation.
type PublishOptions struct {
	QoS    QoS
	Retain bool
}

// PublishOption is a functional option for configuring a PUBLISH packet.
type PublishOption func(*PublishOptions)

// WithQoS sets the Quality of Service level for the publish.
//
// Default is QoS 0.
func WithQoS(qos QoS) PublishOption {
	return func(o *PublishOptions) {
		o.QoS = qos
	}
}

// WithRetain sets the retain flag for the publish.
//
// When true, the broker stores the message and delivers it to future
// subscribers of the topic. Default is false.
func WithRetain(retain bool) PublishOption {
	return func(o *PublishOptions) {
		o.Retain = retain
	}
}

// Publish sends an application message to topic. It never blocks on the
// network; the returned Handle and a Published or Error event report the
// outcome.
//
// Invalid arguments complete the handle immediately with an error and
// produce no event.
//
//	h := s.Publish("devices/sensor-1/status", []byte("1"),
//	    mqsession.WithQoS(mqsession.AtLeastOnce))
func (s *Session) Publish(topic string, payload []byte, opts ...PublishOption) *Handle {
	o := PublishOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	id := s.nextRequestID()
	if err := validatePublishTopic(topic, 0); err != nil {
		return failedHandle(id, err)
	}
	if !o.QoS.valid() {
		return failedHandle(id, fmt.Errorf("%w: %d", ErrInvalidQoS, o.QoS))
	}
	if err := validatePayload(payload); err != nil {
		return failedHandle(id, err)
	}

	return s.submit(&request{
		kind:    kindPublish,
		handle:  newHandle(id),
		topic:   topic,
		payload: append([]byte(nil), payload...),
		qos:     o.QoS,
		retain:  o.Retain,
	})
}
