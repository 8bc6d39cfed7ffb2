package mqsession

import "fmt"

// Subscribe asks the broker for messages matching filter. Matching messages
// arrive as MessageReceived events.
//
// On SUBACK the handle completes, Handle.GrantedQoS reports the QoS the
// broker granted, and a Subscribed event is emitted. A rejected filter
// completes the handle with ErrSubscriptionFailed and emits an Error event.
//
//	h := s.Subscribe("cmd/#", mqsession.AtLeastOnce)
//	if err := h.Wait(ctx); err == nil {
//	    log.Printf("granted %v", h.GrantedQoS())
//	}
func (s *Session) Subscribe(filter string, qos QoS) *Handle {
	id := s.nextRequestID()
	if err := validateSubscribeTopic(filter); err != nil {
		return failedHandle(id, err)
	}
	if !qos.valid() {
		return failedHandle(id, fmt.Errorf("%w: %d", ErrInvalidQoS, qos))
	}
	return s.submit(&request{
		kind:   kindSubscribe,
		handle: newHandle(id),
		topic:  filter,
		qos:    qos,
	})
}

// Unsubscribe removes filter. On UNSUBACK the filter leaves the
// subscription table and an Unsubscribed event is emitted.
func (s *Session) Unsubscribe(filter string) *Handle {
	id := s.nextRequestID()
	if err := validateSubscribeTopic(filter); err != nil {
		return failedHandle(id, err)
	}
	return s.submit(&request{
		kind:   kindUnsubscribe,
		handle: newHandle(id),
		topic:  filter,
	})
}
