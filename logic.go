package mqsession

import (
	"fmt"
	"time"

	"github.com/gonzalop/mqsession/internal/packets"
)

// logicLoop is the session worker. It is the only goroutine that touches
// the connection state, so none of it needs a mutex.
func (s *Session) logicLoop() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.opts.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case cmd := <-s.cmds:
			cmd()

		case in := <-s.inbound:
			s.handleInbound(in)

		case now := <-ticker.C:
			s.tick(now)

		case <-s.stop:
			s.shutdown()
			return
		}
	}
}

// tick drives the timers: connect timeout, retransmission and keepalive.
func (s *Session) tick(now time.Time) {
	switch s.state {
	case StateConnecting:
		if s.conn != nil && !s.connectDeadline.IsZero() && !now.Before(s.connectDeadline) {
			s.fail(&ConnectError{Reason: ConnectTimeout, Err: ErrConnectTimeout})
		}

	case StateConnected:
		s.retransmit(now)
		if s.state != StateConnected {
			return
		}
		switch s.keepAlive.check(now) {
		case keepAlivePing:
			if s.send(&packets.PingreqPacket{}) == nil {
				s.keepAlive.pinged(now)
			}
		case keepAliveExpired:
			s.fail(&TransportError{Op: "keepalive", Err: ErrPingTimeout})
		}
	}
}

// handleInbound feeds bytes from the reader into the decoder and handles
// every complete packet.
func (s *Session) handleInbound(in inbound) {
	if in.gen != s.gen || s.conn == nil {
		return
	}
	if in.err != nil {
		s.fail(&TransportError{Op: "read", Err: in.err})
		return
	}

	s.decoder.Feed(in.data)
	gen := s.gen
	for s.gen == gen {
		pkt, err := s.decoder.Next()
		if err != nil {
			if s.state == StateConnecting {
				s.fail(&ConnectError{Reason: ConnectMalformed, Err: err})
			} else {
				s.fail(&ProtocolError{Err: err})
			}
			return
		}
		if pkt == nil {
			return
		}
		s.packetsReceived.Add(1)
		s.keepAlive.received(time.Now())
		s.logger.Debug("received packet", "type", packets.Name(pkt.Type()))
		s.handlePacket(pkt)
	}
}

func (s *Session) handlePacket(pkt packets.Packet) {
	if s.state == StateConnecting {
		connack, ok := pkt.(*packets.ConnackPacket)
		if !ok {
			s.fail(&ConnectError{
				Reason: ConnectMalformed,
				Err:    fmt.Errorf("%w: %s before CONNACK", errUnexpectedPacket, packets.Name(pkt.Type())),
			})
			return
		}
		s.handleConnack(connack)
		return
	}

	switch p := pkt.(type) {
	case *packets.PublishPacket:
		s.handlePublish(p)
	case *packets.PubackPacket:
		s.handlePuback(p)
	case *packets.PubrecPacket:
		s.handlePubrec(p)
	case *packets.PubrelPacket:
		s.handlePubrel(p)
	case *packets.PubcompPacket:
		s.handlePubcomp(p)
	case *packets.SubackPacket:
		s.handleSuback(p)
	case *packets.UnsubackPacket:
		s.handleUnsuback(p)
	case *packets.PingrespPacket:
		s.keepAlive.pong()
	default:
		// CONNACK after connecting, or packets only a broker receives.
		s.fail(&ProtocolError{Packet: packets.Name(pkt.Type()), Err: errUnexpectedPacket})
	}
}

func (s *Session) handleConnack(p *packets.ConnackPacket) {
	if p.ReturnCode != packets.ConnAccepted {
		s.fail(newRefusedError(p.ReturnCode))
		return
	}

	_ = s.setState(StateConnected)
	s.connectDeadline = time.Time{}
	s.keepAlive.reset(time.Now())
	s.connectCount.Add(1)
	if !p.SessionPresent {
		clear(s.receivedQoS2)
	}

	s.logger.Info("connected", "server", s.opts.Server, "session_present", p.SessionPresent)
	s.events.push(Connected{SessionPresent: p.SessionPresent})

	if !p.SessionPresent && s.opts.Resubscribe {
		s.resubscribe()
	}
	s.flushQueue()
}

// handlePublish delivers an application message and acknowledges it.
func (s *Session) handlePublish(p *packets.PublishPacket) {
	msg := MessageReceived{
		Topic:     p.Topic,
		Payload:   p.Payload,
		QoS:       QoS(p.QoS),
		Retained:  p.Retain,
		Duplicate: p.Dup,
	}

	switch p.QoS {
	case packets.QoS0:
		s.events.push(msg)
	case packets.QoS1:
		s.events.push(msg)
		_ = s.send(&packets.PubackPacket{PacketID: p.PacketID})
	case packets.QoS2:
		// The broker may resend PUBLISH until it sees our PUBREC; deliver once.
		if _, seen := s.receivedQoS2[p.PacketID]; !seen {
			s.receivedQoS2[p.PacketID] = struct{}{}
			s.events.push(msg)
		}
		_ = s.send(&packets.PubrecPacket{PacketID: p.PacketID})
	}
}

// lookup finds the outstanding request an acknowledgement refers to. A
// missing or mismatched request is a protocol error and drops the connection.
func (s *Session) lookup(pkt packets.IdentifiedPacket, kind requestKind, qos QoS) (*outstanding, bool) {
	o, ok := s.tracker.get(pkt.ID())
	if ok && o.req.kind == kind && (kind != kindPublish || o.req.qos == qos) {
		return o, true
	}
	s.fail(&ProtocolError{Packet: packets.Name(pkt.Type()), PacketID: pkt.ID(), Err: errUnknownPacketID})
	return nil, false
}

// handlePuback completes a QoS 1 publish.
func (s *Session) handlePuback(p *packets.PubackPacket) {
	o, ok := s.lookup(p, kindPublish, AtLeastOnce)
	if !ok {
		return
	}
	s.tracker.release(o.id)
	s.completePublish(o.req)
}

// handlePubrec processes a PUBREC packet (QoS 2, step 1).
func (s *Session) handlePubrec(p *packets.PubrecPacket) {
	o, ok := s.lookup(p, kindPublish, ExactlyOnce)
	if !ok {
		return
	}
	if !o.released {
		o.released = true
		o.packet = &packets.PubrelPacket{PacketID: o.id}
		o.retries = 0
	}
	o.lastSent = time.Now()
	_ = s.send(o.packet)
}

// handlePubrel processes a PUBREL packet (QoS 2, step 2 of an inbound message).
// PUBCOMP is sent even for unknown identifiers so the broker can finish.
func (s *Session) handlePubrel(p *packets.PubrelPacket) {
	delete(s.receivedQoS2, p.PacketID)
	_ = s.send(&packets.PubcompPacket{PacketID: p.PacketID})
}

// handlePubcomp completes a QoS 2 publish.
func (s *Session) handlePubcomp(p *packets.PubcompPacket) {
	o, ok := s.lookup(p, kindPublish, ExactlyOnce)
	if !ok {
		return
	}
	if !o.released {
		s.fail(&ProtocolError{Packet: "PUBCOMP", PacketID: p.PacketID, Err: fmt.Errorf("%w: PUBCOMP before PUBREC", errUnexpectedPacket)})
		return
	}
	s.tracker.release(o.id)
	s.completePublish(o.req)
}

// handleSuback records the granted QoS or reports the rejection.
func (s *Session) handleSuback(p *packets.SubackPacket) {
	o, ok := s.lookup(p, kindSubscribe, AtMostOnce)
	if !ok {
		return
	}
	if len(p.ReturnCodes) != 1 {
		s.fail(&ProtocolError{Packet: "SUBACK", PacketID: p.PacketID, Err: fmt.Errorf("%w: %d return codes for one filter", errUnexpectedPacket, len(p.ReturnCodes))})
		return
	}
	s.tracker.release(o.id)

	req := o.req
	code := p.ReturnCodes[0]
	if code == packets.SubackFailure {
		s.logger.Warn("subscription rejected", "filter", req.topic)
		s.failRequest(req, fmt.Errorf("%w: %s", ErrSubscriptionFailed, req.topic))
		return
	}

	granted := QoS(code)
	s.subscriptions[req.topic] = &Subscription{
		Filter:       req.topic,
		RequestedQoS: req.qos,
		GrantedQoS:   granted,
	}
	if granted < req.qos {
		s.logger.Info("subscription downgraded", "filter", req.topic, "requested", req.qos, "granted", granted)
	}
	req.handle.completeGranted(granted)
	s.events.push(Subscribed{ID: req.handle.id, Filter: req.topic, GrantedQoS: granted})
}

// handleUnsuback removes the filter from the subscription table.
func (s *Session) handleUnsuback(p *packets.UnsubackPacket) {
	o, ok := s.lookup(p, kindUnsubscribe, AtMostOnce)
	if !ok {
		return
	}
	s.tracker.release(o.id)
	delete(s.subscriptions, o.req.topic)
	o.req.handle.complete(nil)
	s.events.push(Unsubscribed{ID: o.req.handle.id, Filter: o.req.topic})
}
