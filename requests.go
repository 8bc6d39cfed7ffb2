package mqsession

import (
	"errors"
	"fmt"
	"time"

	"github.com/gonzalop/mqsession/internal/packets"
)

type requestKind int

const (
	kindPublish requestKind = iota + 1
	kindSubscribe
	kindUnsubscribe
)

func (k requestKind) String() string {
	switch k {
	case kindPublish:
		return "publish"
	case kindSubscribe:
		return "subscribe"
	case kindUnsubscribe:
		return "unsubscribe"
	default:
		return "unknown"
	}
}

// request is a Publish, Subscribe or Unsubscribe call on its way to the
// broker. topic holds the filter for subscribe and unsubscribe.
type request struct {
	kind    requestKind
	handle  *Handle
	topic   string
	payload []byte
	qos     QoS
	retain  bool
}

// submit hands req to the worker. The handle is returned whether or not
// the worker accepted it.
func (s *Session) submit(req *request) *Handle {
	select {
	case s.cmds <- func() { s.handleRequest(req) }:
	case <-s.stopped:
		req.handle.complete(ErrSessionClosed)
	}
	return req.handle
}

// handleRequest applies the offline policy or sends req right away.
func (s *Session) handleRequest(req *request) {
	if s.state != StateConnected {
		if s.opts.OfflinePolicy == OfflineQueue {
			s.queue = append(s.queue, req)
			s.logger.Debug("queued request while offline", "kind", req.kind, "topic", req.topic, "id", req.handle.id)
			return
		}
		s.failRequest(req, ErrNotConnected)
		return
	}
	s.sendRequest(req)
}

// flushQueue sends requests queued while offline, in call order. If the
// connection drops halfway, the rest go back through handleRequest.
func (s *Session) flushQueue() {
	queued := s.queue
	s.queue = nil
	for _, req := range queued {
		s.handleRequest(req)
	}
}

// resubscribe restores the subscription table after the broker reported
// that it had no session for us.
func (s *Session) resubscribe() {
	for _, sub := range s.subscriptionList() {
		if s.state != StateConnected {
			return
		}
		s.logger.Debug("resubscribing", "filter", sub.Filter, "qos", sub.RequestedQoS)
		s.sendRequest(&request{
			kind:   kindSubscribe,
			handle: newHandle(s.nextRequestID()),
			topic:  sub.Filter,
			qos:    sub.RequestedQoS,
		})
	}
}

func (s *Session) sendRequest(req *request) {
	var pkt packets.Packet
	switch req.kind {
	case kindPublish:
		pub := &packets.PublishPacket{
			Topic:   req.topic,
			QoS:     uint8(req.qos),
			Retain:  req.retain,
			Payload: req.payload,
		}
		if req.qos == AtMostOnce {
			s.sendFireAndForget(req, pub)
			return
		}
		pkt = pub
	case kindSubscribe:
		pkt = &packets.SubscribePacket{Topics: []string{req.topic}, QoS: []uint8{uint8(req.qos)}}
	case kindUnsubscribe:
		pkt = &packets.UnsubscribePacket{Topics: []string{req.topic}}
	}

	id, err := s.tracker.allocate()
	if err != nil {
		s.failRequest(req, err)
		return
	}
	switch p := pkt.(type) {
	case *packets.PublishPacket:
		p.PacketID = id
	case *packets.SubscribePacket:
		p.PacketID = id
	case *packets.UnsubscribePacket:
		p.PacketID = id
	}

	s.tracker.add(&outstanding{
		id:       id,
		req:      req,
		packet:   pkt,
		lastSent: time.Now(),
	})
	if err := s.send(pkt); err != nil && !isTransport(err) {
		// The packet never reached the wire; the identifier is free again.
		s.tracker.release(id)
		s.failRequest(req, err)
	}
}

// sendFireAndForget writes a QoS 0 publish; it completes on write.
func (s *Session) sendFireAndForget(req *request, pub *packets.PublishPacket) {
	err := s.send(pub)
	switch {
	case err == nil:
		s.completePublish(req)
	case isTransport(err):
		s.failRequest(req, ErrDisconnected)
	default:
		s.failRequest(req, err)
	}
}

func (s *Session) completePublish(req *request) {
	req.handle.complete(nil)
	s.events.push(Published{ID: req.handle.id, Topic: req.topic, QoS: req.qos})
}

// failRequest completes req with err and reports it as an Error event.
func (s *Session) failRequest(req *request, err error) {
	s.logger.Debug("request failed", "kind", req.kind, "topic", req.topic, "id", req.handle.id, "error", err)
	req.handle.complete(err)
	s.events.push(Error{ID: req.handle.id, Err: err})
}

// retransmit resends overdue requests and fails the ones out of retries.
func (s *Session) retransmit(now time.Time) {
	resend, expired := s.tracker.due(now)
	for _, o := range expired {
		s.logger.Warn("request timed out", "kind", o.req.kind, "topic", o.req.topic, "packet_id", o.id, "retries", o.retries)
		s.failRequest(o.req, fmt.Errorf("%w after %d retries", ErrRequestTimeout, o.retries))
	}
	for _, o := range resend {
		s.logger.Debug("retransmitting", "packet", packets.Name(o.packet.Type()), "packet_id", o.id, "attempt", o.retries)
		if err := s.send(o.packet); err != nil {
			return
		}
	}
}

func isTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
