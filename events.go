package mqsession

import (
	"sync"
	"time"
)

// Event is a notification from the session. The concrete types are
// Connected, Disconnected, Subscribed, Unsubscribed, Published,
// MessageReceived and Error.
//
//	for ev := range s.Events() {
//	    switch ev := ev.(type) {
//	    case mqsession.Connected:
//	        ...
//	    case mqsession.MessageReceived:
//	        fmt.Println(ev.Topic, string(ev.Payload))
//	    }
//	}
type Event interface {
	isEvent()
}

// Connected is emitted when the broker accepts the connection.
type Connected struct {
	// SessionPresent is the CONNACK flag: the broker resumed stored state.
	SessionPresent bool
}

// Disconnected is emitted when the session returns to StateDisconnected.
// Err is nil after a requested Disconnect and carries the cause otherwise.
type Disconnected struct {
	Err error
}

// Subscribed is emitted when a SUBACK arrives for a successful subscription.
type Subscribed struct {
	ID         uint64
	Filter     string
	GrantedQoS QoS
}

// Unsubscribed is emitted when an UNSUBACK arrives.
type Unsubscribed struct {
	ID     uint64
	Filter string
}

// Published is emitted when a publish completes: on write for QoS 0, on
// PUBACK for QoS 1 and on PUBCOMP for QoS 2.
type Published struct {
	ID    uint64
	Topic string
	QoS   QoS
}

// MessageReceived is emitted for every application message from the broker.
// For QoS 2 it is emitted once, when the PUBLISH first arrives.
type MessageReceived struct {
	Topic     string
	Payload   []byte
	QoS       QoS
	Retained  bool
	Duplicate bool
}

// Error is emitted for failures. ID is the request that failed, or 0 for
// connection-level errors (which are followed by Disconnected).
type Error struct {
	ID  uint64
	Err error
}

func (Connected) isEvent()       {}
func (Disconnected) isEvent()    {}
func (Subscribed) isEvent()      {}
func (Unsubscribed) isEvent()    {}
func (Published) isEvent()       {}
func (MessageReceived) isEvent() {}
func (Error) isEvent()           {}

// eventQueue delivers events in order on a channel without ever blocking
// the producer. Pending events sit in a slice until the consumer takes them.
//
// After close, each remaining event waits at most drainTimeout for the
// consumer; if nobody takes it the rest are dropped and out is closed.
type eventQueue struct {
	mu     sync.Mutex
	items  []Event
	closed bool

	drainTimeout time.Duration
	wake         chan struct{}
	closing      chan struct{}
	out          chan Event
}

func newEventQueue(drainTimeout time.Duration) *eventQueue {
	q := &eventQueue{
		drainTimeout: drainTimeout,
		wake:         make(chan struct{}, 1),
		closing:      make(chan struct{}),
		out:          make(chan Event),
	}
	go q.run()
	return q
}

// push appends e. It never blocks; events pushed after close are dropped.
func (q *eventQueue) push(e Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, e)
	q.mu.Unlock()
	q.signal()
}

// close stops accepting events. The output channel is closed once every
// pending event has been received or abandoned.
func (q *eventQueue) close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.closing)
	}
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) run() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		e := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- e:
			continue
		case <-q.closing:
		}

		timer := time.NewTimer(q.drainTimeout)
		select {
		case q.out <- e:
			timer.Stop()
		case <-timer.C:
			q.mu.Lock()
			q.items = nil
			q.mu.Unlock()
			return
		}
	}
}
