package mqsession

import (
	"context"
	"sync"
)

// Handle tracks one Publish, Subscribe or Unsubscribe request.
//
// The call that returns a Handle never blocks; the outcome arrives later.
// It is reported both here and as an event carrying the same ID.
//
//	h := s.Publish("status", []byte("1"), mqsession.WithQoS(mqsession.AtLeastOnce))
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	if err := h.Wait(ctx); err != nil {
//	    log.Printf("publish failed: %v", err)
//	}
type Handle struct {
	id uint64

	done    chan struct{}
	err     error
	granted QoS
	once    sync.Once
}

func newHandle(id uint64) *Handle {
	return &Handle{
		id:   id,
		done: make(chan struct{}),
	}
}

// ID returns the request identifier used in the matching events. It is
// unique within a Session, unlike the 16-bit MQTT packet identifier.
func (h *Handle) ID() uint64 {
	return h.id
}

// Wait blocks until the request completes or the context is cancelled.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel that closes when the request is complete.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the request's error once it is complete, and nil before.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// GrantedQoS returns the QoS granted by the broker for a completed Subscribe.
func (h *Handle) GrantedQoS() QoS {
	select {
	case <-h.done:
		return h.granted
	default:
		return AtMostOnce
	}
}

// complete marks the handle as complete with the given error.
// Later calls are ignored.
func (h *Handle) complete(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}

func (h *Handle) completeGranted(qos QoS) {
	h.once.Do(func() {
		h.granted = qos
		close(h.done)
	})
}

// failedHandle returns a handle that is already complete with err.
func failedHandle(id uint64, err error) *Handle {
	h := newHandle(id)
	h.complete(err)
	return h
}
