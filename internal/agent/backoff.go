package agent

import (
	"sync"
	"time"
)

// Backoff yields reconnect delays that double from Initial up to Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration

	mu   sync.Mutex
	next time.Duration
}

// Next returns the delay to wait now and doubles the following one.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.next == 0 {
		b.next = b.Initial
	}
	d := b.next
	b.next = min(b.next*2, b.Max)
	return d
}

// Reset starts the sequence over, after a successful connection.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.next = 0
	b.mu.Unlock()
}
