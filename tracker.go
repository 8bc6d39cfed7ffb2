package mqsession

import (
	"cmp"
	"slices"
	"time"

	"github.com/gonzalop/mqsession/internal/packets"
)

const maxPacketID = 65535

// outstanding is a request that has been written and awaits its
// acknowledgement.
type outstanding struct {
	id  uint16
	seq uint64
	req *request

	// packet is what a retransmission sends: the PUBLISH, or the PUBREL
	// once a QoS 2 publish has been received by the broker.
	packet   packets.Packet
	released bool

	retries  int
	lastSent time.Time
}

// tracker owns the packet identifier space and the in-flight table.
// It is only used from the session worker.
type tracker struct {
	inflight map[uint16]*outstanding
	lastID   uint16
	seq      uint64

	retryCount    int
	retryInterval time.Duration
}

func newTracker(retryCount int, retryInterval time.Duration) *tracker {
	return &tracker{
		inflight:      make(map[uint16]*outstanding),
		retryCount:    retryCount,
		retryInterval: retryInterval,
	}
}

// allocate returns the next free packet identifier (1-65535, cycling),
// skipping identifiers that are still outstanding.
func (t *tracker) allocate() (uint16, error) {
	if len(t.inflight) >= maxPacketID {
		return 0, ErrNoPacketID
	}
	for {
		t.lastID++
		if t.lastID == 0 {
			t.lastID = 1
		}
		if _, used := t.inflight[t.lastID]; !used {
			return t.lastID, nil
		}
	}
}

// add starts tracking o. The identifier must come from allocate.
func (t *tracker) add(o *outstanding) {
	t.seq++
	o.seq = t.seq
	t.inflight[o.id] = o
}

func (t *tracker) get(id uint16) (*outstanding, bool) {
	o, ok := t.inflight[id]
	return o, ok
}

// release stops tracking id and frees it for reuse.
func (t *tracker) release(id uint16) {
	delete(t.inflight, id)
}

func (t *tracker) len() int {
	return len(t.inflight)
}

// due collects the requests whose acknowledgement is overdue at now.
// Requests with retries left are returned in resend with their counters
// advanced and PUBLISH packets marked DUP; the rest are released and
// returned in expired. Both slices are in submission order.
func (t *tracker) due(now time.Time) (resend, expired []*outstanding) {
	for id, o := range t.inflight {
		if now.Sub(o.lastSent) < t.retryInterval {
			continue
		}
		if o.retries >= t.retryCount {
			delete(t.inflight, id)
			expired = append(expired, o)
			continue
		}
		o.retries++
		o.lastSent = now
		if pub, ok := o.packet.(*packets.PublishPacket); ok {
			pub.Dup = true
		}
		resend = append(resend, o)
	}
	slices.SortFunc(resend, bySeq)
	slices.SortFunc(expired, bySeq)
	return resend, expired
}

// drain releases every outstanding request and returns them in
// submission order.
func (t *tracker) drain() []*outstanding {
	all := make([]*outstanding, 0, len(t.inflight))
	for _, o := range t.inflight {
		all = append(all, o)
	}
	clear(t.inflight)
	slices.SortFunc(all, bySeq)
	return all
}

func bySeq(a, b *outstanding) int {
	return cmp.Compare(a.seq, b.seq)
}
