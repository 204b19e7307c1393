package ss7

import "container/heap"

// PendingKind distinguishes the two reasons a management entity parks a
// message awaiting a deadline (§4.5): it either owes a peer an
// acknowledgment it cannot yet compute, or it is waiting on a peer's
// acknowledgment to something it already sent.
type PendingKind int

const (
	// PendingAckPostponed means MSU is not yet sendable — the entity is
	// retrying whatever computation (e.g. a changeover sequence number)
	// blocks the acknowledgment, not retransmitting bytes on the wire.
	PendingAckPostponed PendingKind = iota
	// PendingRequestRetry means MSU already holds the exact bytes sent;
	// each non-final tick blindly retransmits it unchanged.
	PendingRequestRetry
)

// PendingMessage is an outstanding SNM exchange awaiting resolution: the
// buffered MSU/label it was (or will be) sent with, the send SLS, and the
// two deadlines §3/§4.5 describe — a retransmit interval and a final
// global expiry.
type PendingMessage struct {
	ID       uint64
	Kind     PendingKind
	Code     SNMCode
	MSU      MSU
	Label    Label
	Slc      byte
	TxSls    int
	Interval Millis
	Global   Millis // absolute deadline, not a duration

	nextFire Millis
	index    int
}

// pendingHeap is a min-heap on nextFire, the same container/heap shape
// scheduler.go uses for its service-time heap (timer.go reuses it too;
// kept as a separate type here since PendingMessage carries SNM-specific
// fields a generic Timer does not).
type pendingHeap []*PendingMessage

func (h pendingHeap) Len() int           { return len(h) }
func (h pendingHeap) Less(i, j int) bool { return h[i].nextFire < h[j].nextFire }
func (h pendingHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}

func (h *pendingHeap) Push(x any) {
	p := x.(*PendingMessage)
	p.index = len(*h)
	*h = append(*h, p)
}

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	p := old[n-1]
	old[n-1] = nil
	p.index = -1
	*h = old[:n-1]
	return p
}

// PendingTable is the SNM management entity's pending-message table
// (§3, §4.5). It has no lock of its own: its methods are not safe for
// concurrent use.
type PendingTable struct {
	heap   pendingHeap
	nextID uint64
}

// NewPendingTable creates an empty pending-message table.
func NewPendingTable() *PendingTable {
	return &PendingTable{heap: pendingHeap{}}
}

// Add enqueues p, computing its first retransmit deadline from now.
func (t *PendingTable) Add(p *PendingMessage, now Millis) {
	t.nextID++
	p.ID = t.nextID
	p.nextFire = now + p.Interval
	heap.Push(&t.heap, p)
}

// Remove deletes p from the table if still present (used once an
// acknowledgment resolves it).
func (t *PendingTable) Remove(p *PendingMessage) {
	if p.index >= 0 && p.index < len(t.heap) && t.heap[p.index] == p {
		heap.Remove(&t.heap, p.index)
	}
}

// FindMatch returns (and does not remove) the first pending message for
// which match returns true — callers remove it themselves via Remove once
// they've finished handling the acknowledgment.
func (t *PendingTable) FindMatch(match func(*PendingMessage) bool) *PendingMessage {
	for _, p := range t.heap {
		if match(p) {
			return p
		}
	}
	return nil
}

// Tick pops every pending message whose nextFire has arrived. For each,
// it calls timeout(p, final) where final reports whether the message's
// global deadline has also passed (§4.5's postpone/timeout contract); a
// message that is not yet globally expired is re-armed for another
// Interval and pushed back onto the heap.
func (t *PendingTable) Tick(now Millis, timeout func(p *PendingMessage, final bool)) {
	for len(t.heap) > 0 && t.heap[0].nextFire <= now {
		p := heap.Pop(&t.heap).(*PendingMessage)
		final := now >= p.Global
		if !final {
			p.nextFire = now + p.Interval
			heap.Push(&t.heap, p)
		}
		timeout(p, final)
	}
}
