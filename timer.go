package ss7

import (
	"container/heap"
	"sync"

	"github.com/iti/rngstream"
)

// Millis is a monotonic millisecond timestamp, the unit every timer
// deadline in this package is expressed in (§4.6).
type Millis int64

// Timer is a single scheduled deadline: a one-shot delay, or a periodic
// interval when Period is true. It never spawns a goroutine of its own —
// callers drain expirations by polling a TimerQueue's Tick (§5's
// "pollable, no background threads").
type Timer struct {
	Interval Millis
	Period   bool
	running  bool
	expiry   Millis
	index    int // heap.Interface bookkeeping
}

// Start (re)arms the timer to fire Interval milliseconds after now.
func (t *Timer) Start(now Millis) {
	t.running = true
	t.expiry = now + t.Interval
}

// Stop disarms the timer without firing it.
func (t *Timer) Stop() {
	t.running = false
}

// Running reports whether the timer is currently armed.
func (t *Timer) Running() bool {
	return t.running
}

// Expiry returns the timestamp at which the timer will next fire.
func (t *Timer) Expiry() Millis {
	return t.expiry
}

// timerHeap is a min-heap on expiry, adapted from scheduler.go's
// reqSrvHeap (originally min-heap on residual simulated service time;
// here the ordering key is a real wall-clock deadline instead).
type timerHeap []*Timer

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].expiry < h[j].expiry }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// TimerQueue drains expired timers on demand from a real (or
// test-supplied) millisecond clock, with no background goroutine of its
// own — the host calls Tick from wherever it already has a scheduling
// loop (§4.6, §5).
type TimerQueue struct {
	mu      sync.Mutex
	pending timerHeap
	stream  *rngstream.RngStream
}

// NewTimerQueue creates an empty timer queue. streamName seeds the
// rngstream identity used for jitter (route-test spread),
// mirroring the per-object stream naming iti/mrnes uses for
// endptState/switchState/routerState.
func NewTimerQueue(streamName string) *TimerQueue {
	return &TimerQueue{
		pending: timerHeap{},
		stream:  rngstream.New(streamName),
	}
}

// Schedule arms t and inserts it into the queue.
func (q *TimerQueue) Schedule(t *Timer, now Millis) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t.Start(now)
	heap.Push(&q.pending, t)
}

// Cancel removes t from the queue if present, disarming it (§5:
// "cancellation of pending SNM messages occurs by explicit removal from
// the queue").
func (q *TimerQueue) Cancel(t *Timer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t.Stop()
	if t.index >= 0 && t.index < len(q.pending) && q.pending[t.index] == t {
		heap.Remove(&q.pending, t.index)
	}
}

// Tick drains every timer whose expiry is <= now, invoking fire for each
// and rescheduling periodic ones one Interval after their previous
// expiry, so a periodic timer fires once for every Interval it fell behind.
func (q *TimerQueue) Tick(now Millis, fire func(*Timer)) {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 || q.pending[0].expiry > now {
			q.mu.Unlock()
			return
		}
		t := heap.Pop(&q.pending).(*Timer)
		if t.Period {
			t.expiry += t.Interval
			heap.Push(&q.pending, t)
		} else {
			t.running = false
		}
		q.mu.Unlock()

		fire(t)
	}
}

// JitterMillis returns a pseudo-random spread-the-load offset in
// [0, spread) milliseconds, used to stagger route-test bursts the way
// iti/mrnes staggers simulated arrivals with rngstream.
func (q *TimerQueue) JitterMillis(spread Millis) Millis {
	if spread <= 0 {
		return 0
	}
	return Millis(q.stream.RandInt(0, int(spread)-1))
}
