package replay

import (
	"container/heap"
	"log/slog"
	"sync"
	"time"
)

// Reading is a value waiting for its release time.
type Reading struct {
	Channel string
	Release time.Time
	Value   int64

	seq int64 // arrival order, breaks release-time ties
}

// readingHeap is a min-heap on (Release, seq).
type readingHeap []Reading

func (h readingHeap) Len() int { return len(h) }

func (h readingHeap) Less(i, j int) bool {
	if h[i].Release.Equal(h[j].Release) {
		return h[i].seq < h[j].seq
	}
	return h[i].Release.Before(h[j].Release)
}

func (h readingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *readingHeap) Push(x any) { *h = append(*h, x.(Reading)) }

func (h *readingHeap) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	old[n-1] = Reading{}
	*h = old[:n-1]
	return r
}

// channelQueue holds the pending readings of one channel.
// Each queue has its own lock; no lock spans channels.
type channelQueue struct {
	mu    sync.Mutex
	items readingHeap
}

func (q *channelQueue) push(r Reading) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.items, r)
}

// popDue removes and returns the earliest reading if its release time is
// at or before now. Never blocks on an empty or not-yet-due queue.
func (q *channelQueue) popDue(now time.Time) (Reading, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 || q.items[0].Release.After(now) {
		return Reading{}, false
	}
	return heap.Pop(&q.items).(Reading), true
}

func (q *channelQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// PendingSet maps channel ids to their pending queues.
//
// Queues are created lazily on the first observation of a channel and are
// never removed: a drained queue stays in the set, empty, so that the
// channel is never bootstrapped twice.
type PendingSet struct {
	queues    sync.Map // string -> *channelQueue
	registers *RegisterStore
	clock     Clock
	seq       *Sequence
	stats     *Stats
}

// NewPendingSet creates an empty set that bootstraps into registers.
// clock defaults to SystemClock, stats may be nil.
func NewPendingSet(registers *RegisterStore, clock Clock, stats *Stats) *PendingSet {
	if clock == nil {
		clock = SystemClock{}
	}
	if stats == nil {
		stats = &Stats{}
	}
	return &PendingSet{
		registers: registers,
		clock:     clock,
		seq:       NewSequence(),
		stats:     stats,
	}
}

// ScheduleOrBootstrap is the enqueue policy.
//
// The first call for a channel commits value immediately, ignoring delay,
// and creates the channel's queue. Every later call schedules a reading for
// release at now + delay.
//
// A bootstrap commit error (unknown channel) is returned; the queue is
// created regardless, so the channel is not bootstrapped again.
func (p *PendingSet) ScheduleOrBootstrap(channel string, delay time.Duration, value int64) error {
	if v, ok := p.queues.Load(channel); ok {
		p.schedule(v.(*channelQueue), channel, delay, value)
		return nil
	}

	v, loaded := p.queues.LoadOrStore(channel, &channelQueue{})
	if loaded {
		p.schedule(v.(*channelQueue), channel, delay, value)
		return nil
	}

	p.stats.Bootstraps.Add(1)
	slog.Debug("bootstrapping channel", "channel", channel, "value", value, "discarded_delay", delay)
	return p.registers.Commit(channel, value)
}

func (p *PendingSet) schedule(q *channelQueue, channel string, delay time.Duration, value int64) {
	q.push(Reading{
		Channel: channel,
		Release: p.clock.Now().Add(delay),
		Value:   value,
		seq:     p.seq.Next(),
	})
	p.stats.Scheduled.Add(1)
}

// PopDue removes the earliest due reading of one channel, if any.
func (p *PendingSet) PopDue(channel string, now time.Time) (Reading, bool) {
	v, ok := p.queues.Load(channel)
	if !ok {
		return Reading{}, false
	}
	return v.(*channelQueue).popDue(now)
}

// Range calls fn for every channel that has a queue, in unspecified order,
// until fn returns false. Channels added during the call may or may not be
// visited.
func (p *PendingSet) Range(fn func(channel string) bool) {
	p.queues.Range(func(k, _ any) bool {
		return fn(k.(string))
	})
}

// Len returns the number of readings waiting across all channels.
func (p *PendingSet) Len() int {
	n := 0
	p.queues.Range(func(_, v any) bool {
		n += v.(*channelQueue).len()
		return true
	})
	return n
}

// Channels returns the number of channels that have been observed.
func (p *PendingSet) Channels() int {
	n := 0
	p.queues.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Clock returns the virtual clock release times are measured on.
func (p *PendingSet) Clock() Clock {
	return p.clock
}
