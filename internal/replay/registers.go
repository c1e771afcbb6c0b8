package replay

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/sensorreplay/internal/directory"
)

// Commit is what observers receive for every committed value: the channel's
// bridge address, the value, and the channel it came from.
type Commit struct {
	Channel        string `json:"channel"`
	EndpointID     int    `json:"endpoint_id"`
	RegisterOffset int    `json:"register_offset"`
	Value          int64  `json:"value"`
}

// Observer is notified synchronously on every commit.
type Observer interface {
	OnCommit(c Commit) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(c Commit) error

// OnCommit calls f(c).
func (f ObserverFunc) OnCommit(c Commit) error {
	return f(c)
}

type register struct {
	entry directory.Entry
	value atomic.Int64
}

// RegisterStore holds the last committed value of every directory channel.
//
// Thread-safety model:
//   - AddObserver(): setup only, before the replay starts
//   - Initialize(): exactly once, before the loader starts producing
//   - Commit(): any goroutine; commits to different channels never block
//     each other (one atomic per channel, the register map is immutable
//     after Initialize)
//   - Value()/Snapshot(): any goroutine, any time
type RegisterStore struct {
	dir   *directory.Directory
	stats *Stats

	registers atomic.Pointer[map[string]*register]

	mu        sync.RWMutex
	observers []Observer
}

// NewRegisterStore creates an uninitialized store for the directory's channels.
// stats may be nil.
func NewRegisterStore(dir *directory.Directory, stats *Stats) *RegisterStore {
	if stats == nil {
		stats = &Stats{}
	}
	return &RegisterStore{dir: dir, stats: stats}
}

// AddObserver registers an observer for every future commit.
// Observers must not call AddObserver from OnCommit.
func (s *RegisterStore) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Initialize creates a register holding 0 for every directory channel and
// publishes those zeros to the observers registered so far.
//
// It must complete before the loader starts: every known channel is
// observable from time zero.
func (s *RegisterStore) Initialize() error {
	channels := s.dir.Channels()
	regs := make(map[string]*register, len(channels))
	for _, ch := range channels {
		entry, _ := s.dir.Lookup(ch)
		regs[ch] = &register{entry: entry}
	}

	if !s.registers.CompareAndSwap(nil, &regs) {
		return ErrAlreadyInitialized
	}

	for _, ch := range channels {
		r := regs[ch]
		s.notify(Commit{
			Channel:        ch,
			EndpointID:     r.entry.EndpointID,
			RegisterOffset: r.entry.RegisterOffset,
		})
	}

	slog.Debug("register store initialized", "channels", len(channels))
	return nil
}

// Commit stores value for channel, then calls every observer before returning.
//
// Returns *UnknownChannelError (store unchanged, observers not called) if
// the channel has no directory entry, or ErrNotInitialized. Observer
// failures are logged and counted, never returned.
func (s *RegisterStore) Commit(channel string, value int64) error {
	regs := s.registers.Load()
	if regs == nil {
		return ErrNotInitialized
	}

	r, ok := (*regs)[channel]
	if !ok {
		s.stats.UnknownChannels.Add(1)
		return &UnknownChannelError{Channel: channel}
	}

	r.value.Store(value)
	s.notify(Commit{
		Channel:        channel,
		EndpointID:     r.entry.EndpointID,
		RegisterOffset: r.entry.RegisterOffset,
		Value:          value,
	})
	return nil
}

// Value returns the last committed value of a channel.
// ok is false for unknown channels and before Initialize.
func (s *RegisterStore) Value(channel string) (value int64, ok bool) {
	regs := s.registers.Load()
	if regs == nil {
		return 0, false
	}
	r, ok := (*regs)[channel]
	if !ok {
		return 0, false
	}
	return r.value.Load(), true
}

// Snapshot returns a copy of every register value.
// Registers are read one by one; concurrent commits may be partially visible.
func (s *RegisterStore) Snapshot() map[string]int64 {
	regs := s.registers.Load()
	if regs == nil {
		return map[string]int64{}
	}
	out := make(map[string]int64, len(*regs))
	for ch, r := range *regs {
		out[ch] = r.value.Load()
	}
	return out
}

// Directory returns the directory the store was built from.
func (s *RegisterStore) Directory() *directory.Directory {
	return s.dir
}

// notify calls every observer in registration order. A failing observer
// does not prevent the others from running.
func (s *RegisterStore) notify(c Commit) {
	s.mu.RLock()
	observers := s.observers
	s.mu.RUnlock()

	for i, o := range observers {
		if err := callObserver(o, c); err != nil {
			s.stats.ObserverFailures.Add(1)
			oe := &ObserverError{Index: i, Channel: c.Channel, Err: err}
			slog.Warn("observer failed",
				"observer", i,
				"channel", c.Channel,
				"value", c.Value,
				"error", oe,
			)
		}
	}
}

// callObserver converts an observer panic into an error.
func callObserver(o Observer, c Commit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return o.OnCommit(c)
}
