package device

import (
	"sync"

	"github.com/wippyai/gpu-runtime/driver"
)

// Event is a lifecycle event listeners subscribe to.
type Event uint8

const (
	EventDeviceSelected Event = iota
	EventDeviceReset
)

func (e Event) String() string {
	switch e {
	case EventDeviceSelected:
		return "device_selected"
	case EventDeviceReset:
		return "device_reset"
	default:
		return "unknown"
	}
}

// Listener observes device selection or reset. Implementations must be
// comparable; set membership uses ==.
type Listener interface {
	Notify(dev driver.Device, ctx driver.Context) error
}

type funcListener struct {
	fn func(driver.Device, driver.Context) error
}

func (l *funcListener) Notify(dev driver.Device, ctx driver.Context) error {
	return l.fn(dev, ctx)
}

// NewListener wraps fn. Each call returns a distinct Listener; keep the
// result to remove it later.
func NewListener(fn func(dev driver.Device, ctx driver.Context) error) Listener {
	return &funcListener{fn: fn}
}

// listenerSet is a set of listeners per event.
type listenerSet struct {
	mu   sync.RWMutex
	sets map[Event]map[Listener]struct{}
}

func newListenerSet() *listenerSet {
	return &listenerSet{sets: make(map[Event]map[Listener]struct{})}
}

func (s *listenerSet) add(e Event, l Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.sets[e]
	if set == nil {
		set = make(map[Listener]struct{})
		s.sets[e] = set
	}
	if _, ok := set[l]; ok {
		return false
	}
	set[l] = struct{}{}
	return true
}

func (s *listenerSet) remove(e Event, l Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sets[e][l]; !ok {
		return false
	}
	delete(s.sets[e], l)
	return true
}

func (s *listenerSet) len(e Event) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sets[e])
}

// notify calls every listener of e outside the lock and stops at the first error.
func (s *listenerSet) notify(e Event, dev driver.Device, ctx driver.Context) error {
	s.mu.RLock()
	snapshot := make([]Listener, 0, len(s.sets[e]))
	for l := range s.sets[e] {
		snapshot = append(snapshot, l)
	}
	s.mu.RUnlock()

	for _, l := range snapshot {
		if err := l.Notify(dev, ctx); err != nil {
			return err
		}
	}
	return nil
}
