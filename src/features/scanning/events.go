package scanning

import (
	"sync"
	"time"
)

// Signal dispatches values of type T to connected slots. Slots run
// synchronously on the emitting goroutine and must not block.
type Signal[T any] struct {
	mu     sync.RWMutex
	nextID int
	slots  map[int]func(T)
}

// Connect registers fn and returns a function disconnecting it.
func (s *Signal[T]) Connect(fn func(T)) (disconnect func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slots == nil {
		s.slots = make(map[int]func(T))
	}
	id := s.nextID
	s.nextID++
	s.slots[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.slots, id)
	}
}

// Emit calls every connected slot with value.
func (s *Signal[T]) Emit(value T) {
	s.mu.RLock()
	slots := make([]func(T), 0, len(s.slots))
	for _, slot := range s.slots {
		slots = append(slots, slot)
	}
	s.mu.RUnlock()

	for _, slot := range slots {
		slot(value)
	}
}

// Events are the signals a Service emits during its lifecycle.
type Events struct {
	ScanScheduled  Signal[time.Time]
	ScanStarted    Signal[struct{}]
	ScanInProgress Signal[ScanStepStats]
	ScanComplete   Signal[ScanStats]
	ScanAborted    Signal[ScanStats]
}
