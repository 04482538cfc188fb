package job

import "sync"

// slots bounds concurrently simulating jobs and admits waiters in the order
// they took a ticket.
type slots struct {
	mu      sync.Mutex
	free    int
	waiting []chan struct{}
}

func newSlots(n int) *slots {
	return &slots{free: n}
}

// take returns a ticket that is closed once the caller holds a slot.
func (s *slots) take() chan struct{} {
	ticket := make(chan struct{})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.free > 0 && len(s.waiting) == 0 {
		s.free--
		close(ticket)
		return ticket
	}
	s.waiting = append(s.waiting, ticket)
	return ticket
}

// release hands the slot to the oldest waiter, or frees it.
func (s *slots) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.waiting) > 0 {
		next := s.waiting[0]
		s.waiting = s.waiting[1:]
		close(next)
		return
	}
	s.free++
}

// abandon withdraws a ticket. A ticket that was already granted gives its slot back.
func (s *slots) abandon(ticket chan struct{}) {
	s.mu.Lock()
	for i, ch := range s.waiting {
		if ch == ticket {
			s.waiting = append(s.waiting[:i], s.waiting[i+1:]...)
			s.mu.Unlock()
			return
		}
	}
	s.mu.Unlock()
	s.release()
}

// queued returns the number of waiting tickets.
func (s *slots) queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiting)
}
