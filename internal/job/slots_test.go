package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func granted(ticket chan struct{}) bool {
	select {
	case <-ticket:
		return true
	default:
		return false
	}
}

func TestSlots_GrantsInTicketOrder(t *testing.T) {
	s := newSlots(1)

	a := s.take()
	b := s.take()
	c := s.take()
	assert.True(t, granted(a))
	assert.False(t, granted(b))
	assert.False(t, granted(c))

	s.release()
	assert.True(t, granted(b))
	assert.False(t, granted(c))

	s.release()
	assert.True(t, granted(c))

	s.release()
	assert.Equal(t, 1, s.free)
}

func TestSlots_NewTicketWaitsBehindQueue(t *testing.T) {
	s := newSlots(1)
	a := s.take()
	b := s.take()
	assert.True(t, granted(a))

	// A slot freed while b waits goes to b, not to a newcomer.
	s.release()
	c := s.take()
	assert.True(t, granted(b))
	assert.False(t, granted(c))
	assert.Equal(t, 1, s.queued())
}

func TestSlots_Abandon(t *testing.T) {
	s := newSlots(1)
	a := s.take()
	b := s.take()
	c := s.take()

	s.abandon(b)
	assert.Equal(t, 1, s.queued())

	s.release()
	assert.True(t, granted(c), "the abandoned ticket is skipped")

	// Abandoning a granted ticket returns its slot.
	s.abandon(c)
	assert.Equal(t, 1, s.free)
	assert.True(t, granted(a))
}
