package queue

import (
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/seatcover-storefront/internal/model"
)

// Job is one submitted order waiting for remote delivery.
type Job struct {
	Sequence  uint64
	Visitor   string
	RequestID string
	Order     model.Order

	// EnqueuedAt is set by the queue.
	EnqueuedAt time.Time
}

// Sequencer provides monotonically increasing sequence numbers.
type Sequencer struct{ n atomic.Uint64 }

// Next returns the next sequence number.
func (s *Sequencer) Next() uint64 { return s.n.Add(1) }
