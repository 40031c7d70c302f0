package notify

import (
	"context"
	"sync"
	"time"

	"github.com/wowl-learning/wowl/internal/platform/logger"
)

const (
	// DefaultBuffer is the queue size of an Async notifier.
	DefaultBuffer = 64

	deliverTimeout = 5 * time.Second
)

// Async queues events and delivers them on a single background goroutine.
// A full queue drops the event.
type Async struct {
	next    Notifier
	log     *logger.Logger
	pending chan Event

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsync starts the delivery loop. buffer <= 0 uses DefaultBuffer.
func NewAsync(next Notifier, buffer int, log *logger.Logger) *Async {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if log == nil {
		log = logger.NewNop()
	}
	a := &Async{
		next:    next,
		log:     log,
		pending: make(chan Event, buffer),
		done:    make(chan struct{}),
	}
	go a.processLoop()
	return a
}

// Notify enqueues e and returns immediately. It never fails.
func (a *Async) Notify(_ context.Context, e Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.log.Warn("notifier closed, dropping milestone", "kind", e.Kind, "student_id", e.StudentID)
		return nil
	}
	select {
	case a.pending <- e:
	default:
		a.log.Warn("notify queue full, dropping milestone", "kind", e.Kind, "student_id", e.StudentID)
	}
	return nil
}

func (a *Async) processLoop() {
	defer close(a.done)
	for e := range a.pending {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		if err := a.next.Notify(ctx, e); err != nil {
			a.log.Warn("milestone delivery failed", "kind", e.Kind, "student_id", e.StudentID, "error", err)
		}
		cancel()
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.pending)
	}
	a.mu.Unlock()
	<-a.done
}
