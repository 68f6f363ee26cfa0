package mqtt

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/cortocircuito/conveyor-monitor/internal/logic"
)

// ErrQueueFull is returned when the publish queue cannot accept a message.
var ErrQueueFull = errors.New("mqtt: publish queue full")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("mqtt: publisher closed")

// Async hands messages to a single publishing goroutine so a slow or
// unreachable broker never blocks the caller. Enqueueing never blocks: when
// the queue is full the message is dropped with ErrQueueFull.
type Async struct {
	next  Publisher
	queue chan func(Publisher) error
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsync wraps next and starts the publishing goroutine.
func NewAsync(next Publisher, size int) *Async {
	if size < 1 {
		size = 1
	}
	a := &Async{
		next:  next,
		queue: make(chan func(Publisher) error, size),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for job := range a.queue {
		if err := job(a.next); err != nil {
			log.WithError(err).Warn("mqtt: publish failed")
		}
	}
}

func (a *Async) enqueue(job func(Publisher) error) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// PublishTelemetry queues a telemetry report.
func (a *Async) PublishTelemetry(t logic.TelemetryData) error {
	return a.enqueue(func(p Publisher) error { return p.PublishTelemetry(t) })
}

// Publish queues a controller event.
func (a *Async) Publish(event logic.Event) error {
	return a.enqueue(func(p Publisher) error { return p.Publish(event) })
}

// PublishSystem queues a system event.
func (a *Async) PublishSystem(event SystemEvent) error {
	return a.enqueue(func(p Publisher) error { return p.PublishSystem(event) })
}

// IsConnected delegates to the wrapped publisher when it reports connectivity.
func (a *Async) IsConnected() bool {
	if cs, ok := a.next.(ConnectionStatus); ok {
		return cs.IsConnected()
	}
	return false
}

// Close flushes queued messages, then closes the wrapped publisher.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
	return a.next.Close()
}
