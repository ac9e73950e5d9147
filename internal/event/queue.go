// Package event provides the bounded queue that carries resize and user
// events from the engine to its host.
package event

import (
	"sync"
	"time"

	"github.com/dshills/termdiff/internal/renderer/core"
)

// Kind identifies the type of a queued event.
type Kind uint8

const (
	// KindUser is an event posted by the host through a waker.
	KindUser Kind = iota + 1
	// KindResize reports a new framebuffer extent.
	KindResize
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindResize:
		return "resize"
	default:
		return "unknown"
	}
}

// Event is one queued engine event.
type Event struct {
	Kind Kind
	Time time.Time

	// Tag and Payload are set for user events. Payload is owned by the event.
	Tag     uint32
	Payload []byte

	// Cols and Rows are set for resize events.
	Cols, Rows int
}

// DefaultCapacity is the queue size used when none is given.
const DefaultCapacity = 1024

// DefaultMaxPayload bounds user event payloads.
const DefaultMaxPayload = 64 * 1024

// Queue is a bounded FIFO of events with a blocking, timed poll.
// Post may be called from any goroutine.
type Queue struct {
	mu         sync.Mutex
	buf        []Event
	head, size int
	dropped    uint64
	closed     bool
	maxPayload int
	now        func() time.Time

	notify chan struct{}
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithMaxPayload sets the largest accepted user payload in bytes.
func WithMaxPayload(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.maxPayload = n
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) QueueOption {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// NewQueue creates a queue holding at most capacity events.
func NewQueue(capacity int, opts ...QueueOption) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &Queue{
		buf:        make([]Event, capacity),
		maxPayload: DefaultMaxPayload,
		now:        time.Now,
		notify:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// PostUser enqueues a user event. The payload is copied.
func (q *Queue) PostUser(tag uint32, payload []byte) error {
	if len(payload) > q.maxPayload {
		return core.Errorf("post_user_event", core.ErrInvalidArgument, "payload %d bytes over %d", len(payload), q.maxPayload)
	}
	var p []byte
	if len(payload) > 0 {
		p = append([]byte(nil), payload...)
	}
	return q.post(Event{Kind: KindUser, Tag: tag, Payload: p})
}

// PostResize enqueues a resize event.
func (q *Queue) PostResize(cols, rows int) error {
	return q.post(Event{Kind: KindResize, Cols: cols, Rows: rows})
}

func (q *Queue) post(ev Event) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return core.Errorf("post_event", core.ErrInvalidArgument, "queue closed")
	}
	if q.size == len(q.buf) {
		q.dropped++
		q.mu.Unlock()
		return core.Errorf("post_event", core.ErrLimitExceeded, "queue full")
	}
	ev.Time = q.now()
	q.buf[(q.head+q.size)%len(q.buf)] = ev
	q.size++
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Poll appends up to max queued events to dst, blocking up to timeout
// while the queue is empty. A zero timeout never blocks; a negative
// timeout is rejected. max <= 0 drains everything queued.
func (q *Queue) Poll(dst []Event, timeout time.Duration, max int) ([]Event, error) {
	if timeout < 0 {
		return dst, core.Errorf("poll_events", core.ErrInvalidArgument, "negative timeout %s", timeout)
	}

	if out, ok := q.drain(dst, max); ok || timeout == 0 {
		return out, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-q.notify:
			if out, ok := q.drain(dst, max); ok {
				return out, nil
			}
			if q.isClosed() {
				return dst, nil
			}
		case <-timer.C:
			out, _ := q.drain(dst, max)
			return out, nil
		}
	}
}

func (q *Queue) drain(dst []Event, max int) ([]Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return dst, false
	}
	n := q.size
	if max > 0 && max < n {
		n = max
	}
	for i := 0; i < n; i++ {
		idx := (q.head + i) % len(q.buf)
		dst = append(dst, q.buf[idx])
		q.buf[idx] = Event{}
	}
	q.head = (q.head + n) % len(q.buf)
	q.size -= n
	return dst, true
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Dropped returns how many events were rejected because the queue was full.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close rejects further posts and wakes a blocked poller.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
