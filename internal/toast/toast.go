// Package toast keeps the transient notifications of one browser session.
package toast

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	Success Type = "success"
	Error   Type = "error"
	Info    Type = "info"
)

const (
	DefaultDuration = 3 * time.Second

	baseOffset  = 20
	stackOffset = 80
)

type Toast struct {
	ID        string
	Message   string
	Type      Type
	CreatedAt time.Time
	// Offset is the distance from the top of the viewport in pixels.
	Offset int
}

type entry struct {
	toast Toast
	timer *time.Timer
}

// Queue is safe for concurrent use. Every Show schedules its own removal.
type Queue struct {
	duration time.Duration

	mu          sync.Mutex
	order       []string
	entries     map[string]*entry
	subscribers map[chan struct{}]struct{}
}

func New(duration time.Duration) *Queue {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Queue{
		duration:    duration,
		entries:     make(map[string]*entry),
		subscribers: make(map[chan struct{}]struct{}),
	}
}

// Show appends a toast and returns its id. Identical messages stack.
func (q *Queue) Show(message string, typ Type) string {
	id := uuid.NewString()

	q.mu.Lock()
	e := &entry{toast: Toast{ID: id, Message: message, Type: typ, CreatedAt: time.Now()}}
	e.timer = time.AfterFunc(q.duration, func() { q.Dismiss(id) })
	q.entries[id] = e
	q.order = append(q.order, id)
	q.notifyLocked()
	q.mu.Unlock()

	return id
}

func (q *Queue) Success(message string) string { return q.Show(message, Success) }

func (q *Queue) Error(message string) string { return q.Show(message, Error) }

func (q *Queue) Info(message string) string { return q.Show(message, Info) }

// Dismiss removes a toast. Unknown ids are ignored.
func (q *Queue) Dismiss(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[id]
	if !ok {
		return
	}
	e.timer.Stop()
	delete(q.entries, id)
	for i, v := range q.order {
		if v == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	q.notifyLocked()
}

// List returns the live toasts oldest first with their stacking offsets.
func (q *Queue) List() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Toast, 0, len(q.order))
	for i, id := range q.order {
		t := q.entries[id].toast
		t.Offset = baseOffset + i*stackOffset
		out = append(out, t)
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Subscribe returns a channel that receives a value after every change,
// coalescing bursts. Call the returned func to stop.
func (q *Queue) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	q.mu.Lock()
	q.subscribers[ch] = struct{}{}
	q.mu.Unlock()

	return ch, func() {
		q.mu.Lock()
		delete(q.subscribers, ch)
		q.mu.Unlock()
	}
}

// Close stops all pending timers.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		e.timer.Stop()
	}
}

func (q *Queue) notifyLocked() {
	for ch := range q.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
