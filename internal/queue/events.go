package queue

import "sync"

// Event is a job progress or terminal notification (spec §4.D:
// "a worker may publish progress (0-100) and terminal events").
type Event struct {
	JobID    string
	Progress int
	Status   string // "progress", "completed", "failed", "stalled"
}

// Events is an in-process pub/sub fan-out for telemetry consumers.
// Subscribers never block publishers: a slow or absent reader just
// misses events, it never stalls the worker.
type Events struct {
	mu   sync.RWMutex
	subs []chan Event
}

func NewEvents() *Events {
	return &Events{}
}

func (e *Events) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	e.mu.Lock()
	e.subs = append(e.subs, ch)
	e.mu.Unlock()
	return ch
}

func (e *Events) Publish(ev Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
