package events

import (
	"sync"
)

const subscriberBuffer = 16

// Hub delivers events to in-process subscribers, keyed by task id.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*subscriber]struct{}
	latest map[string]Event
}

type subscriber struct {
	ch chan Event
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs:   make(map[string]map[*subscriber]struct{}),
		latest: make(map[string]Event),
	}
}

// Publish records evt as the task's latest event and offers it to every
// subscriber of that task. A subscriber whose buffer is full loses its oldest
// pending event.
func (h *Hub) Publish(evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest[evt.TaskID] = evt
	for sub := range h.subs[evt.TaskID] {
		offer(sub.ch, evt)
	}
}

func offer(ch chan Event, evt Event) {
	for {
		select {
		case ch <- evt:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Latest returns the most recent event seen for a task.
func (h *Hub) Latest(taskID string) (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	evt, ok := h.latest[taskID]
	return evt, ok
}

// Subscribe registers for a task's events. The returned cancel function
// unregisters and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(taskID string) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}
	h.mu.Lock()
	if h.subs[taskID] == nil {
		h.subs[taskID] = make(map[*subscriber]struct{})
	}
	h.subs[taskID][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[taskID], sub)
			if len(h.subs[taskID]) == 0 {
				delete(h.subs, taskID)
			}
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Subscribers counts live subscriptions for a task.
func (h *Hub) Subscribers(taskID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[taskID])
}
