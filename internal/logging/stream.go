package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogEvent is one log record as served by the daemon's log stream.
type LogEvent struct {
	Sequence      uint64            `json:"seq"`
	Timestamp     time.Time         `json:"ts"`
	Level         string            `json:"level"`
	Message       string            `json:"msg"`
	Component     string            `json:"component,omitempty"`
	TaskID        string            `json:"task_id,omitempty"`
	Phase         string            `json:"phase,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// StreamHub keeps the most recent events in a bounded buffer. Sequence
// numbers start at 1 and never repeat, so clients resume with the last one
// they saw.
type StreamHub struct {
	mu       sync.Mutex
	capacity int
	events   []LogEvent
	last     uint64
	// changed is closed and replaced on every Publish.
	changed chan struct{}
}

func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = 512
	}
	return &StreamHub{capacity: capacity, changed: make(chan struct{})}
}

// Publish stamps evt with the next sequence number and appends it, evicting
// the oldest event when the buffer is full.
func (h *StreamHub) Publish(evt LogEvent) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last++
	evt.Sequence = h.last
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(h.events) >= h.capacity {
		h.events = append(h.events[:0], h.events[len(h.events)-h.capacity+1:]...)
	}
	h.events = append(h.events, evt)
	close(h.changed)
	h.changed = make(chan struct{})
}

// Fetch returns up to limit events newer than since together with the latest
// sequence number. With wait set it blocks until an event arrives or ctx ends.
func (h *StreamHub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]LogEvent, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	limit = h.clampLimit(limit)
	for {
		h.mu.Lock()
		out := h.after(since, limit)
		last, changed := h.last, h.changed
		h.mu.Unlock()

		if err := ctx.Err(); err != nil {
			return nil, last, err
		}
		if len(out) > 0 || !wait {
			return out, last, nil
		}
		select {
		case <-ctx.Done():
			return nil, last, ctx.Err()
		case <-changed:
		}
	}
}

// Tail returns the newest limit events without blocking.
func (h *StreamHub) Tail(limit int) ([]LogEvent, uint64) {
	if h == nil {
		return nil, 0
	}
	limit = h.clampLimit(limit)
	h.mu.Lock()
	defer h.mu.Unlock()
	start := max(len(h.events)-limit, 0)
	return append([]LogEvent(nil), h.events[start:]...), h.last
}

// FirstSequence is the oldest sequence number still buffered.
func (h *StreamHub) FirstSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) == 0 {
		return h.last
	}
	return h.events[0].Sequence
}

func (h *StreamHub) clampLimit(limit int) int {
	if limit <= 0 || limit > h.capacity {
		return h.capacity
	}
	return limit
}

// after must be called with mu held.
func (h *StreamHub) after(since uint64, limit int) []LogEvent {
	for i, evt := range h.events {
		if evt.Sequence <= since {
			continue
		}
		end := min(i+limit, len(h.events))
		return append([]LogEvent(nil), h.events[i:end]...)
	}
	return nil
}

// streamHandler copies every record into a StreamHub before passing it on.
type streamHandler struct {
	next  slog.Handler
	hub   *StreamHub
	attrs []slog.Attr
}

func newStreamHandler(next slog.Handler, hub *StreamHub) slog.Handler {
	if hub == nil || next == nil {
		return next
	}
	return &streamHandler{next: next, hub: hub}
}

func (h *streamHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *streamHandler) Handle(ctx context.Context, record slog.Record) error {
	h.hub.Publish(toLogEvent(record, h.attrs))
	return h.next.Handle(ctx, record.Clone())
}

func (h *streamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &streamHandler{
		next:  h.next.WithAttrs(attrs),
		hub:   h.hub,
		attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

func (h *streamHandler) WithGroup(name string) slog.Handler {
	return &streamHandler{next: h.next.WithGroup(name), hub: h.hub, attrs: h.attrs}
}

// toLogEvent lifts the well-known keys into LogEvent fields. Logger attrs are
// applied before record attrs so the call site wins.
func toLogEvent(record slog.Record, loggerAttrs []slog.Attr) LogEvent {
	event := LogEvent{
		Timestamp: record.Time,
		Level:     strings.ToUpper(record.Level.String()),
		Message:   strings.TrimSpace(record.Message),
	}
	apply := func(attr slog.Attr) bool {
		key := strings.TrimSpace(attr.Key)
		value := attrString(attr.Value)
		switch key {
		case "":
		case FieldTaskID:
			event.TaskID = value
		case FieldPhase:
			event.Phase = value
		case FieldCorrelationID:
			event.CorrelationID = value
		case FieldComponent:
			event.Component = value
		default:
			if event.Fields == nil {
				event.Fields = make(map[string]string)
			}
			event.Fields[key] = value
		}
		return true
	}
	for _, attr := range loggerAttrs {
		apply(attr)
	}
	record.Attrs(apply)
	return event
}
