package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"lecturenote/internal/logging"
	"lecturenote/internal/tasks"
)

const (
	queueSize      = 256
	publishTimeout = 5 * time.Second
)

// Publisher delivers events to an out-of-process sink.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// Dispatcher feeds the hub synchronously and a remote publisher
// asynchronously.
type Dispatcher struct {
	hub    *Hub
	remote Publisher
	logger *slog.Logger

	queue chan Event
	done  chan struct{}
	once  sync.Once
}

// NewDispatcher starts the remote delivery loop when remote is non-nil.
func NewDispatcher(hub *Hub, remote Publisher, logger *slog.Logger) *Dispatcher {
	if hub == nil {
		hub = NewHub()
	}
	d := &Dispatcher{
		hub:    hub,
		remote: remote,
		logger: logging.NewComponentLogger(logger, "events"),
		done:   make(chan struct{}),
	}
	if remote != nil {
		d.queue = make(chan Event, queueSize)
		go d.loop()
	} else {
		close(d.done)
	}
	return d
}

// Hub returns the in-process hub.
func (d *Dispatcher) Hub() *Hub {
	return d.hub
}

// Observe is a taskstore observer.
func (d *Dispatcher) Observe(task tasks.Task) {
	d.Dispatch(FromTask(task))
}

// Dispatch publishes one event.
func (d *Dispatcher) Dispatch(evt Event) {
	d.hub.Publish(evt)
	if d.queue == nil {
		return
	}
	select {
	case d.queue <- evt:
	default:
		logging.WarnWithContext(d.logger, "event queue full; dropping remote event", "event_dropped",
			logging.String(logging.FieldTaskID, evt.TaskID),
			logging.String("status", string(evt.Status)),
			logging.String(logging.FieldImpact, "remote subscribers miss one progress update"),
			logging.String(logging.FieldErrorHint, "check redis latency"),
		)
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for evt := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := d.remote.Publish(ctx, evt)
		cancel()
		if err != nil {
			logging.WarnWithContext(d.logger, "remote event publish failed", "event_publish_failed",
				logging.String(logging.FieldTaskID, evt.TaskID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "remote subscribers miss one progress update"),
				logging.String(logging.FieldErrorHint, "check redis connectivity"),
			)
		}
	}
}

// Close drains pending remote events and closes the publisher.
func (d *Dispatcher) Close() error {
	var err error
	d.once.Do(func() {
		if d.queue == nil {
			return
		}
		close(d.queue)
		<-d.done
		err = d.remote.Close()
	})
	return err
}
