package events_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lecturenote/internal/events"
	"lecturenote/internal/tasks"
)

func TestHubDeliversToTaskSubscribers(t *testing.T) {
	hub := events.NewHub()
	ch, cancel := hub.Subscribe("a")
	defer cancel()
	other, cancelOther := hub.Subscribe("b")
	defer cancelOther()

	hub.Publish(events.Event{TaskID: "a", Status: tasks.StatusProcessing})

	select {
	case evt := <-ch:
		if evt.Status != tasks.StatusProcessing {
			t.Fatalf("status = %s", evt.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	select {
	case evt := <-other:
		t.Fatalf("unexpected event for b: %+v", evt)
	default:
	}
	if latest, ok := hub.Latest("a"); !ok || latest.Status != tasks.StatusProcessing {
		t.Fatalf("latest = %+v %v", latest, ok)
	}
}

func TestHubSlowSubscriberKeepsNewest(t *testing.T) {
	hub := events.NewHub()
	ch, cancel := hub.Subscribe("a")
	defer cancel()
	for i := 0; i < 100; i++ {
		hub.Publish(events.Event{TaskID: "a", Progress: tasks.Progress{Vision: float64(i) / 100}})
	}
	var last events.Event
	for {
		select {
		case evt := <-ch:
			last = evt
			continue
		default:
		}
		break
	}
	if last.Progress.Vision != 0.99 {
		t.Fatalf("last vision = %v, want 0.99", last.Progress.Vision)
	}
}

func TestHubCancelClosesChannel(t *testing.T) {
	hub := events.NewHub()
	ch, cancel := hub.Subscribe("a")
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	if hub.Subscribers("a") != 0 {
		t.Fatalf("subscribers = %d", hub.Subscribers("a"))
	}
	hub.Publish(events.Event{TaskID: "a"})
}

func TestFromTask(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	task := tasks.New("t1", "L", tasks.Source{}, tasks.Failed{Message: "boom", Phase: tasks.PhaseVision}, now)
	task.Progress.Vision = 0.5
	evt := events.FromTask(*task)
	if evt.TaskID != "t1" || evt.Status != tasks.StatusFailed || evt.Error != "boom" || evt.Progress.Vision != 0.5 || !evt.At.Equal(now) {
		t.Fatalf("event = %+v", evt)
	}
	if !evt.Terminal() {
		t.Fatal("failed event should be terminal")
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	got    []events.Event
	fail   bool
	closed bool
}

func (r *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, evt)
	if r.fail {
		return errors.New("redis down")
	}
	return nil
}

func (r *recordingPublisher) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func TestDispatcherForwardsToRemote(t *testing.T) {
	remote := &recordingPublisher{}
	d := events.NewDispatcher(nil, remote, nil)
	task := tasks.New("t1", "L", tasks.Source{}, tasks.Uploaded{}, time.Now())
	d.Observe(*task)
	d.Dispatch(events.Event{TaskID: "t1", Status: tasks.StatusProcessing})
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(remote.got) != 2 || remote.got[1].Status != tasks.StatusProcessing || !remote.closed {
		t.Fatalf("remote = %+v closed=%v", remote.got, remote.closed)
	}
	if latest, ok := d.Hub().Latest("t1"); !ok || latest.Status != tasks.StatusProcessing {
		t.Fatalf("hub latest = %+v", latest)
	}
}

func TestDispatcherSurvivesRemoteFailure(t *testing.T) {
	remote := &recordingPublisher{fail: true}
	d := events.NewDispatcher(events.NewHub(), remote, nil)
	d.Dispatch(events.Event{TaskID: "x"})
	d.Dispatch(events.Event{TaskID: "x"})
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(remote.got) != 2 {
		t.Fatalf("attempts = %d", len(remote.got))
	}
}

func TestDispatcherWithoutRemote(t *testing.T) {
	d := events.NewDispatcher(nil, nil, nil)
	d.Dispatch(events.Event{TaskID: "x"})
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestSnapshotKey(t *testing.T) {
	if got := events.SnapshotKey("lecturenote", "abc"); got != "lecturenote:task:abc" {
		t.Fatalf("key = %q", got)
	}
}
