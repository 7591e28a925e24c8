package daemon

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"lecturenote/internal/api"
	"lecturenote/internal/events"
	"lecturenote/internal/logging"
)

const (
	defaultLogLimit = 200
	logFollowWait   = 25 * time.Second
)

// handleTaskStream sends the task's current state, then every change until
// the task reaches completed or failed or the client disconnects.
func (s *apiServer) handleTaskStream(conn *websocket.Conn) {
	defer conn.Close()
	id := conn.Params("id")

	updates, cancel := s.events.Subscribe(id)
	defer cancel()

	task, err := s.tasks.Get(context.Background(), id)
	if err != nil {
		_ = conn.WriteJSON(api.ErrorResponse{Detail: err.Error()})
		return
	}
	current := events.FromTask(*task)
	if err := conn.WriteJSON(current); err != nil || current.Terminal() {
		return
	}

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case evt, ok := <-updates:
			if !ok {
				return
			}
			if evt.At.Before(current.At) {
				continue
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
			if evt.Terminal() {
				return
			}
		case <-gone:
			return
		}
	}
}

func (s *apiServer) handleLogs(c *fiber.Ctx) error {
	if s.logs == nil {
		return c.JSON(api.LogStreamResponse{})
	}
	since := uint64(max(c.QueryInt("since", 0), 0))
	limit := c.QueryInt("limit", defaultLogLimit)
	if limit <= 0 {
		limit = defaultLogLimit
	}
	follow := c.QueryBool("follow", false)
	tail := c.QueryBool("tail", false)
	taskID := strings.TrimSpace(c.Query("task"))
	component := strings.TrimSpace(c.Query("component"))

	var (
		batch []logging.LogEvent
		next  uint64
	)
	if tail && since == 0 && !follow {
		batch, next = s.logs.Tail(limit)
	} else {
		ctx := c.UserContext()
		if follow {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, logFollowWait)
			defer cancel()
		}
		var err error
		batch, next, err = s.logs.Fetch(ctx, since, limit, follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}

	filtered := make([]logging.LogEvent, 0, len(batch))
	for _, evt := range batch {
		if taskID != "" && evt.TaskID != taskID {
			continue
		}
		if component != "" && !strings.EqualFold(component, evt.Component) {
			continue
		}
		filtered = append(filtered, evt)
	}
	return c.JSON(api.LogStreamResponse{Events: filtered, Next: next})
}
