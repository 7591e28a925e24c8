package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// statusError is a non-2xx answer from the completions endpoint.
type statusError struct {
	code       int
	body       string
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.code, e.body)
}

func (e *statusError) transient() bool {
	return e.code == http.StatusRequestTimeout || e.code == http.StatusTooManyRequests || e.code >= http.StatusInternalServerError
}

// blankReplyError is a 2xx completion whose first choice carried no text.
type blankReplyError struct {
	op, finishReason, refusal, snippet string
}

func (e *blankReplyError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.op, e.finishReason, e.refusal, e.snippet)
}

// completeWithRetry sends payload until a non-empty reply arrives, the error is
// permanent, or the attempt budget is spent.
func (c *Client) completeWithRetry(ctx context.Context, payload chatCompletionRequest, op string) (string, error) {
	attempts := max(c.retryMaxAttempts, 1)
	for attempt := 1; ; attempt++ {
		content, err := c.completeOnce(ctx, payload, op)
		if err == nil {
			return content, nil
		}
		wait, ok := c.nextDelay(ctx, err, attempt)
		if !ok {
			return "", err
		}
		if attempt == attempts {
			return "", fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, err)
		}
		if err := c.pause(ctx, wait); err != nil {
			return "", err
		}
	}
}

func (c *Client) completeOnce(ctx context.Context, payload chatCompletionRequest, op string) (string, error) {
	completion, body, err := c.sendChatRequestOnce(ctx, payload)
	if err != nil {
		return "", err
	}
	content, finishReason := extractCompletionPayload(completion)
	if content != "" {
		return content, nil
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%s: empty choices", op)
	}
	return "", &blankReplyError{
		op:           op,
		finishReason: finishReason,
		refusal:      extractCompletionRefusal(completion),
		snippet:      summarizePayloadSnippet(string(body)),
	}
}

// nextDelay classifies err. Blank replies, throttling, server errors and
// network timeouts are retried; everything else fails immediately.
func (c *Client) nextDelay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var blank *blankReplyError
	if errors.As(err, &blank) {
		return c.backoff(attempt), true
	}
	var status *statusError
	if errors.As(err, &status) {
		if !status.transient() {
			return 0, false
		}
		if status.retryAfter > 0 {
			return c.capped(status.retryAfter), true
		}
		return c.backoff(attempt), true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoff(attempt), true
	}
	return 0, false
}

// backoff doubles the base delay per attempt, capped at the max delay.
func (c *Client) backoff(attempt int) time.Duration {
	if c.retryBaseDelay <= 0 {
		return 0
	}
	delay := c.retryBaseDelay << min(attempt-1, 16)
	if delay <= 0 {
		return c.retryMaxDelay
	}
	return c.capped(delay)
}

func (c *Client) capped(d time.Duration) time.Duration {
	if c.retryMaxDelay > 0 && d > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return d
}

func (c *Client) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(d)
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryAfter reads a Retry-After header given either in seconds or as an
// HTTP date.
func retryAfter(header http.Header) time.Duration {
	value := strings.TrimSpace(header.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		return max(time.Until(when), 0)
	}
	return 0
}
