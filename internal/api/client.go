package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/websocket"

	"lecturenote/internal/events"
)

// ErrUnavailable reports that no daemon answered at the configured address.
var ErrUnavailable = errors.New("lecturenote daemon unavailable")

// Error is a non-2xx reply from the daemon.
type Error struct {
	StatusCode int
	Detail     string
	Kind       string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api request failed (%d)", e.StatusCode)
	}
	return fmt.Sprintf("%s (%d)", e.Detail, e.StatusCode)
}

// Client talks to a running daemon over its HTTP API.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a client for address, which may be a bare host:port bind
// address or a full URL.
func NewClient(address string, httpClient *http.Client) *Client {
	base := strings.TrimRight(strings.TrimSpace(address), "/")
	if base != "" && !strings.Contains(base, "://") {
		host := base
		if strings.HasPrefix(host, "0.0.0.0:") {
			host = "127.0.0.1:" + strings.TrimPrefix(host, "0.0.0.0:")
		}
		base = "http://" + host
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{base: base, http: httpClient}
}

// BaseURL returns the resolved daemon URL.
func (c *Client) BaseURL() string {
	return c.base
}

// Health queries /health.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

// Status queries /api/status.
func (c *Client) Status(ctx context.Context) (WorkflowStatus, error) {
	var out WorkflowStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

// List returns tasks newest first, optionally filtered by status names.
func (c *Client) List(ctx context.Context, statuses []string) ([]TaskStatusResponse, error) {
	path := "/api/videos/"
	if len(statuses) > 0 {
		path += "?status=" + url.QueryEscape(strings.Join(statuses, ","))
	}
	var out TaskListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// Task returns one task.
func (c *Client) Task(ctx context.Context, id string) (TaskStatusResponse, error) {
	var out TaskStatusResponse
	err := c.do(ctx, http.MethodGet, "/api/videos/"+url.PathEscape(id)+"/status", nil, &out)
	return out, err
}

// Upload sends a local video as a multipart upload.
func (c *Client) Upload(ctx context.Context, path, title string) (UploadResponse, error) {
	var out UploadResponse
	file, err := os.Open(path)
	if err != nil {
		return out, fmt.Errorf("open video: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		err := func() error {
			if title != "" {
				if err := writer.WriteField("title", title); err != nil {
					return err
				}
			}
			part, err := writer.CreateFormFile("file", filepath.Base(path))
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, file); err != nil {
				return err
			}
			return writer.Close()
		}()
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/api/videos/upload", pr)
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	err = c.send(req, &out)
	return out, err
}

// Fetch asks the daemon to download a lecture.
func (c *Client) Fetch(ctx context.Context, req FetchRequest) (TaskStatusResponse, error) {
	var out TaskStatusResponse
	err := c.do(ctx, http.MethodPost, "/api/videos/fetch", req, &out)
	return out, err
}

// Process starts analysis of an uploaded task.
func (c *Client) Process(ctx context.Context, id string, req ProcessRequest) (ProcessResponse, error) {
	var out ProcessResponse
	err := c.do(ctx, http.MethodPost, "/api/videos/"+url.PathEscape(id)+"/process", req, &out)
	return out, err
}

// Synthesize resumes synthesis from a task's checkpoint.
func (c *Client) Synthesize(ctx context.Context, id string) (TaskStatusResponse, error) {
	var out TaskStatusResponse
	err := c.do(ctx, http.MethodPost, "/api/videos/"+url.PathEscape(id)+"/synthesize", nil, &out)
	return out, err
}

// Regenerate reruns synthesis for a completed note.
func (c *Client) Regenerate(ctx context.Context, id string) (TaskStatusResponse, error) {
	var out TaskStatusResponse
	err := c.do(ctx, http.MethodPost, "/api/notes/"+url.PathEscape(id)+"/regenerate", nil, &out)
	return out, err
}

// Note returns a finished note.
func (c *Client) Note(ctx context.Context, id string) (NoteResponse, error) {
	var out NoteResponse
	err := c.do(ctx, http.MethodGet, "/api/notes/"+url.PathEscape(id), nil, &out)
	return out, err
}

// DownloadLink returns a signed link to the rendered note. format is "md" or
// "docx".
func (c *Client) DownloadLink(ctx context.Context, id, format string) (NoteDownloadResponse, error) {
	path := "/api/notes/" + url.PathEscape(id) + "/download"
	if format != "" && format != "md" {
		path += "?format=" + url.QueryEscape(format)
	}
	var out NoteDownloadResponse
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Download streams the object behind a signed link into w.
func (c *Client) Download(ctx context.Context, link string, w io.Writer) (int64, error) {
	target := link
	if strings.HasPrefix(link, "/") {
		target = c.base + link
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, wrapTransportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return 0, decodeError(resp)
	}
	return io.Copy(w, resp.Body)
}

// LogQuery selects log events.
type LogQuery struct {
	Since  uint64
	Limit  int
	Follow bool
	Tail   bool
	TaskID string
}

// Logs fetches a batch of log events.
func (c *Client) Logs(ctx context.Context, q LogQuery) (LogStreamResponse, error) {
	values := url.Values{}
	values.Set("since", strconv.FormatUint(q.Since, 10))
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "true")
	}
	if q.Tail {
		values.Set("tail", "true")
	}
	if q.TaskID != "" {
		values.Set("task", q.TaskID)
	}
	var out LogStreamResponse
	err := c.do(ctx, http.MethodGet, "/api/logs?"+values.Encode(), nil, &out)
	return out, err
}

// Watch follows a task's progress stream, calling fn for each event until the
// task completes or fails, fn returns an error, or ctx ends.
func (c *Client) Watch(ctx context.Context, id string, fn func(events.Event) error) error {
	if c.base == "" {
		return fmt.Errorf("%w: api address not configured", ErrUnavailable)
	}
	target := "ws" + strings.TrimPrefix(c.base, "http") + "/ws/tasks/" + url.PathEscape(id)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return decodeError(resp)
		}
		return wrapTransportError(err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var msg struct {
			events.Event
			Detail string `json:"detail"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read task stream: %w", err)
		}
		if msg.Detail != "" && msg.TaskID == "" {
			return &Error{StatusCode: http.StatusNotFound, Detail: msg.Detail}
		}
		if err := fn(msg.Event); err != nil {
			return err
		}
		if msg.Terminal() {
			return nil
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if c.base == "" {
		return nil, fmt.Errorf("%w: api address not configured", ErrUnavailable)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return wrapTransportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{StatusCode: resp.StatusCode}
	var payload ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(data, &payload); err == nil {
		apiErr.Detail = payload.Detail
		apiErr.Kind = payload.Kind
	} else {
		apiErr.Detail = strings.TrimSpace(string(data))
	}
	return apiErr
}

func wrapTransportError(err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return fmt.Errorf("api request: %w", err)
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
