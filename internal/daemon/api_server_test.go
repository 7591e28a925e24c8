package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"lecturenote/internal/api"
	"lecturenote/internal/blobstore"
	"lecturenote/internal/config"
	"lecturenote/internal/events"
	"lecturenote/internal/logging"
	"lecturenote/internal/media/ffprobe"
	"lecturenote/internal/notes"
	"lecturenote/internal/speech"
	"lecturenote/internal/tasks"
	"lecturenote/internal/testsupport"
	"lecturenote/internal/transcript"
	"lecturenote/internal/vision"
	"lecturenote/internal/workflow"
)

type stubVision struct{}

func (stubVision) Run(_ context.Context, in vision.Input, progress tasks.ProgressFunc) (tasks.VisionResult, error) {
	progress(1)
	return tasks.VisionResult{
		FrameIntervalSec: 1,
		DurationSec:      20,
		Slides: []tasks.SlideRecord{
			{SlideNumber: 1, StartSec: 0, EndSec: 10, ImageKey: blobstore.SlideImageKey(in.TaskID, 1), Content: "Definition of a limit"},
			{SlideNumber: 2, StartSec: 10, EndSec: 20, ImageKey: blobstore.SlideImageKey(in.TaskID, 2), Content: "$\\lim_{x\\to 0}$"},
		},
	}, nil
}

type stubAudio struct{}

func (stubAudio) Run(_ context.Context, _ speech.Input, progress tasks.ProgressFunc) (transcript.Transcript, error) {
	progress(1)
	return transcript.New([]transcript.Span{{Start: 1, End: 3, Text: "today we study limits"}}, "en"), nil
}

type stubSynth struct {
	objects *blobstore.Store
}

func (s stubSynth) Synthesize(ctx context.Context, req notes.Request, progress tasks.ProgressFunc) (tasks.NoteResult, error) {
	key := blobstore.NoteMarkdownKey(req.TaskID)
	if err := s.objects.PutBytes(ctx, key, []byte("# "+req.Title+"\n")); err != nil {
		return tasks.NoteResult{}, err
	}
	progress(1)
	slides := make([]tasks.SlideNote, len(req.Segments))
	for i, seg := range req.Segments {
		slides[i] = tasks.SlideNote{
			SlideNumber:  seg.SlideNumber,
			StartSec:     seg.StartSec,
			EndSec:       seg.EndSec,
			ImageKey:     req.ImageKeys[i],
			SlideContent: seg.SlideContent,
			Summary:      "summary of slide",
		}
	}
	return tasks.NoteResult{Title: req.Title, MarkdownKey: key, Slides: slides, GeneratedAt: time.Now()}, nil
}

func stubProbe(context.Context, string) (ffprobe.Result, error) {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{{Index: 0, CodecType: "video"}, {Index: 1, CodecType: "audio", Channels: 1}},
		Format:  ffprobe.Format{Duration: "20"},
	}, nil
}

type apiFixture struct {
	cfg     *config.Config
	mgr     *workflow.Manager
	objects *blobstore.Store
	logs    *logging.StreamHub
	srv     *apiServer
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	objects, err := blobstore.Open(cfg.ObjectDir())
	if err != nil {
		t.Fatalf("blobstore.Open: %v", err)
	}
	mgr := workflow.NewManager(cfg, store, objects, nil, workflow.WithProber(stubProbe))
	mgr.ConfigureStages(workflow.StageSet{Vision: stubVision{}, Audio: stubAudio{}, Synthesizer: stubSynth{objects: objects}})
	t.Cleanup(mgr.Stop)

	logs := logging.NewStreamHub(16)
	srv, err := newAPIServer(cfg, apiDeps{Tasks: mgr, Objects: objects, Events: events.NewHub(), Logs: logs})
	if err != nil {
		t.Fatalf("newAPIServer: %v", err)
	}
	return &apiFixture{cfg: cfg, mgr: mgr, objects: objects, logs: logs, srv: srv}
}

func (f *apiFixture) do(t *testing.T, method, target string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := f.srv.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *apiFixture) postJSON(t *testing.T, target string, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return f.do(t, http.MethodPost, target, bytes.NewReader(data), "application/json")
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, want, body)
	}
}

// localTarget strips the configured base URL from a signed URL.
func localTarget(t *testing.T, signed string) string {
	t.Helper()
	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parse %q: %v", signed, err)
	}
	return u.RequestURI()
}

func TestSignedUploadFlow(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.postJSON(t, "/api/videos/upload-url", api.UploadURLRequest{Filename: "week-2.mp4"})
	expectStatus(t, resp, http.StatusOK)
	slot := decode[api.UploadURLResponse](t, resp)
	if slot.Method != http.MethodPut || !strings.HasPrefix(slot.UploadURL, "http://lecturenote.test/objects/videos/") {
		t.Fatalf("unexpected slot: %+v", slot)
	}

	confirm := "/api/videos/" + slot.TaskID + "/confirm-upload"
	expectStatus(t, f.do(t, http.MethodPost, confirm, nil, ""), http.StatusBadRequest)

	put := f.do(t, http.MethodPut, localTarget(t, slot.UploadURL), strings.NewReader("mp4 bytes"), "video/mp4")
	expectStatus(t, put, http.StatusNoContent)

	resp = f.do(t, http.MethodPost, confirm, nil, "")
	expectStatus(t, resp, http.StatusOK)
	confirmed := decode[api.ConfirmUploadResponse](t, resp)
	if confirmed.Status != "uploaded" || confirmed.VideoKey != slot.VideoKey {
		t.Fatalf("unexpected confirm: %+v", confirmed)
	}
	expectStatus(t, f.do(t, http.MethodPost, confirm, nil, ""), http.StatusConflict)
}

func TestObjectRoutesRejectBadSignatures(t *testing.T) {
	f := newAPIFixture(t)
	if err := f.objects.PutBytes(context.Background(), "outputs/x/note.md", []byte("secret")); err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	expectStatus(t, f.do(t, http.MethodGet, "/objects/outputs/x/note.md?expires=9999999999&sig=bogus", nil, ""), http.StatusForbidden)
	expectStatus(t, f.do(t, http.MethodPut, "/objects/videos/x/original.mp4?expires=9999999999&sig=bogus", strings.NewReader("x"), ""), http.StatusForbidden)
}

func TestProcessToNote(t *testing.T) {
	f := newAPIFixture(t)
	task, err := f.mgr.CreateUpload(context.Background(), workflow.UploadRequest{Filename: "limits.mp4", Body: strings.NewReader("video")})
	if err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}

	expectStatus(t, f.do(t, http.MethodGet, "/api/notes/"+task.ID, nil, ""), http.StatusConflict)

	bad := f.postJSON(t, "/api/videos/"+task.ID+"/process", map[string]any{"options": map[string]any{"ssim_threshold": 0.2}})
	expectStatus(t, bad, http.StatusBadRequest)
	expectStatus(t, f.postJSON(t, "/api/videos/missing/process", api.ProcessRequest{}), http.StatusNotFound)

	resp := f.postJSON(t, "/api/videos/"+task.ID+"/process", api.ProcessRequest{SOSTimestamps: []float64{12}})
	expectStatus(t, resp, http.StatusOK)
	started := decode[api.ProcessResponse](t, resp)
	if started.Status != "processing" || started.EstimatedTimeSec != 120 {
		t.Fatalf("unexpected process response: %+v", started)
	}
	f.mgr.Wait()

	resp = f.do(t, http.MethodGet, "/api/videos/"+task.ID+"/status", nil, "")
	expectStatus(t, resp, http.StatusOK)
	status := decode[api.TaskStatusResponse](t, resp)
	if status.Status != "completed" || status.Progress.Synthesis != 1 || status.ErrorMessage != nil {
		t.Fatalf("unexpected status: %+v", status)
	}

	resp = f.do(t, http.MethodGet, "/api/notes/"+task.ID, nil, "")
	expectStatus(t, resp, http.StatusOK)
	note := decode[api.NoteResponse](t, resp)
	if note.Title != "Limits" || len(note.Slides) != 2 || !strings.Contains(note.Slides[1].ImageURL, "slide_002.jpg") {
		t.Fatalf("unexpected note: %+v", note)
	}

	resp = f.do(t, http.MethodGet, "/api/notes/"+task.ID+"/download", nil, "")
	expectStatus(t, resp, http.StatusOK)
	download := decode[api.NoteDownloadResponse](t, resp)
	if download.Filename != "note_"+task.ID+".md" {
		t.Fatalf("filename = %q", download.Filename)
	}
	resp = f.do(t, http.MethodGet, localTarget(t, download.DownloadURL), nil, "")
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "# Limits\n" {
		t.Fatalf("note body = %q", body)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "note_"+task.ID+".md") {
		t.Fatalf("content disposition = %q", cd)
	}
	expectStatus(t, f.do(t, http.MethodGet, "/api/notes/"+task.ID+"/download?format=docx", nil, ""), http.StatusNotFound)

	resp = f.do(t, http.MethodGet, "/api/notes/"+task.ID+"/slides/3/image", nil, "")
	expectStatus(t, resp, http.StatusOK)
	if img := decode[api.SlideImageResponse](t, resp); !strings.Contains(img.ImageURL, "processing/"+task.ID+"/slides/slide_003.jpg") {
		t.Fatalf("image url = %q", img.ImageURL)
	}
	expectStatus(t, f.do(t, http.MethodGet, "/api/notes/"+task.ID+"/slides/0/image", nil, ""), http.StatusBadRequest)

	resp = f.do(t, http.MethodPost, "/api/notes/"+task.ID+"/regenerate", nil, "")
	expectStatus(t, resp, http.StatusAccepted)
	if regen := decode[api.TaskStatusResponse](t, resp); regen.Status != "generating_summary" {
		t.Fatalf("regenerate status = %q", regen.Status)
	}
	f.mgr.Wait()
	if got, _ := f.mgr.Get(context.Background(), task.ID); got.Status() != tasks.StatusCompleted {
		t.Fatalf("status after regenerate = %s", got.Status())
	}
}

func TestMultipartUpload(t *testing.T) {
	f := newAPIFixture(t)
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "Linear Algebra 1.mp4")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = part.Write([]byte("0123456789"))
	_ = form.WriteField("title", "Linear Algebra")
	_ = form.Close()

	resp := f.do(t, http.MethodPost, "/api/videos/upload", &buf, form.FormDataContentType())
	expectStatus(t, resp, http.StatusOK)
	uploaded := decode[api.UploadResponse](t, resp)
	if uploaded.Status != "uploaded" || uploaded.SizeBytes != 10 {
		t.Fatalf("unexpected upload: %+v", uploaded)
	}

	resp = f.do(t, http.MethodGet, "/api/videos/?status=uploaded", nil, "")
	expectStatus(t, resp, http.StatusOK)
	list := decode[api.TaskListResponse](t, resp)
	if len(list.Tasks) != 1 || list.Tasks[0].Title != "Linear Algebra" {
		t.Fatalf("unexpected list: %+v", list)
	}
	expectStatus(t, f.do(t, http.MethodGet, "/api/videos/?status=bogus", nil, ""), http.StatusBadRequest)
	expectStatus(t, f.do(t, http.MethodPost, "/api/videos/upload", strings.NewReader(""), "text/plain"), http.StatusBadRequest)
}

func TestFetchWithoutFetcherIsUnavailable(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.postJSON(t, "/api/videos/fetch", api.FetchRequest{URL: "https://example.com/lecture"})
	expectStatus(t, resp, http.StatusServiceUnavailable)
	if body := decode[api.ErrorResponse](t, resp); body.Kind == "" || body.Detail == "" {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestHealthAndLogs(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.do(t, http.MethodGet, "/health", nil, "")
	expectStatus(t, resp, http.StatusOK)
	if health := decode[api.HealthResponse](t, resp); health.Status != "healthy" {
		t.Fatalf("health = %+v", health)
	}

	f.logs.Publish(logging.LogEvent{Message: "phase started", TaskID: "a"})
	f.logs.Publish(logging.LogEvent{Message: "phase started", TaskID: "b"})
	resp = f.do(t, http.MethodGet, "/api/logs?task=b", nil, "")
	expectStatus(t, resp, http.StatusOK)
	logs := decode[api.LogStreamResponse](t, resp)
	if len(logs.Events) != 1 || logs.Events[0].TaskID != "b" || logs.Next != 2 {
		t.Fatalf("unexpected logs: %+v", logs)
	}
}

func TestTaskStreamRequiresUpgrade(t *testing.T) {
	f := newAPIFixture(t)
	expectStatus(t, f.do(t, http.MethodGet, "/ws/tasks/abc", nil, ""), http.StatusUpgradeRequired)
}
