package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lecturenote/internal/blobstore"
	"lecturenote/internal/logging"
	"lecturenote/internal/services"
	"lecturenote/internal/services/ytdlp"
	"lecturenote/internal/tasks"
	"lecturenote/internal/textutil"
)

// CreateUpload stores the uploaded video and records an uploaded task.
func (m *Manager) CreateUpload(ctx context.Context, req UploadRequest) (*tasks.Task, error) {
	if req.Body == nil {
		return nil, services.Wrap(services.ErrValidation, "upload", "create", "video body is required", nil)
	}
	id := m.newID()
	key := blobstore.VideoKey(id, textutil.VideoExtension(req.Filename))
	size, err := m.objects.Put(ctx, key, req.Body)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	kind := req.Kind
	if kind == "" {
		kind = tasks.SourceUpload
	}
	source := tasks.Source{
		Kind:        kind,
		VideoKey:    key,
		Filename:    strings.TrimSpace(req.Filename),
		ContentType: req.ContentType,
		SizeBytes:   size,
	}
	task := tasks.New(id, m.titleFor(req.Title, req.Filename), source, tasks.Uploaded{}, m.now())
	if err := m.store.Set(ctx, task); err != nil {
		_ = m.objects.Delete(context.WithoutCancel(ctx), key)
		return nil, err
	}
	m.taskLogger(ctx, id, "").Info("task created",
		logging.String(logging.FieldEventType, "task_created"),
		logging.String("source", string(kind)),
		logging.String("video_key", key),
		logging.Int64("size_bytes", size),
	)
	return task, nil
}

// CreatePendingUpload records a task whose video will be written to its
// video key by the client, typically through a signed URL.
func (m *Manager) CreatePendingUpload(ctx context.Context, filename, title, contentType string) (*tasks.Task, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, services.Wrap(services.ErrValidation, "upload", "create", "filename is required", nil)
	}
	id := m.newID()
	source := tasks.Source{
		Kind:        tasks.SourceUpload,
		VideoKey:    blobstore.VideoKey(id, textutil.VideoExtension(filename)),
		Filename:    strings.TrimSpace(filename),
		ContentType: contentType,
	}
	task := tasks.New(id, m.titleFor(title, filename), source, tasks.Pending{}, m.now())
	if err := m.store.Set(ctx, task); err != nil {
		return nil, err
	}
	m.taskLogger(ctx, id, "").Info("upload slot issued",
		logging.String(logging.FieldEventType, "upload_slot_issued"),
		logging.String("video_key", source.VideoKey),
	)
	return task, nil
}

// ConfirmUpload moves a pending upload to uploaded once its video exists.
func (m *Manager) ConfirmUpload(ctx context.Context, id string) (*tasks.Task, error) {
	return m.store.Update(ctx, id, func(t *tasks.Task) error {
		pending, ok := t.State.(tasks.Pending)
		if !ok {
			return fmt.Errorf("%w: task %s is %s, not awaiting an upload", services.ErrInvalidState, id, t.Status())
		}
		if pending.FetchURL != "" {
			return fmt.Errorf("%w: task %s is waiting for a remote fetch", services.ErrInvalidState, id)
		}
		exists, err := m.objects.Exists(ctx, t.Source.VideoKey)
		if err != nil {
			return err
		}
		if !exists {
			return services.Wrap(services.ErrValidation, "upload", "confirm", "video has not been uploaded", nil)
		}
		if path, err := m.objects.Path(t.Source.VideoKey); err == nil {
			if info, err := os.Stat(path); err == nil {
				t.Source.SizeBytes = info.Size()
			}
		}
		return t.Transition(tasks.Uploaded{}, m.now())
	})
}

// CreateRemote records a pending task and downloads the video in the
// background. With AutoProcess the task continues into processing once the
// download lands.
func (m *Manager) CreateRemote(ctx context.Context, req RemoteRequest) (*tasks.Task, error) {
	if m.stageSet().Fetcher == nil {
		return nil, services.Wrap(services.ErrConfiguration, "fetch", "create", "remote fetching is not available", nil)
	}
	videoURL := strings.TrimSpace(req.URL)
	if err := ytdlp.ValidateURL(videoURL); err != nil {
		return nil, err
	}
	if req.AutoProcess {
		if err := validateRequest(req.Request); err != nil {
			return nil, err
		}
	}
	id := m.newID()
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = videoURL
	}
	source := tasks.Source{Kind: tasks.SourceRemote, URL: videoURL}
	task := tasks.New(id, title, source, tasks.Pending{FetchURL: videoURL}, m.now())
	if err := m.store.Set(ctx, task); err != nil {
		return nil, err
	}
	m.taskLogger(ctx, id, string(tasks.PhaseFetch)).Info("remote fetch queued",
		logging.String(logging.FieldEventType, "fetch_queued"),
		logging.String("url", videoURL),
	)
	m.launchFetch(id, videoURL, req.AutoProcess, req.Request)
	return task, nil
}

func (m *Manager) launchFetch(id, videoURL string, autoProcess bool, request tasks.Request) {
	m.launch(func(ctx context.Context) {
		if _, err := m.fetch(ctx, id, videoURL); err != nil {
			m.fail(ctx, id, tasks.PhaseFetch, err)
			return
		}
		if !autoProcess {
			return
		}
		if _, err := m.StartProcessing(ctx, id, request); err != nil {
			m.taskLogger(ctx, id, "").Warn("auto process after fetch failed", logging.Error(err))
		}
	})
}

func (m *Manager) fetch(ctx context.Context, id, videoURL string) (*tasks.Task, error) {
	ctx = services.WithPhase(services.WithTaskID(ctx, id), string(tasks.PhaseFetch))
	logger := m.taskLogger(ctx, id, string(tasks.PhaseFetch))
	logger.Info("phase started", logging.String(logging.FieldEventType, "phase_started"))

	dir := filepath.Join(m.cfg.WorkDir(), id, "download")
	defer os.RemoveAll(dir)
	path, err := m.stageSet().Fetcher.Fetch(ctx, videoURL, dir)
	if err != nil {
		return nil, err
	}
	key := blobstore.VideoKey(id, textutil.VideoExtension(path))
	if err := m.objects.PutFile(ctx, key, path); err != nil {
		return nil, err
	}
	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	task, err := m.store.Update(ctx, id, func(t *tasks.Task) error {
		t.Source.VideoKey = key
		t.Source.Filename = filepath.Base(path)
		t.Source.SizeBytes = size
		return t.Transition(tasks.Uploaded{}, m.now())
	})
	if err != nil {
		return nil, err
	}
	logger.Info("phase completed",
		logging.String(logging.FieldEventType, "phase_completed"),
		logging.String("video_key", key),
		logging.Int64("size_bytes", size),
	)
	return task, nil
}

// IngestFile imports a local video (from the inbox watcher) and, when
// ingest.auto_process is set, starts processing it.
func (m *Manager) IngestFile(ctx context.Context, path string) (*tasks.Task, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	task, err := m.CreateUpload(ctx, UploadRequest{
		Filename: filepath.Base(path),
		Kind:     tasks.SourceInbox,
		Body:     file,
	})
	if err != nil {
		return nil, err
	}
	if !m.cfg.Ingest.AutoProcess {
		return task, nil
	}
	return m.StartProcessing(ctx, task.ID, tasks.Request{})
}

func (m *Manager) titleFor(title, filename string) string {
	if title = strings.TrimSpace(title); title != "" {
		return title
	}
	if derived := textutil.TitleFromFileName(filename); derived != "" {
		return derived
	}
	return m.cfg.Notes.DefaultTitle
}
