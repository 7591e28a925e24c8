package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"lecturenote/internal/api"
	"lecturenote/internal/blobstore"
	"lecturenote/internal/config"
	"lecturenote/internal/events"
	"lecturenote/internal/logging"
	"lecturenote/internal/services"
	"lecturenote/internal/tasks"
	"lecturenote/internal/workflow"
)

// taskService is the slice of the workflow manager the API drives.
type taskService interface {
	CreateUpload(ctx context.Context, req workflow.UploadRequest) (*tasks.Task, error)
	CreatePendingUpload(ctx context.Context, filename, title, contentType string) (*tasks.Task, error)
	ConfirmUpload(ctx context.Context, id string) (*tasks.Task, error)
	CreateRemote(ctx context.Context, req workflow.RemoteRequest) (*tasks.Task, error)
	StartProcessing(ctx context.Context, id string, req tasks.Request) (*tasks.Task, error)
	StartSynthesis(ctx context.Context, id string) (*tasks.Task, error)
	StartRegenerate(ctx context.Context, id string) (*tasks.Task, error)
	Get(ctx context.Context, id string) (*tasks.Task, error)
	List(ctx context.Context, statuses ...tasks.Status) ([]*tasks.Task, error)
	Status(ctx context.Context) workflow.StatusSummary
}

type apiDeps struct {
	Tasks   taskService
	Objects *blobstore.Store
	Events  *events.Hub
	Logs    *logging.StreamHub
	Logger  *slog.Logger
}

type apiServer struct {
	bind    string
	logger  *slog.Logger
	tasks   taskService
	objects *blobstore.Store
	signer  *blobstore.Signer
	events  *events.Hub
	logs    *logging.StreamHub
	ttl     time.Duration

	app *fiber.App

	mu       sync.Mutex
	listener net.Listener
}

func newAPIServer(cfg *config.Config, deps apiDeps) (*apiServer, error) {
	logger := logging.NewComponentLogger(deps.Logger, "api-server")
	key := cfg.API.SigningKey
	if key == "" {
		key = uuid.NewString()
		logging.WarnWithContext(logger, "no signing key configured; signed URLs will not survive a restart", "signing_key_ephemeral",
			logging.String(logging.FieldImpact, "upload and download links expire when the daemon restarts"),
			logging.String(logging.FieldErrorHint, "set api.signing_key or LECTURENOTE_SIGNING_KEY"),
		)
	}
	signer, err := blobstore.NewSigner(key, cfg.Paths.BaseURL)
	if err != nil {
		return nil, err
	}
	hub := deps.Events
	if hub == nil {
		hub = events.NewHub()
	}
	s := &apiServer{
		bind:    strings.TrimSpace(cfg.Paths.APIBind),
		logger:  logger,
		tasks:   deps.Tasks,
		objects: deps.Objects,
		signer:  signer,
		events:  hub,
		logs:    deps.Logs,
		ttl:     time.Duration(cfg.API.URLExpirySeconds) * time.Second,
	}
	s.app = s.routes(cfg)
	return s, nil
}

func (s *apiServer) routes(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "lecturenote",
		BodyLimit:             cfg.API.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Minute,
		IdleTimeout:           60 * time.Second,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${status} ${method} ${path} ${latency}\n",
		Output: requestLogWriter{logger: s.logger},
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.API.CORSOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET,POST,PUT,OPTIONS",
	}))
	app.Use(s.withRequestContext)

	app.Get("/health", s.handleHealth)

	group := app.Group("/api")
	group.Get("/status", s.handleStatus)
	group.Get("/logs", s.handleLogs)

	videos := group.Group("/videos")
	videos.Get("/", s.handleListTasks)
	videos.Post("/upload-url", s.handleUploadURL)
	videos.Post("/upload", s.handleUpload)
	videos.Post("/fetch", s.handleFetch)
	videos.Post("/:id/confirm-upload", s.handleConfirmUpload)
	videos.Post("/:id/process", s.handleProcess)
	videos.Post("/:id/synthesize", s.handleSynthesize)
	videos.Get("/:id/status", s.handleTaskStatus)

	notes := group.Group("/notes")
	notes.Get("/:id", s.handleNote)
	notes.Get("/:id/download", s.handleNoteDownload)
	notes.Get("/:id/slides/:n/image", s.handleSlideImage)
	notes.Post("/:id/regenerate", s.handleRegenerate)

	app.Get("/objects/*", s.handleObjectGet)
	app.Put("/objects/*", s.handleObjectPut)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/tasks/:id", websocket.New(s.handleTaskStream))
	return app
}

// withRequestContext carries the request id into the handler context so
// workflow logs correlate with access logs.
func (s *apiServer) withRequestContext(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if id, ok := c.Locals("requestid").(string); ok {
		ctx = services.WithRequestID(ctx, id)
	}
	c.SetUserContext(ctx)
	return c.Next()
}

func (s *apiServer) handleError(c *fiber.Ctx, err error) error {
	status := api.StatusCode(err)
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			logging.String("method", c.Method()),
			logging.String("path", c.Path()),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	return c.Status(status).JSON(api.ErrorResponse{Detail: err.Error(), Kind: services.Kind(err)})
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		s.logger.Info("api server disabled; paths.api_bind is empty")
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.app.Listener(listener); err != nil {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()
	if listener == nil {
		return
	}
	if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
		s.logger.Warn("api shutdown incomplete", logging.Error(err))
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// requestLogWriter feeds fiber's access log lines into slog at debug level.
type requestLogWriter struct {
	logger *slog.Logger
}

func (w requestLogWriter) Write(p []byte) (int, error) {
	if line := strings.TrimSpace(string(p)); line != "" {
		w.logger.Debug("http request", logging.String("request", line))
	}
	return len(p), nil
}
