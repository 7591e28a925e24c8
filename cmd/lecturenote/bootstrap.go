package main

import (
	"context"
	"fmt"
	"log/slog"

	"lecturenote/internal/blobstore"
	"lecturenote/internal/boundary"
	"lecturenote/internal/config"
	"lecturenote/internal/daemon"
	"lecturenote/internal/deps"
	"lecturenote/internal/events"
	"lecturenote/internal/logging"
	"lecturenote/internal/media/frames"
	"lecturenote/internal/notes"
	"lecturenote/internal/notifications"
	"lecturenote/internal/preflight"
	"lecturenote/internal/services/gdrive"
	"lecturenote/internal/services/llm"
	"lecturenote/internal/services/whisperx"
	"lecturenote/internal/services/ytdlp"
	"lecturenote/internal/speech"
	"lecturenote/internal/tasks"
	"lecturenote/internal/taskstore"
	"lecturenote/internal/vision"
	"lecturenote/internal/workflow"
)

// runtimeDeps is everything serve owns and must close on shutdown.
type runtimeDeps struct {
	daemon     *daemon.Daemon
	store      *taskstore.Store
	dispatcher *events.Dispatcher
	notifier   *notifications.Notifier
}

func (r *runtimeDeps) Close() {
	if r.daemon != nil {
		_ = r.daemon.Close()
	} else if r.store != nil {
		_ = r.store.Close()
	}
	if r.dispatcher != nil {
		_ = r.dispatcher.Close()
	}
	if r.notifier != nil {
		r.notifier.Wait()
	}
}

func buildRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, logHub *logging.StreamHub) (*runtimeDeps, error) {
	rt := &runtimeDeps{}

	var remote events.Publisher
	if cfg.Events.RedisEnabled {
		publisher, err := events.NewRedisPublisher(ctx, cfg.Events)
		if err != nil {
			logging.WarnWithContext(logger, "redis event publisher unavailable; continuing with in-process events", "redis_unavailable",
				logging.Error(err),
				logging.String(logging.FieldImpact, "remote subscribers receive no task events"),
				logging.String(logging.FieldErrorHint, "check events.redis_addr"),
			)
		} else {
			remote = publisher
		}
	}
	rt.dispatcher = events.NewDispatcher(events.NewHub(), remote, logger)

	rt.notifier = notifications.NewNotifier(notifications.NewService(cfg), logger)
	observe := func(task tasks.Task) {
		rt.dispatcher.Observe(task)
		rt.notifier.Observe(task)
	}

	store, err := taskstore.Open(cfg, taskstore.Options{Logger: logger, Observer: observe})
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open task store: %w", err)
	}
	rt.store = store

	objects, err := blobstore.Open(cfg.ObjectDir())
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open object store: %w", err)
	}

	manager := workflow.NewManager(cfg, store, objects, logger)
	manager.ConfigureStages(buildStages(ctx, cfg, objects, logger))

	d, err := daemon.New(cfg, store, objects, logger, manager, daemon.Options{
		Events: rt.dispatcher.Hub(),
		LogHub: logHub,
	})
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	rt.daemon = d
	return rt, nil
}

// buildStages wires the analysis phases. Collaborators that cannot be built
// are left nil so the API answers 503 for the operations that need them.
func buildStages(ctx context.Context, cfg *config.Config, objects *blobstore.Store, logger *slog.Logger) workflow.StageSet {
	var set workflow.StageSet

	visionLLM, visionErr := llm.New(preflight.LLMConfig(cfg, true))
	noteLLM, noteErr := llm.New(preflight.LLMConfig(cfg, false))
	if visionErr != nil || noteErr != nil {
		err := visionErr
		if err == nil {
			err = noteErr
		}
		hint := "set llm.api_key"
		if envHint := cfg.LLMAPIKeyHint(); envHint != "" {
			hint += " or export " + envHint
		}
		logging.WarnWithContext(logger, "language model unavailable; analysis disabled", "llm_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "uploads are accepted but cannot be processed"),
			logging.String(logging.FieldErrorHint, hint),
		)
	} else {
		set.Vision = vision.NewPhase(vision.Config{
			Detection:        detectionOptions(cfg),
			FrameIntervalSec: cfg.Detection.FrameIntervalSec,
			WorkDir:          cfg.WorkDir(),
		}, frames.NewSampler(cfg.FFmpegBinary()), vision.NewLLMExtractor(visionLLM), objects, logger)

		var exporter notes.Exporter
		if cfg.Drive.Enabled {
			drive, err := gdrive.New(ctx, cfg.Drive.CredentialsFile, cfg.Drive.TokenFile, cfg.Drive.FolderName)
			if err != nil {
				logging.WarnWithContext(logger, "drive export unavailable", "drive_unavailable",
					logging.Error(err),
					logging.String(logging.FieldImpact, "notes are stored locally only"),
					logging.String(logging.FieldErrorHint, "run `lecturenote drive auth`"),
				)
			} else {
				exporter = drive
			}
		}
		set.Synthesizer = notes.NewGenerator(noteLLM, objects, notes.Options{
			DocxEnabled: cfg.Notes.DocxEnabled,
			WorkDir:     cfg.WorkDir(),
			Exporter:    exporter,
			Logger:      logger,
		})
	}

	transcriber := whisperx.NewService(whisperx.Config{
		Model:        cfg.Transcription.Model,
		Language:     cfg.Transcription.Language,
		CUDAEnabled:  cfg.Transcription.CUDAEnabled,
		VADMethod:    cfg.Transcription.VADMethod,
		HFToken:      cfg.Transcription.HFToken,
		UVXBinary:    cfg.UVXBinary(),
		FFmpegBinary: cfg.FFmpegBinary(),
	})
	set.Audio = speech.NewPhase(transcriber, cfg.Transcription.Language, cfg.WorkDir(), logger)

	fetchStatus := deps.CheckBinaries([]deps.Requirement{{Name: "yt-dlp", Command: cfg.YTDLPBinary(), Optional: true}})
	if len(fetchStatus) == 1 && fetchStatus[0].Available {
		set.Fetcher = ytdlp.NewFetcher(cfg.YTDLPBinary())
	} else {
		logger.Info("yt-dlp not found; remote fetch disabled",
			logging.String(logging.FieldEventType, "fetch_disabled"),
			logging.String("binary", cfg.YTDLPBinary()),
		)
	}
	return set
}

func detectionOptions(cfg *config.Config) boundary.Options {
	opts := boundary.DefaultOptions()
	if cfg.Detection.SimilarityThreshold > 0 {
		opts.SimilarityThreshold = cfg.Detection.SimilarityThreshold
	}
	if cfg.Detection.InfoChangeRatio > 0 {
		opts.InfoChangeRatio = cfg.Detection.InfoChangeRatio
	}
	if cfg.Detection.AnalysisWidth > 0 {
		opts.AnalysisWidth = cfg.Detection.AnalysisWidth
	}
	return opts
}
