package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"lecturenote/internal/blobstore"
	"lecturenote/internal/config"
	"lecturenote/internal/logging"
	"lecturenote/internal/notifications"
	"lecturenote/internal/tasks"
	"lecturenote/internal/taskstore"
	"lecturenote/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var title string
	var flags processFlags

	cmd := &cobra.Command{
		Use:   "run <video>",
		Short: "Process a local video end to end without a daemon",
		Long: "Run creates a task for a local video and blocks until its note is written. " +
			"It takes the task store lock, so it refuses to run while a daemon is serving.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			req, err := flags.request(cmd)
			if err != nil {
				return err
			}
			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runOffline(runCtx, cmd.OutOrStdout(), cfg, args[0], title, req.Request())
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Lecture title (defaults to the file name)")
	flags.registerOptions(cmd)
	return cmd
}

func runOffline(ctx context.Context, out io.Writer, cfg *config.Config, videoPath, title string, request tasks.Request) error {
	file, err := os.Open(videoPath)
	if err != nil {
		return fmt.Errorf("open video: %w", err)
	}
	defer file.Close()

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("a lecturenote daemon holds the task store lock; use `lecturenote upload` instead")
	}
	defer func() { _ = lock.Unlock() }()

	logger, err := logging.NewFromConfig(cfg, nil)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	notifier := notifications.NewNotifier(notifications.NewService(cfg), logger)
	defer notifier.Wait()

	store, err := taskstore.Open(cfg, taskstore.Options{Logger: logger, Observer: notifier.Observe})
	if err != nil {
		return fmt.Errorf("open task store: %w", err)
	}
	defer store.Close()

	objects, err := blobstore.Open(cfg.ObjectDir())
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}

	manager := workflow.NewManager(cfg, store, objects, logger)
	manager.ConfigureStages(buildStages(ctx, cfg, objects, logger))
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("start workflow: %w", err)
	}
	defer manager.Stop()

	task, err := manager.CreateUpload(ctx, workflow.UploadRequest{
		Filename: filepath.Base(videoPath),
		Title:    title,
		Body:     file,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Created task %s (%s)\n", task.ID, task.Title)

	task, err = manager.Process(ctx, task.ID, request)
	if err != nil {
		if task != nil {
			return fmt.Errorf("task %s failed: %w", task.ID, err)
		}
		return err
	}
	completed, ok := task.State.(tasks.Completed)
	if !ok {
		return fmt.Errorf("task %s ended in %s", task.ID, task.Status())
	}

	notePath, err := objects.Path(completed.Note.MarkdownKey)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Note ready: %s (%d slides)\n", notePath, len(completed.Note.Slides))
	if completed.Note.DocxKey != "" {
		if docxPath, err := objects.Path(completed.Note.DocxKey); err == nil {
			fmt.Fprintf(out, "DOCX: %s\n", docxPath)
		}
	}
	if completed.Note.DriveLink != "" {
		fmt.Fprintf(out, "Drive: %s\n", completed.Note.DriveLink)
	}
	return nil
}
