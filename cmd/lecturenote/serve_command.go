package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"lecturenote/internal/logging"
	"lecturenote/internal/preflight"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var skipLLMCheck bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the LectureNote daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx, skipLLMCheck)
		},
	}
	cmd.Flags().BoolVar(&skipLLMCheck, "skip-llm-check", false, "Skip the language model reachability check at startup")
	return cmd
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext, skipLLMCheck bool) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logHub := logging.NewStreamHub(cfg.Logging.StreamCapacity)
	logger, err := logging.NewFromConfig(cfg, logHub)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	for _, result := range preflight.RunAll(signalCtx, cfg, preflight.Options{SkipLLM: skipLLMCheck}) {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String(logging.FieldEventType, "preflight_ok"),
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "tasks depending on this check will fail"),
			logging.String(logging.FieldErrorHint, "run `lecturenote status` for details"),
		)
	}
	for _, dep := range preflight.CheckSystemDeps(cfg) {
		if dep.Available || dep.Optional {
			continue
		}
		logging.WarnWithContext(logger, "required binary missing", "dependency_missing",
			logging.String("dependency", dep.Name),
			logging.String("detail", dep.Detail),
			logging.String(logging.FieldImpact, dep.Description),
			logging.String(logging.FieldErrorHint, "install it or fix PATH, then restart"),
		)
	}

	rt, err := buildRuntime(signalCtx, cfg, logger, logHub)
	if err != nil {
		logger.Error("build runtime", logging.Error(err))
		return err
	}
	defer rt.Close()

	if err := rt.daemon.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	<-signalCtx.Done()
	logger.Info("lecturenote daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
