package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lecturenote/internal/api"
	"lecturenote/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var checkLLM bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency and configuration health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := ctx.client()
			status, statusErr := client.Status(cmd.Context())
			if statusErr != nil && !errors.Is(statusErr, api.ErrUnavailable) {
				return statusErr
			}
			running := statusErr == nil

			depStatuses := preflight.CheckSystemDeps(cfg)
			checks := preflight.RunAll(cmd.Context(), cfg, preflight.Options{SkipLLM: !checkLLM})

			if jsonOutput {
				payload := map[string]any{
					"daemon_running": running,
					"dependencies":   depStatuses,
					"checks":         checks,
				}
				if running {
					payload["workflow"] = status
				}
				return writeJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			var lines []string
			lines = append(lines, renderSectionHeader("Daemon", colorize)...)
			if running {
				lines = append(lines, renderStatusLine("LectureNote", statusOK, "Running at "+client.BaseURL(), colorize))
				lines = append(lines, workflowLines(status, colorize)...)
			} else {
				lines = append(lines, renderStatusLine("LectureNote", statusError, "Not running", colorize))
			}
			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			lines = append(lines, dependencyLines(depStatuses, colorize)...)
			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Checks", colorize)...)
			lines = append(lines, preflightLines(checks, colorize)...)
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkLLM, "check-llm", false, "Also verify the language model API key with a live request")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external binaries (ffmpeg, ffprobe, uvx, yt-dlp)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := preflight.CheckSystemDeps(cfg)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, strings.Join(dependencyLines(statuses, shouldColorize(out)), "\n"))
			for _, dep := range statuses {
				if !dep.Available && !dep.Optional {
					return fmt.Errorf("required dependency %s is missing", dep.Name)
				}
			}
			return nil
		},
	}
}
