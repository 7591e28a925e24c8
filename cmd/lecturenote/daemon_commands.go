package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"lecturenote/internal/daemonctl"
)

const (
	startWaitTimeout = 30 * time.Second
	stopGracePeriod  = 20 * time.Second
)

func newStartCommand(ctx *commandContext) *cobra.Command {
	var skipLLMCheck bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the LectureNote daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			client := ctx.client()
			res, err := daemonctl.EnsureStarted(cmd.Context(), client, exe, ctx.launchOptions(skipLLMCheck), startWaitTimeout)
			if err != nil {
				return wrapClientError(err, client.BaseURL())
			}
			out := cmd.OutOrStdout()
			switch res.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(out, "Daemon already running at %s\n", client.BaseURL())
			default:
				fmt.Fprintf(out, "Daemon started (pid %d) at %s\n", res.PID, client.BaseURL())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipLLMCheck, "skip-llm-check", false, "Skip the language model reachability check at startup")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background LectureNote daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			res, err := daemonctl.Stop(cmd.Context(), ctx.client(), cfg.PIDPath(), stopGracePeriod)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if res.ForcedKill {
				fmt.Fprintf(out, "Daemon did not exit in %s; killed pid %d\n", stopGracePeriod, res.PID)
				return nil
			}
			fmt.Fprintf(out, "Daemon stopped (pid %d)\n", res.PID)
			return nil
		},
	}
}

func newRestartCommand(ctx *commandContext) *cobra.Command {
	var skipLLMCheck bool

	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the background LectureNote daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			client := ctx.client()
			res, err := daemonctl.Restart(cmd.Context(), client, cfg.PIDPath(), exe, ctx.launchOptions(skipLLMCheck), stopGracePeriod, startWaitTimeout)
			if err != nil {
				return wrapClientError(err, client.BaseURL())
			}
			out := cmd.OutOrStdout()
			if res.WasRunning {
				fmt.Fprintf(out, "Stopped pid %d\n", res.Stop.PID)
			}
			fmt.Fprintf(out, "Daemon started (pid %d) at %s\n", res.Start.PID, client.BaseURL())
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipLLMCheck, "skip-llm-check", false, "Skip the language model reachability check at startup")
	return cmd
}

func (c *commandContext) launchOptions(skipLLMCheck bool) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		ConfigPath:   c.configPath(),
		SkipLLMCheck: skipLLMCheck,
	}
}
