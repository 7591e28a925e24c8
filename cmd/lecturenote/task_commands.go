package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lecturenote/internal/api"
	"lecturenote/internal/events"
	"lecturenote/internal/tasks"
)

// processFlags collects the analysis overrides shared by upload, fetch and
// process.
type processFlags struct {
	helpAt   []string
	interval float64
	ssim     float64
	wait     bool
}

func (f *processFlags) register(cmd *cobra.Command) {
	f.registerOptions(cmd)
	cmd.Flags().BoolVar(&f.wait, "wait", false, "Follow progress until the note is ready")
}

func (f *processFlags) registerOptions(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.helpAt, "help-at", nil, "Timestamps where you asked for help (seconds, mm:ss or hh:mm:ss; repeatable)")
	cmd.Flags().Float64Var(&f.interval, "interval", 0, "Frame sampling interval in seconds (default from config)")
	cmd.Flags().Float64Var(&f.ssim, "ssim", 0, "Slide change similarity threshold 0..1 (default from config)")
}

func (f *processFlags) request(cmd *cobra.Command) (api.ProcessRequest, error) {
	stamps, err := parseTimestamps(f.helpAt)
	if err != nil {
		return api.ProcessRequest{}, err
	}
	req := api.ProcessRequest{SOSTimestamps: stamps}
	var opts api.ProcessingOptions
	if cmd.Flags().Changed("interval") {
		v := f.interval
		opts.FrameIntervalSec = &v
	}
	if cmd.Flags().Changed("ssim") {
		v := f.ssim
		opts.SSIMThreshold = &v
	}
	if opts.FrameIntervalSec != nil || opts.SSIMThreshold != nil {
		if err := opts.Validate(); err != nil {
			return api.ProcessRequest{}, err
		}
		req.Options = &opts
	}
	return req, nil
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List lecture tasks, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range statuses {
				if _, ok := tasks.ParseStatus(s); !ok {
					return fmt.Errorf("unknown status %q", s)
				}
			}
			return ctx.withClient(func(client *api.Client) error {
				list, err := client.List(cmd.Context(), statuses)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTaskTable(list))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show one task's status and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				task, err := client.Task(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, task)
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(taskDetailLines(task, shouldColorize(cmd.OutOrStdout())), "\n"))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func taskDetailLines(task api.TaskStatusResponse, colorize bool) []string {
	kind := statusInfo
	switch task.Status {
	case string(tasks.StatusCompleted):
		kind = statusOK
	case string(tasks.StatusFailed):
		kind = statusError
	}
	lines := []string{
		renderStatusLine("Task", statusInfo, task.TaskID, colorize),
		renderStatusLine("Title", statusInfo, task.Title, colorize),
		renderStatusLine("Source", statusInfo, task.Source, colorize),
		renderStatusLine("Status", kind, task.Status, colorize),
		renderStatusLine("Progress", statusInfo, formatProgress(task.Progress), colorize),
	}
	if task.ErrorMessage != nil {
		detail := *task.ErrorMessage
		if task.FailedPhase != "" {
			detail = fmt.Sprintf("%s (phase: %s)", detail, task.FailedPhase)
		}
		lines = append(lines, renderStatusLine("Error", statusError, detail, colorize))
		if task.Resumable {
			lines = append(lines, renderStatusLine("Resume", statusWarn, "analysis checkpoint kept; run `lecturenote synthesize "+task.TaskID+"`", colorize))
		}
	}
	lines = append(lines,
		renderStatusLine("Created", statusInfo, task.CreatedAt, colorize),
		renderStatusLine("Updated", statusInfo, task.UpdatedAt, colorize),
	)
	return lines
}

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var title string
	var process bool
	flags := &processFlags{}

	cmd := &cobra.Command{
		Use:   "upload <video>",
		Short: "Upload a local lecture video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(cmd)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Upload(cmd.Context(), args[0], title)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Uploaded %s as task %s (%d bytes)\n", args[0], resp.TaskID, resp.SizeBytes)
				if !process {
					fmt.Fprintf(out, "Start analysis with `lecturenote process %s`\n", resp.TaskID)
					return nil
				}
				return startProcessing(cmd, client, resp.TaskID, req, flags.wait)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Lecture title (defaults to the file name)")
	cmd.Flags().BoolVar(&process, "process", true, "Start analysis right after the upload")
	flags.register(cmd)
	return cmd
}

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var title string
	var process bool
	flags := &processFlags{}

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Download a lecture video from a URL on the daemon host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(cmd)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				task, err := client.Fetch(cmd.Context(), api.FetchRequest{
					URL:           args[0],
					Title:         title,
					AutoProcess:   process,
					SOSTimestamps: req.SOSTimestamps,
					Options:       req.Options,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Fetching %s as task %s\n", args[0], task.TaskID)
				if flags.wait && process {
					return followTask(cmd, client, task.TaskID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Lecture title (defaults to the downloaded file name)")
	cmd.Flags().BoolVar(&process, "process", true, "Start analysis once the download finishes")
	flags.register(cmd)
	return cmd
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	flags := &processFlags{}

	cmd := &cobra.Command{
		Use:   "process <task-id>",
		Short: "Analyze an uploaded lecture and generate its note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(cmd)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				return startProcessing(cmd, client, args[0], req, flags.wait)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func startProcessing(cmd *cobra.Command, client *api.Client, id string, req api.ProcessRequest, wait bool) error {
	resp, err := client.Process(cmd.Context(), id, req)
	if err != nil {
		return err
	}
	estimate := time.Duration(resp.EstimatedTimeSec) * time.Second
	fmt.Fprintf(cmd.OutOrStdout(), "Processing task %s (estimated %s)\n", resp.TaskID, estimate)
	if wait {
		return followTask(cmd, client, resp.TaskID)
	}
	return nil
}

func newSynthesizeCommand(ctx *commandContext) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "synthesize <task-id>",
		Short: "Resume note generation from a task's analysis checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				task, err := client.Synthesize(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Synthesizing task %s (%s)\n", task.TaskID, task.Status)
				if wait {
					return followTask(cmd, client, task.TaskID)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Follow progress until the note is ready")
	return cmd
}

func newRegenerateCommand(ctx *commandContext) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "regenerate <task-id>",
		Short: "Regenerate a finished note without re-analyzing the video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				task, err := client.Regenerate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Regenerating note for task %s\n", task.TaskID)
				if wait {
					return followTask(cmd, client, task.TaskID)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Follow progress until the note is ready")
	return cmd
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <task-id>",
		Short: "Follow a task's progress until it completes or fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				return followTask(cmd, client, args[0])
			})
		},
	}
}

var errTaskFailed = errors.New("task failed")

func followTask(cmd *cobra.Command, client *api.Client, id string) error {
	out := cmd.OutOrStdout()
	var last events.Event
	err := client.Watch(cmd.Context(), id, func(evt events.Event) error {
		if evt.Status == last.Status && evt.Progress == last.Progress {
			return nil
		}
		last = evt
		fmt.Fprintf(out, "%s  %-20s %s\n", evt.At.Local().Format("15:04:05"), evt.Status, formatProgress(api.Progress(evt.Progress)))
		return nil
	})
	if err != nil {
		return err
	}
	if last.Status == tasks.StatusFailed {
		return fmt.Errorf("%w: %s", errTaskFailed, last.Error)
	}
	if last.Status == tasks.StatusCompleted {
		fmt.Fprintf(out, "Note ready: `lecturenote note %s`\n", id)
	}
	return nil
}
