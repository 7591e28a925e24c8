package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"lecturenote/internal/api"
)

func newNoteCommand(ctx *commandContext) *cobra.Command {
	var output string
	var format string
	var printMarkdown bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "note <task-id>",
		Short: "Show or download a finished note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "md" && format != "docx" {
				return fmt.Errorf("unsupported format %q (expected md or docx)", format)
			}
			id := args[0]
			return ctx.withClient(func(client *api.Client) error {
				out := cmd.OutOrStdout()
				if printMarkdown || output != "" {
					link, err := client.DownloadLink(cmd.Context(), id, format)
					if err != nil {
						return err
					}
					if printMarkdown {
						_, err := client.Download(cmd.Context(), link.DownloadURL, out)
						return err
					}
					return downloadTo(cmd, client, link, output)
				}

				note, err := client.Note(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, note)
				}
				colorize := shouldColorize(out)
				fmt.Fprintln(out, strings.Join(renderSectionHeader(note.Title, colorize), "\n"))
				fmt.Fprintln(out, renderStatusLine("Slides", statusInfo, fmt.Sprintf("%d", len(note.Slides)), colorize))
				if note.Model != "" {
					fmt.Fprintln(out, renderStatusLine("Model", statusInfo, note.Model, colorize))
				}
				fmt.Fprintln(out, renderStatusLine("DOCX", statusInfo, yesNo(note.DocxAvailable), colorize))
				if note.DriveLink != "" {
					fmt.Fprintln(out, renderStatusLine("Drive", statusInfo, note.DriveLink, colorize))
				}
				if len(note.Slides) > 0 {
					fmt.Fprintln(out, renderSlideTable(note.Slides))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the note to this file or directory")
	cmd.Flags().StringVar(&format, "format", "md", "Download format: md or docx")
	cmd.Flags().BoolVar(&printMarkdown, "print", false, "Print the rendered note to stdout")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func downloadTo(cmd *cobra.Command, client *api.Client, link api.NoteDownloadResponse, output string) error {
	target := output
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		target = filepath.Join(output, link.Filename)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".note-*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := client.Download(cmd.Context(), link.DownloadURL, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", target, n)
	return nil
}

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var taskID string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				return streamLogs(cmd, client, cmd.OutOrStdout(), api.LogQuery{
					Limit:  max(lines, 0),
					Tail:   true,
					TaskID: taskID,
				}, follow)
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of recent lines to show")
	cmd.Flags().StringVar(&taskID, "task", "", "Only show events for one task")
	return cmd
}

func streamLogs(cmd *cobra.Command, client *api.Client, out io.Writer, q api.LogQuery, follow bool) error {
	printed := false
	for {
		resp, err := client.Logs(cmd.Context(), q)
		if err != nil {
			return err
		}
		for _, evt := range resp.Events {
			line := fmt.Sprintf("%s %-5s %s", evt.Timestamp.Local().Format("2006-01-02 15:04:05"), strings.ToUpper(evt.Level), evt.Message)
			if evt.Component != "" {
				line += " [" + evt.Component + "]"
			}
			if evt.TaskID != "" {
				line += " task=" + evt.TaskID
			}
			fmt.Fprintln(out, line)
			printed = true
		}
		if resp.Next > q.Since {
			q.Since = resp.Next
		}
		if !follow {
			if !printed {
				fmt.Fprintln(out, "No log entries available")
			}
			return nil
		}
		q.Tail = false
		q.Limit = 0
		q.Follow = true
		if err := cmd.Context().Err(); err != nil {
			return err
		}
	}
}
