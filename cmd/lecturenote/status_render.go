package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"

	"lecturenote/internal/api"
	"lecturenote/internal/deps"
	"lecturenote/internal/preflight"
	"lecturenote/internal/tasks"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 22
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// dependencyLines renders binary checks. Missing required binaries are errors,
// missing optional ones warnings.
func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+2)
	var missingRequired, missingOptional []string
	for _, dep := range statuses {
		if dep.Available {
			continue
		}
		if dep.Optional {
			missingOptional = append(missingOptional, dep.Name)
		} else {
			missingRequired = append(missingRequired, dep.Name)
		}
	}
	switch {
	case len(missingRequired) > 0:
		lines = append(lines, renderStatusLine("Summary", statusError, fmt.Sprintf("%d required missing", len(missingRequired)), colorize))
	case len(missingOptional) > 0:
		lines = append(lines, renderStatusLine("Summary", statusWarn, fmt.Sprintf("%d optional missing", len(missingOptional)), colorize))
	default:
		lines = append(lines, renderStatusLine("Summary", statusOK, "All dependencies available", colorize))
	}

	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
	}
	if missing := append(missingRequired, missingOptional...); len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func preflightLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, result := range results {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	return lines
}

func workflowLines(status api.WorkflowStatus, colorize bool) []string {
	lines := []string{}
	if status.Running {
		lines = append(lines, renderStatusLine("Workflow", statusOK, "Running", colorize))
	} else {
		lines = append(lines, renderStatusLine("Workflow", statusWarn, "Stopped", colorize))
	}
	if status.Store != "" {
		lines = append(lines, renderStatusLine("Task store", statusInfo, status.Store, colorize))
	}
	if status.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, status.LastError, colorize))
	}
	if status.LastTask != nil {
		lines = append(lines, renderStatusLine("Last task", statusInfo, fmt.Sprintf("%s (%s)", status.LastTask.Title, status.LastTask.Status), colorize))
	}
	for _, s := range tasks.AllStatuses() {
		count := status.TaskStats[string(s)]
		if count == 0 {
			continue
		}
		kind := statusInfo
		if s == tasks.StatusFailed {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(string(s), kind, fmt.Sprintf("%d", count), colorize))
	}
	stages := append([]api.StageHealth(nil), status.StageHealth...)
	sort.Slice(stages, func(i, j int) bool { return stages[i].Name < stages[j].Name })
	for _, stage := range stages {
		kind := statusOK
		detail := stage.Detail
		if !stage.Ready {
			kind = statusError
		}
		if detail == "" {
			detail = "ready"
		}
		lines = append(lines, renderStatusLine("Stage "+stage.Name, kind, detail, colorize))
	}
	return lines
}
