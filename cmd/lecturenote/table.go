package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"lecturenote/internal/api"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func renderTaskTable(list []api.TaskStatusResponse) string {
	rows := make([][]string, 0, len(list))
	for _, task := range list {
		rows = append(rows, []string{
			task.TaskID,
			truncate(task.Title, 40),
			task.Status,
			formatProgress(task.Progress),
			task.UpdatedAt,
		})
	}
	return renderTable(
		[]string{"ID", "Title", "Status", "Vision/Audio/Notes", "Updated"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func renderSlideTable(slides []api.SlideDetail) string {
	rows := make([][]string, 0, len(slides))
	for _, slide := range slides {
		help := ""
		if slide.SOSExplanation != nil {
			help = "yes"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", slide.SlideNumber),
			formatTimestamp(slide.TimestampStart) + "-" + formatTimestamp(slide.TimestampEnd),
			truncate(firstLine(slide.AudioSummary), 60),
			help,
		})
	}
	return renderTable(
		[]string{"#", "Time", "Summary", "Help"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	)
}

func formatProgress(p api.Progress) string {
	return fmt.Sprintf("%3.0f%% %3.0f%% %3.0f%%", p.Vision*100, p.Audio*100, p.Synthesis*100)
}

func formatTimestamp(seconds float64) string {
	total := int(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func firstLine(value string) string {
	value = strings.TrimSpace(value)
	if idx := strings.IndexByte(value, '\n'); idx >= 0 {
		return value[:idx]
	}
	return value
}
