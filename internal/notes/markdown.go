package notes

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"lecturenote/internal/tasks"
	"lecturenote/internal/textutil"
)

type frontMatter struct {
	Title       string `yaml:"title"`
	TaskID      string `yaml:"task_id"`
	GeneratedAt string `yaml:"generated_at"`
	Model       string `yaml:"model,omitempty"`
	Slides      int    `yaml:"slides"`
	Escalated   []int  `yaml:"help_requested,omitempty"`
}

// RenderMarkdown assembles the note document: YAML front matter, the title,
// the generation date, then one section per slide separated by rules.
func RenderMarkdown(taskID string, note tasks.NoteResult) (string, error) {
	fm := frontMatter{
		Title:       note.Title,
		TaskID:      taskID,
		GeneratedAt: note.GeneratedAt.UTC().Format(time.RFC3339),
		Model:       note.Model,
		Slides:      len(note.Slides),
	}
	for _, slide := range note.Slides {
		if slide.Escalated {
			fm.Escalated = append(fm.Escalated, slide.SlideNumber)
		}
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("render front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n\n", note.Title)
	fmt.Fprintf(&b, "_Generated: %s_\n\n---\n\n", note.GeneratedAt.Format("2006-01-02 15:04"))
	for _, slide := range note.Slides {
		fmt.Fprintf(&b, "## Slide %d (%s)\n\n", slide.SlideNumber, textutil.FormatTimestamp(slide.StartSec))
		b.WriteString(strings.TrimSpace(slide.Summary))
		b.WriteString("\n\n")
		if explanation := strings.TrimSpace(slide.Explanation); explanation != "" {
			b.WriteString(explanation)
			b.WriteString("\n\n")
		}
		b.WriteString("---\n\n")
	}
	return b.String(), nil
}

// StripFrontMatter returns the markdown body without a leading YAML block.
func StripFrontMatter(markdown string) string {
	if !strings.HasPrefix(markdown, "---\n") {
		return markdown
	}
	rest := markdown[4:]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return markdown
	}
	return strings.TrimLeft(rest[end+5:], "\n")
}
