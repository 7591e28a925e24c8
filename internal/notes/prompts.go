package notes

import (
	"fmt"
	"strings"

	"lecturenote/internal/align"
)

// SummarySystemPrompt frames the per-slide summary.
const SummarySystemPrompt = `You are a graduate teaching assistant.
Combine the slide content (OCR) and the lecturer's words (STT) into a complete summary note.

Rules:
1. Keep the slide's structure (title, body, formulas).
2. Fold the important parts of the lecturer's explanation into the body.
3. Keep formulas in LaTeX ($...$ or $$...$$).
4. Add content the lecturer said that is not on the slide as a > blockquote.
5. Be concise and include only the essentials.

Output format: markdown`

// ExplanationSystemPrompt frames the deep explanation for flagged slides.
const ExplanationSystemPrompt = `You are a kind private tutor.
Give a detailed explanation of the part the student found hard to understand.

Rules:
1. Explain difficult concepts with simple examples.
2. If there are formulas, explain what each part means.
3. Show the logical flow step by step.
4. Mention why the concept matters when it helps.
5. Guide the student toward understanding it on their own.

Output format:
💡 **Deep dive**
[detailed explanation]`

// SummaryPrompt builds the user prompt for a segment's summary.
func SummaryPrompt(seg align.Segment) string {
	return fmt.Sprintf("## Slide %d content (OCR)\n\n%s\n\n## Lecturer explanation (STT)\n\n%s\n\n---\n\nWrite a summary note based on the content above.",
		seg.SlideNumber, orNone(seg.SlideContent), orNone(seg.SpokenText))
}

// ExplanationPrompt builds the user prompt for a flagged segment.
func ExplanationPrompt(seg align.Segment) string {
	return fmt.Sprintf("The student is struggling with the content below.\n\n## Slide content\n\n%s\n\n## Lecturer explanation\n\n%s\n\n---\n\nExplain this part in detail.",
		orNone(seg.SlideContent), orNone(seg.SpokenText))
}

func orNone(text string) string {
	if strings.TrimSpace(text) == "" {
		return "(none)"
	}
	return strings.TrimSpace(text)
}
