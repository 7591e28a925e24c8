package vision

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"lecturenote/internal/services"
	"lecturenote/internal/services/llm"
	"lecturenote/internal/textutil"
)

// Extraction is the text read off one slide image.
type Extraction struct {
	Markdown string   `json:"markdown"`
	LaTeX    []string `json:"latex,omitempty"`
}

// TextExtractor reads the content of a slide image.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte) (Extraction, error)
}

// SlideSystemPrompt instructs the vision model how to transcribe a slide.
const SlideSystemPrompt = `You are an expert at reading lecture slides, especially mathematics.
Extract the text and formulas from the image accurately and convert them to markdown.

Rules:
1. Mark titles with # or ##.
2. Write every formula in LaTeX (inline: $...$, block: $$...$$).
3. Use - or numbers for lists.
4. Convert tables to markdown tables.
5. Mark important content in **bold**.

Output only the markdown for the slide.`

// SlideUserPrompt accompanies each slide image.
const SlideUserPrompt = "Convert the content of this slide to markdown. Write formulas in LaTeX."

// LLMExtractor transcribes slides with a vision-capable model.
type LLMExtractor struct {
	completer llm.Completer
}

// NewLLMExtractor wraps a vision model.
func NewLLMExtractor(completer llm.Completer) *LLMExtractor {
	return &LLMExtractor{completer: completer}
}

// ExtractText sends the image to the model and cleans the response.
func (e *LLMExtractor) ExtractText(ctx context.Context, image []byte) (Extraction, error) {
	if len(image) == 0 {
		return Extraction{}, errors.New("extract slide text: empty image")
	}
	content, err := e.completer.Complete(ctx, llm.Request{
		System:    SlideSystemPrompt,
		Prompt:    SlideUserPrompt,
		Image:     image,
		ImageMIME: "image/jpeg",
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Extraction{}, ctxErr
		}
		return Extraction{}, services.Wrap(services.ErrExternalTool, "vision", "extract slide text", e.completer.Model(), err)
	}
	markdown := textutil.CleanHallucinations(llm.StripCodeFence(content))
	return Extraction{Markdown: markdown, LaTeX: ExtractLaTeX(markdown)}, nil
}

var (
	blockMathPattern  = regexp.MustCompile(`(?s)\$\$(.*?)\$\$`)
	inlineMathPattern = regexp.MustCompile(`\$([^$\n]+)\$`)
)

// ExtractLaTeX returns the bodies of $$...$$ blocks followed by the bodies of
// inline $...$ expressions, each in document order.
func ExtractLaTeX(markdown string) []string {
	var out []string
	for _, match := range blockMathPattern.FindAllStringSubmatch(markdown, -1) {
		if expr := strings.TrimSpace(match[1]); expr != "" {
			out = append(out, expr)
		}
	}
	remainder := blockMathPattern.ReplaceAllString(markdown, " ")
	for _, match := range inlineMathPattern.FindAllStringSubmatch(remainder, -1) {
		if expr := strings.TrimSpace(match[1]); expr != "" {
			out = append(out, expr)
		}
	}
	return out
}

// StaticExtractor returns fixed text for every slide. It backs dry runs and
// tests where no vision model is configured.
type StaticExtractor struct {
	Markdown string
}

// ExtractText implements TextExtractor.
func (s StaticExtractor) ExtractText(ctx context.Context, image []byte) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}
	if len(image) == 0 {
		return Extraction{}, fmt.Errorf("extract slide text: empty image")
	}
	return Extraction{Markdown: s.Markdown, LaTeX: ExtractLaTeX(s.Markdown)}, nil
}
