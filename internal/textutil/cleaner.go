package textutil

import (
	"strings"
)

const (
	minRepeatRunes   = 20
	minRepeatCount   = 3
	maxArraysPerLine = 3
	longLineRunes    = 500
	arrayMarker      = `\begin{array}`
)

// CleanHallucinations strips the repetition artifacts language models emit
// when they loop: consecutive identical $$ blocks, a run of 20+ characters
// repeated three or more times within a line, consecutive duplicate lines,
// and lines stuffed with array environments.
func CleanHallucinations(text string) string {
	if text == "" {
		return text
	}
	text = dedupeMathBlocks(text)

	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	prev := ""
	for _, line := range lines {
		line = collapseRepeats(line)
		stripped := strings.TrimSpace(line)
		if stripped != "" && stripped == prev {
			continue
		}
		if strings.Count(line, arrayMarker) > maxArraysPerLine {
			continue
		}
		if len([]rune(line)) > longLineRunes && strings.Contains(line, arrayMarker) {
			continue
		}
		cleaned = append(cleaned, line)
		if stripped != "" {
			prev = stripped
		}
	}
	return strings.Join(cleaned, "\n")
}

// dedupeMathBlocks drops a $$...$$ block identical to the previous one when
// only whitespace separates them.
func dedupeMathBlocks(text string) string {
	var out strings.Builder
	prevBlock := ""
	rest := text
	for {
		start := strings.Index(rest, "$$")
		if start < 0 {
			break
		}
		end := strings.Index(rest[start+2:], "$$")
		if end < 0 {
			break
		}
		block := rest[start : start+2+end+2]
		if strings.Contains(block[2:len(block)-2], "$") || len(block) == 4 {
			out.WriteString(rest[:start+2])
			rest = rest[start+2:]
			prevBlock = ""
			continue
		}
		between := rest[:start]
		if strings.TrimSpace(between) != "" {
			prevBlock = ""
		}
		out.WriteString(between)
		if block != prevBlock {
			out.WriteString(block)
			prevBlock = block
		}
		rest = rest[start+len(block):]
	}
	out.WriteString(rest)
	return out.String()
}

// collapseRepeats scans left to right; at each position the shortest unit of
// at least minRepeatRunes runes that repeats minRepeatCount or more times back
// to back is reduced to a single copy.
func collapseRepeats(line string) string {
	runes := []rune(line)
	if len(runes) < minRepeatRunes*minRepeatCount {
		return line
	}
	out := make([]rune, 0, len(runes))
	i := 0
	for i < len(runes) {
		unit, count := repeatAt(runes, i)
		if count >= minRepeatCount {
			out = append(out, runes[i:i+unit]...)
			i += unit * count
			continue
		}
		out = append(out, runes[i])
		i++
	}
	return string(out)
}

func repeatAt(runes []rune, start int) (int, int) {
	remaining := len(runes) - start
	for unit := minRepeatRunes; unit*minRepeatCount <= remaining; unit++ {
		count := 1
		for start+(count+1)*unit <= len(runes) && equalRunes(runes[start:start+unit], runes[start+count*unit:start+(count+1)*unit]) {
			count++
		}
		if count >= minRepeatCount {
			return unit, count
		}
	}
	return 0, 0
}

func equalRunes(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
