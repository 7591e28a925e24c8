package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// words maps the English names users tend to type into configuration.
var words = map[string]string{
	"english":    "en",
	"korean":     "ko",
	"japanese":   "ja",
	"chinese":    "zh",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
}

func parse(code string) (language.Base, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" || code == "und" || code == "auto" {
		return language.Base{}, false
	}
	if mapped, ok := words[code]; ok {
		code = mapped
	}
	tag, err := language.Parse(code)
	if err != nil {
		return language.Base{}, false
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return language.Base{}, false
	}
	return base, true
}

// ToISO2 converts a language code or English name to its two-letter form.
// Unrecognized input returns "".
func ToISO2(code string) string {
	base, ok := parse(code)
	if !ok {
		return ""
	}
	return base.String()
}

// ToISO3 converts a language code to ISO 639-2, returning "und" when unknown.
func ToISO3(code string) string {
	base, ok := parse(code)
	if !ok {
		return "und"
	}
	return base.ISO3()
}

// DisplayName returns the English name of a language code, "Unknown" for
// empty input, or the uppercased code when unrecognized.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	base, ok := parse(trimmed)
	if !ok {
		return strings.ToUpper(trimmed)
	}
	if name := display.English.Languages().Name(base); name != "" {
		return name
	}
	return strings.ToUpper(trimmed)
}

// Same reports whether two codes name the same language.
func Same(a, b string) bool {
	ba, okA := parse(a)
	bb, okB := parse(b)
	return okA && okB && ba == bb
}
