// Package language normalizes the language codes that flow between stream
// metadata (ISO 639-2 tags such as "kor"), transcription settings ("ko",
// "korean") and note front matter, using golang.org/x/text/language for the
// actual tag parsing.
package language
