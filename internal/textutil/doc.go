// Package textutil provides the small text helpers shared by the note
// pipeline: cleanup of repetitive model output, timestamp formatting and
// parsing, title casing, and filename sanitization.
package textutil
