// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe once per video; the Result helpers answer the
// questions the pipeline asks of a lecture recording: how long it is, whether
// it has a picture worth sampling, and which audio streams can be
// transcribed.
package ffprobe
