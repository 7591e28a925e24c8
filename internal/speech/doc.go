// Package speech runs the audio half of lecture analysis: pick the audio
// stream, isolate it to a WAV file, and transcribe it into timestamped
// spans.
//
// A video without audio, or a deployment without a transcription provider,
// yields an empty transcript rather than an error so the note can still be
// built from the slides alone.
package speech
