// Package whisperx runs WhisperX through uvx to transcribe a lecture's audio
// track into timestamped segments.
//
// The service extracts a mono 16 kHz WAV with ffmpeg, invokes WhisperX with
// JSON output, and parses the segments and detected language. Model, device
// and VAD method come from Config. Tests replace the command runner.
package whisperx
