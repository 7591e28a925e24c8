// Package services defines shared utilities consumed by the workflow phases
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, phase names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that let callers tell a
//     provider failure apart from a state-contract violation or an unknown
//     task.
//
// Provider adapters (LLM clients, WhisperX, yt-dlp, Google Drive) live in
// sub-packages and report failures through these markers so the workflow
// manager and HTTP layer classify them the same way.
package services
