// Package config loads, normalizes, and validates LectureNote configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for provider
// credentials such as NVIDIA_API_KEY, OPENAI_API_KEY, and GOOGLE_API_KEY. The
// Config type centralizes every knob the daemon and CLI need: storage layout,
// slide detection thresholds, alignment padding, LLM and WhisperX settings, and
// the optional integrations (Redis events, Google Drive export, inbox watcher).
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
