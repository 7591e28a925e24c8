// Package daemon coordinates the long-running lecturenote process.
//
// It wires configuration, the task store, the workflow manager, the inbox
// watcher and the HTTP API into a single lifecycle with flock-based locking so
// only one writer touches the store. The HTTP server (fiber) exposes upload,
// processing, note and signed-object routes plus a websocket progress stream
// fed by the events hub.
//
// Keep orchestration logic here: pipeline phases live in their own packages
// while the daemon focuses on startup, shutdown, and request plumbing.
package daemon
