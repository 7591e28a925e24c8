// Package main hosts the LectureNote CLI entrypoint and command graph.
//
// "lecturenote serve" runs the daemon in the foreground: it wires the task
// store, object store, analysis phases and HTTP API together. Every other
// task command is a thin client of that API, so the CLI and browser clients
// observe the same task records.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
