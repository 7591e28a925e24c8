// Package tasks defines the lecture task record and its lifecycle.
//
// A Task carries a tagged State: each lifecycle status has its own struct
// holding exactly the fields valid for it, so a task cannot be ready for
// synthesis without an analysis checkpoint or completed without a note.
// Transition enforces the allowed status graph; stores persist the record
// through the JSON envelope in codec.go.
//
// When you add a status, update the transition table, the codec switch, and
// the sqlite status index in taskstore together.
package tasks
