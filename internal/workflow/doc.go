// Package workflow drives lecture tasks through their lifecycle.
//
// The Manager owns every state change after a task is created: it stores
// incoming videos, runs the vision and audio phases concurrently (joined with
// errgroup so either failure cancels the other), persists the analysis
// checkpoint, and then aligns and synthesizes the note. Entry into each
// working state is a compare-and-swap through taskstore.Store.Update, so two
// requests racing for the same task cannot both start work: the loser gets an
// error wrapping services.ErrInvalidState.
//
// Synthesis consumes only the persisted checkpoint. When it fails the task is
// marked failed with the checkpoint kept on the failed state, so Synthesize or
// Regenerate can resume without repeating analysis. Start recovers tasks a
// previous process left mid-flight.
//
// New phases plug in through StageSet; this package is the authoritative home
// for how they are sequenced.
package workflow
