// Package events fans task state changes out to live subscribers.
//
// Every persisted task mutation becomes an Event. The in-process Hub feeds
// websocket clients; when configured, a Redis publisher mirrors each event to
// a pub/sub channel and keeps the latest snapshot per task under a key with a
// TTL so other processes can poll it. Publishing never blocks the task store:
// Redis delivery runs on its own goroutine behind a bounded queue and drops
// (with a warning) when the queue is full.
package events
