// Package notifications pushes task milestones to ntfy.
//
// The notifier is attached to the task store as an observer and only reacts
// to transitions into completed or failed, so regenerations and retries each
// produce one message. With no topic configured NewService returns a no-op.
package notifications
