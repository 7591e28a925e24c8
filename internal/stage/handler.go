package stage

import "context"

// Checker is implemented by workflow collaborators that can report whether
// their external dependencies are usable.
type Checker interface {
	HealthCheck(context.Context) Health
}
