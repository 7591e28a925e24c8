package stage

// Health is one collaborator's readiness as shown by `lecturenote status`
// and the /health endpoint.
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// String renders "name: ready" or "name: detail".
func (h Health) String() string {
	if h.Ready {
		return h.Name + ": ready"
	}
	if h.Detail == "" {
		return h.Name + ": unavailable"
	}
	return h.Name + ": " + h.Detail
}
