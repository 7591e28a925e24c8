package boundary

// PeakState is the direction of the edge-count signal inside a stable slide.
type PeakState int

const (
	StateNoReference PeakState = iota
	StateStable
	StateRising
	StateFalling
)

func (s PeakState) String() string {
	switch s {
	case StateStable:
		return "stable"
	case StateRising:
		return "rising"
	case StateFalling:
		return "falling"
	default:
		return "no_reference"
	}
}

const (
	noiseFloorRatio  = 0.05
	noiseFloorPixels = 100
)

// NoiseFloor returns the smallest edge-count change treated as significant
// relative to the given level: max(5% of level, 100 pixels).
func NoiseFloor(level int) int {
	return max(int(float64(level)*noiseFloorRatio), noiseFloorPixels)
}

// PeakTracker follows the edge-count direction of one interval. The tracked
// level only moves on significant changes, so slow accumulation below the
// noise floor still registers once it crosses it.
type PeakTracker struct {
	state PeakState
	level int
}

// State reports the current direction.
func (t *PeakTracker) State() PeakState {
	return t.state
}

// Level reports the last significant edge count.
func (t *PeakTracker) Level() int {
	return t.level
}

// Reset anchors the tracker on a new reference frame.
func (t *PeakTracker) Reset(count int) {
	t.state = StateStable
	t.level = count
}

// Observe feeds the next frame's edge count and reports whether the previous
// frame was a local peak (a significant drop right after a rise).
func (t *PeakTracker) Observe(count int) bool {
	if t.state == StateNoReference {
		t.Reset(count)
		return false
	}
	delta := count - t.level
	floor := NoiseFloor(t.level)
	switch {
	case delta > floor:
		t.state = StateRising
		t.level = count
		return false
	case delta < -floor:
		peak := t.state == StateRising
		t.state = StateFalling
		t.level = count
		return peak
	default:
		return false
	}
}
