// Package session turns a stream of gated observations into at most one
// capture per streak of admissible frames.
package session

import "fmt"

// State is the trigger lifecycle.
type State int

const (
	StateIdle State = iota
	StateAccumulating
	StateCaptured
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateCaptured:
		return "captured"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for _, st := range []State{StateIdle, StateAccumulating, StateCaptured} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown trigger state %q", b)
}

// Trigger counts consecutive admissible frames across one or more stages.
// It is not safe for concurrent use.
type Trigger struct {
	required []int
	stage    int
	count    int
	state    State
}

// NewTrigger returns a trigger with one stage per entry in required. Each
// entry is the streak length that completes its stage; values below 1 are
// treated as 1.
func NewTrigger(required ...int) *Trigger {
	r := make([]int, len(required))
	for i, n := range required {
		r[i] = max(n, 1)
	}
	if len(r) == 0 {
		r = []int{1}
	}
	return &Trigger{required: r}
}

// Observe records one frame. It returns true exactly once, on the frame
// that completes the last stage. An inadmissible frame at any stage drops
// all progress: the trigger returns to Idle at the first stage. Once
// captured, frames are ignored until Reset.
func (t *Trigger) Observe(admissible bool) bool {
	if t.state == StateCaptured {
		return false
	}

	if !admissible {
		t.Reset()
		return false
	}

	t.count++
	t.state = StateAccumulating
	if t.count < t.required[t.stage] {
		return false
	}

	if t.stage < len(t.required)-1 {
		t.stage++
		t.count = 0
		return false
	}

	t.state = StateCaptured
	return true
}

// Retry withdraws a capture that could not be completed. The next
// admissible frame fires again.
func (t *Trigger) Retry() {
	if t.state != StateCaptured {
		return
	}
	t.state = StateAccumulating
	t.count = t.required[t.stage] - 1
}

// Reset returns to Idle at the first stage.
func (t *Trigger) Reset() {
	t.stage = 0
	t.count = 0
	t.state = StateIdle
}

func (t *Trigger) State() State { return t.state }
func (t *Trigger) Stage() int   { return t.stage }
func (t *Trigger) Count() int   { return t.count }

// Required returns the streak length of stage i.
func (t *Trigger) Required(i int) int {
	if i < 0 || i >= len(t.required) {
		return 0
	}
	return t.required[i]
}

// Stages returns the number of stages.
func (t *Trigger) Stages() int { return len(t.required) }
