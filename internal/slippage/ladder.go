// Package slippage implements the tolerance escalation ladder applied
// when a swap is rejected for exceeding its minimum-received threshold.
package slippage

import "fmt"

// Default ladder steps in basis points.
var defaultSteps = []int{50, 100, 150, 200}

// Ladder is a fixed ascending sequence of tolerance steps. Escalation
// walks the ladder upward only; the last step is the ceiling and
// exceeding it is terminal.
type Ladder struct {
	steps []int
}

// NewLadder creates a ladder from ascending bps steps.
func NewLadder(steps []int) (*Ladder, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("ladder requires at least one step")
	}
	for i, s := range steps {
		if s <= 0 {
			return nil, fmt.Errorf("ladder step %d: bps must be positive, got %d", i, s)
		}
		if i > 0 && s <= steps[i-1] {
			return nil, fmt.Errorf("ladder step %d: %d not greater than previous %d", i, s, steps[i-1])
		}
	}
	out := make([]int, len(steps))
	copy(out, steps)
	return &Ladder{steps: out}, nil
}

// DefaultLadder returns the 50/100/150/200 bps ladder.
func DefaultLadder() *Ladder {
	l, _ := NewLadder(defaultSteps)
	return l
}

// First returns the lowest tolerance step.
func (l *Ladder) First() int {
	return l.steps[0]
}

// Ceiling returns the highest tolerance step.
func (l *Ladder) Ceiling() int {
	return l.steps[len(l.steps)-1]
}

// Next returns the smallest step strictly above current. The second
// return is false when current is at or past the ceiling.
func (l *Ladder) Next(current int) (int, bool) {
	for _, s := range l.steps {
		if s > current {
			return s, true
		}
	}
	return 0, false
}

// Contains reports whether bps is one of the ladder's steps.
func (l *Ladder) Contains(bps int) bool {
	for _, s := range l.steps {
		if s == bps {
			return true
		}
	}
	return false
}
