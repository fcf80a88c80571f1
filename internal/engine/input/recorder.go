package input

import (
	"fmt"
	"sync"
)

// Action is one recorded input event
type Action struct {
	Kind     string // click, right_click, modifier_click, key_tap, key_down, key_up
	Modifier string
	Button   string
	Key      string
	X, Y     int
}

func (a Action) String() string {
	switch a.Kind {
	case "click", "right_click":
		return fmt.Sprintf("%s(%d,%d)", a.Kind, a.X, a.Y)
	case "modifier_click":
		return fmt.Sprintf("%s+%s(%d,%d)", a.Modifier, a.Button, a.X, a.Y)
	default:
		return fmt.Sprintf("%s(%s)", a.Kind, a.Key)
	}
}

// Recorder is a Device that records actions instead of performing them.
// Used by tests and by dry runs.
type Recorder struct {
	mu      sync.Mutex
	actions []Action
}

// Actions returns a copy of everything recorded so far
func (r *Recorder) Actions() []Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Action(nil), r.actions...)
}

// Count returns how many recorded actions match the predicate
func (r *Recorder) Count(match func(Action) bool) int {
	n := 0
	for _, a := range r.Actions() {
		if match(a) {
			n++
		}
	}
	return n
}

// Reset clears the log
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = nil
}

func (r *Recorder) record(a Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, a)
}

// Click implements Device
func (r *Recorder) Click(x, y int) { r.record(Action{Kind: "click", Button: Left, X: x, Y: y}) }

// RightClick implements Device
func (r *Recorder) RightClick(x, y int) { r.record(Action{Kind: "right_click", Button: Right, X: x, Y: y}) }

// ModifierClick implements Device
func (r *Recorder) ModifierClick(modifier, button string, x, y int) {
	r.record(Action{Kind: "modifier_click", Modifier: modifier, Button: button, X: x, Y: y})
}

// KeyTap implements Device
func (r *Recorder) KeyTap(key string) { r.record(Action{Kind: "key_tap", Key: key}) }

// KeyDown implements Device
func (r *Recorder) KeyDown(key string) { r.record(Action{Kind: "key_down", Key: key}) }

// KeyUp implements Device
func (r *Recorder) KeyUp(key string) { r.record(Action{Kind: "key_up", Key: key}) }
