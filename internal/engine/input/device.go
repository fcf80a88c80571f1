package input

import (
	"time"

	"github.com/go-vgo/robotgo"
)

// Key names understood by robotgo
const (
	KeyEscape = "esc"
	KeyShift  = "shift"
	KeyCtrl   = "ctrl"
)

// Mouse buttons
const (
	Left  = "left"
	Right = "right"
)

// Device issues synthetic mouse and keyboard input.
// Coordinates are relative to the captured display.
type Device interface {
	Click(x, y int)
	RightClick(x, y int)
	ModifierClick(modifier, button string, x, y int)
	KeyTap(key string)
	KeyDown(key string)
	KeyUp(key string)
}

// Robot drives the real mouse and keyboard
type Robot struct {
	DisplayID int
	// settle delay between moving and clicking
	MoveDelay time.Duration
}

// NewRobot creates a device targeting a display
func NewRobot(displayID int) *Robot {
	return &Robot{DisplayID: displayID, MoveDelay: 20 * time.Millisecond}
}

// toGlobal adds the display offset to display-local coordinates
func (r *Robot) toGlobal(x, y int) (int, int) {
	ox, oy, _, _ := robotgo.GetDisplayBounds(r.DisplayID)
	return ox + x, oy + y
}

func (r *Robot) moveTo(x, y int) {
	gx, gy := r.toGlobal(x, y)
	robotgo.MoveMouse(gx, gy)
	if r.MoveDelay > 0 {
		time.Sleep(r.MoveDelay)
	}
}

// Click implements Device
func (r *Robot) Click(x, y int) {
	r.moveTo(x, y)
	robotgo.Click(Left)
}

// RightClick implements Device
func (r *Robot) RightClick(x, y int) {
	r.moveTo(x, y)
	robotgo.Click(Right)
}

// ModifierClick holds a modifier key while clicking
func (r *Robot) ModifierClick(modifier, button string, x, y int) {
	r.moveTo(x, y)
	robotgo.KeyToggle(modifier, "down")
	robotgo.Click(button)
	robotgo.KeyToggle(modifier, "up")
}

// KeyTap implements Device
func (r *Robot) KeyTap(key string) {
	robotgo.KeyTap(key)
}

// KeyDown implements Device
func (r *Robot) KeyDown(key string) {
	robotgo.KeyToggle(key, "down")
}

// KeyUp implements Device
func (r *Robot) KeyUp(key string) {
	robotgo.KeyToggle(key, "up")
}
