// Package modules contains the independently scheduled bot behaviors.
// Modules never call each other; they coordinate through state.GameState
// and serialize input through input.Gate.
package modules

import (
	"context"
	"image"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/ConserveLee/cavebot/internal/constants"
	"github.com/ConserveLee/cavebot/internal/engine/input"
	"github.com/ConserveLee/cavebot/internal/engine/screen"
	"github.com/ConserveLee/cavebot/internal/engine/state"
	"github.com/ConserveLee/cavebot/internal/logger"
)

// Module is one behavior loop
type Module interface {
	Name() string
	Run(ctx context.Context) error
}

// FrameSource is the read side of the screen capturer
type FrameSource interface {
	Frame() *image.RGBA
}

// Deps are the collaborators shared by every module
type Deps struct {
	Frames    FrameSource
	State     *state.GameState
	Device    input.Device
	Gate      *input.Gate
	Searcher  *screen.Searcher
	Log       *logger.AppLogger
	AssetsDir string

	// Replaceable in tests
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) bool
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// sleep waits d or until ctx is done. It returns false when cancelled.
func (d *Deps) sleep(ctx context.Context, dur time.Duration) bool {
	if d.Sleep != nil {
		return d.Sleep(ctx, dur)
	}
	return sleepCtx(ctx, dur)
}

func (d *Deps) logger(name string) *logger.AppLogger {
	if d.Log == nil {
		return logger.Discard().With(name)
	}
	return d.Log.With(name)
}

func (d *Deps) asset(name string) string {
	return filepath.Join(d.AssetsDir, name)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// tickFunc performs one iteration and returns the wait before the next one
type tickFunc func(ctx context.Context) time.Duration

// runLoop drives tick until ctx is cancelled or the state stops running.
// A panicking tick is logged and the loop carries on.
func runLoop(ctx context.Context, d *Deps, log *logger.AppLogger, tick tickFunc) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if ctx.Err() != nil || !d.State.Running() {
				return
			}
			next := safeTick(ctx, log, tick)
			timer.Reset(next)
		}
	}
}

func safeTick(ctx context.Context, log *logger.AppLogger, tick tickFunc) (next time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("tick panicked: %v", r)
			log.Debug("%s", debug.Stack())
			next = constants.AnchorRetryInterval
		}
	}()
	return tick(ctx)
}

// anchor is a UI template located once per run
type anchor struct {
	path          string
	img           image.Image
	pos           image.Point // top-left of the match
	found         bool
	missingLogged bool
}

// locate loads the template on first use and searches the frame for it
func (a *anchor) locate(d *Deps, log *logger.AppLogger, frame image.Image) bool {
	if a.found {
		return true
	}
	if a.img == nil {
		img, err := d.Searcher.LoadImage(a.path)
		if err != nil {
			if !a.missingLogged {
				log.Error("%s is missing: %v", a.path, err)
				a.missingLogged = true
			}
			return false
		}
		a.img = img
	}
	if frame == nil {
		return false
	}
	x, y, ok := d.Searcher.FindTemplate(frame, a.img, constants.DefaultTolerance)
	if !ok {
		return false
	}
	a.pos = image.Pt(x, y)
	a.found = true
	return true
}

// center returns the middle of the matched template
func (a *anchor) center() image.Point {
	if a.img == nil {
		return a.pos
	}
	b := a.img.Bounds()
	return a.pos.Add(image.Pt(b.Dx()/2, b.Dy()/2))
}

// waitForAnchors retries at 1 Hz until every anchor is found or ctx is done
func waitForAnchors(ctx context.Context, d *Deps, log *logger.AppLogger, anchors ...*anchor) bool {
	for {
		frame := d.Frames.Frame()
		all := true
		for _, a := range anchors {
			var img image.Image
			if frame != nil {
				img = frame
			}
			if !a.locate(d, log, img) {
				all = false
			}
		}
		if all {
			return true
		}
		if !d.State.Running() || !d.sleep(ctx, constants.AnchorRetryInterval) {
			return false
		}
	}
}
