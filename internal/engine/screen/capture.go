package screen

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"sync"
	"time"

	"github.com/ConserveLee/cavebot/internal/logger"
	"github.com/kbinani/screenshot"
	"golang.org/x/time/rate"
)

// Grabber produces one full frame per call
type Grabber interface {
	Grab() (*image.RGBA, error)
}

// ScreenGrabber captures a display (or a fixed region of it) via kbinani/screenshot
type ScreenGrabber struct {
	DisplayIndex int
	Width        int // 0 = full display width
	Height       int // 0 = full display height
}

// Grab returns the current screen image
func (g *ScreenGrabber) Grab() (*image.RGBA, error) {
	bounds := screenshot.GetDisplayBounds(g.DisplayIndex)
	if g.Width > 0 && g.Width < bounds.Dx() {
		bounds.Max.X = bounds.Min.X + g.Width
	}
	if g.Height > 0 && g.Height < bounds.Dy() {
		bounds.Max.Y = bounds.Min.Y + g.Height
	}

	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screen %d: %w", g.DisplayIndex, err)
	}
	// Frames use display-local coordinates
	img.Rect = img.Rect.Sub(img.Rect.Min)
	return img, nil
}

// DisplayCount returns the number of active displays
func DisplayCount() int {
	return screenshot.NumActiveDisplays()
}

// Capturer publishes the most recent frame from a background goroutine
type Capturer struct {
	grabber  Grabber
	interval time.Duration
	log      *logger.AppLogger

	mu    sync.RWMutex
	frame *image.RGBA

	first     chan struct{}
	firstOnce sync.Once

	cancel context.CancelFunc
	done   chan struct{}

	grabErrLog rate.Sometimes
}

// NewCapturer creates a frame source grabbing at fps frames per second
func NewCapturer(g Grabber, fps int, log *logger.AppLogger) *Capturer {
	if fps <= 0 {
		fps = 1
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Capturer{
		grabber:    g,
		interval:   time.Second / time.Duration(fps),
		log:        log.With("Capture"),
		first:      make(chan struct{}),
		grabErrLog: rate.Sometimes{Interval: 5 * time.Second},
	}
}

// Start begins continuous capture. Calling Start twice is a no-op.
func (c *Capturer) Start(ctx context.Context) {
	c.mu.Lock()
	if c.done != nil {
		c.mu.Unlock()
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go c.loop(ctx, done)
}

// Stop halts capture and waits for the goroutine to exit.
// The last frame stays readable.
func (c *Capturer) Stop() {
	c.mu.RLock()
	cancel, done := c.cancel, c.done
	c.mu.RUnlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Capturer) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			start := time.Now()
			c.grab()
			wait := c.interval - time.Since(start)
			if wait < 0 {
				wait = 0
			}
			timer.Reset(wait)
		}
	}
}

func (c *Capturer) grab() {
	img, err := c.grabber.Grab()
	if err != nil {
		c.grabErrLog.Do(func() {
			c.log.Debug("grab failed: %v", err)
		})
		return
	}

	c.mu.Lock()
	c.frame = img
	c.mu.Unlock()

	c.firstOnce.Do(func() { close(c.first) })
}

// Frame returns the latest frame, or nil if none has been captured yet.
// Callers must not modify the returned image.
func (c *Capturer) Frame() *image.RGBA {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame
}

// WaitForFrame blocks until the first frame exists or the timeout elapses
func (c *Capturer) WaitForFrame(ctx context.Context, timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-c.first:
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// Region returns an independent copy of rect from the latest frame, or nil
func (c *Capturer) Region(rect image.Rectangle) *image.RGBA {
	return CopyRegion(c.Frame(), rect)
}

// CopyRegion copies rect out of frame. The copy is rebased to (0,0).
func CopyRegion(frame *image.RGBA, rect image.Rectangle) *image.RGBA {
	if frame == nil {
		return nil
	}
	rect = rect.Intersect(frame.Bounds())
	if rect.Empty() {
		return nil
	}
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), frame, rect.Min, draw.Src)
	return out
}
