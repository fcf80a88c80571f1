package modules

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ConserveLee/cavebot/internal/engine/input"
	"github.com/ConserveLee/cavebot/internal/engine/screen"
	"github.com/ConserveLee/cavebot/internal/engine/state"
	"github.com/ConserveLee/cavebot/internal/logger"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// frameSeq returns queued frames in order, then repeats the last one
type frameSeq struct {
	mu     sync.Mutex
	frames []*image.RGBA
	calls  int
}

func (f *frameSeq) Frame() *image.RGBA {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.frames) == 0 {
		return nil
	}
	fr := f.frames[0]
	if len(f.frames) > 1 {
		f.frames = f.frames[1:]
	}
	return fr
}

func (f *frameSeq) set(frames ...*image.RGBA) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = frames
}

// sleepLog records requested sleeps without waiting
type sleepLog struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepLog) Sleep(ctx context.Context, d time.Duration) bool {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err() == nil
}

type testEnv struct {
	clock  *fakeClock
	frames *frameSeq
	rec    *input.Recorder
	sleeps *sleepLog
	deps   *Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := newFakeClock()
	env := &testEnv{
		clock:  clock,
		frames: &frameSeq{},
		rec:    &input.Recorder{},
		sleeps: &sleepLog{},
	}
	env.deps = &Deps{
		Frames:    env.frames,
		State:     state.New(state.WithClock(clock.Now)),
		Device:    env.rec,
		Gate:      input.NewGate(),
		Searcher:  screen.NewSearcher(),
		Log:       logger.Discard(),
		AssetsDir: t.TempDir(),
		Now:       clock.Now,
		Sleep:     env.sleeps.Sleep,
	}
	return env
}

func blankFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

// itemIcon is a small distinctive template
func itemIcon() *image.RGBA {
	icon := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			icon.SetRGBA(x, y, color.RGBA{R: uint8(x * 25), G: uint8(y * 25), B: 200, A: 255})
		}
	}
	return icon
}

func paste(dst *image.RGBA, src image.Image, at image.Point) {
	b := src.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(at.X+x, at.Y+y, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func countKind(rec *input.Recorder, kind, modifier string) int {
	return rec.Count(func(a input.Action) bool {
		return a.Kind == kind && a.Modifier == modifier
	})
}
