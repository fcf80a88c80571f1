package engine

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ConserveLee/cavebot/internal/config"
	"github.com/ConserveLee/cavebot/internal/engine/input"
	"github.com/ConserveLee/cavebot/internal/engine/screen"
	"github.com/ConserveLee/cavebot/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blankGrabber struct {
	fail  bool
	grabs atomic.Int32
}

func (g *blankGrabber) Grab() (*image.RGBA, error) {
	g.grabs.Add(1)
	if g.fail {
		return nil, errors.New("capture denied")
	}
	return image.NewRGBA(image.Rect(0, 0, 64, 64)), nil
}

type closingReader struct {
	closed atomic.Bool
}

func (r *closingReader) Check() error {
	return screen.ErrCapabilityUnavailable
}

func (r *closingReader) Read(image.Image) (screen.Coordinates, error) {
	return screen.Coordinates{}, screen.ErrNoCoordinates
}

func (r *closingReader) Close() error {
	r.closed.Store(true)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Runtime.AssetsDir = t.TempDir()
	cfg.Navigation.Strategy = config.StrategyCoordinates
	return cfg
}

func TestBotStartStop(t *testing.T) {
	rec := &input.Recorder{}
	reader := &closingReader{}
	bot := NewBot(testConfig(t), logger.Discard(), Options{
		Grabber:     &blankGrabber{},
		Device:      rec,
		CoordReader: reader,
	})
	assert.Equal(t, StatusStopped, bot.Status())
	assert.False(t, bot.Snapshot().Running)

	require.NoError(t, bot.Start(context.Background()))
	assert.Equal(t, StatusRunning, bot.Status())
	assert.NotEmpty(t, bot.RunID())
	assert.True(t, bot.Snapshot().Running)
	assert.ErrorIs(t, bot.Start(context.Background()), ErrAlreadyRunning)

	done := make(chan struct{})
	go func() {
		bot.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	assert.Equal(t, StatusStopped, bot.Status())
	assert.False(t, bot.Snapshot().Running)
	assert.True(t, reader.closed.Load())
	// Anchors are missing so nothing may have been pressed
	assert.Empty(t, rec.Actions())

	bot.Stop()
}

func TestBotRestartGetsNewRun(t *testing.T) {
	bot := NewBot(testConfig(t), nil, Options{
		Grabber:     &blankGrabber{},
		Device:      &input.Recorder{},
		CoordReader: &closingReader{},
	})

	require.NoError(t, bot.Start(context.Background()))
	first := bot.RunID()
	bot.Stop()

	require.NoError(t, bot.Start(context.Background()))
	defer bot.Stop()
	assert.NotEqual(t, first, bot.RunID())
}

func TestBotNoFrame(t *testing.T) {
	g := &blankGrabber{fail: true}
	bot := NewBot(testConfig(t), nil, Options{
		Grabber:        g,
		Device:         &input.Recorder{},
		StartupTimeout: 100 * time.Millisecond,
	})

	err := bot.Start(context.Background())
	assert.ErrorIs(t, err, ErrNoFrame)
	assert.Equal(t, StatusStopped, bot.Status())
	assert.Positive(t, g.grabs.Load())

	// Capture is stopped once Start gives up
	n := g.grabs.Load()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, n, g.grabs.Load())
}

func TestBotOutlivesStartContext(t *testing.T) {
	g := &blankGrabber{}
	bot := NewBot(testConfig(t), nil, Options{
		Grabber:     g,
		Device:      &input.Recorder{},
		CoordReader: &closingReader{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bot.Start(ctx))
	cancel()

	// Cancelling the caller's context must not tear anything down behind Stop
	n := g.grabs.Load()
	time.Sleep(200 * time.Millisecond)
	assert.Greater(t, g.grabs.Load(), n, "capture keeps running")
	assert.Equal(t, StatusRunning, bot.Status())
	assert.True(t, bot.Snapshot().Running)

	bot.Stop()
	assert.False(t, bot.Snapshot().Running)
	n = g.grabs.Load()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, n, g.grabs.Load(), "capture stopped by Stop")
}

func TestBotStartAbortedWhileWaitingForFrame(t *testing.T) {
	bot := NewBot(testConfig(t), nil, Options{
		Grabber:        &blankGrabber{fail: true},
		Device:         &input.Recorder{},
		StartupTimeout: time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	assert.ErrorIs(t, bot.Start(ctx), ErrNoFrame)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, StatusStopped, bot.Status())
}
