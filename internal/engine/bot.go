package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/ConserveLee/cavebot/internal/config"
	"github.com/ConserveLee/cavebot/internal/constants"
	"github.com/ConserveLee/cavebot/internal/engine/input"
	"github.com/ConserveLee/cavebot/internal/engine/modules"
	"github.com/ConserveLee/cavebot/internal/engine/screen"
	"github.com/ConserveLee/cavebot/internal/engine/screen/odometry"
	"github.com/ConserveLee/cavebot/internal/engine/state"
	"github.com/ConserveLee/cavebot/internal/logger"
	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"
	"golang.org/x/sync/errgroup"
)

// BotStatus represents the current state of the bot
type BotStatus int

const (
	StatusStopped BotStatus = iota
	StatusRunning
)

func (s BotStatus) String() string {
	if s == StatusRunning {
		return "running"
	}
	return "stopped"
}

var (
	// ErrNoFrame means capture produced nothing within the startup window
	ErrNoFrame = errors.New("no frame captured - check screen capture permissions and display index")
	// ErrAlreadyRunning is returned by Start on a running bot
	ErrAlreadyRunning = errors.New("bot already running")
)

// Options replaces the real screen, input and perception backends.
// Zero values select the production implementations.
type Options struct {
	Grabber        screen.Grabber
	Device         input.Device
	CoordReader    screen.CoordReader
	Matcher        odometry.Matcher
	StartupTimeout time.Duration
}

// Bot owns one run: the capturer, the shared state and the module goroutines
type Bot struct {
	cfg  *config.Config
	log  *logger.AppLogger
	opts Options

	mu       deadlock.Mutex
	status   BotStatus
	runID    string
	capturer *screen.Capturer
	cancel   context.CancelFunc
	done     chan struct{}
	closers  []io.Closer

	// readable without mu while Stop is waiting for modules
	state atomic.Pointer[state.GameState]
}

// NewBot creates a stopped bot
func NewBot(cfg *config.Config, log *logger.AppLogger, opts Options) *Bot {
	if log == nil {
		log = logger.Discard()
	}
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = constants.CaptureStartupTimeout
	}
	return &Bot{cfg: cfg, log: log, opts: opts}
}

// Status returns whether a run is in progress
func (b *Bot) Status() BotStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// RunID identifies the current or last run in logs
func (b *Bot) RunID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.runID
}

// Snapshot returns the shared state of the current or last run
func (b *Bot) Snapshot() state.Snapshot {
	st := b.state.Load()
	if st == nil {
		return state.Snapshot{}
	}
	return st.Snapshot()
}

// Start launches capture and every module. It returns ErrNoFrame when
// the screen cannot be captured; nothing is left running in that case.
// ctx only bounds the wait for the first frame. A started run ends with Stop.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == StatusRunning {
		return ErrAlreadyRunning
	}

	runID := uuid.NewString()
	log := b.log.WithAttrs("run_id", runID)

	grabber := b.opts.Grabber
	if grabber == nil {
		grabber = &screen.ScreenGrabber{DisplayIndex: b.cfg.Screen.Display}
	}

	// Stop cancels this after the state is stopped, then stops capture last
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	capturer := screen.NewCapturer(grabber, b.cfg.Screen.CaptureFPS, log)
	capturer.Start(runCtx)

	log.Info("Waiting for first frame (display %d)", b.cfg.Screen.Display)
	if !capturer.WaitForFrame(ctx, b.opts.StartupTimeout) {
		cancel()
		capturer.Stop()
		log.Error("%v", ErrNoFrame)
		return ErrNoFrame
	}
	if f := capturer.Frame(); f != nil {
		log.Info("Capture ready: %dx%d @ %d fps", f.Bounds().Dx(), f.Bounds().Dy(), b.cfg.Screen.CaptureFPS)
	}

	st := state.New()
	device := b.opts.Device
	if device == nil {
		device = input.NewRobot(b.cfg.Screen.Display)
	}
	deps := &modules.Deps{
		Frames:    capturer,
		State:     st,
		Device:    device,
		Gate:      input.NewGate(),
		Searcher:  screen.NewSearcher(),
		Log:       log,
		AssetsDir: b.cfg.Runtime.AssetsDir,
	}

	mods, closers := b.buildModules(deps, log)

	done := make(chan struct{})
	var g errgroup.Group
	for _, m := range mods {
		g.Go(func() error {
			if err := m.Run(runCtx); err != nil {
				// A failed module does not take the others down
				log.Error("%s stopped: %v", m.Name(), err)
				return fmt.Errorf("%s: %w", m.Name(), err)
			}
			return nil
		})
	}
	go func() {
		defer close(done)
		_ = g.Wait()
	}()

	b.status = StatusRunning
	b.runID = runID
	b.capturer = capturer
	b.cancel = cancel
	b.done = done
	b.closers = closers
	b.state.Store(st)

	log.Info("Bot started with %d modules", len(mods))
	return nil
}

// buildModules wires the module set for this run. closers are released on Stop.
func (b *Bot) buildModules(deps *modules.Deps, log *logger.AppLogger) ([]modules.Module, []io.Closer) {
	cfg := b.cfg
	mods := []modules.Module{
		modules.NewHealth(deps, cfg.Healing),
		modules.NewMana(deps, cfg.Healing),
		modules.NewCombat(deps, cfg.Combat),
		modules.NewLoot(deps, cfg.Loot, cfg.Viewport),
	}
	var closers []io.Closer

	if !cfg.Navigation.Enabled {
		log.Info("Navigation disabled")
		return mods, closers
	}

	var strategy modules.Strategy
	switch cfg.ActiveStrategy() {
	case config.StrategyMinimap:
		matcher := b.opts.Matcher
		if matcher == nil {
			matcher = odometry.NewGoCVMatcher()
		}
		closers = append(closers, matcher)
		strategy = modules.NewMinimapStrategy(deps, cfg, matcher)
	default:
		reader := b.opts.CoordReader
		if reader == nil {
			reader = screen.NewOCRReader()
		}
		if c, ok := reader.(io.Closer); ok {
			closers = append(closers, c)
		}
		strategy = modules.NewCoordinateStrategy(deps, cfg, reader)
	}
	return append(mods, modules.NewNavigator(deps, strategy)), closers
}

// Stop halts all modules, then capture. Modules see the state stop
// before their context is cancelled so no new input sequence begins.
func (b *Bot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == StatusStopped {
		return
	}

	if st := b.state.Load(); st != nil {
		st.Stop()
	}
	b.cancel()
	<-b.done
	b.capturer.Stop()

	for _, c := range b.closers {
		if err := c.Close(); err != nil {
			b.log.Debug("close: %v", err)
		}
	}
	b.closers = nil
	b.status = StatusStopped
	b.log.WithAttrs("run_id", b.runID).Info("Bot stopped")
}
