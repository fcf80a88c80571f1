package modules

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/ConserveLee/cavebot/internal/config"
	"github.com/ConserveLee/cavebot/internal/constants"
	"github.com/ConserveLee/cavebot/internal/engine/input"
	"github.com/ConserveLee/cavebot/internal/engine/screen"
	"github.com/ConserveLee/cavebot/internal/engine/state"
	"github.com/ConserveLee/cavebot/internal/logger"
)

// ErrNoWaypoints means a strategy has no route to follow
var ErrNoWaypoints = errors.New("no waypoints configured")

// Outcome is the result of one navigation step
type Outcome int

const (
	Skipped Outcome = iota // nothing to do this tick
	Waiting                // perception not usable yet
	Moved                  // a movement click was issued
	Arrived                // waypoint reached or skipped, index advanced
)

func (o Outcome) String() string {
	switch o {
	case Waiting:
		return "waiting"
	case Moved:
		return "moved"
	case Arrived:
		return "arrived"
	default:
		return "skipped"
	}
}

// Strategy turns frames into movement toward the next waypoint
type Strategy interface {
	Name() string
	// Prepare loads assets and checks optional capabilities. An error disables navigation.
	Prepare(ctx context.Context) error
	// Observe runs perception only. It is called every tick, even while yielding.
	Observe(frame *image.RGBA)
	// Step is called with the input gate held
	Step(frame *image.RGBA, dev input.Device) Outcome
}

// Navigator walks the route, yielding to combat and looting
type Navigator struct {
	deps     *Deps
	strategy Strategy
	log      *logger.AppLogger
}

// NewNavigator wraps the strategy selected for this run
func NewNavigator(d *Deps, s Strategy) *Navigator {
	return &Navigator{deps: d, strategy: s, log: d.logger("Navigation")}
}

// Name implements Module
func (n *Navigator) Name() string { return "Navigation" }

// Run implements Module
func (n *Navigator) Run(ctx context.Context) error {
	if err := n.strategy.Prepare(ctx); err != nil {
		if errors.Is(err, screen.ErrCapabilityUnavailable) {
			n.log.Warn("%s navigation disabled: %v", n.strategy.Name(), err)
		} else {
			n.log.Info("%s navigation idle: %v", n.strategy.Name(), err)
		}
		return nil
	}
	n.log.Info("Started with %s strategy", n.strategy.Name())

	runLoop(ctx, n.deps, n.log, n.tick)
	return nil
}

func (n *Navigator) tick(ctx context.Context) time.Duration {
	frame := n.deps.Frames.Frame()
	if frame == nil {
		return constants.NavigationInterval
	}

	n.strategy.Observe(frame)

	// Combat and looting take priority
	if n.deps.State.MovementBlocked() {
		return constants.NavigationYieldWait
	}

	release, ok := n.deps.Gate.TryAcquire(n.Name())
	if !ok {
		return constants.NavigationInterval
	}
	out := n.strategy.Step(frame, n.deps.Device)
	release()

	switch out {
	case Arrived:
		return constants.NavigationArrivedWait
	case Waiting:
		return constants.NavigationStaleWait
	default:
		return constants.NavigationInterval
	}
}

// CoordinateStrategy navigates by reading world coordinates with OCR
type CoordinateStrategy struct {
	st           *state.GameState
	reader       screen.CoordReader
	waypoints    []state.Position
	tolerance    int
	moveInterval time.Duration
	viewport     config.ViewportConfig
	coordRect    image.Rectangle
	log          *logger.AppLogger
	now          func() time.Time

	failures   int
	lastMoveAt time.Time
}

// NewCoordinateStrategy creates the OCR based strategy
func NewCoordinateStrategy(d *Deps, cfg *config.Config, reader screen.CoordReader) *CoordinateStrategy {
	wps := make([]state.Position, 0, len(cfg.Navigation.Route))
	for _, wp := range cfg.Navigation.Route {
		wps = append(wps, state.Position{X: wp.X, Y: wp.Y, Z: wp.Z})
	}
	return &CoordinateStrategy{
		st:           d.State,
		reader:       reader,
		waypoints:    wps,
		tolerance:    cfg.Navigation.WaypointTolerance,
		moveInterval: config.Seconds(cfg.Navigation.MoveInterval),
		viewport:     cfg.Viewport,
		coordRect:    cfg.CoordDisplay.Rect(),
		log:          d.logger("Navigation"),
		now:          d.now,
	}
}

// Name implements Strategy
func (c *CoordinateStrategy) Name() string { return config.StrategyCoordinates }

// Prepare implements Strategy
func (c *CoordinateStrategy) Prepare(ctx context.Context) error {
	if len(c.waypoints) == 0 {
		return ErrNoWaypoints
	}
	if err := c.reader.Check(); err != nil {
		return err
	}
	c.log.Info("%d waypoints loaded", len(c.waypoints))
	return nil
}

// Observe implements Strategy
func (c *CoordinateStrategy) Observe(frame *image.RGBA) {
	region := screen.CopyRegion(frame, c.coordRect)
	if region == nil {
		c.readFailed(nil)
		return
	}
	coords, err := c.reader.Read(region)
	if err != nil {
		c.readFailed(err)
		return
	}
	c.failures = 0
	c.st.UpdatePosition(state.Position{X: coords.X, Y: coords.Y, Z: coords.Z})
}

func (c *CoordinateStrategy) readFailed(err error) {
	c.failures++
	if c.failures%constants.OCRFailureLogEvery == 1 {
		c.log.Warn("OCR failed %dx (%v) - check coord_display region", c.failures, err)
	}
}

// Step implements Strategy
func (c *CoordinateStrategy) Step(_ *image.RGBA, dev input.Device) Outcome {
	// Last known position is trusted for a while
	if c.st.PositionStale(constants.PositionStaleAfter) {
		return Waiting
	}
	pos := c.st.Position().Position

	idx := c.st.WaypointIndex() % len(c.waypoints)
	target := c.waypoints[idx]
	dx, dy := target.X-pos.X, target.Y-pos.Y

	if WaypointReached(pos, target, c.tolerance) {
		next := (idx + 1) % len(c.waypoints)
		c.st.SetWaypointIndex(next)
		c.log.Info("Waypoint %d/%d reached - moving to %d", idx+1, len(c.waypoints), next+1)
		return Arrived
	}

	now := c.now()
	if now.Sub(c.lastMoveAt) < c.moveInterval {
		return Skipped
	}
	if abs(dx) > 2 || abs(dy) > 2 {
		c.log.Debug("WP %d %v curr=%v delta=(%d,%d)", idx+1, target, pos, dx, dy)
	}
	click := TileClickPoint(c.viewport, dx, dy)
	dev.Click(click.X, click.Y)
	c.lastMoveAt = now
	return Moved
}
