package modules

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/ConserveLee/cavebot/internal/config"
	"github.com/ConserveLee/cavebot/internal/constants"
	"github.com/ConserveLee/cavebot/internal/engine/input"
	"github.com/ConserveLee/cavebot/internal/engine/screen"
	"github.com/ConserveLee/cavebot/internal/engine/screen/odometry"
	"github.com/ConserveLee/cavebot/internal/engine/state"
	"github.com/ConserveLee/cavebot/internal/logger"
)

// MinimapStrategy navigates by matching recorded minimap crops (no OCR).
// All waypoints must be visible from each other on the minimap.
type MinimapStrategy struct {
	st       *state.GameState
	matcher  odometry.Matcher
	cfg      config.MinimapConfig
	viewport config.ViewportConfig
	log      *logger.AppLogger
	now      func() time.Time

	minimap    image.Image
	index      int
	stuckSince time.Time
	lastMoveAt time.Time
	lastStepAt time.Time
}

// NewMinimapStrategy creates the visual odometry strategy
func NewMinimapStrategy(d *Deps, cfg *config.Config, matcher odometry.Matcher) *MinimapStrategy {
	return &MinimapStrategy{
		st:       d.State,
		matcher:  matcher,
		cfg:      cfg.Minimap,
		viewport: cfg.Viewport,
		log:      d.logger("MinimapNav"),
		now:      d.now,
	}
}

// Name implements Strategy
func (m *MinimapStrategy) Name() string { return config.StrategyMinimap }

// Prepare implements Strategy
func (m *MinimapStrategy) Prepare(ctx context.Context) error {
	if m.cfg.WaypointsFile == "" {
		return ErrNoWaypoints
	}
	route, err := config.LoadMinimapRoute(m.cfg.WaypointsFile)
	if err != nil {
		return fmt.Errorf("minimap route: %w", err)
	}
	n, err := m.matcher.Load(route.Waypoints)
	if err != nil {
		m.log.Warn("%v", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: no valid minimap templates in %s", ErrNoWaypoints, m.cfg.WaypointsFile)
	}
	m.stuckSince = m.now()
	m.log.Info("Loaded %d waypoint templates (%q), arrival threshold=%dpx", n, route.Name, m.cfg.ArrivalPx)
	return nil
}

// Observe implements Strategy
func (m *MinimapStrategy) Observe(frame *image.RGBA) {
	mm := screen.CopyRegion(frame, m.cfg.Rect())
	if mm == nil || mm.Bounds().Dx() < 10 || mm.Bounds().Dy() < 10 {
		m.minimap = nil
		return
	}
	m.minimap = mm
	if m.matcher.Moved(mm) {
		m.st.MarkMoved()
		m.stuckSince = m.now()
	}
}

// Step implements Strategy
func (m *MinimapStrategy) Step(_ *image.RGBA, dev input.Device) Outcome {
	now := m.now()
	// Time spent yielding does not count as being stuck
	if now.Sub(m.lastStepAt) > time.Second {
		m.stuckSince = now
	}
	m.lastStepAt = now

	if m.minimap == nil {
		return Waiting
	}

	target := (m.index + 1) % m.matcher.Len()
	match, ok := m.matcher.Locate(m.minimap, target)
	if !ok {
		return Waiting
	}
	dist := math.Hypot(float64(match.DX), float64(match.DY))

	if dist <= float64(m.cfg.ArrivalPx) {
		m.log.Info("Reached waypoint %d (conf=%.2f, dist=%.1fpx)", target, match.Confidence, dist)
		m.advance(target, now)
		return Arrived
	}

	if now.Sub(m.stuckSince) > config.Seconds(m.cfg.StuckTimeout) {
		m.log.Warn("Stuck for %.1fs - skipping to waypoint %d", m.cfg.StuckTimeout, target)
		m.advance(target, now)
		return Arrived
	}

	if now.Sub(m.lastMoveAt) < config.Seconds(m.cfg.MoveInterval) {
		return Skipped
	}
	click, ok := DirectionClickPoint(m.viewport, match.DX, match.DY, constants.MinimapClickTiles)
	if !ok {
		return Skipped
	}
	if dist > float64(m.cfg.ArrivalPx+2) {
		m.log.Debug("WP %d delta=(%+d,%+d) dist=%.0fpx conf=%.2f", target, match.DX, match.DY, dist, match.Confidence)
	}
	dev.Click(click.X, click.Y)
	m.lastMoveAt = now
	return Moved
}

func (m *MinimapStrategy) advance(target int, now time.Time) {
	m.index = target
	m.st.SetWaypointIndex(target)
	m.stuckSince = now
	m.matcher.ResetMotion()
}
