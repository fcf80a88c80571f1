package modules

import (
	"context"
	"image"
	"image/color"
	"time"

	"github.com/ConserveLee/cavebot/internal/config"
	"github.com/ConserveLee/cavebot/internal/constants"
	"github.com/ConserveLee/cavebot/internal/engine/screen"
	"github.com/ConserveLee/cavebot/internal/engine/state"
	"github.com/ConserveLee/cavebot/internal/logger"
)

// resourceKind describes one bar
type resourceKind struct {
	name     string
	anchor   string
	fill     color.RGBA
	offset   image.Point
	cooldown time.Duration
	publish  func(*state.GameState, float64)
}

var (
	healthKind = resourceKind{
		name:     "Health",
		anchor:   constants.HealthAnchor,
		fill:     constants.HealthBarColor,
		offset:   image.Pt(constants.HealthOffsetX, constants.HealthOffsetY),
		cooldown: constants.HealCooldown,
		publish:  (*state.GameState).SetHP,
	}
	manaKind = resourceKind{
		name:     "Mana",
		anchor:   constants.ManaAnchor,
		fill:     constants.ManaBarColor,
		offset:   image.Pt(constants.ManaOffsetX, constants.ManaOffsetY),
		cooldown: constants.ManaCooldown,
		publish:  (*state.GameState).SetMana,
	}
)

// Resource reads a resource bar and presses the recovery key when it runs low
type Resource struct {
	deps      *Deps
	kind      resourceKind
	threshold float64
	key       string
	log       *logger.AppLogger

	bar         *anchor
	barStart    image.Point
	lastPressAt time.Time
}

// NewHealth creates the HP module
func NewHealth(d *Deps, cfg config.HealingConfig) *Resource {
	return newResource(d, healthKind, cfg.HPThreshold, cfg.HealKey)
}

// NewMana creates the mana module. It stays idle without a mana key.
func NewMana(d *Deps, cfg config.HealingConfig) *Resource {
	return newResource(d, manaKind, cfg.ManaThreshold, cfg.ManaKey)
}

func newResource(d *Deps, kind resourceKind, threshold float64, key string) *Resource {
	return &Resource{
		deps:      d,
		kind:      kind,
		threshold: threshold,
		key:       key,
		log:       d.logger(kind.name),
		bar:       &anchor{path: d.asset(kind.anchor)},
	}
}

// Name implements Module
func (r *Resource) Name() string { return r.kind.name }

// Run implements Module
func (r *Resource) Run(ctx context.Context) error {
	if r.key == "" {
		r.log.Info("No recovery key configured - module disabled")
		return nil
	}
	if !waitForAnchors(ctx, r.deps, r.log, r.bar) {
		return nil
	}
	r.barStart = r.bar.pos.Add(r.kind.offset)
	r.log.Info("Bar located at x=%d y=%d", r.barStart.X, r.barStart.Y)

	runLoop(ctx, r.deps, r.log, r.processTick)
	return nil
}

func (r *Resource) processTick(ctx context.Context) time.Duration {
	if frame := r.deps.Frames.Frame(); frame != nil {
		r.tick(ctx, frame)
	}
	return constants.ResourceTickInterval
}

// tick reads the bar, publishes it and recovers if needed
func (r *Resource) tick(ctx context.Context, frame image.Image) {
	pct := screen.ReadBarPercent(frame, r.barStart.X, r.barStart.Y, constants.BarWidth, r.kind.fill, constants.BarTolerance)
	r.kind.publish(r.deps.State, pct)

	now := r.deps.now()
	if pct >= r.threshold || now.Sub(r.lastPressAt) < r.kind.cooldown {
		return
	}

	release, err := r.deps.Gate.Acquire(ctx, r.Name())
	if err != nil {
		return
	}
	r.log.Info("%s %.0f%% < %.0f%% -> %s", r.kind.name, pct, r.threshold, r.key)
	r.deps.Device.KeyTap(r.key)
	release()
	r.lastPressAt = now
}
