package modules

import (
	"context"
	"image"
	"time"

	"github.com/ConserveLee/cavebot/internal/config"
	"github.com/ConserveLee/cavebot/internal/constants"
	"github.com/ConserveLee/cavebot/internal/engine/input"
	"github.com/ConserveLee/cavebot/internal/engine/screen"
	"github.com/ConserveLee/cavebot/internal/engine/state"
	"github.com/ConserveLee/cavebot/internal/logger"
)

// CombatPhase defines the current phase of the attack state machine
type CombatPhase int

const (
	PhaseIdle CombatPhase = iota
	PhaseTargeting
	PhaseAttacking
	PhaseStuck
)

func (p CombatPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseTargeting:
		return "targeting"
	case PhaseAttacking:
		return "attacking"
	case PhaseStuck:
		return "stuck"
	default:
		return "unknown"
	}
}

// Combat detects enemies in the battle list, attacks them and gives up on
// targets the character cannot reach.
type Combat struct {
	deps *Deps
	cfg  config.CombatConfig
	log  *logger.AppLogger

	// OnTransition is called for every phase change, including the
	// intermediate ones taken within a single tick
	OnTransition func(from, to CombatPhase)

	battle *anchor
	follow *anchor

	battlePixel image.Point
	indicator   image.Point
	followClick image.Point

	phase           CombatPhase
	engagedAt       time.Time // last attack key press
	attackStartedAt time.Time // stall timer origin, reset by movement
	posAtAttack     state.Position
}

// NewCombat creates the combat module
func NewCombat(d *Deps, cfg config.CombatConfig) *Combat {
	return &Combat{
		deps:   d,
		cfg:    cfg,
		log:    d.logger("Combat"),
		battle: &anchor{path: d.asset(constants.BattleAnchor)},
		follow: &anchor{path: d.asset(constants.FollowAnchor)},
	}
}

// Name implements Module
func (c *Combat) Name() string { return "Combat" }

// Phase returns the current phase
func (c *Combat) Phase() CombatPhase { return c.phase }

// Run implements Module
func (c *Combat) Run(ctx context.Context) error {
	if !waitForAnchors(ctx, c.deps, c.log, c.battle, c.follow) {
		return nil
	}
	c.setAnchors(c.battle.pos, c.follow.center())

	runLoop(ctx, c.deps, c.log, c.processTick)

	// Never leave the attack key held
	if c.phase == PhaseAttacking {
		c.deps.Device.KeyUp(c.cfg.AttackKey)
	}
	return nil
}

// setAnchors derives the sampled pixels from the battle list match
func (c *Combat) setAnchors(battleMatch, followCenter image.Point) {
	c.battlePixel = battleMatch.Add(image.Pt(constants.BattlePixelOffsetX, constants.BattlePixelOffsetY))
	c.indicator = c.battlePixel.Add(c.cfg.IndicatorOffset())
	c.followClick = followCenter
	c.log.Info("Battle list found - enemy pixel=%v attack indicator=%v follow=%v", c.battlePixel, c.indicator, followCenter)
}

func (c *Combat) processTick(ctx context.Context) time.Duration {
	frame := c.deps.Frames.Frame()
	if frame == nil {
		return constants.CombatTickInterval
	}
	c.tick(ctx, frame)
	return constants.CombatTickInterval
}

// tick advances the state machine by one frame
func (c *Combat) tick(ctx context.Context, frame image.Image) {
	st := c.deps.State
	enemy := screen.EnemyPresent(frame, c.battlePixel, constants.EmptyBattleColor)
	st.SetEnemy(enemy)

	switch c.phase {
	case PhaseIdle:
		c.handleIdle(ctx, enemy)
	case PhaseTargeting:
		c.handleTargeting(ctx)
	case PhaseAttacking:
		c.handleAttacking(ctx, frame, enemy)
	case PhaseStuck:
		// Stuck is resolved within the tick that entered it
		c.setPhase(PhaseIdle)
	}
}

func (c *Combat) handleIdle(ctx context.Context, enemy bool) {
	if !enemy {
		return
	}
	if c.deps.State.CurrentPositionUnreachable() {
		return
	}
	c.log.Info("Enemy detected - attacking")
	c.setPhase(PhaseTargeting)
	c.handleTargeting(ctx)
}

func (c *Combat) handleTargeting(ctx context.Context) {
	release, err := c.deps.Gate.Acquire(ctx, c.Name())
	if err != nil {
		return
	}
	c.deps.Device.Click(c.followClick.X, c.followClick.Y)
	c.deps.Device.KeyTap(c.cfg.AttackKey)
	release()

	st := c.deps.State
	now := c.deps.now()
	c.engagedAt = now
	c.attackStartedAt = now
	c.posAtAttack = st.Position().Position
	st.SetAttacking(true)
	st.SetLootPending(false)
	c.setPhase(PhaseAttacking)
}

func (c *Combat) handleAttacking(ctx context.Context, frame image.Image, enemy bool) {
	attacking := screen.AttackIndicator(frame, c.indicator)
	now := c.deps.now()

	switch {
	case !enemy && !attacking:
		c.log.Info("Enemy defeated - switching to loot")
		c.deps.Device.KeyUp(c.cfg.AttackKey)
		c.endAttack()
		c.setPhase(PhaseIdle)

	case !enemy:
		// Indicator still drawn while the battle list catches up

	case !attacking:
		if now.Sub(c.engagedAt) >= constants.RetargetGrace {
			c.log.Debug("Selection lost - retargeting")
			c.setPhase(PhaseTargeting)
			c.handleTargeting(ctx)
		}

	default:
		stuck := c.stuckFor(now)
		if stuck > config.Seconds(c.cfg.StuckTimeout) {
			c.giveUp(ctx, stuck)
		}
	}
}

// stuckFor returns how long the character has stood still during this attack
func (c *Combat) stuckFor(now time.Time) time.Duration {
	if c.deps.State.SinceLastMove() < constants.MoveResetWindow {
		c.attackStartedAt = now
		return 0
	}
	return now.Sub(c.attackStartedAt)
}

// giveUp blacklists the current area and abandons the attack
func (c *Combat) giveUp(ctx context.Context, stuck time.Duration) {
	c.setPhase(PhaseStuck)

	st := c.deps.State
	pos := st.Position().Position
	cooldown := config.Seconds(c.cfg.UnreachableCooldown)
	c.log.Warn("Stuck %.1fs at %v (attack began at %v) - marking unreachable for %s", stuck.Seconds(), pos, c.posAtAttack, cooldown)
	st.MarkUnreachable(pos, cooldown)

	if release, err := c.deps.Gate.Acquire(ctx, c.Name()); err == nil {
		c.deps.Device.KeyUp(c.cfg.AttackKey)
		c.deps.Device.KeyTap(input.KeyEscape)
		release()
	}
	c.endAttack()
	c.setPhase(PhaseIdle)
}

func (c *Combat) endAttack() {
	st := c.deps.State
	st.SetAttacking(false)
	st.SetLootPending(true)
	c.engagedAt = time.Time{}
	c.attackStartedAt = time.Time{}
}

func (c *Combat) setPhase(next CombatPhase) {
	if next == c.phase {
		return
	}
	prev := c.phase
	c.phase = next
	c.log.Debug("phase %s -> %s", prev, next)
	if c.OnTransition != nil {
		c.OnTransition(prev, next)
	}
}
