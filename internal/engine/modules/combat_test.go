package modules

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/ConserveLee/cavebot/internal/config"
	"github.com/ConserveLee/cavebot/internal/constants"
	"github.com/ConserveLee/cavebot/internal/engine/input"
	"github.com/ConserveLee/cavebot/internal/engine/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	battleMatch = image.Pt(20, 10)
	followClick = image.Pt(70, 70)
	here        = state.Position{X: 32100, Y: 31900, Z: 7}
)

// battleFrame draws the battle list with or without an enemy and the red indicator
func battleFrame(enemy, indicator bool) *image.RGBA {
	f := blankFrame(100, 100)
	pixel := battleMatch.Add(image.Pt(constants.BattlePixelOffsetX, constants.BattlePixelOffsetY))
	if enemy {
		f.SetRGBA(pixel.X, pixel.Y, color.RGBA{R: 40, G: 160, B: 40, A: 255})
	} else {
		f.SetRGBA(pixel.X, pixel.Y, constants.EmptyBattleColor)
	}
	if indicator {
		corner := pixel.Add(image.Pt(-10, -10))
		for dy := 0; dy < 3; dy++ {
			for dx := 0; dx < 3; dx++ {
				f.SetRGBA(corner.X+dx, corner.Y+dy, color.RGBA{R: 255, A: 255})
			}
		}
	}
	return f
}

func newTestCombat(t *testing.T) (*testEnv, *Combat, *[]string) {
	env := newTestEnv(t)
	c := NewCombat(env.deps, config.Default().Combat)
	trace := &[]string{}
	c.OnTransition = func(from, to CombatPhase) {
		*trace = append(*trace, from.String()+"->"+to.String())
	}
	c.setAnchors(battleMatch, followClick)
	env.deps.State.UpdatePosition(here)
	return env, c, trace
}

func TestCombatEngage(t *testing.T) {
	env, c, trace := newTestCombat(t)
	env.deps.State.SetLootPending(true)

	c.tick(context.Background(), battleFrame(true, false))

	assert.Equal(t, []string{"idle->targeting", "targeting->attacking"}, *trace)
	assert.Equal(t, PhaseAttacking, c.Phase())
	assert.Equal(t, []input.Action{
		{Kind: "click", Button: input.Left, X: 70, Y: 70},
		{Kind: "key_tap", Key: "space"},
	}, env.rec.Actions())

	st := env.deps.State
	assert.True(t, st.Combat().EnemyInBattleList)
	assert.True(t, st.Combat().CurrentlyAttacking)
	assert.False(t, st.Loot().Pending, "engaging clears a stale loot request")
	assert.Empty(t, env.deps.Gate.Holder(), "gate released after the engage sequence")
}

func TestCombatEnemyDefeated(t *testing.T) {
	env, c, trace := newTestCombat(t)
	ctx := context.Background()

	c.tick(ctx, battleFrame(true, false))
	env.clock.Advance(100 * time.Millisecond)
	c.tick(ctx, battleFrame(true, true))
	env.clock.Advance(100 * time.Millisecond)
	c.tick(ctx, battleFrame(false, false))

	assert.Equal(t, []string{"idle->targeting", "targeting->attacking", "attacking->idle"}, *trace)
	st := env.deps.State
	assert.False(t, st.Combat().CurrentlyAttacking)
	assert.False(t, st.Combat().EnemyInBattleList)
	assert.True(t, st.Loot().Pending)
	assert.Equal(t, 1, countKind(env.rec, "key_up", ""))
}

func TestCombatIndicatorWithoutEnemyKeepsAttacking(t *testing.T) {
	env, c, _ := newTestCombat(t)
	ctx := context.Background()

	c.tick(ctx, battleFrame(true, false))
	env.clock.Advance(100 * time.Millisecond)
	c.tick(ctx, battleFrame(false, true))

	assert.Equal(t, PhaseAttacking, c.Phase())
	assert.False(t, env.deps.State.Loot().Pending)
}

func TestCombatRetargetsAfterGrace(t *testing.T) {
	env, c, trace := newTestCombat(t)
	ctx := context.Background()

	c.tick(ctx, battleFrame(true, false))
	env.clock.Advance(200 * time.Millisecond)
	c.tick(ctx, battleFrame(true, false))
	assert.Equal(t, 1, countKind(env.rec, "key_tap", ""), "indicator may lag the key press")

	env.clock.Advance(400 * time.Millisecond)
	c.tick(ctx, battleFrame(true, false))
	assert.Equal(t, 2, countKind(env.rec, "key_tap", ""))
	assert.Equal(t, []string{
		"idle->targeting", "targeting->attacking",
		"attacking->targeting", "targeting->attacking",
	}, *trace)
}

func TestCombatStuckMarksUnreachable(t *testing.T) {
	env, c, trace := newTestCombat(t)
	ctx := context.Background()
	st := env.deps.State
	stuckTimeout := config.Seconds(config.Default().Combat.StuckTimeout)

	c.tick(ctx, battleFrame(true, false))

	// Character stands still while the indicator stays on
	attacking := battleFrame(true, true)
	env.clock.Advance(100 * time.Millisecond)
	c.tick(ctx, attacking)
	require.Equal(t, PhaseAttacking, c.Phase())

	env.clock.Advance(stuckTimeout)
	c.tick(ctx, attacking)
	require.Equal(t, PhaseAttacking, c.Phase(), "a stall equal to the timeout is not stuck yet")

	env.clock.Advance(time.Second)
	c.tick(ctx, attacking)

	assert.Equal(t, []string{
		"idle->targeting", "targeting->attacking",
		"attacking->stuck", "stuck->idle",
	}, *trace)
	assert.Equal(t, PhaseIdle, c.Phase())
	assert.True(t, st.IsUnreachable(here))
	assert.True(t, st.Loot().Pending)
	assert.False(t, st.Combat().CurrentlyAttacking)
	assert.Equal(t, 1, env.rec.Count(func(a input.Action) bool { return a.Kind == "key_tap" && a.Key == input.KeyEscape }))
	assert.Equal(t, 1, countKind(env.rec, "key_up", ""))

	// The enemy is still listed but the area is blacklisted: stay idle and let navigation move on
	before := len(env.rec.Actions())
	env.clock.Advance(100 * time.Millisecond)
	st.UpdatePosition(here)
	c.tick(ctx, attacking)
	assert.Equal(t, PhaseIdle, c.Phase())
	assert.Len(t, env.rec.Actions(), before)
	assert.True(t, st.Combat().EnemyInBattleList)
	assert.False(t, st.MovementBlocked())

	// The entry lives for the whole cooldown, counted from the give-up tick
	cooldown := config.Seconds(config.Default().Combat.UnreachableCooldown)
	env.clock.Advance(cooldown - 100*time.Millisecond - time.Millisecond)
	assert.True(t, st.IsUnreachable(here), "just before the cooldown ends")
	env.clock.Advance(time.Millisecond)
	assert.False(t, st.IsUnreachable(here), "expired at the cooldown")
	assert.False(t, st.IsUnreachable(here))
	assert.Zero(t, st.Snapshot().Unreachable)
}

func TestCombatEngagesWithoutCoordinates(t *testing.T) {
	// Minimap navigation or no navigation at all: the position is never read
	env := newTestEnv(t)
	c := NewCombat(env.deps, config.Default().Combat)
	trace := &[]string{}
	c.OnTransition = func(from, to CombatPhase) {
		*trace = append(*trace, from.String()+"->"+to.String())
	}
	c.setAnchors(battleMatch, followClick)
	ctx := context.Background()
	st := env.deps.State
	stuckTimeout := config.Seconds(config.Default().Combat.StuckTimeout)

	c.tick(ctx, battleFrame(true, false))
	attacking := battleFrame(true, true)
	env.clock.Advance(100 * time.Millisecond)
	c.tick(ctx, attacking)
	env.clock.Advance(stuckTimeout + time.Second)
	c.tick(ctx, attacking)
	require.Equal(t, PhaseIdle, c.Phase())
	require.True(t, st.IsUnreachable(state.Position{}), "give-up blacklists the unread position")

	// Walking on toward the next waypoint
	for i := 0; i < 10; i++ {
		env.clock.Advance(time.Second)
		st.MarkMoved()
	}
	assert.True(t, st.MovementBlocked(), "a listed enemy must stop navigation")

	c.tick(ctx, attacking)
	assert.Equal(t, PhaseAttacking, c.Phase(), "combat engages again")
	assert.Equal(t, []string{
		"idle->targeting", "targeting->attacking",
		"attacking->stuck", "stuck->idle",
		"idle->targeting", "targeting->attacking",
	}, *trace)
	assert.True(t, st.Combat().CurrentlyAttacking)
}

func TestCombatMovementResetsStallTimer(t *testing.T) {
	env, c, _ := newTestCombat(t)
	ctx := context.Background()
	st := env.deps.State

	c.tick(ctx, battleFrame(true, false))
	attacking := battleFrame(true, true)

	// Walking toward the target for longer than the stuck timeout
	for i := 0; i < 20; i++ {
		env.clock.Advance(300 * time.Millisecond)
		st.UpdatePosition(state.Position{X: here.X + i + 1, Y: here.Y, Z: here.Z})
		c.tick(ctx, attacking)
	}
	assert.Equal(t, PhaseAttacking, c.Phase())
	assert.Zero(t, st.Snapshot().Unreachable)
}

func TestCombatSetupFindsAnchors(t *testing.T) {
	env := newTestEnv(t)
	battle := itemIcon()
	follow := blankFrame(6, 6)
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			follow.SetRGBA(x, y, color.RGBA{R: 250, G: 250, B: uint8(40 * (x % 2)), A: 255})
		}
	}
	writePNG(t, env.deps.asset(constants.BattleAnchor), battle)
	writePNG(t, env.deps.asset(constants.FollowAnchor), follow)

	frame := blankFrame(120, 120)
	paste(frame, battle, image.Pt(40, 30))
	paste(frame, follow, image.Pt(90, 90))
	env.frames.set(frame)

	c := NewCombat(env.deps, config.Default().Combat)
	require.True(t, waitForAnchors(context.Background(), env.deps, c.log, c.battle, c.follow))
	c.setAnchors(c.battle.pos, c.follow.center())

	assert.Equal(t, image.Pt(46, 50), c.battlePixel)
	assert.Equal(t, image.Pt(36, 40), c.indicator)
	assert.Equal(t, image.Pt(93, 93), c.followClick)
}

func TestCombatSetupCancelledWhileAnchorsMissing(t *testing.T) {
	env := newTestEnv(t)
	env.frames.set(blankFrame(50, 50))
	c := NewCombat(env.deps, config.Default().Combat)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, c.Run(ctx))
	assert.Empty(t, env.rec.Actions())
}
