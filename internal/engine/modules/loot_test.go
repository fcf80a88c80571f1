package modules

import (
	"context"
	"image"
	"path/filepath"
	"testing"

	"github.com/ConserveLee/cavebot/internal/config"
	"github.com/ConserveLee/cavebot/internal/constants"
	"github.com/ConserveLee/cavebot/internal/engine/input"
	"github.com/ConserveLee/cavebot/internal/engine/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoot(t *testing.T, env *testEnv, whitelist ...string) *Loot {
	t.Helper()
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "gold_coin.png"), itemIcon())

	cfg := config.Default().Loot
	cfg.TemplatesDir = dir
	cfg.Whitelist = whitelist

	l := NewLoot(env.deps, cfg, config.Default().Viewport)
	l.jitter = func() int { return 5 }
	return l
}

func isOpen(a input.Action) bool {
	return a.Kind == "modifier_click" && a.Modifier == input.KeyShift && a.Button == input.Right
}

func isTake(a input.Action) bool {
	return a.Kind == "modifier_click" && a.Modifier == input.KeyCtrl && a.Button == input.Left
}

func isClose(a input.Action) bool {
	return a.Kind == "key_tap" && a.Key == input.KeyEscape
}

func TestLootGoldCoinSingleMatch(t *testing.T) {
	env := newTestEnv(t)
	l := newTestLoot(t, env, "gold_coin")
	require.True(t, l.resolveTemplates())

	// The coin only shows up in the first opened container
	withCoin := blankFrame(400, 400)
	paste(withCoin, itemIcon(), image.Pt(300, 300))
	env.frames.set(withCoin, blankFrame(400, 400))

	st := env.deps.State
	st.SetLootPending(true)
	l.pass(context.Background())

	assert.Equal(t, 8, env.rec.Count(isOpen))
	assert.Equal(t, 8, env.rec.Count(isClose))
	require.Equal(t, 1, env.rec.Count(isTake))
	for _, a := range env.rec.Actions() {
		if isTake(a) {
			assert.Equal(t, image.Pt(305, 305), image.Pt(a.X, a.Y), "take at the match centre")
		}
	}
	assert.Equal(t, config.Seconds(1.5), env.sleeps.waits[0], "corpse delay first")
	assert.False(t, st.Loot().Pending)
	assert.False(t, st.Loot().Active)
}

func TestLootNoMatchStillClearsFlags(t *testing.T) {
	env := newTestEnv(t)
	l := newTestLoot(t, env, "gold_coin")
	require.True(t, l.resolveTemplates())
	env.frames.set(blankFrame(400, 400))

	st := env.deps.State
	st.SetLootPending(true)
	l.pass(context.Background())

	assert.Zero(t, env.rec.Count(isTake))
	assert.Equal(t, 8, env.rec.Count(isClose))
	assert.Equal(t, state.LootInfo{}, st.Loot())
}

func TestLootTakeAll(t *testing.T) {
	env := newTestEnv(t)
	l := newTestLoot(t, env, constants.LootWildcard)
	require.True(t, l.resolveTemplates())

	st := env.deps.State
	st.SetLootPending(true)
	l.pass(context.Background())

	assert.Equal(t, 8, env.rec.Count(isOpen))
	assert.Zero(t, env.rec.Count(isClose), "no container verification in take-all mode")
	assert.False(t, st.Loot().Pending)
}

func TestLootSurroundingTiles(t *testing.T) {
	env := newTestEnv(t)
	l := newTestLoot(t, env, constants.LootWildcard)
	vp := config.Default().Viewport
	o := vp.TileSize + 5

	tiles := l.surroundingTiles()
	require.Len(t, tiles, 8)
	assert.Equal(t, image.Pt(vp.CenterX-o, vp.CenterY), tiles[0])
	assert.Equal(t, image.Pt(vp.CenterX-o, vp.CenterY-o), tiles[7])
	seen := map[image.Point]bool{}
	for _, p := range tiles {
		assert.False(t, p == vp.Center(), "never the character tile")
		seen[p] = true
	}
	assert.Len(t, seen, 8)
}

func TestLootCancelledClearsFlags(t *testing.T) {
	env := newTestEnv(t)
	l := newTestLoot(t, env, "gold_coin")
	require.True(t, l.resolveTemplates())

	st := env.deps.State
	st.SetLootPending(true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.pass(ctx)

	assert.Empty(t, env.rec.Actions())
	assert.False(t, st.Loot().Pending)
	assert.False(t, st.Loot().Active)
}

func TestLootNothingPendingIsIdle(t *testing.T) {
	env := newTestEnv(t)
	l := newTestLoot(t, env, "gold_coin")
	require.True(t, l.resolveTemplates())

	assert.Equal(t, constants.LootPollInterval, l.processTick(context.Background()))
	assert.Empty(t, env.rec.Actions())
}

func TestLootMissingTemplatesDisablesModule(t *testing.T) {
	env := newTestEnv(t)
	l := newTestLoot(t, env, "dragon_scale")
	assert.False(t, l.resolveTemplates())
	assert.NoError(t, l.Run(context.Background()))

	l = newTestLoot(t, env, "gold_coin")
	l.cfg.Enabled = false
	assert.NoError(t, l.Run(context.Background()))
	assert.Zero(t, env.frames.calls)
}
