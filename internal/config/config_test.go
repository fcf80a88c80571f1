package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ConserveLee/cavebot/internal/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")
	cfg, notices, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Default().Viewport, cfg.Viewport)
	assert.Equal(t, 20, cfg.Screen.CaptureFPS)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0], "not found - using defaults")
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "bot.yaml", `
screen:
  display: 1
viewport:
  center_x: 900
  center_y: 500
healing:
  hp_threshold: 55
  mana_key: f3
combat:
  attack_indicator_offset: [-8, -12]
navigation:
  strategy: coordinates
  waypoints:
    - [32100, 31900, 7]
    - [32110, 31905, 7]
loot:
  whitelist: [gold_coin, platinum_coin]
  scan_region: {x: 1900, y: 400, width: 600, height: 900}
`)
	cfg, _, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Screen.Display)
	assert.Equal(t, 900, cfg.Viewport.CenterX)
	assert.Equal(t, 64, cfg.Viewport.TileSize, "unset keys keep their defaults")
	assert.Equal(t, 55.0, cfg.Healing.HPThreshold)
	assert.Equal(t, "f3", cfg.Healing.ManaKey)
	assert.Equal(t, "f1", cfg.Healing.HealKey)
	assert.Equal(t, -12, cfg.Combat.IndicatorOffset().X)
	assert.Equal(t, -8, cfg.Combat.IndicatorOffset().Y)
	assert.Equal(t, []Waypoint{{32100, 31900, 7}, {32110, 31905, 7}}, cfg.Navigation.Route)
	assert.Equal(t, StrategyCoordinates, cfg.ActiveStrategy())
	assert.False(t, cfg.Loot.TakeAll())
	require.NotNil(t, cfg.Loot.ScanRegion)
	assert.Equal(t, 600, cfg.Loot.ScanRegion.Rect().Dx())
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "bot.toml", `
[combat]
attack_key = "f12"
stuck_timeout = 4.5

[minimap]
enabled = true
arrival_px = 6

[loot]
whitelist = ["*"]
`)
	cfg, _, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "f12", cfg.Combat.AttackKey)
	assert.Equal(t, 4500*time.Millisecond, Seconds(cfg.Combat.StuckTimeout))
	assert.Equal(t, 6, cfg.Minimap.ArrivalPx)
	assert.Equal(t, StrategyMinimap, cfg.ActiveStrategy())
	assert.True(t, cfg.Loot.TakeAll())
}

func TestLootTakeAll(t *testing.T) {
	tests := []struct {
		whitelist []string
		want      bool
	}{
		{nil, false},
		{[]string{"gold_coin"}, false},
		{[]string{"gold_coin", constants.LootWildcard}, true},
		{[]string{"**"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LootConfig{Whitelist: tt.whitelist}.TakeAll(), "%v", tt.whitelist)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CAVEBOT_DISPLAY", "2")
	t.Setenv("CAVEBOT_DEBUG", "true")
	t.Setenv("CAVEBOT_ASSETS_DIR", "/opt/cavebot/images")

	path := writeFile(t, "bot.yaml", "screen:\n  display: 1\n")
	cfg, _, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Screen.Display, "environment wins over the file")
	assert.True(t, cfg.Runtime.Debug)
	assert.Equal(t, "/opt/cavebot/images", cfg.Runtime.AssetsDir)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeFile(t, "bot.yaml", `
screen:
  capture_fps: 0
viewport:
  tile_size: 0
navigation:
  strategy: teleport
`)
	_, _, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture_fps")
	assert.Contains(t, err.Error(), "tile_size")
	assert.Contains(t, err.Error(), "teleport")
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := writeFile(t, "bot.yaml", "screen: [unclosed\n")
	_, _, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestWaypointsFileShapes(t *testing.T) {
	doc := writeFile(t, "route.json", `{"name": "rotworms", "waypoints": [[1,2,7],[3,4,7]]}`)
	bare := writeFile(t, "bare.json", `[[1,2,7],[3,4,7]]`)
	want := []Waypoint{{1, 2, 7}, {3, 4, 7}}

	for _, path := range []string{doc, bare} {
		wps, err := LoadCoordinateWaypoints(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, wps)
	}

	_, err := LoadCoordinateWaypoints(writeFile(t, "short.json", `[[1,2]]`))
	assert.Error(t, err)
}

func TestWaypointsFileOverridesInlineList(t *testing.T) {
	dir := t.TempDir()
	route := filepath.Join(dir, "routes", "hunt.json")
	require.NoError(t, SaveCoordinateWaypoints(route, "hunt", []Waypoint{{10, 20, 7}}))

	path := writeFile(t, "bot.yaml", "navigation:\n  waypoints_file: "+route+"\n  waypoints: [[1, 1, 1]]\n")
	cfg, notices, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Waypoint{{10, 20, 7}}, cfg.Navigation.Route)
	assert.Contains(t, notices, "Loaded 1 waypoints from "+route)
}

func TestMissingWaypointsFileIsANotice(t *testing.T) {
	path := writeFile(t, "bot.yaml", "navigation:\n  waypoints_file: /does/not/exist.json\n")
	cfg, notices, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Navigation.Route)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0], "Could not load waypoints_file")
}

func TestMinimapRouteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mm", "route.json")
	in := MinimapRoute{Name: "cave", Waypoints: []string{"a.png", "b.png"}}
	require.NoError(t, SaveMinimapRoute(path, in))

	out, err := LoadMinimapRoute(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
