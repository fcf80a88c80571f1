package config

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ConserveLee/cavebot/internal/constants"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no config path is supplied
const DefaultPath = "bot_config.yaml"

// Navigation strategies
const (
	StrategyCoordinates = "coordinates"
	StrategyMinimap     = "minimap"
)

// Config represents the complete bot configuration
type Config struct {
	Screen       ScreenConfig       `yaml:"screen" toml:"screen"`
	Viewport     ViewportConfig     `yaml:"viewport" toml:"viewport"`
	CoordDisplay CoordDisplayConfig `yaml:"coord_display" toml:"coord_display"`
	Healing      HealingConfig      `yaml:"healing" toml:"healing"`
	Combat       CombatConfig       `yaml:"combat" toml:"combat"`
	Navigation   NavigationConfig   `yaml:"navigation" toml:"navigation"`
	Minimap      MinimapConfig      `yaml:"minimap" toml:"minimap"`
	Loot         LootConfig         `yaml:"loot" toml:"loot"`
	Runtime      RuntimeConfig      `yaml:"runtime" toml:"runtime"`
}

// ScreenConfig contains capture settings
type ScreenConfig struct {
	Display    int `yaml:"display" toml:"display" env:"CAVEBOT_DISPLAY"`
	Width      int `yaml:"width" toml:"width"`
	Height     int `yaml:"height" toml:"height"`
	CaptureFPS int `yaml:"capture_fps" toml:"capture_fps"`
}

// ViewportConfig is the pixel geometry of the game world view (centred on the character)
type ViewportConfig struct {
	Left     int `yaml:"left" toml:"left"`
	Top      int `yaml:"top" toml:"top"`
	Width    int `yaml:"width" toml:"width"`
	Height   int `yaml:"height" toml:"height"`
	CenterX  int `yaml:"center_x" toml:"center_x"`   // screen x of the character tile centre
	CenterY  int `yaml:"center_y" toml:"center_y"`   // screen y of the character tile centre
	TileSize int `yaml:"tile_size" toml:"tile_size"` // pixels per game tile at default zoom
}

// Center returns the character tile centre
func (v ViewportConfig) Center() image.Point {
	return image.Pt(v.CenterX, v.CenterY)
}

// Rect returns the viewport bounds
func (v ViewportConfig) Rect() image.Rectangle {
	return image.Rect(v.Left, v.Top, v.Left+v.Width, v.Top+v.Height)
}

// CoordDisplayConfig is the screen region showing the X, Y, Z coordinates
type CoordDisplayConfig struct {
	X      int `yaml:"x" toml:"x"`
	Y      int `yaml:"y" toml:"y"`
	Width  int `yaml:"width" toml:"width"`
	Height int `yaml:"height" toml:"height"`
}

// Rect returns the region as a rectangle
func (c CoordDisplayConfig) Rect() image.Rectangle {
	return image.Rect(c.X, c.Y, c.X+c.Width, c.Y+c.Height)
}

// HealingConfig contains recovery thresholds and keys
type HealingConfig struct {
	HPThreshold   float64 `yaml:"hp_threshold" toml:"hp_threshold"`
	HealKey       string  `yaml:"heal_key" toml:"heal_key"`
	ManaThreshold float64 `yaml:"mana_threshold" toml:"mana_threshold"`
	ManaKey       string  `yaml:"mana_key" toml:"mana_key"` // empty = mana module disabled
}

// CombatConfig contains attack timings
type CombatConfig struct {
	AttackKey           string  `yaml:"attack_key" toml:"attack_key"`
	StuckTimeout        float64 `yaml:"stuck_timeout" toml:"stuck_timeout"`               // seconds without position change = stuck
	UnreachableCooldown float64 `yaml:"unreachable_cooldown" toml:"unreachable_cooldown"` // seconds before retrying that area
	// Row and column offset from the enemy pixel to the attack indicator corner
	AttackIndicatorOffset []int `yaml:"attack_indicator_offset" toml:"attack_indicator_offset"`
}

// IndicatorOffset returns the attack indicator offset as an (x, y) point
func (c CombatConfig) IndicatorOffset() image.Point {
	if len(c.AttackIndicatorOffset) != 2 {
		return image.Pt(-10, -10)
	}
	return image.Pt(c.AttackIndicatorOffset[1], c.AttackIndicatorOffset[0])
}

// NavigationConfig contains coordinate waypoint settings
type NavigationConfig struct {
	Enabled           bool    `yaml:"enabled" toml:"enabled"`
	Strategy          string  `yaml:"strategy" toml:"strategy"` // coordinates | minimap
	WaypointsFile     string  `yaml:"waypoints_file" toml:"waypoints_file"`
	Waypoints         [][]int `yaml:"waypoints" toml:"waypoints"` // inline fallback, ignored when WaypointsFile is set
	WaypointTolerance int     `yaml:"waypoint_tolerance" toml:"waypoint_tolerance"`
	MoveInterval      float64 `yaml:"move_interval" toml:"move_interval"`

	// Route is resolved from WaypointsFile or Waypoints during Load
	Route []Waypoint `yaml:"-" toml:"-"`
}

// MinimapConfig contains the visual odometry settings
type MinimapConfig struct {
	Enabled       bool    `yaml:"enabled" toml:"enabled"`
	X             int     `yaml:"x" toml:"x"`
	Y             int     `yaml:"y" toml:"y"`
	Width         int     `yaml:"width" toml:"width"`
	Height        int     `yaml:"height" toml:"height"`
	TemplateSize  int     `yaml:"template_size" toml:"template_size"`
	ArrivalPx     int     `yaml:"arrival_px" toml:"arrival_px"`
	MoveInterval  float64 `yaml:"move_interval" toml:"move_interval"`
	StuckTimeout  float64 `yaml:"stuck_timeout" toml:"stuck_timeout"`
	WaypointsFile string  `yaml:"waypoints_file" toml:"waypoints_file"`
}

// Rect returns the minimap bounds
func (m MinimapConfig) Rect() image.Rectangle {
	return image.Rect(m.X, m.Y, m.X+m.Width, m.Y+m.Height)
}

// LootConfig contains loot handoff and whitelist settings
type LootConfig struct {
	Enabled        bool     `yaml:"enabled" toml:"enabled"`
	DelayAfterKill float64  `yaml:"delay_after_kill" toml:"delay_after_kill"`
	TemplatesDir   string   `yaml:"templates_dir" toml:"templates_dir"`
	Whitelist      []string `yaml:"whitelist" toml:"whitelist"` // ["*"] = take everything
	ScanRegion     *Region  `yaml:"scan_region,omitempty" toml:"scan_region,omitempty"`
}

// Region is an optional rectangle in config files
type Region struct {
	X      int `yaml:"x" toml:"x"`
	Y      int `yaml:"y" toml:"y"`
	Width  int `yaml:"width" toml:"width"`
	Height int `yaml:"height" toml:"height"`
}

// Rect returns the region as a rectangle (empty for nil)
func (r *Region) Rect() image.Rectangle {
	if r == nil {
		return image.Rectangle{}
	}
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// RuntimeConfig holds process-level knobs, overridable from the environment
type RuntimeConfig struct {
	Debug     bool   `yaml:"debug" toml:"debug" env:"CAVEBOT_DEBUG"`
	LogFormat string `yaml:"log_format" toml:"log_format" env:"CAVEBOT_LOG_FORMAT"`
	AssetsDir string `yaml:"assets_dir" toml:"assets_dir" env:"CAVEBOT_ASSETS_DIR"` // anchor templates (battle/follow/health/mana)
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Screen: ScreenConfig{Width: 2560, Height: 1440, CaptureFPS: 20},
		Viewport: ViewportConfig{
			Width: 1700, Height: 1280,
			CenterX: 1185, CenterY: 610,
			TileSize: 64,
		},
		CoordDisplay: CoordDisplayConfig{X: 1820, Y: 372, Width: 180, Height: 14},
		Healing: HealingConfig{
			HPThreshold:   70,
			HealKey:       "f1",
			ManaThreshold: 30,
		},
		Combat: CombatConfig{
			AttackKey:             "space",
			StuckTimeout:          3,
			UnreachableCooldown:   30,
			AttackIndicatorOffset: []int{-10, -10},
		},
		Navigation: NavigationConfig{
			Enabled:           true,
			WaypointTolerance: 2,
			MoveInterval:      0.9,
		},
		Minimap: MinimapConfig{
			X: 1633, Y: 44, Width: 106, Height: 109,
			TemplateSize: 40,
			ArrivalPx:    8,
			MoveInterval: 0.9,
			StuckTimeout: 5,
		},
		Loot: LootConfig{
			Enabled:        true,
			DelayAfterKill: 1.5,
			TemplatesDir:   "loot",
		},
		Runtime: RuntimeConfig{
			LogFormat: "text",
			AssetsDir: "images",
		},
	}
}

// Load reads a YAML or TOML configuration file on top of the defaults.
// A missing file is not an error: defaults are returned with a notice.
// Notices are human-readable lines the caller should log.
func Load(path string) (*Config, []string, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg := Default()
	var notices []string

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		notices = append(notices, fmt.Sprintf("%s not found - using defaults", path))
	case err != nil:
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := decode(path, data, cfg); err != nil {
			return nil, nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, nil, fmt.Errorf("parse env: %w", err)
	}

	notices = append(notices, cfg.resolveRoute()...)

	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, notices, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

// resolveRoute fills Navigation.Route from the waypoints file or the inline list
func (c *Config) resolveRoute() []string {
	n := &c.Navigation
	if n.WaypointsFile != "" {
		wps, err := LoadCoordinateWaypoints(n.WaypointsFile)
		if err != nil {
			n.Route = nil
			return []string{fmt.Sprintf("Could not load waypoints_file %q: %v", n.WaypointsFile, err)}
		}
		n.Route = wps
		return []string{fmt.Sprintf("Loaded %d waypoints from %s", len(wps), n.WaypointsFile)}
	}

	n.Route = n.Route[:0]
	for i, raw := range n.Waypoints {
		wp, err := waypointFromSlice(raw)
		if err != nil {
			return []string{fmt.Sprintf("Inline waypoint %d ignored: %v", i, err)}
		}
		n.Route = append(n.Route, wp)
	}
	return nil
}

// ActiveStrategy returns the navigation strategy selected for this run
func (c *Config) ActiveStrategy() string {
	if c.Navigation.Strategy != "" {
		return c.Navigation.Strategy
	}
	if c.Minimap.Enabled {
		return StrategyMinimap
	}
	return StrategyCoordinates
}

// TakeAll reports whether the loot whitelist contains the wildcard marker
func (l LootConfig) TakeAll() bool {
	for _, name := range l.Whitelist {
		if name == constants.LootWildcard {
			return true
		}
	}
	return false
}

// Validate checks values the modules cannot work around
func Validate(cfg *Config) error {
	var errs []error
	if cfg.Screen.CaptureFPS <= 0 {
		errs = append(errs, errors.New("screen.capture_fps must be positive"))
	}
	if cfg.Screen.Width <= 0 || cfg.Screen.Height <= 0 {
		errs = append(errs, errors.New("screen.width and screen.height must be positive"))
	}
	if cfg.Viewport.TileSize <= 0 {
		errs = append(errs, errors.New("viewport.tile_size must be positive"))
	}
	if cfg.Navigation.WaypointTolerance < 0 {
		errs = append(errs, errors.New("navigation.waypoint_tolerance must not be negative"))
	}
	if len(cfg.Combat.AttackIndicatorOffset) != 0 && len(cfg.Combat.AttackIndicatorOffset) != 2 {
		errs = append(errs, errors.New("combat.attack_indicator_offset must have two values (row, col)"))
	}
	switch s := cfg.ActiveStrategy(); s {
	case StrategyCoordinates, StrategyMinimap:
	default:
		errs = append(errs, fmt.Errorf("navigation.strategy %q is not one of %q, %q", s, StrategyCoordinates, StrategyMinimap))
	}
	return errors.Join(errs...)
}

// Seconds converts a float seconds config value into a duration
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
