package constants

import (
	"image/color"
	"time"
)

// Module tick rates
const (
	CaptureStartupTimeout = 5 * time.Second        // Fatal if no frame arrives within this window
	AnchorRetryInterval   = 1 * time.Second        // Anchor template search retry (1 Hz)
	ResourceTickInterval  = 50 * time.Millisecond  // Health / Mana (20 Hz)
	CombatTickInterval    = 50 * time.Millisecond  // Combat (20 Hz)
	LootPollInterval      = 100 * time.Millisecond // Loot handoff polling
	NavigationInterval    = 100 * time.Millisecond // Navigation (10 Hz)
	NavigationYieldWait   = 150 * time.Millisecond // Sleep while combat/loot has priority
	NavigationArrivedWait = 300 * time.Millisecond // Pause after reaching a waypoint
	NavigationStaleWait   = 200 * time.Millisecond // Pause while position data is stale
)

// Combat
const (
	BattlePixelOffsetX = 6  // Enemy pixel relative to battle.png match
	BattlePixelOffsetY = 20 //
	MoveResetWindow    = 500 * time.Millisecond // Any movement inside this window resets the stall timer
	RetargetGrace      = 500 * time.Millisecond // Indicator may lag behind the attack key press
	IndicatorSize      = 3                      // Attack indicator region is IndicatorSize x IndicatorSize
	IndicatorMinRed    = 3                      // Red pixels required in the region
)

// Resource bars
const (
	BarWidth      = 92 // Pixel width of a resource bar at 100%
	BarTolerance  = 12 // Per-channel tolerance for fill color
	HealthOffsetX = 5
	HealthOffsetY = 7
	ManaOffsetX   = 5
	ManaOffsetY   = 6
	HealCooldown  = 800 * time.Millisecond
	ManaCooldown  = 1 * time.Second
)

// Loot
const (
	LootJitterMin       = 2
	LootJitterMax       = 8
	LootTakeAllClickGap = 60 * time.Millisecond
	LootContainerWait   = 350 * time.Millisecond // Let the container window render
	LootTakeGap         = 120 * time.Millisecond
	LootCloseWait       = 100 * time.Millisecond
	LootWildcard        = "*"
)

// Navigation
const (
	PositionStaleAfter   = 5 * time.Second // Last known position is trusted this long
	OCRFailureLogEvery   = 20
	MinimapMinConfidence = 0.65
	MinimapDotRadius     = 4
	MinimapMotionThresh  = 0.8 // Mean absolute gray diff that counts as "moved"
	MinimapClickTiles    = 3
	PositionHistorySize  = 20
)

// Image Matching
const (
	DefaultTolerance = 60    // Color tolerance for pixel comparison
	LootTolerance    = 45    // Item icons sit on textured slots, keep it tighter
	MaxFailRate      = 0.03  // Allow up to 3% of pixels to fail matching
	MaxPixelDiff     = 150.0 // Maximum allowed color diff for any pixel (reject if exceeded)
)

// Colors
var (
	EmptyBattleColor = color.RGBA{R: 70, G: 70, B: 70, A: 255}
	HealthBarColor   = color.RGBA{R: 255, G: 113, B: 113, A: 255}
	ManaBarColor     = color.RGBA{R: 101, G: 98, B: 240, A: 255}
)

// Asset file names under the images directory
const (
	BattleAnchor = "battle.png"
	FollowAnchor = "follow.png"
	HealthAnchor = "health.png"
	ManaAnchor   = "mana.png"
)
