package modules

import (
	"image"
	"math"

	"github.com/ConserveLee/cavebot/internal/config"
	"github.com/ConserveLee/cavebot/internal/engine/state"
)

// WaypointReached is the coordinate arrival test. Floors must match exactly.
func WaypointReached(pos, target state.Position, tolerance int) bool {
	return abs(target.X-pos.X) <= tolerance && abs(target.Y-pos.Y) <= tolerance && pos.Z == target.Z
}

// TileClickPoint returns the viewport pixel to click to walk dx, dy tiles.
// The step is clamped to the visible tiles with a one tile margin.
func TileClickPoint(vp config.ViewportConfig, dx, dy int) image.Point {
	halfX := (vp.Width/vp.TileSize)/2 - 1
	halfY := (vp.Height/vp.TileSize)/2 - 1

	dx = clamp(dx, -halfX, halfX)
	dy = clamp(dy, -halfY, halfY)

	return clampToViewport(vp, image.Pt(vp.CenterX+dx*vp.TileSize, vp.CenterY+dy*vp.TileSize))
}

// DirectionClickPoint returns the pixel tiles tiles away from the character along (dx, dy).
// ok is false when the direction has no length.
func DirectionClickPoint(vp config.ViewportConfig, dx, dy, tiles int) (image.Point, bool) {
	dist := math.Hypot(float64(dx), float64(dy))
	if dist < 1 {
		return image.Point{}, false
	}
	nx, ny := float64(dx)/dist, float64(dy)/dist
	reach := float64(vp.TileSize * tiles)
	p := image.Pt(vp.CenterX+int(nx*reach), vp.CenterY+int(ny*reach))
	return clampToViewport(vp, p), true
}

func clampToViewport(vp config.ViewportConfig, p image.Point) image.Point {
	p.X = clamp(p.X, vp.Left+vp.TileSize, vp.Left+vp.Width-vp.TileSize)
	p.Y = clamp(p.Y, vp.Top+vp.TileSize, vp.Top+vp.Height-vp.TileSize)
	return p
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
