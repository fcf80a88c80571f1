package screen

import (
	"image"
	"image/color"
	"math"
)

// ReadBarPercent returns the fill level of a solid-color bar as 0-100.
// The row at (left, y) is scanned right to left for the last pixel whose
// channels are each within tolerance of fill.
func ReadBarPercent(frame image.Image, left, y, width int, fill color.RGBA, tolerance int) float64 {
	if frame == nil || width <= 0 {
		return 0
	}
	b := frame.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return 0
	}

	for i := width - 1; i >= 0; i-- {
		x := left + i
		if x < b.Min.X || x >= b.Max.X {
			continue
		}
		r, g, bl, _ := rgba(frame, x, y)
		if abs(r-int(fill.R)) <= tolerance && abs(g-int(fill.G)) <= tolerance && abs(bl-int(fill.B)) <= tolerance {
			return math.Round(float64(i+1)/float64(width)*1000) / 10
		}
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
