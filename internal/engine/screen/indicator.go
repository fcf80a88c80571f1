package screen

import (
	"image"
	"image/color"

	"github.com/ConserveLee/cavebot/internal/constants"
)

// EnemyPresent reports whether the battle-list pixel differs from the empty color
func EnemyPresent(frame image.Image, pixel image.Point, empty color.RGBA) bool {
	if frame == nil || !pixel.In(frame.Bounds()) {
		return false
	}
	r, g, b, _ := rgba(frame, pixel.X, pixel.Y)
	return r != int(empty.R) || g != int(empty.G) || b != int(empty.B)
}

// AttackIndicator reports whether the red target frame is drawn around the
// battle-list entry. corner is the top-left of the sampled square.
func AttackIndicator(frame image.Image, corner image.Point) bool {
	if frame == nil {
		return false
	}
	bounds := frame.Bounds()
	red := 0
	for dy := 0; dy < constants.IndicatorSize; dy++ {
		for dx := 0; dx < constants.IndicatorSize; dx++ {
			p := corner.Add(image.Pt(dx, dy))
			if !p.In(bounds) {
				continue
			}
			r, g, b, _ := rgba(frame, p.X, p.Y)
			if r > 200 && g < 50 && b < 50 {
				red++
			}
		}
	}
	return red >= constants.IndicatorMinRed
}
