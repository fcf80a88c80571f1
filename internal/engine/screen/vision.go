package screen

import (
	"fmt"
	"image"
	"math"

	"github.com/ConserveLee/cavebot/internal/constants"
	"github.com/vcaesar/imgo"
)

// Searcher handles template loading and matching against captured frames
type Searcher struct {
	MaxFailRate  float64 // Share of opaque template pixels allowed to miss
	MaxPixelDiff float64 // Any single pixel further than this rejects the position
}

// NewSearcher creates a new instance
func NewSearcher() *Searcher {
	return &Searcher{
		MaxFailRate:  constants.MaxFailRate,
		MaxPixelDiff: constants.MaxPixelDiff,
	}
}

// LoadImage loads an image from the filesystem
func (s *Searcher) LoadImage(path string) (image.Image, error) {
	img, err := imgo.Read(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return img, nil
}

// SaveDebugFrame writes an image to disk for calibration
func (s *Searcher) SaveDebugFrame(path string, img image.Image) error {
	return imgo.Save(path, img)
}

// FindTemplate searches for the 'template' image inside the 'screen' image.
// Returns x, y (top-left) and true if found.
func (s *Searcher) FindTemplate(screenImg, templateImg image.Image, tolerance float64) (int, int, bool) {
	matches := s.FindAllTemplates(screenImg, templateImg, tolerance)
	if len(matches) > 0 {
		return matches[0].X, matches[0].Y, true
	}
	return 0, 0, false
}

// FindAllTemplates searches for ALL occurrences of 'template' in 'screen'.
// Returns a slice of coordinates (top-left).
func (s *Searcher) FindAllTemplates(screenImg, templateImg image.Image, tolerance float64) []image.Point {
	return s.FindAllTemplatesInROI(screenImg, templateImg, screenImg.Bounds(), tolerance)
}

// FindAllTemplatesInROI searches for templates only within the specified ROI (Region of Interest).
// The ROI is specified in screen coordinates. Results are also in screen coordinates.
// If roi is empty (zero rect), falls back to full screen search.
func (s *Searcher) FindAllTemplatesInROI(screenImg, templateImg image.Image, roi image.Rectangle, tolerance float64) []image.Point {
	if roi.Empty() {
		roi = screenImg.Bounds()
	}

	tBounds := templateImg.Bounds()
	tWidth, tHeight := tBounds.Dx(), tBounds.Dy()

	// Clamp ROI to screen bounds
	searchArea := roi.Intersect(screenImg.Bounds())
	if searchArea.Dx() < tWidth || searchArea.Dy() < tHeight || tWidth == 0 || tHeight == 0 {
		return nil
	}

	// Key pixels for quick rejection: top-left, center, bottom-right
	keys := []image.Point{
		{0, 0},
		{tWidth / 2, tHeight / 2},
		{tWidth - 1, tHeight - 1},
	}
	type keyPixel struct {
		off     image.Point
		r, g, b int
	}
	var quick []keyPixel
	for _, k := range keys {
		r, g, b, a := rgba(templateImg, tBounds.Min.X+k.X, tBounds.Min.Y+k.Y)
		if a > 0 {
			quick = append(quick, keyPixel{off: k, r: r, g: g, b: b})
		}
	}

	var matches []image.Point
	for y := searchArea.Min.Y; y <= searchArea.Max.Y-tHeight; y++ {
	scan:
		for x := searchArea.Min.X; x <= searchArea.Max.X-tWidth; x++ {
			for _, k := range quick {
				sr, sg, sb, _ := rgba(screenImg, x+k.off.X, y+k.off.Y)
				if colorDistance(sr, sg, sb, k.r, k.g, k.b) > tolerance {
					continue scan
				}
			}

			if s.match(screenImg, templateImg, x, y, tolerance) {
				matches = append(matches, image.Point{X: x, Y: y})
				x += tWidth / 2
			}
		}
	}

	return matches
}

// match runs the full fail-rate comparison at one position.
// Transparent template pixels act as wildcards.
func (s *Searcher) match(screenImg, templateImg image.Image, sx, sy int, tolerance float64) bool {
	tBounds := templateImg.Bounds()
	totalPixels := 0
	failedPixels := 0

	for ty := 0; ty < tBounds.Dy(); ty++ {
		for tx := 0; tx < tBounds.Dx(); tx++ {
			tr, tg, tb, ta := rgba(templateImg, tBounds.Min.X+tx, tBounds.Min.Y+ty)
			if ta == 0 {
				continue
			}

			totalPixels++
			sr, sg, sb, _ := rgba(screenImg, sx+tx, sy+ty)
			diff := colorDistance(sr, sg, sb, tr, tg, tb)
			if s.MaxPixelDiff > 0 && diff > s.MaxPixelDiff {
				return false
			}
			if diff > tolerance {
				failedPixels++
				if totalPixels > 100 && float64(failedPixels)/float64(totalPixels) > s.MaxFailRate {
					return false
				}
			}
		}
	}

	if totalPixels == 0 {
		return false
	}
	return float64(failedPixels)/float64(totalPixels) <= s.MaxFailRate
}

// rgba returns color components normalized to 0-255
func rgba(img image.Image, x, y int) (r, g, b, a int) {
	cr, cg, cb, ca := img.At(x, y).RGBA()
	return int(cr >> 8), int(cg >> 8), int(cb >> 8), int(ca >> 8)
}

// colorDistance is the Euclidean distance in RGB space
func colorDistance(r1, g1, b1, r2, g2, b2 int) float64 {
	dr, dg, db := r1-r2, g1-g2, b1-b2
	return math.Sqrt(float64(dr*dr + dg*dg + db*db))
}
