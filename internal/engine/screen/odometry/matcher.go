// Package odometry locates recorded minimap crops inside the live minimap.
package odometry

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/ConserveLee/cavebot/internal/constants"
	"gocv.io/x/gocv"
)

// Match is the offset from the minimap centre to the matched template centre
type Match struct {
	DX, DY     int
	Confidence float64
}

// Matcher finds waypoint templates in the minimap and detects minimap motion
type Matcher interface {
	// Load reads grayscale templates. Unreadable files are skipped and reported in err.
	Load(paths []string) (loaded int, err error)
	Len() int
	Locate(minimap image.Image, index int) (Match, bool)
	// Moved compares against the previous call's minimap
	Moved(minimap image.Image) bool
	ResetMotion()
	Close() error
}

// GoCVMatcher implements Matcher with OpenCV normalized cross-correlation
type GoCVMatcher struct {
	mu        sync.Mutex
	templates []gocv.Mat
	masks     []gocv.Mat
	last      gocv.Mat
	hasLast   bool
}

// NewGoCVMatcher creates an empty matcher
func NewGoCVMatcher() *GoCVMatcher {
	return &GoCVMatcher{last: gocv.NewMat()}
}

// Load implements Matcher
func (m *GoCVMatcher) Load(paths []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, p := range paths {
		tmpl := gocv.IMRead(p, gocv.IMReadGrayScale)
		if tmpl.Empty() {
			tmpl.Close()
			errs = append(errs, fmt.Errorf("could not load template %s", p))
			continue
		}
		m.templates = append(m.templates, tmpl)
		m.masks = append(m.masks, dotMask(tmpl.Rows(), tmpl.Cols()))
	}
	return len(m.templates), errors.Join(errs...)
}

// dotMask blanks the player dot at the template centre
func dotMask(rows, cols int) gocv.Mat {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), rows, cols, gocv.MatTypeCV8U)
	gocv.Circle(&mask, image.Pt(cols/2, rows/2), constants.MinimapDotRadius, color.RGBA{}, -1)
	return mask
}

// Len implements Matcher
func (m *GoCVMatcher) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.templates)
}

// Locate implements Matcher
func (m *GoCVMatcher) Locate(minimap image.Image, index int) (Match, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.templates) {
		return Match{}, false
	}
	gray, err := toGray(minimap)
	if err != nil {
		return Match{}, false
	}
	defer gray.Close()

	tmpl := m.templates[index]
	if gray.Rows() < tmpl.Rows() || gray.Cols() < tmpl.Cols() {
		return Match{}, false
	}

	result := gocv.NewMat()
	defer result.Close()
	gocv.MatchTemplate(gray, tmpl, &result, gocv.TmCcorrNormed, m.masks[index])
	if result.Empty() {
		return Match{}, false
	}
	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
	if float64(maxVal) < constants.MinimapMinConfidence {
		return Match{}, false
	}

	matchX := maxLoc.X + tmpl.Cols()/2
	matchY := maxLoc.Y + tmpl.Rows()/2
	return Match{
		DX:         matchX - gray.Cols()/2,
		DY:         matchY - gray.Rows()/2,
		Confidence: float64(maxVal),
	}, true
}

// Moved implements Matcher
func (m *GoCVMatcher) Moved(minimap image.Image) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	gray, err := toGray(minimap)
	if err != nil {
		return false
	}

	if !m.hasLast || m.last.Rows() != gray.Rows() || m.last.Cols() != gray.Cols() {
		m.last.Close()
		m.last = gray
		m.hasLast = true
		return true
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, m.last, &diff)
	moved := diff.Mean().Val1 > constants.MinimapMotionThresh

	m.last.Close()
	m.last = gray
	return moved
}

// ResetMotion forgets the previous minimap
func (m *GoCVMatcher) ResetMotion() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hasLast = false
}

// Close releases all OpenCV buffers
func (m *GoCVMatcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.templates {
		m.templates[i].Close()
		m.masks[i].Close()
	}
	m.templates, m.masks = nil, nil
	m.hasLast = false
	return m.last.Close()
}

func toGray(img image.Image) (gocv.Mat, error) {
	bgr, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer bgr.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(bgr, &gray, gocv.ColorRGBToGray)
	return gray, nil
}
