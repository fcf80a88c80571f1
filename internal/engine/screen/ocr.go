package screen

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"regexp"
	"strconv"
	"sync"

	"github.com/nfnt/resize"
	"github.com/otiai10/gosseract/v2"
)

// ErrCapabilityUnavailable means an optional recognition backend is not installed
var ErrCapabilityUnavailable = errors.New("capability unavailable")

// ErrNoCoordinates means the OCR text did not contain an X, Y, Z triple
var ErrNoCoordinates = errors.New("no coordinates in text")

// Accepts "32372, 31949, 7", "32372,31949,7" and spacing variants
var coordPattern = regexp.MustCompile(`(\d{3,6})[,\s]+(\d{3,6})[,\s]+(\d{1,2})`)

const (
	ocrScale     = 3
	ocrThreshold = 100
	ocrWhitelist = "0123456789, "
)

// Coordinates is a world position read from the screen
type Coordinates struct {
	X, Y, Z int
}

// CoordReader turns the coordinate display region into world coordinates
type CoordReader interface {
	Check() error
	Read(region image.Image) (Coordinates, error)
}

// ParseCoordinates extracts the first X, Y, Z triple from OCR text
func ParseCoordinates(text string) (Coordinates, error) {
	m := coordPattern.FindStringSubmatch(text)
	if m == nil {
		return Coordinates{}, ErrNoCoordinates
	}
	x, _ := strconv.Atoi(m[1])
	y, _ := strconv.Atoi(m[2])
	z, _ := strconv.Atoi(m[3])
	return Coordinates{X: x, Y: y, Z: z}, nil
}

// OCRReader reads coordinates with Tesseract.
// The client is not goroutine safe, calls are serialized.
type OCRReader struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewOCRReader creates a Tesseract client configured for a single line of digits
func NewOCRReader() *OCRReader {
	return &OCRReader{}
}

// Check verifies Tesseract can run. It is called once before the first Read.
func (o *OCRReader) Check() (err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	// cgo failures surface as panics on some installs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: tesseract: %v", ErrCapabilityUnavailable, r)
		}
	}()

	if o.client == nil {
		client := gosseract.NewClient()
		if err := client.SetWhitelist(ocrWhitelist); err != nil {
			client.Close()
			return fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
		}
		if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
			client.Close()
			return fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
		}
		o.client = client
	}

	probe := image.NewGray(image.Rect(0, 0, 8, 8))
	if _, err := o.text(probe); err != nil {
		return fmt.Errorf("%w: tesseract: %v", ErrCapabilityUnavailable, err)
	}
	return nil
}

// Read runs OCR on the coordinate display region
func (o *OCRReader) Read(region image.Image) (Coordinates, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.client == nil {
		return Coordinates{}, ErrCapabilityUnavailable
	}
	text, err := o.text(Binarize(region))
	if err != nil {
		return Coordinates{}, err
	}
	return ParseCoordinates(text)
}

// Close releases the Tesseract client
func (o *OCRReader) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.client == nil {
		return nil
	}
	err := o.client.Close()
	o.client = nil
	return err
}

func (o *OCRReader) text(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	if err := o.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", err
	}
	return o.client.Text()
}

// Binarize upscales the region 3x and thresholds it to white text on black
func Binarize(region image.Image) *image.Gray {
	b := region.Bounds()
	scaled := resize.Resize(uint(b.Dx()*ocrScale), uint(b.Dy()*ocrScale), region, resize.NearestNeighbor)

	sb := scaled.Bounds()
	out := image.NewGray(image.Rect(0, 0, sb.Dx(), sb.Dy()))
	for y := 0; y < sb.Dy(); y++ {
		for x := 0; x < sb.Dx(); x++ {
			g := color.GrayModel.Convert(scaled.At(sb.Min.X+x, sb.Min.Y+y)).(color.Gray)
			if g.Y > ocrThreshold {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}
