package imaging

import (
	"bytes"
	"image"
	"math"

	"github.com/rs/zerolog"
)

// Text-presence thresholds. Text regions show dense edges (glyph strokes)
// and high intensity variance against their background.
const (
	edgeDensityThreshold = 0.15
	varianceThreshold    = 500
	edgeMagnitude        = 50
)

// TextPresenceDetector decides whether OCR is worth invoking on an image.
// It only detects presence; actual OCR is an external collaborator.
type TextPresenceDetector struct {
	logger zerolog.Logger
}

func NewTextPresenceDetector(logger zerolog.Logger) *TextPresenceDetector {
	return &TextPresenceDetector{logger: logger.With().Str("component", "text_presence").Logger()}
}

// HasText returns true when edge density or intensity variance suggests
// rendered text. Any processing error returns true: fail toward doing more
// work, never silently skip a check meant to catch evasion.
func (d *TextPresenceDetector) HasText(imageData []byte) bool {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		d.logger.Warn().Err(err).Msg("decode failed, assuming text present")
		return true
	}

	gray := grayscale(img)
	edgeDensity := sobelEdgeDensity(gray)
	variance := intensityVariance(gray)

	hasText := edgeDensity > edgeDensityThreshold || variance > varianceThreshold
	d.logger.Debug().
		Float64("edge_density", edgeDensity).
		Float64("variance", variance).
		Bool("has_text", hasText).
		Msg("text presence detection")
	return hasText
}

// sobelEdgeDensity applies the 3x3 Sobel operator over interior pixels and
// returns the fraction whose gradient magnitude exceeds edgeMagnitude.
func sobelEdgeDensity(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	sobelX := [3][3]int{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}
	sobelY := [3][3]int{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}}

	edgePixels := 0
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			var gx, gy int
			for i := -1; i <= 1; i++ {
				for j := -1; j <= 1; j++ {
					intensity := int(gray.GrayAt(bounds.Min.X+x+j, bounds.Min.Y+y+i).Y)
					gx += intensity * sobelX[i+1][j+1]
					gy += intensity * sobelY[i+1][j+1]
				}
			}
			if math.Sqrt(float64(gx*gx+gy*gy)) > edgeMagnitude {
				edgePixels++
			}
		}
	}

	return float64(edgePixels) / float64(width*height)
}

// intensityVariance computes E[I^2] - E[I]^2 over the grayscale intensities.
func intensityVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	pixelCount := bounds.Dx() * bounds.Dy()
	if pixelCount == 0 {
		return 0
	}

	var sum, sumSquared float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			intensity := float64(gray.GrayAt(x, y).Y)
			sum += intensity
			sumSquared += intensity * intensity
		}
	}

	mean := sum / float64(pixelCount)
	return sumSquared/float64(pixelCount) - mean*mean
}
