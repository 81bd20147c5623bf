package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"

	// Register decoders for the formats the metadata layer accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// Hashes identify an image two ways: ContentHash is exact (sha256 of the
// bytes), Perceptual survives minor edits (8x8 average-luminance hash).
type Hashes struct {
	ContentHash    string
	PerceptualHash string
}

// ComputeHashes derives both hashes for blacklist lookups. Hashes are
// ephemeral per-call values; only blacklist membership persists anywhere.
func ComputeHashes(imageData []byte) (Hashes, error) {
	sum := sha256.Sum256(imageData)

	phash, err := averageHash(imageData)
	if err != nil {
		return Hashes{}, err
	}

	return Hashes{
		ContentHash:    hex.EncodeToString(sum[:]),
		PerceptualHash: fmt.Sprintf("%016X", phash),
	}, nil
}

// averageHash resamples the image to 8x8 grayscale, computes the mean
// intensity, and sets bit i when pixel i exceeds the mean. Near-duplicate
// images (recompressed, lightly edited) produce identical or close hashes.
func averageHash(imageData []byte) (uint64, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return 0, fmt.Errorf("decode image: %w", err)
	}

	small := image.NewGray(image.Rect(0, 0, 8, 8))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Over, nil)

	var pixels [64]uint8
	var sum int
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			p := small.GrayAt(x, y).Y
			pixels[y*8+x] = p
			sum += int(p)
		}
	}
	mean := float64(sum) / 64

	var hash uint64
	for i, p := range pixels {
		if float64(p) > mean {
			hash |= 1 << uint(i)
		}
	}
	return hash, nil
}

// grayscale converts an arbitrary decoded image to 8-bit luminance.
func grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}
