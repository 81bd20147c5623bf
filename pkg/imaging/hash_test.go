package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// uniformImage builds a w×h image filled with one gray value.
func uniformImage(w, h int, val uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = val
	}
	return img
}

// stripedImage alternates black and white vertical 1px stripes.
func stripedImage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func TestComputeHashesDeterministic(t *testing.T) {
	data := encodePNG(t, stripedImage(32, 32))

	first, err := ComputeHashes(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ComputeHashes(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != second {
		t.Errorf("hashes not deterministic: %+v vs %+v", first, second)
	}
}

func TestComputeHashesShape(t *testing.T) {
	data := encodePNG(t, uniformImage(16, 16, 200))

	h, err := ComputeHashes(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.ContentHash) != 64 {
		t.Errorf("content hash length = %d, want 64 hex chars", len(h.ContentHash))
	}
	if len(h.PerceptualHash) != 16 {
		t.Errorf("perceptual hash length = %d, want 16 hex chars", len(h.PerceptualHash))
	}
}

func TestContentHashDiffersPerceptualSurvivesReencode(t *testing.T) {
	base := stripedImage(32, 32)

	plain := encodePNG(t, base)

	// Encode the same pixels at a different compression level: bytes change,
	// pixels do not.
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	if err := enc.Encode(&buf, base); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	recompressed := buf.Bytes()

	h1, err := ComputeHashes(plain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := ComputeHashes(recompressed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if h1.ContentHash == h2.ContentHash {
		t.Error("content hashes should differ for different byte streams")
	}
	if h1.PerceptualHash != h2.PerceptualHash {
		t.Errorf("perceptual hash should survive re-encoding: %s vs %s", h1.PerceptualHash, h2.PerceptualHash)
	}
}

func TestComputeHashesUndecodableInput(t *testing.T) {
	if _, err := ComputeHashes([]byte("not an image at all")); err == nil {
		t.Error("expected an error for undecodable input")
	}
}
