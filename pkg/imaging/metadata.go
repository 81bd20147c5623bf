package imaging

import (
	"bytes"

	exif "github.com/dsoprea/go-exif/v3"
)

// Format identifies a supported image container.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatInvalid Format = "invalid"
)

var (
	magicJPEG = []byte{0xFF, 0xD8, 0xFF}
	magicPNG  = []byte{0x89, 0x50, 0x4E, 0x47}
	magicGIF  = []byte{0x47, 0x49, 0x46, 0x38}
)

// DetectFormat inspects the magic number at the start of the payload.
// Anything shorter than four bytes or with an unrecognized signature is
// treated as invalid.
func DetectFormat(data []byte) Format {
	if len(data) < 4 {
		return FormatInvalid
	}
	switch {
	case bytes.HasPrefix(data, magicJPEG):
		return FormatJPEG
	case bytes.HasPrefix(data, magicPNG):
		return FormatPNG
	case bytes.HasPrefix(data, magicGIF):
		return FormatGIF
	default:
		return FormatInvalid
	}
}

// ExtractEXIF pulls flat EXIF tags out of the image, best effort. A missing
// or corrupt EXIF block returns an empty map rather than an error since the
// tags are informational metadata only.
func ExtractEXIF(data []byte) map[string]string {
	tags := make(map[string]string)

	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return tags
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return tags
	}

	for _, entry := range entries {
		if entry.TagName == "" {
			continue
		}
		tags[entry.TagName] = entry.Formatted
	}
	return tags
}

// Metadata carries the non-gating facts gathered about an image during
// analysis. It rides alongside the analysis result for audit purposes.
type Metadata struct {
	Format         Format
	ContentHash    string
	PerceptualHash string
	HasText        bool
	EXIF           map[string]string
}
