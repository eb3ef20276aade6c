// Package metadata extracts camera metadata and pixel dimensions from image assets.
package metadata

import (
	"bytes"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"github.com/okian/postflow/internal/domain/model"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// exifDateLayout is how dates are rendered in ExifMetadata.Date.
const exifDateLayout = "2006-01-02T15:04:05"

// Parse decodes EXIF from a raw TIFF or JPEG stream. It returns ErrNoMetadata
// when the stream carries no readable EXIF block or no recognised tags, and
// ErrMalformedExif when a directory declares values larger than the block.
// Only a block that passed that check reaches the decoder.
func Parse(r io.Reader) (*model.ExifMetadata, error) {
	const op = "metadata.parse"

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	block, err := exifBlock(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrNoMetadata, err)
	}
	if err := checkDirectories(block); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	x, err := exif.Decode(bytes.NewReader(block))
	if x == nil {
		// No usable EXIF block. Non-critical tag errors still yield x.
		return nil, fmt.Errorf("%s: %w: %v", op, ErrNoMetadata, err)
	}

	m := &model.ExifMetadata{
		Make:         stringTag(x, exif.Make),
		Model:        stringTag(x, exif.Model),
		Lens:         stringTag(x, exif.LensModel),
		FocalLength:  focalLength(x),
		Aperture:     aperture(x),
		ISO:          intTag(x, exif.ISOSpeedRatings),
		ShutterSpeed: shutterSpeed(x),
	}
	if ts, err := x.DateTime(); err == nil {
		m.Date = ts.Format(exifDateLayout)
	}
	if m.IsZero() {
		return nil, ErrNoMetadata
	}
	return m, nil
}

func stringTag(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil || tag.Format() != tiff.StringVal {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

func intTag(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil || tag.Format() != tiff.IntVal {
		return ""
	}
	v, err := tag.Int(0)
	if err != nil || v <= 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func ratTag(x *exif.Exif, name exif.FieldName) *big.Rat {
	tag, err := x.Get(name)
	if err != nil || tag.Format() != tiff.RatVal {
		return nil
	}
	r, err := tag.Rat(0)
	if err != nil || r.Sign() <= 0 {
		return nil
	}
	return r
}

func focalLength(x *exif.Exif) string {
	r := ratTag(x, exif.FocalLength)
	if r == nil {
		return ""
	}
	f, _ := r.Float64()
	return strconv.FormatFloat(f, 'f', -1, 64) + "mm"
}

func aperture(x *exif.Exif) string {
	r := ratTag(x, exif.FNumber)
	if r == nil {
		return ""
	}
	f, _ := r.Float64()
	return "f/" + strconv.FormatFloat(f, 'f', -1, 64)
}

func shutterSpeed(x *exif.Exif) string {
	r := ratTag(x, exif.ExposureTime)
	if r == nil {
		return ""
	}
	f, _ := r.Float64()
	return FormatExposure(f)
}

// FormatExposure renders an exposure time in seconds the way photographers
// read it: "1/250" below one second, "2s" otherwise.
func FormatExposure(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	if seconds < 1 {
		return "1/" + strconv.Itoa(int(1/seconds+0.5))
	}
	return strconv.FormatFloat(seconds, 'f', -1, 64) + "s"
}

// Merge overlays manual values on extracted ones field by field.
// Either argument may be nil; the result is nil when both are empty.
func Merge(extracted, manual *model.ExifMetadata) *model.ExifMetadata {
	var out model.ExifMetadata
	if extracted != nil {
		out = *extracted
	}
	if manual != nil {
		override(&out.Make, manual.Make)
		override(&out.Model, manual.Model)
		override(&out.Lens, manual.Lens)
		override(&out.FocalLength, manual.FocalLength)
		override(&out.Aperture, manual.Aperture)
		override(&out.ISO, manual.ISO)
		override(&out.ShutterSpeed, manual.ShutterSpeed)
		override(&out.Date, manual.Date)
	}
	if out.IsZero() {
		return nil
	}
	return &out
}

func override(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
