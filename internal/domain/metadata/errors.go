package metadata

import "errors"

var (
	ErrNoMetadata       = errors.New("no exif metadata")
	ErrUnsupportedImage = errors.New("unsupported image")
	ErrMalformedExif    = errors.New("malformed exif block")
)
