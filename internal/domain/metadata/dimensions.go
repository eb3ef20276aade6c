package metadata

import (
	"context"
	"fmt"
	"image"
	"io"

	// Decoders for DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Dimensions are the natural pixel size of an image.
type Dimensions struct {
	Width       int
	Height      int
	AspectRatio float64
}

// Opener reads back a stored object by url.
type Opener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// Probe reads only the image header from r.
func Probe(r io.Reader) (*Dimensions, error) {
	const op = "metadata.probe"

	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%s: %w: %s reports %dx%d", op, ErrUnsupportedImage, format, cfg.Width, cfg.Height)
	}
	return &Dimensions{
		Width:       cfg.Width,
		Height:      cfg.Height,
		AspectRatio: float64(cfg.Width) / float64(cfg.Height),
	}, nil
}

// ProbeStored loads an uploaded asset back from the object store and probes it.
func ProbeStored(ctx context.Context, o Opener, url string) (*Dimensions, error) {
	const op = "metadata.probe_stored"

	rc, err := o.Open(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%s: open %s: %w", op, url, err)
	}
	defer func() { _ = rc.Close() }()
	return Probe(rc)
}
