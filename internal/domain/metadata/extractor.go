package metadata

import (
	"bytes"
	"context"
	"errors"

	"github.com/okian/postflow/internal/domain/model"
	"github.com/okian/postflow/pkg/logger"
)

// Result is the outcome of extracting one asset. Exif and Dimensions are nil
// when unavailable. Err is informational only and never aborts a publish.
type Result struct {
	Exif       *model.ExifMetadata
	Dimensions *Dimensions
	Err        error
}

// Extractor combines EXIF parsing, manual overrides and dimension probing.
type Extractor struct {
	opener Opener
	log    logger.Logger
}

// NewExtractor creates an Extractor. Dimensions are probed from the in-memory
// binary first and from the stored object through opener when that fails.
// opener may be nil.
func NewExtractor(opener Opener, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Extractor{opener: opener, log: log}
}

// Extract parses data, applies manual overrides and probes dimensions.
func (e *Extractor) Extract(ctx context.Context, data []byte, url string, manual *model.ExifMetadata) Result {
	var res Result

	parsed, err := Parse(bytes.NewReader(data))
	if err != nil {
		e.log.Debug(ctx, "exif extraction skipped", logger.String("url", url), logger.Error(err))
	}
	res.Exif = Merge(parsed, manual)

	dims, err := Probe(bytes.NewReader(data))
	if err != nil && e.opener != nil && url != "" {
		e.log.Debug(ctx, "in-memory probe failed, reading stored object", logger.String("url", url), logger.Error(err))
		dims, err = ProbeStored(ctx, e.opener, url)
	}
	if err != nil {
		e.log.Warn(ctx, "dimension probe failed", logger.String("url", url), logger.Error(err))
		res.Err = errors.Join(res.Err, err)
	}
	res.Dimensions = dims
	return res
}
