// Package upload stores post assets in an object store and reports progress.
package upload

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/okian/postflow/pkg/metrics"
)

// ObjectStore persists binaries under a path and hands back a public url.
type ObjectStore interface {
	Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) (string, error)
	// Resolve reports ErrObjectNotFound when url does not name a stored object.
	Resolve(ctx context.Context, url string) error
	// Delete is idempotent.
	Delete(ctx context.Context, url string) error
}

// Input is one asset to upload.
type Input struct {
	UserID      string
	Index       int
	Name        string
	ContentType string
	Body        io.Reader
	Size        int64
}

// Ref points at a stored asset.
type Ref struct {
	Index int
	Path  string
	URL   string
	Size  int64
}

// ProgressFunc receives bytes written so far and the expected total.
type ProgressFunc func(written, total int64)

// Uploader writes assets to an ObjectStore. It never retries; a failed
// upload must be resubmitted by the caller.
type Uploader struct {
	store ObjectStore
	now   func() time.Time
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithClock overrides the time source used in object paths.
func WithClock(now func() time.Time) Option {
	return func(u *Uploader) {
		if now != nil {
			u.now = now
		}
	}
}

// NewUploader creates an Uploader over store.
func NewUploader(store ObjectStore, opts ...Option) *Uploader {
	u := &Uploader{store: store, now: time.Now}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload stores one asset. onProgress may be nil.
func (u *Uploader) Upload(ctx context.Context, in Input, onProgress ProgressFunc) (Ref, error) {
	const op = "upload.upload"

	if in.Body == nil {
		return Ref{}, fmt.Errorf("%s: %w", op, ErrNilBody)
	}
	if in.UserID == "" {
		return Ref{}, fmt.Errorf("%s: %w", op, ErrEmptyUser)
	}

	start := time.Now()
	path := ObjectPath(in.UserID, u.now(), in.Index, in.Name)
	body := &progressReader{r: in.Body, total: in.Size, fn: onProgress}

	url, err := u.store.Put(ctx, path, body, in.Size, in.ContentType)
	if err != nil {
		metrics.RecordUploadFailure()
		return Ref{}, fmt.Errorf("%s: asset %d: %w: %w", op, in.Index, ErrUploadFailed, err)
	}
	metrics.RecordUpload(body.written, float64(time.Since(start).Nanoseconds())/1e6)
	return Ref{Index: in.Index, Path: path, URL: url, Size: body.written}, nil
}

// ObjectPath builds posts/{userID}/{unixMillis}_{index}_{name}.
func ObjectPath(userID string, at time.Time, index int, name string) string {
	var b strings.Builder
	b.WriteString("posts/")
	b.WriteString(Sanitize(userID))
	b.WriteByte('/')
	b.WriteString(strconv.FormatInt(at.UnixMilli(), 10))
	b.WriteByte('_')
	b.WriteString(strconv.Itoa(index))
	b.WriteByte('_')
	b.WriteString(Sanitize(name))
	return b.String()
}

const maxNameLen = 100

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Sanitize makes s safe as a single path segment.
func Sanitize(s string) string {
	s = unsafeChars.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.Trim(s, "._")
	if len(s) > maxNameLen {
		s = s[len(s)-maxNameLen:]
	}
	if s == "" {
		return "asset"
	}
	return s
}

type progressReader struct {
	r       io.Reader
	total   int64
	written int64
	fn      ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.written += int64(n)
		if p.fn != nil {
			p.fn(p.written, p.total)
		}
	}
	return n, err
}
