package service_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync/atomic"

	"github.com/okian/postflow/internal/adapters/blob"
	"github.com/okian/postflow/internal/adapters/mq/worker"
	"github.com/okian/postflow/internal/domain/model"
	"github.com/okian/postflow/internal/domain/upload"
)

const baseURL = "http://assets.test"

// objects wraps the in-memory object store with failure switches.
type objects struct {
	*blob.MemoryStore
	failPut     atomic.Bool
	failResolve atomic.Bool
}

func newObjects() *objects {
	return &objects{MemoryStore: blob.NewMemoryStore(baseURL)}
}

func (o *objects) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) (string, error) {
	if o.failPut.Load() {
		return "", errors.New("bucket unavailable")
	}
	return o.MemoryStore.Put(ctx, path, r, size, contentType)
}

func (o *objects) Resolve(ctx context.Context, url string) error {
	if o.failResolve.Load() {
		return upload.ErrObjectNotFound
	}
	return o.MemoryStore.Resolve(ctx, url)
}

// events records every relayed post event.
type events struct {
	ch chan worker.Event
}

func newEvents() *events { return &events{ch: make(chan worker.Event, 16)} }

func (e *events) Publish(_ context.Context, ev worker.Event) error {
	e.ch <- ev
	return nil
}

func pngBytes(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func identity(id string) *model.Identity {
	return &model.Identity{UserID: id, DisplayName: "Photographer " + id, Email: id + "@example.com"}
}
