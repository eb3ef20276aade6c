package upload_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/postflow/internal/adapters/blob"
	"github.com/okian/postflow/internal/domain/upload"
)

type failingStore struct{ upload.ObjectStore }

func (failingStore) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) (string, error) {
	return "", errors.New("bucket unavailable")
}

func TestObjectPath(t *testing.T) {
	Convey("Object paths follow posts/{user}/{millis}_{index}_{name}", t, func() {
		at := time.UnixMilli(1_700_000_000_123)
		So(upload.ObjectPath("u1", at, 2, "IMG 0001.JPG"), ShouldEqual, "posts/u1/1700000000123_2_IMG_0001.JPG")
		So(upload.ObjectPath("u1", at, 0, "../../etc/passwd"), ShouldEqual, "posts/u1/1700000000123_0_etc_passwd")
		So(upload.ObjectPath("u/1", at, 0, ""), ShouldEqual, "posts/u_1/1700000000123_0_asset")
	})
}

func TestUploader(t *testing.T) {
	Convey("Given an uploader over an in-memory store", t, func() {
		ctx := context.Background()
		store := blob.NewMemoryStore("http://cdn")
		at := time.UnixMilli(42)
		u := upload.NewUploader(store, upload.WithClock(func() time.Time { return at }))

		Convey("When an asset is uploaded with a progress callback", func() {
			data := bytes.Repeat([]byte("x"), 100_000)
			var last, total int64
			ref, err := u.Upload(ctx, upload.Input{
				UserID: "u1", Index: 1, Name: "fox.jpg", ContentType: "image/jpeg",
				Body: bytes.NewReader(data), Size: int64(len(data)),
			}, func(w, t int64) { last, total = w, t })

			Convey("Then the ref points at a resolvable object", func() {
				So(err, ShouldBeNil)
				So(ref.URL, ShouldEqual, "http://cdn/posts/u1/42_1_fox.jpg")
				So(ref.Size, ShouldEqual, int64(len(data)))
				So(store.Resolve(ctx, ref.URL), ShouldBeNil)
				So(last, ShouldEqual, int64(len(data)))
				So(total, ShouldEqual, int64(len(data)))
			})
		})

		Convey("When the body is missing", func() {
			_, err := u.Upload(ctx, upload.Input{UserID: "u1"}, nil)
			So(errors.Is(err, upload.ErrNilBody), ShouldBeTrue)
		})

		Convey("When the store rejects the write", func() {
			fu := upload.NewUploader(failingStore{store})
			_, err := fu.Upload(ctx, upload.Input{UserID: "u1", Body: bytes.NewReader([]byte("x")), Size: 1}, nil)
			So(errors.Is(err, upload.ErrUploadFailed), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "bucket unavailable")
		})
	})
}

func TestProgress(t *testing.T) {
	Convey("Given progress over two assets", t, func() {
		var (
			mu    sync.Mutex
			snaps []upload.Snapshot
		)
		p := upload.NewProgress([]int64{100, 300}, func(s upload.Snapshot) {
			mu.Lock()
			snaps = append(snaps, s)
			mu.Unlock()
		})

		Convey("Byte progress drives the fraction", func() {
			p.Track(0)(50, 100)
			So(p.Snapshot().Fraction(), ShouldAlmostEqual, 50.0/400.0)

			p.Complete(0)
			p.Track(1)(300, 300)
			p.Complete(1)
			s := p.Snapshot()
			So(s.Completed, ShouldEqual, 2)
			So(s.Total, ShouldEqual, 2)
			So(s.Fraction(), ShouldEqual, 1.0)
			So(len(snaps), ShouldEqual, 4)
		})

		Convey("Completing twice counts once", func() {
			p.Complete(1)
			p.Complete(1)
			So(p.Snapshot().Completed, ShouldEqual, 1)
		})
	})

	Convey("Without sizes the fraction counts assets", t, func() {
		p := upload.NewProgress([]int64{0, 0, 0, 0}, nil)
		p.Complete(2)
		So(p.Snapshot().Fraction(), ShouldEqual, 0.25)
	})
}
