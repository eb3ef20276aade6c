package metadata_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/okian/postflow/internal/domain/metadata"
	"github.com/okian/postflow/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func pngBytes(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// tiffWithEntry builds a little-endian TIFF with one IFD0 entry followed by payload.
func tiffWithEntry(tag, typ uint16, count, value uint32, next uint32, payload []byte) []byte {
	b := make([]byte, 26)
	copy(b, "II*\x00")
	binary.LittleEndian.PutUint32(b[4:], 8)
	binary.LittleEndian.PutUint16(b[8:], 1)
	binary.LittleEndian.PutUint16(b[10:], tag)
	binary.LittleEndian.PutUint16(b[12:], typ)
	binary.LittleEndian.PutUint32(b[14:], count)
	binary.LittleEndian.PutUint32(b[18:], value)
	binary.LittleEndian.PutUint32(b[22:], next)
	return append(b, payload...)
}

func makeTIFF() []byte {
	return tiffWithEntry(0x010F, 2, 6, 26, 0, []byte("Canon\x00"))
}

func inJPEG(tiff []byte) []byte {
	seg := append([]byte("Exif\x00\x00"), tiff...)
	out := []byte{0xFF, 0xD8, 0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(out[4:], uint16(len(seg)+2))
	out = append(out, seg...)
	return append(out, 0xFF, 0xD9)
}

type fakeOpener struct {
	objects map[string][]byte
}

func (f fakeOpener) Open(_ context.Context, url string) (io.ReadCloser, error) {
	b, ok := f.objects[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func TestProbe(t *testing.T) {
	Convey("Given a 300x200 png", t, func() {
		data := pngBytes(300, 200)

		Convey("When probing the binary", func() {
			d, err := metadata.Probe(bytes.NewReader(data))

			Convey("Then width, height and ratio are reported", func() {
				So(err, ShouldBeNil)
				So(d.Width, ShouldEqual, 300)
				So(d.Height, ShouldEqual, 200)
				So(d.AspectRatio, ShouldAlmostEqual, 1.5, 1e-9)
			})
		})

		Convey("When probing the stored copy", func() {
			o := fakeOpener{objects: map[string][]byte{"mem://a.png": data}}
			d, err := metadata.ProbeStored(context.Background(), o, "mem://a.png")
			So(err, ShouldBeNil)
			So(d.Width, ShouldEqual, 300)
		})

		Convey("When the stored copy is missing", func() {
			o := fakeOpener{objects: map[string][]byte{}}
			d, err := metadata.ProbeStored(context.Background(), o, "mem://gone.png")
			So(d, ShouldBeNil)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given bytes that are not an image", t, func() {
		d, err := metadata.Probe(bytes.NewReader([]byte("definitely not an image")))
		So(d, ShouldBeNil)
		So(errors.Is(err, metadata.ErrUnsupportedImage), ShouldBeTrue)
	})
}

func TestParse(t *testing.T) {
	Convey("Given an image without an exif block", t, func() {
		m, err := metadata.Parse(bytes.NewReader(pngBytes(4, 4)))

		Convey("Then no metadata is reported", func() {
			So(m, ShouldBeNil)
			So(errors.Is(err, metadata.ErrNoMetadata), ShouldBeTrue)
		})
	})

	Convey("Given a raw tiff with a camera make", t, func() {
		m, err := metadata.Parse(bytes.NewReader(makeTIFF()))
		So(err, ShouldBeNil)
		So(m.Make, ShouldEqual, "Canon")
	})

	Convey("Given the same block inside a jpeg app1 segment", t, func() {
		m, err := metadata.Parse(bytes.NewReader(inJPEG(makeTIFF())))
		So(err, ShouldBeNil)
		So(m.Make, ShouldEqual, "Canon")
	})

	Convey("Given an entry whose count overflows the value size", t, func() {
		crafted := tiffWithEntry(0x010F, 3, 0x80000001, 0, 0, nil)

		Convey("Then the block is rejected before decoding", func() {
			m, err := metadata.Parse(bytes.NewReader(crafted))
			So(m, ShouldBeNil)
			So(errors.Is(err, metadata.ErrMalformedExif), ShouldBeTrue)

			m, err = metadata.Parse(bytes.NewReader(inJPEG(crafted)))
			So(m, ShouldBeNil)
			So(errors.Is(err, metadata.ErrMalformedExif), ShouldBeTrue)
		})
	})

	Convey("Given a byte entry larger than the block", t, func() {
		m, err := metadata.Parse(bytes.NewReader(tiffWithEntry(0x010F, 1, 0x80000001, 26, 0, nil)))
		So(m, ShouldBeNil)
		So(errors.Is(err, metadata.ErrMalformedExif), ShouldBeTrue)
	})

	Convey("Given directories that link back to themselves", t, func() {
		m, err := metadata.Parse(bytes.NewReader(tiffWithEntry(0x010F, 2, 6, 26, 8, []byte("Canon\x00"))))
		So(m, ShouldBeNil)
		So(errors.Is(err, metadata.ErrMalformedExif), ShouldBeTrue)
	})

	Convey("Given an exif pointer outside the block", t, func() {
		m, err := metadata.Parse(bytes.NewReader(tiffWithEntry(0x8769, 4, 1, 0xFFFF, 0, nil)))
		So(m, ShouldBeNil)
		So(errors.Is(err, metadata.ErrMalformedExif), ShouldBeTrue)
	})

	Convey("Given garbage", t, func() {
		m, err := metadata.Parse(bytes.NewReader([]byte{0xff, 0xd8, 0x00}))
		So(m, ShouldBeNil)
		So(err, ShouldNotBeNil)
	})
}

func TestFormatExposure(t *testing.T) {
	Convey("Given exposure times in seconds", t, func() {
		So(metadata.FormatExposure(0.004), ShouldEqual, "1/250")
		So(metadata.FormatExposure(1.0/60), ShouldEqual, "1/60")
		So(metadata.FormatExposure(0.5), ShouldEqual, "1/2")
		So(metadata.FormatExposure(2), ShouldEqual, "2s")
		So(metadata.FormatExposure(0), ShouldEqual, "")
	})
}

func TestMerge(t *testing.T) {
	Convey("Given extracted metadata and a manual override", t, func() {
		extracted := &model.ExifMetadata{Make: "Canon", Model: "EOS R5", ISO: "100", Aperture: "f/4"}
		manual := &model.ExifMetadata{ISO: "400", Lens: "RF 24-70mm", Aperture: "  "}

		m := metadata.Merge(extracted, manual)

		Convey("Then manual values win field by field", func() {
			So(m.Make, ShouldEqual, "Canon")
			So(m.ISO, ShouldEqual, "400")
			So(m.Lens, ShouldEqual, "RF 24-70mm")
			So(m.Aperture, ShouldEqual, "f/4")
		})

		Convey("Then the extracted value is not mutated", func() {
			So(extracted.ISO, ShouldEqual, "100")
		})
	})

	Convey("Given only a manual override", t, func() {
		m := metadata.Merge(nil, &model.ExifMetadata{Make: "Leica"})
		So(m, ShouldNotBeNil)
		So(m.Make, ShouldEqual, "Leica")
	})

	Convey("Given nothing at all", t, func() {
		So(metadata.Merge(nil, nil), ShouldBeNil)
		So(metadata.Merge(&model.ExifMetadata{}, nil), ShouldBeNil)
	})
}

func TestExtractor(t *testing.T) {
	Convey("Given an extractor reading back from the object store", t, func() {
		data := pngBytes(100, 125)
		o := fakeOpener{objects: map[string][]byte{"mem://p.png": data}}
		e := metadata.NewExtractor(o, nil)
		ctx := context.Background()

		Convey("When the asset has no exif but a manual override", func() {
			res := e.Extract(ctx, data, "mem://p.png", &model.ExifMetadata{ShutterSpeed: "1/125"})

			Convey("Then the override and dimensions are returned without error", func() {
				So(res.Err, ShouldBeNil)
				So(res.Exif.ShutterSpeed, ShouldEqual, "1/125")
				So(res.Dimensions.AspectRatio, ShouldAlmostEqual, 0.8, 1e-9)
			})
		})

		Convey("When the in-memory binary cannot be probed", func() {
			res := e.Extract(ctx, data[:8], "mem://p.png", nil)

			Convey("Then dimensions come from the stored copy", func() {
				So(res.Err, ShouldBeNil)
				So(res.Dimensions.Width, ShouldEqual, 100)
				So(res.Dimensions.Height, ShouldEqual, 125)
			})
		})

		Convey("When the in-memory binary is readable and the stored copy is not", func() {
			res := e.Extract(ctx, data, "mem://missing.png", nil)
			So(res.Err, ShouldBeNil)
			So(res.Dimensions.Width, ShouldEqual, 100)
		})

		Convey("When neither copy can be probed", func() {
			res := e.Extract(ctx, data[:8], "mem://missing.png", nil)

			Convey("Then the failure degrades to nil dimensions", func() {
				So(res.Dimensions, ShouldBeNil)
				So(res.Exif, ShouldBeNil)
				So(res.Err, ShouldNotBeNil)
			})
		})

		Convey("When no opener is configured", func() {
			res := metadata.NewExtractor(nil, nil).Extract(ctx, data, "", nil)
			So(res.Dimensions.Width, ShouldEqual, 100)
		})
	})
}
