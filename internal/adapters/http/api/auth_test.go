package api

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/okian/postflow/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAuthenticator(t *testing.T) {
	Convey("Given an authenticator", t, func() {
		now := time.Unix(1_760_000_000, 0)
		a := NewAuthenticator("s3cret", "postflow")
		a.now = func() time.Time { return now }
		id := &model.Identity{UserID: "u1", DisplayName: "Ann", Email: "ann@example.com", Premium: true}

		Convey("When a minted token is verified", func() {
			tok, err := a.Mint(id, time.Hour)
			So(err, ShouldBeNil)
			got, err := a.Verify(tok)

			Convey("Then the identity round trips", func() {
				So(err, ShouldBeNil)
				So(got, ShouldResemble, id)
			})
		})

		Convey("When the token has expired", func() {
			tok, err := a.Mint(id, time.Minute)
			So(err, ShouldBeNil)
			now = now.Add(2 * time.Minute)
			_, err = a.Verify(tok)
			So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
		})

		Convey("When the issuer differs", func() {
			other := NewAuthenticator("s3cret", "someone-else")
			other.now = a.now
			tok, err := other.Mint(id, time.Hour)
			So(err, ShouldBeNil)
			_, err = a.Verify(tok)
			So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
		})

		Convey("When the subject is missing", func() {
			tok, err := a.Mint(&model.Identity{}, time.Hour)
			So(err, ShouldBeNil)
			_, err = a.Verify(tok)
			So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
		})

		Convey("When no secret is configured", func() {
			_, err := NewAuthenticator("", "").Verify("anything")
			So(errors.Is(err, ErrAuthDisabled), ShouldBeTrue)
		})
	})
}

func TestBearer(t *testing.T) {
	Convey("Given authorization headers", t, func() {
		tok, ok := bearer("Bearer abc")
		So(ok, ShouldBeTrue)
		So(tok, ShouldEqual, "abc")

		tok, ok = bearer("  bearer   xyz ")
		So(ok, ShouldBeTrue)
		So(tok, ShouldEqual, "xyz")

		_, ok = bearer("Basic abc")
		So(ok, ShouldBeFalse)
		_, ok = bearer("Bearer ")
		So(ok, ShouldBeFalse)
		_, ok = bearer("")
		So(ok, ShouldBeFalse)
	})
}

func TestParsePublishForm(t *testing.T) {
	Convey("Given a multipart publish form", t, func() {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		_ = mw.WriteField("title", " Morning ")
		_ = mw.WriteField("tags", "bald_eagle, ,eagle,bald_eagle")
		_ = mw.WriteField("status", "draft")
		fw, _ := mw.CreateFormFile("asset0", "a.jpg")
		_, _ = fw.Write([]byte("jpeg"))
		_ = mw.WriteField("sellable0", "true")
		_ = mw.WriteField("tier0", "Premium")
		_ = mw.WriteField("text1", "a slide")
		_ = mw.WriteField("caption1", "notes")
		// asset3 follows a gap and is ignored.
		_ = mw.WriteField("text3", "orphan")
		_ = mw.Close()

		req, _ := http.NewRequest(http.MethodPost, "/posts", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		So(req.ParseMultipartForm(1<<20), ShouldBeNil)

		pr, files, err := parsePublishForm(req.MultipartForm)
		defer func() {
			for _, f := range files {
				_ = f.Close()
			}
		}()

		Convey("Then fields and assets are read in order", func() {
			So(err, ShouldBeNil)
			So(pr.Title, ShouldEqual, "Morning")
			So(pr.Tags, ShouldResemble, []string{"bald_eagle", "eagle"})
			So(pr.Status, ShouldEqual, "draft")
			So(len(pr.Assets), ShouldEqual, 2)
			So(pr.Assets[0].Name, ShouldEqual, "a.jpg")
			So(pr.Assets[0].Sellable, ShouldBeTrue)
			So(pr.Assets[0].Tier, ShouldEqual, "Premium")
			So(pr.Assets[0].Body, ShouldNotBeNil)
			So(pr.Assets[1].Text, ShouldEqual, "a slide")
			So(pr.Assets[1].Caption, ShouldEqual, "notes")
			So(len(files), ShouldEqual, 1)
		})
	})

	Convey("Given an empty tag list", t, func() {
		So(splitTags(""), ShouldBeNil)
		So(splitTags(strings.Repeat(",", 3)), ShouldBeNil)
	})
}
