package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/okian/postflow/internal/domain/publication"
	"github.com/okian/postflow/internal/domain/ratelimit"
	"github.com/okian/postflow/internal/domain/upload"
	. "github.com/smartystreets/goconvey/convey"
)

func TestKindOf(t *testing.T) {
	Convey("Given errors from every pipeline stage", t, func() {
		cases := []struct {
			err  error
			kind ErrorKind
		}{
			{nil, ""},
			{&ratelimit.RateLimitedError{RetryAfterSeconds: 12}, KindRateLimited},
			{fmt.Errorf("wrap: %w", ErrNotAuthenticated), KindNotAuthenticated},
			{fmt.Errorf("upload.upload: asset 0: %w: %w", upload.ErrUploadFailed, errors.New("io")), KindAssetUploadFailed},
			{fmt.Errorf("publication: %w", publication.ErrVerificationFailed), KindPublicationVerificationFailed},
			{errors.New("disk on fire"), KindUnknown},
			{&PublishError{Kind: KindRateLimited}, KindRateLimited},
		}

		Convey("Then each maps to its kind", func() {
			for _, c := range cases {
				So(KindOf(c.err), ShouldEqual, c.kind)
			}
		})
	})
}

func TestClassify(t *testing.T) {
	Convey("Given a rate limit rejection", t, func() {
		err := classify(fmt.Errorf("service.publish: %w", &ratelimit.RateLimitedError{RetryAfterSeconds: 40}))

		Convey("Then the publish error carries the retry hint and unwraps", func() {
			var pe *PublishError
			So(errors.As(err, &pe), ShouldBeTrue)
			So(pe.Kind, ShouldEqual, KindRateLimited)
			So(pe.RetryAfterSeconds, ShouldEqual, 40)
			So(errors.Is(err, ratelimit.ErrRateLimited), ShouldBeTrue)
		})
	})

	Convey("Given an already classified error", t, func() {
		orig := &PublishError{Kind: KindAssetUploadFailed, Message: "x"}
		So(classify(orig), ShouldEqual, orig)
	})

	Convey("Given a validation error", t, func() {
		err := classify(fmt.Errorf("%w: no assets", ErrInvalidRequest))
		So(KindOf(err), ShouldEqual, KindUnknown)
		So(outcome(err), ShouldEqual, "invalid")
		So(err.Error(), ShouldContainSubstring, "no assets")
	})

	Convey("Given no error", t, func() {
		So(classify(nil), ShouldBeNil)
		So(outcome(nil), ShouldEqual, "ok")
	})
}
