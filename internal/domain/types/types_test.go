package types_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/postflow/internal/domain/model"
	types "github.com/okian/postflow/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewAwardedBadges(t *testing.T) {
	Convey("Given stored badges", t, func() {
		badges := []model.Badge{
			{ID: "u1:red_fox", Subject: "red_fox", Name: "Red Fox", Category: "animal", PointsAwarded: 450},
			{ID: "u1:moose", Subject: "moose", Name: "Moose", Category: "animal", PointsAwarded: 600},
		}

		Convey("When converting them", func() {
			out := types.NewAwardedBadges(badges)

			Convey("Then order and fields are kept", func() {
				So(len(out), ShouldEqual, 2)
				So(out[0].Subject, ShouldEqual, "red_fox")
				So(out[1].PointsAwarded, ShouldEqual, 600)
			})
		})

		Convey("When there are none", func() {
			out := types.NewAwardedBadges(nil)

			Convey("Then an empty list marshals as []", func() {
				b, err := json.Marshal(types.PublishResult{AwardedBadges: out})
				So(err, ShouldBeNil)
				So(string(b), ShouldContainSubstring, `"awardedBadges":[]`)
			})
		})
	})
}

func TestNewIssuedRewards(t *testing.T) {
	Convey("Given no rewards", t, func() {
		So(types.NewIssuedRewards(nil), ShouldBeNil)
	})

	Convey("Given a milestone reward", t, func() {
		out := types.NewIssuedRewards([]model.Reward{{ID: "u1:1000", Milestone: 1000, Type: model.RewardBoostToken}})
		So(len(out), ShouldEqual, 1)
		So(out[0].Milestone, ShouldEqual, int64(1000))
		So(out[0].Type, ShouldEqual, model.RewardBoostToken)
	})
}

func TestErrorBody(t *testing.T) {
	Convey("Given an error body without a retry hint", t, func() {
		b, err := json.Marshal(types.ErrorBody{Code: "unknown", Message: "boom"})
		So(err, ShouldBeNil)

		Convey("Then retryAfterSeconds is omitted", func() {
			So(string(b), ShouldNotContainSubstring, "retryAfterSeconds")
		})
	})
}
