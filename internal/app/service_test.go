package service_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	service "github.com/okian/postflow/internal/app"
	"github.com/okian/postflow/internal/adapters/repository"
	"github.com/okian/postflow/internal/domain/model"
	"github.com/okian/postflow/internal/domain/upload"
	"github.com/okian/postflow/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type harness struct {
	svc     *service.Service
	store   *repository.MemoryStore
	objects *objects
	events  *events
}

func newHarness(opts ...service.Option) *harness {
	h := &harness{
		store:   repository.NewMemoryStore(),
		objects: newObjects(),
		events:  newEvents(),
	}
	base := []service.Option{
		service.WithStore(h.store),
		service.WithObjectStore(h.objects),
		service.WithEventPublisher(h.events),
		service.WithWorkerCount(1),
		service.WithSweep(0, time.Minute),
	}
	h.svc = service.New(append(base, opts...)...)
	if err := h.svc.Start(context.Background()); err != nil {
		panic(err)
	}
	return h
}

func imageAsset(name string) service.AssetInput {
	return service.AssetInput{Name: name, Body: bytes.NewReader(pngBytes(300, 200)), Caption: "caption " + name}
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it is not started", func() {
			So(svc.IsStarted(), ShouldBeFalse)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})

		Convey("When publishing before Start", func() {
			_, err := svc.Publish(context.Background(), identity("u1"), service.PublishRequest{})

			Convey("Then it fails as not started", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(service.KindOf(err), ShouldEqual, service.KindUnknown)
			})
		})

		Convey("When starting and stopping it", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.Start(context.Background()), ShouldBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["queueLength"], ShouldEqual, 0)

			svc.Stop()
			svc.Stop()

			Convey("Then it reports stopped", func() {
				So(svc.IsStarted(), ShouldBeFalse)
			})
		})
	})
}

func TestService_Publish(t *testing.T) {
	Convey("Given a started service", t, func() {
		h := newHarness()
		defer h.svc.Stop()
		ctx := context.Background()

		Convey("When a first-time user publishes an image tagged red_fox", func() {
			res, err := h.svc.Publish(ctx, identity("u1"), service.PublishRequest{
				Title: "Morning fox",
				Tags:  []string{"red_fox"},
				Assets: []service.AssetInput{
					imageAsset("fox.png"),
				},
			})

			Convey("Then the post is published with exactly one badge", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, model.StatusPublished)
				So(len(res.AwardedBadges), ShouldEqual, 1)
				So(res.AwardedBadges[0].Subject, ShouldEqual, "red_fox")
				So(res.AwardedBadges[0].PointsAwarded, ShouldBeBetweenOrEqual, 100, 1000)
				So(res.BonusPoints, ShouldEqual, int64(0))
				So(res.Degraded, ShouldBeEmpty)
			})

			Convey("Then the stored post carries its asset details", func() {
				post, err := h.store.GetPost(ctx, res.PostID)
				So(err, ShouldBeNil)
				So(post.Status, ShouldEqual, model.StatusPublished)
				So(post.AuthorName, ShouldEqual, "Photographer u1")
				So(len(post.Assets), ShouldEqual, 1)
				So(post.Assets[0].Width, ShouldEqual, 300)
				So(post.Assets[0].Height, ShouldEqual, 200)
				So(post.Assets[0].URL, ShouldStartWith, baseURL+"/posts/u1/")
				So(post.SearchKeywords, ShouldContain, "fox")
			})

			Convey("Then the counters reflect the post and the badge", func() {
				c, err := h.store.GetCounters(ctx, "u1")
				So(err, ShouldBeNil)
				So(c.PostCount, ShouldEqual, int64(1))
				So(c.Points, ShouldEqual, int64(res.AwardedBadges[0].PointsAwarded))
			})

			Convey("Then a post event is relayed", func() {
				select {
				case ev := <-h.events.ch:
					So(ev.PostID, ShouldEqual, res.PostID)
					So(ev.AuthorID, ShouldEqual, "u1")
					So(len(ev.AssetURLs), ShouldEqual, 1)
				case <-time.After(2 * time.Second):
					So("no event relayed", ShouldBeEmpty)
				}
			})

			Convey("Then a second publish inside the cooldown is rate limited", func() {
				_, err := h.svc.Publish(ctx, identity("u1"), service.PublishRequest{
					Tags:   []string{"red_fox"},
					Assets: []service.AssetInput{imageAsset("again.png")},
				})
				So(service.KindOf(err), ShouldEqual, service.KindRateLimited)

				var pe *service.PublishError
				So(errors.As(err, &pe), ShouldBeTrue)
				So(pe.RetryAfterSeconds, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When no identity is supplied", func() {
			_, err := h.svc.Publish(ctx, nil, service.PublishRequest{Assets: []service.AssetInput{imageAsset("a.png")}})

			Convey("Then it fails as not authenticated", func() {
				So(service.KindOf(err), ShouldEqual, service.KindNotAuthenticated)
				So(errors.Is(err, service.ErrNotAuthenticated), ShouldBeTrue)
			})
		})

		Convey("When an upload fails", func() {
			h.objects.failPut.Store(true)
			_, err := h.svc.Publish(ctx, identity("u2"), service.PublishRequest{
				Assets: []service.AssetInput{imageAsset("a.png"), imageAsset("b.png")},
			})

			Convey("Then it fails as an upload failure and writes nothing", func() {
				So(service.KindOf(err), ShouldEqual, service.KindAssetUploadFailed)
				So(errors.Is(err, upload.ErrUploadFailed), ShouldBeTrue)

				posts, err := h.store.ListPosts(ctx, repository.PostFilter{AuthorID: "u2"})
				So(err, ShouldBeNil)
				So(posts, ShouldBeEmpty)
				So(h.objects.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the uploaded asset cannot be re-resolved", func() {
			h.objects.failResolve.Store(true)
			_, err := h.svc.Publish(ctx, identity("u3"), service.PublishRequest{
				Tags:   []string{"red_fox"},
				Assets: []service.AssetInput{imageAsset("a.png")},
			})

			Convey("Then verification fails and the post is absent", func() {
				So(service.KindOf(err), ShouldEqual, service.KindPublicationVerificationFailed)

				posts, err := h.store.ListPosts(ctx, repository.PostFilter{AuthorID: "u3"})
				So(err, ShouldBeNil)
				So(posts, ShouldBeEmpty)
				So(h.objects.Len(), ShouldEqual, 0)
			})

			Convey("Then no badge was awarded", func() {
				badges, err := h.store.ListBadges(ctx, "u3")
				So(err, ShouldBeNil)
				So(badges, ShouldBeEmpty)
			})
		})

		Convey("When the submission is malformed", func() {
			cases := map[string]service.PublishRequest{
				"no assets":      {Title: "empty"},
				"bad status":     {Status: "archived", Assets: []service.AssetInput{imageAsset("a.png")}},
				"blank asset":    {Assets: []service.AssetInput{{Caption: "nothing"}}},
				"sold text":      {Assets: []service.AssetInput{{Text: "hello", Sellable: true}}},
				"unknown tier":   {Assets: []service.AssetInput{{Name: "a.png", Body: bytes.NewReader(pngBytes(4, 4)), Sellable: true, Tier: "gold"}}},
				"too many":       {Assets: []service.AssetInput{imageAsset("1"), imageAsset("2"), imageAsset("3")}},
				"oversized body": {Assets: []service.AssetInput{{Body: strings.NewReader(strings.Repeat("x", 2048))}}},
			}
			for name, req := range cases {
				svc := newHarness(service.WithMaxAssets(2), service.WithMaxUploadBytes(1024)).svc
				_, err := svc.Publish(ctx, identity("v-"+name), req)
				svc.Stop()

				So(errors.Is(err, service.ErrInvalidRequest), ShouldBeTrue)
				So(service.KindOf(err), ShouldEqual, service.KindUnknown)
			}
		})

		Convey("When a sellable image and a text slide are published as a draft", func() {
			sellable := imageAsset("print.png")
			sellable.Sellable = true
			sellable.Tier = "premium"
			res, err := h.svc.Publish(ctx, identity("u4"), service.PublishRequest{
				Title:  "Prints",
				Status: "draft",
				Assets: []service.AssetInput{sellable, {Text: "Shot on a cold morning"}},
			})

			Convey("Then one closed commerce item is created", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, model.StatusDraft)
				So(len(res.CommerceItemIDs), ShouldEqual, 1)

				item, err := h.store.GetCommerceItem(ctx, res.CommerceItemIDs[0])
				So(err, ShouldBeNil)
				So(item.Available, ShouldBeFalse)
				So(item.Tier, ShouldEqual, "premium")
				So(item.Prices, ShouldNotBeEmpty)
			})

			Convey("Then drafts are not relayed as events", func() {
				select {
				case ev := <-h.events.ch:
					So(ev.PostID, ShouldBeEmpty)
				case <-time.After(100 * time.Millisecond):
				}
			})

			Convey("Then the draft is visible to its author only", func() {
				view, err := h.svc.GetPost(ctx, identity("u4"), res.PostID)
				So(err, ShouldBeNil)
				So(len(view.CommerceItems), ShouldEqual, 1)
				So(view.Assets[1].Text, ShouldEqual, "Shot on a cold morning")

				_, err = h.svc.GetPost(ctx, identity("someone"), res.PostID)
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then only the author can open the listing", func() {
				_, err := h.svc.SetCommerceAvailability(ctx, identity("someone"), res.CommerceItemIDs[0], true)
				So(errors.Is(err, service.ErrForbidden), ShouldBeTrue)

				item, err := h.svc.SetCommerceAvailability(ctx, identity("u4"), res.CommerceItemIDs[0], true)
				So(err, ShouldBeNil)
				So(item.Available, ShouldBeTrue)

				_, err = h.svc.SetCommerceAvailability(ctx, identity("u4"), "missing", true)
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When upload progress is observed", func() {
			var (
				mu   sync.Mutex
				last upload.Snapshot
			)
			_, err := h.svc.Publish(ctx, identity("u5"), service.PublishRequest{
				Assets: []service.AssetInput{imageAsset("a.png"), imageAsset("b.png"), {Text: "slide"}},
				OnProgress: func(s upload.Snapshot) {
					mu.Lock()
					if s.Completed >= last.Completed {
						last = s
					}
					mu.Unlock()
				},
			})

			Convey("Then it ends complete", func() {
				So(err, ShouldBeNil)
				mu.Lock()
				defer mu.Unlock()
				So(last.Completed, ShouldEqual, 3)
				So(last.Total, ShouldEqual, 3)
				So(last.Fraction(), ShouldEqual, 1.0)
			})
		})
	})
}

func TestService_Rewards(t *testing.T) {
	Convey("Given a user who already holds the red_fox badge", t, func() {
		h := newHarness(service.WithPublishInterval(time.Millisecond))
		defer h.svc.Stop()
		ctx := context.Background()
		id := identity("fox-fan")

		_, err := h.svc.Publish(ctx, id, service.PublishRequest{
			Tags:   []string{"red_fox"},
			Assets: []service.AssetInput{imageAsset("1.png")},
		})
		So(err, ShouldBeNil)
		time.Sleep(5 * time.Millisecond)

		Convey("When they publish the subject again", func() {
			res, err := h.svc.Publish(ctx, id, service.PublishRequest{
				Tags:   []string{"Red Fox"},
				Assets: []service.AssetInput{imageAsset("2.png")},
			})

			Convey("Then only bonus points are granted", func() {
				So(err, ShouldBeNil)
				So(res.AwardedBadges, ShouldBeEmpty)
				So(res.BonusPoints, ShouldEqual, int64(25))

				badges, err := h.svc.ListBadges(ctx, id)
				So(err, ShouldBeNil)
				So(len(badges), ShouldEqual, 1)
			})
		})

		Convey("When they are one award short of a milestone", func() {
			So(h.store.IncrementCounters(ctx, id.UserID, model.CounterDelta{Points: 1000 - 550 - 100}), ShouldBeNil)

			res, err := h.svc.Publish(ctx, id, service.PublishRequest{
				Tags:   []string{"white_tailed_deer"},
				Assets: []service.AssetInput{imageAsset("deer.png")},
			})

			Convey("Then exactly one reward is issued and can be claimed once", func() {
				So(err, ShouldBeNil)
				So(len(res.Rewards), ShouldEqual, 1)
				So(res.Rewards[0].Milestone, ShouldEqual, int64(1000))

				rewards, err := h.svc.ListRewards(ctx, id)
				So(err, ShouldBeNil)
				So(len(rewards), ShouldEqual, 1)

				claimed, err := h.svc.ClaimReward(ctx, id, rewards[0].ID)
				So(err, ShouldBeNil)
				So(claimed.Claimed(), ShouldBeTrue)

				_, err = h.svc.ClaimReward(ctx, id, rewards[0].ID)
				So(err, ShouldNotBeNil)

				_, err = h.svc.ClaimReward(ctx, id, "unknown")
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When reading counters", func() {
			c, err := h.svc.Counters(ctx, id)
			So(err, ShouldBeNil)
			So(c.PostCount, ShouldEqual, int64(1))

			fresh, err := h.svc.Counters(ctx, identity("newcomer"))
			So(err, ShouldBeNil)
			So(fresh.PostCount, ShouldEqual, int64(0))
		})

		Convey("When reading without an identity", func() {
			_, err := h.svc.ListBadges(ctx, nil)
			So(errors.Is(err, service.ErrNotAuthenticated), ShouldBeTrue)
		})
	})
}
