package redislimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/postflow/internal/domain/ratelimit"
)

func TestLimiter(t *testing.T) {
	Convey("Given a redis-backed limiter", t, func() {
		mr, err := miniredis.Run()
		So(err, ShouldBeNil)
		defer mr.Close()

		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer func() { _ = rdb.Close() }()

		ctx := context.Background()
		l := New(rdb, WithInterval(time.Minute))

		Convey("When a user publishes for the first time", func() {
			So(l.Reserve(ctx, "u1"), ShouldBeNil)

			Convey("Then the key carries the cooldown as its ttl", func() {
				So(mr.Exists(defaultPrefix+"u1"), ShouldBeTrue)
				So(mr.TTL(defaultPrefix+"u1"), ShouldEqual, time.Minute)
			})

			Convey("Then a second publish is rejected with the remaining time", func() {
				mr.FastForward(20 * time.Second)

				err := l.Reserve(ctx, "u1")
				var rl *ratelimit.RateLimitedError
				So(errors.As(err, &rl), ShouldBeTrue)
				So(rl.RetryAfterSeconds, ShouldEqual, 40)
				So(errors.Is(err, ratelimit.ErrRateLimited), ShouldBeTrue)
			})

			Convey("Then another user is unaffected", func() {
				So(l.Reserve(ctx, "u2"), ShouldBeNil)
			})

			Convey("Then the cooldown lapses with the key", func() {
				mr.FastForward(time.Minute)
				So(l.Reserve(ctx, "u1"), ShouldBeNil)
			})
		})

		Convey("When a key exists without expiry", func() {
			So(mr.Set(defaultPrefix+"u3", "0"), ShouldBeNil)
			err := l.Reserve(ctx, "u3")

			Convey("Then it is treated as a fresh reservation and given a ttl", func() {
				So(errors.Is(err, ratelimit.ErrRateLimited), ShouldBeTrue)
				So(mr.TTL(defaultPrefix+"u3"), ShouldEqual, time.Minute)
			})
		})

		Convey("When many requests race for the same user", func() {
			var (
				wg     sync.WaitGroup
				passed atomic.Int32
			)
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if l.Reserve(ctx, "racer") == nil {
						passed.Add(1)
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one reserves the slot", func() {
				So(passed.Load(), ShouldEqual, int32(1))
			})
		})

		Convey("When the user id is empty", func() {
			So(errors.Is(l.Reserve(ctx, ""), ratelimit.ErrEmptyUser), ShouldBeTrue)
		})

		Convey("When redis is unreachable", func() {
			mr.Close()
			err := l.Reserve(ctx, "u1")
			So(err, ShouldNotBeNil)
			So(errors.Is(err, ratelimit.ErrRateLimited), ShouldBeFalse)
		})
	})
}
