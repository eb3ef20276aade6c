package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCheckAndReserve(t *testing.T) {
	Convey("Given a one minute cooldown", t, func() {
		now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

		Convey("When the user never published", func() {
			So(CheckAndReserve(time.Time{}, now, time.Minute), ShouldBeNil)
		})

		Convey("When the last publish is older than the interval", func() {
			So(CheckAndReserve(now.Add(-61*time.Second), now, time.Minute), ShouldBeNil)
			So(CheckAndReserve(now.Add(-time.Minute), now, time.Minute), ShouldBeNil)
		})

		Convey("When the last publish is inside the window", func() {
			err := CheckAndReserve(now.Add(-20500*time.Millisecond), now, time.Minute)

			Convey("Then the remaining time is rounded up", func() {
				var rl *RateLimitedError
				So(errors.As(err, &rl), ShouldBeTrue)
				So(rl.RetryAfterSeconds, ShouldEqual, 40)
				So(errors.Is(err, ErrRateLimited), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "40 seconds")
			})
		})

		Convey("When only a sliver of the window remains", func() {
			err := CheckAndReserve(now.Add(-time.Minute+time.Millisecond), now, time.Minute)
			var rl *RateLimitedError
			So(errors.As(err, &rl), ShouldBeTrue)
			So(rl.RetryAfterSeconds, ShouldEqual, 1)
		})
	})
}

func TestMemoryLimiter(t *testing.T) {
	Convey("Given an in-memory limiter with a fake clock", t, func() {
		var mu sync.Mutex
		now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
		clock := func() time.Time { mu.Lock(); defer mu.Unlock(); return now }
		advance := func(d time.Duration) { mu.Lock(); now = now.Add(d); mu.Unlock() }

		l := NewMemoryLimiter(WithInterval(time.Minute), WithClock(clock)).(*memoryLimiter)
		ctx := context.Background()

		Convey("When a user publishes twice inside the cooldown", func() {
			So(l.Reserve(ctx, "u1"), ShouldBeNil)
			advance(10 * time.Second)
			err := l.Reserve(ctx, "u1")

			Convey("Then the second fails with a positive retry", func() {
				var rl *RateLimitedError
				So(errors.As(err, &rl), ShouldBeTrue)
				So(rl.RetryAfterSeconds, ShouldEqual, 50)
			})

			Convey("And other users are unaffected", func() {
				So(l.Reserve(ctx, "u2"), ShouldBeNil)
			})

			Convey("And the user may publish once the window passes", func() {
				advance(50 * time.Second)
				So(l.Reserve(ctx, "u1"), ShouldBeNil)
			})
		})

		Convey("When many overlapping calls race for one user", func() {
			var passed atomic.Int32
			var wg sync.WaitGroup
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

			Convey("Then exactly one reservation succeeds", func() {
				So(passed.Load(), ShouldEqual, 1)
			})
		})

		Convey("When the user id is empty", func() {
			So(errors.Is(l.Reserve(ctx, ""), ErrEmptyUser), ShouldBeTrue)
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(errors.Is(l.Reserve(cctx, "u1"), context.Canceled), ShouldBeTrue)
		})
	})
}

func TestMemoryLimiterEviction(t *testing.T) {
	Convey("Given a limiter bounded to a few entries", t, func() {
		now := time.Unix(1_000, 0)
		l := NewMemoryLimiter(
			WithInterval(time.Second),
			WithMaxEntries(3),
			WithClock(func() time.Time { return now }),
		).(*memoryLimiter)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			So(l.Reserve(ctx, fmt.Sprintf("u%d", i)), ShouldBeNil)
		}

		Convey("When the cooldown for old entries expired", func() {
			now = now.Add(2 * time.Second)
			So(l.Reserve(ctx, "fresh"), ShouldBeNil)

			Convey("Then expired entries are evicted", func() {
				So(l.Size(), ShouldEqual, 1)
			})
		})
	})
}
