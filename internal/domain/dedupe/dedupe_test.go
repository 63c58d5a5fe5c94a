package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/rebooked/apsmatch/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When a key is claimed for the first time", func() {
			id, claimed := d.Claim(ctx, "req-1", "eval-1")

			Convey("Then the claim succeeds", func() {
				So(claimed, ShouldBeTrue)
				So(id, ShouldEqual, "eval-1")
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And the same key is claimed again", func() {
				id, claimed := d.Claim(ctx, "req-1", "eval-2")

				Convey("Then the first evaluation id is returned", func() {
					So(claimed, ShouldBeFalse)
					So(id, ShouldEqual, "eval-1")
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the key is looked up", func() {
				id, ok := d.Lookup(ctx, "req-1")
				So(ok, ShouldBeTrue)
				So(id, ShouldEqual, "eval-1")
			})
		})

		Convey("When a claimed key is released", func() {
			d.Claim(ctx, "req-1", "eval-1")
			d.Release(ctx, "req-1")

			Convey("Then it can be claimed by a new evaluation", func() {
				So(d.Size(), ShouldEqual, 0)
				_, ok := d.Lookup(ctx, "req-1")
				So(ok, ShouldBeFalse)

				id, claimed := d.Claim(ctx, "req-1", "eval-2")
				So(claimed, ShouldBeTrue)
				So(id, ShouldEqual, "eval-2")
			})
		})

		Convey("When an unknown key is released", func() {
			d.Release(ctx, "nonexistent")
			So(d.Size(), ShouldEqual, 0)
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for i := 1; i <= 3; i++ {
			d.Claim(ctx, fmt.Sprintf("req-%d", i), fmt.Sprintf("eval-%d", i))
		}

		Convey("When one more key is claimed", func() {
			_, claimed := d.Claim(ctx, "req-4", "eval-4")

			Convey("Then the oldest claim is evicted", func() {
				So(claimed, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 3)
				_, ok := d.Lookup(ctx, "req-1")
				So(ok, ShouldBeFalse)
				for _, k := range []string{"req-2", "req-3", "req-4"} {
					_, ok := d.Lookup(ctx, k)
					So(ok, ShouldBeTrue)
				}
			})
		})

		Convey("When a middle key is released before overflow", func() {
			d.Release(ctx, "req-2")
			d.Claim(ctx, "req-4", "eval-4")

			Convey("Then nothing else is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				_, ok := d.Lookup(ctx, "req-1")
				So(ok, ShouldBeTrue)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))

		Convey("Then claims are never evicted", func() {
			const n = 1000
			for i := 0; i < n; i++ {
				_, claimed := d.Claim(ctx, fmt.Sprintf("req-%d", i), "eval")
				So(claimed, ShouldBeTrue)
			}
			So(d.Size(), ShouldEqual, int64(n))
			_, ok := d.Lookup(ctx, "req-0")
			So(ok, ShouldBeTrue)
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper shared by many goroutines", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		const numGoroutines = 10

		Convey("When they race to claim the same key", func() {
			var wg sync.WaitGroup
			var winners atomic.Int32
			for i := 0; i < numGoroutines; i++ {
				wg.Add(1)
				go func(n int) {
					defer wg.Done()
					if _, claimed := d.Claim(context.Background(), "shared", fmt.Sprintf("eval-%d", n)); claimed {
						winners.Add(1)
					}
				}(i)
			}
			wg.Wait()

			Convey("Then exactly one claim wins", func() {
				So(winners.Load(), ShouldEqual, 1)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When they claim and release distinct keys", func() {
			var wg sync.WaitGroup
			for i := 0; i < numGoroutines; i++ {
				wg.Add(1)
				go func(n int) {
					defer wg.Done()
					for j := 0; j < 50; j++ {
						key := fmt.Sprintf("req-%d-%d", n, j)
						d.Claim(context.Background(), key, "eval")
						d.Release(context.Background(), key)
					}
				}(i)
			}
			wg.Wait()

			Convey("Then nothing is left behind", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})
}
