package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/cadence/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When a key is claimed twice", func() {
			first := d.SeenAndRecord(ctx, "k")
			second := d.SeenAndRecord(ctx, "k")

			Convey("Then only the first claim is new", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a claim is released", func() {
			d.SeenAndRecord(ctx, "k")
			d.Unrecord(ctx, "k")
			d.Unrecord(ctx, "never-claimed")

			Convey("Then the key can be claimed again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "k"), ShouldBeFalse)
			})
		})

		Convey("When many keys are claimed", func() {
			for i := 0; i < 1000; i++ {
				So(d.SeenAndRecord(ctx, fmt.Sprintf("k-%d", i)), ShouldBeFalse)
			}

			Convey("Then none are evicted", func() {
				So(d.Size(), ShouldEqual, 1000)
				So(d.SeenAndRecord(ctx, "k-0"), ShouldBeTrue)
			})
		})
	})
}

func TestTripleKey(t *testing.T) {
	Convey("Given two evaluation directions", t, func() {
		Convey("Then their keys differ", func() {
			So(dedupe.TripleKey("2025-03", "a", "b"), ShouldNotEqual, dedupe.TripleKey("2025-03", "b", "a"))
			So(dedupe.TripleKey("2025-03", "a", "b"), ShouldEqual, dedupe.TripleKey("2025-03", "a", "b"))
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given many goroutines claiming the same key", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var (
			wg   sync.WaitGroup
			wins atomic.Int32
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(context.Background(), "pair:subject") {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one claim succeeds", func() {
			So(wins.Load(), ShouldEqual, 1)
		})
	})
}
