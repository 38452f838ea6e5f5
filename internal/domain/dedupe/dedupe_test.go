package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/gaffer/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When a key is recorded twice", func() {
			first := d.SeenAndRecord(ctx, "serie_a|2526|2025-08-15|Inter|Torino")
			second := d.SeenAndRecord(ctx, "serie_a|2526|2025-08-15|Inter|Torino")

			Convey("Then only the second call reports it as seen", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
			})
		})

		Convey("When distinct keys are recorded", func() {
			Convey("Then none is reported as seen", func() {
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, "b"), ShouldBeFalse)
			})
		})
	})

	Convey("Given concurrent writers", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var wg sync.WaitGroup
		fresh := make(chan bool, 8*100)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					fresh <- !d.SeenAndRecord(ctx, fmt.Sprintf("%d-%d", n%4, j))
				}
			}(i)
		}
		wg.Wait()
		close(fresh)

		Convey("Then each key is new exactly once", func() {
			count := 0
			for ok := range fresh {
				if ok {
					count++
				}
			}
			So(count, ShouldEqual, 400)
		})
	})
}
