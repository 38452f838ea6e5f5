package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/gaffer/internal/adapters/feed"
	"github.com/okian/gaffer/internal/adapters/repository"
	service "github.com/okian/gaffer/internal/app"
	"github.com/okian/gaffer/internal/domain/elo"
	"github.com/okian/gaffer/internal/domain/model"
	"github.com/okian/gaffer/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// blockingFeed holds every fetch until released.
type blockingFeed struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingFeed() *blockingFeed {
	return &blockingFeed{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (f *blockingFeed) FetchMatches(ctx context.Context, _ *time.Time) ([]model.Match, error) {
	f.entered <- struct{}{}
	select {
	case <-f.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["totalTeams"], ShouldEqual, 0)
		})

		Convey("Then updates cannot be queued before start", func() {
			_, err := svc.TriggerUpdate(context.Background(), "api")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("Then RunNow runs inline", func() {
			res, err := svc.RunNow(context.Background(), "cli")
			So(err, ShouldBeNil)
			So(res.UpToDate(), ShouldBeTrue)
			So(res.RunID, ShouldNotBeEmpty)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithQueueSize(2))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When starting the service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["queueSize"], ShouldEqual, 2)
				svc.Stop()
			})

			Convey("When stopping the service", func() {
				svc.Stop()
				svc.Stop()

				Convey("Then it should be marked as stopped", func() {
					So(svc.GetStats()["started"], ShouldEqual, false)
				})
			})
		})
	})
}

func TestService_Updates(t *testing.T) {
	Convey("Given a started service over a static feed", t, func() {
		store := repository.NewMemoryStore()
		source := feed.NewStaticFeed([]model.Match{
			match(day(2025, 8, 15), "A", "B", 2, 0),
			match(day(2025, 8, 22), "B", "C", 1, 1),
		})
		svc := service.New(service.WithStore(store), service.WithFeed(source))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a synchronous run is requested", func() {
			res, err := svc.RunNow(ctx, "api")

			Convey("Then the queued run's result is returned", func() {
				So(err, ShouldBeNil)
				So(res.Processed, ShouldEqual, 2)

				top, err := svc.TopN(ctx, 10, "")
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 3)
				So(top[0].Team, ShouldEqual, "A")
				So(top[0].LastMatchDate, ShouldEqual, "2025-08-15")

				b, err := svc.Rank(ctx, "B")
				So(err, ShouldBeNil)
				So(b.MatchesPlayed, ShouldEqual, 2)

				h, err := svc.History(ctx, "B", 1)
				So(err, ShouldBeNil)
				So(len(h), ShouldEqual, 1)
				So(h[0].Date, ShouldEqual, "2025-08-22")
				So(h[0].Result, ShouldEqual, "D")

				snap, err := svc.Snapshot(ctx, time.Date(2025, 8, 15, 23, 0, 0, 0, time.UTC), "")
				So(err, ShouldBeNil)
				So(len(snap), ShouldEqual, 2)

				stats := svc.GetStats()
				So(stats["totalTeams"], ShouldEqual, 3)
				So(stats["lastRun"], ShouldNotBeNil)
			})

			Convey("Then a second run is up to date", func() {
				again, err := svc.RunNow(ctx, "api")
				So(err, ShouldBeNil)
				So(again.UpToDate(), ShouldBeTrue)
				h, _ := svc.History(ctx, "", 10)
				So(len(h), ShouldEqual, 2)
			})
		})

		Convey("When an update is triggered", func() {
			id, err := svc.TriggerUpdate(ctx, "api")
			So(err, ShouldBeNil)
			So(id, ShouldNotBeEmpty)

			Convey("Then the runner applies it", func() {
				deadline := time.Now().Add(2 * time.Second)
				for time.Now().Before(deadline) {
					if n, _ := store.Count(ctx); n == 3 {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				n, _ := store.Count(ctx)
				So(n, ShouldEqual, 3)
			})
		})
	})

	Convey("Given a runner stuck on a slow feed", t, func() {
		source := newBlockingFeed()
		svc := service.New(service.WithFeed(source), service.WithQueueSize(1))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)

		_, err := svc.TriggerUpdate(ctx, "api")
		So(err, ShouldBeNil)
		<-source.entered

		Convey("Then further triggers eventually hit backpressure", func() {
			var rejected error
			for i := 0; i < 4 && rejected == nil; i++ {
				_, rejected = svc.TriggerUpdate(ctx, "api")
			}
			So(errors.Is(rejected, service.ErrBackpressure), ShouldBeTrue)

			_, err := svc.RunNow(ctx, "api")
			So(errors.Is(err, service.ErrBackpressure), ShouldBeTrue)
		})

		close(source.release)
		svc.Stop()
	})
}

func TestService_Predict(t *testing.T) {
	ctx := context.Background()

	Convey("Given stored ratings", t, func() {
		store := repository.NewMemoryStore()
		So(store.UpsertRatings(ctx, []model.TeamRating{
			{Team: "Inter", Rating: 1600, MatchesPlayed: 40},
			{Team: "Torino", Rating: 1500, MatchesPlayed: 40},
		}), ShouldBeNil)
		svc := service.New(service.WithStore(store))

		Convey("Then the expectation uses both ratings and the home advantage", func() {
			p, err := svc.Predict(ctx, "Inter", "Torino")
			So(err, ShouldBeNil)
			So(p.HomeRating, ShouldEqual, 1600)
			So(p.AwayRating, ShouldEqual, 1500)
			So(p.HomeAdvantage, ShouldEqual, 40)
			So(p.ExpectedHomeWin, ShouldEqual, 0.691)
		})

		Convey("Then an unrated team plays at the base rating", func() {
			p, err := svc.Predict(ctx, "Newcomer", "Torino")
			So(err, ShouldBeNil)
			So(p.HomeRating, ShouldEqual, 1500)
			So(p.ExpectedHomeWin, ShouldEqual, 0.557)
		})

		Convey("Then the configured home advantage is honored", func() {
			flat := service.New(service.WithStore(store), service.WithEngineOptions(elo.WithHomeAdvantage(0)))
			p, err := flat.Predict(ctx, "Torino", "Torino ")
			So(errors.Is(err, service.ErrInvalidArgument), ShouldBeTrue)

			p, err = flat.Predict(ctx, "Torino", "Newcomer")
			So(err, ShouldBeNil)
			So(p.ExpectedHomeWin, ShouldEqual, 0.5)
		})

		Convey("Then a missing team is rejected", func() {
			_, err := svc.Predict(ctx, "", "Torino")
			So(errors.Is(err, service.ErrInvalidArgument), ShouldBeTrue)
		})
	})
}
