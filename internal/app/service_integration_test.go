package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/gaffer/internal/adapters/feed"
	"github.com/okian/gaffer/internal/adapters/repository"
	service "github.com/okian/gaffer/internal/app"
	"github.com/okian/gaffer/internal/domain/elo"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	epl2425 = "Div,Date,HomeTeam,AwayTeam,FTHG,FTAG,FTR\n" +
		"E0,16/08/2024,Man United,Fulham,1,0,H\n" +
		"E0,17/08/2024,Arsenal,Wolves,2,0,H\n" +
		"E0,24/08/2024,Wolves,Chelsea,2,6,A\n"
	epl2526 = "Div,Date,HomeTeam,AwayTeam,FTHG,FTAG,FTR\n" +
		"E0,15/08/2025,Liverpool,Bournemouth,4,2,H\n" +
		"E0,16/08/2025,Arsenal,Man United,1,0,H\n"
	epl2526Round2 = epl2526 +
		"E0,23/08/2025,Chelsea,West Ham,5,1,H\n"
)

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service reading a CSV cache", t, func() {
		dir := t.TempDir()
		write := func(season, body string) {
			So(os.MkdirAll(filepath.Join(dir, "epl"), 0o755), ShouldBeNil)
			So(os.WriteFile(filepath.Join(dir, "epl", season+".csv"), []byte(body), 0o600), ShouldBeNil)
		}
		write("2425", epl2425)
		write("2526", epl2526)

		store := repository.NewMemoryStore()
		svc := service.New(
			service.WithStore(store),
			service.WithFeed(feed.NewCSVFeed(dir)),
			service.WithQueueSize(4),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When the first update runs", func() {
			res, err := svc.RunNow(ctx, "integration")
			So(err, ShouldBeNil)
			So(res.Processed, ShouldEqual, 5)

			Convey("Then ratings span both seasons", func() {
				arsenal, err := svc.Rank(ctx, "Arsenal")
				So(err, ShouldBeNil)
				So(arsenal.MatchesPlayed, ShouldEqual, 2)
				So(arsenal.League, ShouldEqual, "epl")
				So(arsenal.LastMatchDate, ShouldEqual, "2025-08-16")

				top, _ := svc.TopN(ctx, 100, "epl")
				So(len(top), ShouldEqual, 7)
			})

			Convey("When a new round lands in the cache", func() {
				write("2526", epl2526Round2)
				next, err := svc.RunNow(ctx, "integration")

				Convey("Then only the new match is folded", func() {
					So(err, ShouldBeNil)
					So(next.Processed, ShouldEqual, 1)
					So(next.TeamsUpdated, ShouldEqual, 2)

					h, _ := svc.History(ctx, "", 100)
					So(len(h), ShouldEqual, 6)
					So(h[0].HomeTeam, ShouldEqual, "Chelsea")
				})

				Convey("Then the table equals a full replay of the cache", func() {
					all, err := feed.NewCSVFeed(dir).FetchMatches(ctx, nil)
					So(err, ShouldBeNil)
					replay := elo.New()
					replay.ProcessNewMatches(all)

					for _, want := range replay.CurrentRatings() {
						got, err := svc.Rank(ctx, want.Team)
						So(err, ShouldBeNil)
						So(got.Rating, ShouldAlmostEqual, want.Rating, 0.01)
						So(got.Rank, ShouldEqual, want.Rank)
					}
				})
			})
		})
	})
}
