package elo_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/okian/gaffer/internal/domain/elo"
	"github.com/okian/gaffer/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func match(date time.Time, home, away string, hg, ag int) model.Match {
	return model.Match{
		Date: date, HomeTeam: home, AwayTeam: away,
		HomeGoals: hg, AwayGoals: ag, Season: "2526", League: "test",
	}
}

func TestEngineDefaults(t *testing.T) {
	Convey("Given a default engine", t, func() {
		e := elo.New()

		Convey("Then an unseen team has the base rating and no matches", func() {
			So(e.Rating("Unknown"), ShouldEqual, 1500)
			So(e.MatchesPlayed("Unknown"), ShouldEqual, 0)
			So(e.CurrentRatings(), ShouldBeEmpty)
		})

		Convey("Then a team with no matches is volatile", func() {
			So(e.KFactor("Unknown"), ShouldEqual, 40)
		})

		Convey("When teams are loaded just below and at the threshold", func() {
			e.Load([]model.TeamRating{
				{Team: "Young", Rating: 1500, MatchesPlayed: 29},
				{Team: "Settled", Rating: 1500, MatchesPlayed: 30},
			})

			Convey("Then exactly the threshold switches to the stable K-factor", func() {
				So(e.KFactor("Young"), ShouldEqual, 40)
				So(e.KFactor("Settled"), ShouldEqual, 20)
			})
		})
	})

	Convey("Given custom options", t, func() {
		e := elo.New(
			elo.WithKFactors(10, 30),
			elo.WithVolatileMatchCount(5),
			elo.WithHomeAdvantage(0),
			elo.WithBaseRating(1000),
		)

		Convey("Then they replace the defaults", func() {
			So(e.Rating("x"), ShouldEqual, 1000)
			So(e.KFactor("x"), ShouldEqual, 30)
			So(e.ExpectedScore("x", "y"), ShouldEqual, 0.5)
		})

		Convey("And non-positive values are ignored", func() {
			e2 := elo.New(elo.WithKFactors(0, -1), elo.WithBaseRating(0))
			So(e2.KFactor("x"), ShouldEqual, 40)
			So(e2.Rating("x"), ShouldEqual, 1500)
		})
	})
}

func TestMarginMultiplier(t *testing.T) {
	Convey("The margin multiplier follows the goal difference table", t, func() {
		So(elo.MarginMultiplier(0), ShouldEqual, 1.0)
		So(elo.MarginMultiplier(1), ShouldEqual, 1.0)
		So(elo.MarginMultiplier(2), ShouldEqual, 1.5)
		So(elo.MarginMultiplier(3), ShouldEqual, 1.75)
		So(elo.MarginMultiplier(5), ShouldEqual, 2.0)

		Convey("And it strictly increases from a two goal margin", func() {
			prev := elo.MarginMultiplier(1)
			for d := 2; d <= 12; d++ {
				cur := elo.MarginMultiplier(d)
				So(cur, ShouldBeGreaterThan, prev)
				prev = cur
			}
		})
	})
}

func TestProcessMatch(t *testing.T) {
	Convey("Given two new teams", t, func() {
		e := elo.New()

		Convey("When A beats B 2-0 at home", func() {
			rec := e.ProcessMatch(model.Match{
				Date: day(2025, 8, 15), HomeTeam: "Team A", AwayTeam: "Team B",
				HomeGoals: 2, AwayGoals: 0, Season: "2526", League: "test",
			})

			Convey("Then the record carries the expected values", func() {
				So(rec.ExpectedHomeWin, ShouldEqual, 0.557)
				So(rec.HomeRatingBefore, ShouldEqual, 1500)
				So(rec.AwayRatingBefore, ShouldEqual, 1500)
				So(rec.HomeRatingAfter, ShouldAlmostEqual, 1526.6, 0.1)
				So(rec.AwayRatingAfter, ShouldAlmostEqual, 1473.4, 0.1)
				So(rec.HomeDelta, ShouldAlmostEqual, 26.6, 0.1)
				So(rec.AwayDelta, ShouldAlmostEqual, -26.6, 0.1)
				So(rec.Result(), ShouldEqual, model.ResultHome)
			})

			Convey("Then the winner rises and the loser falls", func() {
				So(e.Rating("Team A"), ShouldBeGreaterThan, 1500)
				So(e.Rating("Team B"), ShouldBeLessThan, 1500)
			})

			Convey("Then both sides played exactly one match in the league", func() {
				So(e.MatchesPlayed("Team A"), ShouldEqual, 1)
				So(e.MatchesPlayed("Team B"), ShouldEqual, 1)
				ratings := e.CurrentRatings()
				So(len(ratings), ShouldEqual, 2)
				So(ratings[0].Team, ShouldEqual, "Team A")
				So(ratings[0].Rank, ShouldEqual, 1)
				So(ratings[0].League, ShouldEqual, "test")
				So(ratings[0].LastMatchDate, ShouldEqual, day(2025, 8, 15))
				So(ratings[1].Rank, ShouldEqual, 2)
			})

			Convey("Then the history holds the single record", func() {
				h := e.History()
				So(len(h), ShouldEqual, 1)
				So(h[0], ShouldResemble, rec)
				So(e.Latest(), ShouldEqual, day(2025, 8, 15))
			})
		})

		Convey("When the away side wins", func() {
			e.ProcessMatch(match(day(2025, 8, 15), "A", "B", 0, 1))

			Convey("Then the away side gains", func() {
				So(e.Rating("B"), ShouldBeGreaterThan, 1500)
				So(e.Rating("A"), ShouldBeLessThan, 1500)
			})
		})
	})

	Convey("Given two established teams at the same rating", t, func() {
		e := elo.New()
		e.Load([]model.TeamRating{
			{Team: "A", Rating: 1500, MatchesPlayed: 30},
			{Team: "B", Rating: 1500, MatchesPlayed: 40},
		})

		Convey("When they draw 1-1", func() {
			rec := e.ProcessMatch(match(day(2025, 9, 1), "A", "B", 1, 1))

			Convey("Then both moves are small and home loses a little", func() {
				So(math.Abs(rec.HomeDelta), ShouldBeLessThan, 20)
				So(math.Abs(rec.AwayDelta), ShouldBeLessThan, 20)
				So(rec.HomeDelta, ShouldBeLessThan, 0)
				So(rec.AwayDelta, ShouldBeGreaterThan, 0)
				So(e.MatchesPlayed("A"), ShouldEqual, 31)
				So(e.MatchesPlayed("B"), ShouldEqual, 41)
			})
		})
	})

	Convey("Given teams on different K-factors", t, func() {
		e := elo.New()
		e.Load([]model.TeamRating{{Team: "Old", Rating: 1500, MatchesPlayed: 30}})

		Convey("When the stable home team beats a new team", func() {
			rec := e.ProcessMatch(match(day(2025, 9, 1), "Old", "New", 1, 0))

			Convey("Then each side moves by its own K-factor", func() {
				exp := 1 / (1 + math.Pow(10, -40.0/400))
				So(e.Rating("Old"), ShouldAlmostEqual, 1500+20*(1-exp), 1e-9)
				So(e.Rating("New"), ShouldAlmostEqual, 1500+40*(0-(1-exp)), 1e-9)
				So(rec.AwayDelta, ShouldAlmostEqual, -2*rec.HomeDelta, 0.02)
			})
		})
	})
}

func TestBatches(t *testing.T) {
	batch := []model.Match{
		match(day(2025, 8, 24), "C", "A", 0, 0),
		match(day(2025, 8, 15), "A", "B", 2, 0),
		match(day(2025, 8, 31), "B", "C", 3, 1),
		match(day(2025, 8, 15), "C", "D", 1, 4),
		match(day(2025, 8, 24), "D", "B", 2, 2),
	}

	Convey("Given a batch in arbitrary order", t, func() {
		e := elo.New()
		n := e.ProcessNewMatches(batch)

		Convey("Then every match is folded in date order", func() {
			So(n, ShouldEqual, len(batch))
			h := e.History()
			So(len(h), ShouldEqual, len(batch))
			for i := 1; i < len(h); i++ {
				So(h[i].Date.Before(h[i-1].Date), ShouldBeFalse)
			}
			So(h[0].HomeTeam, ShouldEqual, "A")
			So(h[1].HomeTeam, ShouldEqual, "C")
		})

		Convey("Then each record starts where the previous one left the team", func() {
			last := map[string]float64{}
			for _, r := range e.History() {
				if v, ok := last[r.HomeTeam]; ok {
					So(r.HomeRatingBefore, ShouldAlmostEqual, v, 0.011)
				} else {
					So(r.HomeRatingBefore, ShouldEqual, 1500)
				}
				if v, ok := last[r.AwayTeam]; ok {
					So(r.AwayRatingBefore, ShouldAlmostEqual, v, 0.011)
				} else {
					So(r.AwayRatingBefore, ShouldEqual, 1500)
				}
				last[r.HomeTeam] = r.HomeRatingAfter
				last[r.AwayTeam] = r.AwayRatingAfter
			}
		})

		Convey("Then the input slice is untouched", func() {
			So(batch[0].HomeTeam, ShouldEqual, "C")
		})

		Convey("Then a reversed batch yields the same ratings", func() {
			reversed := make([]model.Match, 0, len(batch))
			for i := len(batch) - 1; i >= 0; i-- {
				reversed = append(reversed, batch[i])
			}
			// same-date ties must keep their relative order to be comparable
			reversed[1], reversed[3] = reversed[3], reversed[1]
			reversed[0], reversed[4] = reversed[4], reversed[0]

			other := elo.New()
			other.ProcessNewMatches(reversed)
			So(other.CurrentRatings(), ShouldResemble, e.CurrentRatings())
		})
	})

	Convey("Given a league season replay", t, func() {
		e := elo.New()
		raw := []model.Match{
			{Date: day(2024, 9, 1), HomeTeam: "X", AwayTeam: "Y", HomeGoals: 1, AwayGoals: 0},
			{Date: day(2024, 8, 20), HomeTeam: "Y", AwayTeam: "X", HomeGoals: 0, AwayGoals: 0},
		}
		n := e.ProcessLeagueSeason(raw, "2425", "serie_a")

		Convey("Then matches are stamped and sorted", func() {
			So(n, ShouldEqual, 2)
			h := e.History()
			So(h[0].Date, ShouldEqual, day(2024, 8, 20))
			So(h[0].Season, ShouldEqual, "2425")
			So(h[1].League, ShouldEqual, "serie_a")
			So(raw[0].League, ShouldBeEmpty)
		})
	})
}

func TestCurrentRatingsTies(t *testing.T) {
	Convey("Equal ratings are ranked by team name", t, func() {
		e := elo.New()
		e.Load([]model.TeamRating{
			{Team: "Zeta", Rating: 1510.004},
			{Team: "Alpha", Rating: 1510},
			{Team: "Mid", Rating: 1600},
		})
		r := e.CurrentRatings()
		So(r[0].Team, ShouldEqual, "Mid")
		So(r[1].Team, ShouldEqual, "Alpha")
		So(r[2].Team, ShouldEqual, "Zeta")
		So(r[2].Rating, ShouldEqual, 1510)
		So(r[2].Rank, ShouldEqual, 3)
	})
}

func TestValidateBatch(t *testing.T) {
	ctx := context.Background()

	Convey("Given a lenient engine", t, func() {
		e := elo.New()
		e.Load([]model.TeamRating{{Team: "A", Rating: 1500, LastMatchDate: day(2025, 8, 31)}})

		Convey("Then old and repeated matches are accepted", func() {
			dup := match(day(2025, 8, 1), "A", "B", 1, 0)
			So(e.ValidateBatch(ctx, []model.Match{dup, dup}), ShouldBeNil)
		})

		Convey("Then invalid matches are still rejected", func() {
			for _, m := range []model.Match{
				match(day(2025, 9, 7), "", "B", 1, 0),
				match(time.Time{}, "C", "D", 1, 0),
				match(day(2025, 9, 7), "A", "B", -3, 0),
			} {
				err := e.ValidateBatch(ctx, []model.Match{match(day(2025, 9, 7), "A", "B", 1, 0), m})
				So(errors.Is(err, elo.ErrInvalidMatch), ShouldBeTrue)
			}
		})
	})

	Convey("Given a strict engine loaded up to a date", t, func() {
		e := elo.New(elo.WithStrictOrdering(true))
		e.Load([]model.TeamRating{{Team: "A", Rating: 1500, LastMatchDate: day(2025, 8, 31)}})

		Convey("Then newer unique matches pass", func() {
			So(e.ValidateBatch(ctx, []model.Match{
				match(day(2025, 8, 31), "A", "B", 1, 0),
				match(day(2025, 9, 7), "B", "A", 1, 0),
			}), ShouldBeNil)
		})

		Convey("Then an older match is out of order", func() {
			err := e.ValidateBatch(ctx, []model.Match{match(day(2025, 8, 30), "A", "B", 1, 0)})
			So(errors.Is(err, elo.ErrOutOfOrder), ShouldBeTrue)
		})

		Convey("Then a repeated identity is a duplicate", func() {
			m := match(day(2025, 9, 7), "A", "B", 1, 0)
			err := e.ValidateBatch(ctx, []model.Match{m, m})
			So(errors.Is(err, elo.ErrDuplicateMatch), ShouldBeTrue)
		})

		Convey("Then a negative score is invalid", func() {
			err := e.ValidateBatch(ctx, []model.Match{match(day(2025, 9, 7), "A", "B", -1, 0)})
			So(errors.Is(err, elo.ErrInvalidMatch), ShouldBeTrue)
			So(errors.Is(err, model.ErrNegativeGoals), ShouldBeTrue)
		})
	})
}
