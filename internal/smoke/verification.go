package smoke

import (
	"fmt"
	"log"
	"math"
)

// ratingTolerance absorbs the rounding applied to served ratings.
const ratingTolerance = 0.01

// verifyTable checks that a rating table is ordered and numbered.
// Equal ratings are ordered by team name.
func verifyTable(table []Entry) error {
	if len(table) == 0 {
		return fmt.Errorf("empty rating table")
	}
	for i, e := range table {
		if e.Rank != i+1 {
			return fmt.Errorf("row %d (%s) has rank %d", i, e.Team, e.Rank)
		}
		if e.MatchesPlayed < 1 {
			return fmt.Errorf("team %s is rated with no matches played", e.Team)
		}
		if i == 0 {
			continue
		}
		prev := table[i-1]
		switch {
		case e.Rating > prev.Rating:
			return fmt.Errorf("table not sorted: %s (%.2f) above %s (%.2f)",
				prev.Team, prev.Rating, e.Team, e.Rating)
		case e.Rating == prev.Rating && e.Team < prev.Team:
			return fmt.Errorf("tie between %s and %s not ordered by name", prev.Team, e.Team)
		}
	}
	return nil
}

// verifyRanks checks that single-team lookups agree with the table.
func verifyRanks(table, ranks []Entry) error {
	if len(table) != len(ranks) {
		return fmt.Errorf("%d lookups for %d table rows", len(ranks), len(table))
	}
	for i, want := range table {
		got := ranks[i]
		if got.Team != want.Team {
			return fmt.Errorf("lookup %d returned %s, want %s", i, got.Team, want.Team)
		}
		if got.Rank != want.Rank {
			return fmt.Errorf("team %s: lookup rank %d, table rank %d", want.Team, got.Rank, want.Rank)
		}
		if math.Abs(got.Rating-want.Rating) > ratingTolerance {
			return fmt.Errorf("team %s: lookup rating %.2f, table rating %.2f", want.Team, got.Rating, want.Rating)
		}
		if got.MatchesPlayed != want.MatchesPlayed {
			return fmt.Errorf("team %s: lookup played %d, table played %d", want.Team, got.MatchesPlayed, want.MatchesPlayed)
		}
	}
	return nil
}

// verifyPrediction checks a prediction against the ratings it was built from.
func verifyPrediction(p Prediction, home, away Entry) error {
	if p.HomeTeam != home.Team || p.AwayTeam != away.Team {
		return fmt.Errorf("prediction for %s v %s, asked %s v %s", p.HomeTeam, p.AwayTeam, home.Team, away.Team)
	}
	if p.ExpectedHomeWin <= minProbability || p.ExpectedHomeWin >= maxProbability {
		return fmt.Errorf("expected home win %.3f out of range", p.ExpectedHomeWin)
	}
	if math.Abs(p.HomeRating-home.Rating) > ratingTolerance || math.Abs(p.AwayRating-away.Rating) > ratingTolerance {
		return fmt.Errorf("prediction ratings %.2f/%.2f, table %.2f/%.2f",
			p.HomeRating, p.AwayRating, home.Rating, away.Rating)
	}
	// The stronger side at home never comes out as the underdog.
	if p.HomeRating+p.HomeAdvantage >= p.AwayRating && p.ExpectedHomeWin < 0.5 {
		return fmt.Errorf("expected home win %.3f below even for the stronger side", p.ExpectedHomeWin)
	}
	return nil
}

// displayTop prints the head of the table.
func displayTop(table []Entry, n int) {
	if len(table) < n {
		n = len(table)
	}
	log.Printf("Top %d teams:", n)
	for _, e := range table[:n] {
		log.Printf("  %3d. %-24s %8.2f  (%d played)", e.Rank, e.Team, e.Rating, e.MatchesPlayed)
	}
}
