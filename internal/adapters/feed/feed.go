// Package feed provides sources of completed matches. Every source hands the
// rating engine canonical model.Match values; external column naming is
// resolved here by Normalize.
package feed

import (
	"context"
	"time"

	"github.com/okian/gaffer/internal/domain/model"
)

// Feed returns completed matches.
type Feed interface {
	// FetchMatches returns matches played strictly after the given date, or
	// every match when after is nil. Results are ordered by date; matches on
	// the same date come back in a stable source order.
	FetchMatches(ctx context.Context, after *time.Time) ([]model.Match, error)
}

// StaticFeed serves a fixed set of matches.
type StaticFeed struct {
	matches []model.Match
}

// NewStaticFeed returns a feed over a copy of matches.
func NewStaticFeed(matches []model.Match) *StaticFeed {
	cp := make([]model.Match, len(matches))
	copy(cp, matches)
	return &StaticFeed{matches: cp}
}

// FetchMatches implements Feed.
func (f *StaticFeed) FetchMatches(ctx context.Context, after *time.Time) ([]model.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return filterAfter(f.matches, after), nil
}

// filterAfter keeps matches dated strictly after the given day, sorted by
// date with ties in input order.
func filterAfter(matches []model.Match, after *time.Time) []model.Match {
	out := make([]model.Match, 0, len(matches))
	for _, m := range matches {
		if after != nil && !m.Date.After(model.Day(*after)) {
			continue
		}
		out = append(out, m)
	}
	sortByDate(out)
	return out
}
