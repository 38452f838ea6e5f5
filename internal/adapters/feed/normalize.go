package feed

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/okian/gaffer/internal/domain/model"
)

// Row is one match as delivered by an external source, keyed by column name.
type Row map[string]any

// Column aliases per canonical field. The raw source schema is checked first,
// then the display schema.
var (
	dateColumns     = []string{"date", "Date"}
	homeTeamColumns = []string{"home_team", "HomeTeam"}
	awayTeamColumns = []string{"away_team", "AwayTeam"}
	homeGoalColumns = []string{"fthg", "FTHG"}
	awayGoalColumns = []string{"ftag", "FTAG"}
	seasonColumns   = []string{"season", "Season"}
	leagueColumns   = []string{"league", "League"}
)

// Accepted date layouts, tried in order.
var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
	"02/01/06",
}

// Normalize maps a row in either supported schema to a Match. A goal count of
// zero is a present value; only an absent or empty column counts as missing.
func Normalize(row Row) (model.Match, error) {
	var m model.Match

	rawDate, ok := lookup(row, dateColumns)
	if !ok {
		return m, fmt.Errorf("%w: missing date", ErrMalformedRow)
	}
	date, err := parseDate(rawDate)
	if err != nil {
		return m, fmt.Errorf("%w: %w", ErrMalformedRow, err)
	}
	m.Date = date

	if m.HomeTeam, err = text(row, homeTeamColumns, "home team"); err != nil {
		return m, err
	}
	if m.AwayTeam, err = text(row, awayTeamColumns, "away team"); err != nil {
		return m, err
	}
	if m.HomeGoals, err = goals(row, homeGoalColumns, "home goals"); err != nil {
		return m, err
	}
	if m.AwayGoals, err = goals(row, awayGoalColumns, "away goals"); err != nil {
		return m, err
	}

	if v, ok := lookup(row, seasonColumns); ok {
		m.Season = stringify(v)
	}
	if v, ok := lookup(row, leagueColumns); ok {
		m.League = stringify(v)
	}
	return m, nil
}

// NormalizeAll normalizes every row. The first malformed row fails the batch.
func NormalizeAll(rows []Row) ([]model.Match, error) {
	out := make([]model.Match, 0, len(rows))
	for i, r := range rows {
		m, err := Normalize(r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// lookup returns the first alias holding a non-empty value.
func lookup(row Row, aliases []string) (any, bool) {
	for _, k := range aliases {
		v, ok := row[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func text(row Row, aliases []string, field string) (string, error) {
	v, ok := lookup(row, aliases)
	if !ok {
		return "", fmt.Errorf("%w: missing %s", ErrMalformedRow, field)
	}
	return stringify(v), nil
}

func goals(row Row, aliases []string, field string) (int, error) {
	v, ok := lookup(row, aliases)
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrMalformedRow, field)
	}
	n, err := toInt(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrMalformedRow, field, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s: %w", ErrMalformedRow, field, model.ErrNegativeGoals)
	}
	return n, nil
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		return wholeFloat(n)
	case float32:
		return wholeFloat(float64(n))
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.Atoi(s); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return wholeFloat(f)
	default:
		return 0, fmt.Errorf("unsupported goal value type %T", v)
	}
}

func wholeFloat(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("not a whole number: %v", f)
	}
	return int(f), nil
}

func parseDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return model.Day(d), nil
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return model.Day(t), nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable date %q", d)
	default:
		return time.Time{}, fmt.Errorf("unsupported date type %T", v)
	}
}

func sortByDate(matches []model.Match) {
	slices.SortStableFunc(matches, func(a, b model.Match) int {
		return a.Date.Compare(b.Date)
	})
}
