package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/gaffer/internal/domain/model"
	"github.com/okian/gaffer/pkg/logger"
)

const csvExt = ".csv"

// CSVFeed reads cached football-data.co.uk files laid out as
// <dir>/<league>/<season>.csv.
type CSVFeed struct {
	dir    string
	logger logger.Logger
}

// CSVOption configures a CSVFeed.
type CSVOption func(*CSVFeed)

// WithCSVLogger sets the feed logger.
func WithCSVLogger(l logger.Logger) CSVOption {
	return func(f *CSVFeed) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewCSVFeed returns a feed rooted at dir.
func NewCSVFeed(dir string, opts ...CSVOption) *CSVFeed {
	f := &CSVFeed{dir: dir, logger: logger.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchMatches implements Feed. Files are read in league then season order,
// so same-day matches keep league, season and file row order.
func (f *CSVFeed) FetchMatches(ctx context.Context, after *time.Time) ([]model.Match, error) {
	all, err := f.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return filterAfter(all, after), nil
}

// ReadAll returns every match in the cache in file order.
func (f *CSVFeed) ReadAll(ctx context.Context) ([]model.Match, error) {
	leagues, err := os.ReadDir(f.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoData, f.dir)
		}
		return nil, fmt.Errorf("read csv dir: %w", err)
	}

	var all []model.Match
	for _, league := range leagues {
		if !league.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(f.dir, league.Name()))
		if err != nil {
			return nil, fmt.Errorf("read league dir %s: %w", league.Name(), err)
		}
		for _, file := range files {
			if file.IsDir() || !strings.EqualFold(filepath.Ext(file.Name()), csvExt) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			season := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
			path := filepath.Join(f.dir, league.Name(), file.Name())
			matches, err := readFile(path, season, league.Name())
			if err != nil {
				return nil, err
			}
			f.logger.Debug(ctx, "read match file",
				logger.String("path", path),
				logger.Int("matches", len(matches)))
			all = append(all, matches...)
		}
	}
	return all, nil
}

func readFile(path, season, league string) ([]model.Match, error) {
	fh, err := os.Open(path) //nolint:gosec // path is built from the configured cache directory
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()

	matches, err := ReadCSV(fh, season, league)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return matches, nil
}

// ReadCSV parses football-data CSV content. season and league fill rows that
// carry no such column. Blank rows are skipped; any other row that cannot be
// normalized fails the whole file.
func ReadCSV(r io.Reader, season, league string) ([]model.Match, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var out []model.Match
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if blank(rec) {
			continue
		}

		row := make(Row, len(header)+2)
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		if _, ok := lookup(row, seasonColumns); !ok {
			row["season"] = season
		}
		if _, ok := lookup(row, leagueColumns); !ok {
			row["league"] = league
		}

		m, err := Normalize(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
