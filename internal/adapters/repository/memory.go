package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/okian/gaffer/internal/domain/model"
	"github.com/okian/gaffer/pkg/metrics"
)

// MemoryStore is an in-process Store. Ratings are indexed by a treap so rank
// lookups and top-N reads stay logarithmic; the ledger is an append-only
// slice deduplicated by match key.
type MemoryStore struct {
	mu     sync.RWMutex
	root   *node
	byTeam map[string]model.TeamRating

	ledger []model.MatchRecord
	keys   map[model.MatchKey]struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byTeam: make(map[string]model.TeamRating),
		keys:   make(map[model.MatchKey]struct{}),
	}
}

// LoadRatings implements Store.
func (s *MemoryStore) LoadRatings(_ context.Context) ([]model.TeamRating, error) {
	defer observe(backendMemory, "load_ratings", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.TeamRating, 0, len(s.byTeam))
	walk(s.root, func(team string) bool {
		r := s.byTeam[team]
		r.Rank = len(out) + 1
		out = append(out, r)
		return true
	})
	return out, nil
}

// MaxHistoryDate implements Store.
func (s *MemoryStore) MaxHistoryDate(_ context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	for _, rec := range s.ledger {
		if rec.Date.After(latest) {
			latest = rec.Date
		}
	}
	return latest, len(s.ledger) > 0, nil
}

// UpsertRatings implements Store.
func (s *MemoryStore) UpsertRatings(_ context.Context, ratings []model.TeamRating) error {
	defer observe(backendMemory, "upsert_ratings", time.Now())

	s.mu.Lock()
	s.upsertLocked(ratings)
	n := len(s.byTeam)
	s.mu.Unlock()

	metrics.UpdateTeamsRated(n)
	return nil
}

// AppendHistory implements Store.
func (s *MemoryStore) AppendHistory(_ context.Context, records []model.MatchRecord) error {
	defer observe(backendMemory, "append_history", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(records)
	return nil
}

// Persist implements Store. Both writes happen under one lock.
func (s *MemoryStore) Persist(ctx context.Context, ratings []model.TeamRating, records []model.MatchRecord) error {
	defer observe(backendMemory, "persist", time.Now())

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.appendLocked(records)
	s.upsertLocked(ratings)
	n := len(s.byTeam)
	s.mu.Unlock()

	metrics.UpdateTeamsRated(n)
	return nil
}

func (s *MemoryStore) upsertLocked(ratings []model.TeamRating) {
	for _, r := range ratings {
		if old, ok := s.byTeam[r.Team]; ok {
			s.root = deleteNode(s.root, old.Team, old.Rating)
		}
		r.Rank = 0
		s.byTeam[r.Team] = r
		s.root = insert(s.root, r.Team, r.Rating)
	}
}

func (s *MemoryStore) appendLocked(records []model.MatchRecord) {
	for _, rec := range records {
		k := rec.Key()
		if _, ok := s.keys[k]; ok {
			continue
		}
		s.keys[k] = struct{}{}
		s.ledger = append(s.ledger, rec)
	}
}

// TopN implements Store.
func (s *MemoryStore) TopN(_ context.Context, n int, league string) ([]model.TeamRating, error) {
	defer observe(backendMemory, "top_n", time.Now())

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.TeamRating, 0, min(n, len(s.byTeam)))
	walk(s.root, func(team string) bool {
		r := s.byTeam[team]
		if league != "" && r.League != league {
			return true
		}
		r.Rank = len(out) + 1
		out = append(out, r)
		return len(out) < n
	})
	return out, nil
}

// Rank implements Store.
func (s *MemoryStore) Rank(_ context.Context, team string) (model.TeamRating, error) {
	defer observe(backendMemory, "rank", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byTeam[team]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.TeamRating{}, ErrNotFound
	}
	r.Rank = position(s.root, r.Team, r.Rating) + 1
	return r, nil
}

// History implements Store.
func (s *MemoryStore) History(_ context.Context, team string, limit int) ([]model.MatchRecord, error) {
	defer observe(backendMemory, "history", time.Now())

	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	var rows []model.MatchRecord
	for _, rec := range s.ledger {
		if team == "" || rec.HomeTeam == team || rec.AwayTeam == team {
			rows = append(rows, rec)
		}
	}
	s.mu.RUnlock()

	slices.Reverse(rows)
	slices.SortStableFunc(rows, func(a, b model.MatchRecord) int {
		return b.Date.Compare(a.Date)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// RatingsAsOf implements Store.
func (s *MemoryStore) RatingsAsOf(_ context.Context, date time.Time, league string) ([]model.TeamRating, error) {
	defer observe(backendMemory, "ratings_as_of", time.Now())

	s.mu.RLock()
	rows := slices.Clone(s.ledger)
	s.mu.RUnlock()

	slices.SortStableFunc(rows, func(a, b model.MatchRecord) int {
		return a.Date.Compare(b.Date)
	})
	return ratingsFromLedger(rows, date, league), nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byTeam), nil
}

// Close implements Store.
func (s *MemoryStore) Close() {}
