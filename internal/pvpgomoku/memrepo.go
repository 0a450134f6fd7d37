package pvpgomoku

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/park285/gomoku-kakao-bot/internal/gomoku"
	"github.com/park285/gomoku-kakao-bot/internal/rating"
)

// memrepo is used when DATABASE_URL is not configured.
type memrepo struct {
	mu      sync.Mutex
	results map[int64]GameResult
	ratings map[ratingKey]rating.Record
}

type ratingKey struct{ user, rule int64 }

func NewMemoryRepository() ResultRepository {
	return &memrepo{
		results: make(map[int64]GameResult),
		ratings: make(map[ratingKey]rating.Record),
	}
}

func (r *memrepo) Close() error { return nil }

func (r *memrepo) ratingLocked(userID, ruleID int64) rating.Record {
	if rec, ok := r.ratings[ratingKey{userID, ruleID}]; ok {
		return rec
	}
	return rating.NewRecord(userID, ruleID)
}

func (r *memrepo) ApplyResult(_ context.Context, res GameResult) (*Settlement, error) {
	if res.Black == res.White {
		return nil, fmt.Errorf("result %d: %w", res.MatchID, gomoku.ErrSamePlayer)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	black := r.ratingLocked(res.Black, res.RuleID)
	white := r.ratingLocked(res.White, res.RuleID)
	if _, dup := r.results[res.MatchID]; dup {
		return &Settlement{Black: black, White: white}, nil
	}
	res.Moves = append([]gomoku.Move(nil), res.Moves...)
	r.results[res.MatchID] = res
	s := settle(res, black, white)
	r.ratings[ratingKey{res.Black, res.RuleID}] = s.Black
	r.ratings[ratingKey{res.White, res.RuleID}] = s.White
	return s, nil
}

func (r *memrepo) Rating(_ context.Context, userID, ruleID int64) (rating.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ratingLocked(userID, ruleID), nil
}

func (r *memrepo) RecentResults(_ context.Context, userID int64, limit int) ([]GameResult, error) {
	r.mu.Lock()
	out := make([]GameResult, 0)
	for _, res := range r.results {
		if res.Black == userID || res.White == userID {
			out = append(out, res)
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EndedAt.Equal(out[j].EndedAt) {
			return out[i].EndedAt.After(out[j].EndedAt)
		}
		return out[i].MatchID > out[j].MatchID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
