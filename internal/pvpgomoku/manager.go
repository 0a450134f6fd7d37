package pvpgomoku

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/gomoku-kakao-bot/internal/gomoku"
	"github.com/park285/gomoku-kakao-bot/internal/obslog"
	"github.com/park285/gomoku-kakao-bot/internal/rating"
	"github.com/park285/gomoku-kakao-bot/internal/store"
)

// Manager owns live matches in the store and settles finished ones into
// the result repository.
type Manager struct {
	st      store.Store
	results ResultRepository
	now     func() time.Time
	coin    func() (bool, error)
}

func NewManager(st store.Store, results ResultRepository) *Manager {
	return &Manager{st: st, results: results, now: time.Now, coin: cryptoCoin}
}

// cryptoCoin reports true when the first player should take black.
func cryptoCoin() (bool, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(2))
	if err != nil {
		return false, err
	}
	return n.Int64() == 0, nil
}

// Create starts a match between a and b inside the caller's store block.
// Colors are decided by a fair coin.
func (m *Manager) Create(ctx context.Context, tx store.Tx, rule gomoku.RuleSet, a, b int64) (*gomoku.OngoingMatch, error) {
	if a == b {
		return nil, gomoku.ErrSamePlayer
	}
	aBlack, err := m.coin()
	if err != nil {
		return nil, fmt.Errorf("color coin: %w", err)
	}
	black, white := a, b
	if !aBlack {
		black, white = b, a
	}
	id, err := tx.NextMatchID(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate match id: %w", err)
	}
	om, err := gomoku.NewMatch(gomoku.Header{ID: id, Black: black, White: white, Rule: rule})
	if err != nil {
		return nil, err
	}
	now := m.now()
	if err := tx.SaveMatch(ctx, toRecord(om, now, now)); err != nil {
		return nil, err
	}
	obslog.L().Info("match_create",
		zap.Int64("match_id", id),
		zap.Int64("rule_id", rule.ID),
		zap.Int64("black_id", black),
		zap.Int64("white_id", white),
	)
	return om, nil
}

// GetMatch restores a match from the store.
func (m *Manager) GetMatch(ctx context.Context, matchID int64) (gomoku.Match, error) {
	rec, err := m.st.LoadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrMatchNotFound
	}
	return fromRecord(rec)
}

// ActiveMatch returns the ongoing match userID plays in.
func (m *Manager) ActiveMatch(ctx context.Context, userID int64) (*gomoku.OngoingMatch, error) {
	rec, err := m.st.ActiveMatchByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrMatchNotFound
	}
	mt, err := fromRecord(rec)
	if err != nil {
		return nil, err
	}
	om, ok := mt.(*gomoku.OngoingMatch)
	if !ok {
		return nil, ErrMatchNotFound
	}
	return om, nil
}

// MakeMove places userID's stone at p. The returned settlement is non-nil
// only when this move finished the match and its result was archived.
func (m *Manager) MakeMove(ctx context.Context, matchID, userID int64, p gomoku.Position) (gomoku.Match, *Settlement, error) {
	next, createdAt, err := m.update(ctx, matchID, func(om *gomoku.OngoingMatch) (gomoku.Match, error) {
		return om.Play(userID, p)
	})
	if err != nil {
		return nil, nil, err
	}
	obslog.L().Info("match_move",
		zap.Int64("match_id", matchID),
		zap.Int64("user_id", userID),
		zap.Int("x", p.X),
		zap.Int("y", p.Y),
		zap.Int("ply", next.Board().Len()),
	)
	fin, ok := next.(*gomoku.FinishedMatch)
	if !ok {
		return next, nil, nil
	}
	obslog.L().Info("match_finish",
		zap.Int64("match_id", matchID),
		zap.String("outcome", fin.Outcome.String()),
		zap.String("reason", string(fin.Reason)),
	)
	return next, m.persistIfFinal(ctx, fin, createdAt), nil
}

// Forfeit ends the match in favour of userID's opponent.
func (m *Manager) Forfeit(ctx context.Context, matchID, userID int64) (*gomoku.FinishedMatch, *Settlement, error) {
	next, createdAt, err := m.update(ctx, matchID, func(om *gomoku.OngoingMatch) (gomoku.Match, error) {
		return om.Forfeit(userID)
	})
	if err != nil {
		return nil, nil, err
	}
	fin := next.(*gomoku.FinishedMatch)
	winner, _ := fin.WinnerID()
	obslog.L().Info("match_forfeit",
		zap.Int64("match_id", matchID),
		zap.Int64("user_id", userID),
		zap.Int64("winner_id", winner),
	)
	return fin, m.persistIfFinal(ctx, fin, createdAt), nil
}

// update runs step on the stored match with the match and both players'
// active-match keys held.
func (m *Manager) update(ctx context.Context, matchID int64, step func(*gomoku.OngoingMatch) (gomoku.Match, error)) (gomoku.Match, time.Time, error) {
	pre, err := m.st.LoadMatch(ctx, matchID)
	if err != nil {
		return nil, time.Time{}, err
	}
	if pre == nil {
		return nil, time.Time{}, ErrMatchNotFound
	}
	keys := []string{store.MatchKey(matchID), store.UserMatchKey(pre.Black), store.UserMatchKey(pre.White)}

	var next gomoku.Match
	var createdAt time.Time
	err = m.st.Atomic(ctx, keys, func(tx store.Tx) error {
		rec, err := tx.LoadMatch(ctx, matchID)
		if err != nil {
			return err
		}
		if rec == nil {
			return ErrMatchNotFound
		}
		cur, err := fromRecord(rec)
		if err != nil {
			return err
		}
		om, ok := cur.(*gomoku.OngoingMatch)
		if !ok {
			return gomoku.ErrMatchAlreadyFinished
		}
		if next, err = step(om); err != nil {
			return err
		}
		createdAt = rec.CreatedAt
		return tx.SaveMatch(ctx, toRecord(next, rec.CreatedAt, m.now()))
	})
	if errors.Is(err, store.ErrConflict) {
		return nil, time.Time{}, ErrConcurrentUpdate
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	return next, createdAt, nil
}

// persistIfFinal archives fin and applies ratings. Failures are logged; the
// match itself has already been saved as finished.
func (m *Manager) persistIfFinal(ctx context.Context, fin *gomoku.FinishedMatch, startedAt time.Time) *Settlement {
	if m.results == nil {
		return nil
	}
	black, white := fin.Players()
	res := GameResult{
		MatchID:    fin.MatchID(),
		ResultUUID: uuid.NewString(),
		RuleID:     fin.RuleSet().ID,
		Black:      black,
		White:      white,
		Outcome:    fin.Outcome,
		Reason:     fin.Reason,
		Moves:      fin.Board().Moves(),
		StartedAt:  startedAt,
		EndedAt:    m.now(),
	}
	s, err := m.results.ApplyResult(ctx, res)
	if err != nil {
		obslog.L().Error("result_persist_error", zap.Int64("match_id", res.MatchID), zap.String("outcome", res.Outcome.String()), zap.Error(err))
		return nil
	}
	obslog.L().Info("rating_apply",
		zap.Int64("match_id", res.MatchID),
		zap.Bool("applied", s.Applied),
		zap.Int("black_elo", s.Black.Elo),
		zap.Int("white_elo", s.White.Elo),
		zap.Int("black_delta", s.BlackDelta),
		zap.Int("white_delta", s.WhiteDelta),
	)
	return s
}

// Rating returns userID's record under ruleID, defaulting to a fresh one.
func (m *Manager) Rating(ctx context.Context, userID, ruleID int64) (rating.Record, error) {
	if m.results == nil {
		return rating.NewRecord(userID, ruleID), nil
	}
	return m.results.Rating(ctx, userID, ruleID)
}

// RecentResults lists userID's archived matches, newest first.
func (m *Manager) RecentResults(ctx context.Context, userID int64, limit int) ([]GameResult, error) {
	if m.results == nil {
		return nil, nil
	}
	return m.results.RecentResults(ctx, userID, limit)
}
