package pvpgomoku

import (
	"context"
	"errors"
	"time"

	"github.com/park285/gomoku-kakao-bot/internal/gomoku"
	"github.com/park285/gomoku-kakao-bot/internal/rating"
)

var (
	ErrMatchNotFound    = errors.New("match not found")
	ErrConcurrentUpdate = errors.New("match was updated concurrently, retry")
)

// GameResult is the archived row of one finished match.
type GameResult struct {
	MatchID    int64
	ResultUUID string
	RuleID     int64
	Black      int64
	White      int64
	Outcome    gomoku.Outcome
	Reason     gomoku.Reason
	Moves      []gomoku.Move
	StartedAt  time.Time
	EndedAt    time.Time
}

// WinnerID returns the winning user, or false for a draw.
func (r GameResult) WinnerID() (int64, bool) {
	switch r.Outcome {
	case gomoku.BlackWon:
		return r.Black, true
	case gomoku.WhiteWon:
		return r.White, true
	default:
		return 0, false
	}
}

// Settlement reports the ratings after a result was applied. Applied is
// false when the result had already been recorded; the records are then the
// current ones and nothing changed.
type Settlement struct {
	Applied    bool
	Black      rating.Record
	White      rating.Record
	BlackDelta int
	WhiteDelta int
}

// ResultRepository archives finished matches and owns rating records.
// ApplyResult must record a match at most once and update both ratings in
// the same transaction as the archive row.
type ResultRepository interface {
	ApplyResult(ctx context.Context, res GameResult) (*Settlement, error)
	Rating(ctx context.Context, userID, ruleID int64) (rating.Record, error)
	RecentResults(ctx context.Context, userID int64, limit int) ([]GameResult, error)
	Close() error
}

func scoreForBlack(o gomoku.Outcome) float64 {
	switch o {
	case gomoku.BlackWon:
		return rating.ScoreWin
	case gomoku.WhiteWon:
		return rating.ScoreLoss
	default:
		return rating.ScoreDraw
	}
}

// settle applies res to the prior records of both players.
func settle(res GameResult, black, white rating.Record) *Settlement {
	nb, nw := rating.Apply(black, white, scoreForBlack(res.Outcome), res.EndedAt)
	return &Settlement{
		Applied:    true,
		Black:      nb,
		White:      nw,
		BlackDelta: nb.Elo - black.Elo,
		WhiteDelta: nw.Elo - white.Elo,
	}
}
