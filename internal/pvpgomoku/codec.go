package pvpgomoku

import (
	"fmt"
	"time"

	"github.com/park285/gomoku-kakao-bot/internal/gomoku"
	"github.com/park285/gomoku-kakao-bot/internal/store"
)

func toStoredMoves(ms []gomoku.Move) []store.StoredMove {
	out := make([]store.StoredMove, len(ms))
	for i, mv := range ms {
		out[i] = store.StoredMove{X: mv.Pos.X, Y: mv.Pos.Y, Color: mv.Color.String()}
	}
	return out
}

func fromStoredMoves(ms []store.StoredMove) ([]gomoku.Move, error) {
	out := make([]gomoku.Move, len(ms))
	for i, sm := range ms {
		c, err := gomoku.ParseColor(sm.Color)
		if err != nil {
			return nil, fmt.Errorf("%w: move %d: %v", gomoku.ErrCorruptHistory, i, err)
		}
		out[i] = gomoku.Move{Pos: gomoku.Position{X: sm.X, Y: sm.Y}, Color: c}
	}
	return out, nil
}

func toRecord(m gomoku.Match, createdAt, now time.Time) *store.MatchRecord {
	black, white := m.Players()
	rs := m.RuleSet()
	rec := &store.MatchRecord{
		ID:        m.MatchID(),
		RuleID:    rs.ID,
		BoardSize: rs.BoardSize,
		Variant:   string(rs.Variant),
		Opening:   string(rs.Opening),
		Black:     black,
		White:     white,
		Status:    store.StatusOngoing,
		Moves:     toStoredMoves(m.Board().Moves()),
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
	if fin, ok := m.(*gomoku.FinishedMatch); ok {
		rec.Status = store.StatusFinished
		rec.Outcome = fin.Outcome.String()
		rec.Reason = string(fin.Reason)
	}
	return rec
}

func fromRecord(rec *store.MatchRecord) (gomoku.Match, error) {
	h := gomoku.Header{
		ID:    rec.ID,
		Black: rec.Black,
		White: rec.White,
		Rule: gomoku.RuleSet{
			ID:        rec.RuleID,
			BoardSize: rec.BoardSize,
			Variant:   gomoku.Variant(rec.Variant),
			Opening:   gomoku.OpeningPolicy(rec.Opening),
		},
	}
	moves, err := fromStoredMoves(rec.Moves)
	if err != nil {
		return nil, err
	}
	var end *gomoku.Ending
	if rec.Status == store.StatusFinished {
		o, err := gomoku.ParseOutcome(rec.Outcome)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", gomoku.ErrCorruptHistory, err)
		}
		end = &gomoku.Ending{Outcome: o, Reason: gomoku.Reason(rec.Reason)}
	}
	return gomoku.Restore(h, moves, end)
}
