package gomoku

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var std15 = RuleSet{ID: 1, Name: "standard-15", BoardSize: 15, Variant: VariantFreestyle, Opening: OpeningNone}

func mustRules(t *testing.T, rs RuleSet) Rules {
	t.Helper()
	r, err := RulesFor(rs)
	require.NoError(t, err)
	return r
}

// stones places black stones at bs and white stones at ws, interleaved so
// the alternation invariant holds. len(bs) must be len(ws) or len(ws)+1.
func stones(t *testing.T, size int, bs, ws []Position) *Board {
	t.Helper()
	var moves []Move
	for i := range bs {
		moves = append(moves, Move{Pos: bs[i], Color: Black})
		if i < len(ws) {
			moves = append(moves, Move{Pos: ws[i], Color: White})
		}
	}
	return mustBoard(t, size, moves...)
}

func TestRulesForFailsClosed(t *testing.T) {
	_, err := RulesFor(RuleSet{BoardSize: 15, Variant: "renju", Opening: OpeningNone})
	require.ErrorIs(t, err, ErrVariantNotSupported)
	_, err = RulesFor(RuleSet{BoardSize: 15, Variant: VariantFreestyle, Opening: "swap2"})
	require.ErrorIs(t, err, ErrVariantNotSupported)
	_, err = RulesFor(RuleSet{BoardSize: 13, Variant: VariantFreestyle})
	require.ErrorIs(t, err, ErrInvalidBoardSize)
}

func TestValidateOrder(t *testing.T) {
	r := mustRules(t, std15)
	b := mustBoard(t, 15, Move{Pos: Position{X: 7, Y: 7}, Color: Black})

	// wrong turn and occupied: turn wins
	require.ErrorIs(t, r.Validate(b, Move{Pos: Position{X: 7, Y: 7}, Color: Black}), ErrInvalidTurn)
	// wrong turn and out of bounds: turn wins
	require.ErrorIs(t, r.Validate(b, Move{Pos: Position{X: 15, Y: 0}, Color: Black}), ErrInvalidTurn)
	require.ErrorIs(t, r.Validate(b, Move{Pos: Position{X: -1, Y: 0}, Color: White}), ErrImpossiblePosition)
	require.ErrorIs(t, r.Validate(b, Move{Pos: Position{X: 7, Y: 7}, Color: White}), ErrAlreadyOccupied)
	require.NoError(t, r.Validate(b, Move{Pos: Position{X: 7, Y: 8}, Color: White}))
}

func TestPossibleMoves(t *testing.T) {
	r := mustRules(t, std15)
	b := mustBoard(t, 15,
		Move{Pos: Position{X: 7, Y: 7}, Color: Black},
		Move{Pos: Position{X: 0, Y: 0}, Color: White},
	)
	moves := r.PossibleMoves(b, Black)
	require.Len(t, moves, 223)
	for _, mv := range moves {
		require.Equal(t, Black, mv.Color)
		require.False(t, b.Has(mv.Pos))
	}
}

func TestWinningMoveEveryAxis(t *testing.T) {
	r := mustRules(t, std15)
	cases := []struct {
		name   string
		blacks []Position
		last   Position
	}{
		{"horizontal", []Position{{3, 5}, {4, 5}, {5, 5}, {6, 5}}, Position{7, 5}},
		{"vertical", []Position{{9, 1}, {9, 2}, {9, 4}, {9, 5}}, Position{9, 3}},
		{"diagonal", []Position{{2, 2}, {3, 3}, {4, 4}, {5, 5}}, Position{6, 6}},
		{"anti-diagonal", []Position{{10, 0}, {9, 1}, {7, 3}, {6, 4}}, Position{8, 2}},
		{"edge", []Position{{0, 14}, {1, 14}, {2, 14}, {3, 14}}, Position{4, 14}},
	}
	whites := []Position{{14, 8}, {14, 9}, {14, 10}, {13, 12}}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := stones(t, 15, tc.blacks, whites)
			require.True(t, r.IsWinningMove(b, Move{Pos: tc.last, Color: Black}))
			require.False(t, r.IsWinningMove(b, Move{Pos: tc.last, Color: White}))
		})
	}
}

func TestOpenFourIsNotAWin(t *testing.T) {
	r := mustRules(t, std15)
	b := stones(t, 15,
		[]Position{{4, 7}, {5, 7}, {6, 7}},
		[]Position{{0, 0}, {0, 1}, {0, 2}},
	)
	require.False(t, r.IsWinningMove(b, Move{Pos: Position{X: 7, Y: 7}, Color: Black}))
}

func TestOverlineWins(t *testing.T) {
	r := mustRules(t, std15)
	b := stones(t, 15,
		[]Position{{2, 3}, {3, 3}, {4, 3}, {6, 3}, {7, 3}},
		[]Position{{0, 10}, {1, 10}, {2, 10}, {3, 11}, {5, 12}},
	)
	require.True(t, r.IsWinningMove(b, Move{Pos: Position{X: 5, Y: 3}, Color: Black}))
}

func TestBlockedRunStillCounts(t *testing.T) {
	r := mustRules(t, std15)
	b := stones(t, 15,
		[]Position{{1, 1}, {2, 1}, {3, 1}, {4, 1}},
		[]Position{{0, 1}, {10, 10}, {11, 11}, {12, 12}},
	)
	require.True(t, r.IsWinningMove(b, Move{Pos: Position{X: 5, Y: 1}, Color: Black}))
}

func TestProOpening(t *testing.T) {
	r := mustRules(t, RuleSet{BoardSize: 15, Variant: VariantFreestyle, Opening: OpeningPro})
	empty := mustBoard(t, 15)

	require.ErrorIs(t, r.Validate(empty, Move{Pos: Position{X: 0, Y: 0}, Color: Black}), ErrOpeningRestricted)
	require.NoError(t, r.Validate(empty, Move{Pos: Position{X: 7, Y: 7}, Color: Black}))
	require.Len(t, r.PossibleMoves(empty, Black), 1)

	b := mustBoard(t, 15,
		Move{Pos: Position{X: 7, Y: 7}, Color: Black},
		Move{Pos: Position{X: 8, Y: 8}, Color: White},
	)
	require.ErrorIs(t, r.Validate(b, Move{Pos: Position{X: 9, Y: 9}, Color: Black}), ErrOpeningRestricted)
	require.NoError(t, r.Validate(b, Move{Pos: Position{X: 10, Y: 7}, Color: Black}))
	// 5x5 around the center is closed, minus nothing occupied outside it
	require.Len(t, r.PossibleMoves(b, Black), 225-25)

	long := mustRules(t, RuleSet{BoardSize: 15, Variant: VariantFreestyle, Opening: OpeningLongPro})
	require.ErrorIs(t, long.Validate(b, Move{Pos: Position{X: 10, Y: 7}, Color: Black}), ErrOpeningRestricted)
	require.NoError(t, long.Validate(b, Move{Pos: Position{X: 11, Y: 7}, Color: Black}))
}

func TestTurnOrderCheckedBeforeOpening(t *testing.T) {
	r := mustRules(t, RuleSet{BoardSize: 19, Variant: VariantFreestyle, Opening: OpeningPro})
	empty := mustBoard(t, 19)
	require.ErrorIs(t, r.Validate(empty, Move{Pos: Position{X: 0, Y: 0}, Color: White}), ErrInvalidTurn)
	require.NoError(t, r.Validate(empty, Move{Pos: Position{X: 9, Y: 9}, Color: Black}))
}

func TestRulesPanicOnMismatchedBoard(t *testing.T) {
	r := mustRules(t, std15)
	b := mustBoard(t, 19)
	require.Panics(t, func() { _ = r.Validate(b, Move{Pos: Position{X: 0, Y: 0}, Color: Black}) })
}
