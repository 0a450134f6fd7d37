package gomoku

import "fmt"

// Variant names the family of rules a match is played under.
type Variant string

const (
	VariantFreestyle Variant = "freestyle"
)

// OpeningPolicy restricts the first moves of a match.
type OpeningPolicy string

const (
	OpeningNone    OpeningPolicy = "none"
	OpeningPro     OpeningPolicy = "pro"
	OpeningLongPro OpeningPolicy = "long-pro"
)

// WinLength is the run of stones that wins. Longer runs also win.
const WinLength = 5

// RuleSet is the immutable tuple a match is played under.
type RuleSet struct {
	ID        int64         `json:"id" yaml:"id"`
	Name      string        `json:"name" yaml:"name"`
	BoardSize int           `json:"board_size" yaml:"board_size"`
	Variant   Variant       `json:"variant" yaml:"variant"`
	Opening   OpeningPolicy `json:"opening" yaml:"opening"`
}

// Rules decides move legality and wins for one RuleSet.
type Rules interface {
	// Validate checks turn, bounds and occupancy in that order, then any
	// variant restriction. It returns nil for a legal move.
	Validate(b *Board, mv Move) error
	// PossibleMoves lists every legal placement for c.
	PossibleMoves(b *Board, c Color) []Move
	// IsWinningMove reports whether placing mv completes a run of at least
	// WinLength stones of its color through mv.Pos.
	IsWinningMove(b *Board, mv Move) bool
}

// RulesFor selects the rule engine for rs. Unknown variants or opening
// policies fail rather than fall back to freestyle.
func RulesFor(rs RuleSet) (Rules, error) {
	if !ValidBoardSize(rs.BoardSize) {
		return nil, ErrInvalidBoardSize
	}
	if rs.Variant != VariantFreestyle {
		return nil, fmt.Errorf("%w: variant %q", ErrVariantNotSupported, rs.Variant)
	}
	std := standardRules{size: rs.BoardSize}
	switch rs.Opening {
	case OpeningNone, "":
		return std, nil
	case OpeningPro:
		return proRules{standardRules: std, minDistance: 3}, nil
	case OpeningLongPro:
		return proRules{standardRules: std, minDistance: 4}, nil
	default:
		return nil, fmt.Errorf("%w: opening %q", ErrVariantNotSupported, rs.Opening)
	}
}

type standardRules struct {
	size int
}

func (r standardRules) mustMatch(b *Board) {
	if b.Size() != r.size {
		panic(fmt.Sprintf("gomoku: board size %d used with %dx%d rules", b.Size(), r.size, r.size))
	}
}

func (r standardRules) Validate(b *Board, mv Move) error {
	r.mustMatch(b)
	if mv.Color != b.NextColor() {
		return ErrInvalidTurn
	}
	if !mv.Pos.InBounds(r.size) {
		return ErrImpossiblePosition
	}
	if b.Has(mv.Pos) {
		return ErrAlreadyOccupied
	}
	return nil
}

func (r standardRules) PossibleMoves(b *Board, c Color) []Move {
	r.mustMatch(b)
	out := make([]Move, 0, r.size*r.size-b.Len())
	for idx := 0; idx < r.size*r.size; idx++ {
		p := PositionAt(idx, r.size)
		if !b.Has(p) {
			out = append(out, Move{Pos: p, Color: c})
		}
	}
	return out
}

var axes = [4][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}

func (r standardRules) IsWinningMove(b *Board, mv Move) bool {
	r.mustMatch(b)
	if !mv.Pos.InBounds(r.size) {
		return false
	}
	for _, d := range axes {
		run := 1 + r.count(b, mv, d[0], d[1]) + r.count(b, mv, -d[0], -d[1])
		if run >= WinLength {
			return true
		}
	}
	return false
}

// count walks from mv.Pos in direction (dx,dy) over stones of mv.Color.
func (r standardRules) count(b *Board, mv Move, dx, dy int) int {
	n := 0
	p := Position{X: mv.Pos.X + dx, Y: mv.Pos.Y + dy}
	for p.InBounds(r.size) {
		c, ok := b.At(p)
		if !ok || c != mv.Color {
			break
		}
		n++
		p = Position{X: p.X + dx, Y: p.Y + dy}
	}
	return n
}

// proRules forces the first stone onto the center and keeps black's second
// stone at least minDistance intersections away from it.
type proRules struct {
	standardRules
	minDistance int
}

func (r proRules) center() Position { return Position{X: r.size / 2, Y: r.size / 2} }

func (r proRules) allowed(n int, p Position) bool {
	c := r.center()
	switch n {
	case 0:
		return p == c
	case 2:
		return chebyshev(p, c) >= r.minDistance
	default:
		return true
	}
}

func (r proRules) Validate(b *Board, mv Move) error {
	if err := r.standardRules.Validate(b, mv); err != nil {
		return err
	}
	if !r.allowed(b.Len(), mv.Pos) {
		return ErrOpeningRestricted
	}
	return nil
}

func (r proRules) PossibleMoves(b *Board, c Color) []Move {
	all := r.standardRules.PossibleMoves(b, c)
	out := all[:0]
	for _, mv := range all {
		if r.allowed(b.Len(), mv.Pos) {
			out = append(out, mv)
		}
	}
	return out
}

func chebyshev(a, b Position) int {
	dx, dy := a.X-b.X, a.Y-b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}
