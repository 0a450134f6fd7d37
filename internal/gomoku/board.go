package gomoku

import "sync"

// Supported board sizes.
const (
	Size15 = 15
	Size19 = 19
)

// ValidBoardSize reports whether size is one of the supported sizes.
func ValidBoardSize(size int) bool { return size == Size15 || size == Size19 }

// Board is an immutable, append-only sequence of moves on a square grid.
// Every successful Add returns a new Board; the receiver is never changed.
//
// Boards derived from one another share an arena: the newest board of a
// lineage appends in place, an older board that branches copies its prefix.
type Board struct {
	size int
	n    int
	a    *arena
}

// arena holds moves in play order and, per intersection, the 1-based index
// of the move occupying it. A board of length n only sees entries <= n.
type arena struct {
	mu    sync.RWMutex
	moves []Move
	cells []int32
}

// NewBoard returns an empty board of the given size.
func NewBoard(size int) (*Board, error) {
	if !ValidBoardSize(size) {
		return nil, ErrInvalidBoardSize
	}
	return &Board{size: size, a: &arena{cells: make([]int32, size*size)}}, nil
}

func (b *Board) Size() int     { return b.size }
func (b *Board) Len() int      { return b.n }
func (b *Board) IsEmpty() bool { return b.n == 0 }
func (b *Board) IsFull() bool  { return b.n == b.size*b.size }

// NextColor is the color whose turn it is on this board.
func (b *Board) NextColor() Color { return ColorForTurn(b.n) }

// At returns the color occupying p, if any.
func (b *Board) At(p Position) (Color, bool) {
	if !p.InBounds(b.size) {
		return NoColor, false
	}
	b.a.mu.RLock()
	defer b.a.mu.RUnlock()
	idx := int(b.a.cells[p.Index(b.size)])
	if idx == 0 || idx > b.n {
		return NoColor, false
	}
	return b.a.moves[idx-1].Color, true
}

// Has reports whether p is occupied.
func (b *Board) Has(p Position) bool {
	_, ok := b.At(p)
	return ok
}

// Moves returns the moves in play order. The slice is a private copy.
func (b *Board) Moves() []Move {
	b.a.mu.RLock()
	defer b.a.mu.RUnlock()
	out := make([]Move, b.n)
	copy(out, b.a.moves[:b.n])
	return out
}

// Last returns the most recent move.
func (b *Board) Last() (Move, bool) {
	if b.n == 0 {
		return Move{}, false
	}
	b.a.mu.RLock()
	defer b.a.mu.RUnlock()
	return b.a.moves[b.n-1], true
}

// Add places mv and returns the resulting board. Only structural integrity
// is checked here; turn order and opening rules belong to Rules.
func (b *Board) Add(mv Move) (*Board, error) {
	if !mv.Pos.InBounds(b.size) {
		return nil, ErrImpossiblePosition
	}
	if b.Has(mv.Pos) {
		return nil, ErrAlreadyOccupied
	}
	idx := mv.Pos.Index(b.size)

	b.a.mu.Lock()
	if len(b.a.moves) == b.n {
		b.a.moves = append(b.a.moves, mv)
		b.a.cells[idx] = int32(b.n + 1)
		b.a.mu.Unlock()
		return &Board{size: b.size, n: b.n + 1, a: b.a}, nil
	}
	// branching from an older board: copy the visible prefix
	na := &arena{
		moves: make([]Move, b.n, b.n+16),
		cells: make([]int32, len(b.a.cells)),
	}
	copy(na.moves, b.a.moves[:b.n])
	b.a.mu.Unlock()

	for i, m := range na.moves {
		na.cells[m.Pos.Index(b.size)] = int32(i + 1)
	}
	na.moves = append(na.moves, mv)
	na.cells[idx] = int32(b.n + 1)
	return &Board{size: b.size, n: b.n + 1, a: na}, nil
}

// Replay builds a board from moves in order, checking structure and the
// black/white alternation.
func Replay(size int, moves []Move) (*Board, error) {
	b, err := NewBoard(size)
	if err != nil {
		return nil, err
	}
	for i, mv := range moves {
		if mv.Color != ColorForTurn(i) {
			return nil, ErrCorruptHistory
		}
		if b, err = b.Add(mv); err != nil {
			return nil, ErrCorruptHistory
		}
	}
	return b, nil
}
