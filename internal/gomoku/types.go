package gomoku

import (
	"errors"
	"fmt"
	"strings"
)

// Color identifies a stone color.
type Color uint8

const (
	NoColor Color = iota
	Black
	White
)

func (c Color) String() string {
	switch c {
	case Black:
		return "black"
	case White:
		return "white"
	default:
		return "none"
	}
}

// Opponent returns the other stone color.
func (c Color) Opponent() Color {
	switch c {
	case Black:
		return White
	case White:
		return Black
	default:
		return NoColor
	}
}

// ParseColor accepts "black"/"b" and "white"/"w".
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "black", "b":
		return Black, nil
	case "white", "w":
		return White, nil
	default:
		return NoColor, fmt.Errorf("unknown color %q", s)
	}
}

// ColorForTurn is the color to move after n stones were played.
func ColorForTurn(n int) Color {
	if n%2 == 0 {
		return Black
	}
	return White
}

// Position is a board intersection. X is the column, Y the row.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// InBounds reports whether p lies inside [0,size)².
func (p Position) InBounds(size int) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < size && p.Y < size
}

// Index returns the row-major linear index of p.
func (p Position) Index(size int) int { return p.Y*size + p.X }

// PositionAt is the inverse of Position.Index.
func PositionAt(idx, size int) Position { return Position{X: idx % size, Y: idx / size} }

// Move is a stone placement.
type Move struct {
	Pos   Position `json:"pos"`
	Color Color    `json:"color"`
}

func (m Move) String() string { return m.Color.String() + "@" + m.Pos.String() }

// Outcome of a finished match.
type Outcome uint8

const (
	BlackWon Outcome = iota + 1
	WhiteWon
	Draw
)

func (o Outcome) String() string {
	switch o {
	case BlackWon:
		return "black_won"
	case WhiteWon:
		return "white_won"
	case Draw:
		return "draw"
	default:
		return "unknown"
	}
}

// ParseOutcome is the inverse of Outcome.String.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.TrimSpace(s) {
	case "black_won":
		return BlackWon, nil
	case "white_won":
		return WhiteWon, nil
	case "draw":
		return Draw, nil
	default:
		return 0, fmt.Errorf("unknown outcome %q", s)
	}
}

// WinFor returns the outcome where c wins.
func WinFor(c Color) Outcome {
	if c == White {
		return WhiteWon
	}
	return BlackWon
}

// Reason records how a match ended.
type Reason string

const (
	ReasonFive      Reason = "five"
	ReasonFullBoard Reason = "full_board"
	ReasonForfeit   Reason = "forfeit"
)

// Errors returned by board, rule and match operations.
var (
	ErrInvalidBoardSize     = errors.New("invalid board size")
	ErrImpossiblePosition   = errors.New("position outside the board")
	ErrAlreadyOccupied      = errors.New("position already occupied")
	ErrInvalidTurn          = errors.New("not this color's turn")
	ErrOpeningRestricted    = errors.New("move violates the opening policy")
	ErrMatchAlreadyFinished = errors.New("match already finished")
	ErrPlayerNotInMatch     = errors.New("player not in match")
	ErrSamePlayer           = errors.New("a player cannot play against themself")
	ErrVariantNotSupported  = errors.New("rule variant not supported")
	ErrCorruptHistory       = errors.New("stored move history is inconsistent")
)
