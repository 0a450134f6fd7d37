package gomokupresenter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/park285/gomoku-kakao-bot/internal/gomoku"
)

type Kind int

const (
	CmdHelp Kind = iota
	CmdRules
	CmdMatch
	CmdLobbies
	CmdJoin
	CmdLeave
	CmdMove
	CmdBoard
	CmdResign
	CmdRating
	CmdHistory
)

var ErrBadCommand = errors.New("bad omok command")

// Coord is a coordinate as typed in chat: a 0-based column and the row
// label printed on the board, which counts up from the bottom edge.
type Coord struct {
	Col int
	Row int
}

// Position maps c onto a board of the given size. Labels outside the board
// produce positions the engine rejects as out of bounds.
func (c Coord) Position(size int) gomoku.Position {
	return gomoku.Position{X: c.Col, Y: size - c.Row}
}

func (c Coord) String() string {
	return fmt.Sprintf("%c%d", 'A'+c.Col, c.Row)
}

// Command is one parsed `omok` invocation. ID holds the rule or lobby id
// when the command takes one; zero means unset.
type Command struct {
	Kind  Kind
	ID    int64
	Coord Coord
}

var keywords = map[string]Kind{
	"help": CmdHelp, "도움말": CmdHelp,
	"rules": CmdRules, "규칙": CmdRules,
	"match": CmdMatch, "매칭": CmdMatch,
	"lobbies": CmdLobbies, "대기실": CmdLobbies,
	"join": CmdJoin, "참가": CmdJoin,
	"leave": CmdLeave, "취소": CmdLeave,
	"board": CmdBoard, "현황": CmdBoard,
	"resign": CmdResign, "기권": CmdResign,
	"rating": CmdRating, "레이팅": CmdRating,
	"history": CmdHistory, "기록": CmdHistory,
}

// Parse reads the arguments that follow the omok keyword.
func Parse(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{Kind: CmdHelp}, nil
	}
	head := strings.ToLower(strings.TrimSpace(args[0]))
	kind, ok := keywords[head]
	if !ok {
		c, err := parseCoord(args)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CmdMove, Coord: c}, nil
	}
	cmd := Command{Kind: kind}
	switch kind {
	case CmdMatch, CmdRating:
		if len(args) > 1 {
			id, err := parseID(args[1])
			if err != nil {
				return Command{}, err
			}
			cmd.ID = id
		}
	case CmdJoin:
		if len(args) < 2 {
			return Command{}, fmt.Errorf("%w: join needs a lobby id", ErrBadCommand)
		}
		id, err := parseID(args[1])
		if err != nil {
			return Command{}, err
		}
		cmd.ID = id
	}
	return cmd, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", ErrBadCommand, s)
	}
	return id, nil
}

// parseCoord accepts "h8" or "8 8" (column then row, both 1-based).
func parseCoord(args []string) (Coord, error) {
	if len(args) >= 2 {
		x, errX := strconv.Atoi(args[0])
		y, errY := strconv.Atoi(args[1])
		if errX != nil || errY != nil || x <= 0 || y <= 0 {
			return Coord{}, fmt.Errorf("%w: %q %q", ErrBadCommand, args[0], args[1])
		}
		return Coord{Col: x - 1, Row: y}, nil
	}
	s := strings.ToLower(strings.TrimSpace(args[0]))
	if len(s) < 2 || s[0] < 'a' || s[0] > 'z' {
		return Coord{}, fmt.Errorf("%w: %q", ErrBadCommand, args[0])
	}
	for _, r := range s[1:] {
		if !unicode.IsDigit(r) {
			return Coord{}, fmt.Errorf("%w: %q", ErrBadCommand, args[0])
		}
	}
	row, err := strconv.Atoi(s[1:])
	if err != nil || row <= 0 {
		return Coord{}, fmt.Errorf("%w: %q", ErrBadCommand, args[0])
	}
	return Coord{Col: int(s[0] - 'a'), Row: row}, nil
}
