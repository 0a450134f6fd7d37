package gomoku

// Match is either *OngoingMatch or *FinishedMatch. Callers switch on the
// concrete type; no other implementations exist.
type Match interface {
	MatchID() int64
	Players() (black, white int64)
	RuleSet() RuleSet
	Board() *Board
	sealed()
}

// Header carries the identity of a match.
type Header struct {
	ID    int64
	Black int64
	White int64
	Rule  RuleSet
}

func (h Header) MatchID() int64                { return h.ID }
func (h Header) Players() (black, white int64) { return h.Black, h.White }
func (h Header) RuleSet() RuleSet              { return h.Rule }

// ColorOf returns the color userID plays.
func (h Header) ColorOf(userID int64) (Color, bool) {
	switch userID {
	case h.Black:
		return Black, true
	case h.White:
		return White, true
	default:
		return NoColor, false
	}
}

// PlayerOf returns the user playing c.
func (h Header) PlayerOf(c Color) int64 {
	if c == White {
		return h.White
	}
	return h.Black
}

// OngoingMatch accepts moves until a win or a full board.
type OngoingMatch struct {
	Header
	board *Board
	rules Rules
}

// FinishedMatch is terminal.
type FinishedMatch struct {
	Header
	board   *Board
	Outcome Outcome
	Reason  Reason
}

func (m *OngoingMatch) Board() *Board  { return m.board }
func (m *FinishedMatch) Board() *Board { return m.board }
func (*OngoingMatch) sealed()          {}
func (*FinishedMatch) sealed()         {}

// NewMatch starts an empty match.
func NewMatch(h Header) (*OngoingMatch, error) {
	if h.Black == h.White {
		return nil, ErrSamePlayer
	}
	rules, err := RulesFor(h.Rule)
	if err != nil {
		return nil, err
	}
	b, err := NewBoard(h.Rule.BoardSize)
	if err != nil {
		return nil, err
	}
	return &OngoingMatch{Header: h, board: b, rules: rules}, nil
}

// Ending describes how a stored match finished.
type Ending struct {
	Outcome Outcome
	Reason  Reason
}

// Restore rebuilds a match from stored moves. A nil ending yields an
// ongoing match.
func Restore(h Header, moves []Move, end *Ending) (Match, error) {
	if h.Black == h.White {
		return nil, ErrSamePlayer
	}
	rules, err := RulesFor(h.Rule)
	if err != nil {
		return nil, err
	}
	b, err := Replay(h.Rule.BoardSize, moves)
	if err != nil {
		return nil, err
	}
	if end != nil {
		return &FinishedMatch{Header: h, board: b, Outcome: end.Outcome, Reason: end.Reason}, nil
	}
	return &OngoingMatch{Header: h, board: b, rules: rules}, nil
}

// Turn is the color to move, derived from the number of stones played.
func (m *OngoingMatch) Turn() Color { return m.board.NextColor() }

// Rules returns the engine the match validates moves with.
func (m *OngoingMatch) Rules() Rules { return m.rules }

// MakeMove validates mv and returns the next state. The receiver is left
// untouched on success and on failure.
func (m *OngoingMatch) MakeMove(mv Move) (Match, error) {
	if err := m.rules.Validate(m.board, mv); err != nil {
		return nil, err
	}
	winning := m.rules.IsWinningMove(m.board, mv)
	next, err := m.board.Add(mv)
	if err != nil {
		return nil, err
	}
	if winning {
		return &FinishedMatch{Header: m.Header, board: next, Outcome: WinFor(mv.Color), Reason: ReasonFive}, nil
	}
	if len(m.rules.PossibleMoves(next, next.NextColor())) == 0 {
		return &FinishedMatch{Header: m.Header, board: next, Outcome: Draw, Reason: ReasonFullBoard}, nil
	}
	return &OngoingMatch{Header: m.Header, board: next, rules: m.rules}, nil
}

// Play places a stone for userID at p using the color that user holds.
func (m *OngoingMatch) Play(userID int64, p Position) (Match, error) {
	c, ok := m.ColorOf(userID)
	if !ok {
		return nil, ErrPlayerNotInMatch
	}
	return m.MakeMove(Move{Pos: p, Color: c})
}

// Forfeit ends the match in favour of the opponent of userID.
func (m *OngoingMatch) Forfeit(userID int64) (*FinishedMatch, error) {
	c, ok := m.ColorOf(userID)
	if !ok {
		return nil, ErrPlayerNotInMatch
	}
	return &FinishedMatch{Header: m.Header, board: m.board, Outcome: WinFor(c.Opponent()), Reason: ReasonForfeit}, nil
}

// WinnerID maps the outcome back to a user id; ok is false for a draw.
func (m *FinishedMatch) WinnerID() (id int64, ok bool) {
	switch m.Outcome {
	case BlackWon:
		return m.Black, true
	case WhiteWon:
		return m.White, true
	default:
		return 0, false
	}
}

// MakeMove applies mv to any match, rejecting finished ones.
func MakeMove(m Match, mv Move) (Match, error) {
	switch cur := m.(type) {
	case *OngoingMatch:
		return cur.MakeMove(mv)
	case *FinishedMatch:
		return nil, ErrMatchAlreadyFinished
	default:
		panic("gomoku: unknown match type")
	}
}

// Forfeit ends any match for userID, rejecting finished ones.
func Forfeit(m Match, userID int64) (*FinishedMatch, error) {
	switch cur := m.(type) {
	case *OngoingMatch:
		return cur.Forfeit(userID)
	case *FinishedMatch:
		return nil, ErrMatchAlreadyFinished
	default:
		panic("gomoku: unknown match type")
	}
}
