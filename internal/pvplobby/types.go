package pvplobby

import (
	"errors"
	"fmt"

	"github.com/park285/gomoku-kakao-bot/internal/gomoku"
	"github.com/park285/gomoku-kakao-bot/internal/store"
)

var (
	ErrSamePlayer        = fmt.Errorf("cannot pair with yourself: %w", gomoku.ErrSamePlayer)
	ErrLobbyNotFound     = errors.New("lobby not found")
	ErrUserNotInLobby    = errors.New("lobby belongs to another user")
	ErrAlreadyPairedRace = errors.New("lobby was taken by a concurrent request")
	ErrAlreadyInLobby    = errors.New("user already waits in a lobby")
	ErrPlayerBusy        = errors.New("user already plays a match")
	ErrRuleNotFound      = errors.New("rule not found")
)

type State string

const (
	StateWaiting State = "waiting"
	StateMatched State = "matched"
)

// Outcome is the result of a matchmaking request. Waiting outcomes carry
// the new lobby entry; matched outcomes carry the started match.
type Outcome struct {
	State State
	Lobby *store.LobbyEntry
	Match *gomoku.OngoingMatch
}

func (o Outcome) LobbyID() int64 {
	if o.Lobby == nil {
		return 0
	}
	return o.Lobby.LobbyID
}

func (o Outcome) MatchID() int64 {
	if o.Match == nil {
		return 0
	}
	return o.Match.MatchID()
}
