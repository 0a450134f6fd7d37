package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrConflict reports that an Atomic block lost a race on one of its keys.
// Nothing it buffered was written.
var ErrConflict = errors.New("store: concurrent update")

type MatchStatus string

const (
	StatusOngoing  MatchStatus = "ONGOING"
	StatusFinished MatchStatus = "FINISHED"
)

type StoredMove struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
}

// MatchRecord is the persisted form of a live or just-finished match.
type MatchRecord struct {
	ID        int64        `json:"id"`
	RuleID    int64        `json:"rule_id"`
	BoardSize int          `json:"board_size"`
	Variant   string       `json:"variant"`
	Opening   string       `json:"opening"`
	Black     int64        `json:"black"`
	White     int64        `json:"white"`
	Status    MatchStatus  `json:"status"`
	Outcome   string       `json:"outcome,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Moves     []StoredMove `json:"moves"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// LobbyEntry is one user waiting to be paired under a rule.
type LobbyEntry struct {
	LobbyID   int64     `json:"lobby_id"`
	RuleID    int64     `json:"rule_id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Reader looks records up. Missing records are (nil, nil).
type Reader interface {
	LoadMatch(ctx context.Context, id int64) (*MatchRecord, error)
	ActiveMatchByUser(ctx context.Context, userID int64) (*MatchRecord, error)
	LoadLobby(ctx context.Context, lobbyID int64) (*LobbyEntry, error)
	LoadLobbyByRule(ctx context.Context, ruleID int64) (*LobbyEntry, error)
	LoadLobbyByUser(ctx context.Context, userID int64) (*LobbyEntry, error)
	ListLobbies(ctx context.Context) ([]LobbyEntry, error)
}

// Tx is handed to an Atomic block. Writes are buffered and applied together
// when the block returns nil; reads see the state before the block.
type Tx interface {
	Reader
	NextMatchID(ctx context.Context) (int64, error)
	NextLobbyID(ctx context.Context) (int64, error)
	SaveMatch(ctx context.Context, rec *MatchRecord) error
	SaveLobby(ctx context.Context, e LobbyEntry) error
	DeleteLobby(ctx context.Context, e LobbyEntry) error
}

// Store serializes writers per key. Atomic runs fn with the named keys held;
// if any of them was written by someone else before commit it returns
// ErrConflict. Errors returned by fn are passed through unchanged.
type Store interface {
	Reader
	Atomic(ctx context.Context, keys []string, fn func(Tx) error) error
	Close() error
}

func MatchKey(id int64) string         { return fmt.Sprintf("gomoku:match:%d", id) }
func UserMatchKey(userID int64) string { return fmt.Sprintf("gomoku:match:user:%d", userID) }
func LobbyKey(id int64) string         { return fmt.Sprintf("gomoku:lobby:%d", id) }
func RuleLobbyKey(ruleID int64) string { return fmt.Sprintf("gomoku:lobby:rule:%d", ruleID) }
func UserLobbyKey(userID int64) string { return fmt.Sprintf("gomoku:lobby:user:%d", userID) }

const (
	keyLobbyIndex = "gomoku:lobby:index"
	keySeqMatch   = "gomoku:seq:match"
	keySeqLobby   = "gomoku:seq:lobby"
)

// keys a write touches, used by both implementations for conflict detection.
func matchWriteKeys(rec *MatchRecord) []string {
	return []string{MatchKey(rec.ID), UserMatchKey(rec.Black), UserMatchKey(rec.White)}
}

func lobbyWriteKeys(e LobbyEntry) []string {
	return []string{LobbyKey(e.LobbyID), RuleLobbyKey(e.RuleID), UserLobbyKey(e.UserID)}
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)
