package pvplobby

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/park285/gomoku-kakao-bot/internal/gomoku"
	"github.com/park285/gomoku-kakao-bot/internal/obslog"
	"github.com/park285/gomoku-kakao-bot/internal/store"
)

// RuleSource resolves rule ids.
type RuleSource interface {
	Rule(id int64) (gomoku.RuleSet, error)
}

// MatchCreator starts a match inside a store block.
type MatchCreator interface {
	Create(ctx context.Context, tx store.Tx, rule gomoku.RuleSet, a, b int64) (*gomoku.OngoingMatch, error)
}

// Coordinator pairs waiting users. Every operation runs as one store block
// over the rule, lobby and user keys it reads, so two requests can never
// consume the same waiting entry.
type Coordinator struct {
	st      store.Store
	rules   RuleSource
	matches MatchCreator
	now     func() time.Time
}

func NewCoordinator(st store.Store, rules RuleSource, matches MatchCreator) *Coordinator {
	return &Coordinator{st: st, rules: rules, matches: matches, now: time.Now}
}

func (c *Coordinator) rule(id int64) (gomoku.RuleSet, error) {
	rs, err := c.rules.Rule(id)
	if err != nil {
		return gomoku.RuleSet{}, ErrRuleNotFound
	}
	return rs, nil
}

func raceErr(err error) error {
	if errors.Is(err, store.ErrConflict) {
		return ErrAlreadyPairedRace
	}
	return err
}

// ensureFree rejects users who already play or already wait somewhere.
func ensureFree(ctx context.Context, tx store.Tx, userID int64) error {
	busy, err := tx.ActiveMatchByUser(ctx, userID)
	if err != nil {
		return err
	}
	if busy != nil {
		return ErrPlayerBusy
	}
	own, err := tx.LoadLobbyByUser(ctx, userID)
	if err != nil {
		return err
	}
	if own != nil {
		return ErrAlreadyInLobby
	}
	return nil
}

// RequestMatch pairs userID with whoever waits under ruleID, or leaves
// userID waiting when nobody does.
func (c *Coordinator) RequestMatch(ctx context.Context, ruleID, userID int64) (Outcome, error) {
	rs, err := c.rule(ruleID)
	if err != nil {
		return Outcome{}, err
	}
	keys := []string{store.RuleLobbyKey(ruleID), store.UserLobbyKey(userID), store.UserMatchKey(userID)}

	var out Outcome
	err = c.st.Atomic(ctx, keys, func(tx store.Tx) error {
		waiting, err := tx.LoadLobbyByRule(ctx, ruleID)
		if err != nil {
			return err
		}
		if waiting != nil && waiting.UserID == userID {
			return ErrSamePlayer
		}
		if err := ensureFree(ctx, tx, userID); err != nil {
			return err
		}
		if waiting == nil {
			id, err := tx.NextLobbyID(ctx)
			if err != nil {
				return err
			}
			e := store.LobbyEntry{LobbyID: id, RuleID: ruleID, UserID: userID, CreatedAt: c.now()}
			if err := tx.SaveLobby(ctx, e); err != nil {
				return err
			}
			out = Outcome{State: StateWaiting, Lobby: &e}
			return nil
		}
		om, err := c.pair(ctx, tx, rs, *waiting, userID)
		if err != nil {
			return err
		}
		out = Outcome{State: StateMatched, Lobby: waiting, Match: om}
		return nil
	})
	if err != nil {
		return Outcome{}, raceErr(err)
	}
	c.logOutcome(out, userID)
	return out, nil
}

// JoinLobby pairs userID with the owner of a specific lobby entry.
func (c *Coordinator) JoinLobby(ctx context.Context, lobbyID, userID int64) (Outcome, error) {
	pre, err := c.st.LoadLobby(ctx, lobbyID)
	if err != nil {
		return Outcome{}, err
	}
	if pre == nil {
		return Outcome{}, ErrLobbyNotFound
	}
	if pre.UserID == userID {
		return Outcome{}, ErrSamePlayer
	}
	rs, err := c.rule(pre.RuleID)
	if err != nil {
		return Outcome{}, err
	}
	keys := []string{
		store.LobbyKey(lobbyID), store.RuleLobbyKey(pre.RuleID),
		store.UserLobbyKey(userID), store.UserMatchKey(userID),
	}

	var out Outcome
	err = c.st.Atomic(ctx, keys, func(tx store.Tx) error {
		e, err := tx.LoadLobby(ctx, lobbyID)
		if err != nil {
			return err
		}
		if e == nil {
			return ErrLobbyNotFound
		}
		if e.UserID == userID {
			return ErrSamePlayer
		}
		if err := ensureFree(ctx, tx, userID); err != nil {
			return err
		}
		om, err := c.pair(ctx, tx, rs, *e, userID)
		if err != nil {
			return err
		}
		out = Outcome{State: StateMatched, Lobby: e, Match: om}
		return nil
	})
	if err != nil {
		return Outcome{}, raceErr(err)
	}
	c.logOutcome(out, userID)
	return out, nil
}

func (c *Coordinator) pair(ctx context.Context, tx store.Tx, rs gomoku.RuleSet, waiting store.LobbyEntry, userID int64) (*gomoku.OngoingMatch, error) {
	if err := tx.DeleteLobby(ctx, waiting); err != nil {
		return nil, err
	}
	return c.matches.Create(ctx, tx, rs, waiting.UserID, userID)
}

// LeaveLobby removes userID's waiting entry.
func (c *Coordinator) LeaveLobby(ctx context.Context, lobbyID, userID int64) error {
	pre, err := c.st.LoadLobby(ctx, lobbyID)
	if err != nil {
		return err
	}
	if pre == nil {
		return ErrLobbyNotFound
	}
	keys := []string{store.LobbyKey(lobbyID), store.RuleLobbyKey(pre.RuleID), store.UserLobbyKey(pre.UserID)}
	err = c.st.Atomic(ctx, keys, func(tx store.Tx) error {
		e, err := tx.LoadLobby(ctx, lobbyID)
		if err != nil {
			return err
		}
		if e == nil {
			return ErrLobbyNotFound
		}
		if e.UserID != userID {
			return ErrUserNotInLobby
		}
		return tx.DeleteLobby(ctx, *e)
	})
	if errors.Is(err, store.ErrConflict) {
		return ErrLobbyNotFound
	}
	if err != nil {
		return err
	}
	obslog.L().Info("lobby_leave", zap.Int64("lobby_id", lobbyID), zap.Int64("user_id", userID), zap.Int64("rule_id", pre.RuleID))
	return nil
}

// OwnLobby returns the entry userID waits in, if any.
func (c *Coordinator) OwnLobby(ctx context.Context, userID int64) (*store.LobbyEntry, error) {
	return c.st.LoadLobbyByUser(ctx, userID)
}

// ListLobbies returns open entries ordered by lobby id.
func (c *Coordinator) ListLobbies(ctx context.Context) ([]store.LobbyEntry, error) {
	return c.st.ListLobbies(ctx)
}

func (c *Coordinator) logOutcome(out Outcome, userID int64) {
	switch out.State {
	case StateWaiting:
		obslog.L().Info("lobby_wait",
			zap.Int64("lobby_id", out.LobbyID()),
			zap.Int64("rule_id", out.Lobby.RuleID),
			zap.Int64("user_id", userID),
		)
	case StateMatched:
		black, white := out.Match.Players()
		obslog.L().Info("lobby_paired",
			zap.Int64("lobby_id", out.LobbyID()),
			zap.Int64("match_id", out.MatchID()),
			zap.Int64("rule_id", out.Lobby.RuleID),
			zap.Int64("black_id", black),
			zap.Int64("white_id", white),
		)
	}
}
