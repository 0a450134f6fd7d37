package gomoku

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	core "github.com/park285/gomoku-kakao-bot/internal/gomoku"
	"github.com/park285/gomoku-kakao-bot/internal/obslog"
	"github.com/park285/gomoku-kakao-bot/internal/pvpgomoku"
	"github.com/park285/gomoku-kakao-bot/internal/pvplobby"
	"github.com/park285/gomoku-kakao-bot/internal/rating"
	"github.com/park285/gomoku-kakao-bot/internal/render"
	"github.com/park285/gomoku-kakao-bot/internal/store"
)

var (
	ErrRoomNotAllowed = errors.New("gomoku room not allowed")
	ErrNoLobby        = errors.New("user has no waiting lobby")
)

const maxHistoryLimit = 50

// Catalog lists and resolves rule sets.
type Catalog interface {
	Rule(id int64) (core.RuleSet, error)
	ListRules() []core.RuleSet
}

type Config struct {
	DefaultRule  int64
	HistoryLimit int
	AllowedRooms []string
}

// Service is the entry point chat commands call. It takes authenticated
// numeric user ids and plain positions.
type Service struct {
	rules        Catalog
	lobby        *pvplobby.Coordinator
	matches      *pvpgomoku.Manager
	renderer     render.BoardRenderer
	cfg          Config
	allowedRooms map[string]struct{}
}

// MoveResult is the state after a move or a forfeit. Settlement is set once
// a finished match has been rated.
type MoveResult struct {
	Match      core.Match
	Settlement *pvpgomoku.Settlement
}

func NewService(rules Catalog, lobby *pvplobby.Coordinator, matches *pvpgomoku.Manager, renderer render.BoardRenderer, cfg Config) (*Service, error) {
	if rules == nil {
		return nil, fmt.Errorf("rule catalog is required")
	}
	if lobby == nil {
		return nil, fmt.Errorf("lobby coordinator is required")
	}
	if matches == nil {
		return nil, fmt.Errorf("match manager is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("board renderer is required")
	}
	if cfg.DefaultRule <= 0 {
		cfg.DefaultRule = 1
	}
	if _, err := rules.Rule(cfg.DefaultRule); err != nil {
		return nil, fmt.Errorf("default rule: %w", err)
	}
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > maxHistoryLimit {
		cfg.HistoryLimit = 10
	}
	allowed := make(map[string]struct{})
	for _, room := range cfg.AllowedRooms {
		if r := strings.ToLower(strings.TrimSpace(room)); r != "" {
			allowed[r] = struct{}{}
		}
	}
	return &Service{
		rules:        rules,
		lobby:        lobby,
		matches:      matches,
		renderer:     renderer,
		cfg:          cfg,
		allowedRooms: allowed,
	}, nil
}

func (s *Service) DefaultRule() int64 { return s.cfg.DefaultRule }

// reqLogger tags every log line of one inbound call.
func reqLogger(op string) *zap.Logger {
	return obslog.L().With(zap.String("req_id", uuid.NewString()), zap.String("op", op))
}

func logResult(log *zap.Logger, err error, fields ...zap.Field) {
	if err != nil {
		log.Info("request_rejected", append(fields, zap.Error(err))...)
		return
	}
	log.Debug("request_ok", fields...)
}

// EnsureRoomAllowed rejects rooms outside ALLOWED_ROOMS when it is set.
func (s *Service) EnsureRoomAllowed(room string) error {
	if len(s.allowedRooms) == 0 {
		return nil
	}
	if _, ok := s.allowedRooms[strings.ToLower(strings.TrimSpace(room))]; ok {
		return nil
	}
	return ErrRoomNotAllowed
}

func (s *Service) ListRules() []core.RuleSet { return s.rules.ListRules() }

func (s *Service) Rule(id int64) (core.RuleSet, error) { return s.rules.Rule(id) }

func (s *Service) RequestMatch(ctx context.Context, ruleID, userID int64) (pvplobby.Outcome, error) {
	log := reqLogger("request_match")
	out, err := s.lobby.RequestMatch(ctx, ruleID, userID)
	logResult(log, err, zap.Int64("rule_id", ruleID), zap.Int64("user_id", userID))
	return out, err
}

func (s *Service) JoinLobby(ctx context.Context, lobbyID, userID int64) (pvplobby.Outcome, error) {
	log := reqLogger("join_lobby")
	out, err := s.lobby.JoinLobby(ctx, lobbyID, userID)
	logResult(log, err, zap.Int64("lobby_id", lobbyID), zap.Int64("user_id", userID))
	return out, err
}

func (s *Service) LeaveLobby(ctx context.Context, lobbyID, userID int64) error {
	log := reqLogger("leave_lobby")
	err := s.lobby.LeaveLobby(ctx, lobbyID, userID)
	logResult(log, err, zap.Int64("lobby_id", lobbyID), zap.Int64("user_id", userID))
	return err
}

// LeaveOwnLobby removes whatever entry userID waits in.
func (s *Service) LeaveOwnLobby(ctx context.Context, userID int64) (*store.LobbyEntry, error) {
	own, err := s.lobby.OwnLobby(ctx, userID)
	if err != nil {
		return nil, err
	}
	if own == nil {
		return nil, ErrNoLobby
	}
	if err := s.LeaveLobby(ctx, own.LobbyID, userID); err != nil {
		return nil, err
	}
	return own, nil
}

func (s *Service) ListLobbies(ctx context.Context) ([]store.LobbyEntry, error) {
	return s.lobby.ListLobbies(ctx)
}

func (s *Service) MakeMove(ctx context.Context, matchID, userID int64, p core.Position) (*MoveResult, error) {
	log := reqLogger("make_move")
	m, settled, err := s.matches.MakeMove(ctx, matchID, userID, p)
	logResult(log, err, zap.Int64("match_id", matchID), zap.Int64("user_id", userID), zap.Int("x", p.X), zap.Int("y", p.Y))
	if err != nil {
		return nil, err
	}
	return &MoveResult{Match: m, Settlement: settled}, nil
}

// PlayActive moves in the ongoing match of userID.
func (s *Service) PlayActive(ctx context.Context, userID int64, p core.Position) (*MoveResult, error) {
	om, err := s.matches.ActiveMatch(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.MakeMove(ctx, om.MatchID(), userID, p)
}

func (s *Service) Forfeit(ctx context.Context, matchID, userID int64) (*MoveResult, error) {
	log := reqLogger("forfeit")
	fin, settled, err := s.matches.Forfeit(ctx, matchID, userID)
	logResult(log, err, zap.Int64("match_id", matchID), zap.Int64("user_id", userID))
	if err != nil {
		return nil, err
	}
	return &MoveResult{Match: fin, Settlement: settled}, nil
}

// ForfeitActive resigns the ongoing match of userID.
func (s *Service) ForfeitActive(ctx context.Context, userID int64) (*MoveResult, error) {
	om, err := s.matches.ActiveMatch(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Forfeit(ctx, om.MatchID(), userID)
}

func (s *Service) GetMatch(ctx context.Context, matchID int64) (core.Match, error) {
	return s.matches.GetMatch(ctx, matchID)
}

func (s *Service) ActiveMatch(ctx context.Context, userID int64) (*core.OngoingMatch, error) {
	return s.matches.ActiveMatch(ctx, userID)
}

func (s *Service) Rating(ctx context.Context, userID, ruleID int64) (rating.Record, error) {
	if ruleID <= 0 {
		ruleID = s.cfg.DefaultRule
	}
	if _, err := s.rules.Rule(ruleID); err != nil {
		return rating.Record{}, err
	}
	return s.matches.Rating(ctx, userID, ruleID)
}

func (s *Service) History(ctx context.Context, userID int64, limit int) ([]pvpgomoku.GameResult, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = s.cfg.HistoryLimit
	}
	return s.matches.RecentResults(ctx, userID, limit)
}

// BoardImage renders m with a HUD naming both players.
func (s *Service) BoardImage(ctx context.Context, m core.Match, blackName, whiteName string) ([]byte, error) {
	header := fmt.Sprintf("%s (black) vs %s (white)", labelOr(blackName, "Black"), labelOr(whiteName, "White"))
	turn := ""
	switch cur := m.(type) {
	case *core.OngoingMatch:
		turn = fmt.Sprintf("#%d  %s to move  (move %d)", m.MatchID(), cur.Turn(), m.Board().Len()+1)
	case *core.FinishedMatch:
		turn = fmt.Sprintf("#%d  %s (%s)", m.MatchID(), cur.Outcome, cur.Reason)
	}
	opts := render.Options{HUDHeader: header, HUDTurn: turn}
	if last, ok := m.Board().Last(); ok {
		opts.Last = &last.Pos
	}
	data, err := s.renderer.RenderPNG(ctx, m.Board(), opts)
	if err != nil {
		obslog.L().Warn("board_render_error", zap.Int64("match_id", m.MatchID()), zap.Error(err))
		return nil, err
	}
	return data, nil
}

func labelOr(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	// the HUD font is ASCII only
	for _, r := range s {
		if r > 0x7e {
			return def
		}
	}
	if len(s) > 16 {
		s = s[:16]
	}
	return s
}
