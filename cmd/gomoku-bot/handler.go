package main

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/gomoku-kakao-bot/internal/adapter/gomokupresenter"
	"github.com/park285/gomoku-kakao-bot/internal/gomoku"
	"github.com/park285/gomoku-kakao-bot/internal/irisfast"
	"github.com/park285/gomoku-kakao-bot/internal/obslog"
	"github.com/park285/gomoku-kakao-bot/internal/pvplobby"
	svcgomoku "github.com/park285/gomoku-kakao-bot/internal/service/gomoku"
	"github.com/park285/gomoku-kakao-bot/internal/util"
)

var omokKeywords = map[string]bool{"omok": true, "오목": true, "gomoku": true}

type handler struct {
	prefix    string
	svc       *svcgomoku.Service
	presenter *gomokupresenter.Presenter
	formatter *gomokupresenter.Formatter
	names     *util.NameBook
}

// Handle runs one chat message. Messages without the bot prefix or from
// rooms outside ALLOWED_ROOMS are ignored.
func (h *handler) Handle(ctx context.Context, msg *irisfast.Message) {
	if msg == nil {
		return
	}
	text := strings.TrimSpace(msg.Msg)
	if !strings.HasPrefix(text, h.prefix) {
		return
	}
	if err := h.svc.EnsureRoomAllowed(msg.Room); err != nil {
		obslog.L().Debug("room_ignored", zap.String("room", msg.Room))
		return
	}
	fields := strings.Fields(strings.TrimPrefix(text, h.prefix))
	if len(fields) == 0 || !omokKeywords[strings.ToLower(fields[0])] {
		return
	}

	kakaoID := strings.TrimSpace(msg.UserID())
	if kakaoID == "" {
		h.reply(msg.Room, "사용자를 확인할 수 없습니다.")
		return
	}
	userID := util.UserNumber(kakaoID)
	h.names.Remember(userID, msg.SenderName())

	cmd, err := gomokupresenter.Parse(fields[1:])
	if err != nil {
		h.reply(msg.Room, h.formatter.Error(err))
		return
	}
	if err := h.dispatch(ctx, msg.Room, userID, cmd); err != nil {
		h.reply(msg.Room, h.errorText(err))
	}
}

func (h *handler) dispatch(ctx context.Context, room string, userID int64, cmd gomokupresenter.Command) error {
	switch cmd.Kind {
	case gomokupresenter.CmdHelp:
		h.reply(room, h.formatter.Help())
	case gomokupresenter.CmdRules:
		h.reply(room, h.formatter.Rules(h.svc.ListRules(), h.svc.DefaultRule()))
	case gomokupresenter.CmdMatch:
		ruleID := cmd.ID
		if ruleID == 0 {
			ruleID = h.svc.DefaultRule()
		}
		out, err := h.svc.RequestMatch(ctx, ruleID, userID)
		if err != nil {
			return err
		}
		h.outcome(ctx, room, out, ruleID)
	case gomokupresenter.CmdLobbies:
		entries, err := h.svc.ListLobbies(ctx)
		if err != nil {
			return err
		}
		h.reply(room, h.formatter.Lobbies(entries, h.svc.ListRules()))
	case gomokupresenter.CmdJoin:
		out, err := h.svc.JoinLobby(ctx, cmd.ID, userID)
		if err != nil {
			return err
		}
		h.outcome(ctx, room, out, 0)
	case gomokupresenter.CmdLeave:
		left, err := h.svc.LeaveOwnLobby(ctx, userID)
		if err != nil {
			return err
		}
		h.reply(room, h.formatter.Left(left))
	case gomokupresenter.CmdMove:
		om, err := h.svc.ActiveMatch(ctx, userID)
		if err != nil {
			return err
		}
		res, err := h.svc.MakeMove(ctx, om.MatchID(), userID, cmd.Coord.Position(om.Board().Size()))
		if err != nil {
			return err
		}
		text := ""
		if fin, ok := res.Match.(*gomoku.FinishedMatch); ok {
			text = h.formatter.Finished(fin, res.Settlement)
		}
		h.board(ctx, room, text, res.Match)
	case gomokupresenter.CmdBoard:
		om, err := h.svc.ActiveMatch(ctx, userID)
		if err != nil {
			return err
		}
		h.board(ctx, room, h.formatter.Status(om), om)
	case gomokupresenter.CmdResign:
		res, err := h.svc.ForfeitActive(ctx, userID)
		if err != nil {
			return err
		}
		h.board(ctx, room, h.formatter.Finished(res.Match.(*gomoku.FinishedMatch), res.Settlement), res.Match)
	case gomokupresenter.CmdRating:
		ruleID := cmd.ID
		if ruleID == 0 {
			ruleID = h.svc.DefaultRule()
		}
		rec, err := h.svc.Rating(ctx, userID, ruleID)
		if err != nil {
			return err
		}
		rs, err := h.svc.Rule(ruleID)
		if err != nil {
			return err
		}
		h.reply(room, h.formatter.Rating(rec, rs))
	case gomokupresenter.CmdHistory:
		results, err := h.svc.History(ctx, userID, 0)
		if err != nil {
			return err
		}
		h.reply(room, h.formatter.History(results, userID))
	}
	return nil
}

func (h *handler) outcome(ctx context.Context, room string, out pvplobby.Outcome, ruleID int64) {
	if out.State == pvplobby.StateMatched {
		h.board(ctx, room, h.formatter.Matched(out), out.Match)
		return
	}
	if out.Lobby != nil {
		ruleID = out.Lobby.RuleID
	}
	rs, err := h.svc.Rule(ruleID)
	if err != nil {
		h.reply(room, h.errorText(err))
		return
	}
	h.reply(room, h.formatter.Waiting(out, rs))
}

// board sends text with a rendered board. A render failure still delivers the text.
func (h *handler) board(ctx context.Context, room, text string, m gomoku.Match) {
	black, white := m.Players()
	img, err := h.svc.BoardImage(ctx, m, h.names.Name(black), h.names.Name(white))
	if err != nil {
		img = nil
	}
	if err := h.presenter.Board(room, text, img); err != nil {
		obslog.L().Warn("reply_error", zap.String("room", room), zap.Error(err))
	}
}

func (h *handler) reply(room, text string) {
	if err := h.presenter.Text(room, text); err != nil {
		obslog.L().Warn("reply_error", zap.String("room", room), zap.Error(err))
	}
}

func (h *handler) errorText(err error) string {
	if errors.Is(err, svcgomoku.ErrNoLobby) {
		return "대기 중인 매칭이 없습니다."
	}
	return h.formatter.Error(err)
}
