package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/park285/gomoku-kakao-bot/internal/adapter/gomokupresenter"
	"github.com/park285/gomoku-kakao-bot/internal/builder"
	"github.com/park285/gomoku-kakao-bot/internal/config"
	"github.com/park285/gomoku-kakao-bot/internal/irisfast"
	"github.com/park285/gomoku-kakao-bot/internal/util"
)

type outbox struct {
	texts  []string
	images int
}

func (o *outbox) last() string {
	if len(o.texts) == 0 {
		return ""
	}
	return o.texts[len(o.texts)-1]
}

func newTestHandler(t *testing.T, cfg *config.AppConfig) (*handler, *outbox) {
	t.Helper()
	cfg.LobbyTTL = time.Hour
	deps, err := builder.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	box := &outbox{}
	names := util.NewNameBook()
	h := &handler{
		prefix: "!",
		svc:    deps.Service,
		presenter: gomokupresenter.NewPresenter(
			func(room, message string) error { box.texts = append(box.texts, message); return nil },
			func(room, imageBase64 string) error { box.images++; return nil },
		),
		formatter: gomokupresenter.NewFormatter(prefixProvider{prefix: "!"}, names),
		names:     names,
	}
	return h, box
}

func chat(kakaoID, name, text string) *irisfast.Message {
	return &irisfast.Message{Msg: text, Room: "room", Sender: &name, JSON: &irisfast.MessageJSON{UserID: kakaoID}}
}

func TestFullGameOverChat(t *testing.T) {
	h, box := newTestHandler(t, &config.AppConfig{DefaultRule: 1})
	ctx := context.Background()

	h.Handle(ctx, chat("u1", "Alice", "!오목 매칭"))
	require.Contains(t, box.last(), "기다리는 중")

	h.Handle(ctx, chat("u2", "Bob", "!omok match"))
	require.Contains(t, box.last(), "대국 시작")
	require.Equal(t, 1, box.images)

	om, err := h.svc.ActiveMatch(ctx, util.UserNumber("u1"))
	require.NoError(t, err)
	black, _ := om.Players()
	blackID, whiteID := "u1", "u2"
	if black != util.UserNumber("u1") {
		blackID, whiteID = "u2", "u1"
	}

	h.Handle(ctx, chat(whiteID, "", "!오목 h8"))
	require.Equal(t, "상대의 차례입니다.", box.last())

	for _, col := range []string{"h", "i", "j", "k"} {
		h.Handle(ctx, chat(blackID, "", "!오목 "+col+"8"))
		h.Handle(ctx, chat(whiteID, "", "!오목 "+col+"9"))
	}
	h.Handle(ctx, chat(blackID, "", "!오목 l8"))
	require.Contains(t, box.last(), "오목 완성")
	require.Contains(t, box.last(), "1520 (▲20)")
	require.Equal(t, 1+9, box.images)

	h.Handle(ctx, chat(blackID, "", "!오목 레이팅"))
	require.Contains(t, box.last(), "• 레이팅: 1520")

	h.Handle(ctx, chat(whiteID, "", "!오목 기록"))
	require.Contains(t, box.last(), " 패 vs ")

	h.Handle(ctx, chat(blackID, "", "!오목 현황"))
	require.Contains(t, box.last(), "진행 중인 오목 대국이 없습니다")
}

func TestLobbyCommandsOverChat(t *testing.T) {
	h, box := newTestHandler(t, &config.AppConfig{DefaultRule: 1})
	ctx := context.Background()

	h.Handle(ctx, chat("u1", "Alice", "!오목 취소"))
	require.Equal(t, "대기 중인 매칭이 없습니다.", box.last())

	h.Handle(ctx, chat("u1", "Alice", "!오목 매칭 2"))
	h.Handle(ctx, chat("u2", "Bob", "!오목 대기실"))
	require.Contains(t, box.last(), "Alice")

	h.Handle(ctx, chat("u1", "Alice", "!오목 참가 1"))
	require.Equal(t, "자신의 방에는 참가할 수 없습니다.", box.last())

	h.Handle(ctx, chat("u1", "Alice", "!오목 취소"))
	require.Contains(t, box.last(), "대기를 취소했습니다")

	h.Handle(ctx, chat("u2", "Bob", "!오목 참가 1"))
	require.Equal(t, "해당 방을 찾을 수 없습니다.", box.last())

	h.Handle(ctx, chat("u2", "Bob", "!오목 매칭 99"))
	require.Contains(t, box.last(), "없는 규칙입니다")
}

func TestIgnoredMessages(t *testing.T) {
	h, box := newTestHandler(t, &config.AppConfig{DefaultRule: 1, AllowedRooms: []string{"room"}})
	ctx := context.Background()

	h.Handle(ctx, nil)
	h.Handle(ctx, chat("u1", "Alice", "오목 매칭"))
	h.Handle(ctx, chat("u1", "Alice", "!체스 시작"))
	other := chat("u1", "Alice", "!오목 규칙")
	other.Room = "elsewhere"
	h.Handle(ctx, other)
	require.Empty(t, box.texts)

	h.Handle(ctx, chat("u1", "Alice", "!오목 규칙"))
	require.True(t, strings.Contains(box.last(), "#1"), box.last())

	h.Handle(ctx, chat("u1", "Alice", "!오목 zz"))
	require.Contains(t, box.last(), "명령을 이해하지 못했습니다")

	h.Handle(ctx, &irisfast.Message{Msg: "!오목 규칙", Room: "room"})
	require.Equal(t, "사용자를 확인할 수 없습니다.", box.last())
}
