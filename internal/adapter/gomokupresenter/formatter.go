package gomokupresenter

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/park285/gomoku-kakao-bot/internal/gomoku"
	"github.com/park285/gomoku-kakao-bot/internal/pvpgomoku"
	"github.com/park285/gomoku-kakao-bot/internal/pvplobby"
	"github.com/park285/gomoku-kakao-bot/internal/rating"
	"github.com/park285/gomoku-kakao-bot/internal/rulecat"
	"github.com/park285/gomoku-kakao-bot/internal/store"
	"github.com/park285/gomoku-kakao-bot/internal/util"
)

const (
	omokHelpInstruction    = "⚫ 오목 명령어 안내"
	omokHistoryInstruction = "⚫ 최근 대국"
	omokLobbyInstruction   = "⚪ 대기 중인 방"
	omokRulesInstruction   = "⚫ 오목 규칙 목록"
)

// PrefixProvider exposes the Prefix that Kakao messages should use.
type PrefixProvider interface {
	Prefix() string
}

// Namer resolves user ids to display names.
type Namer interface {
	Name(userID int64) string
}

// Formatter renders gomoku state into Kakao-friendly text blocks.
type Formatter struct {
	prefixProvider PrefixProvider
	names          Namer
}

func NewFormatter(provider PrefixProvider, names Namer) *Formatter {
	return &Formatter{prefixProvider: provider, names: names}
}

func (f *Formatter) Prefix() string {
	if f == nil || f.prefixProvider == nil {
		return ""
	}
	return strings.TrimSpace(f.prefixProvider.Prefix())
}

func (f *Formatter) name(id int64) string {
	if f.names != nil {
		if n := strings.TrimSpace(f.names.Name(id)); n != "" {
			return n
		}
	}
	return fmt.Sprintf("플레이어 %d", id%10000)
}

func (f *Formatter) Help() string {
	p := f.Prefix() + "오목"
	content := strings.Join([]string{
		omokHelpInstruction,
		"• " + p + " 규칙",
		"  사용 가능한 규칙 목록",
		"• " + p + " 매칭 [규칙번호]",
		"  같은 규칙의 상대와 자동 매칭",
		"• " + p + " 대기실 / " + p + " 참가 <방번호>",
		"  대기 중인 방 확인 후 직접 참가",
		"• " + p + " 취소",
		"  대기 중인 매칭 취소",
		"• " + p + " h8 (또는 " + p + " 8 8)",
		"  착수 (열 알파벳 + 행 번호)",
		"• " + p + " 현황 / " + p + " 기권",
		"• " + p + " 레이팅 [규칙번호] / " + p + " 기록",
	}, "\n")
	return util.ApplySeeMoreWithHeader(content, omokHelpInstruction, omokHelpInstruction, "")
}

func ruleLine(rs gomoku.RuleSet) string {
	opening := "자유 시작"
	switch rs.Opening {
	case gomoku.OpeningPro:
		opening = "프로 오프닝"
	case gomoku.OpeningLongPro:
		opening = "롱프로 오프닝"
	}
	return fmt.Sprintf("#%d %s (%d×%d, %s)", rs.ID, rs.Name, rs.BoardSize, rs.BoardSize, opening)
}

func (f *Formatter) Rules(rules []gomoku.RuleSet, defaultRule int64) string {
	var sb strings.Builder
	sb.WriteString(omokRulesInstruction)
	sb.WriteString("\n")
	for _, rs := range rules {
		sb.WriteString("• ")
		sb.WriteString(ruleLine(rs))
		if rs.ID == defaultRule {
			sb.WriteString(" [기본]")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("\n매칭: `%s오목 매칭 <번호>`", f.Prefix()))
	return sb.String()
}

func (f *Formatter) Waiting(out pvplobby.Outcome, rs gomoku.RuleSet) string {
	return fmt.Sprintf("⏳ 상대를 기다리는 중입니다. (방 #%d, %s)\n취소: `%s오목 취소`", out.LobbyID(), ruleLine(rs), f.Prefix())
}

// Matched announces a new match. The image that follows shows the board.
func (f *Formatter) Matched(out pvplobby.Outcome) string {
	if out.Match == nil {
		return ""
	}
	black, white := out.Match.Players()
	return fmt.Sprintf("⚫ 대국 시작 #%d: 흑 %s vs 백 %s\n%s\n흑이 먼저 둡니다: `%s오목 h8`",
		out.MatchID(), f.name(black), f.name(white), ruleLine(out.Match.RuleSet()), f.Prefix())
}

func (f *Formatter) Left(e *store.LobbyEntry) string {
	if e == nil {
		return "대기를 취소했습니다."
	}
	return fmt.Sprintf("방 #%d 대기를 취소했습니다.", e.LobbyID)
}

func (f *Formatter) Lobbies(entries []store.LobbyEntry, rules []gomoku.RuleSet) string {
	if len(entries) == 0 {
		return fmt.Sprintf("대기 중인 방이 없습니다. `%s오목 매칭`으로 새로 대기하세요.", f.Prefix())
	}
	byID := make(map[int64]gomoku.RuleSet, len(rules))
	for _, rs := range rules {
		byID[rs.ID] = rs
	}
	sorted := append([]store.LobbyEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LobbyID < sorted[j].LobbyID })

	var sb strings.Builder
	sb.WriteString(omokLobbyInstruction)
	sb.WriteString("\n")
	for _, e := range sorted {
		ruleName := fmt.Sprintf("규칙 #%d", e.RuleID)
		if rs, ok := byID[e.RuleID]; ok {
			ruleName = rs.Name
		}
		sb.WriteString(fmt.Sprintf("• 방 #%d %s | %s\n", e.LobbyID, f.name(e.UserID), ruleName))
	}
	sb.WriteString(fmt.Sprintf("\n참가: `%s오목 참가 <방번호>`", f.Prefix()))
	return util.ApplySeeMoreWithHeader(sb.String(), omokLobbyInstruction, omokLobbyInstruction, "")
}

// Status describes whose turn it is, or how the match ended.
func (f *Formatter) Status(m gomoku.Match) string {
	black, white := m.Players()
	switch cur := m.(type) {
	case *gomoku.OngoingMatch:
		turn := f.name(cur.PlayerOf(cur.Turn()))
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("⚫ 대국 #%d: 흑 %s vs 백 %s\n", m.MatchID(), f.name(black), f.name(white)))
		sb.WriteString(fmt.Sprintf("• 진행 %d수, %s(%s) 차례", m.Board().Len(), turn, colorName(cur.Turn())))
		if last, ok := m.Board().Last(); ok {
			sb.WriteString(fmt.Sprintf("\n• 직전 수: %s %s", colorName(last.Color), coordOf(last.Pos, m.Board().Size())))
		}
		return sb.String()
	case *gomoku.FinishedMatch:
		return f.Finished(cur, nil)
	}
	return ""
}

// Finished summarizes a finished match and, when known, the rating change.
func (f *Formatter) Finished(fin *gomoku.FinishedMatch, s *pvpgomoku.Settlement) string {
	var sb strings.Builder
	sb.WriteString(f.outcomeLine(fin))
	if s != nil && s.Applied {
		black, white := fin.Players()
		sb.WriteString("\n\n")
		sb.WriteString(fmt.Sprintf("• %s: %d%s\n", f.name(black), s.Black.Elo, formatDelta(s.BlackDelta)))
		sb.WriteString(fmt.Sprintf("• %s: %d%s", f.name(white), s.White.Elo, formatDelta(s.WhiteDelta)))
	}
	return sb.String()
}

func (f *Formatter) outcomeLine(fin *gomoku.FinishedMatch) string {
	winner, ok := fin.WinnerID()
	if !ok {
		return fmt.Sprintf("🤝 대국 #%d 무승부로 종료되었습니다. (판이 가득 찼습니다)", fin.MatchID())
	}
	switch fin.Reason {
	case gomoku.ReasonForfeit:
		return fmt.Sprintf("🏳️ 대국 #%d 기권으로 종료되었습니다. (승자: %s)", fin.MatchID(), f.name(winner))
	default:
		return fmt.Sprintf("✅ 대국 #%d 오목 완성! 승자: %s (%d수)", fin.MatchID(), f.name(winner), fin.Board().Len())
	}
}

func (f *Formatter) Rating(rec rating.Record, rs gomoku.RuleSet) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("⚫ %s 레이팅 (%s)\n", f.name(rec.UserID), rs.Name))
	sb.WriteString(fmt.Sprintf("• 레이팅: %d\n", rec.Elo))
	sb.WriteString(fmt.Sprintf("• 전적: %d승 %d패 %d무 (%d판)", rec.Wins, rec.Losses, rec.Draws, rec.GamesPlayed))
	return sb.String()
}

func (f *Formatter) History(results []pvpgomoku.GameResult, userID int64) string {
	if len(results) == 0 {
		return "아직 완료된 대국이 없습니다."
	}
	var sb strings.Builder
	sb.WriteString(omokHistoryInstruction)
	sb.WriteString("\n")
	for _, r := range results {
		opponent := r.White
		if r.White == userID {
			opponent = r.Black
		}
		sb.WriteString(fmt.Sprintf("• #%d %s vs %s %s (%d수, %s)\n",
			r.MatchID, resultBadge(r, userID), f.name(opponent), formatShortTime(r.EndedAt), len(r.Moves), reasonName(r.Reason)))
	}
	return util.ApplySeeMoreWithHeader(sb.String(), omokHistoryInstruction, omokHistoryInstruction, "")
}

func (f *Formatter) NoMatch() string {
	return fmt.Sprintf("진행 중인 오목 대국이 없습니다. `%s오목 매칭`으로 상대를 찾으세요.", f.Prefix())
}

// Error maps expected failures to user-facing text.
func (f *Formatter) Error(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBadCommand):
		return fmt.Sprintf("명령을 이해하지 못했습니다. `%s오목` 으로 도움말을 확인하세요.", f.Prefix())
	case errors.Is(err, gomoku.ErrInvalidTurn):
		return "상대의 차례입니다."
	case errors.Is(err, gomoku.ErrAlreadyOccupied):
		return "이미 돌이 놓인 자리입니다."
	case errors.Is(err, gomoku.ErrImpossiblePosition):
		return "판 밖의 좌표입니다."
	case errors.Is(err, gomoku.ErrOpeningRestricted):
		return "오프닝 규칙상 둘 수 없는 자리입니다."
	case errors.Is(err, gomoku.ErrMatchAlreadyFinished):
		return "이미 끝난 대국입니다."
	case errors.Is(err, gomoku.ErrPlayerNotInMatch):
		return "이 대국의 참가자가 아닙니다."
	case errors.Is(err, pvplobby.ErrSamePlayer), errors.Is(err, gomoku.ErrSamePlayer):
		return "자신의 방에는 참가할 수 없습니다."
	case errors.Is(err, pvplobby.ErrAlreadyInLobby):
		return "이미 대기 중입니다."
	case errors.Is(err, pvplobby.ErrPlayerBusy):
		return "이미 진행 중인 대국이 있습니다."
	case errors.Is(err, pvplobby.ErrLobbyNotFound):
		return "해당 방을 찾을 수 없습니다."
	case errors.Is(err, pvplobby.ErrUserNotInLobby):
		return "본인의 방만 취소할 수 있습니다."
	case errors.Is(err, pvplobby.ErrAlreadyPairedRace), errors.Is(err, pvpgomoku.ErrConcurrentUpdate):
		return "동시에 다른 요청이 처리되었습니다. 다시 시도해주세요."
	case errors.Is(err, pvplobby.ErrRuleNotFound), errors.Is(err, rulecat.ErrRuleNotFound):
		return fmt.Sprintf("없는 규칙입니다. `%s오목 규칙`으로 목록을 확인하세요.", f.Prefix())
	case errors.Is(err, pvpgomoku.ErrMatchNotFound):
		return f.NoMatch()
	default:
		return "처리 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요."
	}
}

func formatDelta(delta int) string {
	switch {
	case delta > 0:
		return fmt.Sprintf(" (▲%d)", delta)
	case delta < 0:
		return fmt.Sprintf(" (▼%d)", -delta)
	default:
		return " (변동 없음)"
	}
}

func colorName(c gomoku.Color) string {
	if c == gomoku.White {
		return "백"
	}
	return "흑"
}

func coordOf(p gomoku.Position, size int) string {
	return Coord{Col: p.X, Row: size - p.Y}.String()
}

func reasonName(r gomoku.Reason) string {
	switch r {
	case gomoku.ReasonFive:
		return "오목"
	case gomoku.ReasonFullBoard:
		return "만수"
	case gomoku.ReasonForfeit:
		return "기권"
	default:
		return string(r)
	}
}

func resultBadge(r pvpgomoku.GameResult, userID int64) string {
	winner, ok := r.WinnerID()
	switch {
	case !ok:
		return "무"
	case winner == userID:
		return "승"
	default:
		return "패"
	}
}

func formatShortTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("01/02 15:04")
}
