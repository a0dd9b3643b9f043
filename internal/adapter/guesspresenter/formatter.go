package guesspresenter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/EloGuess-KakaoTalk-bot/internal/msgcat"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/util"
	"github.com/park285/EloGuess-KakaoTalk-bot/pkg/guessdto"
)

const (
	stageGuessing = "guessing"
	stageRevealed = "revealed"

	sideWhite = "white"
)

// PrefixProvider exposes the Prefix that Kakao messages should use.
type PrefixProvider interface {
	Prefix() string
}

// Formatter renders guess DTOs into Kakao-friendly text blocks.
// Fixed phrases come from the message catalog; list layouts are built here.
type Formatter struct {
	prefixProvider PrefixProvider
	catalog        *msgcat.Catalog
}

func NewFormatter(provider PrefixProvider, catalog *msgcat.Catalog) *Formatter {
	return &Formatter{prefixProvider: provider, catalog: catalog}
}

func (f *Formatter) Prefix() string {
	if f == nil || f.prefixProvider == nil {
		return ""
	}
	return strings.TrimSpace(f.prefixProvider.Prefix())
}

func (f *Formatter) text(key string, data map[string]any, fallback string) string {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Prefix"]; !ok {
		data["Prefix"] = f.Prefix()
	}
	return f.catalog.RenderOr(key, data, fallback)
}

func (f *Formatter) Help() string {
	header := f.text("help.header", nil, "♞ Elo 맞히기")
	body := f.text("help.body", nil, "")
	return util.SeeMore(header, body)
}

func (f *Formatter) UnknownCommand() string {
	return f.text("errors.unknown_command", nil, "알 수 없는 명령입니다.")
}

// Started renders a freshly loaded game, random or imported.
func (f *Formatter) Started(v *guessdto.SessionView, imported bool) string {
	if v == nil {
		return f.text("errors.internal", nil, "처리 중 오류가 발생했습니다.")
	}
	headline := f.text("session.started", nil, "♟️ 새 대국")
	if imported {
		headline = f.text("session.imported", nil, "📥 PGN")
	}
	return headline + "\n" + f.board(v) + "\n\n" + f.text("session.guess_hint", nil, "")
}

// Status renders the full session block. Reveal details are appended once revealed.
func (f *Formatter) Status(v *guessdto.SessionView) string {
	if v == nil || v.TotalPlies == 0 {
		return f.text("session.empty", nil, "진행 중인 대국이 없습니다.")
	}
	var sb strings.Builder
	sb.WriteString(f.text("session.status", nil, "♞ 현황"))
	sb.WriteByte('\n')
	if v.Reveal != nil {
		sb.WriteString(f.reveal(v.Reveal))
		sb.WriteString("\n\n")
	}
	sb.WriteString(f.board(v))
	sb.WriteString("\n")
	sb.WriteString(f.streakLine(v.Streak))
	if strings.TrimSpace(v.LastError) != "" {
		sb.WriteString("\n⚠️ ")
		sb.WriteString(v.LastError)
	}
	return sb.String()
}

// Move renders the cursor after navigation: one compact block.
func (f *Formatter) Move(v *guessdto.SessionView) string {
	if v == nil || v.TotalPlies == 0 {
		return f.text("session.empty", nil, "진행 중인 대국이 없습니다.")
	}
	var sb strings.Builder
	sb.WriteString(f.plyLine(v))
	sb.WriteByte('\n')
	writeSeat(&sb, "⬆", v.Top)
	writeSeat(&sb, "⬇", v.Bottom)
	if v.CurrentFEN != "" {
		sb.WriteString("FEN ")
		sb.WriteString(v.CurrentFEN)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (f *Formatter) GuessSet(v *guessdto.SessionView) string {
	if v == nil {
		return ""
	}
	return f.text("session.guess_set", map[string]any{"Elo": v.GuessedElo}, fmt.Sprintf("추측: %d", v.GuessedElo))
}

func (f *Formatter) Flipped(v *guessdto.SessionView) string {
	if v == nil {
		return ""
	}
	return f.text("session.flipped", map[string]any{"Side": sideLabel(v.BoardOrientation)}, "🔄")
}

func (f *Formatter) Dismissed() string {
	return f.text("session.dismissed", nil, "")
}

// Revealed renders the result of a submitted guess with the now visible identities.
func (f *Formatter) Revealed(v *guessdto.SessionView) string {
	if v == nil || v.Reveal == nil {
		return f.Status(v)
	}
	var sb strings.Builder
	sb.WriteString(f.reveal(v.Reveal))
	sb.WriteString("\n\n")
	writeSeat(&sb, "⬆", v.Top)
	writeSeat(&sb, "⬇", v.Bottom)
	if v.Opening != "" {
		sb.WriteString(fmt.Sprintf("• 오프닝: %s %s\n", v.ECO, v.Opening))
	}
	if v.Termination != "" {
		sb.WriteString(fmt.Sprintf("• 결과: %s (%s)\n", v.Result, v.Termination))
	}
	if v.Link != "" {
		sb.WriteString(v.Link)
		sb.WriteByte('\n')
	}
	sb.WriteString(f.streakLine(v.Streak))
	sb.WriteString("\n\n")
	sb.WriteString(f.text("session.next_hint", nil, ""))
	return sb.String()
}

func (f *Formatter) Error(err error) string {
	if err == nil {
		return ""
	}
	var de guessdto.DomainError
	if !errors.As(err, &de) {
		return f.text("errors.internal", nil, "처리 중 오류가 발생했습니다.")
	}
	fallback := de.Message
	if strings.TrimSpace(fallback) == "" {
		fallback = de.Code
	}
	return "⚠️ " + f.text("errors."+de.Code, nil, fallback)
}

func (f *Formatter) Leaderboard(entries []guessdto.LeaderboardEntry) string {
	header := f.text("leaderboard.header", nil, "🏆 순위")
	if len(entries) == 0 {
		return header + "\n" + f.text("leaderboard.empty", nil, "")
	}
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("%s %s · %d점\n", rankBadge(e.Rank), e.Name, e.TotalScore))
		sb.WriteString(fmt.Sprintf("  %d판 · 평균 %.1f · 최고 연속 %d", e.GamesPlayed, e.AverageScore, e.BestStreak))
		if e.BestGrade != "" {
			sb.WriteString(" · 최고 등급 ")
			sb.WriteString(e.BestGrade)
		}
		sb.WriteByte('\n')
	}
	return util.SeeMore(header, strings.TrimRight(sb.String(), "\n"))
}

func (f *Formatter) History(rounds []guessdto.RoundView) string {
	header := f.text("history.header", nil, "♜ 최근 기록")
	if len(rounds) == 0 {
		return header + "\n" + f.text("history.empty", nil, "")
	}
	var sb strings.Builder
	for _, r := range rounds {
		sb.WriteString(fmt.Sprintf("• %s %s 추측 %d / 정답 %d · %d점\n", formatShortTime(r.PlayedAt), r.Grade, r.Guess, r.Actual, r.TotalScore))
	}
	return util.SeeMore(header, strings.TrimRight(sb.String(), "\n"))
}

func (f *Formatter) Profile(p *guessdto.ProfileView) string {
	header := f.text("profile.header", nil, "♞ 통계")
	if p == nil {
		return header
	}
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteByte('\n')
	sb.WriteString(fmt.Sprintf("• %s\n", p.Name))
	sb.WriteString(f.streakLine(p.Streak))
	sb.WriteByte('\n')
	if p.Streak.GamesPlayed > 0 {
		sb.WriteString(fmt.Sprintf("• 평균 %.1f점", p.Streak.AverageScore))
		if p.BestGrade != "" {
			sb.WriteString(" · 최고 등급 ")
			sb.WriteString(p.BestGrade)
		}
		sb.WriteByte('\n')
	}
	if !p.LastPlayedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("• 마지막 플레이: %s\n", formatShortTime(p.LastPlayedAt)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (f *Formatter) Export(ev *guessdto.ExportView) string {
	if ev == nil {
		return ""
	}
	header := f.text("export.header", map[string]any{"FileName": ev.FileName}, ev.FileName)
	return util.SeeMore(header, strings.TrimSpace(ev.PGN))
}

func (f *Formatter) board(v *guessdto.SessionView) string {
	var sb strings.Builder
	writeSeat(&sb, "⬆", v.Top)
	writeSeat(&sb, "⬇", v.Bottom)
	var meta []string
	if v.TimeControl != "" {
		meta = append(meta, v.TimeControl)
	}
	if v.Date != "" {
		meta = append(meta, v.Date)
	}
	if len(meta) > 0 {
		sb.WriteString("• ")
		sb.WriteString(strings.Join(meta, " · "))
		sb.WriteByte('\n')
	}
	sb.WriteString(f.plyLine(v))
	sb.WriteByte('\n')
	if v.Stage == stageGuessing {
		sb.WriteString(f.text("session.guess", map[string]any{"Elo": v.GuessedElo}, ""))
		sb.WriteByte('\n')
	}
	if v.Termination != "" && v.Stage != stageRevealed {
		sb.WriteString("• 종료: ")
		sb.WriteString(v.Termination)
		sb.WriteByte('\n')
	}
	if v.CurrentFEN != "" {
		sb.WriteString("FEN ")
		sb.WriteString(v.CurrentFEN)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (f *Formatter) plyLine(v *guessdto.SessionView) string {
	return f.text("session.ply", map[string]any{
		"Ply":   v.CurrentPly + 1,
		"Total": v.TotalPlies,
		"SAN":   v.CurrentSAN,
	}, fmt.Sprintf("• %d/%d", v.CurrentPly+1, v.TotalPlies))
}

func (f *Formatter) reveal(r *guessdto.RevealView) string {
	data := map[string]any{
		"Badge":       colorBadge(r.ColorTag),
		"Grade":       r.Grade,
		"Message":     r.Message,
		"Guess":       r.Guess,
		"Actual":      r.Actual,
		"Diff":        r.Diff,
		"Score":       r.Score,
		"StreakBonus": r.StreakBonus,
		"TotalScore":  r.TotalScore,
		"Accuracy":    r.Accuracy,
		"Motivation":  r.Motivation,
	}
	var sb strings.Builder
	sb.WriteString(f.text("reveal.header", data, r.Grade))
	sb.WriteByte('\n')
	sb.WriteString(f.text("reveal.detail", data, fmt.Sprintf("%d / %d", r.Guess, r.Actual)))
	if r.Motivation != "" {
		sb.WriteByte('\n')
		sb.WriteString(f.text("reveal.motivation", data, r.Motivation))
	}
	return sb.String()
}

func (f *Formatter) streakLine(st guessdto.StreakView) string {
	return f.text("streak.line", map[string]any{
		"CurrentStreak": st.CurrentStreak,
		"BestStreak":    st.BestStreak,
		"GamesPlayed":   st.GamesPlayed,
		"TotalScore":    st.TotalScore,
	}, fmt.Sprintf("• 연속 %d", st.CurrentStreak))
}

func writeSeat(sb *strings.Builder, arrow string, p guessdto.PlayerView) {
	sb.WriteString(arrow)
	sb.WriteByte(' ')
	sb.WriteString(sidePiece(p.Side))
	sb.WriteByte(' ')
	sb.WriteString(p.Name)
	if p.Revealed && p.Rating > 0 {
		sb.WriteString(fmt.Sprintf(" (%d)", p.Rating))
	}
	if p.Clock != "" {
		sb.WriteString(" ⏱ ")
		sb.WriteString(p.Clock)
	}
	sb.WriteByte('\n')
}

func sidePiece(side string) string {
	if side == sideWhite {
		return "♔"
	}
	return "♚"
}

func sideLabel(side string) string {
	if side == sideWhite {
		return "백"
	}
	return "흑"
}

func colorBadge(tag string) string {
	switch {
	case strings.Contains(tag, "emerald"), strings.Contains(tag, "green"):
		return "🟢"
	case strings.Contains(tag, "blue"):
		return "🔵"
	case strings.Contains(tag, "yellow"):
		return "🟡"
	case strings.Contains(tag, "orange"):
		return "🟠"
	case strings.Contains(tag, "red"):
		return "🔴"
	default:
		return "▫️"
	}
}

func rankBadge(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("%d.", rank)
	}
}

func formatShortTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return util.FormatKST(t, "01-02 15:04")
}
