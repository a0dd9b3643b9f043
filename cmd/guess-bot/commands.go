package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/EloGuess-KakaoTalk-bot/internal/adapter/guesspresenter"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/irisfast"
	"github.com/park285/EloGuess-KakaoTalk-bot/pkg/guessdto"
)

const (
	commandWord    = "elo"
	commandTimeout = 30 * time.Second
)

type guessService interface {
	Start(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.SessionView, error)
	Import(ctx context.Context, meta guessdto.RequestMeta, raw string) (*guessdto.SessionView, error)
	Status(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.SessionView, error)
	Next(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.SessionView, error)
	Prev(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.SessionView, error)
	Select(ctx context.Context, meta guessdto.RequestMeta, ply int) (*guessdto.SessionView, error)
	Flip(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.SessionView, error)
	Dismiss(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.SessionView, error)
	Guess(ctx context.Context, meta guessdto.RequestMeta, elo int) (*guessdto.SessionView, error)
	Submit(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.SessionView, error)
	Export(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.ExportView, error)
	Profile(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.ProfileView, error)
	History(ctx context.Context, meta guessdto.RequestMeta, limit int) ([]guessdto.RoundView, error)
	Leaderboard(ctx context.Context, limit int) ([]guessdto.LeaderboardEntry, error)
}

type bot struct {
	prefix    string
	svc       guessService
	presenter *guesspresenter.Presenter
	formatter *guesspresenter.Formatter
	logger    *zap.Logger
}

// parseCommand splits "<prefix>elo <sub> <rest>". rest keeps its line breaks
// so a pasted PGN survives.
func parseCommand(prefix, text string) (sub, rest string, ok bool) {
	body := strings.TrimSpace(text)
	if !strings.HasPrefix(body, prefix) {
		return "", "", false
	}
	body = strings.TrimSpace(strings.TrimPrefix(body, prefix))
	word, remainder := splitFirst(body)
	if !strings.EqualFold(word, commandWord) {
		return "", "", false
	}
	sub, rest = splitFirst(remainder)
	return strings.ToLower(sub), rest, true
}

func splitFirst(s string) (string, string) {
	s = strings.TrimSpace(s)
	idx := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\n' || r == '\t' || r == '\r' })
	if idx < 0 {
		return s, ""
	}
	return s[:idx], strings.TrimSpace(s[idx:])
}

func metaFor(msg *irisfast.Message) guessdto.RequestMeta {
	user := msg.UserID()
	if user == "" {
		user = "player"
	}
	return guessdto.RequestMeta{
		SessionID:   fmt.Sprintf("%s:%s", strings.TrimSpace(msg.Room), user),
		Room:        msg.Room,
		Sender:      user,
		DisplayName: msg.SenderName(),
	}
}

func (b *bot) handle(msg *irisfast.Message) {
	if msg == nil || strings.TrimSpace(msg.Msg) == "" {
		return
	}
	sub, rest, ok := parseCommand(b.prefix, msg.Msg)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	reply := b.dispatch(ctx, metaFor(msg), sub, rest)
	if err := b.presenter.Send(msg.Room, reply); err != nil {
		b.logger.Warn("reply_send_failed", zap.String("room", msg.Room), zap.String("command", sub), zap.Error(err))
	}
}

func (b *bot) dispatch(ctx context.Context, meta guessdto.RequestMeta, sub, rest string) string {
	f := b.formatter
	switch sub {
	case "", "도움", "help":
		return f.Help()
	case "시작", "다음":
		v, err := b.svc.Start(ctx, meta)
		if err != nil {
			return f.Error(err)
		}
		return f.Started(v, false)
	case ">":
		return b.move(b.svc.Next(ctx, meta))
	case "<":
		return b.move(b.svc.Prev(ctx, meta))
	case "이동":
		n, ok := parseInt(rest)
		if !ok {
			return f.Error(invalidArgument("ply number required"))
		}
		return b.move(b.svc.Select(ctx, meta, n-1))
	case "추측":
		elo, ok := parseInt(rest)
		if !ok {
			return f.Error(invalidArgument("elo required"))
		}
		v, err := b.svc.Guess(ctx, meta, elo)
		if err != nil {
			return f.Error(err)
		}
		return f.GuessSet(v)
	case "제출":
		if strings.TrimSpace(rest) != "" {
			elo, ok := parseInt(rest)
			if !ok {
				return f.Error(invalidArgument("elo must be a number"))
			}
			if _, err := b.svc.Guess(ctx, meta, elo); err != nil {
				return f.Error(err)
			}
		}
		v, err := b.svc.Submit(ctx, meta)
		if err != nil {
			return f.Error(err)
		}
		return f.Revealed(v)
	case "뒤집기":
		v, err := b.svc.Flip(ctx, meta)
		if err != nil {
			return f.Error(err)
		}
		return f.Flipped(v)
	case "불러오기":
		v, err := b.svc.Import(ctx, meta, rest)
		if err != nil {
			return f.Error(err)
		}
		return f.Started(v, true)
	case "현황":
		v, err := b.svc.Status(ctx, meta)
		if err != nil {
			return f.Error(err)
		}
		return f.Status(v)
	case "통계":
		p, err := b.svc.Profile(ctx, meta)
		if err != nil {
			return f.Error(err)
		}
		return f.Profile(p)
	case "순위":
		limit, _ := parseInt(rest)
		entries, err := b.svc.Leaderboard(ctx, limit)
		if err != nil {
			return f.Error(err)
		}
		return f.Leaderboard(entries)
	case "기록":
		limit, _ := parseInt(rest)
		rounds, err := b.svc.History(ctx, meta, limit)
		if err != nil {
			return f.Error(err)
		}
		return f.History(rounds)
	case "내보내기":
		out, err := b.svc.Export(ctx, meta)
		if err != nil {
			return f.Error(err)
		}
		return f.Export(out)
	case "닫기":
		if _, err := b.svc.Dismiss(ctx, meta); err != nil {
			return f.Error(err)
		}
		return f.Dismissed()
	default:
		return f.UnknownCommand()
	}
}

func (b *bot) move(v *guessdto.SessionView, err error) string {
	if err != nil {
		return b.formatter.Error(err)
	}
	return b.formatter.Move(v)
}

func parseInt(s string) (int, bool) {
	word, _ := splitFirst(s)
	n, err := strconv.Atoi(word)
	return n, err == nil
}

func invalidArgument(msg string) error {
	return guessdto.DomainError{Code: guessdto.CodeInvalidArgument, Message: msg}
}
