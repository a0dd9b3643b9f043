package guess

import (
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/domain"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/session"
	"github.com/park285/EloGuess-KakaoTalk-bot/pkg/guessdto"
)

func (s *Service) view(e *entry) *guessdto.SessionView {
	sess := e.sess
	st := sess.Snapshot()
	seats := sess.Players()
	revealed := st.Stage == domain.StageRevealed

	v := &guessdto.SessionView{
		SessionID:         e.identity.SessionID,
		Stage:             string(st.Stage),
		IsLoading:         st.IsLoading,
		LastError:         st.LastError,
		CurrentPly:        st.CurrentPly,
		CurrentClockIndex: st.CurrentClockIndex,
		TotalPlies:        sess.TotalPlies(),
		CurrentSAN:        sess.CurrentSAN(),
		CurrentFEN:        sess.CurrentFEN(),
		GuessedElo:        st.GuessedElo,
		BoardOrientation:  string(st.BoardOrientation),
		Bottom:            playerView(seats.Bottom),
		Top:               playerView(seats.Top),
		Streak:            streakView(sess.Streak()),
	}
	if game := sess.Game(); game != nil {
		v.Date = game.Date
		v.StartTime = game.StartTime
		v.TimeControl = game.TimeControl
		v.Result = game.Result
		v.Termination = sess.Termination()
		if revealed {
			v.ActualElo = st.ActualElo
			v.ECO = game.ECO
			v.Opening = game.OpeningName
			v.Link = game.Link
		}
	}
	if r := sess.LastReveal(); r != nil {
		v.Reveal = revealView(r)
	}
	return v
}

func playerView(p session.PlayerView) guessdto.PlayerView {
	return guessdto.PlayerView{
		Side:     string(p.Side),
		Name:     p.Name,
		Rating:   p.Rating,
		Clock:    p.Clock,
		Revealed: p.Revealed,
		Tracked:  p.Tracked,
	}
}

func streakView(st domain.StreakState) guessdto.StreakView {
	return guessdto.StreakView{
		CurrentStreak: st.CurrentStreak,
		BestStreak:    st.BestStreak,
		GamesPlayed:   st.GamesPlayed,
		TotalScore:    st.TotalScore,
		AverageScore:  st.AverageScore(),
	}
}

func revealView(r *session.Reveal) *guessdto.RevealView {
	return &guessdto.RevealView{
		Guess:       r.Guess,
		Actual:      r.Actual,
		Diff:        r.Result.Diff,
		Score:       r.Result.Score,
		Grade:       r.Result.Grade,
		Message:     r.Result.Message,
		ColorTag:    r.Result.ColorTag,
		StreakBonus: r.StreakBonus,
		TotalScore:  r.TotalScore,
		Accuracy:    r.Accuracy,
		Motivation:  r.Message,
		Good:        r.Good,
	}
}

func roundView(r *domain.RoundRecord) guessdto.RoundView {
	return guessdto.RoundView{
		ID:          r.ID,
		Guess:       r.Guess,
		Actual:      r.Actual,
		Diff:        r.Diff,
		BaseScore:   r.BaseScore,
		StreakBonus: r.StreakBonus,
		TotalScore:  r.TotalScore,
		Accuracy:    r.Accuracy,
		Grade:       r.Grade,
		Link:        r.Link,
		PlayedAt:    r.PlayedAt,
	}
}

func profileView(p *domain.Profile) *guessdto.ProfileView {
	return &guessdto.ProfileView{
		Name:         p.LeaderboardEntry().Name,
		Streak:       streakView(p.Streak),
		BestGrade:    p.BestGrade,
		LastPlayedAt: p.LastPlayedAt,
	}
}

func leaderboardView(rank int, e domain.LeaderboardEntry) guessdto.LeaderboardEntry {
	return guessdto.LeaderboardEntry{
		Rank:          rank,
		Name:          e.Name,
		TotalScore:    e.TotalScore,
		GamesPlayed:   e.GamesPlayed,
		AverageScore:  e.AverageScore,
		BestStreak:    e.BestStreak,
		CurrentStreak: e.CurrentStreak,
		BestGrade:     e.BestGrade,
		LastPlayed:    e.LastPlayed,
	}
}
