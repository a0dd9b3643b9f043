package session

import (
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/domain"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/pgn"
)

type PlayerView struct {
	Side     domain.Side
	Name     string
	Rating   int
	Clock    string
	Revealed bool
	Tracked  bool
}

// Seats is the board seen from the current orientation.
type Seats struct {
	Bottom PlayerView
	Top    PlayerView
}

// Players는 공개 전에는 자리표시 이름만 돌려준다.
func (s *Session) Players() Seats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seatsLocked()
}

func (s *Session) seatsLocked() Seats {
	bottomSide := s.state.BoardOrientation
	if bottomSide != domain.SideBlack {
		bottomSide = domain.SideWhite
	}
	white, black := s.clocksLocked()
	clockOf := func(side domain.Side) string {
		if side == domain.SideBlack {
			return black
		}
		return white
	}
	revealed := s.state.Stage == domain.StageRevealed
	view := func(side domain.Side, placeholder string) PlayerView {
		pv := PlayerView{Side: side, Name: placeholder, Clock: clockOf(side)}
		if revealed && s.game != nil {
			p := s.game.PlayerOn(side)
			pv.Name = p.Username
			pv.Rating = p.Rating
			pv.Tracked = p.IsPoolMember
			pv.Revealed = true
		}
		return pv
	}
	return Seats{
		Bottom: view(bottomSide, PlaceholderBottom),
		Top:    view(bottomSide.Opposite(), PlaceholderTop),
	}
}

// Clocks returns each side's last known clock at or before the current ply.
func (s *Session) Clocks() (white, black string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clocksLocked()
}

func (s *Session) clocksLocked() (white, black string) {
	if s.game == nil {
		return "", ""
	}
	clocks := s.game.ClockTimes
	for i := min(s.state.CurrentPly, len(clocks)-1); i >= 0 && (white == "" || black == ""); i-- {
		if clocks[i] == "" {
			continue
		}
		if i%2 == 0 && white == "" {
			white = clocks[i]
		} else if i%2 == 1 && black == "" {
			black = clocks[i]
		}
	}
	return white, black
}

func (s *Session) TotalPlies() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game.TotalPlies()
}

func (s *Session) CurrentFEN() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.game == nil || s.state.CurrentPly >= len(s.game.FENs) {
		return ""
	}
	return s.game.FENs[s.state.CurrentPly]
}

func (s *Session) CurrentSAN() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.game == nil || s.state.CurrentPly >= len(s.game.SAN) {
		return ""
	}
	return s.game.SAN[s.state.CurrentPly]
}

// Termination hides usernames behind the seat placeholders until Revealed.
func (s *Session) Termination() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.game == nil {
		return ""
	}
	if s.state.Stage == domain.StageRevealed {
		return s.game.Termination
	}
	seats := s.seatsLocked()
	aliases := map[string]string{
		s.game.PlayerOn(seats.Bottom.Side).Username: seats.Bottom.Name,
		s.game.PlayerOn(seats.Top.Side).Username:    seats.Top.Name,
	}
	return pgn.AnonymizeTermination(s.game.Termination, aliases)
}
