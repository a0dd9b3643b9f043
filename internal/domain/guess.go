package domain

import (
	"strings"
	"time"
)

type Side string

const (
	SideWhite Side = "white"
	SideBlack Side = "black"
)

func (s Side) Opposite() Side {
	if s == SideBlack {
		return SideWhite
	}
	return SideBlack
}

// ParseSide는 "w"/"b" 축약도 허용한다. 알 수 없는 값이면 백.
func ParseSide(v string) Side {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "black", "b":
		return SideBlack
	default:
		return SideWhite
	}
}

type Stage string

const (
	StageInitial  Stage = "initial"
	StageGuessing Stage = "guessing"
	StageRevealed Stage = "revealed"
)

type Player struct {
	Username     string
	Rating       int
	IsPoolMember bool
}

// Game은 한 번 적재되면 바뀌지 않는다. 다음 게임에서는 통째로 교체된다.
type Game struct {
	// RawMovetext is the PGN as received; CleanMovetext has its clock comments removed.
	RawMovetext   string
	CleanMovetext string

	AverageElo        int
	RepresentativeElo int
	TrackedSide       Side

	White Player
	Black Player

	Link   string
	Result string

	// ClockTimes[i]는 ply i의 시계 (백은 짝수 인덱스). 주석이 없는 ply는 "".
	ClockTimes []string
	SAN        []string
	// FENs[i]는 ply i를 둔 직후의 국면.
	FENs []string

	Date        string
	StartTime   string
	TimeControl string
	Termination string
	ECO         string
	OpeningName string
}

func (g *Game) TotalPlies() int {
	if g == nil {
		return 0
	}
	return len(g.SAN)
}

func (g *Game) PlayerOn(side Side) Player {
	if g == nil {
		return Player{}
	}
	if side == SideBlack {
		return g.Black
	}
	return g.White
}

type StreakState struct {
	CurrentStreak int
	BestStreak    int
	GamesPlayed   int
	TotalScore    int
}

func (s StreakState) AverageScore() float64 {
	if s.GamesPlayed <= 0 {
		return 0
	}
	return float64(s.TotalScore) / float64(s.GamesPlayed)
}

// Record는 한 라운드 결과를 반영한 새 상태를 돌려준다.
func (s StreakState) Record(total int, good bool) StreakState {
	if total < 0 {
		total = 0
	}
	s.GamesPlayed++
	s.TotalScore += total
	if good {
		s.CurrentStreak++
	} else {
		s.CurrentStreak = 0
	}
	if s.CurrentStreak > s.BestStreak {
		s.BestStreak = s.CurrentStreak
	}
	return s
}

type RoundRecord struct {
	ID          string
	PlayerKey   string
	Room        string
	Guess       int
	Actual      int
	Diff        int
	BaseScore   int
	StreakBonus int
	TotalScore  int
	Accuracy    int
	Grade       string
	Link        string
	PlayedAt    time.Time
}

type Profile struct {
	PlayerKey    string
	DisplayName  string
	Streak       StreakState
	BestGrade    string
	LastPlayedAt time.Time
	UpdatedAt    time.Time
	CreatedAt    time.Time
}

type LeaderboardEntry struct {
	PlayerKey     string
	Name          string
	TotalScore    int
	GamesPlayed   int
	AverageScore  float64
	BestStreak    int
	CurrentStreak int
	BestGrade     string
	LastPlayed    time.Time
}

func (p *Profile) LeaderboardEntry() LeaderboardEntry {
	if p == nil {
		return LeaderboardEntry{}
	}
	name := strings.TrimSpace(p.DisplayName)
	if name == "" {
		name = p.PlayerKey
	}
	return LeaderboardEntry{
		PlayerKey:     p.PlayerKey,
		Name:          name,
		TotalScore:    p.Streak.TotalScore,
		GamesPlayed:   p.Streak.GamesPlayed,
		AverageScore:  p.Streak.AverageScore(),
		BestStreak:    p.Streak.BestStreak,
		CurrentStreak: p.Streak.CurrentStreak,
		BestGrade:     p.BestGrade,
		LastPlayed:    p.LastPlayedAt,
	}
}
