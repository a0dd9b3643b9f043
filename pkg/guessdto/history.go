package guessdto

import "time"

type RoundView struct {
	ID          string    `json:"id"`
	Guess       int       `json:"guess"`
	Actual      int       `json:"actual"`
	Diff        int       `json:"diff"`
	BaseScore   int       `json:"base_score"`
	StreakBonus int       `json:"streak_bonus"`
	TotalScore  int       `json:"total_score"`
	Accuracy    int       `json:"accuracy"`
	Grade       string    `json:"grade"`
	Link        string    `json:"link,omitempty"`
	PlayedAt    time.Time `json:"played_at"`
}

type LeaderboardEntry struct {
	Rank          int       `json:"rank"`
	Name          string    `json:"name"`
	TotalScore    int       `json:"total_score"`
	GamesPlayed   int       `json:"games_played"`
	AverageScore  float64   `json:"average_score"`
	BestStreak    int       `json:"best_streak"`
	CurrentStreak int       `json:"current_streak"`
	BestGrade     string    `json:"best_grade,omitempty"`
	LastPlayed    time.Time `json:"last_played"`
}

type ProfileView struct {
	Name         string     `json:"name"`
	Streak       StreakView `json:"streak"`
	BestGrade    string     `json:"best_grade,omitempty"`
	LastPlayedAt time.Time  `json:"last_played_at"`
}
