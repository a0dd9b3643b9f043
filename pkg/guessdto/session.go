package guessdto

// PlayerView is one seat of the board. Name and Rating stay masked until reveal.
type PlayerView struct {
	Side     string `json:"side"`
	Name     string `json:"name"`
	Rating   int    `json:"rating,omitempty"`
	Clock    string `json:"clock,omitempty"`
	Revealed bool   `json:"revealed"`
	Tracked  bool   `json:"tracked,omitempty"`
}

type StreakView struct {
	CurrentStreak int     `json:"current_streak"`
	BestStreak    int     `json:"best_streak"`
	GamesPlayed   int     `json:"games_played"`
	TotalScore    int     `json:"total_score"`
	AverageScore  float64 `json:"average_score"`
}

type RevealView struct {
	Guess       int    `json:"guess"`
	Actual      int    `json:"actual"`
	Diff        int    `json:"diff"`
	Score       int    `json:"score"`
	Grade       string `json:"grade"`
	Message     string `json:"message"`
	ColorTag    string `json:"color_tag"`
	StreakBonus int    `json:"streak_bonus"`
	TotalScore  int    `json:"total_score"`
	Accuracy    int    `json:"accuracy"`
	Motivation  string `json:"motivation"`
	Good        bool   `json:"good"`
}

type SessionView struct {
	SessionID         string `json:"session_id"`
	Stage             string `json:"stage"`
	IsLoading         bool   `json:"is_loading"`
	LastError         string `json:"last_error,omitempty"`
	CurrentPly        int    `json:"current_ply"`
	CurrentClockIndex int    `json:"current_clock_index"`
	TotalPlies        int    `json:"total_plies"`
	CurrentSAN        string `json:"current_san,omitempty"`
	CurrentFEN        string `json:"current_fen,omitempty"`
	GuessedElo        int    `json:"guessed_elo"`
	ActualElo         int    `json:"actual_elo,omitempty"`
	BoardOrientation  string `json:"board_orientation"`

	Bottom PlayerView `json:"bottom"`
	Top    PlayerView `json:"top"`

	Date        string `json:"date,omitempty"`
	StartTime   string `json:"start_time,omitempty"`
	TimeControl string `json:"time_control,omitempty"`
	Result      string `json:"result,omitempty"`
	Termination string `json:"termination,omitempty"`
	ECO         string `json:"eco,omitempty"`
	Opening     string `json:"opening,omitempty"`
	Link        string `json:"link,omitempty"`

	Reveal *RevealView `json:"reveal,omitempty"`
	Streak StreakView  `json:"streak"`
}

type ExportView struct {
	FileName string `json:"file_name"`
	PGN      string `json:"pgn"`
}
