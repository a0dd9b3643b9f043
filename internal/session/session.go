package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/park285/EloGuess-KakaoTalk-bot/internal/domain"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/pgn"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/scoring"
)

var (
	ErrEmptyPGN             = errors.New("pgn is empty")
	ErrMissingRatingHeaders = errors.New("pgn must include both WhiteElo and BlackElo headers")
	ErrTooShort             = errors.New("game is too short")
	ErrInvalidMovetext      = errors.New("invalid pgn movetext")
	ErrInvalidStage         = errors.New("action not allowed in current stage")
	ErrNoGame               = errors.New("no game loaded")
	ErrFetchInProgress      = errors.New("a game is already loading")
	ErrStaleFetch           = errors.New("fetch superseded by a newer request")
)

const (
	DefaultGuess = 1500
	MinGuess     = 500
	MaxGuess     = 2500
	GuessStep    = 50

	DefaultMinPlies = 8

	PlaceholderBottom = "Player 1"
	PlaceholderTop    = "Player 2"
)

// Fetcher는 무작위 후보 게임 하나를 가져온다. gamesource.Source가 구현한다.
type Fetcher interface {
	FetchRandomGame(ctx context.Context) (*domain.Game, error)
}

type FetcherFunc func(ctx context.Context) (*domain.Game, error)

func (f FetcherFunc) FetchRandomGame(ctx context.Context) (*domain.Game, error) { return f(ctx) }

// Ticket stamps one fetch request. Only the latest ticket may apply its result.
type Ticket uint64

type State struct {
	Stage             domain.Stage
	CurrentPly        int
	CurrentClockIndex int
	GuessedElo        int
	ActualElo         int
	BoardOrientation  domain.Side
	IsLoading         bool
	LastError         string
}

type Options struct {
	MinPlies  int
	GoodScore int
}

type Session struct {
	mu sync.Mutex

	opts   Options
	state  State
	game   *domain.Game
	streak domain.StreakState
	reveal *Reveal
	err    error
	seq    uint64
}

func New(opts Options) *Session {
	if opts.MinPlies <= 0 {
		opts.MinPlies = DefaultMinPlies
	}
	if opts.GoodScore <= 0 {
		opts.GoodScore = scoring.DefaultGoodScore
	}
	return &Session{
		opts: opts,
		state: State{
			Stage:            domain.StageInitial,
			GuessedElo:       DefaultGuess,
			BoardOrientation: domain.SideWhite,
		},
	}
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Game returns the loaded game. Games are never mutated after load.
func (s *Session) Game() *domain.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game
}

func (s *Session) Streak() domain.StreakState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streak
}

// SetStreak seeds the counters, e.g. from a stored profile.
func (s *Session) SetStreak(st domain.StreakState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streak = st
}

// LastReveal is the result of the most recent submit while still Revealed.
func (s *Session) LastReveal() *Reveal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reveal == nil || s.state.Stage != domain.StageRevealed {
		return nil
	}
	cp := *s.reveal
	return &cp
}

// LastErr is the error behind State.LastError.
func (s *Session) LastErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearErrorLocked()
}

func (s *Session) setErrorLocked(err error) {
	s.err = err
	if err == nil {
		s.state.LastError = ""
		return
	}
	s.state.LastError = err.Error()
}

func (s *Session) clearErrorLocked() { s.setErrorLocked(nil) }

// StartGuessing loads a fresh game through f. The fetch runs without the lock;
// a result that was superseded meanwhile is dropped and ErrStaleFetch returned.
func (s *Session) StartGuessing(ctx context.Context, f Fetcher) error {
	if f == nil {
		return errors.New("fetcher is required")
	}
	ticket, err := s.BeginFetch()
	if err != nil {
		return err
	}
	game, ferr := f.FetchRandomGame(ctx)
	if !s.CompleteFetch(ticket, game, ferr) {
		return ErrStaleFetch
	}
	if ferr != nil {
		return ferr
	}
	if game == nil || game.TotalPlies() == 0 {
		return ErrNoGame
	}
	return nil
}

func (s *Session) BeginFetch() (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.IsLoading {
		return 0, ErrFetchInProgress
	}
	if s.state.Stage == domain.StageGuessing {
		return 0, ErrInvalidStage
	}
	s.seq++
	s.state.IsLoading = true
	return Ticket(s.seq), nil
}

// CompleteFetch applies a fetch result. It reports false when t is stale.
// On failure the previous game and stage stay intact and LastError is set.
func (s *Session) CompleteFetch(t Ticket, game *domain.Game, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uint64(t) != s.seq {
		return false
	}
	s.state.IsLoading = false
	if err == nil && (game == nil || game.TotalPlies() == 0) {
		err = ErrNoGame
	}
	if err != nil {
		s.setErrorLocked(err)
		return true
	}
	s.loadLocked(game, game.TrackedSide)
	return true
}

func (s *Session) loadLocked(game *domain.Game, orientation domain.Side) {
	if orientation != domain.SideBlack {
		orientation = domain.SideWhite
	}
	s.game = game
	s.reveal = nil
	s.state = State{
		Stage:            domain.StageGuessing,
		GuessedElo:       DefaultGuess,
		ActualElo:        game.AverageElo,
		BoardOrientation: orientation,
	}
	s.clearErrorLocked()
}

// ImportGame replaces the current game with a user supplied PGN.
// Validation failures only touch LastError.
func (s *Session) ImportGame(raw string) error {
	game, err := s.parseImport(raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.setErrorLocked(err)
		return err
	}
	// 진행 중이던 fetch 결과는 버린다.
	s.seq++
	s.loadLocked(game, domain.SideWhite)
	return nil
}

func (s *Session) parseImport(raw string) (*domain.Game, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyPGN
	}
	headers := pgn.ReadHeaders(raw)
	if _, ok := headers.Rating(pgn.TagWhiteElo); !ok {
		return nil, ErrMissingRatingHeaders
	}
	if _, ok := headers.Rating(pgn.TagBlackElo); !ok {
		return nil, ErrMissingRatingHeaders
	}
	parsed, err := pgn.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMovetext, err)
	}
	if parsed.Plies() < s.opts.MinPlies {
		return nil, fmt.Errorf("%w: %d plies, need %d", ErrTooShort, parsed.Plies(), s.opts.MinPlies)
	}
	return parsed.Game(), nil
}

// MoveNext advances one ply. It reports whether the cursor moved.
func (s *Session) MoveNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seekLocked(s.state.CurrentPly + 1)
}

func (s *Session) MovePrevious() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seekLocked(s.state.CurrentPly - 1)
}

// SelectMove jumps to ply, clamped to the game.
func (s *Session) SelectMove(ply int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seekLocked(ply)
}

func (s *Session) seekLocked(ply int) bool {
	if s.game == nil || s.game.TotalPlies() == 0 {
		return false
	}
	ply = clamp(ply, 0, s.game.TotalPlies()-1)
	moved := ply != s.state.CurrentPly
	s.state.CurrentPly = ply
	s.state.CurrentClockIndex = ClockIndex(ply, len(s.game.ClockTimes))
	if moved {
		s.clearErrorLocked()
	}
	return moved
}

// ClockIndex is floor((ply+1)/2) clamped to [0, ceil(clocks/2)-1]. Every
// cursor move uses this one rule, SelectMove included. The upper bound is the
// ceiling, not floor(clocks/2)-1, so an odd-length clock list keeps its last
// move pair reachable.
func ClockIndex(ply, clocks int) int {
	upper := (clocks+1)/2 - 1
	if upper < 0 {
		upper = 0
	}
	return clamp((ply+1)/2, 0, upper)
}

// SetGuess clamps v to the guessing range and snaps it to the step.
// It returns the stored guess.
func (s *Session) SetGuess(v int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Stage != domain.StageGuessing {
		return s.state.GuessedElo, ErrInvalidStage
	}
	s.state.GuessedElo = NormalizeGuess(v)
	s.clearErrorLocked()
	return s.state.GuessedElo, nil
}

func NormalizeGuess(v int) int {
	v = clamp(v, MinGuess, MaxGuess)
	return clamp((v+GuessStep/2)/GuessStep*GuessStep, MinGuess, MaxGuess)
}

// Reveal is the outcome of one submitted guess.
type Reveal struct {
	Guess       int
	Actual      int
	Result      scoring.Result
	StreakBonus int
	TotalScore  int
	Accuracy    int
	Message     string
	Good        bool
	Streak      domain.StreakState
}

// SubmitGuess scores the guess with the streak held before this round.
func (s *Session) SubmitGuess() (*Reveal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.game == nil {
		return nil, ErrNoGame
	}
	if s.state.Stage != domain.StageGuessing {
		return nil, ErrInvalidStage
	}
	guess, actual := s.state.GuessedElo, s.state.ActualElo
	res := scoring.Score(guess, actual)
	bonus := scoring.StreakBonus(s.streak.CurrentStreak)
	total := scoring.TotalScore(res.Score, s.streak.CurrentStreak, 0)
	good := res.Score >= s.opts.GoodScore
	s.streak = s.streak.Record(total, good)

	r := &Reveal{
		Guess:       guess,
		Actual:      actual,
		Result:      res,
		StreakBonus: bonus,
		TotalScore:  total,
		Accuracy:    scoring.Accuracy(guess, actual),
		Message:     scoring.MotivationalMessage(total),
		Good:        good,
		Streak:      s.streak,
	}
	s.reveal = r
	s.state.Stage = domain.StageRevealed
	s.clearErrorLocked()
	cp := *r
	return &cp, nil
}

func (s *Session) FlipBoard() (domain.Side, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.game == nil {
		return s.state.BoardOrientation, ErrNoGame
	}
	s.state.BoardOrientation = s.state.BoardOrientation.Opposite()
	s.clearErrorLocked()
	return s.state.BoardOrientation, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
