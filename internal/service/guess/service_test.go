package guess

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/park285/EloGuess-KakaoTalk-bot/internal/domain"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/gamesource"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/leaderboard"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/pgn"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/session"
	"github.com/park285/EloGuess-KakaoTalk-bot/pkg/guessdto"
)

const fixturePGN = `[White "Hikaru"]
[Black "dq_555"]
[WhiteElo "1600"]
[BlackElo "1400"]
[Link "https://www.chess.com/game/live/1"]
[TimeControl "600"]
[Result "1-0"]
[Termination "Hikaru won by resignation"]

1. e4 {[%clk 0:09:58]} 1... e5 {[%clk 0:09:57]} 2. Nf3 {[%clk 0:09:55]} 2... Nc6 {[%clk 0:09:50]} 3. Bb5 {[%clk 0:09:49]} 3... a6 {[%clk 0:09:45]} 4. Ba4 {[%clk 0:09:40]} 4... Nf6 {[%clk 0:09:30]} 5. O-O {[%clk 0:09:31]} 5... Be7 {[%clk 0:09:20]} 1-0`

type fakeFetcher struct {
	game  *domain.Game
	err   error
	calls int
}

func (f *fakeFetcher) FetchRandomGame(ctx context.Context) (*domain.Game, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.game, nil
}

func fixtureGame(t *testing.T, tracked domain.Side) *domain.Game {
	t.Helper()
	parsed, err := pgn.Parse(fixturePGN)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	g := parsed.Game()
	g.TrackedSide = tracked
	g.White.IsPoolMember = tracked == domain.SideWhite
	g.Black.IsPoolMember = tracked == domain.SideBlack
	return g
}

type testEnv struct {
	svc     *Service
	fetcher *fakeFetcher
	repo    Repository
	board   *leaderboard.MemoryStore
}

func newTestService(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	env := &testEnv{
		fetcher: &fakeFetcher{game: fixtureGame(t, domain.SideBlack)},
		repo:    NewMemoryRepository(),
		board:   leaderboard.NewMemoryStore(),
	}
	svc, err := NewService(env.fetcher, env.repo, env.board, cfg, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	env.svc = svc
	return env
}

func meta(room, sender string) guessdto.RequestMeta {
	return guessdto.RequestMeta{SessionID: fmt.Sprintf("%s:%s", room, sender), Room: room, Sender: sender}
}

func requireCode(t *testing.T, err error, code string) guessdto.DomainError {
	t.Helper()
	var de guessdto.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError %s, got %v", code, err)
	}
	if de.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, de.Code, de.Message)
	}
	return de
}

func TestService_StartHidesIdentity(t *testing.T) {
	env := newTestService(t, Config{})
	ctx := context.Background()
	m := meta("room", "alice")

	v, err := env.svc.Start(ctx, m)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if v.Stage != string(domain.StageGuessing) || v.TotalPlies != 10 || v.GuessedElo != session.DefaultGuess {
		t.Fatalf("unexpected view %+v", v)
	}
	if v.ActualElo != 0 || v.Link != "" || v.Bottom.Name != session.PlaceholderBottom || v.Bottom.Rating != 0 {
		t.Fatalf("identity leaked before reveal: %+v", v)
	}
	if v.BoardOrientation != string(domain.SideBlack) || v.TimeControl != "10 min" {
		t.Fatalf("unexpected orientation/time control: %+v", v)
	}

	_, err = env.svc.Start(ctx, m)
	requireCode(t, err, guessdto.CodeInvalidStage)
	if env.fetcher.calls != 1 {
		t.Fatalf("fetcher must not run while guessing, calls=%d", env.fetcher.calls)
	}
}

func TestService_SubmitRecordsRound(t *testing.T) {
	env := newTestService(t, Config{})
	ctx := context.Background()
	m := meta("room", "alice")

	if _, err := env.svc.Start(ctx, m); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := env.svc.Guess(ctx, m, 1510); err != nil {
		t.Fatalf("Guess: %v", err)
	}
	v, err := env.svc.Submit(ctx, m)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if v.Reveal == nil || v.Reveal.Actual != 1500 || v.Reveal.Diff != 0 || v.Reveal.Grade != "S+" {
		t.Fatalf("unexpected reveal %+v", v.Reveal)
	}
	if v.ActualElo != 1500 || v.Bottom.Name != "dq_555" || v.Top.Name != "Hikaru" || v.Link == "" {
		t.Fatalf("expected identities after reveal: %+v", v)
	}
	if v.Streak.GamesPlayed != 1 || v.Streak.CurrentStreak != 1 {
		t.Fatalf("unexpected streak %+v", v.Streak)
	}

	rounds, err := env.svc.History(ctx, m, 0)
	if err != nil || len(rounds) != 1 || rounds[0].TotalScore != 100 {
		t.Fatalf("History: %+v %v", rounds, err)
	}
	profile, err := env.svc.Profile(ctx, m)
	if err != nil || profile.Name != "alice" || profile.BestGrade != "S+" || profile.Streak.TotalScore != 100 {
		t.Fatalf("Profile: %+v %v", profile, err)
	}
	board, err := env.svc.Leaderboard(ctx, 5)
	if err != nil || len(board) != 1 || board[0].Rank != 1 || board[0].Name != "alice" {
		t.Fatalf("Leaderboard: %+v %v", board, err)
	}
}

func TestService_StreakSurvivesClose(t *testing.T) {
	env := newTestService(t, Config{})
	ctx := context.Background()
	m := meta("room", "bob")

	for round := 0; round < 2; round++ {
		if _, err := env.svc.Start(ctx, m); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if _, err := env.svc.Submit(ctx, m); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if !env.svc.Close(m) {
		t.Fatalf("expected the session to be closed")
	}
	v, err := env.svc.Status(ctx, m)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if v.Stage != string(domain.StageInitial) || v.Streak.CurrentStreak != 2 || v.Streak.GamesPlayed != 2 {
		t.Fatalf("expected streak seeded from profile, got %+v", v)
	}
}

type flakyProfileRepo struct {
	Repository
	failures int
}

func (r *flakyProfileRepo) GetProfile(ctx context.Context, playerKey string) (*domain.Profile, error) {
	if r.failures > 0 {
		r.failures--
		return nil, errors.New("connection reset")
	}
	return r.Repository.GetProfile(ctx, playerKey)
}

func newFlakyService(t *testing.T, failures int, m guessdto.RequestMeta) (*Service, *flakyProfileRepo) {
	t.Helper()
	repo := &flakyProfileRepo{Repository: NewMemoryRepository()}
	stored := &domain.Profile{
		PlayerKey: deriveIdentity(m).PlayerKey,
		Streak:    domain.StreakState{CurrentStreak: 3, BestStreak: 9, GamesPlayed: 40, TotalScore: 3000},
	}
	if err := repo.UpsertProfile(context.Background(), stored); err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}
	repo.failures = failures
	svc, err := NewService(&fakeFetcher{game: fixtureGame(t, domain.SideWhite)}, repo, leaderboard.NewMemoryStore(), Config{}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repo
}

func TestService_ProfileLoadFailureRetries(t *testing.T) {
	ctx := context.Background()
	m := meta("room", "carol")
	svc, _ := newFlakyService(t, 1, m)

	if _, err := svc.Start(ctx, m); err != nil {
		t.Fatalf("Start: %v", err)
	}
	v, err := svc.Status(ctx, m)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if v.Streak.GamesPlayed != 40 || v.Streak.CurrentStreak != 3 {
		t.Fatalf("expected stored streak after retry, got %+v", v.Streak)
	}
}

func TestService_RoundAddsToStoredProfile(t *testing.T) {
	ctx := context.Background()
	m := meta("room", "carol")
	svc, repo := newFlakyService(t, 2, m)

	if _, err := svc.Start(ctx, m); err != nil {
		t.Fatalf("Start: %v", err)
	}
	v, err := svc.Submit(ctx, m)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if v.Streak.GamesPlayed != 41 {
		t.Fatalf("session streak not resynced: %+v", v.Streak)
	}

	p, err := repo.GetProfile(ctx, deriveIdentity(m).PlayerKey)
	if err != nil || p == nil {
		t.Fatalf("GetProfile: %+v %v", p, err)
	}
	want := domain.StreakState{CurrentStreak: 4, BestStreak: 9, GamesPlayed: 41, TotalScore: 3100}
	if p.Streak != want {
		t.Fatalf("stored streak = %+v, want %+v", p.Streak, want)
	}
}

func TestService_FetchErrorsAreRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{"exhausted", gamesource.ErrExhaustedAttempts, guessdto.CodeExhaustedAttempts},
		{"transport", errors.New("dial tcp: connection refused"), guessdto.CodeFetchFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestService(t, Config{})
			env.fetcher.err = tc.err
			v, err := env.svc.Start(context.Background(), meta("room", "carol"))
			de := requireCode(t, err, tc.code)
			if !de.Retryable {
				t.Fatalf("expected retryable error")
			}
			if v == nil || v.Stage != string(domain.StageInitial) || v.LastError == "" || v.IsLoading {
				t.Fatalf("unexpected view after failure: %+v", v)
			}
		})
	}
}

func TestService_ImportValidation(t *testing.T) {
	env := newTestService(t, Config{})
	ctx := context.Background()
	m := meta("room", "dave")

	_, err := env.svc.Import(ctx, m, "[WhiteElo \"1500\"]\n\n1. e4 e5 2. Nf3 Nc6 3. Bb5 a6 4. Ba4 Nf6 *")
	de := requireCode(t, err, guessdto.CodeMissingRatingHeaders)
	if de.Retryable {
		t.Fatalf("import validation is not retryable")
	}
	v, err := env.svc.Import(ctx, m, fixturePGN)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if v.BoardOrientation != string(domain.SideWhite) || v.LastError != "" {
		t.Fatalf("unexpected view %+v", v)
	}
	v, _ = env.svc.Select(ctx, m, 3)
	if v.CurrentPly != 3 || v.CurrentSAN != "Nc6" || v.Bottom.Clock != "0:09:55" || v.Top.Clock != "0:09:50" {
		t.Fatalf("unexpected cursor view %+v", v)
	}
}

func TestService_ExportAfterReveal(t *testing.T) {
	env := newTestService(t, Config{})
	ctx := context.Background()
	m := meta("room", "erin")

	_, err := env.svc.Export(ctx, m)
	requireCode(t, err, guessdto.CodeNoGame)
	if _, err := env.svc.Start(ctx, m); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err = env.svc.Export(ctx, m)
	requireCode(t, err, guessdto.CodeInvalidStage)
	if _, err := env.svc.Submit(ctx, m); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	out, err := env.svc.Export(ctx, m)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if out.FileName != "Hikaru-dq_555-chessgame.pgn" || out.PGN == "" {
		t.Fatalf("unexpected export %+v", out)
	}
}

func TestService_RoomFilterAndEviction(t *testing.T) {
	env := newTestService(t, Config{AllowedRooms: []string{"Chess-Room"}, SessionTTL: time.Minute})
	ctx := context.Background()

	_, err := env.svc.Status(ctx, meta("other", "frank"))
	requireCode(t, err, guessdto.CodeRoomNotAllowed)

	now := time.Now()
	env.svc.now = func() time.Time { return now }
	if _, err := env.svc.Status(ctx, meta("chess-room", "frank")); err != nil {
		t.Fatalf("Status: %v", err)
	}
	if n := env.svc.EvictIdle(); n != 0 {
		t.Fatalf("fresh session evicted")
	}
	env.svc.now = func() time.Time { return now.Add(2 * time.Minute) }
	if n := env.svc.EvictIdle(); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
}
