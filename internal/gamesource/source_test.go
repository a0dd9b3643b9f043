package gamesource

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/park285/EloGuess-KakaoTalk-bot/internal/archive"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/domain"
)

const tenPlyPGN = `[White "someone"]
[Black "DQ_555"]
[WhiteElo "1610"]
[BlackElo "1395"]
[Result "0-1"]
[TimeControl "600"]
[Termination "DQ_555 won by resignation"]

1. e4 {[%clk 0:09:58]} 1... e5 {[%clk 0:09:57]} 2. Nf3 {[%clk 0:09:55]} 2... Nc6 {[%clk 0:09:50]} 3. Bb5 {[%clk 0:09:49]} 3... a6 {[%clk 0:09:45]} 4. Ba4 {[%clk 0:09:40]} 4... Nf6 {[%clk 0:09:30]} 5. O-O {[%clk 0:09:31]} 5... Be7 {[%clk 0:09:20]} 0-1`

const shortPGN = `[White "a"]
[Black "b"]

1. e4 e5 2. Nf3 Nc6 *`

type fakeArchive struct {
	archives  []string
	games     []archive.GameRecord
	listErr   error
	batchErr  error
	listCalls int
	batchHits int
}

func (f *fakeArchive) ListArchives(ctx context.Context, username string) ([]string, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.archives, nil
}

func (f *fakeArchive) FetchGames(ctx context.Context, archiveURL string) ([]archive.GameRecord, error) {
	f.batchHits++
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	return f.games, nil
}

func newTestSource(t *testing.T, a archive.Archive) *Source {
	t.Helper()
	s, err := New(a, Config{
		TrackedPlayers: []string{"dq_555"},
		Rand:           rand.New(rand.NewSource(7)),
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestFetchRandomGame_ExhaustsOnNonRapid(t *testing.T) {
	fake := &fakeArchive{
		archives: []string{"https://example.test/2024/01", "https://example.test/2024/02"},
		games: []archive.GameRecord{
			{Rules: "chess", TimeClass: "blitz", PGN: tenPlyPGN},
			{Rules: "chess", TimeClass: "bullet", PGN: tenPlyPGN},
			{Rules: "chess960", TimeClass: "rapid", PGN: tenPlyPGN},
		},
	}
	_, err := newTestSource(t, fake).FetchRandomGame(context.Background())
	if !errors.Is(err, ErrExhaustedAttempts) {
		t.Fatalf("expected ErrExhaustedAttempts, got %v", err)
	}
	if fake.batchHits != DefaultMaxAttempts {
		t.Fatalf("expected %d batch fetches, got %d", DefaultMaxAttempts, fake.batchHits)
	}
}

func TestFetchRandomGame_SkipsShortAndAbandoned(t *testing.T) {
	fake := &fakeArchive{
		archives: []string{"https://example.test/2024/01"},
		games: []archive.GameRecord{
			{Rules: "chess", TimeClass: "rapid", PGN: shortPGN},
			{Rules: "chess", TimeClass: "rapid", PGN: tenPlyPGN + "\n[Termination \"Game Abandoned\"]"},
		},
	}
	_, err := newTestSource(t, fake).FetchRandomGame(context.Background())
	if !errors.Is(err, ErrExhaustedAttempts) {
		t.Fatalf("expected ErrExhaustedAttempts, got %v", err)
	}
}

func TestFetchRandomGame_Success(t *testing.T) {
	fake := &fakeArchive{
		archives: []string{"https://example.test/2024/01"},
		games: []archive.GameRecord{
			{Rules: "chess", TimeClass: "blitz", PGN: tenPlyPGN},
			{
				URL:       "https://www.chess.com/game/live/42",
				Rules:     "chess",
				TimeClass: "rapid",
				PGN:       tenPlyPGN,
				White:     archive.PlayerRecord{Username: "someone", Rating: 1610},
				Black:     archive.PlayerRecord{Username: "DQ_555", Rating: 1395},
			},
		},
	}
	game, err := newTestSource(t, fake).FetchRandomGame(context.Background())
	if err != nil {
		t.Fatalf("FetchRandomGame: %v", err)
	}
	if game.TrackedSide != domain.SideBlack || !game.Black.IsPoolMember || game.White.IsPoolMember {
		t.Fatalf("expected tracked identity on black: %+v", game)
	}
	if game.RepresentativeElo != 1395 {
		t.Fatalf("expected representative 1395, got %d", game.RepresentativeElo)
	}
	if game.AverageElo != 1503 {
		t.Fatalf("expected average 1503, got %d", game.AverageElo)
	}
	if game.TotalPlies() != 10 || len(game.ClockTimes) != 10 {
		t.Fatalf("unexpected plies/clocks: %d/%d", game.TotalPlies(), len(game.ClockTimes))
	}
	if game.Link != "https://www.chess.com/game/live/42" || game.TimeControl != "10 min" {
		t.Fatalf("unexpected metadata link=%q tc=%q", game.Link, game.TimeControl)
	}
	if game.CleanMovetext == "" || game.RawMovetext == game.CleanMovetext {
		t.Fatalf("expected clean movetext to differ from raw")
	}
}

func TestFetchRandomGame_ListFailureIsTransportError(t *testing.T) {
	boom := errors.New("connection refused")
	fake := &fakeArchive{listErr: boom}
	_, err := newTestSource(t, fake).FetchRandomGame(context.Background())
	if !errors.Is(err, boom) || errors.Is(err, ErrExhaustedAttempts) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestFetchRandomGame_BatchFailuresConsumeAttempts(t *testing.T) {
	fake := &fakeArchive{archives: []string{"x"}, batchErr: errors.New("timeout")}
	_, err := newTestSource(t, fake).FetchRandomGame(context.Background())
	if !errors.Is(err, ErrExhaustedAttempts) {
		t.Fatalf("expected ErrExhaustedAttempts, got %v", err)
	}
	if fake.batchHits != DefaultMaxAttempts {
		t.Fatalf("expected %d attempts, got %d", DefaultMaxAttempts, fake.batchHits)
	}
}

func TestNew_RequiresPool(t *testing.T) {
	if _, err := New(&fakeArchive{}, Config{TrackedPlayers: []string{" ", ""}}, nil); !errors.Is(err, ErrNoTrackedPlayers) {
		t.Fatalf("expected ErrNoTrackedPlayers, got %v", err)
	}
}
