package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/park285/EloGuess-KakaoTalk-bot/internal/domain"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/gamesource"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/leaderboard"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/pgn"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/service/guess"
	"github.com/park285/EloGuess-KakaoTalk-bot/pkg/guessdto"
)

const fixturePGN = `[White "Hikaru"]
[Black "dq_555"]
[WhiteElo "1600"]
[BlackElo "1400"]
[TimeControl "600"]
[Result "1-0"]

1. e4 {[%clk 0:09:58]} 1... e5 {[%clk 0:09:57]} 2. Nf3 {[%clk 0:09:55]} 2... Nc6 {[%clk 0:09:50]} 3. Bb5 {[%clk 0:09:49]} 3... a6 {[%clk 0:09:45]} 4. Ba4 {[%clk 0:09:40]} 4... Nf6 {[%clk 0:09:30]} 5. O-O {[%clk 0:09:31]} 5... Be7 {[%clk 0:09:20]} 1-0`

type stubFetcher struct {
	game *domain.Game
	err  error
}

func (f *stubFetcher) FetchRandomGame(ctx context.Context) (*domain.Game, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.game, nil
}

func newTestRouter(t *testing.T, fetcher *stubFetcher) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, err := guess.NewService(fetcher, guess.NewMemoryRepository(), leaderboard.NewMemoryStore(), guess.Config{}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewRouter(svc, nil)
}

func fixtureGame(t *testing.T) *domain.Game {
	t.Helper()
	parsed, err := pgn.Parse(fixturePGN)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	g := parsed.Game()
	g.TrackedSide = domain.SideBlack
	return g
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) guessdto.SessionView {
	t.Helper()
	var v guessdto.SessionView
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode view: %v (%s)", err, rec.Body.String())
	}
	return v
}

func TestRouter_HappyPath(t *testing.T) {
	r := newTestRouter(t, &stubFetcher{game: fixtureGame(t)})

	rec := do(t, r, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}

	rec = do(t, r, http.MethodPost, "/api/sessions/abc/start", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
	}
	if v := decodeView(t, rec); v.Stage != "guessing" || v.TotalPlies != 10 || v.ActualElo != 0 {
		t.Fatalf("unexpected start view %+v", v)
	}

	rec = do(t, r, http.MethodPost, "/api/sessions/abc/select", `{"ply":4}`)
	if v := decodeView(t, rec); rec.Code != http.StatusOK || v.CurrentPly != 4 || v.CurrentClockIndex != 2 {
		t.Fatalf("select: %d %+v", rec.Code, v)
	}

	rec = do(t, r, http.MethodPost, "/api/sessions/abc/guess", `{"elo":1537}`)
	if v := decodeView(t, rec); v.GuessedElo != 1550 {
		t.Fatalf("guess not snapped: %+v", v)
	}

	rec = do(t, r, http.MethodPost, "/api/sessions/abc/submit", "")
	v := decodeView(t, rec)
	if rec.Code != http.StatusOK || v.Reveal == nil || v.Reveal.Actual != 1500 || v.Reveal.Diff != 50 {
		t.Fatalf("submit: %d %+v", rec.Code, v.Reveal)
	}

	rec = do(t, r, http.MethodGet, "/api/sessions/abc/export", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Header().Get("Content-Disposition"), "Hikaru-dq_555-chessgame.pgn") {
		t.Fatalf("export: %d %v", rec.Code, rec.Header())
	}
	if !strings.Contains(rec.Body.String(), "[WhiteElo \"1600\"]") {
		t.Fatalf("export body: %s", rec.Body.String())
	}

	rec = do(t, r, http.MethodGet, "/api/leaderboard?limit=5", "")
	var board struct {
		Entries []guessdto.LeaderboardEntry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &board); err != nil || len(board.Entries) != 1 || board.Entries[0].TotalScore != 90 {
		t.Fatalf("leaderboard: %s", rec.Body.String())
	}

	rec = do(t, r, http.MethodGet, "/api/players/abc/rounds", "")
	var rounds struct {
		Rounds []guessdto.RoundView `json:"rounds"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &rounds); err != nil || len(rounds.Rounds) != 1 {
		t.Fatalf("rounds: %s", rec.Body.String())
	}
}

func TestRouter_ErrorMapping(t *testing.T) {
	fetcher := &stubFetcher{err: gamesource.ErrExhaustedAttempts}
	r := newTestRouter(t, fetcher)

	rec := do(t, r, http.MethodPost, "/api/sessions/s1/start", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var body struct {
		Error   guessdto.DomainError  `json:"error"`
		Session *guessdto.SessionView `json:"session"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != guessdto.CodeExhaustedAttempts || !body.Error.Retryable || body.Session == nil || body.Session.LastError == "" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	rec = do(t, r, http.MethodPost, "/api/sessions/s1/import", `{"pgn":"[White \"a\"]\n\n1. e4 *"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, r, http.MethodPost, "/api/sessions/s1/submit", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodPost, "/api/sessions/s1/guess", `{"elo":"high"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodGet, "/api/players/"+strings.Repeat("x", maxSessionIDLen+1)+"/rounds", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an oversized player id, got %d", rec.Code)
	}
}

func TestRouter_CreateSession(t *testing.T) {
	r := newTestRouter(t, &stubFetcher{})
	rec := do(t, r, http.MethodPost, "/api/sessions", "")
	var body struct {
		SessionID string `json:"session_id"`
	}
	if rec.Code != http.StatusCreated || json.Unmarshal(rec.Body.Bytes(), &body) != nil || len(body.SessionID) != 36 {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[string]int{
		guessdto.CodeNoGame:          http.StatusConflict,
		guessdto.CodeTooShort:        http.StatusUnprocessableEntity,
		guessdto.CodeSessionNotFound: http.StatusNotFound,
		guessdto.CodeInternal:        http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := StatusFor(guessdto.DomainError{Code: code}); got != want {
			t.Fatalf("%s: expected %d, got %d", code, want, got)
		}
	}
	if got := StatusFor(guessdto.DomainError{Code: guessdto.CodeFetchFailed, Retryable: true}); got != http.StatusServiceUnavailable {
		t.Fatalf("retryable: %d", got)
	}
}
