package archive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func noBackoff(int) time.Duration { return 0 }

func TestClient_ListAndFetch(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/player/dq_555/games/archives":
			fmt.Fprintf(w, `{"archives":["%s/player/dq_555/games/2024/03"]}`, srv.URL)
		case "/player/dq_555/games/2024/03":
			fmt.Fprint(w, `{"games":[{"url":"https://example.test/g/1","pgn":"1. e4 e5","rules":"chess","time_class":"rapid",
				"white":{"username":"dq_555","rating":1710,"result":"win"},"black":{"username":"someone","rating":1690,"result":"resigned"}}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, withBackoff(noBackoff))
	ctx := context.Background()

	archives, err := c.ListArchives(ctx, "DQ_555")
	if err != nil {
		t.Fatalf("ListArchives: %v", err)
	}
	if len(archives) != 1 {
		t.Fatalf("expected 1 archive, got %v", archives)
	}
	games, err := c.FetchGames(ctx, archives[0])
	if err != nil {
		t.Fatalf("FetchGames: %v", err)
	}
	if len(games) != 1 || games[0].White.Rating != 1710 || games[0].TimeClass != "rapid" {
		t.Fatalf("unexpected games %+v", games)
	}

	if _, err := c.FetchGames(ctx, "/player/missing/games/2020/01"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"archives":[]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetry(3), withBackoff(noBackoff))
	if _, err := c.ListArchives(context.Background(), "ryo"); err != nil {
		t.Fatalf("ListArchives: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetry(3), withBackoff(noBackoff))
	_, err := c.ListArchives(context.Background(), "ryo")
	var serr *StatusError
	if !errors.As(err, &serr) || serr.Status != http.StatusBadRequest {
		t.Fatalf("expected StatusError 400, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single call, got %d", got)
	}
}

type countingArchive struct {
	lists   int
	batches int
}

func (c *countingArchive) ListArchives(ctx context.Context, username string) ([]string, error) {
	c.lists++
	return []string{"https://example.test/" + username + "/2024/01"}, nil
}

func (c *countingArchive) FetchGames(ctx context.Context, archiveURL string) ([]GameRecord, error) {
	c.batches++
	return []GameRecord{{URL: archiveURL, Rules: "chess", TimeClass: "rapid"}}, nil
}

func TestCachedArchive_HitsRedisAfterFirstCall(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	next := &countingArchive{}
	cached := NewCachedArchive(next, rdb, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		archives, err := cached.ListArchives(ctx, "Ryo")
		if err != nil || len(archives) != 1 {
			t.Fatalf("ListArchives: %v %v", archives, err)
		}
		games, err := cached.FetchGames(ctx, archives[0])
		if err != nil || len(games) != 1 || games[0].TimeClass != "rapid" {
			t.Fatalf("FetchGames: %v %v", games, err)
		}
	}
	if next.lists != 1 || next.batches != 1 {
		t.Fatalf("expected one upstream call each, got lists=%d batches=%d", next.lists, next.batches)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := cached.ListArchives(ctx, "ryo"); err != nil {
		t.Fatalf("ListArchives after expiry: %v", err)
	}
	if next.lists != 2 {
		t.Fatalf("expected refetch after ttl, got %d", next.lists)
	}
}
