package config

import (
	"reflect"
	"testing"
	"time"
)

func setBotEnv(t *testing.T) {
	t.Helper()
	t.Setenv("IRIS_BASE_URL", "http://iris.local:3000")
	t.Setenv("IRIS_WS_URL", "ws://iris.local:3000/ws")
	t.Setenv("BOT_PREFIX", "!")
}

func TestLoad_Defaults(t *testing.T) {
	setBotEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IrisEgress != "http" || cfg.ArchiveBaseURL != "https://api.chess.com/pub" || cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.FetchMaxAttempts != 10 || cfg.MinPlies != 8 || cfg.GoodGuessScore != 70 {
		t.Fatalf("unexpected numeric defaults %+v", cfg)
	}
	if cfg.ArchiveCacheTTL != 6*time.Hour || cfg.GuessSessionTTL != 2*time.Hour {
		t.Fatalf("unexpected durations %+v", cfg)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setBotEnv(t)
	t.Setenv("IRIS_EGRESS", "AUTO")
	t.Setenv("TRACKED_PLAYERS", " ryo , ,adg5")
	t.Setenv("ALLOWED_ROOMS", "room-a,room-b")
	t.Setenv("FETCH_MAX_ATTEMPTS", "4")
	t.Setenv("MIN_PLIES", "-2")
	t.Setenv("ARCHIVE_CACHE_TTL", "90")
	t.Setenv("GUESS_SESSION_TTL", "30m")
	t.Setenv("ARCHIVE_BASE_URL", "http://archive.local/pub/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IrisEgress != "auto" || cfg.FetchMaxAttempts != 4 || cfg.MinPlies != 8 {
		t.Fatalf("unexpected values %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.TrackedPlayers, []string{"ryo", "adg5"}) || len(cfg.AllowedRooms) != 2 {
		t.Fatalf("unexpected lists %v %v", cfg.TrackedPlayers, cfg.AllowedRooms)
	}
	if cfg.ArchiveCacheTTL != 90*time.Second || cfg.GuessSessionTTL != 30*time.Minute {
		t.Fatalf("unexpected durations %v %v", cfg.ArchiveCacheTTL, cfg.GuessSessionTTL)
	}
	if cfg.ArchiveBaseURL != "http://archive.local/pub" {
		t.Fatalf("unexpected archive url %q", cfg.ArchiveBaseURL)
	}
}

func TestLoad_Validation(t *testing.T) {
	t.Setenv("IRIS_BASE_URL", "")
	t.Setenv("IRIS_WS_URL", "")
	t.Setenv("BOT_PREFIX", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing IRIS_BASE_URL error")
	}
	if _, err := LoadAPI(); err != nil {
		t.Fatalf("LoadAPI should not need iris settings: %v", err)
	}

	setBotEnv(t)
	t.Setenv("IRIS_EGRESS", "smoke-signal")
	if _, err := Load(); err == nil {
		t.Fatalf("expected invalid IRIS_EGRESS error")
	}
	t.Setenv("IRIS_EGRESS", "")
	t.Setenv("GUESS_SESSION_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected invalid duration error")
	}
}
