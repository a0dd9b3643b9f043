package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	IrisBaseURL string
	IrisWSURL   string
	IrisEgress  string

	BotPrefix string

	XUserID    string
	XUserEmail string
	XSessionID string

	RedisURL    string
	DatabaseURL string

	AllowedRooms []string

	ArchiveBaseURL   string
	ArchiveCacheTTL  time.Duration
	TrackedPlayers   []string
	FetchMaxAttempts int
	MinPlies         int

	GuessSessionTTL   time.Duration
	GuessHistoryLimit int
	GoodGuessScore    int

	HTTPAddr    string
	MessagesDir string
}

// Load reads the chat bot configuration. An optional .env file is applied first.
func Load() (*AppConfig, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if cfg.IrisBaseURL == "" {
		return nil, errors.New("IRIS_BASE_URL is required")
	}
	if cfg.IrisWSURL == "" {
		return nil, errors.New("IRIS_WS_URL is required")
	}
	if cfg.BotPrefix == "" {
		return nil, errors.New("BOT_PREFIX is required")
	}
	return cfg, nil
}

// LoadAPI is Load without the Iris requirements, for the HTTP API server.
func LoadAPI() (*AppConfig, error) {
	return load()
}

func load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &AppConfig{
		IrisEgress:        "http",
		ArchiveBaseURL:    "https://api.chess.com/pub",
		ArchiveCacheTTL:   6 * time.Hour,
		FetchMaxAttempts:  10,
		MinPlies:          8,
		GuessSessionTTL:   2 * time.Hour,
		GuessHistoryLimit: 10,
		GoodGuessScore:    70,
		HTTPAddr:          ":8080",
	}

	cfg.IrisBaseURL = env("IRIS_BASE_URL")
	cfg.IrisWSURL = env("IRIS_WS_URL")
	cfg.BotPrefix = env("BOT_PREFIX")
	if v := strings.ToLower(env("IRIS_EGRESS")); v != "" {
		switch v {
		case "http", "ws", "auto":
			cfg.IrisEgress = v
		default:
			return nil, fmt.Errorf("IRIS_EGRESS must be http, ws or auto: %q", v)
		}
	}

	cfg.XUserID = env("X_USER_ID")
	cfg.XUserEmail = env("X_USER_EMAIL")
	cfg.XSessionID = env("X_SESSION_ID")

	cfg.RedisURL = env("REDIS_URL")
	cfg.DatabaseURL = env("DATABASE_URL")
	cfg.AllowedRooms = envList("ALLOWED_ROOMS")

	if v := env("ARCHIVE_BASE_URL"); v != "" {
		cfg.ArchiveBaseURL = strings.TrimRight(v, "/")
	}
	cfg.TrackedPlayers = envList("TRACKED_PLAYERS")
	positiveInt("FETCH_MAX_ATTEMPTS", &cfg.FetchMaxAttempts)
	positiveInt("MIN_PLIES", &cfg.MinPlies)
	positiveInt("GUESS_HISTORY_LIMIT", &cfg.GuessHistoryLimit)
	positiveInt("GOOD_GUESS_SCORE", &cfg.GoodGuessScore)
	if cfg.GoodGuessScore > 100 {
		return nil, fmt.Errorf("GOOD_GUESS_SCORE must be at most 100: %d", cfg.GoodGuessScore)
	}

	if err := positiveDuration("ARCHIVE_CACHE_TTL", &cfg.ArchiveCacheTTL); err != nil {
		return nil, err
	}
	if err := positiveDuration("GUESS_SESSION_TTL", &cfg.GuessSessionTTL); err != nil {
		return nil, err
	}

	if v := env("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.MessagesDir = env("MESSAGES_DIR")
	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envList(key string) []string {
	v := env(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// 잘못된 값은 무시하고 기본값을 유지한다.
func positiveInt(key string, dst *int) {
	if v := env(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

// 정수만 오면 초 단위로 본다.
func positiveDuration(key string, dst *time.Duration) error {
	v := env(key)
	if v == "" {
		return nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n > 0 {
			*dst = time.Duration(n) * time.Second
		}
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d > 0 {
		*dst = d
	}
	return nil
}
