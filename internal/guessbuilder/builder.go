package guessbuilder

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/EloGuess-KakaoTalk-bot/internal/archive"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/config"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/gamesource"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/leaderboard"
	svcguess "github.com/park285/EloGuess-KakaoTalk-bot/internal/service/guess"
)

type Deps struct {
	Service *svcguess.Service
	Source  *gamesource.Source
	Archive archive.Archive
	Repo    svcguess.Repository
	Board   leaderboard.Store

	redis *redis.Client
	db    *sql.DB
}

// New wires the guess service. Redis and Postgres are optional: without them
// the archive is uncached, and rounds and rankings live in memory.
func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	deps := &Deps{}

	var src archive.Archive = archive.NewClient(cfg.ArchiveBaseURL, archive.WithLogger(logger))
	var board leaderboard.Store = leaderboard.NewMemoryStore()

	if strings.TrimSpace(cfg.RedisURL) != "" {
		opts, err := parseRedisURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		deps.redis = rdb
		src = archive.NewCachedArchive(src, rdb, cfg.ArchiveCacheTTL, logger)
		board = leaderboard.NewRedisStore(rdb, logger)
		logger.Info("redis_connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	}

	repo := svcguess.NewMemoryRepository()
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := openPostgres(cfg.DatabaseURL)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.db = db
		repo = svcguess.NewRepository(db)
	} else {
		logger.Warn("database_url_empty_using_memory_repository")
	}

	pool := cfg.TrackedPlayers
	if len(pool) == 0 {
		pool = gamesource.DefaultTrackedPlayers
	}
	source, err := gamesource.New(src, gamesource.Config{
		TrackedPlayers: pool,
		MaxAttempts:    cfg.FetchMaxAttempts,
		MinPlies:       cfg.MinPlies,
	}, logger)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("init game source: %w", err)
	}

	service, err := svcguess.NewService(source, repo, board, svcguess.Config{
		SessionTTL:   cfg.GuessSessionTTL,
		HistoryLimit: cfg.GuessHistoryLimit,
		AllowedRooms: append([]string(nil), cfg.AllowedRooms...),
		MinPlies:     cfg.MinPlies,
		GoodScore:    cfg.GoodGuessScore,
	}, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}

	deps.Service = service
	deps.Source = source
	deps.Archive = src
	deps.Repo = repo
	deps.Board = board
	return deps, nil
}

func openPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := svcguess.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

// Close releases the Redis and Postgres handles, if any.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	if d.redis != nil {
		errs = append(errs, d.redis.Close())
		d.redis = nil
	}
	if d.db != nil {
		errs = append(errs, d.db.Close())
		d.db = nil
	}
	return errors.Join(errs...)
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	portStr := u.Port()
	if portStr == "" {
		portStr = "6379"
	}
	if _, err := strconv.Atoi(portStr); err != nil {
		return nil, fmt.Errorf("invalid redis port %q", portStr)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q", p)
		}
		db = n
	}
	opts := &redis.Options{Addr: net.JoinHostPort(host, portStr), DB: db}
	if u.User != nil {
		opts.Username = u.User.Username()
		opts.Password, _ = u.User.Password()
	}
	if u.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}
