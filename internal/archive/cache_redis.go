package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultCacheTTL = 6 * time.Hour
	cacheKeyPrefix  = "eloguess:archive:"
)

// CachedArchive keeps archive listings and batches in Redis as JSON payloads.
// Redis failures are logged and fall through to the wrapped Archive.
type CachedArchive struct {
	next   Archive
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedArchive(next Archive, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedArchive {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedArchive{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func listKey(username string) string {
	return cacheKeyPrefix + "list:" + strings.ToLower(strings.TrimSpace(username))
}

func batchKey(archiveURL string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(archiveURL)))
	return cacheKeyPrefix + "games:" + hex.EncodeToString(sum[:12])
}

func (c *CachedArchive) ListArchives(ctx context.Context, username string) ([]string, error) {
	var cached []string
	if c.load(ctx, listKey(username), &cached) {
		return cached, nil
	}
	archives, err := c.next.ListArchives(ctx, username)
	if err != nil {
		return nil, err
	}
	c.store(ctx, listKey(username), archives)
	return archives, nil
}

func (c *CachedArchive) FetchGames(ctx context.Context, archiveURL string) ([]GameRecord, error) {
	var cached []GameRecord
	if c.load(ctx, batchKey(archiveURL), &cached) {
		return cached, nil
	}
	games, err := c.next.FetchGames(ctx, archiveURL)
	if err != nil {
		return nil, err
	}
	c.store(ctx, batchKey(archiveURL), games)
	return games, nil
}

func (c *CachedArchive) load(ctx context.Context, key string, out any) bool {
	if c.rdb == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.logger.Warn("archive_cache_get_failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Warn("archive_cache_decode_failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *CachedArchive) store(ctx context.Context, key string, v any) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("archive_cache_set_failed", zap.String("key", key), zap.Error(err))
	}
}
