package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/EloGuess-KakaoTalk-bot/internal/domain"
)

var ErrMissingPlayerKey = errors.New("leaderboard entry needs a player key")

const (
	rankKey    = "eloguess:leaderboard:rank"
	entriesKey = "eloguess:leaderboard:entries"
)

// RedisStore는 점수를 ZSET에, 표시용 항목은 HASH에 JSON으로 둔다.
type RedisStore struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisStore(rdb *redis.Client, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{rdb: rdb, logger: logger}
}

func (s *RedisStore) Submit(ctx context.Context, entry domain.LeaderboardEntry) error {
	key := strings.TrimSpace(entry.PlayerKey)
	if key == "" {
		return ErrMissingPlayerKey
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal leaderboard entry: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, rankKey, redis.Z{Score: float64(entry.TotalScore), Member: key})
		p.HSet(ctx, entriesKey, key, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("submit leaderboard entry: %w", err)
	}
	return nil
}

func (s *RedisStore) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	limit = NormalizeLimit(limit)
	head, err := s.rdb.ZRevRangeWithScores(ctx, rankKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard rank: %w", err)
	}
	if len(head) == 0 {
		return []domain.LeaderboardEntry{}, nil
	}
	// 경계 점수의 동점자는 모두 읽어 보조 기준으로 다시 정렬한다.
	floor := strconv.FormatFloat(head[len(head)-1].Score, 'f', -1, 64)
	keys, err := s.rdb.ZRevRangeByScore(ctx, rankKey, &redis.ZRangeBy{Min: floor, Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard ties: %w", err)
	}
	raws, err := s.rdb.HMGet(ctx, entriesKey, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard entries: %w", err)
	}
	out := make([]domain.LeaderboardEntry, 0, len(raws))
	for i, raw := range raws {
		str, ok := raw.(string)
		if !ok {
			s.logger.Warn("leaderboard_entry_missing", zap.String("player_key", keys[i]))
			continue
		}
		var e domain.LeaderboardEntry
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			s.logger.Warn("leaderboard_entry_decode_failed", zap.String("player_key", keys[i]), zap.Error(err))
			continue
		}
		out = append(out, e)
	}
	Sort(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
