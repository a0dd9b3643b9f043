package leaderboard

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/park285/EloGuess-KakaoTalk-bot/internal/domain"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Store keeps one entry per player, ranked by total score.
type Store interface {
	Submit(ctx context.Context, entry domain.LeaderboardEntry) error
	Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Sort orders by total score, then average, then best streak, then name.
func Sort(entries []domain.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.AverageScore != b.AverageScore {
			return a.AverageScore > b.AverageScore
		}
		if a.BestStreak != b.BestStreak {
			return a.BestStreak > b.BestStreak
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}

type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]domain.LeaderboardEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]domain.LeaderboardEntry)}
}

func (m *MemoryStore) Submit(ctx context.Context, entry domain.LeaderboardEntry) error {
	key := strings.TrimSpace(entry.PlayerKey)
	if key == "" {
		return ErrMissingPlayerKey
	}
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	limit = NormalizeLimit(limit)
	m.mu.RLock()
	out := make([]domain.LeaderboardEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	m.mu.RUnlock()
	Sort(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
