package guess

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/park285/EloGuess-KakaoTalk-bot/internal/domain"
)

// memrepo is the in-memory repository used when no database is configured.
type memrepo struct {
	mu sync.RWMutex

	roundsByID   map[string]*domain.RoundRecord
	roundsByUser map[string][]*domain.RoundRecord // playerKey -> rounds, latest last
	profiles     map[string]*domain.Profile
}

func NewMemoryRepository() Repository {
	return &memrepo{
		roundsByID:   make(map[string]*domain.RoundRecord),
		roundsByUser: make(map[string][]*domain.RoundRecord),
		profiles:     make(map[string]*domain.Profile),
	}
}

func (m *memrepo) InsertRound(ctx context.Context, round *domain.RoundRecord) error {
	if round == nil {
		return ErrDuplicateRound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.roundsByID[round.ID]; exists {
		return ErrDuplicateRound
	}
	cp := *round
	m.roundsByID[cp.ID] = &cp
	m.roundsByUser[cp.PlayerKey] = append(m.roundsByUser[cp.PlayerKey], &cp)
	return nil
}

func (m *memrepo) GetRecentRounds(ctx context.Context, playerKey string, limit int) ([]*domain.RoundRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.roundsByUser[playerKey]
	items := make([]*domain.RoundRecord, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		cp := *list[i]
		items = append(items, &cp)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PlayedAt.After(items[j].PlayedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memrepo) GetProfile(ctx context.Context, playerKey string) (*domain.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.profiles[strings.TrimSpace(playerKey)]; ok && p != nil {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memrepo) UpsertProfile(ctx context.Context, profile *domain.Profile) error {
	if profile == nil {
		return nil
	}
	cp := *profile
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.TrimSpace(cp.PlayerKey)
	if prev, ok := m.profiles[key]; ok && !prev.CreatedAt.IsZero() {
		cp.CreatedAt = prev.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	m.profiles[key] = &cp
	return nil
}

func (m *memrepo) TopProfiles(ctx context.Context, limit int) ([]*domain.Profile, error) {
	m.mu.RLock()
	items := make([]*domain.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		if p.Streak.GamesPlayed == 0 {
			continue
		}
		cp := *p
		items = append(items, &cp)
	}
	m.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i].Streak, items[j].Streak
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.GamesPlayed != b.GamesPlayed {
			return a.GamesPlayed < b.GamesPlayed
		}
		return items[i].PlayerKey < items[j].PlayerKey
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
