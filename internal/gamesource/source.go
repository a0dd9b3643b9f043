package gamesource

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/park285/EloGuess-KakaoTalk-bot/internal/archive"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/domain"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/pgn"
	"go.uber.org/zap"
)

var (
	ErrExhaustedAttempts = errors.New("no suitable game found after multiple attempts")
	ErrNoTrackedPlayers  = errors.New("tracked player pool is empty")
	ErrNoArchives        = errors.New("player has no game archives")
)

const (
	DefaultMaxAttempts = 10
	DefaultMinPlies    = 8

	rulesStandard   = "chess"
	timeClassRapid  = "rapid"
	abandonedMarker = "Abandoned"
)

// DefaultTrackedPlayers is the curated pool used when none is configured.
var DefaultTrackedPlayers = []string{
	"beaststats",
	"dq_555",
	"adg5",
	"anishnaik12",
	"fearless_king2",
	"petearrrpan",
	"ibutterurbread",
	"samayraina",
	"sagar_raina",
	"ryo",
	"traviscottofficial",
	"alyaska",
	"ramswaroop02",
	"krantikari2",
	"prafullsh",
}

type Config struct {
	TrackedPlayers []string
	MaxAttempts    int
	MinPlies       int
	// Rand is used for every random pick. nil seeds from the clock.
	Rand *rand.Rand
}

type Source struct {
	archive archive.Archive
	cfg     Config
	logger  *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func New(a archive.Archive, cfg Config, logger *zap.Logger) (*Source, error) {
	if a == nil {
		return nil, errors.New("archive client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pool := make([]string, 0, len(cfg.TrackedPlayers))
	for _, name := range cfg.TrackedPlayers {
		if n := strings.TrimSpace(name); n != "" {
			pool = append(pool, n)
		}
	}
	if len(pool) == 0 {
		return nil, ErrNoTrackedPlayers
	}
	cfg.TrackedPlayers = pool
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.MinPlies <= 0 {
		cfg.MinPlies = DefaultMinPlies
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Source{archive: a, cfg: cfg, logger: logger, rng: rng}, nil
}

func (s *Source) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// FetchRandomGame picks a tracked player, then samples that player's monthly
// archives until a rapid standard game of at least MinPlies plies turns up.
func (s *Source) FetchRandomGame(ctx context.Context) (*domain.Game, error) {
	tracked := s.cfg.TrackedPlayers[s.intn(len(s.cfg.TrackedPlayers))]

	archives, err := s.archive.ListArchives(ctx, tracked)
	if err != nil {
		return nil, fmt.Errorf("list archives for %s: %w", tracked, err)
	}
	if len(archives) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoArchives, tracked)
	}

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bucket := archives[s.intn(len(archives))]
		games, err := s.archive.FetchGames(ctx, bucket)
		if err != nil {
			s.logger.Warn("archive_batch_failed",
				zap.String("player", tracked),
				zap.String("archive", bucket),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}

		candidates := filterCandidates(games)
		if len(candidates) == 0 {
			s.logger.Debug("archive_batch_empty", zap.String("archive", bucket), zap.Int("attempt", attempt))
			continue
		}

		rec := candidates[s.intn(len(candidates))]
		parsed, err := pgn.Parse(rec.PGN)
		if err != nil {
			s.logger.Debug("candidate_unparsable", zap.String("url", rec.URL), zap.Error(err))
			continue
		}
		if parsed.Plies() < s.cfg.MinPlies {
			s.logger.Debug("candidate_too_short", zap.String("url", rec.URL), zap.Int("plies", parsed.Plies()))
			continue
		}

		game := buildGame(parsed, rec, tracked)
		s.logger.Info("random_game_selected",
			zap.String("player", tracked),
			zap.String("url", game.Link),
			zap.Int("plies", game.TotalPlies()),
			zap.Int("attempt", attempt),
		)
		return game, nil
	}
	return nil, ErrExhaustedAttempts
}

func filterCandidates(games []archive.GameRecord) []archive.GameRecord {
	out := make([]archive.GameRecord, 0, len(games))
	for _, g := range games {
		if g.Rules != rulesStandard || g.TimeClass != timeClassRapid {
			continue
		}
		if strings.Contains(g.PGN, abandonedMarker) {
			continue
		}
		out = append(out, g)
	}
	return out
}

func buildGame(parsed *pgn.Parsed, rec archive.GameRecord, tracked string) *domain.Game {
	game := parsed.Game()
	game.White = domain.Player{
		Username:     firstNonEmpty(rec.White.Username, game.White.Username),
		Rating:       firstPositive(rec.White.Rating, game.White.Rating),
		IsPoolMember: strings.EqualFold(rec.White.Username, tracked),
	}
	game.Black = domain.Player{
		Username:     firstNonEmpty(rec.Black.Username, game.Black.Username),
		Rating:       firstPositive(rec.Black.Rating, game.Black.Rating),
		IsPoolMember: strings.EqualFold(rec.Black.Username, tracked),
	}
	if strings.TrimSpace(rec.URL) != "" {
		game.Link = rec.URL
	}
	if game.Result == "" {
		game.Result = rec.Result
	}
	game.AverageElo = pgn.AverageElo(game.White.Rating, game.Black.Rating)

	game.TrackedSide = domain.SideWhite
	game.RepresentativeElo = game.White.Rating
	if game.Black.IsPoolMember && !game.White.IsPoolMember {
		game.TrackedSide = domain.SideBlack
		game.RepresentativeElo = game.Black.Rating
	}
	return game
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
