package guess

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/EloGuess-KakaoTalk-bot/internal/domain"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/leaderboard"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/pgn"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/scoring"
	"github.com/park285/EloGuess-KakaoTalk-bot/internal/session"
	"github.com/park285/EloGuess-KakaoTalk-bot/pkg/guessdto"
)

var (
	ErrSessionNotFound = errors.New("guess session not found")
	ErrRoomNotAllowed  = errors.New("guess room not allowed")
)

const (
	defaultSessionTTL     = 2 * time.Hour
	maxHistoryLimit       = 50
	playerLabelRuneLimit  = 24
	defaultPlayerLabel    = "Player"
	unknownRoomIdentifier = "unknown-room"
)

type Config struct {
	SessionTTL   time.Duration
	HistoryLimit int
	AllowedRooms []string
	MinPlies     int
	GoodScore    int
}

type identity struct {
	SessionID string
	RoomHash  string
	PlayerKey string
}

type entry struct {
	sess     *session.Session
	identity identity
	name     string
	lastSeen time.Time

	seedMu sync.Mutex
	seeded bool
}

// Service keeps one game session per chat participant (or API client) and
// records every reveal in the repository and the leaderboard.
type Service struct {
	fetcher      session.Fetcher
	repo         Repository
	board        leaderboard.Store
	cfg          Config
	allowedRooms map[string]struct{}
	logger       *zap.Logger
	now          func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewService(fetcher session.Fetcher, repo Repository, board leaderboard.Store, cfg Config, logger *zap.Logger) (*Service, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("game fetcher is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("guess repository is required")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > maxHistoryLimit {
		cfg.HistoryLimit = 10
	}
	if cfg.GoodScore <= 0 {
		cfg.GoodScore = scoring.DefaultGoodScore
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	allowedRooms := make(map[string]struct{})
	for _, room := range cfg.AllowedRooms {
		normalized := strings.ToLower(strings.TrimSpace(room))
		if normalized == "" {
			continue
		}
		allowedRooms[normalized] = struct{}{}
	}

	return &Service{
		fetcher:      fetcherAdapter{next: fetcher},
		repo:         repo,
		board:        board,
		cfg:          cfg,
		allowedRooms: allowedRooms,
		logger:       logger,
		now:          time.Now,
		sessions:     make(map[string]*entry),
	}, nil
}

// Start loads a fresh random game. From Revealed it acts as "next game".
func (s *Service) Start(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.SessionView, error) {
	e, err := s.acquire(ctx, meta)
	if err != nil {
		return nil, err
	}
	if err := e.sess.StartGuessing(ctx, s.fetcher); err != nil {
		s.logger.Info("guess_start_failed", zap.String("session_id", e.identity.SessionID), zap.Error(err))
		return s.view(e), toDomainError(err)
	}
	game := e.sess.Game()
	s.logger.Info("guess_game_loaded",
		zap.String("session_id", e.identity.SessionID),
		zap.String("link", game.Link),
		zap.Int("plies", game.TotalPlies()),
	)
	return s.view(e), nil
}

func (s *Service) Import(ctx context.Context, meta guessdto.RequestMeta, raw string) (*guessdto.SessionView, error) {
	e, err := s.acquire(ctx, meta)
	if err != nil {
		return nil, err
	}
	if err := e.sess.ImportGame(raw); err != nil {
		return s.view(e), toDomainError(err)
	}
	return s.view(e), nil
}

func (s *Service) Status(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.SessionView, error) {
	e, err := s.acquire(ctx, meta)
	if err != nil {
		return nil, err
	}
	return s.view(e), nil
}

func (s *Service) Next(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.SessionView, error) {
	return s.navigate(ctx, meta, func(sess *session.Session) { sess.MoveNext() })
}

func (s *Service) Prev(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.SessionView, error) {
	return s.navigate(ctx, meta, func(sess *session.Session) { sess.MovePrevious() })
}

func (s *Service) Select(ctx context.Context, meta guessdto.RequestMeta, ply int) (*guessdto.SessionView, error) {
	return s.navigate(ctx, meta, func(sess *session.Session) { sess.SelectMove(ply) })
}

func (s *Service) navigate(ctx context.Context, meta guessdto.RequestMeta, move func(*session.Session)) (*guessdto.SessionView, error) {
	e, err := s.acquire(ctx, meta)
	if err != nil {
		return nil, err
	}
	if e.sess.Game() == nil {
		return s.view(e), toDomainError(session.ErrNoGame)
	}
	move(e.sess)
	return s.view(e), nil
}

func (s *Service) Flip(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.SessionView, error) {
	e, err := s.acquire(ctx, meta)
	if err != nil {
		return nil, err
	}
	if _, err := e.sess.FlipBoard(); err != nil {
		return s.view(e), toDomainError(err)
	}
	return s.view(e), nil
}

func (s *Service) Dismiss(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.SessionView, error) {
	e, err := s.acquire(ctx, meta)
	if err != nil {
		return nil, err
	}
	e.sess.DismissError()
	return s.view(e), nil
}

func (s *Service) Guess(ctx context.Context, meta guessdto.RequestMeta, elo int) (*guessdto.SessionView, error) {
	e, err := s.acquire(ctx, meta)
	if err != nil {
		return nil, err
	}
	if _, err := e.sess.SetGuess(elo); err != nil {
		return s.view(e), toDomainError(err)
	}
	return s.view(e), nil
}

// Submit reveals the current game and records the round. A failed write is
// logged; the reveal itself stands.
func (s *Service) Submit(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.SessionView, error) {
	e, err := s.acquire(ctx, meta)
	if err != nil {
		return nil, err
	}
	reveal, err := e.sess.SubmitGuess()
	if err != nil {
		return s.view(e), toDomainError(err)
	}
	if err := s.persistRound(ctx, e, reveal); err != nil {
		s.logger.Warn("guess_round_persist_failed",
			zap.String("session_id", e.identity.SessionID),
			zap.Error(err),
		)
	}
	return s.view(e), nil
}

// Export returns the loaded game as PGN once it has been revealed.
func (s *Service) Export(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.ExportView, error) {
	e, err := s.acquire(ctx, meta)
	if err != nil {
		return nil, err
	}
	game := e.sess.Game()
	if game == nil {
		return nil, toDomainError(session.ErrNoGame)
	}
	if e.sess.Snapshot().Stage != domain.StageRevealed {
		return nil, toDomainError(session.ErrInvalidStage)
	}
	text, err := pgn.Export(game)
	if err != nil {
		return nil, toDomainError(err)
	}
	return &guessdto.ExportView{FileName: pgn.ExportFileName(game), PGN: text}, nil
}

func (s *Service) Profile(ctx context.Context, meta guessdto.RequestMeta) (*guessdto.ProfileView, error) {
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, toDomainError(err)
	}
	id := deriveIdentity(meta)
	profile, err := s.repo.GetProfile(ctx, id.PlayerKey)
	if err != nil {
		return nil, toDomainError(err)
	}
	if profile == nil {
		profile = &domain.Profile{PlayerKey: id.PlayerKey, DisplayName: normalizePlayerLabel(meta.Label())}
	}
	return profileView(profile), nil
}

func (s *Service) History(ctx context.Context, meta guessdto.RequestMeta, limit int) ([]guessdto.RoundView, error) {
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, toDomainError(err)
	}
	if limit <= 0 || limit > maxHistoryLimit {
		limit = s.cfg.HistoryLimit
	}
	rounds, err := s.repo.GetRecentRounds(ctx, deriveIdentity(meta).PlayerKey, limit)
	if err != nil {
		return nil, toDomainError(err)
	}
	out := make([]guessdto.RoundView, 0, len(rounds))
	for _, r := range rounds {
		out = append(out, roundView(r))
	}
	return out, nil
}

// Leaderboard reads the ranking store and falls back to the repository.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]guessdto.LeaderboardEntry, error) {
	limit = leaderboard.NormalizeLimit(limit)
	var entries []domain.LeaderboardEntry
	if s.board != nil {
		top, err := s.board.Top(ctx, limit)
		if err == nil {
			entries = top
		} else {
			s.logger.Warn("leaderboard_read_failed", zap.Error(err))
		}
	}
	if entries == nil {
		profiles, err := s.repo.TopProfiles(ctx, limit)
		if err != nil {
			return nil, toDomainError(err)
		}
		entries = make([]domain.LeaderboardEntry, 0, len(profiles))
		for _, p := range profiles {
			entries = append(entries, p.LeaderboardEntry())
		}
		leaderboard.Sort(entries)
	}
	out := make([]guessdto.LeaderboardEntry, 0, len(entries))
	for i, e := range entries {
		out = append(out, leaderboardView(i+1, e))
	}
	return out, nil
}

// Close drops the session. The next command starts from Initial.
func (s *Service) Close(meta guessdto.RequestMeta) bool {
	id := deriveIdentity(meta)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id.SessionID]; !ok {
		return false
	}
	delete(s.sessions, id.SessionID)
	return true
}

// EvictIdle removes sessions idle for longer than the session TTL.
func (s *Service) EvictIdle() int {
	cutoff := s.now().Add(-s.cfg.SessionTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Debug("guess_sessions_evicted", zap.Int("count", evicted), zap.Int("remaining", len(s.sessions)))
	}
	return evicted
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.EvictIdle()
		}
	}
}

func (s *Service) acquire(ctx context.Context, meta guessdto.RequestMeta) (*entry, error) {
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, toDomainError(err)
	}
	id := deriveIdentity(meta)
	if id.SessionID == "" {
		return nil, toDomainError(ErrSessionNotFound)
	}

	s.mu.Lock()
	e, ok := s.sessions[id.SessionID]
	if !ok {
		e = &entry{
			sess:     session.New(session.Options{MinPlies: s.cfg.MinPlies, GoodScore: s.cfg.GoodScore}),
			identity: id,
		}
		s.sessions[id.SessionID] = e
	}
	e.lastSeen = s.now()
	if label := normalizePlayerLabel(meta.Label()); label != defaultPlayerLabel || e.name == "" {
		e.name = label
	}
	s.mu.Unlock()

	s.seedStreak(ctx, e)
	return e, nil
}

// seedStreak loads the stored streak once. A failed load leaves the entry
// unseeded so the next request retries.
func (s *Service) seedStreak(ctx context.Context, e *entry) {
	e.seedMu.Lock()
	defer e.seedMu.Unlock()
	if e.seeded {
		return
	}
	profile, err := s.repo.GetProfile(ctx, e.identity.PlayerKey)
	if err != nil {
		s.logger.Warn("guess_profile_load_failed", zap.String("session_id", e.identity.SessionID), zap.Error(err))
		return
	}
	if profile != nil {
		e.sess.SetStreak(profile.Streak)
	}
	e.seeded = true
}

func (s *Service) persistRound(ctx context.Context, e *entry, reveal *session.Reveal) error {
	now := s.now()
	game := e.sess.Game()
	round := &domain.RoundRecord{
		ID:          uuid.NewString(),
		PlayerKey:   e.identity.PlayerKey,
		Room:        e.identity.RoomHash,
		Guess:       reveal.Guess,
		Actual:      reveal.Actual,
		Diff:        reveal.Result.Diff,
		BaseScore:   reveal.Result.Score,
		StreakBonus: reveal.StreakBonus,
		TotalScore:  reveal.TotalScore,
		Accuracy:    reveal.Accuracy,
		Grade:       reveal.Result.Grade,
		PlayedAt:    now,
	}
	if game != nil {
		round.Link = game.Link
	}
	if err := s.repo.InsertRound(ctx, round); err != nil {
		return err
	}

	profile, err := s.repo.GetProfile(ctx, e.identity.PlayerKey)
	if err != nil {
		return err
	}
	if profile == nil {
		profile = &domain.Profile{PlayerKey: e.identity.PlayerKey, CreatedAt: now}
	}
	s.mu.Lock()
	profile.DisplayName = e.name
	s.mu.Unlock()
	// 저장된 카운터에 이번 라운드만 더한다.
	profile.Streak = profile.Streak.Record(reveal.TotalScore, reveal.Good)
	profile.BestGrade = scoring.BetterGrade(profile.BestGrade, reveal.Result.Grade)
	profile.LastPlayedAt = now
	if err := s.repo.UpsertProfile(ctx, profile); err != nil {
		return err
	}
	e.seedMu.Lock()
	e.sess.SetStreak(profile.Streak)
	e.seeded = true
	e.seedMu.Unlock()
	if s.board != nil {
		if err := s.board.Submit(ctx, profile.LeaderboardEntry()); err != nil {
			return fmt.Errorf("leaderboard submit: %w", err)
		}
	}
	return nil
}

func (s *Service) ensureRoomAllowed(meta guessdto.RequestMeta) error {
	if len(s.allowedRooms) == 0 {
		return nil
	}
	room := strings.ToLower(strings.TrimSpace(meta.Room))
	if room == "" {
		room = unknownRoomIdentifier
	}
	if _, ok := s.allowedRooms[room]; ok {
		return nil
	}
	s.logger.Info("guess room access denied",
		zap.String("room", room),
		zap.String("sender", strings.TrimSpace(meta.Sender)),
	)
	return ErrRoomNotAllowed
}

func deriveIdentity(meta guessdto.RequestMeta) identity {
	sessionID := strings.ToLower(strings.TrimSpace(meta.SessionID))
	room := strings.ToLower(strings.TrimSpace(meta.Room))
	sender := strings.ToLower(strings.TrimSpace(meta.Sender))
	return identity{
		SessionID: sessionID,
		RoomHash:  hashString(room),
		PlayerKey: hashString(room + ":" + sender),
	}
}

func hashString(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func normalizePlayerLabel(raw string) string {
	label := strings.TrimSpace(raw)
	if label == "" {
		return defaultPlayerLabel
	}
	runes := []rune(label)
	if len(runes) > playerLabelRuneLimit {
		label = string(runes[:playerLabelRuneLimit])
	}
	return label
}
