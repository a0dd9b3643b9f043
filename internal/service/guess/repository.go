package guess

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/park285/EloGuess-KakaoTalk-bot/internal/domain"
)

var ErrDuplicateRound = errors.New("guess round already exists")

type Repository interface {
	InsertRound(ctx context.Context, round *domain.RoundRecord) error
	GetRecentRounds(ctx context.Context, playerKey string, limit int) ([]*domain.RoundRecord, error)
	GetProfile(ctx context.Context, playerKey string) (*domain.Profile, error)
	UpsertProfile(ctx context.Context, profile *domain.Profile) error
	TopProfiles(ctx context.Context, limit int) ([]*domain.Profile, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS guess_rounds (
	id            UUID PRIMARY KEY,
	player_key    TEXT NOT NULL,
	room_hash     TEXT NOT NULL,
	guess         INTEGER NOT NULL,
	actual        INTEGER NOT NULL,
	diff          INTEGER NOT NULL,
	base_score    INTEGER NOT NULL,
	streak_bonus  INTEGER NOT NULL,
	total_score   INTEGER NOT NULL,
	accuracy      INTEGER NOT NULL,
	grade         TEXT NOT NULL,
	link          TEXT NOT NULL DEFAULT '',
	played_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS guess_rounds_player_idx ON guess_rounds (player_key, played_at DESC);
CREATE TABLE IF NOT EXISTS guess_profiles (
	player_key      TEXT PRIMARY KEY,
	display_name    TEXT NOT NULL DEFAULT '',
	current_streak  INTEGER NOT NULL DEFAULT 0,
	best_streak     INTEGER NOT NULL DEFAULT 0,
	games_played    INTEGER NOT NULL DEFAULT 0,
	total_score     INTEGER NOT NULL DEFAULT 0,
	best_grade      TEXT NOT NULL DEFAULT '',
	last_played_at  TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);`

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// EnsureSchema creates the round and profile tables when they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure guess schema: %w", err)
	}
	return nil
}

func (r *repository) InsertRound(ctx context.Context, round *domain.RoundRecord) error {
	if round == nil {
		return fmt.Errorf("nil guess round payload")
	}
	const query = `
		INSERT INTO guess_rounds (
			id,
			player_key,
			room_hash,
			guess,
			actual,
			diff,
			base_score,
			streak_bonus,
			total_score,
			accuracy,
			grade,
			link,
			played_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`

	res, err := r.db.ExecContext(
		ctx,
		query,
		round.ID,
		round.PlayerKey,
		round.Room,
		round.Guess,
		round.Actual,
		round.Diff,
		round.BaseScore,
		round.StreakBonus,
		round.TotalScore,
		round.Accuracy,
		round.Grade,
		round.Link,
		round.PlayedAt,
	)
	if err != nil {
		return fmt.Errorf("insert guess round: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicateRound
	}
	return nil
}

func (r *repository) GetRecentRounds(ctx context.Context, playerKey string, limit int) ([]*domain.RoundRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT
			id,
			player_key,
			room_hash,
			guess,
			actual,
			diff,
			base_score,
			streak_bonus,
			total_score,
			accuracy,
			grade,
			link,
			played_at
		FROM guess_rounds
		WHERE player_key = $1
		ORDER BY played_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, playerKey, limit)
	if err != nil {
		return nil, fmt.Errorf("select guess rounds: %w", err)
	}
	defer rows.Close()

	rounds := make([]*domain.RoundRecord, 0, limit)
	for rows.Next() {
		var round domain.RoundRecord
		if err := rows.Scan(
			&round.ID,
			&round.PlayerKey,
			&round.Room,
			&round.Guess,
			&round.Actual,
			&round.Diff,
			&round.BaseScore,
			&round.StreakBonus,
			&round.TotalScore,
			&round.Accuracy,
			&round.Grade,
			&round.Link,
			&round.PlayedAt,
		); err != nil {
			return nil, fmt.Errorf("scan guess round: %w", err)
		}
		rounds = append(rounds, &round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guess rounds: %w", err)
	}
	return rounds, nil
}

const profileColumns = `
			player_key,
			display_name,
			current_streak,
			best_streak,
			games_played,
			total_score,
			best_grade,
			last_played_at,
			updated_at,
			created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(
		&p.PlayerKey,
		&p.DisplayName,
		&p.Streak.CurrentStreak,
		&p.Streak.BestStreak,
		&p.Streak.GamesPlayed,
		&p.Streak.TotalScore,
		&p.BestGrade,
		&p.LastPlayedAt,
		&p.UpdatedAt,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) GetProfile(ctx context.Context, playerKey string) (*domain.Profile, error) {
	query := `SELECT` + profileColumns + `
		FROM guess_profiles
		WHERE player_key = $1
		LIMIT 1`

	profile, err := scanProfile(r.db.QueryRowContext(ctx, query, playerKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select guess profile: %w", err)
	}
	return profile, nil
}

func (r *repository) TopProfiles(ctx context.Context, limit int) ([]*domain.Profile, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT` + profileColumns + `
		FROM guess_profiles
		WHERE games_played > 0
		ORDER BY total_score DESC, games_played ASC, best_streak DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select top guess profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]*domain.Profile, 0, limit)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan guess profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guess profiles: %w", err)
	}
	return profiles, nil
}

func (r *repository) UpsertProfile(ctx context.Context, profile *domain.Profile) error {
	if profile == nil {
		return fmt.Errorf("nil guess profile payload")
	}
	const query = `
		INSERT INTO guess_profiles (
			player_key,
			display_name,
			current_streak,
			best_streak,
			games_played,
			total_score,
			best_grade,
			last_played_at,
			updated_at,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (player_key)
		DO UPDATE SET
			display_name = EXCLUDED.display_name,
			current_streak = EXCLUDED.current_streak,
			best_streak = EXCLUDED.best_streak,
			games_played = EXCLUDED.games_played,
			total_score = EXCLUDED.total_score,
			best_grade = EXCLUDED.best_grade,
			last_played_at = EXCLUDED.last_played_at,
			updated_at = NOW()`

	_, err := r.db.ExecContext(
		ctx,
		query,
		profile.PlayerKey,
		profile.DisplayName,
		profile.Streak.CurrentStreak,
		profile.Streak.BestStreak,
		profile.Streak.GamesPlayed,
		profile.Streak.TotalScore,
		profile.BestGrade,
		profile.LastPlayedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert guess profile: %w", err)
	}
	return nil
}
