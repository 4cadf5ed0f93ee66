package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/campus-hunt/internal/config"
	"github.com/campus-hunt/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres error code for unique constraint violations
const uniqueViolation = "23505"

// Repository provides PostgreSQL-based data access for the hunt
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			first_name VARCHAR(30) NOT NULL,
			last_name VARCHAR(30) NOT NULL,
			is_active BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS locations (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(100) NOT NULL UNIQUE,
			description TEXT,
			qr_code VARCHAR(100) NOT NULL UNIQUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS challenges (
			id VARCHAR(64) PRIMARY KEY,
			location_id VARCHAR(64) NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
			question TEXT NOT NULL,
			correct_answer VARCHAR(255) NOT NULL,
			points INT NOT NULL DEFAULT 10,
			options JSONB DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS hints (
			id VARCHAR(64) PRIMARY KEY,
			location_id VARCHAR(64) NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
			hint_order INT NOT NULL,
			text TEXT NOT NULL,
			UNIQUE(location_id, hint_order)
		)`,
		`CREATE TABLE IF NOT EXISTS user_progress (
			user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			location_id VARCHAR(64) NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
			current_hint INT NOT NULL DEFAULT 0,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			points_earned INT NOT NULL DEFAULT 0,
			completed_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, location_id)
		)`,
		`CREATE TABLE IF NOT EXISTS qr_access_tokens (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			location_id VARCHAR(64) NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
			token VARCHAR(128) NOT NULL UNIQUE,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS leaderboards (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
			total_points INT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS participation_history (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			location_id VARCHAR(64) NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
			action VARCHAR(50) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_token ON qr_access_tokens(token)`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboards_points ON leaderboards(total_points DESC, id ASC)`,
		`CREATE INDEX IF NOT EXISTS idx_history_user ON participation_history(user_id, created_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// CreateUser inserts a new user
func (r *Repository) CreateUser(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.IsActive, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by id
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetUserByEmail retrieves a user by email
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, is_active, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *Repository) scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

// CreateLocation inserts a new location
func (r *Repository) CreateLocation(ctx context.Context, l *domain.Location) error {
	query := `
		INSERT INTO locations (id, name, description, qr_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (qr_code) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, l.ID, l.Name, l.Description, l.QRCode, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating location: %w", err)
	}
	return nil
}

// GetLocation retrieves a location by id
func (r *Repository) GetLocation(ctx context.Context, id string) (*domain.Location, error) {
	query := `
		SELECT id, name, COALESCE(description, ''), qr_code, created_at, updated_at
		FROM locations
		WHERE id = $1
	`
	return r.scanLocation(r.pool.QueryRow(ctx, query, id))
}

// GetLocationByQR retrieves the location that owns a QR code
func (r *Repository) GetLocationByQR(ctx context.Context, qrCode string) (*domain.Location, error) {
	query := `
		SELECT id, name, COALESCE(description, ''), qr_code, created_at, updated_at
		FROM locations
		WHERE qr_code = $1
	`
	return r.scanLocation(r.pool.QueryRow(ctx, query, qrCode))
}

func (r *Repository) scanLocation(row pgx.Row) (*domain.Location, error) {
	var l domain.Location
	err := row.Scan(&l.ID, &l.Name, &l.Description, &l.QRCode, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLocationNotFound
		}
		return nil, fmt.Errorf("getting location: %w", err)
	}
	return &l, nil
}

// CreateChallenge inserts a new challenge for a location
func (r *Repository) CreateChallenge(ctx context.Context, c *domain.Challenge) error {
	options, err := json.Marshal(c.Options)
	if err != nil {
		return fmt.Errorf("marshaling options: %w", err)
	}
	query := `
		INSERT INTO challenges (id, location_id, question, correct_answer, points, options)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.pool.Exec(ctx, query, c.ID, c.LocationID, c.Question, c.CorrectAnswer, c.Points, options); err != nil {
		return fmt.Errorf("creating challenge: %w", err)
	}
	return nil
}

// GetChallengeByLocation retrieves a location's active challenge
func (r *Repository) GetChallengeByLocation(ctx context.Context, locationID string) (*domain.Challenge, error) {
	query := `
		SELECT id, location_id, question, correct_answer, points, options
		FROM challenges
		WHERE location_id = $1
		LIMIT 1
	`
	var c domain.Challenge
	var options []byte
	err := r.pool.QueryRow(ctx, query, locationID).Scan(
		&c.ID, &c.LocationID, &c.Question, &c.CorrectAnswer, &c.Points, &options,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoChallenge
		}
		return nil, fmt.Errorf("getting challenge: %w", err)
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &c.Options); err != nil {
			return nil, fmt.Errorf("unmarshaling options: %w", err)
		}
	}
	return &c, nil
}

// CreateHint inserts a new hint for a location
func (r *Repository) CreateHint(ctx context.Context, h *domain.Hint) error {
	query := `
		INSERT INTO hints (id, location_id, hint_order, text)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (location_id, hint_order) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, h.ID, h.LocationID, h.Order, h.Text); err != nil {
		return fmt.Errorf("creating hint: %w", err)
	}
	return nil
}

// CreateAccessToken persists a challenge access token and lazily creates the
// (user, location) progress row in the same transaction
func (r *Repository) CreateAccessToken(ctx context.Context, t *domain.AccessToken) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tokenQuery := `
		INSERT INTO qr_access_tokens (id, user_id, location_id, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.Exec(ctx, tokenQuery, t.ID, t.UserID, t.LocationID, t.Token, t.ExpiresAt, t.CreatedAt); err != nil {
		return fmt.Errorf("creating access token: %w", err)
	}

	progressQuery := `
		INSERT INTO user_progress (user_id, location_id, current_hint, completed, points_earned, created_at, updated_at)
		VALUES ($1, $2, 0, FALSE, 0, $3, $3)
		ON CONFLICT (user_id, location_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, progressQuery, t.UserID, t.LocationID, t.CreatedAt); err != nil {
		return fmt.Errorf("creating progress: %w", err)
	}

	return tx.Commit(ctx)
}

// GetAccessToken resolves a token value to its binding
func (r *Repository) GetAccessToken(ctx context.Context, token string) (*domain.AccessToken, error) {
	query := `
		SELECT id, user_id, location_id, token, expires_at, created_at
		FROM qr_access_tokens
		WHERE token = $1
	`
	var t domain.AccessToken
	err := r.pool.QueryRow(ctx, query, token).Scan(
		&t.ID, &t.UserID, &t.LocationID, &t.Token, &t.ExpiresAt, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInvalidToken
		}
		return nil, fmt.Errorf("getting access token: %w", err)
	}
	return &t, nil
}

// GetProgress retrieves a user's progress at a location, or (nil, nil) if the
// user has not scanned it yet
func (r *Repository) GetProgress(ctx context.Context, userID, locationID string) (*domain.Progress, error) {
	query := `
		SELECT user_id, location_id, current_hint, completed, points_earned, completed_at, created_at, updated_at
		FROM user_progress
		WHERE user_id = $1 AND location_id = $2
	`
	var p domain.Progress
	err := r.pool.QueryRow(ctx, query, userID, locationID).Scan(
		&p.UserID, &p.LocationID, &p.CurrentHint, &p.Completed, &p.Points, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting progress: %w", err)
	}
	return &p, nil
}

// CompleteChallenge performs the single point-awarding state transition: it
// marks the progress row completed, adds the points, bumps the leaderboard
// aggregate and appends the participation record, all in one transaction. The
// row lock on user_progress serializes concurrent submissions for the same
// (user, location) pair; the loser of the race sees the completed flag.
func (r *Repository) CompleteChallenge(ctx context.Context, userID, locationID string, points int) (*domain.Progress, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()

	// Progress may not exist if the caller bypassed scanning; create it so
	// the lock below always has a row to take.
	ensureQuery := `
		INSERT INTO user_progress (user_id, location_id, current_hint, completed, points_earned, created_at, updated_at)
		VALUES ($1, $2, 0, FALSE, 0, $3, $3)
		ON CONFLICT (user_id, location_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, ensureQuery, userID, locationID, now); err != nil {
		return nil, fmt.Errorf("ensuring progress: %w", err)
	}

	var p domain.Progress
	lockQuery := `
		SELECT user_id, location_id, current_hint, completed, points_earned, completed_at, created_at, updated_at
		FROM user_progress
		WHERE user_id = $1 AND location_id = $2
		FOR UPDATE
	`
	if err := tx.QueryRow(ctx, lockQuery, userID, locationID).Scan(
		&p.UserID, &p.LocationID, &p.CurrentHint, &p.Completed, &p.Points, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("locking progress: %w", err)
	}
	if p.Completed {
		return nil, domain.ErrLocationCompleted
	}

	updateQuery := `
		UPDATE user_progress
		SET completed = TRUE, completed_at = $3, points_earned = points_earned + $4, updated_at = $3
		WHERE user_id = $1 AND location_id = $2
	`
	if _, err := tx.Exec(ctx, updateQuery, userID, locationID, now, points); err != nil {
		return nil, fmt.Errorf("completing progress: %w", err)
	}

	leaderboardQuery := `
		INSERT INTO leaderboards (user_id, total_points, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET total_points = leaderboards.total_points + $2, updated_at = $3
	`
	if _, err := tx.Exec(ctx, leaderboardQuery, userID, points, now); err != nil {
		return nil, fmt.Errorf("updating leaderboard: %w", err)
	}

	historyQuery := `
		INSERT INTO participation_history (id, user_id, location_id, action, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, historyQuery, uuid.NewString(), userID, locationID, domain.ActionCompletedChallenge, now); err != nil {
		return nil, fmt.Errorf("recording participation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing completion: %w", err)
	}

	p.Completed = true
	p.CompletedAt = &now
	p.Points += points
	p.UpdatedAt = now
	return &p, nil
}

// DispenseHint returns the hint at the user's cursor and advances the cursor,
// atomically. (nil, nil) means the hints are exhausted.
func (r *Repository) DispenseHint(ctx context.Context, userID, locationID string) (*domain.Hint, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var cursor int
	lockQuery := `
		SELECT current_hint
		FROM user_progress
		WHERE user_id = $1 AND location_id = $2
		FOR UPDATE
	`
	if err := tx.QueryRow(ctx, lockQuery, userID, locationID).Scan(&cursor); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoProgress
		}
		return nil, fmt.Errorf("locking progress: %w", err)
	}

	var h domain.Hint
	hintQuery := `
		SELECT id, location_id, hint_order, text
		FROM hints
		WHERE location_id = $1 AND hint_order = $2
	`
	err = tx.QueryRow(ctx, hintQuery, locationID, cursor).Scan(&h.ID, &h.LocationID, &h.Order, &h.Text)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Past the last hint. Nothing to advance.
			return nil, tx.Commit(ctx)
		}
		return nil, fmt.Errorf("getting hint: %w", err)
	}

	advanceQuery := `
		UPDATE user_progress
		SET current_hint = current_hint + 1, updated_at = $3
		WHERE user_id = $1 AND location_id = $2
	`
	if _, err := tx.Exec(ctx, advanceQuery, userID, locationID, time.Now()); err != nil {
		return nil, fmt.Errorf("advancing hint cursor: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing hint dispense: %w", err)
	}
	return &h, nil
}

// CreateLeaderboardEntry creates a zero-point aggregate for a new user
func (r *Repository) CreateLeaderboardEntry(ctx context.Context, userID string) error {
	query := `
		INSERT INTO leaderboards (user_id, total_points, updated_at)
		VALUES ($1, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, userID, time.Now()); err != nil {
		return fmt.Errorf("creating leaderboard entry: %w", err)
	}
	return nil
}

// Ranking returns all leaderboard entries ordered by points descending, ties
// broken by entry creation order, with 1-indexed ranks
func (r *Repository) Ranking(ctx context.Context) ([]domain.RankedPlayer, error) {
	query := `
		SELECT u.first_name, u.last_name, u.email, l.total_points
		FROM leaderboards l
		JOIN users u ON u.id = l.user_id
		ORDER BY l.total_points DESC, l.id ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying ranking: %w", err)
	}
	defer rows.Close()

	var ranking []domain.RankedPlayer
	for rows.Next() {
		var firstName, lastName string
		var p domain.RankedPlayer
		if err := rows.Scan(&firstName, &lastName, &p.Email, &p.Points); err != nil {
			return nil, fmt.Errorf("scanning ranking row: %w", err)
		}
		p.Rank = len(ranking) + 1
		p.Name = firstName + " " + lastName
		ranking = append(ranking, p)
	}
	return ranking, rows.Err()
}

// GetTotalPoints returns a user's leaderboard total, zero if no entry exists
func (r *Repository) GetTotalPoints(ctx context.Context, userID string) (int, error) {
	query := `SELECT total_points FROM leaderboards WHERE user_id = $1`
	var points int
	err := r.pool.QueryRow(ctx, query, userID).Scan(&points)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("getting total points: %w", err)
	}
	return points, nil
}
