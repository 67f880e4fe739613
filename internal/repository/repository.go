package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"prepwise/server/internal/model"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, display_name, role, academic_level, target_exams, level, xp, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, user.ID, user.Email, user.PasswordHash, user.DisplayName, user.Role, user.AcademicLevel, user.TargetExams, user.Level, user.XP, user.CreatedAt, user.UpdatedAt)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, userSelect+`WHERE email = $1`, email))
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, userSelect+`WHERE id = $1`, userID))
}

const userSelect = `
	SELECT id, email, password_hash, display_name, role, academic_level, target_exams, level, xp, last_active_at, created_at, updated_at
	FROM users
`

func (s *Store) scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.Role,
		&user.AcademicLevel,
		&user.TargetExams,
		&user.Level,
		&user.XP,
		&user.LastActiveAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (s *Store) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET last_active_at = $1 WHERE id = $2`, at, userID)
	return err
}

func (s *Store) CreateRefreshSession(ctx context.Context, session model.RefreshSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_sessions (id, user_id, token_hash, created_at, expires_at, revoked_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, session.ID, session.UserID, session.TokenHash, session.CreatedAt, session.ExpiresAt, session.RevokedAt, session.UserAgent, session.IPAddress)
	return err
}

func (s *Store) GetRefreshSession(ctx context.Context, tokenHash string) (model.RefreshSession, error) {
	var session model.RefreshSession
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, created_at, expires_at, revoked_at, user_agent, ip_address
		FROM refresh_sessions
		WHERE token_hash = $1
	`, tokenHash)
	err := row.Scan(&session.ID, &session.UserID, &session.TokenHash, &session.CreatedAt, &session.ExpiresAt, &session.RevokedAt, &session.UserAgent, &session.IPAddress)
	return session, err
}

// RotateRefreshSession revokes the presented session and inserts its
// replacement in one transaction. Returns pgx.ErrNoRows if the old session
// was already revoked, which makes rotation single-use under concurrency.
func (s *Store) RotateRefreshSession(ctx context.Context, oldID string, revokedAt time.Time, next model.RefreshSession) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE refresh_sessions SET revoked_at = $1
			WHERE id = $2 AND revoked_at IS NULL
		`, revokedAt, oldID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO refresh_sessions (id, user_id, token_hash, created_at, expires_at, revoked_at, user_agent, ip_address)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, next.ID, next.UserID, next.TokenHash, next.CreatedAt, next.ExpiresAt, next.RevokedAt, next.UserAgent, next.IPAddress)
		return err
	})
}

// RevokeRefreshSession is idempotent: revoking an unknown or already revoked
// token is not an error.
func (s *Store) RevokeRefreshSession(ctx context.Context, userID, tokenHash string, revokedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_sessions SET revoked_at = $1
		WHERE user_id = $2 AND token_hash = $3 AND revoked_at IS NULL
	`, revokedAt, userID, tokenHash)
	return err
}
