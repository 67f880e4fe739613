// Package token issues, verifies, and rotates the credential pair: a
// short-lived signed access token and a long-lived single-use refresh token.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"prepwise/server/internal/auth"
	"prepwise/server/internal/crypto"
	"prepwise/server/internal/model"
)

var (
	ErrExpiredCredential   = errors.New("credential expired")
	ErrMalformedCredential = errors.New("credential malformed")
	// ErrRevokedPrincipal means the credential verified but its principal no
	// longer exists.
	ErrRevokedPrincipal = errors.New("principal revoked")
	// ErrUnknownCredential means a refresh token that is not in the
	// principal's stored set: reuse after rotation, or forgery.
	ErrUnknownCredential = errors.New("unknown refresh credential")
)

type UserStore interface {
	GetUserByID(ctx context.Context, userID string) (model.User, error)
	TouchLastActive(ctx context.Context, userID string, at time.Time) error
}

type SessionStore interface {
	CreateRefreshSession(ctx context.Context, session model.RefreshSession) error
	GetRefreshSession(ctx context.Context, tokenHash string) (model.RefreshSession, error)
	RotateRefreshSession(ctx context.Context, oldID string, revokedAt time.Time, next model.RefreshSession) error
	RevokeRefreshSession(ctx context.Context, userID, tokenHash string, revokedAt time.Time) error
}

type Authority struct {
	users      UserStore
	sessions   SessionStore
	secret     string
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthority(users UserStore, sessions SessionStore, secret, issuer string, accessTTL, refreshTTL time.Duration) *Authority {
	return &Authority{
		users:      users,
		sessions:   sessions,
		secret:     secret,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Issue mints a credential pair for the user and stores the refresh session.
// A user may hold several live refresh sessions at once, one per device.
func (a *Authority) Issue(ctx context.Context, user model.User, userAgent, ip string) (Pair, error) {
	accessToken, err := auth.NewAccessToken(a.secret, a.issuer, a.accessTTL, auth.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	})
	if err != nil {
		return Pair{}, err
	}

	refreshToken, err := crypto.NewRefreshToken()
	if err != nil {
		return Pair{}, err
	}

	now := time.Now().UTC()
	session := model.RefreshSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: crypto.HashToken(refreshToken),
		CreatedAt: now,
		ExpiresAt: now.Add(a.refreshTTL),
	}
	if userAgent != "" {
		session.UserAgent = &userAgent
	}
	if ip != "" {
		session.IPAddress = &ip
	}
	if err := a.sessions.CreateRefreshSession(ctx, session); err != nil {
		return Pair{}, err
	}

	_ = a.users.TouchLastActive(ctx, user.ID, now)

	return Pair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// VerifyAccess checks signature and expiry, then resolves the live
// principal. Stateless apart from the principal lookup.
func (a *Authority) VerifyAccess(ctx context.Context, tokenString string) (model.User, error) {
	claims, err := auth.ParseToken(a.secret, tokenString)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return model.User{}, ErrExpiredCredential
		}
		return model.User{}, ErrMalformedCredential
	}

	user, err := a.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrRevokedPrincipal
		}
		return model.User{}, err
	}
	return user, nil
}

// Rotate exchanges a refresh token for a fresh credential pair. The
// presented token must be in the principal's stored set; it is revoked and
// replaced atomically, so a second rotation with the same token fails with
// ErrUnknownCredential.
func (a *Authority) Rotate(ctx context.Context, refreshToken, userAgent, ip string) (Pair, model.User, error) {
	tokenHash := crypto.HashToken(refreshToken)
	session, err := a.sessions.GetRefreshSession(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Pair{}, model.User{}, ErrUnknownCredential
		}
		return Pair{}, model.User{}, err
	}

	now := time.Now().UTC()
	if session.RevokedAt != nil {
		return Pair{}, model.User{}, ErrUnknownCredential
	}
	if session.ExpiresAt.Before(now) {
		return Pair{}, model.User{}, ErrExpiredCredential
	}

	user, err := a.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Pair{}, model.User{}, ErrRevokedPrincipal
		}
		return Pair{}, model.User{}, err
	}

	accessToken, err := auth.NewAccessToken(a.secret, a.issuer, a.accessTTL, auth.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	})
	if err != nil {
		return Pair{}, model.User{}, err
	}

	newRefreshToken, err := crypto.NewRefreshToken()
	if err != nil {
		return Pair{}, model.User{}, err
	}
	next := model.RefreshSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: crypto.HashToken(newRefreshToken),
		CreatedAt: now,
		ExpiresAt: now.Add(a.refreshTTL),
	}
	if userAgent != "" {
		next.UserAgent = &userAgent
	}
	if ip != "" {
		next.IPAddress = &ip
	}

	if err := a.sessions.RotateRefreshSession(ctx, session.ID, now, next); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the race against a concurrent rotation of the same token.
			return Pair{}, model.User{}, ErrUnknownCredential
		}
		return Pair{}, model.User{}, err
	}

	_ = a.users.TouchLastActive(ctx, user.ID, now)

	return Pair{AccessToken: accessToken, RefreshToken: newRefreshToken}, user, nil
}

// Revoke removes one refresh token from the principal's set. Idempotent.
func (a *Authority) Revoke(ctx context.Context, userID, refreshToken string) error {
	return a.sessions.RevokeRefreshSession(ctx, userID, crypto.HashToken(refreshToken), time.Now().UTC())
}
