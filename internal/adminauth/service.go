// Package adminauth signs admins in and out of the back-office. Accounts are
// provisioned by operators directly in the admins table; there is no signup.
package adminauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"peraturan/api/internal/auth"
	"peraturan/api/internal/session"
	"peraturan/api/internal/store"
)

// ErrBadCredentials covers both unknown emails and wrong passwords so the
// response does not reveal which one failed.
var ErrBadCredentials = errors.New("invalid email or password")

// AdminStore defines the storage interface for sign-in
type AdminStore interface {
	GetAdminByEmail(ctx context.Context, email string) (store.Admin, error)
}

// Service provides email/password sign-in backed by Redis sessions
type Service struct {
	store       AdminStore
	sessions    *session.RedisStore
	tokenSecret []byte
	sessionTTL  time.Duration
}

func NewService(adminStore AdminStore, sessions *session.RedisStore, tokenSecret string, sessionTTL time.Duration) *Service {
	return &Service{
		store:       adminStore,
		sessions:    sessions,
		tokenSecret: []byte(tokenSecret),
		sessionTTL:  sessionTTL,
	}
}

// SignIn checks the password against the stored bcrypt hash and, on success,
// issues a signed token with a live Redis session behind it.
func (s *Service) SignIn(ctx context.Context, email, password string) (store.Admin, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return store.Admin{}, "", ErrBadCredentials
	}

	admin, err := s.store.GetAdminByEmail(ctx, email)
	if err != nil {
		return store.Admin{}, "", ErrBadCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return store.Admin{}, "", ErrBadCredentials
	}

	jti, err := auth.NewJTI()
	if err != nil {
		return store.Admin{}, "", err
	}

	expiresAt := time.Now().Add(s.sessionTTL)
	token, err := auth.IssueToken(s.tokenSecret, auth.Claims{
		Sub:   admin.ID,
		Email: admin.Email,
		Role:  "admin",
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return store.Admin{}, "", fmt.Errorf("issue token: %w", err)
	}

	if err := s.sessions.SaveAdminSession(ctx, auth.HashToken(token), admin, expiresAt); err != nil {
		return store.Admin{}, "", fmt.Errorf("save session: %w", err)
	}

	return admin, token, nil
}

// SignOut revokes the session behind a token. Unknown tokens are a no-op.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.RevokeAdminSession(ctx, auth.HashToken(token))
}

// AdminFromToken validates the token signature and expiry, then requires a
// live session. A valid signature alone is not enough once revoked.
func (s *Service) AdminFromToken(ctx context.Context, token string) (store.Admin, error) {
	claims, err := auth.ParseToken(s.tokenSecret, token)
	if err != nil {
		return store.Admin{}, err
	}

	admin, err := s.sessions.LookupAdminSession(ctx, auth.HashToken(token))
	if err != nil {
		return store.Admin{}, err
	}
	if !strings.EqualFold(admin.Email, claims.Email) {
		return store.Admin{}, auth.ErrInvalidToken
	}
	return admin, nil
}
