package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"peraturan/api/internal/store"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	sessions, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return sessions, s
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	sessions, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer sessions.Close()

	ctx := context.Background()
	if err := sessions.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestSaveAndLookupAdminSession(t *testing.T) {
	sessions, s := setupTestRedis(t)
	defer sessions.Close()
	defer s.Close()

	ctx := context.Background()
	admin := store.Admin{ID: "adm-1", Email: "redaksi@example.go.id", DisplayName: "Redaksi"}

	err := sessions.SaveAdminSession(ctx, "hash-1", admin, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("SaveAdminSession failed: %v", err)
	}

	got, err := sessions.LookupAdminSession(ctx, "hash-1")
	if err != nil {
		t.Fatalf("LookupAdminSession failed: %v", err)
	}
	if got.ID != admin.ID || got.Email != admin.Email || got.DisplayName != admin.DisplayName {
		t.Errorf("got %+v, want %+v", got, admin)
	}
}

func TestLookupMissingSession(t *testing.T) {
	sessions, s := setupTestRedis(t)
	defer sessions.Close()
	defer s.Close()

	_, err := sessions.LookupAdminSession(context.Background(), "no-such-hash")
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	sessions, s := setupTestRedis(t)
	defer sessions.Close()
	defer s.Close()

	ctx := context.Background()
	admin := store.Admin{ID: "adm-1", Email: "redaksi@example.go.id"}
	if err := sessions.SaveAdminSession(ctx, "hash-1", admin, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("SaveAdminSession failed: %v", err)
	}

	s.FastForward(2 * time.Minute)

	_, err := sessions.LookupAdminSession(ctx, "hash-1")
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("err after expiry = %v, want ErrNoSession", err)
	}
}

func TestRevokeAdminSession(t *testing.T) {
	sessions, s := setupTestRedis(t)
	defer sessions.Close()
	defer s.Close()

	ctx := context.Background()
	admin := store.Admin{ID: "adm-1", Email: "redaksi@example.go.id"}
	if err := sessions.SaveAdminSession(ctx, "hash-1", admin, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveAdminSession failed: %v", err)
	}
	if err := sessions.RevokeAdminSession(ctx, "hash-1"); err != nil {
		t.Fatalf("RevokeAdminSession failed: %v", err)
	}
	if _, err := sessions.LookupAdminSession(ctx, "hash-1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err after revoke = %v, want ErrNoSession", err)
	}
}
