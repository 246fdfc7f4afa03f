package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"sitebook/api/internal/principal"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	tokenHash := "test-token-hash"
	actor := principal.Principal{
		Kind:      principal.KindStaff,
		ID:        "st-7",
		StaffRole: principal.RoleQuantitySurveyor,
	}

	if err := store.SaveRefreshSession(ctx, tokenHash, actor, "Noor", time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	got, name, err := store.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		t.Fatalf("LookupRefreshSession failed: %v", err)
	}
	if got != actor {
		t.Errorf("expected principal %v, got %v", actor, got)
	}
	if name != "Noor" {
		t.Errorf("expected display name Noor, got %s", name)
	}
}

func TestLookupMissingToken(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	_, _, err := store.LookupRefreshSession(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	actor := principal.Principal{Kind: principal.KindCompany, ID: "co-3"}

	if err := store.SaveRefreshSession(ctx, "hash-1", actor, "Brightline Build", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	if err := store.RevokeRefreshSession(ctx, "hash-1"); err != nil {
		t.Fatalf("RevokeRefreshSession failed: %v", err)
	}
	if _, _, err := store.LookupRefreshSession(ctx, "hash-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after revoke, got %v", err)
	}
}

func TestExpiredTokenIsGone(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	actor := principal.Principal{Kind: principal.KindClient, ID: "cl-4"}

	if err := store.SaveRefreshSession(ctx, "hash-2", actor, "Meadow Homes", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	s.FastForward(2 * time.Minute)

	if _, _, err := store.LookupRefreshSession(ctx, "hash-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}
