package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rs, err := NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	t.Cleanup(func() { rs.Close() })
	return rs, mr
}

func TestNewRedisStorePings(t *testing.T) {
	rs, _ := newTestStore(t)
	if err := rs.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	rs, _ := newTestStore(t)
	ctx := context.Background()

	err := rs.SaveRefreshSession(ctx, "hash-abc", "usr_grace", time.Now().Add(30*24*time.Hour))
	if err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	profile, err := rs.LookupRefreshSession(ctx, "hash-abc")
	if err != nil {
		t.Fatalf("LookupRefreshSession failed: %v", err)
	}
	if profile.ID != "usr_grace" {
		t.Errorf("expected usr_grace, got %s", profile.ID)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	rs, mr := newTestStore(t)
	ctx := context.Background()

	err := rs.SaveRefreshSession(ctx, "hash-expiring", "usr_grace", time.Now().Add(time.Millisecond))
	if err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	mr.FastForward(2 * time.Millisecond)

	if _, err := rs.LookupRefreshSession(ctx, "hash-expiring"); err == nil {
		t.Error("expected error for expired session, got nil")
	}
}

func TestLookupUnknownSession(t *testing.T) {
	rs, _ := newTestStore(t)
	if _, err := rs.LookupRefreshSession(context.Background(), "no-such-hash"); err == nil {
		t.Error("expected error for unknown session, got nil")
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	rs, _ := newTestStore(t)
	ctx := context.Background()

	if err := rs.SaveRefreshSession(ctx, "hash-revoke", "usr_grace", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	if err := rs.RevokeRefreshSession(ctx, "hash-revoke"); err != nil {
		t.Fatalf("RevokeRefreshSession failed: %v", err)
	}
	if _, err := rs.LookupRefreshSession(ctx, "hash-revoke"); err == nil {
		t.Error("expected error after revoke, got nil")
	}

	// Revoking an absent hash is a no-op, not an error.
	if err := rs.RevokeRefreshSession(ctx, "no-such-hash"); err != nil {
		t.Errorf("revoke of unknown hash failed: %v", err)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	rs, _ := newTestStore(t)
	ctx := context.Background()
	expiresAt := time.Now().Add(time.Hour)

	if err := rs.SaveRefreshSession(ctx, "hash-1", "usr_1", expiresAt); err != nil {
		t.Fatalf("save hash-1: %v", err)
	}
	if err := rs.SaveRefreshSession(ctx, "hash-2", "usr_2", expiresAt); err != nil {
		t.Fatalf("save hash-2: %v", err)
	}

	if err := rs.RevokeRefreshSession(ctx, "hash-1"); err != nil {
		t.Fatalf("revoke hash-1: %v", err)
	}
	if _, err := rs.LookupRefreshSession(ctx, "hash-1"); err == nil {
		t.Error("expected hash-1 to be gone")
	}
	profile, err := rs.LookupRefreshSession(ctx, "hash-2")
	if err != nil {
		t.Fatalf("lookup hash-2 after revoking hash-1: %v", err)
	}
	if profile.ID != "usr_2" {
		t.Errorf("expected usr_2, got %s", profile.ID)
	}
}
