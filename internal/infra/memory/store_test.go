package memory

import (
	"context"
	"testing"
	"time"

	"stock-monitor/internal/domain/auth"
)

func TestAuthStore_Users(t *testing.T) {
	s := NewAuthStore()
	ctx := context.Background()

	id := s.AddUser("test@example.com", "Test", auth.RoleAdmin, "hashed")
	u, err := s.FindByID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if u.Email != "test@example.com" || u.Role != auth.RoleAdmin {
		t.Errorf("unexpected user: %+v", u)
	}
	if !u.IsActive() {
		t.Error("new user should be active")
	}

	u2, err := s.FindByEmail(ctx, "test@example.com")
	if err != nil || u2.ID != id {
		t.Error("FindByEmail failed")
	}

	if _, err := s.FindByEmail(ctx, "nobody@example.com"); err == nil {
		t.Error("expected not found")
	}
}

func TestAuthStore_Sessions(t *testing.T) {
	s := NewAuthStore()
	ctx := context.Background()
	now := time.Now()

	sess := auth.Session{
		Token:     "tok-1",
		UserID:    "u-1",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSession(ctx, "tok-1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Active(now) {
		t.Error("expected active session")
	}

	if err := s.RevokeSession(ctx, "tok-1"); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetSession(ctx, "tok-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Active(now) {
		t.Error("revoked session should be inactive")
	}

	if err := s.RevokeSession(ctx, "missing"); err != nil {
		t.Errorf("revoking an unknown token should be a no-op, got %v", err)
	}
}
