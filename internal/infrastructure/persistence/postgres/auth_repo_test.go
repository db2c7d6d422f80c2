package postgres

import (
	"context"
	"testing"
	"time"

	authDomain "stock-monitor/internal/domain/auth"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestAuthRepo_FindByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %s", err)
	}
	defer db.Close()

	repo := NewAuthRepo(db)

	rows := sqlmock.NewRows([]string{"id", "email", "display_name", "password_hash", "status", "role"}).
		AddRow("u-1", "test@example.com", "Test User", "hash", "active", "admin")

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("test@example.com").
		WillReturnRows(rows)

	u, err := repo.FindByEmail(context.Background(), "test@example.com")
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	if u.ID != "u-1" || u.Role != authDomain.RoleAdmin {
		t.Errorf("unexpected user: %+v", u)
	}
}

func TestAuthRepo_SaveSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %s", err)
	}
	defer db.Close()

	repo := NewAuthRepo(db)
	sess := authDomain.Session{
		UserID:    "u-1",
		Token:     "t-1",
		ExpiresAt: time.Now().Add(time.Hour),
		UserAgent: "UA",
		IPAddress: "127.0.0.1",
	}

	mock.ExpectExec("INSERT INTO auth_sessions").
		WithArgs(sess.UserID, sess.Token, sess.ExpiresAt, sess.UserAgent, sess.IPAddress).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.SaveSession(context.Background(), sess); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
}

func TestAuthRepo_GetSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %s", err)
	}
	defer db.Close()

	repo := NewAuthRepo(db)

	rows := sqlmock.NewRows([]string{"user_id", "refresh_token_id", "expires_at", "revoked_at", "user_agent", "ip_address", "created_at"}).
		AddRow("u-1", "t-1", time.Now().Add(time.Hour), nil, "UA", "127.0.0.1", time.Now())

	mock.ExpectQuery("SELECT (.+) FROM auth_sessions").
		WithArgs("t-1").
		WillReturnRows(rows)

	sess, err := repo.GetSession(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess.UserID != "u-1" || sess.RevokedAt != nil {
		t.Errorf("unexpected session: %+v", sess)
	}
	if !sess.Active(time.Now()) {
		t.Error("expected active session")
	}
}

func TestAuthRepo_RevokeSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %s", err)
	}
	defer db.Close()

	repo := NewAuthRepo(db)

	mock.ExpectExec("UPDATE auth_sessions SET revoked_at").
		WithArgs("t-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RevokeSession(context.Background(), "t-1"); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
