package postgres

import (
	"context"
	"database/sql"

	authDomain "stock-monitor/internal/domain/auth"
	authinfra "stock-monitor/internal/infrastructure/auth"
)

// AuthRepo 提供使用者與 refresh session 的存取。
type AuthRepo struct {
	db *sql.DB
}

// NewAuthRepo 建立 AuthRepo。
func NewAuthRepo(db *sql.DB) *AuthRepo {
	return &AuthRepo{db: db}
}

// FindByEmail 依 email 查詢使用者。
func (r *AuthRepo) FindByEmail(ctx context.Context, email string) (authDomain.User, error) {
	const q = `
SELECT id, email, display_name, password_hash, status, role
FROM users
WHERE email = $1
LIMIT 1;
`
	var u authDomain.User
	var role string
	if err := r.db.QueryRowContext(ctx, q, email).Scan(&u.ID, &u.Email, &u.Name, &u.Password, &u.Status, &role); err != nil {
		return authDomain.User{}, err
	}
	u.Role = authDomain.Role(role)
	return u, nil
}

// FindByID 依 ID 查詢使用者。
func (r *AuthRepo) FindByID(ctx context.Context, id string) (authDomain.User, error) {
	const q = `
SELECT id, email, display_name, password_hash, status, role
FROM users
WHERE id = $1
LIMIT 1;
`
	var u authDomain.User
	var role string
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Email, &u.Name, &u.Password, &u.Status, &role); err != nil {
		return authDomain.User{}, err
	}
	u.Role = authDomain.Role(role)
	return u, nil
}

// SaveSession 寫入 refresh session。
func (r *AuthRepo) SaveSession(ctx context.Context, sess authDomain.Session) error {
	const q = `
INSERT INTO auth_sessions (user_id, refresh_token_id, expires_at, user_agent, ip_address)
VALUES ($1, $2, $3, $4, $5);
`
	_, err := r.db.ExecContext(ctx, q, sess.UserID, sess.Token, sess.ExpiresAt, sess.UserAgent, sess.IPAddress)
	return err
}

// GetSession 依 token 查詢 session。
func (r *AuthRepo) GetSession(ctx context.Context, token string) (authDomain.Session, error) {
	const q = `
SELECT user_id, refresh_token_id, expires_at, revoked_at, user_agent, ip_address, created_at
FROM auth_sessions
WHERE refresh_token_id = $1
LIMIT 1;
`
	var sess authDomain.Session
	var revokedAt sql.NullTime
	if err := r.db.QueryRowContext(ctx, q, token).Scan(
		&sess.UserID, &sess.Token, &sess.ExpiresAt, &revokedAt, &sess.UserAgent, &sess.IPAddress, &sess.CreatedAt,
	); err != nil {
		return authDomain.Session{}, err
	}
	if revokedAt.Valid {
		at := revokedAt.Time
		sess.RevokedAt = &at
	}
	return sess, nil
}

// RevokeSession 作廢 session。
func (r *AuthRepo) RevokeSession(ctx context.Context, token string) error {
	const q = `UPDATE auth_sessions SET revoked_at = NOW() WHERE refresh_token_id = $1 AND revoked_at IS NULL;`
	_, err := r.db.ExecContext(ctx, q, token)
	return err
}

// SeedDefaults 建立預設管理者帳號，已存在時僅更新名稱。
func (r *AuthRepo) SeedDefaults(ctx context.Context) error {
	hash, err := authinfra.HashPassword("password123")
	if err != nil {
		return err
	}
	const q = `
INSERT INTO users (email, display_name, password_hash, status, role)
VALUES ($1, $2, $3, 'active', 'admin')
ON CONFLICT (email) DO UPDATE SET display_name = EXCLUDED.display_name;
`
	_, err = r.db.ExecContext(ctx, q, "admin@example.com", "Admin", hash)
	return err
}
