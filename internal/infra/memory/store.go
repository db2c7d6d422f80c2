package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	authDomain "stock-monitor/internal/domain/auth"
)

// AuthStore 為無 DB 模式與測試使用的記憶體帳號/session 存儲。
type AuthStore struct {
	mu       sync.RWMutex
	users    map[string]authDomain.User
	sessions map[string]authDomain.Session
	seq      int
}

// NewAuthStore 建立新的記憶體 AuthStore 實例。
func NewAuthStore() *AuthStore {
	return &AuthStore{
		users:    make(map[string]authDomain.User),
		sessions: make(map[string]authDomain.Session),
	}
}

// AddUser 新增一個使用者，password 需為雜湊後字串。回傳配發的 id。
func (s *AuthStore) AddUser(email, name string, role authDomain.Role, hashedPassword string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("u-%d", s.seq)
	s.users[id] = authDomain.User{
		ID:       id,
		Email:    email,
		Name:     name,
		Role:     role,
		Status:   authDomain.StatusActive,
		Password: hashedPassword,
	}
	return id
}

// FindByEmail 依 email 查詢使用者。
func (s *AuthStore) FindByEmail(_ context.Context, email string) (authDomain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return authDomain.User{}, fmt.Errorf("user not found")
}

// FindByID 依 ID 查詢使用者。
func (s *AuthStore) FindByID(_ context.Context, id string) (authDomain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return authDomain.User{}, fmt.Errorf("user not found")
	}
	return u, nil
}

// SaveSession 寫入 refresh session。
func (s *AuthStore) SaveSession(_ context.Context, sess authDomain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Token] = sess
	return nil
}

// GetSession 依 token 查詢 session。
func (s *AuthStore) GetSession(_ context.Context, token string) (authDomain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok {
		return authDomain.Session{}, fmt.Errorf("session not found")
	}
	return sess, nil
}

// RevokeSession 作廢 session；不存在時視為已作廢。
func (s *AuthStore) RevokeSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil
	}
	now := time.Now()
	sess.RevokedAt = &now
	s.sessions[token] = sess
	return nil
}
