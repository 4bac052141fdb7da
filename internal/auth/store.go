package auth

import (
	"sync"
)

// TokenStore holds the current session credential in memory. The gateway
// keeps no durable session state; losing the process means logging in again.
type TokenStore struct {
	mu    sync.RWMutex
	token string
	user  *User
}

func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// AccessToken returns the stored bearer token, or "" when logged out.
func (s *TokenStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// CurrentUser returns a copy of the stored profile, or nil when logged out.
func (s *TokenStore) CurrentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// SetSession stores the credential and profile from a successful login.
func (s *TokenStore) SetSession(token string, user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = &user
}

// SetUser refreshes the stored profile without touching the token.
func (s *TokenStore) SetUser(user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &user
}

// Invalidate drops the credential and profile.
func (s *TokenStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
}

// Authenticated reports whether a credential is currently held.
func (s *TokenStore) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}
