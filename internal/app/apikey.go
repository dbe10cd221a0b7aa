package app

import (
	"strings"
	"sync"
	"time"
)

// APIKeyStore holds the classification API key. Readers snapshot the key
// once per request, so a concurrent Set never changes an in-flight call.
type APIKeyStore struct {
	mu        sync.RWMutex
	key       string
	updatedAt time.Time
}

func NewAPIKeyStore(initial string) *APIKeyStore {
	s := &APIKeyStore{}
	s.Set(initial)
	return s
}

// Set replaces the key. A blank key clears it. It reports whether a key is
// configured afterwards.
func (s *APIKeyStore) Set(key string) bool {
	key = strings.TrimSpace(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = key
	s.updatedAt = time.Now()
	return key != ""
}

func (s *APIKeyStore) Clear() {
	s.Set("")
}

func (s *APIKeyStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

func (s *APIKeyStore) IsSet() bool {
	return s.Get() != ""
}

// Masked returns the key with its middle hidden, for status output.
func (s *APIKeyStore) Masked() string {
	key := s.Get()
	if key == "" {
		return ""
	}
	return maskSecret(key)
}

func (s *APIKeyStore) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}
