package memory

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"points-ledger/internal/core/domain"
)

type otpEntry struct {
	code      string
	expiresAt time.Time
}

// OTPStore is an in-memory ports.OTPStore with an injectable clock.
type OTPStore struct {
	mu      sync.Mutex
	entries map[string]otpEntry
	now     func() time.Time
}

// NewOTPStore creates an OTPStore. A nil clock uses time.Now.
func NewOTPStore(now func() time.Time) *OTPStore {
	if now == nil {
		now = time.Now
	}
	return &OTPStore{entries: make(map[string]otpEntry), now: now}
}

func otpKey(subjectID string, purpose domain.OTPPurpose) string {
	return string(purpose) + ":" + subjectID
}

// Save replaces any live code for (subjectID, purpose).
func (s *OTPStore) Save(ctx context.Context, subjectID string, purpose domain.OTPPurpose, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[otpKey(subjectID, purpose)] = otpEntry{code: code, expiresAt: s.now().Add(ttl)}
	return nil
}

// Consume removes the code when it is live and matches.
func (s *OTPStore) Consume(ctx context.Context, subjectID string, purpose domain.OTPPurpose, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := otpKey(subjectID, purpose)
	e, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(e.code), []byte(code)) != 1 {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

// PurgeExpired drops every expired code and returns how many were removed.
func (s *OTPStore) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}
