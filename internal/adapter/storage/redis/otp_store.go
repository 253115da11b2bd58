package redis

import (
	"context"
	"fmt"
	"time"

	"points-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// consumeScript deletes the key only when it holds the presented code.
var consumeScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// OTPStore implements ports.OTPStore with one key per (purpose, subject).
type OTPStore struct {
	client *goredis.Client
	prefix string
}

// NewOTPStore creates a new Redis-backed OTP store.
func NewOTPStore(client *goredis.Client) *OTPStore {
	return &OTPStore{
		client: client,
		prefix: "otp:",
	}
}

func (s *OTPStore) key(subjectID string, purpose domain.OTPPurpose) string {
	return s.prefix + string(purpose) + ":" + subjectID
}

// Save stores code with a TTL, replacing any live code for the pair.
func (s *OTPStore) Save(ctx context.Context, subjectID string, purpose domain.OTPPurpose, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(subjectID, purpose), code, ttl).Err(); err != nil {
		return fmt.Errorf("redis otp save: %w", err)
	}
	return nil
}

// Consume atomically deletes the code if it matches. Expired keys are
// already gone, so they never match.
func (s *OTPStore) Consume(ctx context.Context, subjectID string, purpose domain.OTPPurpose, code string) (bool, error) {
	n, err := consumeScript.Run(ctx, s.client, []string{s.key(subjectID, purpose)}, code).Int64()
	if err != nil {
		return false, fmt.Errorf("redis otp consume: %w", err)
	}
	return n == 1, nil
}
