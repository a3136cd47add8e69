package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "skincheck:revoked:"

// Revoker remembers logged-out token ids until they would have expired anyway.
// A nil Revoker or one without a client treats every token as live.
type Revoker struct {
	rdb *redis.Client
}

func NewRevoker(rdb *redis.Client) *Revoker {
	return &Revoker{rdb: rdb}
}

func (r *Revoker) enabled() bool {
	return r != nil && r.rdb != nil
}

// Revoke marks jti revoked for ttl.
func (r *Revoker) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if !r.enabled() || jti == "" || ttl <= 0 {
		return nil
	}
	if err := r.rdb.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti was revoked.
func (r *Revoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if !r.enabled() {
		return false, nil
	}
	err := r.rdb.Get(ctx, revokedKeyPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return true, nil
}
