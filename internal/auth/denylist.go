// AngelaMos | 2026
// denylist.go

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist remembers access token ids that were logged out before they
// expired.
type Denylist interface {
	Deny(ctx context.Context, tokenID string, ttl time.Duration) error
	Denied(ctx context.Context, tokenID string) (bool, error)
}

type redisDenylist struct {
	rdb *redis.Client
}

func NewRedisDenylist(rdb *redis.Client) Denylist {
	return &redisDenylist{rdb: rdb}
}

func denyKey(tokenID string) string {
	return "auth:denied:" + tokenID
}

func (d *redisDenylist) Deny(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := d.rdb.Set(ctx, denyKey(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("deny token: %w", err)
	}
	return nil
}

func (d *redisDenylist) Denied(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.rdb.Exists(ctx, denyKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("check denylist: %w", err)
	}
	return n > 0, nil
}
