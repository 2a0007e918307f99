package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// PresenceMirror writes the in-process registry's membership into redis
// under TTL keys, so sibling gateways (and ops tooling) can answer "is
// this user online, and where" without asking every node. The registry
// stays the source of truth; the mirror is best effort. A nil mirror is
// valid and turns every method into a no-op.
type PresenceMirror struct {
	rdb       *redis.Client
	gatewayID string
	ttl       time.Duration
}

func NewPresenceMirror(rdb *redis.Client, gatewayID string, ttl time.Duration) *PresenceMirror {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &PresenceMirror{rdb: rdb, gatewayID: gatewayID, ttl: ttl}
}

// presence key: im:presence:<user>, value: gateway id, TTL bounds staleness.
func presenceKey(user string) string { return "im:presence:" + user }

func (p *PresenceMirror) Online(ctx context.Context, user string) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Set(ctx, presenceKey(user), p.gatewayID, p.ttl).Err()
}

func (p *PresenceMirror) Offline(ctx context.Context, user string) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Del(ctx, presenceKey(user)).Err()
}

func (p *PresenceMirror) Lookup(ctx context.Context, user string) (gatewayID string, online bool, err error) {
	if p == nil || p.rdb == nil {
		return "", false, nil
	}
	val, err := p.rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
