package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mvoss/storefront/internal/domain"
)

// SessionStore persists the in-progress checkout selections per session.
// An absent session reads back as empty selections, never an error.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*domain.Selections, error)
	Save(ctx context.Context, sessionID string, sel *domain.Selections) error
	Reset(ctx context.Context, sessionID string) error
}

type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func (r *RedisSessionStore) Get(ctx context.Context, sessionID string) (*domain.Selections, error) {
	data, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewSelections(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var sel domain.Selections
	if e2 := json.Unmarshal(data, &sel); e2 != nil {
		return nil, fmt.Errorf("unmarshal selections failed: %w", e2)
	}
	if sel.State == "" {
		sel.State = domain.CheckoutStateEmpty
	}
	return &sel, nil
}

func (r *RedisSessionStore) Save(ctx context.Context, sessionID string, sel *domain.Selections) error {
	data, err := json.Marshal(sel)
	if err != nil {
		return fmt.Errorf("marshal selections failed: %w", err)
	}
	if e2 := r.client.Set(ctx, sessionKey(sessionID), data, r.ttl).Err(); e2 != nil {
		return fmt.Errorf("redis set failed: %w", e2)
	}
	return nil
}

// Reset clears both selections together; partial lifecycles are not
// allowed.
func (r *RedisSessionStore) Reset(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("checkout:%s", sessionID)
}
