package actors

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/example/sos-dispatch/internal/models"
)

// RedisDirectory keeps actor profiles in hashes, one per actor, mirrored from
// the identity service. Missing hash means the actor is unknown here.
type RedisDirectory struct {
	client *redis.Client
}

func NewRedisDirectory(client *redis.Client) *RedisDirectory {
	return &RedisDirectory{client: client}
}

func metaKey(id string) string { return "actor:meta:" + id }

func (r *RedisDirectory) Put(ctx context.Context, a models.Actor) error {
	err := r.client.HSet(ctx, metaKey(a.ID), map[string]interface{}{
		"role":    string(a.Role),
		"name":    a.Name,
		"phone":   a.Phone,
		"address": a.Address,
	}).Err()
	if err != nil {
		return fmt.Errorf("hset actor %s: %w", a.ID, err)
	}
	return nil
}

func (r *RedisDirectory) Get(ctx context.Context, id string) (models.Actor, error) {
	m, err := r.client.HGetAll(ctx, metaKey(id)).Result()
	if err != nil {
		return models.Actor{}, fmt.Errorf("hgetall actor %s: %w", id, err)
	}
	if len(m) == 0 {
		return models.Actor{}, ErrNotFound
	}
	return models.Actor{
		ID:      id,
		Role:    models.Role(m["role"]),
		Name:    m["name"],
		Phone:   m["phone"],
		Address: m["address"],
	}, nil
}
