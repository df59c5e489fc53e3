package geo

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/example/sos-dispatch/internal/models"
)

// wide enough to cover the whole globe when no radius cap is supplied
const unboundedRadiusMeters = 21_000_000

// RedisDirectory implements Directory on Redis GEO commands, one geo set per
// role so a nearest-driver query never scans hospitals.
type RedisDirectory struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisDirectory(client *redis.Client, keyPrefix string) *RedisDirectory {
	if keyPrefix == "" {
		keyPrefix = "sos:geo"
	}
	return &RedisDirectory{client: client, keyPrefix: keyPrefix}
}

func (r *RedisDirectory) roleKey(role models.Role) string {
	return fmt.Sprintf("%s:%s", r.keyPrefix, role)
}

func (r *RedisDirectory) Upsert(ctx context.Context, id string, role models.Role, c models.Coord) error {
	err := r.client.GeoAdd(ctx, r.roleKey(role), &redis.GeoLocation{
		Longitude: c.Lng,
		Latitude:  c.Lat,
		Name:      id,
	}).Err()
	if err != nil {
		return fmt.Errorf("geoadd %s: %w", id, err)
	}
	return nil
}

func (r *RedisDirectory) Nearest(ctx context.Context, role models.Role, origin models.Coord, maxDistanceMeters float64) (Member, error) {
	radius := maxDistanceMeters
	if radius <= 0 {
		radius = unboundedRadiusMeters
	}
	res, err := r.client.GeoRadius(ctx, r.roleKey(role), origin.Lng, origin.Lat, &redis.GeoRadiusQuery{
		Radius:    radius,
		Unit:      "m",
		WithCoord: true,
		WithDist:  true,
		Count:     1,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return Member{}, fmt.Errorf("georadius %s: %w", role, err)
	}
	if len(res) == 0 {
		return Member{}, ErrNotFound
	}
	g := res[0]
	return Member{
		ID:    g.Name,
		Role:  role,
		Coord: models.Coord{Lat: g.Latitude, Lng: g.Longitude},
	}, nil
}
