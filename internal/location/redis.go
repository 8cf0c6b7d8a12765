package location

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/trip-dispatch/internal/geo"
	"github.com/example/trip-dispatch/internal/models"
)

// RedisStore keeps driver locations in a Redis GEO set plus a metadata
// hash per driver. It backs multi-process deployments where the consumer
// mirrors the Kafka location feed; a single dispatch process uses
// MemoryStore instead.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(addr, password, key string) *RedisStore {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisStore{client: c, key: key}
}

// NewRedisStoreFromClient is used by the consumer, which owns the client.
func NewRedisStoreFromClient(c *redis.Client, key string) *RedisStore {
	return &RedisStore{client: c, key: key}
}

func (r *RedisStore) Update(ctx context.Context, driverID string, lat, lon float64) error {
	if !geo.ValidCoord(lat, lon) {
		return fmt.Errorf("%w: coordinates out of range (%f, %f)", ErrValidation, lat, lon)
	}
	if err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Name:      driverID,
		Longitude: lon,
		Latitude:  lat,
	}).Err(); err != nil {
		return err
	}
	return r.client.HSet(ctx, metaKey(driverID), map[string]interface{}{
		"updated": time.Now().Format(time.RFC3339),
	}).Err()
}

// Snapshot reads every member of the geo set. The set is small at the
// target scale, so a full read per match is acceptable.
func (r *RedisStore) Snapshot(ctx context.Context) ([]models.DriverLocation, error) {
	ids, err := r.client.ZRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	pos, err := r.client.GeoPos(ctx, r.key, ids...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.DriverLocation, 0, len(ids))
	for i, id := range ids {
		if i >= len(pos) || pos[i] == nil {
			continue
		}
		d := models.DriverLocation{DriverID: id, Lat: pos[i].Latitude, Lon: pos[i].Longitude}
		if m, err := r.client.HGetAll(ctx, metaKey(id)).Result(); err == nil {
			if v, ok := m["updated"]; ok {
				if ts, err := time.Parse(time.RFC3339, v); err == nil {
					d.Updated = ts
				}
			}
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *RedisStore) Close() error { return r.client.Close() }

func metaKey(id string) string { return "driver:meta:" + id }
