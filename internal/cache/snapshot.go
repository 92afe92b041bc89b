package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/terminal-bench/gridpulse/internal/incidents"
	"github.com/terminal-bench/gridpulse/pkg/models"
)

// Keys written by SnapshotCache.
const (
	KeyLatest     = "gridpulse:snapshot:latest"
	KeySocietyGSI = "gridpulse:gsi:society"
	KeyZoneGSI    = "gridpulse:gsi:zone"
	KeyCityGSI    = "gridpulse:gsi:city"
	KeyGridGSI    = "gridpulse:gsi:grid"
	KeyIncidents  = "gridpulse:incidents"
)

// ErrMiss is returned when no snapshot has been cached yet.
var ErrMiss = errors.New("snapshot not cached")

// Store is the subset of the redis command set used by the cache.
type Store interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// NewClient opens a redis client for addr.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// SnapshotCache mirrors each published snapshot into redis so other processes can
// read the latest grid state without polling the API.
type SnapshotCache struct {
	store Store
	ttl   time.Duration
}

// NewSnapshotCache creates a cache. A zero ttl keeps the latest snapshot forever.
func NewSnapshotCache(store Store, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{store: store, ttl: ttl}
}

// Publish stores snap, its per-scope indices and its new incidents.
func (c *SnapshotCache) Publish(ctx context.Context, snap *models.GridSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := c.store.Set(ctx, KeyLatest, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", KeyLatest, err)
	}
	if err := c.store.Set(ctx, KeyGridGSI, snap.Grid.GSI, c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", KeyGridGSI, err)
	}

	societies := make(map[string]interface{}, len(snap.Societies))
	for _, s := range snap.Societies {
		societies[s.SocietyID] = s.Stability.GSI
	}
	for key, values := range map[string]map[string]interface{}{
		KeySocietyGSI: societies,
		KeyZoneGSI:    scopeValues(snap.Zones),
		KeyCityGSI:    scopeValues(snap.Cities),
	} {
		if len(values) == 0 {
			continue
		}
		if err := c.store.HSet(ctx, key, values).Err(); err != nil {
			return fmt.Errorf("hset %s: %w", key, err)
		}
	}

	if len(snap.Incidents) == 0 {
		return nil
	}
	items := make([]interface{}, 0, len(snap.Incidents))
	for _, inc := range snap.Incidents {
		b, err := json.Marshal(inc)
		if err != nil {
			return fmt.Errorf("failed to marshal incident: %w", err)
		}
		items = append(items, b)
	}
	if err := c.store.LPush(ctx, KeyIncidents, items...).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", KeyIncidents, err)
	}
	return c.store.LTrim(ctx, KeyIncidents, 0, incidents.Capacity-1).Err()
}

// Latest reads the most recently cached snapshot.
func (c *SnapshotCache) Latest(ctx context.Context) (*models.GridSnapshot, error) {
	raw, err := c.store.Get(ctx, KeyLatest).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", KeyLatest, err)
	}
	var snap models.GridSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func scopeValues(scopes map[string]models.GridStabilityIndex) map[string]interface{} {
	out := make(map[string]interface{}, len(scopes))
	for id, g := range scopes {
		out[id] = g.GSI
	}
	return out
}
