// Package presence caches courier positions and the online set in Redis.
package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"courier-dispatch/internal/domain"
)

const (
	onlineKey  = "couriers:online"
	DefaultTTL = 30 * time.Minute
)

func locationKey(id uuid.UUID) string { return "courier:location:" + id.String() }

// LocationSource is consulted when a position is not cached.
type LocationSource interface {
	LastLocation(ctx context.Context, id uuid.UUID) (domain.Coordinate, bool, error)
}

// Cache is a Redis backed presence cache.
type Cache struct {
	c        redis.UniversalClient
	ttl      time.Duration
	fallback LocationSource
}

// NewClient creates a Redis client for addr.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// New creates a Cache. Positions expire after ttl; fallback may be nil.
func New(c redis.UniversalClient, ttl time.Duration, fallback LocationSource) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{c: c, ttl: ttl, fallback: fallback}
}

// SetLocation caches the latest courier position.
func (p *Cache) SetLocation(ctx context.Context, courierID uuid.UUID, at domain.Coordinate) error {
	key := locationKey(courierID)
	pipe := p.c.TxPipeline()
	pipe.HSet(ctx, key,
		"lat", strconv.FormatFloat(at.Lat, 'f', -1, 64),
		"lng", strconv.FormatFloat(at.Lng, 'f', -1, 64),
	)
	pipe.Expire(ctx, key, p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "redis set location")
	}
	return nil
}

// LastLocation returns the cached position, then the fallback source.
func (p *Cache) LastLocation(ctx context.Context, courierID uuid.UUID) (domain.Coordinate, bool, error) {
	vals, err := p.c.HMGet(ctx, locationKey(courierID), "lat", "lng").Result()
	if err != nil {
		return domain.Coordinate{}, false, errors.Wrap(err, "redis get location")
	}
	if c, ok := parseCoordinate(vals); ok {
		return c, true, nil
	}
	if p.fallback == nil {
		return domain.Coordinate{}, false, nil
	}
	c, ok, err := p.fallback.LastLocation(ctx, courierID)
	if err != nil {
		return domain.Coordinate{}, false, errors.Wrap(err, "fallback location")
	}
	if ok {
		_ = p.SetLocation(ctx, courierID, c)
	}
	return c, ok, nil
}

func parseCoordinate(vals []any) (domain.Coordinate, bool) {
	if len(vals) != 2 {
		return domain.Coordinate{}, false
	}
	lat, ok1 := parseFloat(vals[0])
	lng, ok2 := parseFloat(vals[1])
	if !ok1 || !ok2 {
		return domain.Coordinate{}, false
	}
	c := domain.Coordinate{Lat: lat, Lng: lng}
	return c, c.Valid()
}

func parseFloat(v any) (float64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// MarkOnline adds the courier to the online set.
func (p *Cache) MarkOnline(ctx context.Context, courierID uuid.UUID) error {
	if err := p.c.SAdd(ctx, onlineKey, courierID.String()).Err(); err != nil {
		return errors.Wrap(err, "redis mark online")
	}
	return nil
}

// MarkOffline removes the courier from the online set.
func (p *Cache) MarkOffline(ctx context.Context, courierID uuid.UUID) error {
	if err := p.c.SRem(ctx, onlineKey, courierID.String()).Err(); err != nil {
		return errors.Wrap(err, "redis mark offline")
	}
	return nil
}

// OnlineCount returns the size of the online set.
func (p *Cache) OnlineCount(ctx context.Context) (int64, error) {
	n, err := p.c.SCard(ctx, onlineKey).Result()
	if err != nil {
		return 0, errors.Wrap(err, "redis online count")
	}
	return n, nil
}

// IsOnline reports whether the courier is in the online set.
func (p *Cache) IsOnline(ctx context.Context, courierID uuid.UUID) (bool, error) {
	ok, err := p.c.SIsMember(ctx, onlineKey, courierID.String()).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis is online")
	}
	return ok, nil
}
