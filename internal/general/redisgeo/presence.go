package redisgeo

import (
	"context"
	"time"

	"trip-dispatch/internal/domain/driver"
	"trip-dispatch/internal/domain/geo"
	"trip-dispatch/internal/ports"

	"github.com/redis/go-redis/v9"
)

const (
	geoKey = "drivers:geo"

	// metadata hash fields
	fieldOnline = "online"
	fieldFixAt  = "last_fix_at"
)

// PresenceIndex tracks online drivers in a Redis GEO set plus a per-driver
// metadata hash. The index is ephemeral: losing it degrades matching, not
// trip state.
type PresenceIndex struct {
	client *redis.Client
}

// NewPresenceIndex wraps an existing Redis client.
func NewPresenceIndex(client *redis.Client) ports.PresenceIndex {
	return &PresenceIndex{client: client}
}

// SetOnline marks a driver available at the given location.
func (index *PresenceIndex) SetOnline(ctx context.Context, driverID string, loc geo.Coordinate) error {
	if err := loc.Validate(); err != nil {
		return err
	}

	pipe := index.client.TxPipeline()
	pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      driverID,
		Longitude: loc.Longitude,
		Latitude:  loc.Latitude,
	})
	pipe.HSet(ctx, metaKey(driverID), map[string]any{
		fieldOnline: "true",
		fieldFixAt:  time.Now().UTC().Format(time.RFC3339),
	})
	_, err := pipe.Exec(ctx)
	return err
}

// SetOffline removes the driver from the candidate pool.
func (index *PresenceIndex) SetOffline(ctx context.Context, driverID string) error {
	pipe := index.client.TxPipeline()
	pipe.ZRem(ctx, geoKey, driverID)
	pipe.HSet(ctx, metaKey(driverID), fieldOnline, "false")
	_, err := pipe.Exec(ctx)
	return err
}

// UpdateLocation refreshes the driver's last known fix. A location update
// for an offline driver still records the fix but does not bring the driver
// back online.
func (index *PresenceIndex) UpdateLocation(ctx context.Context, driverID string, loc geo.Coordinate) error {
	if err := loc.Validate(); err != nil {
		return err
	}

	online, err := index.client.HGet(ctx, metaKey(driverID), fieldOnline).Result()
	if err != nil && err != redis.Nil {
		return err
	}

	pipe := index.client.TxPipeline()
	if online == "true" {
		pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
			Name:      driverID,
			Longitude: loc.Longitude,
			Latitude:  loc.Latitude,
		})
	}
	pipe.HSet(ctx, metaKey(driverID), fieldFixAt, time.Now().UTC().Format(time.RFC3339))
	_, err = pipe.Exec(ctx)
	return err
}

// Nearby lists online drivers within radiusKM of center, nearest first.
// GEOSEARCH is inclusive at the boundary, matching the dispatch filter.
func (index *PresenceIndex) Nearby(ctx context.Context, center geo.Coordinate, radiusKM float64, limit int) ([]driver.Presence, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	res, err := index.client.GeoSearchLocation(ctx, geoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  center.Longitude,
			Latitude:   center.Latitude,
			Radius:     radiusKM,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]driver.Presence, 0, len(res))
	for _, loc := range res {
		p := driver.Presence{
			DriverID: loc.Name,
			Online:   true, // membership in the geo set implies online
			HasFix:   true,
			Location: geo.Coordinate{Latitude: loc.Latitude, Longitude: loc.Longitude},
		}
		if meta, err := index.client.HGetAll(ctx, metaKey(loc.Name)).Result(); err == nil {
			if at, ok := meta[fieldFixAt]; ok {
				if ts, err := time.Parse(time.RFC3339, at); err == nil {
					p.LastFixAt = ts
				}
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func metaKey(driverID string) string { return "drivers:meta:" + driverID }
