// Package devicecache maintains the device-readable mirror of restriction
// state in Redis. The mirror is a side channel, eventually consistent with
// the Postgres source of truth: writes here are fire-and-forget from the
// caller's perspective and re-pushing identical state is harmless.
package devicecache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/nestlink/guardian-server-go/internal/model"
	"github.com/nestlink/guardian-server-go/internal/redis"
)

type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// RestrictionPayload is the per-app document the child device enforces
// offline. Bedtime is an orthogonal override layer: the device ORs the
// bedtime disable with the per-app state.
type RestrictionPayload struct {
	BundleID   string `json:"bundleId"`
	TimeLimit  int    `json:"timeLimitSeconds"`
	IsDisabled bool   `json:"isDisabled"`
	DailyUsage int    `json:"dailyUsageSeconds"`
	UpdatedAt  string `json:"updatedAt"`
}

type BedtimePayload struct {
	IsEnabled   bool    `json:"isEnabled"`
	IsActiveNow bool    `json:"isActiveNow"`
	StartTime   string  `json:"startTime"`
	EndTime     string  `json:"endTime"`
	EnabledDays []int64 `json:"enabledDays"`
	PushedAt    string  `json:"pushedAt"`
}

func (c *Cache) PushRestriction(ctx context.Context, r *model.AppRestriction) error {
	payload := RestrictionPayload{
		BundleID:   r.BundleID,
		TimeLimit:  r.TimeLimit,
		IsDisabled: r.IsDisabled,
		DailyUsage: r.DailyUsage,
		UpdatedAt:  r.UpdatedAt.UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal restriction payload: %w", err)
	}

	key := redis.RestrictionsKey(r.ParentID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, r.BundleID, data)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push restriction to device cache: %w", err)
	}
	return nil
}

func (c *Cache) RemoveRestriction(ctx context.Context, parentID, bundleID string) error {
	if err := c.client.HDel(ctx, redis.RestrictionsKey(parentID), bundleID).Err(); err != nil {
		return fmt.Errorf("remove restriction from device cache: %w", err)
	}
	return nil
}

func (c *Cache) PushBedtime(ctx context.Context, bt *model.BedtimeSettings, activeNow bool) error {
	days := make([]int64, len(bt.EnabledDays))
	copy(days, bt.EnabledDays)

	payload := BedtimePayload{
		IsEnabled:   bt.IsEnabled,
		IsActiveNow: activeNow,
		StartTime:   bt.StartTime,
		EndTime:     bt.EndTime,
		EnabledDays: days,
		PushedAt:    time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal bedtime payload: %w", err)
	}

	if err := c.client.Set(ctx, redis.BedtimeKey(bt.UserID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("push bedtime to device cache: %w", err)
	}
	return nil
}

// ReadRestrictions returns the mirrored restriction documents for a
// parent account, keyed by bundle id. A missing key yields an empty map;
// a malformed field is skipped and logged rather than coerced.
func (c *Cache) ReadRestrictions(ctx context.Context, parentID string) (map[string]RestrictionPayload, error) {
	fields, err := c.client.HGetAll(ctx, redis.RestrictionsKey(parentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read restrictions from device cache: %w", err)
	}

	out := make(map[string]RestrictionPayload, len(fields))
	for bundleID, raw := range fields {
		var payload RestrictionPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			log.Warn().Str("parentId", parentID).Str("bundleId", bundleID).
				Msg("skipping malformed restriction document in device cache")
			continue
		}
		out[bundleID] = payload
	}
	return out, nil
}

func (c *Cache) ReadBedtime(ctx context.Context, userID string) (*BedtimePayload, error) {
	raw, err := c.client.Get(ctx, redis.BedtimeKey(userID)).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("read bedtime from device cache: %w", err)
	}

	var payload BedtimePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		log.Warn().Str("userId", userID).Msg("skipping malformed bedtime document in device cache")
		return nil, nil
	}
	return &payload, nil
}

// PurgeUser drops all mirrored state for a user, used when a
// relationship is unlinked.
func (c *Cache) PurgeUser(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, redis.RestrictionsKey(userID), redis.BedtimeKey(userID)).Err(); err != nil {
		return fmt.Errorf("purge device cache: %w", err)
	}
	return nil
}
