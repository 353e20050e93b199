package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// RestrictionsKey is the hash holding the device-readable restriction
// mirror for one parent account, one field per bundle id.
func RestrictionsKey(parentID string) string {
	return fmt.Sprintf("restrictions:%s", parentID)
}

// BedtimeKey holds the device-readable bedtime payload for one user.
func BedtimeKey(userID string) string {
	return fmt.Sprintf("bedtime:%s", userID)
}
