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

// DispatchQueueKey is the sorted set of scheduled dispatch jobs, scored by due time.
const DispatchQueueKey = "dispatch:queue"

// DispatchAttemptsKey is the hash of per-job attempt counters.
const DispatchAttemptsKey = "dispatch:attempts"
