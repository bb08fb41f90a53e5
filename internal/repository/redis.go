// Package repository provides Redis-backed persistence for the notification
// engine. The engine treats the store as an abstract key-value store with
// TTLs; everything Redis-specific lives here.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key TTLs and bounds for the engine's keyspaces.
const (
	HistoryTTL = 7 * 24 * time.Hour
	HistoryCap = 50
	QueueTTL   = 7 * 24 * time.Hour
	CounterTTL = 24 * time.Hour
	OutboxTTL  = 24 * time.Hour
)

var ErrPreferencesNotFound = errors.New("notification preferences not found")

// NewClient connects to the Redis store backing preferences, history,
// queues, and counters.
func NewClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
}

// Ping verifies the store is reachable before the server starts serving.
func Ping(ctx context.Context, rdb *redis.Client) error {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}
	return nil
}
