package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// SlotCache keeps computed availability responses in Redis for a short TTL.
// Slot listings are advisory anyway (the booking path re-validates under a
// lock), so a few seconds of staleness is acceptable and saves the overlap
// scan on hot shops. A nil *SlotCache is a no-op.
type SlotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSlotCache(addr, password string, db int, ttl time.Duration) *SlotCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &SlotCache{rdb: rdb, ttl: ttl}
}

func slotKey(shopID uint, date string, serviceIDs []uint) string {
	parts := make([]string, len(serviceIDs))
	for i, id := range serviceIDs {
		parts[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("slots:%d:%s:%s", shopID, date, strings.Join(parts, ","))
}

// Get returns the cached payload for the key, or false on miss or any
// Redis error.
func (c *SlotCache) Get(ctx context.Context, shopID uint, date string, serviceIDs []uint) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, slotKey(shopID, date, serviceIDs)).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *SlotCache) Set(ctx context.Context, shopID uint, date string, serviceIDs []uint, payload []byte) {
	if c == nil {
		return
	}
	c.rdb.Set(ctx, slotKey(shopID, date, serviceIDs), payload, c.ttl)
}

// Invalidate drops every cached listing for a shop/date after a booking or
// cancellation changes availability.
func (c *SlotCache) Invalidate(ctx context.Context, shopID uint, date string) {
	if c == nil {
		return
	}
	pattern := fmt.Sprintf("slots:%d:%s:*", shopID, date)
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		c.rdb.Del(ctx, iter.Val())
	}
}
