package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/predictory-labs/predictory/internal/client"
	"github.com/predictory-labs/predictory/internal/domain"
)

const eventTTL = 5 * time.Minute

// EventCache caches full event snapshots as JSON with a secondary
// authority-to-event index.
//
// Key schema:
//
//	event:{id}                 - hash with field "data" containing JSON
//	event:authority:{address}  - set of event IDs organized by that address
type EventCache struct {
	rdb *redis.Client
}

// NewEventCache creates an EventCache backed by the given Client.
func NewEventCache(c *Client) *EventCache {
	return &EventCache{rdb: c.Underlying()}
}

func eventKey(id string) string            { return "event:" + id }
func eventAuthorityKey(addr string) string { return "event:authority:" + addr }

// Set stores an event snapshot with a 5-minute TTL and indexes it under its
// organizer's address.
func (ec *EventCache) Set(ctx context.Context, snap client.EventSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal event %s: %w", snap.Event.ID, err)
	}

	id := snap.Event.ID.String()
	key := eventKey(id)
	authKey := eventAuthorityKey(snap.Event.Authority.String())

	pipe := ec.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, eventTTL)
	pipe.SAdd(ctx, authKey, id)
	pipe.Expire(ctx, authKey, eventTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set event %s: %w", id, err)
	}
	return nil
}

// Get retrieves a cached event snapshot by event ID.
// It returns domain.ErrNotFound when the key does not exist.
func (ec *EventCache) Get(ctx context.Context, id domain.EventID) (client.EventSnapshot, error) {
	data, err := ec.rdb.HGet(ctx, eventKey(id.String()), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return client.EventSnapshot{}, domain.ErrNotFound
		}
		return client.EventSnapshot{}, fmt.Errorf("redis: get event %s: %w", id, err)
	}

	var snap client.EventSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return client.EventSnapshot{}, fmt.Errorf("redis: unmarshal event %s: %w", id, err)
	}
	return snap, nil
}

// ListByAuthority returns the cached event IDs organized by an address.
func (ec *EventCache) ListByAuthority(ctx context.Context, addr string) ([]domain.EventID, error) {
	members, err := ec.rdb.SMembers(ctx, eventAuthorityKey(addr)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list events by authority %s: %w", addr, err)
	}

	out := make([]domain.EventID, 0, len(members))
	for _, m := range members {
		id, err := domain.ParseEventID(m)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// Invalidate removes an event snapshot and its authority index entry.
func (ec *EventCache) Invalidate(ctx context.Context, id domain.EventID) error {
	snap, err := ec.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("redis: invalidate event %s: %w", id, err)
	}

	pipe := ec.rdb.TxPipeline()
	pipe.Del(ctx, eventKey(id.String()))

	// Only drop the index entry if the snapshot was readable.
	if err == nil {
		pipe.SRem(ctx, eventAuthorityKey(snap.Event.Authority.String()), id.String())
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: invalidate event %s: %w", id, err)
	}
	return nil
}
