package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// OutboxCap bounds the offline queue per user; oldest entries are shed first.
const OutboxCap = 1000

const (
	connKeyPrefix   = "presence:conns:"
	outboxKeyPrefix = "presence:outbox:"
	eventChannel    = "chat:events"
)

// unregister removes a connection and drops the key when the set empties,
// in a single round trip so a concurrent Register cannot observe an empty set.
var unregisterScript = redis.NewScript(`
redis.call('SREM', KEYS[1], ARGV[1])
if redis.call('SCARD', KEYS[1]) == 0 then
	redis.call('DEL', KEYS[1])
end
return redis.call('SCARD', KEYS[1])
`)

// Registry tracks which connections each user currently holds.
type Registry interface {
	Register(ctx context.Context, userID, connID string) error
	Unregister(ctx context.Context, userID, connID string) error
	LiveConns(ctx context.Context, userID string) ([]string, error)
	IsOnline(ctx context.Context, userID string) (bool, error)
}

// Outbox queues events for users with no live connection.
type Outbox interface {
	Enqueue(ctx context.Context, userID string, payload []byte) error
	Drain(ctx context.Context, userID string) ([][]byte, error)
}

// Bus carries serialized events between processes.
type Bus interface {
	Publish(ctx context.Context, envelope Envelope) error
	Subscribe(ctx context.Context, handler func(Envelope)) error
}

// Envelope is the cross-process fan-out unit: one event for one user.
type Envelope struct {
	UserID  string          `json:"user_id"`
	Payload json.RawMessage `json:"payload"`
}

// Store implements Registry, Outbox and Bus on Redis.
type Store struct {
	rdb *redis.Client
}

// NewStore wraps a Redis client.
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func connKey(userID string) string   { return connKeyPrefix + userID }
func outboxKey(userID string) string { return outboxKeyPrefix + userID }

// Register records a connection. Repeated registration of the same
// connection id is a no-op.
func (s *Store) Register(ctx context.Context, userID, connID string) error {
	if err := s.rdb.SAdd(ctx, connKey(userID), connID).Err(); err != nil {
		return fmt.Errorf("register conn: %w", err)
	}
	return nil
}

// Unregister removes a connection, deleting the whole set when it was the last.
func (s *Store) Unregister(ctx context.Context, userID, connID string) error {
	if err := unregisterScript.Run(ctx, s.rdb, []string{connKey(userID)}, connID).Err(); err != nil {
		return fmt.Errorf("unregister conn: %w", err)
	}
	return nil
}

// LiveConns returns the user's registered connection ids.
func (s *Store) LiveConns(ctx context.Context, userID string) ([]string, error) {
	conns, err := s.rdb.SMembers(ctx, connKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("live conns: %w", err)
	}
	return conns, nil
}

// IsOnline reports whether the user holds at least one connection.
func (s *Store) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := s.rdb.SCard(ctx, connKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("is online: %w", err)
	}
	return n > 0, nil
}

// Enqueue appends an event to the user's offline queue, shedding the oldest
// entries beyond OutboxCap.
func (s *Store) Enqueue(ctx context.Context, userID string, payload []byte) error {
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, outboxKey(userID), payload)
	pipe.LTrim(ctx, outboxKey(userID), -OutboxCap, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue outbox: %w", err)
	}
	return nil
}

// Drain returns and clears the user's queued events in arrival order.
func (s *Store) Drain(ctx context.Context, userID string) ([][]byte, error) {
	pipe := s.rdb.TxPipeline()
	lrange := pipe.LRange(ctx, outboxKey(userID), 0, -1)
	pipe.Del(ctx, outboxKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("drain outbox: %w", err)
	}
	raw := lrange.Val()
	out := make([][]byte, 0, len(raw))
	for _, item := range raw {
		out = append(out, []byte(item))
	}
	return out, nil
}

// Publish broadcasts an envelope to every process.
func (s *Store) Publish(ctx context.Context, envelope Envelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := s.rdb.Publish(ctx, eventChannel, body).Err(); err != nil {
		return fmt.Errorf("publish envelope: %w", err)
	}
	return nil
}

// Subscribe delivers envelopes to handler until ctx is cancelled.
func (s *Store) Subscribe(ctx context.Context, handler func(Envelope)) error {
	sub := s.rdb.Subscribe(ctx, eventChannel)
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					log.Printf("presence: dropping malformed envelope: %v", err)
					continue
				}
				handler(env)
			}
		}
	}()
	return nil
}

// Cache is a small read-through JSON cache used for group and invite lookups.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache wraps a Redis client with a default ttl.
func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// Get unmarshals the cached value into dest; ok is false on miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("cache decode: %w", err)
	}
	return true, nil
}

// Set stores value under key for the cache ttl.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.rdb.Set(ctx, key, body, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Del invalidates keys.
func (c *Cache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache del: %w", err)
	}
	return nil
}
