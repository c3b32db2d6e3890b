package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces checkpoint keys.
const DefaultRedisPrefix = "convgraph:checkpoint:"

// saveScript stores a checkpoint when the stored turn matches ARGV[1].
// KEYS[1] is the checkpoint hash and KEYS[2] the index set.
// ARGV: expected previous turn, new turn, data, timestamp, id, ttl ms.
var saveScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'turn')
local expected = tonumber(ARGV[1])
if (not cur and expected == 0) or (cur and tonumber(cur) == expected) then
	redis.call('HSET', KEYS[1], 'turn', ARGV[2], 'data', ARGV[3], 'ts', ARGV[4])
	redis.call('SADD', KEYS[2], ARGV[5])
	local ttl = tonumber(ARGV[6])
	if ttl > 0 then
		redis.call('PEXPIRE', KEYS[1], ttl)
	end
	return 1
end
return 0
`)

// RedisStore persists checkpoints in Redis hashes. Saves run as a Lua
// script so the turn comparison and the write are atomic.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration

	mu     sync.RWMutex
	closed bool
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix sets the key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithRedisTTL expires idle conversations after ttl. Zero keeps them forever.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// NewRedisStore creates a store on client. The caller keeps ownership
// of the client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: DefaultRedisPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(conversationID string) string {
	return s.prefix + conversationID
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "index"
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, conversationID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	data, err := s.client.HGet(ctx, s.key(conversationID), "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return Unmarshal(data)
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, cp *Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}
	data, err := cp.Marshal()
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	ok, err := saveScript.Run(ctx, s.client,
		[]string{s.key(cp.ConversationID), s.indexKey()},
		cp.Turn-1, cp.Turn, data, cp.Timestamp.UTC().Format(time.RFC3339Nano),
		cp.ConversationID, s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if ok == 0 {
		return conflict(cp.ConversationID, cp.Turn)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, conversationID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(conversationID))
		pipe.SRem(ctx, s.indexKey(), conversationID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// List implements Store. Conversations whose key expired are pruned from
// the index as they are found.
func (s *RedisStore) List(ctx context.Context) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	sort.Strings(ids)

	infos := make([]Info, 0, len(ids))
	for _, id := range ids {
		vals, err := s.client.HMGet(ctx, s.key(id), "turn", "ts", "data").Result()
		if err != nil {
			return nil, fmt.Errorf("list checkpoints: %w", err)
		}
		if vals[0] == nil {
			if err := s.client.SRem(ctx, s.indexKey(), id).Err(); err != nil {
				return nil, fmt.Errorf("list checkpoints: prune %s: %w", id, err)
			}
			continue
		}
		turn, err := strconv.Atoi(fmt.Sprint(vals[0]))
		if err != nil {
			return nil, fmt.Errorf("list checkpoints: turn of %s: %w", id, err)
		}
		ts, _ := time.Parse(time.RFC3339Nano, fmt.Sprint(vals[1]))
		infos = append(infos, Info{
			ConversationID: id,
			Turn:           turn,
			Timestamp:      ts,
			Size:           int64(len(fmt.Sprint(vals[2]))),
		})
	}
	return infos, nil
}

// Close implements Store. The client is left open.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
