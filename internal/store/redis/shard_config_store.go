package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

// ShardConfigStore persists shard documents as whole JSON values.
//
// Key schema:
//
//	shard:{id}   - the shard's full document as one JSON string
//	shards       - set of known shard ids
//
// A document is always written with a single SET, so readers observe either
// the previous document or the new one, never a mix.
type ShardConfigStore struct {
	rdb *redis.Client
}

// NewShardConfigStore creates a ShardConfigStore backed by the given Client.
func NewShardConfigStore(c *Client) *ShardConfigStore {
	return &ShardConfigStore{rdb: c.Underlying()}
}

func shardKey(id domain.ShardID) string {
	return "shard:" + strconv.Itoa(int(id))
}

const shardIndexKey = "shards"

// Get reads one shard's document. Returns domain.ErrNotFound when the shard
// has never been published.
func (s *ShardConfigStore) Get(ctx context.Context, shard domain.ShardID) (domain.ShardDocument, error) {
	raw, err := s.rdb.Get(ctx, shardKey(shard)).Bytes()
	if err == redis.Nil {
		return domain.ShardDocument{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ShardDocument{}, fmt.Errorf("redis: get shard %d: %w", shard, err)
	}

	var doc domain.ShardDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.ShardDocument{}, fmt.Errorf("redis: decode shard %d: %w", shard, err)
	}
	return doc, nil
}

// Put replaces the shard's document and records the shard id in the index.
func (s *ShardConfigStore) Put(ctx context.Context, doc domain.ShardDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("redis: encode shard %d: %w", doc.Shard, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, shardKey(doc.Shard), raw, 0)
	pipe.SAdd(ctx, shardIndexKey, int(doc.Shard))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: put shard %d: %w", doc.Shard, err)
	}
	return nil
}

// ListShards returns every shard id that has ever been published, ascending.
func (s *ShardConfigStore) ListShards(ctx context.Context) ([]domain.ShardID, error) {
	members, err := s.rdb.SMembers(ctx, shardIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list shards: %w", err)
	}

	ids := make([]domain.ShardID, 0, len(members))
	for _, m := range members {
		n, err := strconv.Atoi(m)
		if err != nil {
			return nil, fmt.Errorf("redis: bad shard id %q: %w", m, err)
		}
		ids = append(ids, domain.ShardID(n))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Compile-time interface check.
var _ domain.ShardConfigStore = (*ShardConfigStore)(nil)
