// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	apperrors "schedule-designgen/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

const (
	fieldMeta     = "meta"
	fieldRaster   = "raster"
	fieldDocument = "document"
)

// RedisStore keeps each artifact in a hash and tracks keys in a set.
//
//	<prefix>:artifact:<key>  hash {meta, raster, document}
//	<prefix>:artifacts       set of keys
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "designgen"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) artifactKey(key string) string {
	return fmt.Sprintf("%s:artifact:%s", s.prefix, key)
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":artifacts"
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Artifact, error) {
	fields, err := s.client.HGetAll(ctx, s.artifactKey(key)).Result()
	if err != nil {
		return nil, apperrors.NewCacheReadFailedError(key, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	var a Artifact
	if err := json.Unmarshal([]byte(fields[fieldMeta]), &a.Meta); err != nil {
		return nil, apperrors.NewCacheReadFailedError(key, fmt.Errorf("decode meta: %w", err))
	}
	a.RasterBytes = []byte(fields[fieldRaster])
	a.DocumentBytes = []byte(fields[fieldDocument])
	return &a, nil
}

func (s *RedisStore) Put(ctx context.Context, a *Artifact) error {
	meta, err := json.Marshal(a.meta())
	if err != nil {
		return apperrors.NewCacheWriteFailedError(a.Key, fmt.Errorf("encode meta: %w", err))
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.artifactKey(a.Key),
			fieldMeta, meta,
			fieldRaster, a.RasterBytes,
			fieldDocument, a.DocumentBytes,
		)
		pipe.SAdd(ctx, s.indexKey(), a.Key)
		return nil
	})
	if err != nil {
		return apperrors.NewCacheWriteFailedError(a.Key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.artifactKey(key))
		pipe.SRem(ctx, s.indexKey(), key)
		return nil
	})
	if err != nil {
		return apperrors.NewCacheWriteFailedError(key, err)
	}
	return nil
}

// List returns metadata sorted by key. Index entries whose hash vanished are skipped.
func (s *RedisStore) List(ctx context.Context) ([]Meta, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, apperrors.NewCacheReadFailedError(s.indexKey(), err)
	}
	if len(keys) == 0 {
		return []Meta{}, nil
	}
	sort.Strings(keys)

	cmds := make([]*redis.StringCmd, len(keys))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = pipe.HGet(ctx, s.artifactKey(k), fieldMeta)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, apperrors.NewCacheReadFailedError(s.indexKey(), err)
	}

	out := make([]Meta, 0, len(keys))
	for i, cmd := range cmds {
		raw, err := cmd.Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, apperrors.NewCacheReadFailedError(keys[i], err)
		}
		var m Meta
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, apperrors.NewCacheReadFailedError(keys[i], fmt.Errorf("decode meta: %w", err))
		}
		out = append(out, m)
	}
	return out, nil
}
