// Copyright 2024 OpenMedPlan Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/openmedplan/planservice/pkg/document"
)

const memoryDataExpiration = 10 * time.Second

// Redis stores each key namespace as one Redis hash. Assembled documents are
// kept in a small in-memory cache keyed by key and eTag; since every
// successful write reissues the eTag, cached entries can never serve stale
// content.
type Redis struct {
	rdb      *redis.Client
	memCache *cache.Cache
}

// NewRedis connects a Redis-backed store.
func NewRedis(uri string, password string, db int) *Redis {
	options := redis.Options{
		Addr:     uri,
		Password: password,
		DB:       db,
	}
	zap.S().Debugf("Initializing redis store against %s db %d", uri, db)

	return &Redis{
		rdb:      redis.NewClient(&options),
		memCache: cache.New(memoryDataExpiration, 2*memoryDataExpiration),
	}
}

// Ping checks connectivity; wired into the readiness probe.
func (s *Redis) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close releases the client connections.
func (s *Redis) Close() error {
	return s.rdb.Close()
}

func (s *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis EXISTS %q: %w", key, err)
	}
	return n > 0, nil
}

func (s *Redis) PutDocument(ctx context.Context, key string, doc document.Value) error {
	namespaces, err := document.Flatten(key, doc)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	for ns, fields := range namespaces {
		pipe.Del(ctx, ns)
		if len(fields) == 0 {
			continue
		}
		args := make(map[string]interface{}, len(fields))
		for f, v := range fields {
			args[f] = v
		}
		pipe.HSet(ctx, ns, args)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline storing %q: %w", key, err)
	}
	return nil
}

func (s *Redis) GetDocument(ctx context.Context, key string) (document.Value, error) {
	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return document.Null, fmt.Errorf("redis HGETALL %q: %w", key, err)
	}
	if len(fields) == 0 {
		return document.Null, ErrNotFound
	}

	etag := fields[ETagField]
	delete(fields, ETagField)

	if etag != "" {
		if raw, hit := s.memCache.Get(key + "@" + etag); hit {
			return document.Parse(raw.([]byte))
		}
	}

	doc, err := document.Assemble(fields, func(childKey string) (map[string]string, error) {
		childFields, err := s.rdb.HGetAll(ctx, childKey).Result()
		if err != nil {
			return nil, fmt.Errorf("redis HGETALL %q: %w", childKey, err)
		}
		if len(childFields) == 0 {
			return nil, ErrNotFound
		}
		delete(childFields, ETagField)
		return childFields, nil
	})
	if err != nil {
		return document.Null, err
	}

	if etag != "" {
		s.memCache.SetDefault(key+"@"+etag, doc.Canonical())
	}
	return doc, nil
}

func (s *Redis) GetField(ctx context.Context, key, field string) (string, error) {
	value, err := s.rdb.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis HGET %q %q: %w", key, field, err)
	}
	return value, nil
}

func (s *Redis) SetField(ctx context.Context, key, field, value string) error {
	if err := s.rdb.HSet(ctx, key, field, value).Err(); err != nil {
		return fmt.Errorf("redis HSET %q %q: %w", key, field, err)
	}
	return nil
}

func (s *Redis) DeleteDocument(ctx context.Context, key string) error {
	visited := map[string]bool{}
	queue := []string{key}
	var all []string
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if visited[k] {
			continue
		}
		visited[k] = true
		fields, err := s.rdb.HGetAll(ctx, k).Result()
		if err != nil {
			return fmt.Errorf("redis HGETALL %q: %w", k, err)
		}
		if len(fields) == 0 {
			if k == key {
				return ErrNotFound
			}
			continue
		}
		all = append(all, k)
		queue = append(queue, document.RefKeys(fields)...)
	}
	if err := s.rdb.Del(ctx, all...).Err(); err != nil {
		return fmt.Errorf("redis DEL %q cascade: %w", key, err)
	}
	return nil
}
