// Copyright 2026 The OpenTrusty Authors
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

// Package redis implements sitemeta.Store on Redis, for fleets large enough
// that enumerating installed tenants from the primary database is costly.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/opentrusty/lifecycle/internal/observability/logger"
	"github.com/opentrusty/lifecycle/internal/sitemeta"
	goredis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix   = "sitemeta:"
	indexPrefix = "sitemeta-idx:"
)

// Config holds Redis connection settings.
type Config struct {
	Addr           string
	Password       string
	DB             int
	ConnectTimeout time.Duration
}

// SiteMetaStore keeps one hash per meta key, with hash fields keyed by
// tenant ID, plus a sorted set indexing the tenants whose value is non-empty.
// Index members all score 0 so range queries return them in tenant ID order.
type SiteMetaStore struct {
	client *goredis.Client
}

// NewSiteMetaStore connects to Redis, retrying the initial ping with
// exponential backoff until ConnectTimeout elapses.
func NewSiteMetaStore(ctx context.Context, cfg Config) (*SiteMetaStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = timeout

	ping := func() error {
		err := client.Ping(ctx).Err()
		if err != nil {
			slog.WarnContext(ctx, "redis not ready, retrying", logger.Error(err))
		}
		return err
	}
	if err := backoff.Retry(ping, backoff.WithContext(eb, ctx)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &SiteMetaStore{client: client}, nil
}

// NewSiteMetaStoreFromClient wraps an existing client.
func NewSiteMetaStoreFromClient(client *goredis.Client) *SiteMetaStore {
	return &SiteMetaStore{client: client}
}

func hashKey(key string) string {
	return keyPrefix + key
}

func indexKey(key string) string {
	return indexPrefix + key
}

// Get retrieves a meta value for a tenant
func (s *SiteMetaStore) Get(ctx context.Context, tenantID, key string) (string, error) {
	v, err := s.client.HGet(ctx, hashKey(key), tenantID).Result()
	if errors.Is(err, goredis.Nil) {
		return "", sitemeta.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get site meta: %w", err)
	}
	return v, nil
}

// Set stores a meta value for a tenant and keeps the index in step.
func (s *SiteMetaStore) Set(ctx context.Context, tenantID, key, value string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, hashKey(key), tenantID, value)
		if value == "" {
			pipe.ZRem(ctx, indexKey(key), tenantID)
		} else {
			pipe.ZAdd(ctx, indexKey(key), goredis.Z{Member: tenantID})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set site meta: %w", err)
	}
	return nil
}

// Delete removes a tenant's meta value
func (s *SiteMetaStore) Delete(ctx context.Context, tenantID, key string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HDel(ctx, hashKey(key), tenantID)
		pipe.ZRem(ctx, indexKey(key), tenantID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete site meta: %w", err)
	}
	return nil
}

// TenantsWithKey reads the lowest tenant IDs from the key's index.
func (s *SiteMetaStore) TenantsWithKey(ctx context.Context, key string, limit int) ([]string, error) {
	ids, err := s.client.ZRangeByLex(ctx, indexKey(key), &goredis.ZRangeBy{
		Min:   "-",
		Max:   "+",
		Count: int64(sitemeta.ClampLimit(limit)),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants by meta: %w", err)
	}
	return ids, nil
}

// Ping checks the Redis connection
func (s *SiteMetaStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *SiteMetaStore) Close() error {
	return s.client.Close()
}
