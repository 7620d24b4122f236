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

//go:build integration
// +build integration

package redis

import (
	"context"
	"testing"

	"github.com/opentrusty/lifecycle/internal/sitemeta"
	"github.com/opentrusty/lifecycle/internal/store/storetest"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// TestPurpose: Validates the Redis fleet mirror against the shared site meta contract.
// Scope: Integration Test
// Expected: All sitemeta.Store contract cases pass on a real Redis server.
// Test Case ID: RDS-03
func TestSiteMetaStore_Contract(t *testing.T) {
	t.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	uri, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := goredis.ParseURL(uri)
	require.NoError(t, err)

	storetest.RunSiteMetaStore(t, func(t *testing.T) sitemeta.Store {
		client := goredis.NewClient(opts)
		require.NoError(t, client.FlushDB(ctx).Err())
		t.Cleanup(func() { _ = client.Close() })
		return NewSiteMetaStoreFromClient(client)
	})
}

// TestPurpose: Validates that the tenant index follows every write.
// Scope: Integration Test
// Expected: The index holds exactly the tenants with a non-empty value, and listing honours the limit in tenant ID order.
// Test Case ID: RDS-04
func TestSiteMetaStore_Index(t *testing.T) {
	t.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	uri, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := goredis.ParseURL(uri)
	require.NoError(t, err)
	client := goredis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	store := NewSiteMetaStoreFromClient(client)

	const key = "lifecycle_version"
	for _, id := range []string{"site-d", "site-b", "site-a", "site-c"} {
		require.NoError(t, store.Set(ctx, id, key, "1.0.0"))
	}
	require.NoError(t, store.Set(ctx, "site-b", key, ""))
	require.NoError(t, store.Delete(ctx, "site-c", key))

	members, err := client.ZRange(ctx, indexKey(key), 0, -1).Result()
	require.NoError(t, err)
	require.Equal(t, []string{"site-a", "site-d"}, members)

	ids, err := store.TenantsWithKey(ctx, key, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"site-a"}, ids)

	v, err := store.Get(ctx, "site-b", key)
	require.NoError(t, err)
	require.Equal(t, "", v)
}
