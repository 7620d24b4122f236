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

package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPurpose: Validates the key naming used for meta values and their index.
// Scope: Unit Test
// Expected: Hashes and indexes live in separate namespaces, so no meta key can alias another key's index.
// Test Case ID: RDS-01
func TestKeyNames(t *testing.T) {
	assert.Equal(t, "sitemeta:lifecycle_version", hashKey("lifecycle_version"))
	assert.Equal(t, "sitemeta-idx:lifecycle_version", indexKey("lifecycle_version"))
	assert.NotEqual(t, hashKey("a:idx"), indexKey("a"))
}
