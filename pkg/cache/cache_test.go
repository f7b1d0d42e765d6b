/*
 * Copyright 2025 The DocBridge Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/docbridge-team/docbridge/pkg/cache"
)

func TestCache(t *testing.T) {
	t.Run("invalid max size test", func(t *testing.T) {
		lruCache, err := cache.NewLRUExpireCache[string, string](0)
		assert.Nil(t, lruCache)
		assert.ErrorIs(t, err, cache.ErrInvalidMaxSize)
	})

	t.Run("add and get test", func(t *testing.T) {
		lruCache, err := cache.NewLRUExpireCache[string, int](10)
		assert.NoError(t, err)

		lruCache.Add("request", 1, time.Minute)
		value, ok := lruCache.Get("request")
		assert.True(t, ok)
		assert.Equal(t, 1, value)

		_, ok = lruCache.Get("missing")
		assert.False(t, ok)
	})

	t.Run("expired entry test", func(t *testing.T) {
		lruCache, err := cache.NewLRUExpireCache[string, int](10)
		assert.NoError(t, err)

		lruCache.Add("request", 1, -time.Second)
		_, ok := lruCache.Get("request")
		assert.False(t, ok)
	})

	t.Run("eviction beyond max size test", func(t *testing.T) {
		lruCache, err := cache.NewLRUExpireCache[int, int](2)
		assert.NoError(t, err)

		lruCache.Add(1, 1, time.Minute)
		lruCache.Add(2, 2, time.Minute)
		lruCache.Add(3, 3, time.Minute)
		assert.Equal(t, 2, lruCache.Len())

		_, ok := lruCache.Get(1)
		assert.False(t, ok)
		value, ok := lruCache.Get(3)
		assert.True(t, ok)
		assert.Equal(t, 3, value)
	})

	t.Run("recently used entry survives eviction test", func(t *testing.T) {
		lruCache, err := cache.NewLRUExpireCache[int, int](2)
		assert.NoError(t, err)

		lruCache.Add(1, 1, time.Minute)
		lruCache.Add(2, 2, time.Minute)
		_, ok := lruCache.Get(1)
		assert.True(t, ok)

		lruCache.Add(3, 3, time.Minute)
		_, ok = lruCache.Get(1)
		assert.True(t, ok)
		_, ok = lruCache.Get(2)
		assert.False(t, ok)
	})

	t.Run("remove test", func(t *testing.T) {
		lruCache, err := cache.NewLRUExpireCache[string, int](10)
		assert.NoError(t, err)

		lruCache.Add("request", 1, time.Minute)
		lruCache.Remove("request")
		_, ok := lruCache.Get("request")
		assert.False(t, ok)
		assert.Equal(t, 0, lruCache.Len())
	})

	t.Run("update existing entry test", func(t *testing.T) {
		lruCache, err := cache.NewLRUExpireCache[string, int](10)
		assert.NoError(t, err)

		lruCache.Add("request", 1, time.Minute)
		lruCache.Add("request", 2, time.Minute)
		value, ok := lruCache.Get("request")
		assert.True(t, ok)
		assert.Equal(t, 2, value)
		assert.Equal(t, 1, lruCache.Len())
	})
}
