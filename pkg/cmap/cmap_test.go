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

package cmap_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docbridge-team/docbridge/pkg/cmap"
)

func TestMap(t *testing.T) {
	t.Run("set and get test", func(t *testing.T) {
		m := cmap.New[int]()
		m.Set("a", 1)
		value, ok := m.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 1, value)
		assert.True(t, m.Has("a"))
		assert.False(t, m.Has("b"))
	})

	t.Run("upsert keeps existing value test", func(t *testing.T) {
		m := cmap.New[int]()
		first := m.Upsert("a", func(value int, exists bool) int {
			assert.False(t, exists)
			return 1
		})
		assert.Equal(t, 1, first)

		second := m.Upsert("a", func(value int, exists bool) int {
			assert.True(t, exists)
			assert.Equal(t, 1, value)
			return value
		})
		assert.Equal(t, 1, second)
		assert.Equal(t, 1, m.Len())
	})

	t.Run("conditional delete test", func(t *testing.T) {
		m := cmap.New[int]()
		m.Set("a", 1)

		deleted := m.Delete("a", func(value int, exists bool) bool {
			return exists && value == 2
		})
		assert.False(t, deleted)
		assert.True(t, m.Has("a"))

		deleted = m.Delete("a", func(value int, exists bool) bool {
			return exists && value == 1
		})
		assert.True(t, deleted)
		assert.False(t, m.Has("a"))
	})

	t.Run("keys and len test", func(t *testing.T) {
		m := cmap.New[int]()
		for i := 0; i < 100; i++ {
			m.Set(fmt.Sprintf("k%d", i), i)
		}
		assert.Equal(t, 100, m.Len())
		assert.Len(t, m.Keys(), 100)
	})

	t.Run("concurrent upsert test", func(t *testing.T) {
		m := cmap.New[int]()

		var wg sync.WaitGroup
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				m.Upsert("counter", func(value int, exists bool) int {
					return value + 1
				})
			}()
		}
		wg.Wait()

		value, ok := m.Get("counter")
		assert.True(t, ok)
		assert.Equal(t, 64, value)
	})
}
