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

// Package cmap provides a string-keyed concurrent map. It is sharded to
// reduce lock contention when many requests touch different keys.
package cmap

import (
	"hash/fnv"
	"sync"
)

// numShards is the number of shards.
const numShards = 32

type shard[V any] struct {
	sync.RWMutex
	items map[string]V
}

// Map is a concurrent map that is safe for multiple routines.
type Map[V any] struct {
	shards [numShards]shard[V]
}

// New creates a new Map.
func New[V any]() *Map[V] {
	m := &Map[V]{}
	for i := 0; i < numShards; i++ {
		m.shards[i].items = make(map[string]V)
	}
	return m
}

func (m *Map[V]) shardForKey(key string) *shard[V] {
	hash := fnv.New32a()
	// fnv's Write never returns an error.
	_, _ = hash.Write([]byte(key))
	return &m.shards[hash.Sum32()%numShards]
}

// Set sets a key-value pair.
func (m *Map[V]) Set(key string, value V) {
	shard := m.shardForKey(key)

	shard.Lock()
	defer shard.Unlock()

	shard.items[key] = value
}

// UpsertFunc is a function to insert or update a key-value pair.
type UpsertFunc[V any] func(value V, exists bool) V

// Upsert atomically inserts or updates a key-value pair and returns the
// stored value. The shard lock is held for the duration of upsertFunc, so
// concurrent upserts of the same key observe each other's results.
func (m *Map[V]) Upsert(key string, upsertFunc UpsertFunc[V]) V {
	shard := m.shardForKey(key)

	shard.Lock()
	defer shard.Unlock()

	v, exists := shard.items[key]
	res := upsertFunc(v, exists)
	shard.items[key] = res
	return res
}

// Get retrieves a value from the map.
func (m *Map[V]) Get(key string) (V, bool) {
	shard := m.shardForKey(key)

	shard.RLock()
	defer shard.RUnlock()

	value, exists := shard.items[key]
	return value, exists
}

// Has checks if a key exists in the map.
func (m *Map[V]) Has(key string) bool {
	shard := m.shardForKey(key)

	shard.RLock()
	defer shard.RUnlock()

	_, exists := shard.items[key]
	return exists
}

// DeleteFunc is a function to decide whether a value should be deleted.
type DeleteFunc[V any] func(value V, exists bool) bool

// Delete removes a value from the map if deleteFunc returns true.
func (m *Map[V]) Delete(key string, deleteFunc DeleteFunc[V]) bool {
	shard := m.shardForKey(key)

	shard.Lock()
	defer shard.Unlock()

	value, exists := shard.items[key]
	del := deleteFunc(value, exists)
	if del && exists {
		delete(shard.items, key)
	}

	return del
}

// Len returns the number of items in the map.
func (m *Map[V]) Len() int {
	count := 0

	for i := 0; i < numShards; i++ {
		shard := &m.shards[i]

		shard.RLock()
		count += len(shard.items)
		shard.RUnlock()
	}

	return count
}

// Keys returns a slice of all keys in the map.
func (m *Map[V]) Keys() []string {
	keys := make([]string, 0)

	for i := 0; i < numShards; i++ {
		shard := &m.shards[i]

		shard.RLock()
		for k := range shard.items {
			keys = append(keys, k)
		}
		shard.RUnlock()
	}
	return keys
}
