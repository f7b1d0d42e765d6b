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

// Package dockeys holds the per-file document session keys concurrent
// editors converge on. Creation is first-writer-wins per file id; entries
// are mirrored to a durable fallback so a cache restart does not fork keys.
package dockeys

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/rs/xid"

	"github.com/docbridge-team/docbridge/pkg/cmap"
	"github.com/docbridge-team/docbridge/pkg/types"
	"github.com/docbridge-team/docbridge/server/logging"
)

// Generator produces a fresh document key candidate.
type Generator func() (string, error)

// ReleaseObserver is notified after a document key is released, so state
// derived from the key — the published discovery marker — is torn down with
// it rather than resurrecting it on the next open.
type ReleaseObserver interface {
	KeyReleased(ctx context.Context, fileID string)
}

// Store is the document key store. All cross-request state of the protocol
// core lives here and in the permission ledger; everything else is tokens or
// point-in-time platform queries.
type Store struct {
	entries   *cmap.Map[types.DocumentKey]
	mirror    Fallback
	generate  Generator
	observers []ReleaseObserver
}

// GetOrCreateRequest carries the coordinates of an editor-open action.
type GetOrCreateRequest struct {
	FileID    string
	TeamID    string
	UserID    string
	ChannelID string
	MessageTs string
}

// NewStore creates a Store over the given fallback mirror.
func NewStore(mirror Fallback, observers ...ReleaseObserver) *Store {
	return NewStoreWithGenerator(mirror, func() (string, error) {
		return xid.New().String(), nil
	}, observers...)
}

// NewStoreWithGenerator creates a Store with a custom key generator.
func NewStoreWithGenerator(mirror Fallback, generate Generator, observers ...ReleaseObserver) *Store {
	return &Store{
		entries:   cmap.New[types.DocumentKey](),
		mirror:    mirror,
		generate:  generate,
		observers: observers,
	}
}

// GetOrCreate returns the document key for the given file, creating one if
// none exists. Concurrent callers for the same file all receive the winner's
// key; losers' candidates are discarded. A generator failure degrades to a
// fresh per-call key that is not stored, so convergence is lost but the
// editor-open flow never fails here.
func (s *Store) GetOrCreate(ctx context.Context, req GetOrCreateRequest) types.DocumentKey {
	candidate, err := s.generate()
	if err != nil {
		degraded := types.DocumentKey{
			Key:       randomKey(),
			ChannelID: req.ChannelID,
			MessageTs: req.MessageTs,
		}
		logging.From(ctx).Warnw("document key generation failed, serving degraded key",
			"file", req.FileID, "team", req.TeamID, "error", err)
		return degraded
	}

	return s.entries.Upsert(req.FileID, func(existing types.DocumentKey, exists bool) types.DocumentKey {
		if exists {
			return existing
		}

		if mirrored, ok, err := s.mirror.Load(req.FileID); err != nil {
			logging.From(ctx).Warnw("document key mirror lookup failed",
				"file", req.FileID, "error", err)
		} else if ok {
			return mirrored
		}

		entry := types.DocumentKey{
			Key:       candidate,
			ChannelID: req.ChannelID,
			MessageTs: req.MessageTs,
		}
		if err := s.mirror.Store(req.FileID, entry); err != nil {
			logging.From(ctx).Warnw("document key mirror write failed",
				"file", req.FileID, "error", err)
		}
		return entry
	})
}

// Adopt installs a previously published key, e.g. one recovered by
// discovery. First-writer-wins still applies: if an entry already exists,
// the existing one is returned.
func (s *Store) Adopt(ctx context.Context, fileID string, entry types.DocumentKey) types.DocumentKey {
	return s.entries.Upsert(fileID, func(existing types.DocumentKey, exists bool) types.DocumentKey {
		if exists {
			return existing
		}
		if err := s.mirror.Store(fileID, entry); err != nil {
			logging.From(ctx).Warnw("document key mirror write failed",
				"file", fileID, "error", err)
		}
		return entry
	})
}

// Get returns the current entry for the file, consulting the mirror on a
// cache miss without creating anything.
func (s *Store) Get(ctx context.Context, fileID string) (types.DocumentKey, bool) {
	if entry, ok := s.entries.Get(fileID); ok {
		return entry, true
	}

	entry, ok, err := s.mirror.Load(fileID)
	if err != nil {
		logging.From(ctx).Warnw("document key mirror lookup failed",
			"file", fileID, "error", err)
		return types.DocumentKey{}, false
	}
	return entry, ok
}

// Release removes the entry for the file from the cache and the mirror, and
// notifies observers so anything still advertising the key is retracted. It
// is idempotent on missing keys.
func (s *Store) Release(ctx context.Context, fileID string) {
	s.entries.Delete(fileID, func(_ types.DocumentKey, _ bool) bool {
		return true
	})
	if err := s.mirror.Delete(fileID); err != nil {
		logging.From(ctx).Warnw("document key mirror delete failed",
			"file", fileID, "error", err)
	}
	for _, observer := range s.observers {
		observer.KeyReleased(ctx, fileID)
	}
}

// Active returns the number of files with a live document key.
func (s *Store) Active() int {
	return s.entries.Len()
}

// randomKey is the degraded-mode key source. It does not converge across
// callers and is used only when the generator failed.
func randomKey() string {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return xid.New().String()
	}
	return hex.EncodeToString(buf)
}
