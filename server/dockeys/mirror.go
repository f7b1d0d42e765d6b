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

package dockeys

import (
	"fmt"

	"github.com/hashicorp/go-memdb"

	"github.com/docbridge-team/docbridge/pkg/types"
)

// Fallback is the durable mirror behind the key store's cache. The cache
// writes through to it, and consults it on a miss, so a cache restart does
// not fork document keys for files whose editors already converged.
type Fallback interface {
	// Store persists the winner entry for the given file.
	Store(fileID string, entry types.DocumentKey) error

	// Load returns the persisted entry for the given file, if any.
	Load(fileID string) (types.DocumentKey, bool, error)

	// Delete removes the persisted entry. It is idempotent.
	Delete(fileID string) error
}

const tblDocumentKeys = "document_keys"

var mirrorSchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblDocumentKeys: {
			Name: tblDocumentKeys,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "FileID"},
				},
			},
		},
	},
}

// keyRecord wraps a DocumentKey with its file id for memdb storage.
type keyRecord struct {
	FileID    string
	Key       string
	ChannelID string
	MessageTs string
}

// Mirror is a memdb-backed Fallback. It outlives cache evictions within the
// process; distributed deployments substitute their own Fallback.
type Mirror struct {
	db *memdb.MemDB
}

// NewMirror creates a new Mirror.
func NewMirror() (*Mirror, error) {
	db, err := memdb.NewMemDB(mirrorSchema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}

	return &Mirror{db: db}, nil
}

// Store implements Fallback.
func (m *Mirror) Store(fileID string, entry types.DocumentKey) error {
	txn := m.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(tblDocumentKeys, &keyRecord{
		FileID:    fileID,
		Key:       entry.Key,
		ChannelID: entry.ChannelID,
		MessageTs: entry.MessageTs,
	}); err != nil {
		return fmt.Errorf("insert document key: %w", err)
	}

	txn.Commit()
	return nil
}

// Load implements Fallback.
func (m *Mirror) Load(fileID string) (types.DocumentKey, bool, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblDocumentKeys, "id", fileID)
	if err != nil {
		return types.DocumentKey{}, false, fmt.Errorf("find document key: %w", err)
	}
	if raw == nil {
		return types.DocumentKey{}, false, nil
	}

	record := raw.(*keyRecord)
	return types.DocumentKey{
		Key:       record.Key,
		ChannelID: record.ChannelID,
		MessageTs: record.MessageTs,
	}, true, nil
}

// Delete implements Fallback.
func (m *Mirror) Delete(fileID string) error {
	txn := m.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblDocumentKeys, "id", fileID)
	if err != nil {
		return fmt.Errorf("find document key: %w", err)
	}
	if raw == nil {
		return nil
	}

	if err := txn.Delete(tblDocumentKeys, raw); err != nil {
		return fmt.Errorf("delete document key: %w", err)
	}

	txn.Commit()
	return nil
}
