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
	"context"
	"fmt"
	"sync"

	"github.com/docbridge-team/docbridge/pkg/types"
	"github.com/docbridge-team/docbridge/server/chat"
	"github.com/docbridge-team/docbridge/server/logging"
)

// RecoveredEntry builds a store entry from a discovered key and the chat
// coordinates it should be re-anchored to.
func RecoveredEntry(key, channelID, messageTs string) types.DocumentKey {
	return types.DocumentKey{Key: key, ChannelID: channelID, MessageTs: messageTs}
}

// markerPrefix starts the text of every published-key marker message, making
// it findable through the platform's message search.
const markerPrefix = "docbridge-key"

// markerRef locates a known marker message so it can be retracted when its
// key is released. The token is the one the marker was published or found
// with; markers are retracted with the same credentials.
type markerRef struct {
	token   string
	channel string
	ts      string
}

// Discovery recovers document keys that outlived the process by reading and
// writing marker messages in the chat platform's own searchable history. The
// history stands in for a key-value log, so no second database is needed
// purely for key recovery.
type Discovery struct {
	chat chat.Client

	mu      sync.Mutex
	markers map[string]markerRef
}

// NewDiscovery creates a Discovery over the given chat client.
func NewDiscovery(chatClient chat.Client) *Discovery {
	return &Discovery{
		chat:    chatClient,
		markers: map[string]markerRef{},
	}
}

func markerText(fileID string) string {
	return markerPrefix + " " + fileID
}

// FindPublishedKey searches history for the marker message of the given file
// and extracts its key. The search is limited to a single result; duplicate
// markers left behind by crash-retries resolve to the first hit rather than
// being reconciled. A found marker is remembered so a later release can
// retract it.
func (d *Discovery) FindPublishedKey(ctx context.Context, ownerToken, fileID string) (string, bool, error) {
	messages, err := d.chat.SearchMessages(ctx, ownerToken, markerText(fileID), 1)
	if err != nil {
		return "", false, fmt.Errorf("search published key: %w", err)
	}
	if len(messages) == 0 {
		return "", false, nil
	}

	for _, attachment := range messages[0].Attachments {
		if attachment.Fallback != "" {
			d.remember(fileID, markerRef{
				token:   ownerToken,
				channel: messages[0].ChannelID,
				ts:      messages[0].Ts,
			})
			return attachment.Fallback, true, nil
		}
	}
	return "", false, nil
}

// PublishKey posts a marker message carrying the file id in its text and the
// key in its attachment fallback, making the key discoverable after a
// restart. Repeat publications for a file whose marker is still standing are
// dropped to bound duplicate markers.
func (d *Discovery) PublishKey(ctx context.Context, ownerToken, fileID, key, channel string) error {
	d.mu.Lock()
	if _, exists := d.markers[fileID]; exists {
		d.mu.Unlock()
		return nil
	}
	// Reserve the slot before posting so concurrent publishers do not race.
	d.markers[fileID] = markerRef{}
	d.mu.Unlock()

	posted, err := d.chat.PostMessage(ctx, ownerToken, channel, "", markerText(fileID), []chat.Attachment{{
		Title:    markerPrefix,
		Footer:   fileID,
		Fallback: key,
	}})
	if err != nil {
		d.forget(fileID)
		return fmt.Errorf("publish key marker: %w", err)
	}

	d.remember(fileID, markerRef{
		token:   ownerToken,
		channel: posted.ChannelID,
		ts:      posted.Ts,
	})
	return nil
}

// KeyReleased retracts the marker of a released key so a later open cannot
// resurrect it through discovery. Retraction is best-effort: a marker that
// cannot be deleted is logged and forgotten locally, which at least re-opens
// publication for the file's next key.
func (d *Discovery) KeyReleased(ctx context.Context, fileID string) {
	d.mu.Lock()
	ref, ok := d.markers[fileID]
	delete(d.markers, fileID)
	d.mu.Unlock()

	if !ok || ref.ts == "" {
		return
	}

	if err := d.chat.DeleteMessage(ctx, ref.token, ref.channel, ref.ts); err != nil {
		logging.From(ctx).Warnw("document key marker retraction failed",
			"file", fileID, "channel", ref.channel, "error", err)
	}
}

func (d *Discovery) remember(fileID string, ref markerRef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.markers[fileID] = ref
}

func (d *Discovery) forget(fileID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.markers, fileID)
}
