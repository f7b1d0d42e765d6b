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

// Package permissions stores per-file edit permissions inside the anchoring
// chat message's attachments. The attachment footer carries
// "fileID:permission" and the fallback carries the comma-joined shared user
// ids, so the chat platform itself is the ledger's datastore.
package permissions

import (
	"context"
	"fmt"
	"strings"

	"github.com/docbridge-team/docbridge/internal/validation"
	"github.com/docbridge-team/docbridge/pkg/locker"
	"github.com/docbridge-team/docbridge/pkg/types"
	"github.com/docbridge-team/docbridge/server/chat"
	"github.com/docbridge-team/docbridge/server/credentials"
	"github.com/docbridge-team/docbridge/server/logging"
)

// emptyFallback is the fallback sentinel for a record with no shared users.
// Some platforms drop attachments with an empty fallback, hence a literal.
const emptyFallback = "empty"

// Query locates the anchoring message of a file and names the acting user.
type Query struct {
	FileID    string `validate:"required,slug"`
	TeamID    string `validate:"required,slug"`
	UserID    string `validate:"required,slug"`
	Channel   string `validate:"required,slug"`
	ThreadTs  string
	MessageTs string `validate:"required"`
}

// Ledger reads and writes permission records over the chat platform.
type Ledger struct {
	chat     chat.Client
	resolver credentials.Resolver
	lockers  *locker.Locker
}

// NewLedger creates a new Ledger.
func NewLedger(chatClient chat.Client, resolver credentials.Resolver) *Ledger {
	return &Ledger{
		chat:     chatClient,
		resolver: resolver,
		lockers:  locker.New(),
	}
}

// BuildAttachment packs a permission record into a message attachment.
func BuildAttachment(rec types.PermissionRecord) chat.Attachment {
	fallback := emptyFallback
	if len(rec.SharedUsers) > 0 {
		fallback = strings.Join(rec.SharedUsers, ",")
	}

	return chat.Attachment{
		Title:    "shared file permissions",
		Footer:   rec.FileID + ":" + string(rec.Default),
		Fallback: fallback,
	}
}

// ParseAttachment unpacks the attachment belonging to the given file. The
// second return value is false when the attachment encodes a different file
// or is not a permission attachment at all.
func ParseAttachment(fileID string, attachment chat.Attachment) (types.PermissionRecord, bool) {
	if !strings.HasPrefix(attachment.Footer, fileID+":") {
		return types.PermissionRecord{}, false
	}

	record := types.PermissionRecord{
		FileID:  fileID,
		Default: types.ParsePermission(strings.TrimPrefix(attachment.Footer, fileID+":")),
	}
	if attachment.Fallback != "" && attachment.Fallback != emptyFallback {
		record.SharedUsers = strings.Split(attachment.Fallback, ",")
	}
	return record, true
}

// HasEdit reports whether the requesting user may edit the file. Absence of
// a matching attachment means read-only; lookup failures degrade to
// read-only as well, never to an error. File owners are granted edit by the
// session assembly upstream, not here.
func (l *Ledger) HasEdit(ctx context.Context, q Query) bool {
	record, ok := l.lookup(ctx, q)
	if !ok {
		return false
	}
	return record.Allows(q.UserID)
}

// Read returns the parsed permission record of the file, or a zero record
// when no attachment matches or the installer cannot be resolved.
func (l *Ledger) Read(ctx context.Context, q Query) types.PermissionRecord {
	record, ok := l.lookup(ctx, q)
	if !ok {
		return types.PermissionRecord{FileID: q.FileID, Default: types.PermissionRead}
	}
	return record
}

// Write replaces the file's permission attachment on the anchoring message.
// The whole attachment list is rewritten: attachments of other files are
// kept, the file's old attachment is dropped, and a new one is appended only
// if the record is non-trivial. Writers within this process are serialized
// per anchoring message; concurrent writers in other processes can still
// overwrite each other (last-writer-wins, known limitation).
func (l *Ledger) Write(ctx context.Context, rec types.PermissionRecord, q Query) error {
	if err := validation.ValidateStruct(q); err != nil {
		return fmt.Errorf("validate permission query: %w", err)
	}

	installer, err := l.resolver.FindInstaller(ctx, q.TeamID, q.UserID)
	if err != nil {
		return fmt.Errorf("resolve installer: %w", err)
	}

	lockName := q.Channel + "/" + q.MessageTs
	l.lockers.Lock(lockName)
	defer func() {
		if err := l.lockers.Unlock(lockName); err != nil {
			logging.From(ctx).Warn(err)
		}
	}()

	anchor, err := l.anchor(ctx, installerToken(installer), q)
	if err != nil {
		return fmt.Errorf("resolve anchoring message: %w", err)
	}

	attachments := make([]chat.Attachment, 0, len(anchor.Attachments)+1)
	for _, attachment := range anchor.Attachments {
		if _, ok := ParseAttachment(q.FileID, attachment); ok {
			continue
		}
		attachments = append(attachments, attachment)
	}
	if !rec.IsTrivial() {
		attachments = append(attachments, BuildAttachment(rec))
	}

	// The platform rejects fully empty message updates.
	text := anchor.Text
	if text == "" {
		text = " "
	}

	if err := l.chat.UpdateMessage(ctx, installerToken(installer), anchor.ChannelID, anchor.Ts, text, attachments); err != nil {
		return fmt.Errorf("update anchoring message: %w", err)
	}
	return nil
}

// lookup finds the file's permission attachment. The boolean is false on any
// failure so callers degrade to default/read-only.
func (l *Ledger) lookup(ctx context.Context, q Query) (types.PermissionRecord, bool) {
	installer, err := l.resolver.FindInstaller(ctx, q.TeamID, q.UserID)
	if err != nil {
		logging.From(ctx).Warnw("permission lookup: installer unresolved",
			"team", q.TeamID, "user", q.UserID, "error", err)
		return types.PermissionRecord{}, false
	}

	anchor, err := l.anchor(ctx, installerToken(installer), q)
	if err != nil {
		logging.From(ctx).Warnw("permission lookup failed",
			"file", q.FileID, "channel", q.Channel, "error", err)
		return types.PermissionRecord{}, false
	}

	for _, attachment := range anchor.Attachments {
		if record, ok := ParseAttachment(q.FileID, attachment); ok {
			return record, true
		}
	}
	return types.PermissionRecord{}, false
}

// anchor resolves the anchoring message by thread and timestamp range. The
// platform's reply semantics return the thread root alongside the reply, in
// which case the reply is the anchor.
func (l *Ledger) anchor(ctx context.Context, token string, q Query) (chat.Message, error) {
	threadTs := q.ThreadTs
	if threadTs == "" {
		threadTs = q.MessageTs
	}

	messages, err := l.chat.Replies(ctx, token, q.Channel, threadTs, q.MessageTs, q.MessageTs, 2)
	if err != nil {
		return chat.Message{}, fmt.Errorf("fetch replies: %w", err)
	}
	if len(messages) == 0 {
		return chat.Message{}, chat.ErrNotFound
	}

	for _, message := range messages {
		if message.Ts == q.MessageTs {
			return message, nil
		}
	}
	return messages[len(messages)-1], nil
}

func installerToken(installer credentials.Installer) string {
	if installer.BotToken != "" {
		return installer.BotToken
	}
	return installer.UserToken
}
