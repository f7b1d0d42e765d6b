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

// Package chattest provides an in-memory chat.Client for tests.
package chattest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/docbridge-team/docbridge/server/chat"
)

// Fake is an in-memory implementation of chat.Client. All state is guarded
// by a single mutex; tests may seed and inspect it directly through the
// helper methods.
type Fake struct {
	mu sync.Mutex

	messages  []chat.Message
	scheduled []chat.ScheduledMessage
	files     map[string]chat.FileInfo
	contents  map[string][]byte
	users     map[string]chat.UserInfo
	uploads   []Upload
	directs   []DirectMessage

	nextTs      int
	nextSchedID int

	// FailSchedule makes ScheduleMessage fail when set.
	FailSchedule bool
	// FailSearch makes SearchMessages fail when set.
	FailSearch bool
	// FailReplies makes Replies fail when set.
	FailReplies bool
	// FailUpdate makes UpdateMessage fail when set.
	FailUpdate bool
	// FailUpload makes UploadFile fail when set.
	FailUpload bool
}

// Upload records a completed UploadFile call with its body bytes.
type Upload struct {
	Channel  string
	ThreadTs string
	Filename string
	Body     []byte
}

// DirectMessage records a PostDirectMessage call.
type DirectMessage struct {
	UserID string
	Text   string
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{
		files:    map[string]chat.FileInfo{},
		contents: map[string][]byte{},
		users:    map[string]chat.UserInfo{},
	}
}

// SeedFileContent registers downloadable bytes for a file id.
func (f *Fake) SeedFileContent(fileID string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contents[fileID] = body
}

// SeedFile registers file metadata.
func (f *Fake) SeedFile(info chat.FileInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[info.ID] = info
}

// SeedUser registers user metadata.
func (f *Fake) SeedUser(info chat.UserInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[info.ID] = info
}

// SeedMessage adds a message to history and returns it with an assigned ts
// when none was set.
func (f *Fake) SeedMessage(msg chat.Message) chat.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.Ts == "" {
		msg.Ts = f.newTs()
	}
	f.messages = append(f.messages, msg)
	return msg
}

// Message returns the message with the given channel and ts.
func (f *Fake) Message(channel, ts string) (chat.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ChannelID == channel && m.Ts == ts {
			return m, true
		}
	}
	return chat.Message{}, false
}

// Uploads returns the recorded file uploads.
func (f *Fake) Uploads() []Upload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Upload(nil), f.uploads...)
}

// DirectMessages returns the recorded direct messages.
func (f *Fake) DirectMessages() []DirectMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DirectMessage(nil), f.directs...)
}

// ScheduledCount returns the number of pending scheduled messages.
func (f *Fake) ScheduledCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scheduled)
}

func (f *Fake) newTs() string {
	f.nextTs++
	return fmt.Sprintf("1700000%03d.000100", f.nextTs)
}

// SearchMessages implements chat.Client.
func (f *Fake) SearchMessages(_ context.Context, _, query string, count int) ([]chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSearch {
		return nil, fmt.Errorf("chattest: search unavailable")
	}

	var found []chat.Message
	for _, m := range f.messages {
		if strings.Contains(m.Text, query) {
			found = append(found, m)
			if count > 0 && len(found) >= count {
				break
			}
		}
	}
	return found, nil
}

// PostMessage implements chat.Client.
func (f *Fake) PostMessage(_ context.Context, _, channel, threadTs, text string, attachments []chat.Attachment) (chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := chat.Message{
		ChannelID:   channel,
		Ts:          f.newTs(),
		ThreadTs:    threadTs,
		Text:        text,
		Attachments: attachments,
	}
	f.messages = append(f.messages, msg)
	return msg, nil
}

// PostDirectMessage implements chat.Client.
func (f *Fake) PostDirectMessage(_ context.Context, _, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.directs = append(f.directs, DirectMessage{UserID: userID, Text: text})
	return nil
}

// UpdateMessage implements chat.Client.
func (f *Fake) UpdateMessage(_ context.Context, _, channel, ts, text string, attachments []chat.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailUpdate {
		return fmt.Errorf("chattest: update unavailable")
	}

	for i, m := range f.messages {
		if m.ChannelID == channel && m.Ts == ts {
			f.messages[i].Text = text
			f.messages[i].Attachments = attachments
			return nil
		}
	}
	return chat.ErrNotFound
}

// DeleteMessage implements chat.Client.
func (f *Fake) DeleteMessage(_ context.Context, _, channel, ts string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, m := range f.messages {
		if m.ChannelID == channel && m.Ts == ts {
			f.messages = append(f.messages[:i], f.messages[i+1:]...)
			return nil
		}
	}
	return chat.ErrNotFound
}

// Replies implements chat.Client.
func (f *Fake) Replies(_ context.Context, _, channel, threadTs, oldest, latest string, limit int) ([]chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailReplies {
		return nil, fmt.Errorf("chattest: replies unavailable")
	}

	// The platform always includes the thread root in a replies response,
	// even when it falls outside the requested range.
	var found []chat.Message
	for _, m := range f.messages {
		if m.ChannelID != channel {
			continue
		}
		if m.Ts == threadTs {
			found = append(found, m)
			continue
		}
		if m.ThreadTs != threadTs {
			continue
		}
		if oldest != "" && m.Ts < oldest {
			continue
		}
		if latest != "" && m.Ts > latest {
			continue
		}
		found = append(found, m)
		if limit > 0 && len(found) >= limit {
			break
		}
	}
	return found, nil
}

// ScheduleMessage implements chat.Client.
func (f *Fake) ScheduleMessage(_ context.Context, _, channel, text string, postAt int64) (chat.ScheduledMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSchedule {
		return chat.ScheduledMessage{}, fmt.Errorf("chattest: scheduler unavailable")
	}

	f.nextSchedID++
	msg := chat.ScheduledMessage{
		ID:        fmt.Sprintf("Q%08d", f.nextSchedID),
		ChannelID: channel,
		PostAt:    postAt,
		Text:      text,
	}
	f.scheduled = append(f.scheduled, msg)
	return msg, nil
}

// ListScheduledMessages implements chat.Client.
func (f *Fake) ListScheduledMessages(_ context.Context, _, channel string, oldest, latest int64) ([]chat.ScheduledMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var found []chat.ScheduledMessage
	for _, m := range f.scheduled {
		if m.ChannelID != channel {
			continue
		}
		if oldest != 0 && m.PostAt < oldest {
			continue
		}
		if latest != 0 && m.PostAt > latest {
			continue
		}
		found = append(found, m)
	}
	return found, nil
}

// DeleteScheduledMessage implements chat.Client.
func (f *Fake) DeleteScheduledMessage(_ context.Context, _, channel, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, m := range f.scheduled {
		if m.ChannelID == channel && m.ID == id {
			f.scheduled = append(f.scheduled[:i], f.scheduled[i+1:]...)
			return nil
		}
	}
	return chat.ErrNotFound
}

// UploadFile implements chat.Client.
func (f *Fake) UploadFile(_ context.Context, _ string, req chat.UploadRequest) (chat.FileInfo, error) {
	if f.FailUpload {
		return chat.FileInfo{}, fmt.Errorf("chattest: upload unavailable")
	}

	body, err := io.ReadAll(req.Content)
	if err != nil {
		return chat.FileInfo{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, Upload{
		Channel:  req.Channel,
		ThreadTs: req.ThreadTs,
		Filename: req.Filename,
		Body:     body,
	})

	info := chat.FileInfo{
		ID:        fmt.Sprintf("F%08d", len(f.uploads)),
		Name:      req.Filename,
		Title:     req.Title,
		Size:      int64(len(body)),
		ChannelID: req.Channel,
	}
	f.files[info.ID] = info
	return info, nil
}

// FileInfo implements chat.Client.
func (f *Fake) FileInfo(_ context.Context, _, fileID string) (chat.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.files[fileID]
	if !ok {
		return chat.FileInfo{}, chat.ErrNotFound
	}
	return info, nil
}

// DownloadFile implements chat.Client.
func (f *Fake) DownloadFile(_ context.Context, _, fileID string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.contents[fileID]
	if !ok {
		return nil, chat.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

// UserInfo implements chat.Client.
func (f *Fake) UserInfo(_ context.Context, _, userID string) (chat.UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.users[userID]
	if !ok {
		return chat.UserInfo{}, chat.ErrNotFound
	}
	return info, nil
}
