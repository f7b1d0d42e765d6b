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

// Package chat defines the boundary to the chat platform. DocBridge treats
// the platform as an external collaborator: messages, scheduled messages and
// files are owned by the platform and reached only through this interface.
package chat

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned when the requested platform entity does not exist.
	ErrNotFound = errors.New("chat: not found")
)

// Attachment is the platform's message attachment. The protocol repurposes
// the footer and fallback fields as a compact key/value side channel.
type Attachment struct {
	Title    string `json:"title,omitempty"`
	Text     string `json:"text,omitempty"`
	Footer   string `json:"footer,omitempty"`
	Fallback string `json:"fallback,omitempty"`
}

// Message is a chat message with its channel coordinates.
type Message struct {
	ChannelID   string       `json:"channel"`
	Ts          string       `json:"ts"`
	ThreadTs    string       `json:"thread_ts,omitempty"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// ScheduledMessage is a message the platform will post at PostAt.
type ScheduledMessage struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel"`
	PostAt    int64  `json:"post_at"`
	Text      string `json:"text"`
}

// FileInfo is the metadata of a platform-hosted file.
type FileInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Title     string `json:"title"`
	FileType  string `json:"filetype"`
	Size      int64  `json:"size"`
	OwnerID   string `json:"user"`
	ChannelID string `json:"channel"`
}

// UserInfo is the metadata of a platform user.
type UserInfo struct {
	ID     string `json:"id"`
	TeamID string `json:"team_id"`
	Name   string `json:"name"`
}

// UploadRequest describes a file upload into a channel or thread.
type UploadRequest struct {
	Channel  string
	ThreadTs string
	Filename string
	Title    string
	Content  io.Reader
}

// Client is the subset of the chat platform API the protocol core consumes.
// Every method takes the bearer token of the acting installer; the client
// itself holds no credentials.
type Client interface {
	// SearchMessages searches message history for the given query, returning
	// at most count results ordered by relevance.
	SearchMessages(ctx context.Context, token, query string, count int) ([]Message, error)

	// PostMessage posts a message, optionally as a thread reply.
	PostMessage(ctx context.Context, token, channel, threadTs, text string, attachments []Attachment) (Message, error)

	// PostDirectMessage posts a direct message to the given user.
	PostDirectMessage(ctx context.Context, token, userID, text string) error

	// UpdateMessage replaces the text and the whole attachment list of an
	// existing message.
	UpdateMessage(ctx context.Context, token, channel, ts, text string, attachments []Attachment) error

	// DeleteMessage deletes an existing message.
	DeleteMessage(ctx context.Context, token, channel, ts string) error

	// Replies returns the messages of a thread whose timestamps fall in the
	// inclusive [oldest, latest] range, at most limit of them.
	Replies(ctx context.Context, token, channel, threadTs, oldest, latest string, limit int) ([]Message, error)

	// ScheduleMessage schedules a message to be posted at postAt.
	ScheduleMessage(ctx context.Context, token, channel, text string, postAt int64) (ScheduledMessage, error)

	// ListScheduledMessages lists pending scheduled messages of the channel
	// with post times in the inclusive [oldest, latest] range.
	ListScheduledMessages(ctx context.Context, token, channel string, oldest, latest int64) ([]ScheduledMessage, error)

	// DeleteScheduledMessage cancels a pending scheduled message.
	DeleteScheduledMessage(ctx context.Context, token, channel, id string) error

	// UploadFile uploads file bytes into a channel or thread.
	UploadFile(ctx context.Context, token string, req UploadRequest) (FileInfo, error)

	// FileInfo fetches file metadata by id.
	FileInfo(ctx context.Context, token, fileID string) (FileInfo, error)

	// DownloadFile opens a stream over the file's bytes. The caller owns
	// closing the returned reader.
	DownloadFile(ctx context.Context, token, fileID string) (io.ReadCloser, error)

	// UserInfo fetches user metadata by id.
	UserInfo(ctx context.Context, token, userID string) (UserInfo, error)
}
