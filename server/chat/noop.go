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

package chat

import (
	"context"
	"errors"
	"io"
)

// ErrNotConfigured is returned by the noop client. The platform client is
// provided by the embedding application; without one every platform call
// fails cleanly instead of panicking.
var ErrNotConfigured = errors.New("chat: platform client not configured")

// Ensure returns the given client, or a noop client when none is configured.
func Ensure(client Client) Client {
	if client != nil {
		return client
	}
	return &noopClient{}
}

type noopClient struct{}

func (*noopClient) SearchMessages(context.Context, string, string, int) ([]Message, error) {
	return nil, ErrNotConfigured
}

func (*noopClient) PostMessage(context.Context, string, string, string, string, []Attachment) (Message, error) {
	return Message{}, ErrNotConfigured
}

func (*noopClient) PostDirectMessage(context.Context, string, string, string) error {
	return ErrNotConfigured
}

func (*noopClient) UpdateMessage(context.Context, string, string, string, string, []Attachment) error {
	return ErrNotConfigured
}

func (*noopClient) DeleteMessage(context.Context, string, string, string) error {
	return ErrNotConfigured
}

func (*noopClient) Replies(context.Context, string, string, string, string, string, int) ([]Message, error) {
	return nil, ErrNotConfigured
}

func (*noopClient) ScheduleMessage(context.Context, string, string, string, int64) (ScheduledMessage, error) {
	return ScheduledMessage{}, ErrNotConfigured
}

func (*noopClient) ListScheduledMessages(context.Context, string, string, int64, int64) ([]ScheduledMessage, error) {
	return nil, ErrNotConfigured
}

func (*noopClient) DeleteScheduledMessage(context.Context, string, string, string) error {
	return ErrNotConfigured
}

func (*noopClient) UploadFile(context.Context, string, UploadRequest) (FileInfo, error) {
	return FileInfo{}, ErrNotConfigured
}

func (*noopClient) FileInfo(context.Context, string, string) (FileInfo, error) {
	return FileInfo{}, ErrNotConfigured
}

func (*noopClient) DownloadFile(context.Context, string, string) (io.ReadCloser, error) {
	return nil, ErrNotConfigured
}

func (*noopClient) UserInfo(context.Context, string, string) (UserInfo, error) {
	return UserInfo{}, ErrNotConfigured
}
