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

package callbacks

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/docbridge-team/docbridge/server/chat"
	"github.com/docbridge-team/docbridge/server/credentials"
	"github.com/docbridge-team/docbridge/server/dockeys"
	"github.com/docbridge-team/docbridge/server/logging"
)

var (
	// ErrUploadBoundsExceeded is returned when the edited file's size is
	// outside the allowed range for re-upload into chat.
	ErrUploadBoundsExceeded = errors.New("upload size out of bounds")
)

// SaveConfig is the configuration of the save handler.
type SaveConfig struct {
	// MaxUploadSize is the largest file size, in bytes, accepted on save.
	MaxUploadSize int64
}

// SaveHandler streams the edited document out of the document server and
// back into chat, then retires the document key. Cleanup of the key entry is
// unconditional: a failed save must not leave a stale session behind.
type SaveHandler struct {
	conf     *SaveConfig
	chat     chat.Client
	resolver credentials.Resolver
	store    *dockeys.Store
	client   *http.Client
}

// NewSaveHandler creates a new SaveHandler.
func NewSaveHandler(
	conf *SaveConfig,
	chatClient chat.Client,
	resolver credentials.Resolver,
	store *dockeys.Store,
	httpClient *http.Client,
) *SaveHandler {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SaveHandler{
		conf:     conf,
		chat:     chatClient,
		resolver: resolver,
		store:    store,
		client:   httpClient,
	}
}

// Handle implements Handler.
func (h *SaveHandler) Handle(ctx context.Context, cb *Callback) error {
	defer h.store.Release(ctx, cb.FileID)

	installer, err := h.resolver.FindInstaller(ctx, cb.TeamID, cb.UserID)
	if err != nil {
		return fmt.Errorf("resolve uploader: %w", err)
	}
	token := installer.BotToken
	if token == "" {
		token = installer.UserToken
	}

	info, err := h.chat.FileInfo(ctx, token, cb.FileID)
	if err != nil {
		return fmt.Errorf("fetch file metadata: %w", err)
	}
	if info.Size <= 0 || info.Size > h.conf.MaxUploadSize {
		return fmt.Errorf("file %s is %d bytes: %w", cb.FileID, info.Size, ErrUploadBoundsExceeded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cb.Payload.URL, nil)
	if err != nil {
		return fmt.Errorf("build document request: %w", err)
	}
	res, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch edited document: %w", err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			logging.From(ctx).Warn(err)
		}
	}()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch edited document: unexpected status %d", res.StatusCode)
	}

	// Upload into the originating thread when the session coordinates are
	// known, otherwise into the file's own channel.
	upload := chat.UploadRequest{
		Filename: info.Name,
		Title:    info.Title,
		Content:  res.Body,
	}
	if entry, ok := h.store.Get(ctx, cb.FileID); ok && entry.ChannelID != "" {
		upload.Channel = entry.ChannelID
		upload.ThreadTs = entry.MessageTs
	} else {
		upload.Channel = info.ChannelID
	}

	uploaded, err := h.chat.UploadFile(ctx, token, upload)
	if err != nil {
		return fmt.Errorf("upload edited document: %w", err)
	}

	if info.OwnerID != "" && info.OwnerID != cb.UserID {
		// Best-effort notification, never fails the save.
		if err := h.chat.PostDirectMessage(ctx, token, info.OwnerID,
			fmt.Sprintf("Your file %s was edited and saved as %s.", info.Name, uploaded.Name)); err != nil {
			logging.From(ctx).Warnw("owner notification failed",
				"owner", info.OwnerID, "file", cb.FileID, "error", err)
		}
	}

	logging.From(ctx).Infow("edited document saved",
		"team", cb.TeamID, "user", cb.UserID, "file", cb.FileID, "bytes", info.Size)
	return nil
}
