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

// Package documents assembles editor sessions: it decides the access level,
// mints the liveness OTP and the signed tokens, and resolves the shared
// document key the editor front-end is handed.
package documents

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/docbridge-team/docbridge/pkg/types"
	"github.com/docbridge-team/docbridge/server/callbacks"
	"github.com/docbridge-team/docbridge/server/chat"
	"github.com/docbridge-team/docbridge/server/credentials"
	"github.com/docbridge-team/docbridge/server/dockeys"
	"github.com/docbridge-team/docbridge/server/liveness"
	"github.com/docbridge-team/docbridge/server/logging"
	"github.com/docbridge-team/docbridge/server/permissions"
	"github.com/docbridge-team/docbridge/server/tokens"
)

// The three user-visible causes an editor-open failure is reduced to.
// Internal detail stays in the logs.
var (
	// ErrSessionExpired covers stale or replayed open requests.
	ErrSessionExpired = errors.New("editing session expired")

	// ErrNotInstalled covers teams without resolvable credentials.
	ErrNotInstalled = errors.New("app not installed for this workspace")

	// ErrUpstream covers chat-platform and document-server failures.
	ErrUpstream = errors.New("upstream service error")
)

// Config is the configuration of the session assembly.
type Config struct {
	// PublicURL is the externally reachable base URL of this server; the
	// callback and download URLs are derived from it.
	PublicURL string

	// DownloadSecret signs download tokens. Unlike the per-workspace
	// document-server secret it is process-wide.
	DownloadSecret string

	// MetadataTimeout bounds the parallel file/user metadata fetch.
	MetadataTimeout time.Duration
}

// OpenRequest carries a user's "open in editor" action.
type OpenRequest struct {
	TeamID    string
	UserID    string
	FileID    string
	Channel   string
	ThreadTs  string
	MessageTs string
}

// Sessions assembles editor sessions.
type Sessions struct {
	conf      *Config
	chat      chat.Client
	resolver  credentials.Resolver
	tokens    *tokens.Service
	store     *dockeys.Store
	discovery *dockeys.Discovery
	ledger    *permissions.Ledger
	liveness  *liveness.Service
}

// NewSessions creates a new Sessions.
func NewSessions(
	conf *Config,
	chatClient chat.Client,
	resolver credentials.Resolver,
	tokenService *tokens.Service,
	store *dockeys.Store,
	discovery *dockeys.Discovery,
	ledger *permissions.Ledger,
	livenessService *liveness.Service,
) *Sessions {
	return &Sessions{
		conf:      conf,
		chat:      chatClient,
		resolver:  resolver,
		tokens:    tokenService,
		store:     store,
		discovery: discovery,
		ledger:    ledger,
		liveness:  livenessService,
	}
}

// Open runs the editor-open flow and returns the payload for the front-end.
// Edit access requires a liveness OTP; failure to mint one is a hard failure
// because an edit grant without liveness proof is meaningless.
func (s *Sessions) Open(ctx context.Context, req OpenRequest) (types.EditorSession, error) {
	installer, err := s.resolver.FindInstaller(ctx, req.TeamID, req.UserID)
	if err != nil {
		return types.EditorSession{}, fmt.Errorf("resolve installer for %s: %w", req.TeamID, ErrNotInstalled)
	}
	settings, err := s.resolver.Settings(ctx, req.TeamID)
	if err != nil {
		return types.EditorSession{}, fmt.Errorf("resolve settings for %s: %w", req.TeamID, ErrNotInstalled)
	}
	token := installerToken(installer)

	file, err := s.fetchMetadata(ctx, token, req)
	if err != nil {
		return types.EditorSession{}, err
	}

	permission := types.PermissionRead
	if req.UserID == file.OwnerID {
		// File owners edit implicitly, no ledger entry needed.
		permission = types.PermissionEdit
	} else if s.ledger.HasEdit(ctx, permissions.Query{
		FileID:    req.FileID,
		TeamID:    req.TeamID,
		UserID:    req.UserID,
		Channel:   req.Channel,
		ThreadTs:  req.ThreadTs,
		MessageTs: req.MessageTs,
	}) {
		permission = types.PermissionEdit
	}

	var otp types.ScheduledOTP
	if permission == types.PermissionEdit {
		otp, err = s.liveness.Generate(ctx, installer, req.Channel)
		if err != nil {
			return types.EditorSession{}, err
		}
	}

	entry := s.resolveKey(ctx, token, req)

	claims := map[string]string{
		"team":       req.TeamID,
		"user":       req.UserID,
		"file":       req.FileID,
		"owner":      file.OwnerID,
		"permission": string(permission),
		"channel":    req.Channel,
		"key":        entry.Key,
	}
	if otp.Code != "" {
		claims["otp_code"] = otp.Code
		claims["otp_channel"] = otp.Channel
		claims["otp_post_at"] = strconv.FormatInt(otp.PostAt, 10)
	}

	editorToken, err := s.tokens.Sign(claims, settings.Secret)
	if err != nil {
		return types.EditorSession{}, fmt.Errorf("sign editor token: %w: %s", ErrUpstream, err.Error())
	}

	downloadClaims := map[string]string{
		"team": req.TeamID,
		"user": req.UserID,
		"file": req.FileID,
	}
	if otp.Code != "" {
		// The download endpoint re-checks the OTP, so a save from a revoked
		// session cannot pull file bytes.
		downloadClaims["otp_channel"] = otp.Channel
		downloadClaims["otp_post_at"] = strconv.FormatInt(otp.PostAt, 10)
	}
	downloadToken, err := s.tokens.Sign(downloadClaims, s.conf.DownloadSecret)
	if err != nil {
		return types.EditorSession{}, fmt.Errorf("sign download token: %w: %s", ErrUpstream, err.Error())
	}

	return types.EditorSession{
		Token:       editorToken,
		DocumentKey: entry.Key,
		CallbackKey: callbacks.ComposeKey(req.TeamID, req.UserID, req.FileID),
		Permission:  permission,
		CallbackURL: s.conf.PublicURL + "/callback",
		DownloadURL: s.conf.PublicURL + "/download/" + downloadToken,
		FileName:    file.Name,
		FileType:    fileType(file),
	}, nil
}

// fetchMetadata fetches file and user metadata concurrently and joins with
// a timeout so a stuck platform call surfaces as an error instead of a hang.
func (s *Sessions) fetchMetadata(ctx context.Context, token string, req OpenRequest) (chat.FileInfo, error) {
	joinCtx := ctx
	if s.conf.MetadataTimeout > 0 {
		var cancel context.CancelFunc
		joinCtx, cancel = context.WithTimeout(ctx, s.conf.MetadataTimeout)
		defer cancel()
	}

	type fileResult struct {
		info chat.FileInfo
		err  error
	}
	type userResult struct {
		info chat.UserInfo
		err  error
	}

	fileCh := make(chan fileResult, 1)
	userCh := make(chan userResult, 1)
	go func() {
		info, err := s.chat.FileInfo(joinCtx, token, req.FileID)
		fileCh <- fileResult{info: info, err: err}
	}()
	go func() {
		info, err := s.chat.UserInfo(joinCtx, token, req.UserID)
		userCh <- userResult{info: info, err: err}
	}()

	var file chat.FileInfo
	for i := 0; i < 2; i++ {
		select {
		case res := <-fileCh:
			if res.err != nil {
				return chat.FileInfo{}, fmt.Errorf("fetch file metadata: %w: %s", ErrUpstream, res.err.Error())
			}
			file = res.info
		case res := <-userCh:
			if res.err != nil {
				return chat.FileInfo{}, fmt.Errorf("fetch user metadata: %w: %s", ErrUpstream, res.err.Error())
			}
		case <-joinCtx.Done():
			return chat.FileInfo{}, fmt.Errorf("metadata fetch timed out: %w", ErrUpstream)
		}
	}
	return file, nil
}

// resolveKey returns the document key all concurrent editors of the file
// converge on: the store entry if one exists, a previously published key if
// discovery finds one, else a fresh key that is then published for recovery.
func (s *Sessions) resolveKey(ctx context.Context, token string, req OpenRequest) types.DocumentKey {
	if entry, ok := s.store.Get(ctx, req.FileID); ok {
		return entry
	}

	if key, found, err := s.discovery.FindPublishedKey(ctx, token, req.FileID); err != nil {
		logging.From(ctx).Warnw("document key discovery failed",
			"file", req.FileID, "error", err)
	} else if found {
		return s.store.Adopt(ctx, req.FileID, dockeys.RecoveredEntry(key, req.Channel, req.MessageTs))
	}

	entry := s.store.GetOrCreate(ctx, dockeys.GetOrCreateRequest{
		FileID:    req.FileID,
		TeamID:    req.TeamID,
		UserID:    req.UserID,
		ChannelID: req.Channel,
		MessageTs: req.MessageTs,
	})
	if err := s.discovery.PublishKey(ctx, token, req.FileID, entry.Key, req.Channel); err != nil {
		// Best-effort: without a marker the key will not survive a restart,
		// but the session itself is intact.
		logging.From(ctx).Warnw("document key publication failed",
			"file", req.FileID, "error", err)
	}
	return entry
}

// Close releases the resources of a closed editor view: the liveness OTP is
// revoked best-effort and never fails the close.
func (s *Sessions) Close(ctx context.Context, teamID, userID, channel, otpCode string) {
	installer, err := s.resolver.FindInstaller(ctx, teamID, userID)
	if err != nil {
		logging.From(ctx).Warnw("close: installer unresolved",
			"team", teamID, "user", userID, "error", err)
		return
	}
	s.liveness.Revoke(ctx, installer, channel, otpCode)
}

func installerToken(installer credentials.Installer) string {
	if installer.BotToken != "" {
		return installer.BotToken
	}
	return installer.UserToken
}

func fileType(info chat.FileInfo) string {
	if info.FileType != "" {
		return strings.ToLower(info.FileType)
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(info.Name), "."))
}
