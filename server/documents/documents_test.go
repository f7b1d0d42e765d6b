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

package documents_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/docbridge-team/docbridge/pkg/types"
	"github.com/docbridge-team/docbridge/server/chat"
	"github.com/docbridge-team/docbridge/server/chat/chattest"
	"github.com/docbridge-team/docbridge/server/credentials"
	"github.com/docbridge-team/docbridge/server/documents"
	"github.com/docbridge-team/docbridge/server/dockeys"
	"github.com/docbridge-team/docbridge/server/liveness"
	"github.com/docbridge-team/docbridge/server/permissions"
	"github.com/docbridge-team/docbridge/server/tokens"
)

const (
	testTeamSecret     = "team-secret"
	testDownloadSecret = "download-secret"
)

type fixture struct {
	fake     *chattest.Fake
	store    *dockeys.Store
	tokens   *tokens.Service
	sessions *documents.Sessions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fake := chattest.New()
	fake.SeedFile(chat.FileInfo{
		ID:       "F1",
		Name:     "roadmap.docx",
		FileType: "docx",
		Size:     512,
		OwnerID:  "U-owner",
	})
	fake.SeedUser(chat.UserInfo{ID: "U-owner", Name: "owner"})
	fake.SeedUser(chat.UserInfo{ID: "U-guest", Name: "guest"})

	resolver := &credentials.Static{
		Installers: map[string]credentials.Installer{
			"T01": {TeamID: "T01", BotToken: "xoxb-bot", UserToken: "xoxp-user"},
		},
		Configs: map[string]credentials.Settings{
			"T01": {TeamID: "T01", DocServerURL: "https://docs.test", Secret: testTeamSecret},
		},
	}

	tokenService := tokens.NewService(&tokens.Config{TTL: time.Minute, Leeway: 10 * time.Second})
	mirror, err := dockeys.NewMirror()
	assert.NoError(t, err)
	discovery := dockeys.NewDiscovery(fake)
	store := dockeys.NewStore(mirror, discovery)
	sessions := documents.NewSessions(
		&documents.Config{
			PublicURL:       "https://bridge.test",
			DownloadSecret:  testDownloadSecret,
			MetadataTimeout: time.Second,
		},
		fake,
		resolver,
		tokenService,
		store,
		discovery,
		permissions.NewLedger(fake, resolver),
		liveness.NewService(fake, &liveness.Config{ScheduleOffset: time.Hour}),
	)

	return &fixture{fake: fake, store: store, tokens: tokenService, sessions: sessions}
}

func openRequest(userID string) documents.OpenRequest {
	return documents.OpenRequest{
		TeamID:    "T01",
		UserID:    userID,
		FileID:    "F1",
		Channel:   "C01",
		MessageTs: "1000.0001",
	}
}

func TestSessionsOpen(t *testing.T) {
	t.Run("owner gets edit session test", func(t *testing.T) {
		fix := newFixture(t)
		ctx := context.Background()

		session, err := fix.sessions.Open(ctx, openRequest("U-owner"))
		assert.NoError(t, err)
		assert.Equal(t, types.PermissionEdit, session.Permission)
		assert.NotEmpty(t, session.DocumentKey)
		assert.Equal(t, "roadmap.docx", session.FileName)
		assert.Equal(t, "docx", session.FileType)
		assert.Equal(t, "https://bridge.test/callback", session.CallbackURL)
		// The dispatcher reverses this key on every callback delivery.
		assert.Equal(t, "T01:U-owner:F1", session.CallbackKey)
		assert.Equal(t, 1, fix.fake.ScheduledCount())

		claims, err := fix.tokens.Verify(session.Token, testTeamSecret)
		assert.NoError(t, err)
		assert.Equal(t, "T01", claims["team"])
		assert.Equal(t, "U-owner", claims["user"])
		assert.Equal(t, "F1", claims["file"])
		assert.Equal(t, "U-owner", claims["owner"])
		assert.Equal(t, "edit", claims["permission"])
		assert.Equal(t, session.DocumentKey, claims["key"])
		assert.NotEmpty(t, claims["otp_code"])
		assert.NotEmpty(t, claims["otp_post_at"])

		downloadToken := strings.TrimPrefix(session.DownloadURL, "https://bridge.test/download/")
		downloadClaims, err := fix.tokens.Verify(downloadToken, testDownloadSecret)
		assert.NoError(t, err)
		assert.Equal(t, "T01", downloadClaims["team"])
		assert.Equal(t, "U-owner", downloadClaims["user"])
		assert.Equal(t, "F1", downloadClaims["file"])
		// Edit sessions carry the OTP so the download endpoint can re-check
		// liveness.
		assert.Equal(t, claims["otp_post_at"], downloadClaims["otp_post_at"])
		assert.NotEmpty(t, downloadClaims["otp_channel"])
	})

	t.Run("guest without grant gets read session test", func(t *testing.T) {
		fix := newFixture(t)
		ctx := context.Background()

		session, err := fix.sessions.Open(ctx, openRequest("U-guest"))
		assert.NoError(t, err)
		assert.Equal(t, types.PermissionRead, session.Permission)
		// Read sessions carry no liveness OTP.
		assert.Equal(t, 0, fix.fake.ScheduledCount())

		claims, err := fix.tokens.Verify(session.Token, testTeamSecret)
		assert.NoError(t, err)
		assert.Equal(t, "read", claims["permission"])
		assert.Empty(t, claims["otp_code"])
	})

	t.Run("guest with edit grant gets edit session test", func(t *testing.T) {
		fix := newFixture(t)
		ctx := context.Background()

		fix.fake.SeedMessage(chat.Message{
			ChannelID: "C01",
			Ts:        "1000.0001",
			Text:      "roadmap.docx",
			Attachments: []chat.Attachment{
				permissions.BuildAttachment(types.PermissionRecord{
					FileID:      "F1",
					Default:     types.PermissionRead,
					SharedUsers: []string{"U-guest"},
				}),
			},
		})

		session, err := fix.sessions.Open(ctx, openRequest("U-guest"))
		assert.NoError(t, err)
		assert.Equal(t, types.PermissionEdit, session.Permission)
		assert.Equal(t, 1, fix.fake.ScheduledCount())
	})

	t.Run("concurrent opens share one key test", func(t *testing.T) {
		fix := newFixture(t)
		ctx := context.Background()

		first, err := fix.sessions.Open(ctx, openRequest("U-owner"))
		assert.NoError(t, err)
		second, err := fix.sessions.Open(ctx, openRequest("U-guest"))
		assert.NoError(t, err)
		assert.Equal(t, first.DocumentKey, second.DocumentKey)
		assert.Equal(t, 1, fix.store.Active())
	})

	t.Run("published key is adopted test", func(t *testing.T) {
		fix := newFixture(t)
		ctx := context.Background()

		// A marker left by a previous process instance.
		fix.fake.SeedMessage(chat.Message{
			ChannelID: "C01",
			Text:      "docbridge-key F1",
			Attachments: []chat.Attachment{{
				Title:    "docbridge-key",
				Footer:   "F1",
				Fallback: "key-from-history",
			}},
		})

		session, err := fix.sessions.Open(ctx, openRequest("U-owner"))
		assert.NoError(t, err)
		assert.Equal(t, "key-from-history", session.DocumentKey)
	})

	t.Run("reopen after release gets a fresh key test", func(t *testing.T) {
		fix := newFixture(t)
		ctx := context.Background()

		first, err := fix.sessions.Open(ctx, openRequest("U-owner"))
		assert.NoError(t, err)

		// The close callback path releases the key; the marker must die with
		// it or discovery would hand the old key right back.
		fix.store.Release(ctx, "F1")

		second, err := fix.sessions.Open(ctx, openRequest("U-owner"))
		assert.NoError(t, err)
		assert.NotEqual(t, first.DocumentKey, second.DocumentKey)
		assert.NotEmpty(t, second.DocumentKey)
	})

	t.Run("liveness failure blocks edit session test", func(t *testing.T) {
		fix := newFixture(t)
		fix.fake.FailSchedule = true
		ctx := context.Background()

		_, err := fix.sessions.Open(ctx, openRequest("U-owner"))
		assert.ErrorIs(t, err, liveness.ErrLivenessUnavailable)

		// Read access is unaffected by the scheduler outage.
		session, err := fix.sessions.Open(ctx, openRequest("U-guest"))
		assert.NoError(t, err)
		assert.Equal(t, types.PermissionRead, session.Permission)
	})

	t.Run("unknown workspace test", func(t *testing.T) {
		fix := newFixture(t)
		ctx := context.Background()

		req := openRequest("U-owner")
		req.TeamID = "T99"
		_, err := fix.sessions.Open(ctx, req)
		assert.ErrorIs(t, err, documents.ErrNotInstalled)
	})

	t.Run("missing file metadata test", func(t *testing.T) {
		fix := newFixture(t)
		ctx := context.Background()

		req := openRequest("U-owner")
		req.FileID = "F-missing"
		_, err := fix.sessions.Open(ctx, req)
		assert.ErrorIs(t, err, documents.ErrUpstream)
	})
}

func TestSessionsClose(t *testing.T) {
	t.Run("close revokes liveness test", func(t *testing.T) {
		fix := newFixture(t)
		ctx := context.Background()

		session, err := fix.sessions.Open(ctx, openRequest("U-owner"))
		assert.NoError(t, err)
		claims, err := fix.tokens.Verify(session.Token, testTeamSecret)
		assert.NoError(t, err)
		assert.Equal(t, 1, fix.fake.ScheduledCount())

		fix.sessions.Close(ctx, "T01", "U-owner", claims["otp_channel"], claims["otp_code"])
		assert.Equal(t, 0, fix.fake.ScheduledCount())
	})

	t.Run("close for unknown workspace is a no-op test", func(t *testing.T) {
		fix := newFixture(t)
		fix.sessions.Close(context.Background(), "T99", "U-owner", "C01", "code")
	})
}
