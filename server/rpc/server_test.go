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

package rpc_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/docbridge-team/docbridge/pkg/types"
	"github.com/docbridge-team/docbridge/server/callbacks"
	"github.com/docbridge-team/docbridge/server/chat"
	"github.com/docbridge-team/docbridge/server/chat/chattest"
	"github.com/docbridge-team/docbridge/server/credentials"
	"github.com/docbridge-team/docbridge/server/dockeys"
	"github.com/docbridge-team/docbridge/server/liveness"
	"github.com/docbridge-team/docbridge/server/rpc"
	"github.com/docbridge-team/docbridge/server/tokens"
)

const (
	testCallbackSecret = "callback-secret"
	testDownloadSecret = "download-secret"
)

func newResolver() *credentials.Static {
	return &credentials.Static{
		Installers: map[string]credentials.Installer{
			"T01": {TeamID: "T01", BotToken: "xoxb-bot"},
		},
		Configs: map[string]credentials.Settings{
			"T01": {TeamID: "T01", Secret: testCallbackSecret},
		},
	}
}

func newTestServer(t *testing.T, chatClient chat.Client, timeout string) (*rpc.Server, *tokens.Service, *dockeys.Store) {
	t.Helper()

	resolver := newResolver()
	tokenService := tokens.NewService(&tokens.Config{TTL: time.Minute, Leeway: 10 * time.Second})
	mirror, err := dockeys.NewMirror()
	assert.NoError(t, err)
	store := dockeys.NewStore(mirror)

	dispatcher := callbacks.NewDispatcher(
		&callbacks.Config{DefaultHeader: "Authorization"},
		tokenService,
		resolver,
	)
	dispatcher.Register(types.StatusClose, callbacks.NewCloseHandler(store))

	server := rpc.NewServer(
		&rpc.Config{
			Port:            8080,
			DownloadSecret:  testDownloadSecret,
			DownloadTimeout: timeout,
		},
		dispatcher,
		tokenService,
		resolver,
		chatClient,
		liveness.NewService(chatClient, &liveness.Config{ScheduleOffset: 12 * time.Hour}),
		nil,
	)
	return server, tokenService, store
}

func postCallback(t *testing.T, handler http.Handler, body []byte) (int, int) {
	t.Helper()

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(
		http.MethodPost, "/callback", bytes.NewReader(body),
	))

	var response struct {
		Error int `json:"error"`
	}
	assert.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	return recorder.Code, response.Error
}

func TestCallbackEndpoint(t *testing.T) {
	t.Run("valid callback test", func(t *testing.T) {
		server, tokenService, store := newTestServer(t, chattest.New(), "30s")

		store.GetOrCreate(context.Background(), dockeys.GetOrCreateRequest{FileID: "F1"})
		assert.Equal(t, 1, store.Active())

		token, err := tokenService.Sign(map[string]string{
			"key": "T01:U1:F1",
		}, testCallbackSecret)
		assert.NoError(t, err)
		body, err := json.Marshal(types.CallbackPayload{
			Key:    "T01:U1:F1",
			Token:  token,
			Status: types.StatusClose,
		})
		assert.NoError(t, err)

		code, errCode := postCallback(t, server.Handler(), body)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, 0, errCode)
		assert.Equal(t, 0, store.Active())
	})

	t.Run("auth failure still answers 200 test", func(t *testing.T) {
		server, tokenService, _ := newTestServer(t, chattest.New(), "30s")

		token, err := tokenService.Sign(map[string]string{
			"key": "T01:U1:F1",
		}, "wrong-secret")
		assert.NoError(t, err)
		body, err := json.Marshal(types.CallbackPayload{
			Key:    "T01:U1:F1",
			Token:  token,
			Status: types.StatusClose,
		})
		assert.NoError(t, err)

		code, errCode := postCallback(t, server.Handler(), body)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, 1, errCode)
	})

	t.Run("malformed body test", func(t *testing.T) {
		server, _, _ := newTestServer(t, chattest.New(), "30s")

		code, errCode := postCallback(t, server.Handler(), []byte("{not json"))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, 1, errCode)
	})

	t.Run("method not allowed test", func(t *testing.T) {
		server, _, _ := newTestServer(t, chattest.New(), "30s")

		recorder := httptest.NewRecorder()
		server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/callback", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
	})
}

func signDownloadToken(t *testing.T, tokenService *tokens.Service, team, user, file string) string {
	t.Helper()
	token, err := tokenService.Sign(map[string]string{
		"team": team,
		"user": user,
		"file": file,
	}, testDownloadSecret)
	assert.NoError(t, err)
	return token
}

func TestDownloadEndpoint(t *testing.T) {
	t.Run("streams file bytes test", func(t *testing.T) {
		fake := chattest.New()
		fake.SeedFile(chat.FileInfo{ID: "F1", Name: "notes.txt", Size: 11, OwnerID: "U1"})
		fake.SeedFileContent("F1", []byte("hello bytes"))
		server, tokenService, _ := newTestServer(t, fake, "30s")

		token := signDownloadToken(t, tokenService, "T01", "U1", "F1")
		recorder := httptest.NewRecorder()
		server.Handler().ServeHTTP(recorder, httptest.NewRequest(
			http.MethodGet, "/download/"+token, nil,
		))

		assert.Equal(t, http.StatusOK, recorder.Code)
		body, err := io.ReadAll(recorder.Body)
		assert.NoError(t, err)
		assert.Equal(t, "hello bytes", string(body))
		assert.Contains(t, recorder.Header().Get("Content-Disposition"), "notes.txt")
		assert.Equal(t, "11", recorder.Header().Get("Content-Length"))
	})

	t.Run("invalid token test", func(t *testing.T) {
		server, _, _ := newTestServer(t, chattest.New(), "30s")

		recorder := httptest.NewRecorder()
		server.Handler().ServeHTTP(recorder, httptest.NewRequest(
			http.MethodGet, "/download/not-a-token", nil,
		))
		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})

	t.Run("unknown workspace test", func(t *testing.T) {
		server, tokenService, _ := newTestServer(t, chattest.New(), "30s")

		token := signDownloadToken(t, tokenService, "T99", "U1", "F1")
		recorder := httptest.NewRecorder()
		server.Handler().ServeHTTP(recorder, httptest.NewRequest(
			http.MethodGet, "/download/"+token, nil,
		))
		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})

	t.Run("missing file test", func(t *testing.T) {
		server, tokenService, _ := newTestServer(t, chattest.New(), "30s")

		token := signDownloadToken(t, tokenService, "T01", "U1", "F404")
		recorder := httptest.NewRecorder()
		server.Handler().ServeHTTP(recorder, httptest.NewRequest(
			http.MethodGet, "/download/"+token, nil,
		))
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("revoked session test", func(t *testing.T) {
		fake := chattest.New()
		fake.SeedFile(chat.FileInfo{ID: "F1", Name: "notes.txt", Size: 11, OwnerID: "U1"})
		fake.SeedFileContent("F1", []byte("hello bytes"))
		server, tokenService, _ := newTestServer(t, fake, "30s")

		caller := credentials.Installer{TeamID: "T01", BotToken: "xoxb-bot"}
		livenessService := liveness.NewService(fake, &liveness.Config{ScheduleOffset: 12 * time.Hour})
		otp, err := livenessService.Generate(context.Background(), caller, "C01")
		assert.NoError(t, err)

		token, err := tokenService.Sign(map[string]string{
			"team":        "T01",
			"user":        "U1",
			"file":        "F1",
			"otp_channel": otp.Channel,
			"otp_post_at": strconv.FormatInt(otp.PostAt, 10),
		}, testDownloadSecret)
		assert.NoError(t, err)

		recorder := httptest.NewRecorder()
		server.Handler().ServeHTTP(recorder, httptest.NewRequest(
			http.MethodGet, "/download/"+token, nil,
		))
		assert.Equal(t, http.StatusOK, recorder.Code)

		assert.True(t, livenessService.Revoke(context.Background(), caller, otp.Channel, otp.Code))

		recorder = httptest.NewRecorder()
		server.Handler().ServeHTTP(recorder, httptest.NewRequest(
			http.MethodGet, "/download/"+token, nil,
		))
		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})

	t.Run("timeout test", func(t *testing.T) {
		fake := chattest.New()
		fake.SeedFile(chat.FileInfo{ID: "F1", Name: "notes.txt", Size: 11, OwnerID: "U1"})
		server, tokenService, _ := newTestServer(t, &stalledChat{Client: fake}, "10ms")

		token := signDownloadToken(t, tokenService, "T01", "U1", "F1")
		recorder := httptest.NewRecorder()
		server.Handler().ServeHTTP(recorder, httptest.NewRequest(
			http.MethodGet, "/download/"+token, nil,
		))
		assert.Equal(t, http.StatusGatewayTimeout, recorder.Code)
	})
}

// stalledChat blocks downloads until the request deadline fires.
type stalledChat struct {
	chat.Client
}

func (s *stalledChat) DownloadFile(ctx context.Context, _, _ string) (io.ReadCloser, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
