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

// Package rpc provides the HTTP surface exposed to the document server: the
// status callback endpoint and the authenticated file download endpoint.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/docbridge-team/docbridge/pkg/types"
	"github.com/docbridge-team/docbridge/server/callbacks"
	"github.com/docbridge-team/docbridge/server/chat"
	"github.com/docbridge-team/docbridge/server/credentials"
	"github.com/docbridge-team/docbridge/server/liveness"
	"github.com/docbridge-team/docbridge/server/logging"
	"github.com/docbridge-team/docbridge/server/profiling/prometheus"
	"github.com/docbridge-team/docbridge/server/tokens"
)

const (
	httpPrefixCallback = "/callback"
	httpPrefixDownload = "/download/"
)

// callbackResponse is the body the document server expects on every
// callback, success or not. Anything but error 0 makes the document server
// retry, so failures are reported in the body while the HTTP status stays
// 200.
type callbackResponse struct {
	Error int `json:"error"`
}

// Server serves the document-server facing HTTP endpoints.
type Server struct {
	conf       *Config
	serveMux   *http.ServeMux
	httpServer *http.Server

	dispatcher *callbacks.Dispatcher
	tokens     *tokens.Service
	resolver   credentials.Resolver
	chat       chat.Client
	liveness   *liveness.Service
	metrics    *prometheus.Metrics
}

// NewServer creates an instance of Server.
func NewServer(
	conf *Config,
	dispatcher *callbacks.Dispatcher,
	tokenService *tokens.Service,
	resolver credentials.Resolver,
	chatClient chat.Client,
	livenessService *liveness.Service,
	metrics *prometheus.Metrics,
) *Server {
	server := &Server{
		conf:       conf,
		serveMux:   http.NewServeMux(),
		dispatcher: dispatcher,
		tokens:     tokenService,
		resolver:   resolver,
		chat:       chatClient,
		liveness:   livenessService,
		metrics:    metrics,
	}
	server.serveMux.HandleFunc(httpPrefixCallback, server.handleCallback)
	server.serveMux.HandleFunc(httpPrefixDownload, server.handleDownload)
	server.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", conf.Port),
		Handler: server.serveMux,
	}
	return server
}

// Handler returns the HTTP handler of this server for mounting in tests.
func (s *Server) Handler() http.Handler {
	return s.serveMux
}

// Start starts the server.
func (s *Server) Start() error {
	return s.listenAndServe()
}

// Shutdown shuts down the server.
func (s *Server) Shutdown(graceful bool) {
	if graceful {
		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			logging.DefaultLogger().Error("HTTP server Shutdown: %v", err)
		}
		return
	}

	if err := s.httpServer.Close(); err != nil {
		logging.DefaultLogger().Error("HTTP server close: %v", err)
	}
}

// handleCallback accepts a document-server status callback. The HTTP status
// is always 200: the document server treats a non-zero error in the body as
// the failure signal and anything else as a transport fault worth retrying.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload types.CallbackPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logging.From(r.Context()).Warnw("callback: malformed body", "error", err)
		s.writeCallbackResponse(w, 1)
		return
	}

	err := s.dispatcher.Dispatch(r.Context(), r.Header, payload)
	if s.metrics != nil {
		s.metrics.AddCallbackHandled(payload.Status.String(), err == nil)
	}
	if err != nil {
		logging.From(r.Context()).Warnw("callback: dispatch failed",
			"status", payload.Status.String(), "key", payload.Key, "error", err)
		s.writeCallbackResponse(w, 1)
		return
	}
	s.writeCallbackResponse(w, 0)
}

func (s *Server) writeCallbackResponse(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(callbackResponse{Error: code}); err != nil {
		logging.DefaultLogger().Warnf("callback: write response: %v", err)
	}
}

// handleDownload streams file bytes to the document server. The token in the
// path authenticates the request; authentication failures are rejected before
// any body bytes are written. The whole request runs under a wall-clock
// budget so a stalled platform download cannot pin the connection.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	token := strings.TrimPrefix(r.URL.Path, httpPrefixDownload)
	claims, err := s.tokens.Verify(token, s.conf.DownloadSecret)
	if err != nil {
		logging.From(r.Context()).Warnw("download: token rejected", "error", err)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.conf.DownloadTimeoutDuration())
	defer cancel()

	installer, err := s.resolver.FindInstaller(ctx, claims["team"], claims["user"])
	if err != nil {
		logging.From(ctx).Warnw("download: installer unresolved",
			"team", claims["team"], "user", claims["user"], "error", err)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	bearer := installer.BotToken
	if bearer == "" {
		bearer = installer.UserToken
	}

	// Edit sessions embed their liveness OTP in the download token; a save
	// from a revoked session is rejected before any bytes move.
	if postAt, ok := claims["otp_post_at"]; ok && s.liveness != nil {
		at, err := strconv.ParseInt(postAt, 10, 64)
		if err != nil || !s.liveness.IsLive(ctx, installer, claims["otp_channel"], at) {
			logging.From(ctx).Warnw("download: session no longer live",
				"team", claims["team"], "file", claims["file"])
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	info, err := s.chat.FileInfo(ctx, bearer, claims["file"])
	if err != nil {
		s.writeDownloadError(ctx, w, "file metadata", err)
		return
	}

	body, err := s.chat.DownloadFile(ctx, bearer, claims["file"])
	if err != nil {
		s.writeDownloadError(ctx, w, "file bytes", err)
		return
	}
	defer func() {
		if err := body.Close(); err != nil {
			logging.From(ctx).Warnw("download: close body", "error", err)
		}
	}()

	w.Header().Set("Content-Type", contentType(info.Name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Name))
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if _, err := io.Copy(w, body); err != nil {
		// Headers are gone; all we can do is log and drop the connection.
		logging.From(ctx).Warnw("download: stream interrupted",
			"file", claims["file"], "error", err)
	}
}

func (s *Server) writeDownloadError(ctx context.Context, w http.ResponseWriter, stage string, err error) {
	logging.From(ctx).Warnw("download failed", "stage", stage, "error", err)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "download timed out", http.StatusGatewayTimeout)
	case errors.Is(err, chat.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		http.Error(w, "upstream error", http.StatusBadGateway)
	}
}

func contentType(filename string) string {
	if mimeType := mime.TypeByExtension(path.Ext(filename)); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}

func (s *Server) listenAndServe() error {
	go func() {
		logging.DefaultLogger().Infof(fmt.Sprintf("serving RPC on %d", s.conf.Port))
		var err error
		if s.conf.CertFile != "" && s.conf.KeyFile != "" {
			err = s.httpServer.ListenAndServeTLS(s.conf.CertFile, s.conf.KeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != http.ErrServerClosed {
			logging.DefaultLogger().Errorf("HTTP server ListenAndServe: %v", err)
		}
	}()
	return nil
}
