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

// Package callbacks authenticates and routes the save/close callbacks the
// document server posts back after an editing session. A callback passes
// through key extraction, token verification and handler routing; any
// failure is terminal for that delivery, retries are the document server's
// concern.
package callbacks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/docbridge-team/docbridge/pkg/types"
	"github.com/docbridge-team/docbridge/server/credentials"
	"github.com/docbridge-team/docbridge/server/logging"
	"github.com/docbridge-team/docbridge/server/tokens"
)

var (
	// ErrCallbackAuthFailed is returned when the callback token failed
	// verification or no token could be resolved from body or headers.
	ErrCallbackAuthFailed = errors.New("callback authentication failed")

	// ErrMalformedKey is returned when the composite callback key does not
	// split into team, user and file.
	ErrMalformedKey = errors.New("malformed callback key")
)

// keyDelimiter separates the segments of the composite callback key.
const keyDelimiter = ":"

// KeyPart selects a segment of the composite callback key.
type KeyPart int

// The segments of a composite key, in order.
const (
	KeyPartTeam KeyPart = iota
	KeyPartUser
	KeyPartFile
)

// ComposeKey builds the composite key embedded into editor tokens and
// echoed back by the document server.
func ComposeKey(teamID, userID, fileID string) string {
	return teamID + keyDelimiter + userID + keyDelimiter + fileID
}

// ExtractKeyPart splits the composite key into exactly three segments and
// returns the requested one. Malformed input yields an empty string, not an
// error; callers must abort processing on it.
func ExtractKeyPart(key string, part KeyPart) string {
	segments := strings.Split(key, keyDelimiter)
	if len(segments) != 3 {
		return ""
	}
	if part < KeyPartTeam || part > KeyPartFile {
		return ""
	}
	return segments[part]
}

// Callback is the resolved, authenticated callback handed to handlers.
type Callback struct {
	TeamID  string
	UserID  string
	FileID  string
	Payload types.CallbackPayload

	// Settings are the workspace's document-server settings, already
	// resolved during authentication.
	Settings credentials.Settings
}

// Handler processes one callback status.
type Handler interface {
	Handle(ctx context.Context, cb *Callback) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, cb *Callback) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, cb *Callback) error {
	return f(ctx, cb)
}

// Config is the configuration of the dispatcher.
type Config struct {
	// DefaultHeader is the header the callback token is delivered in when
	// the workspace has not configured its own.
	DefaultHeader string

	// DemoSecret signs callbacks of demo workspaces that have no secret of
	// their own.
	DemoSecret string
}

// Dispatcher authenticates inbound callbacks and routes them by status to
// exactly one registered handler.
type Dispatcher struct {
	conf     *Config
	tokens   *tokens.Service
	resolver credentials.Resolver
	handlers map[types.CallbackStatus]Handler
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(conf *Config, tokenService *tokens.Service, resolver credentials.Resolver) *Dispatcher {
	return &Dispatcher{
		conf:     conf,
		tokens:   tokenService,
		resolver: resolver,
		handlers: map[types.CallbackStatus]Handler{},
	}
}

// Register installs the handler for a status, replacing any previous one.
func (d *Dispatcher) Register(status types.CallbackStatus, handler Handler) {
	d.handlers[status] = handler
}

// Dispatch runs one callback delivery through the state machine. Statuses
// without a registered handler are logged and ignored; every other failure
// is terminal for this delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, header http.Header, payload types.CallbackPayload) error {
	logger := logging.From(ctx)

	teamID := ExtractKeyPart(payload.Key, KeyPartTeam)
	userID := ExtractKeyPart(payload.Key, KeyPartUser)
	fileID := ExtractKeyPart(payload.Key, KeyPartFile)
	if teamID == "" || userID == "" || fileID == "" {
		logger.Warnw("callback key malformed", "key", payload.Key)
		return ErrMalformedKey
	}

	settings, err := d.resolver.Settings(ctx, teamID)
	if err != nil {
		return fmt.Errorf("resolve settings of %s: %w", teamID, ErrCallbackAuthFailed)
	}

	token := payload.Token
	if token == "" {
		token = d.headerToken(header, settings)
	}
	if token == "" {
		return fmt.Errorf("no token in body or headers: %w", ErrCallbackAuthFailed)
	}

	secret := settings.Secret
	if secret == "" && settings.Demo {
		secret = d.conf.DemoSecret
	}
	if secret == "" {
		// Verifying with an empty key would accept anyone's tokens.
		logger.Warnw("callback rejected, no signing secret for team", "team", teamID)
		return fmt.Errorf("no signing secret for %s: %w", teamID, ErrCallbackAuthFailed)
	}
	if _, err := d.tokens.Verify(token, secret); err != nil {
		logger.Warnw("callback token rejected",
			"team", teamID, "file", fileID, "error", err)
		return fmt.Errorf("verify callback token: %w", ErrCallbackAuthFailed)
	}

	handler, ok := d.handlers[payload.Status]
	if !ok {
		logger.Infow("callback status unhandled",
			"status", payload.Status.String(), "file", fileID)
		return nil
	}

	logger.Debugw("callback routed",
		"status", payload.Status.String(), "team", teamID, "user", userID, "file", fileID)

	return handler.Handle(ctx, &Callback{
		TeamID:   teamID,
		UserID:   userID,
		FileID:   fileID,
		Payload:  payload,
		Settings: settings,
	})
}

// headerToken pulls the token from the workspace's configured header,
// stripping an optional bearer prefix.
func (d *Dispatcher) headerToken(header http.Header, settings credentials.Settings) string {
	name := settings.CallbackHeader
	if name == "" {
		name = d.conf.DefaultHeader
	}
	if name == "" {
		return ""
	}

	value := header.Get(name)
	return strings.TrimSpace(strings.TrimPrefix(value, "Bearer"))
}
