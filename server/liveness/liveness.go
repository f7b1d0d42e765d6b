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

// Package liveness proves that an editing grant is still live by scheduling
// a far-future chat message as a one-time password: the scheduled message
// existing means the grant is live, cancelling it revokes the grant, and the
// platform firing it is an implicit timeout. Reusing the platform's own
// scheduler avoids a separate TTL store.
package liveness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docbridge-team/docbridge/pkg/types"
	"github.com/docbridge-team/docbridge/server/chat"
	"github.com/docbridge-team/docbridge/server/credentials"
	"github.com/docbridge-team/docbridge/server/logging"
)

var (
	// ErrLivenessUnavailable is returned when the OTP could not be created,
	// either because the caller has no platform credentials or the schedule
	// call failed. Callers must treat it as "cannot grant edit access."
	ErrLivenessUnavailable = errors.New("liveness unavailable")
)

// placeholderText is the body of the scheduled message. It only ever becomes
// visible if a session outlives the schedule offset without being closed.
const placeholderText = "This editing session has expired."

// Config is the configuration of the liveness service.
type Config struct {
	// ScheduleOffset is how far in the future the OTP message is scheduled.
	// It doubles as the implicit timeout of an editing grant.
	ScheduleOffset time.Duration
}

// Service mints and checks scheduled-message OTPs.
type Service struct {
	chat chat.Client
	conf *Config
}

// NewService creates a new liveness service.
func NewService(chatClient chat.Client, conf *Config) *Service {
	return &Service{chat: chatClient, conf: conf}
}

// Generate schedules a placeholder message owned by the caller and returns
// its platform-assigned id, channel and post time.
func (s *Service) Generate(ctx context.Context, caller credentials.Installer, channel string) (types.ScheduledOTP, error) {
	token := callerToken(caller)
	if token == "" {
		return types.ScheduledOTP{}, fmt.Errorf("no platform credentials: %w", ErrLivenessUnavailable)
	}

	postAt := time.Now().Add(s.conf.ScheduleOffset).Unix()
	scheduled, err := s.chat.ScheduleMessage(ctx, token, channel, placeholderText, postAt)
	if err != nil {
		return types.ScheduledOTP{}, fmt.Errorf("schedule liveness message: %w: %s", ErrLivenessUnavailable, err.Error())
	}

	return types.ScheduledOTP{
		Code:    scheduled.ID,
		Channel: scheduled.ChannelID,
		PostAt:  scheduled.PostAt,
	}, nil
}

// IsLive reports whether a scheduled message at exactly the given post time
// still exists for the caller. Lookup failures count as not live.
func (s *Service) IsLive(ctx context.Context, caller credentials.Installer, channel string, postAt int64) bool {
	token := callerToken(caller)
	if token == "" {
		return false
	}

	scheduled, err := s.chat.ListScheduledMessages(ctx, token, channel, postAt, postAt)
	if err != nil {
		logging.From(ctx).Warnw("liveness lookup failed", "channel", channel, "error", err)
		return false
	}
	return len(scheduled) > 0
}

// Revoke cancels the scheduled message with the given code. Revocation is
// best-effort: a false return is a logged warning for the caller, never a
// reason to fail the surrounding workflow.
func (s *Service) Revoke(ctx context.Context, caller credentials.Installer, channel, code string) bool {
	token := callerToken(caller)
	if token == "" {
		return false
	}

	if err := s.chat.DeleteScheduledMessage(ctx, token, channel, code); err != nil {
		logging.From(ctx).Warnw("liveness revoke failed",
			"channel", channel, "code", code, "error", err)
		return false
	}
	return true
}

// callerToken picks the token the OTP is owned by. The user token binds the
// OTP to the acting user; the bot token is the fallback.
func callerToken(caller credentials.Installer) string {
	if caller.UserToken != "" {
		return caller.UserToken
	}
	return caller.BotToken
}
