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

package liveness_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/docbridge-team/docbridge/server/chat/chattest"
	"github.com/docbridge-team/docbridge/server/credentials"
	"github.com/docbridge-team/docbridge/server/liveness"
)

var caller = credentials.Installer{
	TeamID:    "T01",
	UserID:    "U01",
	BotToken:  "xoxb-bot",
	UserToken: "xoxp-user",
}

func TestLiveness(t *testing.T) {
	ctx := context.Background()
	conf := &liveness.Config{ScheduleOffset: 12 * time.Hour}

	t.Run("otp lifecycle test", func(t *testing.T) {
		fake := chattest.New()
		svc := liveness.NewService(fake, conf)

		otp, err := svc.Generate(ctx, caller, "C01")
		assert.NoError(t, err)
		assert.NotEmpty(t, otp.Code)
		assert.Equal(t, "C01", otp.Channel)
		assert.True(t, otp.PostAt > time.Now().Unix())

		assert.True(t, svc.IsLive(ctx, caller, otp.Channel, otp.PostAt))

		assert.True(t, svc.Revoke(ctx, caller, otp.Channel, otp.Code))
		assert.False(t, svc.IsLive(ctx, caller, otp.Channel, otp.PostAt))
	})

	t.Run("no credentials test", func(t *testing.T) {
		fake := chattest.New()
		svc := liveness.NewService(fake, conf)

		_, err := svc.Generate(ctx, credentials.Installer{}, "C01")
		assert.ErrorIs(t, err, liveness.ErrLivenessUnavailable)

		assert.False(t, svc.IsLive(ctx, credentials.Installer{}, "C01", 1))
		assert.False(t, svc.Revoke(ctx, credentials.Installer{}, "C01", "Q1"))
	})

	t.Run("scheduler failure test", func(t *testing.T) {
		fake := chattest.New()
		fake.FailSchedule = true
		svc := liveness.NewService(fake, conf)

		_, err := svc.Generate(ctx, caller, "C01")
		assert.ErrorIs(t, err, liveness.ErrLivenessUnavailable)
	})

	t.Run("revoke unknown code test", func(t *testing.T) {
		fake := chattest.New()
		svc := liveness.NewService(fake, conf)

		// Non-fatal: revoking a code that no longer exists returns false.
		assert.False(t, svc.Revoke(ctx, caller, "C01", "Q404"))
	})
}
