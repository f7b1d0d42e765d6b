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

package credentials_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/docbridge-team/docbridge/server/credentials"
)

// countingResolver counts how often each lookup reaches the source.
type countingResolver struct {
	inner          credentials.Resolver
	installerCalls int
	settingsCalls  int
}

func (c *countingResolver) FindInstaller(ctx context.Context, teamID, userID string) (credentials.Installer, error) {
	c.installerCalls++
	return c.inner.FindInstaller(ctx, teamID, userID)
}

func (c *countingResolver) Settings(ctx context.Context, teamID string) (credentials.Settings, error) {
	c.settingsCalls++
	return c.inner.Settings(ctx, teamID)
}

func newCounting() *countingResolver {
	return &countingResolver{inner: &credentials.Static{
		Installers: map[string]credentials.Installer{
			"T01/U01": {TeamID: "T01", UserID: "U01", BotToken: "xoxb-bot"},
			"T01":     {TeamID: "T01", BotToken: "xoxb-team"},
		},
		Configs: map[string]credentials.Settings{
			"T01": {TeamID: "T01", Secret: "secret"},
		},
	}}
}

func TestStatic(t *testing.T) {
	t.Run("user entry preferred over team entry test", func(t *testing.T) {
		resolver := newCounting().inner
		ctx := context.Background()

		installer, err := resolver.FindInstaller(ctx, "T01", "U01")
		assert.NoError(t, err)
		assert.Equal(t, "xoxb-bot", installer.BotToken)

		installer, err = resolver.FindInstaller(ctx, "T01", "U99")
		assert.NoError(t, err)
		assert.Equal(t, "xoxb-team", installer.BotToken)

		_, err = resolver.FindInstaller(ctx, "T99", "U01")
		assert.ErrorIs(t, err, credentials.ErrNotFound)

		_, err = resolver.Settings(ctx, "T99")
		assert.ErrorIs(t, err, credentials.ErrNotFound)
	})
}

func TestCachedResolver(t *testing.T) {
	t.Run("repeated lookups served from cache test", func(t *testing.T) {
		counting := newCounting()
		cached, err := credentials.NewCachedResolver(counting, 16, time.Minute)
		assert.NoError(t, err)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			installer, err := cached.FindInstaller(ctx, "T01", "U01")
			assert.NoError(t, err)
			assert.Equal(t, "xoxb-bot", installer.BotToken)

			settings, err := cached.Settings(ctx, "T01")
			assert.NoError(t, err)
			assert.Equal(t, "secret", settings.Secret)
		}
		assert.Equal(t, 1, counting.installerCalls)
		assert.Equal(t, 1, counting.settingsCalls)
	})

	t.Run("expiry forces re-resolution test", func(t *testing.T) {
		counting := newCounting()
		cached, err := credentials.NewCachedResolver(counting, 16, -time.Second)
		assert.NoError(t, err)
		ctx := context.Background()

		for i := 0; i < 2; i++ {
			_, err := cached.FindInstaller(ctx, "T01", "U01")
			assert.NoError(t, err)
		}
		assert.Equal(t, 2, counting.installerCalls)
	})

	t.Run("lookup failures are not cached test", func(t *testing.T) {
		counting := newCounting()
		cached, err := credentials.NewCachedResolver(counting, 16, time.Minute)
		assert.NoError(t, err)
		ctx := context.Background()

		for i := 0; i < 2; i++ {
			_, err := cached.FindInstaller(ctx, "T99", "U01")
			assert.ErrorIs(t, err, credentials.ErrNotFound)
		}
		assert.Equal(t, 2, counting.installerCalls)
	})
}
