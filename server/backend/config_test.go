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

package backend_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/docbridge-team/docbridge/server/backend"
)

func validConfig() *backend.Config {
	return &backend.Config{
		TokenTTL:               "5m",
		TokenLeeway:            "1m",
		CredentialCacheTTL:     "10m",
		LivenessScheduleOffset: "2h",
		MetadataFetchTimeout:   "5s",
		KeyCensusInterval:      "1m",
	}
}

func TestConfig(t *testing.T) {
	t.Run("valid config test", func(t *testing.T) {
		conf := validConfig()
		assert.NoError(t, conf.Validate())
		assert.Equal(t, 5*time.Minute, conf.ParseTokenTTL())
		assert.Equal(t, time.Minute, conf.ParseTokenLeeway())
		assert.Equal(t, 10*time.Minute, conf.ParseCredentialCacheTTL())
		assert.Equal(t, 2*time.Hour, conf.ParseLivenessScheduleOffset())
		assert.Equal(t, 5*time.Second, conf.ParseMetadataFetchTimeout())
		assert.Equal(t, time.Minute, conf.ParseKeyCensusInterval())
	})

	t.Run("invalid durations test", func(t *testing.T) {
		for _, mutate := range []func(*backend.Config){
			func(c *backend.Config) { c.TokenTTL = "soon" },
			func(c *backend.Config) { c.TokenLeeway = "" },
			func(c *backend.Config) { c.CredentialCacheTTL = "10 minutes" },
			func(c *backend.Config) { c.LivenessScheduleOffset = "2hours" },
			func(c *backend.Config) { c.MetadataFetchTimeout = "-" },
			func(c *backend.Config) { c.KeyCensusInterval = "1" },
		} {
			conf := validConfig()
			mutate(conf)
			assert.Error(t, conf.Validate())
		}
	})
}
