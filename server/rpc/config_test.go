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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/docbridge-team/docbridge/server/rpc"
)

func TestConfig(t *testing.T) {
	scenarios := []*struct {
		config   *rpc.Config
		expected error
	}{
		{config: &rpc.Config{Port: -1, DownloadTimeout: "30s"}, expected: rpc.ErrInvalidRPCPort},
		{config: &rpc.Config{Port: 0, DownloadTimeout: "30s"}, expected: rpc.ErrInvalidRPCPort},
		{config: &rpc.Config{Port: 8080, CertFile: "missing_cert_file", DownloadTimeout: "30s"},
			expected: rpc.ErrInvalidCertFile},
		{config: &rpc.Config{Port: 8080, KeyFile: "missing_key_file", DownloadTimeout: "30s"},
			expected: rpc.ErrInvalidKeyFile},
		{config: &rpc.Config{Port: 8080, DownloadTimeout: "forever"},
			expected: rpc.ErrInvalidDownloadTimeout},
		{config: &rpc.Config{Port: 8080, DownloadTimeout: "30s"}, expected: nil},
	}
	for _, scenario := range scenarios {
		assert.ErrorIs(t, scenario.config.Validate(), scenario.expected, "provided config: %#v", scenario.config)
	}

	conf := &rpc.Config{Port: 8080, DownloadTimeout: "30s"}
	assert.NoError(t, conf.Validate())
	assert.Equal(t, 30*time.Second, conf.DownloadTimeoutDuration())
}
