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

package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/docbridge-team/docbridge/server/backend"
	"github.com/docbridge-team/docbridge/server/credentials"
	"github.com/docbridge-team/docbridge/server/profiling"
	"github.com/docbridge-team/docbridge/server/rpc"
)

// Below are the values of the default values of DocBridge config.
const (
	DefaultRPCPort       = 8080
	DefaultProfilingPort = 8081

	DefaultDownloadTimeout = 30 * time.Second
	DefaultDownloadSecret  = "docbridge-download"

	DefaultCallbackAuthHeader = "Authorization"

	DefaultTokenTTL    = 5 * time.Minute
	DefaultTokenLeeway = time.Minute

	DefaultCredentialCacheSize = 256
	DefaultCredentialCacheTTL  = 10 * time.Minute

	DefaultLivenessScheduleOffset = 12 * time.Hour
	DefaultMetadataFetchTimeout   = 5 * time.Second
	DefaultKeyCensusInterval      = time.Minute

	DefaultMaxUploadSizeBytes = int64(50 * 1024 * 1024)

	DefaultHostname = ""
)

// WorkspaceConfig is the file-backed configuration of one chat workspace.
// It feeds the static credential resolver used by single-tenant deployments.
type WorkspaceConfig struct {
	TeamID         string `yaml:"TeamID"`
	BotToken       string `yaml:"BotToken"`
	UserToken      string `yaml:"UserToken"`
	DocServerURL   string `yaml:"DocServerURL"`
	Secret         string `yaml:"Secret"`
	CallbackHeader string `yaml:"CallbackHeader"`
	Demo           bool   `yaml:"Demo"`
}

// Config is the configuration for creating a DocBridge instance.
type Config struct {
	RPC        *rpc.Config        `yaml:"RPC"`
	Profiling  *profiling.Config  `yaml:"Profiling"`
	Backend    *backend.Config    `yaml:"Backend"`
	Workspaces []*WorkspaceConfig `yaml:"Workspaces"`
}

// NewConfig returns a Config struct that contains reasonable defaults
// for most of the configurations.
func NewConfig() *Config {
	return newConfig(DefaultRPCPort, DefaultProfilingPort)
}

// NewConfigFromFile returns a Config struct for the given conf file.
func NewConfigFromFile(path string) (*Config, error) {
	conf := &Config{}
	bytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err = yaml.Unmarshal(bytes, conf); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	conf.ensureDefaultValue()
	return conf, nil
}

// RPCAddr returns the RPC address.
func (c *Config) RPCAddr() string {
	return fmt.Sprintf("localhost:%d", c.RPC.Port)
}

// StaticResolver builds the credential resolver backed by the configured
// workspaces.
func (c *Config) StaticResolver() *credentials.Static {
	static := &credentials.Static{
		Installers: map[string]credentials.Installer{},
		Configs:    map[string]credentials.Settings{},
	}
	for _, workspace := range c.Workspaces {
		static.Installers[workspace.TeamID] = credentials.Installer{
			TeamID:    workspace.TeamID,
			BotToken:  workspace.BotToken,
			UserToken: workspace.UserToken,
		}
		static.Configs[workspace.TeamID] = credentials.Settings{
			TeamID:         workspace.TeamID,
			DocServerURL:   workspace.DocServerURL,
			Secret:         workspace.Secret,
			CallbackHeader: workspace.CallbackHeader,
			Demo:           workspace.Demo,
		}
	}
	return static
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if err := c.RPC.Validate(); err != nil {
		return err
	}

	if err := c.Profiling.Validate(); err != nil {
		return err
	}

	if err := c.Backend.Validate(); err != nil {
		return err
	}

	return nil
}

// ensureDefaultValue sets the value of the option to which the default value
// should be applied when the user does not input it.
func (c *Config) ensureDefaultValue() {
	if c.RPC == nil {
		c.RPC = &rpc.Config{}
	}
	if c.Profiling == nil {
		c.Profiling = &profiling.Config{}
	}
	if c.Backend == nil {
		c.Backend = &backend.Config{}
	}

	if c.RPC.Port == 0 {
		c.RPC.Port = DefaultRPCPort
	}
	if c.RPC.DownloadSecret == "" {
		c.RPC.DownloadSecret = DefaultDownloadSecret
	}
	if c.RPC.DownloadTimeout == "" {
		c.RPC.DownloadTimeout = DefaultDownloadTimeout.String()
	}

	if c.Profiling.Port == 0 {
		c.Profiling.Port = DefaultProfilingPort
	}

	if c.Backend.Hostname == "" {
		c.Backend.Hostname = DefaultHostname
	}
	if c.Backend.CallbackAuthHeader == "" {
		c.Backend.CallbackAuthHeader = DefaultCallbackAuthHeader
	}
	if c.Backend.TokenTTL == "" {
		c.Backend.TokenTTL = DefaultTokenTTL.String()
	}
	if c.Backend.TokenLeeway == "" {
		c.Backend.TokenLeeway = DefaultTokenLeeway.String()
	}
	if c.Backend.CredentialCacheSize == 0 {
		c.Backend.CredentialCacheSize = DefaultCredentialCacheSize
	}
	if c.Backend.CredentialCacheTTL == "" {
		c.Backend.CredentialCacheTTL = DefaultCredentialCacheTTL.String()
	}
	if c.Backend.LivenessScheduleOffset == "" {
		c.Backend.LivenessScheduleOffset = DefaultLivenessScheduleOffset.String()
	}
	if c.Backend.MetadataFetchTimeout == "" {
		c.Backend.MetadataFetchTimeout = DefaultMetadataFetchTimeout.String()
	}
	if c.Backend.MaxUploadSizeBytes == 0 {
		c.Backend.MaxUploadSizeBytes = DefaultMaxUploadSizeBytes
	}
	if c.Backend.KeyCensusInterval == "" {
		c.Backend.KeyCensusInterval = DefaultKeyCensusInterval.String()
	}
}

func newConfig(port int, profilingPort int) *Config {
	conf := &Config{
		RPC:       &rpc.Config{Port: port},
		Profiling: &profiling.Config{Port: profilingPort},
		Backend:   &backend.Config{},
	}
	conf.ensureDefaultValue()
	return conf
}
