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

package backend

import (
	"fmt"
	"time"
)

// Config is the configuration for creating a Backend instance.
type Config struct {
	// Hostname is the name of the host this instance runs on. It defaults to
	// the hostname of the machine.
	Hostname string `yaml:"Hostname"`

	// PublicURL is the externally reachable base URL of this server.
	PublicURL string `yaml:"PublicURL"`

	// DemoSecret is the bundled fallback secret used for workspaces flagged
	// as demo that have no secret of their own.
	DemoSecret string `yaml:"DemoSecret"`

	// CallbackAuthHeader is the default header the document server presents
	// its callback token in. Workspaces may override it.
	CallbackAuthHeader string `yaml:"CallbackAuthHeader"`

	// TokenTTL is how long a signed token stays valid. Default is "5m".
	TokenTTL string `yaml:"TokenTTL"`

	// TokenLeeway is the clock-skew tolerance on token expiry. Default is "1m".
	TokenLeeway string `yaml:"TokenLeeway"`

	// CredentialCacheSize is the cache size of resolved installer credentials.
	CredentialCacheSize int `yaml:"CredentialCacheSize"`

	// CredentialCacheTTL is the TTL of cached installer credentials. Expiry
	// forces re-resolution so rotated tokens are picked up. Default is "10m".
	CredentialCacheTTL string `yaml:"CredentialCacheTTL"`

	// LivenessScheduleOffset is how far in the future liveness messages are
	// scheduled. Default is "2h".
	LivenessScheduleOffset string `yaml:"LivenessScheduleOffset"`

	// MetadataFetchTimeout bounds the parallel metadata fetch when opening a
	// session. Default is "5s".
	MetadataFetchTimeout string `yaml:"MetadataFetchTimeout"`

	// MaxUploadSizeBytes is the largest edited file accepted on save.
	MaxUploadSizeBytes int64 `yaml:"MaxUploadSizeBytes"`

	// KeyCensusInterval is the interval of the background census that logs
	// the number of live document keys. Default is "1m".
	KeyCensusInterval string `yaml:"KeyCensusInterval"`
}

// Validate validates this config.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.TokenTTL); err != nil {
		return fmt.Errorf("invalid token TTL %q: %w", c.TokenTTL, err)
	}
	if _, err := time.ParseDuration(c.TokenLeeway); err != nil {
		return fmt.Errorf("invalid token leeway %q: %w", c.TokenLeeway, err)
	}
	if _, err := time.ParseDuration(c.CredentialCacheTTL); err != nil {
		return fmt.Errorf("invalid credential cache TTL %q: %w", c.CredentialCacheTTL, err)
	}
	if _, err := time.ParseDuration(c.LivenessScheduleOffset); err != nil {
		return fmt.Errorf("invalid liveness schedule offset %q: %w", c.LivenessScheduleOffset, err)
	}
	if _, err := time.ParseDuration(c.MetadataFetchTimeout); err != nil {
		return fmt.Errorf("invalid metadata fetch timeout %q: %w", c.MetadataFetchTimeout, err)
	}
	if _, err := time.ParseDuration(c.KeyCensusInterval); err != nil {
		return fmt.Errorf("invalid key census interval %q: %w", c.KeyCensusInterval, err)
	}
	return nil
}

// ParseTokenTTL returns TokenTTL as a time.Duration.
func (c *Config) ParseTokenTTL() time.Duration {
	return mustParseDuration(c.TokenTTL)
}

// ParseTokenLeeway returns TokenLeeway as a time.Duration.
func (c *Config) ParseTokenLeeway() time.Duration {
	return mustParseDuration(c.TokenLeeway)
}

// ParseCredentialCacheTTL returns CredentialCacheTTL as a time.Duration.
func (c *Config) ParseCredentialCacheTTL() time.Duration {
	return mustParseDuration(c.CredentialCacheTTL)
}

// ParseLivenessScheduleOffset returns LivenessScheduleOffset as a time.Duration.
func (c *Config) ParseLivenessScheduleOffset() time.Duration {
	return mustParseDuration(c.LivenessScheduleOffset)
}

// ParseMetadataFetchTimeout returns MetadataFetchTimeout as a time.Duration.
func (c *Config) ParseMetadataFetchTimeout() time.Duration {
	return mustParseDuration(c.MetadataFetchTimeout)
}

// ParseKeyCensusInterval returns KeyCensusInterval as a time.Duration.
func (c *Config) ParseKeyCensusInterval() time.Duration {
	return mustParseDuration(c.KeyCensusInterval)
}

// mustParseDuration is used after Validate has passed.
func mustParseDuration(value string) time.Duration {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		panic(err)
	}
	return parsed
}
