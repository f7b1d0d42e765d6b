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

// Package credentials resolves installer credentials and per-workspace
// document-server settings. The store behind the resolver (and its
// encryption at rest) is outside the protocol core; this package consumes it
// as a black box that returns valid access tokens.
package credentials

import (
	"context"
	"errors"
	"time"

	"github.com/docbridge-team/docbridge/pkg/cache"
)

var (
	// ErrNotFound is returned when no installer or settings exist for the
	// requested team.
	ErrNotFound = errors.New("credentials: not found")
)

// Installer is the credential set of the user who installed the app in a
// workspace, plus the acting user's own token when one was granted.
type Installer struct {
	TeamID    string
	UserID    string
	BotToken  string
	UserToken string
}

// Settings are the per-workspace document-server settings.
type Settings struct {
	TeamID string

	// DocServerURL is the address of the workspace's document server.
	DocServerURL string

	// Secret signs editor and callback tokens for this workspace.
	Secret string

	// CallbackHeader is the header name the workspace's document server
	// delivers its callback token in.
	CallbackHeader string

	// Demo marks workspaces running against the bundled demo document
	// server instead of their own.
	Demo bool
}

// Resolver resolves installers and settings for a team.
type Resolver interface {
	// FindInstaller returns the installer credentials for the given team,
	// preferring a token bound to the given user when one exists.
	FindInstaller(ctx context.Context, teamID, userID string) (Installer, error)

	// Settings returns the document-server settings of the given team.
	Settings(ctx context.Context, teamID string) (Settings, error)
}

// CachedResolver decorates a Resolver with an LRU so hot teams do not hit
// the credential store on every request. Entries expire on TTL, which also
// bounds how long a rotated token keeps being served.
type CachedResolver struct {
	resolver   Resolver
	installers *cache.LRUExpireCache[string, Installer]
	settings   *cache.LRUExpireCache[string, Settings]
	ttl        time.Duration
}

// NewCachedResolver creates a CachedResolver with the given cache size and TTL.
func NewCachedResolver(resolver Resolver, size int, ttl time.Duration) (*CachedResolver, error) {
	installers, err := cache.NewLRUExpireCache[string, Installer](size)
	if err != nil {
		return nil, err
	}
	settings, err := cache.NewLRUExpireCache[string, Settings](size)
	if err != nil {
		return nil, err
	}

	return &CachedResolver{
		resolver:   resolver,
		installers: installers,
		settings:   settings,
		ttl:        ttl,
	}, nil
}

// FindInstaller implements Resolver.
func (c *CachedResolver) FindInstaller(ctx context.Context, teamID, userID string) (Installer, error) {
	key := teamID + "/" + userID
	if cached, ok := c.installers.Get(key); ok {
		return cached, nil
	}

	installer, err := c.resolver.FindInstaller(ctx, teamID, userID)
	if err != nil {
		return Installer{}, err
	}

	c.installers.Add(key, installer, c.ttl)
	return installer, nil
}

// Settings implements Resolver.
func (c *CachedResolver) Settings(ctx context.Context, teamID string) (Settings, error) {
	if cached, ok := c.settings.Get(teamID); ok {
		return cached, nil
	}

	settings, err := c.resolver.Settings(ctx, teamID)
	if err != nil {
		return Settings{}, err
	}

	c.settings.Add(teamID, settings, c.ttl)
	return settings, nil
}

// Static is a fixed, map-backed Resolver. It serves single-workspace
// deployments configured from file and doubles as the test resolver.
type Static struct {
	Installers map[string]Installer
	Configs    map[string]Settings
}

// FindInstaller implements Resolver.
func (s *Static) FindInstaller(_ context.Context, teamID, userID string) (Installer, error) {
	if installer, ok := s.Installers[teamID+"/"+userID]; ok {
		return installer, nil
	}
	if installer, ok := s.Installers[teamID]; ok {
		return installer, nil
	}
	return Installer{}, ErrNotFound
}

// Settings implements Resolver.
func (s *Static) Settings(_ context.Context, teamID string) (Settings, error) {
	if settings, ok := s.Configs[teamID]; ok {
		return settings, nil
	}
	return Settings{}, ErrNotFound
}
