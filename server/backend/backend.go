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

// Package backend wires the components of DocBridge together: the chat
// client, the credential resolver, the token service, the document key store
// and the protocol services built on top of them.
package backend

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/docbridge-team/docbridge/pkg/types"
	"github.com/docbridge-team/docbridge/server/backend/background"
	"github.com/docbridge-team/docbridge/server/callbacks"
	"github.com/docbridge-team/docbridge/server/chat"
	"github.com/docbridge-team/docbridge/server/credentials"
	"github.com/docbridge-team/docbridge/server/dockeys"
	"github.com/docbridge-team/docbridge/server/documents"
	"github.com/docbridge-team/docbridge/server/liveness"
	"github.com/docbridge-team/docbridge/server/logging"
	"github.com/docbridge-team/docbridge/server/permissions"
	"github.com/docbridge-team/docbridge/server/profiling/prometheus"
	"github.com/docbridge-team/docbridge/server/tokens"
)

// Backend holds the shared components of a DocBridge instance.
type Backend struct {
	Config *Config

	// Background is used to manage background tasks.
	Background *background.Background
	// Metrics is used to expose metrics.
	Metrics *prometheus.Metrics

	// Chat reaches the chat platform.
	Chat chat.Client
	// Resolver resolves installer credentials, with an LRU cache in front.
	Resolver credentials.Resolver
	// Tokens signs and verifies protocol tokens.
	Tokens *tokens.Service

	// KeyStore holds the live document keys.
	KeyStore *dockeys.Store
	// Discovery publishes and recovers document keys through chat history.
	Discovery *dockeys.Discovery
	// Liveness manages scheduled-message OTPs.
	Liveness *liveness.Service
	// Ledger reads and writes file permissions anchored to messages.
	Ledger *permissions.Ledger
	// Sessions assembles editor sessions.
	Sessions *documents.Sessions
	// Dispatcher routes document-server callbacks.
	Dispatcher *callbacks.Dispatcher

	// closing is closed on Shutdown to stop background tasks.
	closing chan struct{}
}

// New creates a new instance of Backend.
func New(
	conf *Config,
	chatClient chat.Client,
	resolver credentials.Resolver,
	metrics *prometheus.Metrics,
	downloadSecret string,
) (*Backend, error) {
	// 01. Build the server info with the given hostname or the hostname of
	// the current machine.
	if conf.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("os.Hostname: %w", err)
		}
		conf.Hostname = hostname
	}

	// 02. Put the credential cache in front of the resolver so hot installer
	// lookups stay off the platform API.
	cachedResolver, err := credentials.NewCachedResolver(
		resolver,
		conf.CredentialCacheSize,
		conf.ParseCredentialCacheTTL(),
	)
	if err != nil {
		return nil, err
	}

	// 03. Create the token service and the document key store with its
	// durable mirror.
	tokenService := tokens.NewServiceWithObserver(&tokens.Config{
		TTL:    conf.ParseTokenTTL(),
		Leeway: conf.ParseTokenLeeway(),
	}, metrics)

	mirror, err := dockeys.NewMirror()
	if err != nil {
		return nil, err
	}
	// Discovery observes releases so the published marker dies with the key.
	discovery := dockeys.NewDiscovery(chatClient)
	keyStore := dockeys.NewStore(mirror, discovery)
	if err := metrics.RegisterDocumentKeysGauge(func() float64 {
		return float64(keyStore.Active())
	}); err != nil {
		return nil, err
	}

	// 04. Create the protocol services.
	livenessService := liveness.NewService(chatClient, &liveness.Config{
		ScheduleOffset: conf.ParseLivenessScheduleOffset(),
	})
	ledger := permissions.NewLedger(chatClient, cachedResolver)
	sessions := documents.NewSessions(
		&documents.Config{
			PublicURL:       conf.PublicURL,
			DownloadSecret:  downloadSecret,
			MetadataTimeout: conf.ParseMetadataFetchTimeout(),
		},
		chatClient,
		cachedResolver,
		tokenService,
		keyStore,
		discovery,
		ledger,
		livenessService,
	)

	// 05. Create the callback dispatcher and register the handlers.
	dispatcher := callbacks.NewDispatcher(&callbacks.Config{
		DefaultHeader: conf.CallbackAuthHeader,
		DemoSecret:    conf.DemoSecret,
	}, tokenService, cachedResolver)
	dispatcher.Register(types.StatusSave, callbacks.NewSaveHandler(
		&callbacks.SaveConfig{MaxUploadSize: conf.MaxUploadSizeBytes},
		chatClient,
		cachedResolver,
		keyStore,
		nil,
	))
	dispatcher.Register(types.StatusClose, callbacks.NewCloseHandler(keyStore))

	logging.DefaultLogger().Infof("backend created: host: %s", conf.Hostname)

	return &Backend{
		Config: conf,

		Background: background.New(metrics),
		Metrics:    metrics,

		Chat:     chatClient,
		Resolver: cachedResolver,
		Tokens:   tokenService,

		KeyStore:   keyStore,
		Discovery:  discovery,
		Liveness:   livenessService,
		Ledger:     ledger,
		Sessions:   sessions,
		Dispatcher: dispatcher,

		closing: make(chan struct{}),
	}, nil
}

// Start starts the backend.
func (b *Backend) Start(ctx context.Context) error {
	b.Background.AttachGoroutine(b.keyCensus, "census")
	logging.DefaultLogger().Infof("backend started")
	return nil
}

// Shutdown closes all resources of this instance.
func (b *Backend) Shutdown() error {
	close(b.closing)
	b.Background.Close()

	logging.DefaultLogger().Infof("backend stopped")
	return nil
}

// keyCensus periodically logs how many document keys are live. The census is
// the operator's signal for leaked keys from callbacks that never arrived.
func (b *Backend) keyCensus(ctx context.Context) {
	interval := b.Config.ParseKeyCensusInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.From(ctx).Infow("document key census",
				"active", b.KeyStore.Active())
		case <-b.closing:
			return
		}
	}
}
