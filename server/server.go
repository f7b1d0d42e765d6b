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

// Package server provides the DocBridge server which is the main entry point
// of the system. The server is responsible for starting the RPC server and
// the profiling server on top of the shared backend.
package server

import (
	"context"
	gosync "sync"

	"github.com/docbridge-team/docbridge/server/backend"
	"github.com/docbridge-team/docbridge/server/chat"
	"github.com/docbridge-team/docbridge/server/profiling"
	"github.com/docbridge-team/docbridge/server/profiling/prometheus"
	"github.com/docbridge-team/docbridge/server/rpc"
)

// DocBridge is a server connecting a chat platform to a document server.
// It terminates the document server's callbacks and downloads, and exposes
// the session, permission and liveness services to the embedding
// application.
type DocBridge struct {
	lock gosync.Mutex

	conf            *Config
	backend         *backend.Backend
	rpcServer       *rpc.Server
	profilingServer *profiling.Server

	shutdown   bool
	shutdownCh chan struct{}
}

// New creates a new instance of DocBridge. The chat client is provided by
// the embedding application; passing nil installs a noop client so the HTTP
// surface still comes up.
func New(conf *Config, chatClient chat.Client) (*DocBridge, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	metrics, err := prometheus.NewMetrics()
	if err != nil {
		return nil, err
	}

	chatClient = chat.Ensure(chatClient)
	be, err := backend.New(
		conf.Backend,
		chatClient,
		conf.StaticResolver(),
		metrics,
		conf.RPC.DownloadSecret,
	)
	if err != nil {
		return nil, err
	}

	rpcServer := rpc.NewServer(
		conf.RPC,
		be.Dispatcher,
		be.Tokens,
		be.Resolver,
		chatClient,
		be.Liveness,
		metrics,
	)

	var profilingServer *profiling.Server
	if conf.Profiling != nil {
		profilingServer = profiling.NewServer(conf.Profiling, metrics)
	}

	return &DocBridge{
		conf:            conf,
		backend:         be,
		rpcServer:       rpcServer,
		profilingServer: profilingServer,
		shutdownCh:      make(chan struct{}),
	}, nil
}

// Start starts the server by opening the rpc port.
func (r *DocBridge) Start() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.backend.Start(context.Background()); err != nil {
		return err
	}

	if r.profilingServer != nil {
		if err := r.profilingServer.Start(); err != nil {
			return err
		}
	}

	return r.rpcServer.Start()
}

// Shutdown shuts down this DocBridge server.
func (r *DocBridge) Shutdown(graceful bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.shutdown {
		return nil
	}

	r.rpcServer.Shutdown(graceful)
	if r.profilingServer != nil {
		r.profilingServer.Shutdown(graceful)
	}

	if err := r.backend.Shutdown(); err != nil {
		return err
	}

	close(r.shutdownCh)
	r.shutdown = true
	return nil
}

// ShutdownCh returns the shutdown channel.
func (r *DocBridge) ShutdownCh() <-chan struct{} {
	return r.shutdownCh
}

// RPCAddr returns the address of the RPC.
func (r *DocBridge) RPCAddr() string {
	return r.conf.RPCAddr()
}

// Backend returns the backend of this server for embedding applications.
func (r *DocBridge) Backend() *backend.Backend {
	return r.backend
}
