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

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/docbridge-team/docbridge/server"
	"github.com/docbridge-team/docbridge/server/logging"
)

var (
	gracefulTimeout = 10 * time.Second
)

var (
	flagConfPath string
	flagLogLevel string

	tokenTTL               time.Duration
	tokenLeeway            time.Duration
	credentialCacheTTL     time.Duration
	livenessScheduleOffset time.Duration
	metadataFetchTimeout   time.Duration
	downloadTimeout        time.Duration

	conf = server.NewConfig()
)

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server [options]",
		Short: "Start DocBridge server",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf.Backend.TokenTTL = tokenTTL.String()
			conf.Backend.TokenLeeway = tokenLeeway.String()
			conf.Backend.CredentialCacheTTL = credentialCacheTTL.String()
			conf.Backend.LivenessScheduleOffset = livenessScheduleOffset.String()
			conf.Backend.MetadataFetchTimeout = metadataFetchTimeout.String()
			conf.RPC.DownloadTimeout = downloadTimeout.String()

			// If config file is given, command-line arguments will be overwritten.
			if flagConfPath != "" {
				parsed, err := server.NewConfigFromFile(flagConfPath)
				if err != nil {
					return err
				}
				conf = parsed
			}

			if err := logging.SetLogLevel(flagLogLevel); err != nil {
				return err
			}

			// The chat platform client is supplied by embedding applications;
			// the standalone binary runs with the noop client.
			r, err := server.New(conf, nil)
			if err != nil {
				return err
			}

			if err := r.Start(); err != nil {
				return err
			}

			if code := handleSignal(r); code != 0 {
				return fmt.Errorf("exit code: %d", code)
			}

			return nil
		},
	}
}

func handleSignal(r *server.DocBridge) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	var sig os.Signal
	select {
	case s := <-sigCh:
		sig = s
	case <-r.ShutdownCh():
		// server is already shutdown
		return 0
	}

	graceful := false
	if sig == syscall.SIGINT || sig == syscall.SIGTERM {
		graceful = true
	}

	gracefulCh := make(chan struct{})
	go func() {
		if err := r.Shutdown(graceful); err != nil {
			return
		}
		close(gracefulCh)
	}()

	select {
	case <-sigCh:
		return 1
	case <-time.After(gracefulTimeout):
		return 1
	case <-gracefulCh:
		return 0
	}
}

func init() {
	cmd := newServerCmd()
	cmd.Flags().StringVarP(
		&flagConfPath,
		"config",
		"c",
		"",
		"Config path",
	)
	cmd.Flags().StringVarP(
		&flagLogLevel,
		"log-level",
		"l",
		"info",
		"Log level: debug, info, warn, error, panic, fatal",
	)
	cmd.Flags().IntVar(
		&conf.RPC.Port,
		"rpc-port",
		server.DefaultRPCPort,
		"RPC port",
	)
	cmd.Flags().StringVar(
		&conf.RPC.CertFile,
		"rpc-cert-file",
		"",
		"RPC certification file's path",
	)
	cmd.Flags().StringVar(
		&conf.RPC.KeyFile,
		"rpc-key-file",
		"",
		"RPC key file's path",
	)
	cmd.Flags().StringVar(
		&conf.RPC.DownloadSecret,
		"download-secret",
		server.DefaultDownloadSecret,
		"Secret signing file download tokens",
	)
	cmd.Flags().DurationVar(
		&downloadTimeout,
		"download-timeout",
		server.DefaultDownloadTimeout,
		"Wall-clock budget of a file download request",
	)
	cmd.Flags().IntVar(
		&conf.Profiling.Port,
		"profiling-port",
		server.DefaultProfilingPort,
		"Profiling port",
	)
	cmd.Flags().BoolVar(
		&conf.Profiling.EnablePprof,
		"pprof-enabled",
		false,
		"Enable runtime profiling data via HTTP server.",
	)
	cmd.Flags().StringVar(
		&conf.Backend.Hostname,
		"hostname",
		server.DefaultHostname,
		"DocBridge server hostname",
	)
	cmd.Flags().StringVar(
		&conf.Backend.PublicURL,
		"public-url",
		"",
		"Externally reachable base URL of this server",
	)
	cmd.Flags().StringVar(
		&conf.Backend.DemoSecret,
		"demo-secret",
		"",
		"Fallback secret for workspaces flagged as demo",
	)
	cmd.Flags().StringVar(
		&conf.Backend.CallbackAuthHeader,
		"callback-auth-header",
		server.DefaultCallbackAuthHeader,
		"Default header carrying the document server's callback token",
	)
	cmd.Flags().DurationVar(
		&tokenTTL,
		"token-ttl",
		server.DefaultTokenTTL,
		"Validity period of signed tokens",
	)
	cmd.Flags().DurationVar(
		&tokenLeeway,
		"token-leeway",
		server.DefaultTokenLeeway,
		"Clock-skew tolerance on token expiry",
	)
	cmd.Flags().IntVar(
		&conf.Backend.CredentialCacheSize,
		"credential-cache-size",
		server.DefaultCredentialCacheSize,
		"Cache size of resolved installer credentials",
	)
	cmd.Flags().DurationVar(
		&credentialCacheTTL,
		"credential-cache-ttl",
		server.DefaultCredentialCacheTTL,
		"Cache TTL of resolved installer credentials",
	)
	cmd.Flags().DurationVar(
		&livenessScheduleOffset,
		"liveness-schedule-offset",
		server.DefaultLivenessScheduleOffset,
		"How far in the future liveness messages are scheduled",
	)
	cmd.Flags().DurationVar(
		&metadataFetchTimeout,
		"metadata-fetch-timeout",
		server.DefaultMetadataFetchTimeout,
		"Timeout of the parallel metadata fetch on session open",
	)
	cmd.Flags().Int64Var(
		&conf.Backend.MaxUploadSizeBytes,
		"max-upload-size-bytes",
		server.DefaultMaxUploadSizeBytes,
		"Largest edited file accepted on save",
	)

	rootCmd.AddCommand(cmd)
}
