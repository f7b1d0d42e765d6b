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

// Package prometheus provides a Prometheus metrics exporter.
package prometheus

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/docbridge-team/docbridge/internal/version"
)

const (
	namespace     = "docbridge"
	statusLabel   = "callback_status"
	resultLabel   = "result"
	taskTypeLabel = "task_type"
)

// Metrics manages the metric information that DocBridge measures.
type Metrics struct {
	registry *prometheus.Registry

	serverVersion *prometheus.GaugeVec

	callbacksHandledTotal *prometheus.CounterVec

	tokensIssuedTotal   prometheus.Counter
	tokensRejectedTotal prometheus.Counter

	saveUploadedBytesTotal prometheus.Counter
	saveDurationSeconds    prometheus.Histogram

	backgroundGoroutinesTotal *prometheus.GaugeVec
}

// NewMetrics creates a new instance of Metrics.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	metrics := &Metrics{
		registry: reg,
		serverVersion: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "version",
			Help:      "Which version is running. 1 for 'server_version' label with current version.",
		}, []string{"server_version"}),
		callbacksHandledTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "callbacks",
			Name:      "handled_total",
			Help:      "Total number of document-server callbacks handled, by status and result.",
		}, []string{statusLabel, resultLabel}),
		tokensIssuedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tokens",
			Name:      "issued_total",
			Help:      "Total number of tokens signed.",
		}),
		tokensRejectedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tokens",
			Name:      "rejected_total",
			Help:      "Total number of tokens rejected at verification.",
		}),
		saveUploadedBytesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "save",
			Name:      "uploaded_bytes_total",
			Help:      "Total bytes uploaded back to the chat platform by SAVE callbacks.",
		}),
		saveDurationSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "save",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of SAVE callback handling.",
		}),
		backgroundGoroutinesTotal: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "background",
			Name:      "goroutines_total",
			Help:      "The total number of goroutines attached by task type.",
		}, []string{taskTypeLabel}),
	}

	metrics.serverVersion.With(prometheus.Labels{
		"server_version": version.Version,
	}).Set(1)

	return metrics, nil
}

// AddCallbackHandled adds the result of one handled callback.
func (m *Metrics) AddCallbackHandled(status string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.callbacksHandledTotal.With(prometheus.Labels{
		statusLabel: status,
		resultLabel: result,
	}).Inc()
}

// AddTokenIssued adds one signed token.
func (m *Metrics) AddTokenIssued() {
	m.tokensIssuedTotal.Inc()
}

// AddTokenRejected adds one rejected token.
func (m *Metrics) AddTokenRejected() {
	m.tokensRejectedTotal.Inc()
}

// AddSaveUploadedBytes adds the size of one uploaded save.
func (m *Metrics) AddSaveUploadedBytes(bytes int) {
	m.saveUploadedBytesTotal.Add(float64(bytes))
}

// ObserveSaveDurationSeconds records the duration of one SAVE callback.
func (m *Metrics) ObserveSaveDurationSeconds(seconds float64) {
	m.saveDurationSeconds.Observe(seconds)
}

// AddBackgroundGoroutines adds a newly attached background goroutine.
func (m *Metrics) AddBackgroundGoroutines(taskType string) {
	m.backgroundGoroutinesTotal.With(prometheus.Labels{
		taskTypeLabel: taskType,
	}).Inc()
}

// RemoveBackgroundGoroutines removes a finished background goroutine.
func (m *Metrics) RemoveBackgroundGoroutines(taskType string) {
	m.backgroundGoroutinesTotal.With(prometheus.Labels{
		taskTypeLabel: taskType,
	}).Dec()
}

// RegisterDocumentKeysGauge exposes the number of live document keys through
// the given sampler. Registration happens late because the key store is
// created after the metrics.
func (m *Metrics) RegisterDocumentKeysGauge(active func() float64) error {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "dockeys",
		Name:      "active",
		Help:      "Number of document keys currently live in the store.",
	}, active)
	if err := m.registry.Register(gauge); err != nil {
		return fmt.Errorf("register document keys gauge: %w", err)
	}
	return nil
}

// Registry returns the registry of this metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
