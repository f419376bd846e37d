/*
 *
 * xk6-browser - a browser automation extension for k6
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package metrics exposes Prometheus collectors describing the outcome of a
// run. Every run owns its registry; nothing is registered globally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "webcheck"

// Metric names, without the namespace prefix.
const (
	TestsName        = "tests_total"
	RetriesName      = "retries_total"
	SessionsName     = "sessions_total"
	TestDurationName = "test_duration_seconds"
)

// Metrics holds the collectors of one run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	tests        *prometheus.CounterVec
	retries      prometheus.Counter
	sessions     *prometheus.CounterVec
	testDuration prometheus.Histogram
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      TestsName,
			Help:      "Number of finished test attempts by status.",
		}, []string{"status"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      RetriesName,
			Help:      "Number of test attempts granted by the retry policy.",
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      SessionsName,
			Help:      "Number of browser sessions launched by browser.",
		}, []string{"browser"}),
		testDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      TestDurationName,
			Help:      "Duration of test attempts.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
	}
	m.registry.MustRegister(m.tests, m.retries, m.sessions, m.testDuration)
	return m
}

// Registry returns the registry holding the run collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveTest records a finished attempt with status and duration d.
func (m *Metrics) ObserveTest(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.tests.WithLabelValues(status).Inc()
	m.testDuration.Observe(d.Seconds())
}

// ObserveRetry records one granted retry.
func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

// ObserveSession records one launched browser session.
func (m *Metrics) ObserveSession(browser string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(browser).Inc()
}

// WriteTextfile writes the collectors in the text exposition format to
// path, atomically, for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
