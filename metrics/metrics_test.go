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

package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserve(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveTest("passed", time.Second)
	m.ObserveTest("failed", 3*time.Second)
	m.ObserveTest("passed", time.Second)
	m.ObserveRetry()
	m.ObserveSession("chrome")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.tests.WithLabelValues("passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tests.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions.WithLabelValues("chrome")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.testDuration))

	expected := `
# HELP webcheck_retries_total Number of test attempts granted by the retry policy.
# TYPE webcheck_retries_total counter
webcheck_retries_total 1
`
	require.NoError(t, testutil.GatherAndCompare(
		m.Registry(), strings.NewReader(expected), "webcheck_"+RetriesName))
}

func TestMetricsNil(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTest("passed", time.Second)
		m.ObserveRetry()
		m.ObserveSession("firefox")
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile("whatever.prom"))
}

func TestMetricsWriteTextfile(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveSession("edge")

	path := filepath.Join(t.TempDir(), "webcheck.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path) //nolint:forbidigo
	require.NoError(t, err)
	assert.Contains(t, string(data), `webcheck_sessions_total{browser="edge"} 1`)
}
