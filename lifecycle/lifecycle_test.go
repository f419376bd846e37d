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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/liuxd6825/webcheck/common"
	"github.com/liuxd6825/webcheck/errext"
	"github.com/liuxd6825/webcheck/errext/exitcodes"
	"github.com/liuxd6825/webcheck/metrics"
	"github.com/liuxd6825/webcheck/report"
	"github.com/liuxd6825/webcheck/retry"
	"github.com/liuxd6825/webcheck/testutils/browsertest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memStore struct {
	mu     sync.Mutex
	writes []report.Snapshot
}

func (s *memStore) Write(_ context.Context, snap report.Snapshot) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, snap)
	return "mem://report", nil
}

func (s *memStore) last() report.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[len(s.writes)-1]
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

type harness struct {
	backend   *browsertest.Backend
	store     *memStore
	pipeline  *report.Pipeline
	metrics   *metrics.Metrics
	artifacts *browsertest.MemoryArtifacts
	runner    *Runner
}

func newHarness(t *testing.T, policy report.FlushPolicy, mod func(*RunnerConfig)) *harness {
	t.Helper()

	wait, err := common.NewWaitConfiguration(100*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)

	h := &harness{
		backend:   browsertest.NewBackend(),
		store:     &memStore{},
		metrics:   metrics.New(),
		artifacts: browsertest.NewMemoryArtifacts(),
	}
	h.pipeline = report.NewPipeline("lifecycle", h.store, policy, nil)
	coord := NewCoordinator(h.pipeline, retry.NewTracker(retry.DefaultLimit), WithMetrics(h.metrics))

	cfg := RunnerConfig{
		Backend:             h.backend,
		Browser:             "chrome",
		Wait:                wait,
		Artifacts:           h.artifacts,
		ScreenshotOnFailure: true,
		Metrics:             h.metrics,
	}
	if mod != nil {
		mod(&cfg)
	}
	h.runner = NewRunner(cfg, coord)
	return h
}

func timeoutErr() error {
	return &common.TimeoutError{Condition: "element to be visible", Timeout: time.Second}
}

func TestRunnerRetries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		failures     int
		err          func() error
		wantAttempts int
		wantPassed   bool
		wantStatuses []report.Status
	}{
		{
			name:         "passes first time",
			failures:     0,
			err:          timeoutErr,
			wantAttempts: 1,
			wantPassed:   true,
			wantStatuses: []report.Status{report.Passed},
		},
		{
			name:         "always failing",
			failures:     100,
			err:          timeoutErr,
			wantAttempts: 3,
			wantStatuses: []report.Status{report.Failed, report.Failed, report.Failed},
		},
		{
			name:         "succeeds on second",
			failures:     1,
			err:          timeoutErr,
			wantAttempts: 2,
			wantPassed:   true,
			wantStatuses: []report.Status{report.Failed, report.Passed},
		},
		{
			name:     "programmer error is not retried",
			failures: 100,
			err: func() error {
				return &common.InvalidArgumentError{Arg: "mode", Value: "label", Reason: "unknown"}
			},
			wantAttempts: 1,
			wantStatuses: []report.Status{report.Failed},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, report.FlushAtEnd, nil)
			var calls int32
			summary, err := h.runner.Run(context.Background(), []Test{{
				Name: "login",
				Run: func(ctx context.Context, ec *ExecutionContext) error {
					n := atomic.AddInt32(&calls, 1)
					assert.Equal(t, int(n), ec.Attempt())
					if _, err := ec.Page(ctx); err != nil {
						return err
					}
					if int(n) <= tt.failures {
						return tt.err()
					}
					return ec.Log(report.Pass, "logged in")
				},
			}})
			require.NoError(t, err)

			assert.Equal(t, tt.wantAttempts, int(atomic.LoadInt32(&calls)))
			require.Len(t, summary.Results, 1)
			res := summary.Results[0]
			assert.Equal(t, tt.wantAttempts, res.Attempts)
			assert.Equal(t, tt.wantPassed, res.Passed)
			assert.Equal(t, "mem://report", summary.ReportPath)

			snap := h.store.last()
			require.Len(t, snap.Entries, len(tt.wantStatuses))
			for i, e := range snap.Entries {
				assert.Equal(t, "login", e.Name)
				assert.Equal(t, i+1, e.Attempt)
				assert.Equal(t, tt.wantStatuses[i], e.Status)
				if e.Status == report.Failed {
					assert.NotEmpty(t, e.Error)
					assert.Len(t, e.Artifacts, 1)
				}
			}

			drivers := h.backend.Drivers()
			require.Len(t, drivers, tt.wantAttempts)
			for _, d := range drivers {
				assert.Equal(t, 1, d.QuitCount())
			}
			expected := fmt.Sprintf(`
# HELP webcheck_retries_total Number of test attempts granted by the retry policy.
# TYPE webcheck_retries_total counter
webcheck_retries_total %d
`, tt.wantAttempts-1)
			require.NoError(t, testutil.GatherAndCompare(
				h.metrics.Registry(), strings.NewReader(expected), "webcheck_retries_total"))
		})
	}
}

func TestRunnerNonRetryableSetupErrors(t *testing.T) {
	t.Parallel()

	h := newHarness(t, report.FlushAtEnd, nil)
	var calls int32
	summary, err := h.runner.Run(context.Background(), []Test{{
		Name: "safari",
		Run: func(ctx context.Context, ec *ExecutionContext) error {
			atomic.AddInt32(&calls, 1)
			_, err := ec.Launch(ctx, "safari")
			return err
		},
	}})
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	res := summary.Results[0]
	assert.False(t, res.Passed)
	require.ErrorIs(t, res.Err, common.ErrUnsupportedBrowser)
	assert.Empty(t, h.backend.Drivers())

	snap := h.store.last()
	require.Len(t, snap.Entries, 1)
	assert.Contains(t, snap.Entries[0].Error, "safari")
	assert.Empty(t, snap.Entries[0].Artifacts)
}

func TestRunnerPanicFailsTest(t *testing.T) {
	t.Parallel()

	h := newHarness(t, report.FlushAtEnd, nil)
	summary, err := h.runner.Run(context.Background(), []Test{{
		Name: "boom",
		Run: func(context.Context, *ExecutionContext) error {
			panic("unexpected")
		},
	}})
	require.NoError(t, err)
	res := summary.Results[0]
	assert.Equal(t, 1, res.Attempts)
	require.ErrorContains(t, res.Err, "panicked: unexpected")
	assert.Equal(t, 1, summary.Failed())
}

func TestRunnerFlushEachTest(t *testing.T) {
	t.Parallel()

	h := newHarness(t, report.FlushEachTest, nil)
	body := func(ctx context.Context, ec *ExecutionContext) error {
		return ec.Log(report.Info, "hello from "+ec.Test())
	}
	summary, err := h.runner.Run(context.Background(), []Test{
		{Name: "one", Run: body},
		{Name: "two", Run: body},
	})
	require.NoError(t, err)

	// One write per stopped entry plus the final one.
	assert.Equal(t, 3, h.store.count())
	assert.Equal(t, 2, summary.Passed())
	snap := h.store.last()
	assert.Equal(t, 2, snap.Summary.Passed)
	assert.Equal(t, "hello from one", snap.Entries[0].Lines[0].Message)
}

func TestRunnerParallel(t *testing.T) {
	t.Parallel()

	h := newHarness(t, report.FlushEachTest, func(cfg *RunnerConfig) { cfg.Parallel = 3 })

	var (
		running int32
		peak    int32
		mu      sync.Mutex
		seen    = map[string]string{}
	)
	body := func(ctx context.Context, ec *ExecutionContext) error {
		n := atomic.AddInt32(&running, 1)
		defer atomic.AddInt32(&running, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}

		page, err := ec.Page(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		seen[ec.Test()] = page.Session.ID()
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)
		return ec.Log(report.Pass, "done")
	}

	tests := make([]Test, 6)
	for i := range tests {
		tests[i] = Test{Name: fmt.Sprintf("test-%d", i), Run: body}
	}
	summary, err := h.runner.Run(context.Background(), tests)
	require.NoError(t, err)

	assert.Equal(t, 6, summary.Passed())
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	assert.Equal(t, report.FlushAtEnd, h.pipeline.Policy())
	assert.Equal(t, 1, h.store.count())

	ids := map[string]bool{}
	for _, id := range seen {
		ids[id] = true
	}
	assert.Len(t, ids, 6)
	for i, r := range summary.Results {
		assert.Equal(t, fmt.Sprintf("test-%d", i), r.Name)
	}
}

func TestRunnerCanceled(t *testing.T) {
	t.Parallel()

	h := newHarness(t, report.FlushAtEnd, nil)
	ctx, cancel := context.WithCancel(context.Background())
	summary, err := h.runner.Run(ctx, []Test{
		{
			Name: "cancels",
			Run: func(ctx context.Context, _ *ExecutionContext) error {
				cancel()
				<-ctx.Done()
				return ctx.Err()
			},
		},
		{
			Name: "never runs",
			Run: func(context.Context, *ExecutionContext) error {
				t.Error("test ran after cancellation")
				return nil
			},
		},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, exitcodes.RunAborted, errext.ExitCodeOf(err, 0))

	assert.Equal(t, 1, summary.Results[0].Attempts)
	assert.Equal(t, 0, summary.Results[1].Attempts)
	assert.Equal(t, 1, h.store.count())
}

func TestRunnerInvalidTests(t *testing.T) {
	t.Parallel()

	h := newHarness(t, report.FlushAtEnd, nil)
	noop := func(context.Context, *ExecutionContext) error { return nil }

	_, err := h.runner.Run(context.Background(), []Test{{Name: "a", Run: noop}, {Name: "a", Run: noop}})
	require.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = h.runner.Run(context.Background(), []Test{{Name: "", Run: noop}})
	require.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestRunnerReportFailure(t *testing.T) {
	t.Parallel()

	wait, err := common.NewWaitConfiguration(100*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)
	pipeline := report.NewPipeline("broken", failingStore{}, report.FlushAtEnd, nil)
	runner := NewRunner(RunnerConfig{
		Backend: browsertest.NewBackend(),
		Browser: "chrome",
		Wait:    wait,
	}, NewCoordinator(pipeline, retry.NewTracker(0)))

	_, err = runner.Run(context.Background(), []Test{{
		Name: "ok",
		Run:  func(context.Context, *ExecutionContext) error { return nil },
	}})
	require.Error(t, err)
	assert.Equal(t, exitcodes.ReportFailed, errext.ExitCodeOf(err, 0))
}

func TestRunnerStartFailureFailsTest(t *testing.T) {
	t.Parallel()

	wait, err := common.NewWaitConfiguration(100*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)
	coord := NewCoordinator(report.NewPipeline("busy", nil, report.FlushAtEnd, nil), retry.NewTracker(2))
	_, _, err = coord.OnTestStart(context.Background(), "busy")
	require.NoError(t, err)

	var calls atomic.Int32
	runner := NewRunner(RunnerConfig{
		Backend: browsertest.NewBackend(),
		Browser: "chrome",
		Wait:    wait,
	}, coord)
	summary, err := runner.Run(context.Background(), []Test{{
		Name: "busy",
		Run: func(context.Context, *ExecutionContext) error {
			calls.Add(1)
			return nil
		},
	}})
	require.ErrorIs(t, err, ErrAlreadyStarted)
	require.Len(t, summary.Results, 1)
	res := summary.Results[0]
	assert.False(t, res.Passed)
	assert.ErrorIs(t, res.Err, ErrAlreadyStarted)
	assert.Equal(t, 1, res.Attempts)
	assert.Zero(t, calls.Load())
	assert.Equal(t, 1, summary.Failed())
}

type failingStore struct{}

func (failingStore) Write(context.Context, report.Snapshot) (string, error) {
	return "", errors.New("disk full")
}

func TestExecutionContextStep(t *testing.T) {
	t.Parallel()

	h := newHarness(t, report.FlushAtEnd, nil)
	summary, err := h.runner.Run(context.Background(), []Test{{
		Name: "steps",
		Vars: map[string]string{"user": "alice"},
		Run: func(ctx context.Context, ec *ExecutionContext) error {
			assert.Equal(t, "alice", ec.Var("user"))
			assert.Equal(t, "steps", common.GetTestName(ctx))
			assert.NoError(t, ec.Step(ctx, "noop", func(context.Context) error { return nil }))
			return ec.Step(ctx, "click save", func(context.Context) error {
				return &common.InvalidArgumentError{Arg: "locator", Reason: "empty"}
			})
		},
	}})
	require.NoError(t, err)
	res := summary.Results[0]
	require.ErrorIs(t, res.Err, common.ErrInvalidArgument)
	assert.ErrorContains(t, res.Err, "click save: ")
}

func TestCoordinatorHooks(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	pipeline := report.NewPipeline("hooks", store, report.FlushAtEnd, nil)
	m := metrics.New()
	c := NewCoordinator(pipeline, retry.NewTracker(2), WithMetrics(m))
	ctx := context.Background()

	_, entry, err := c.OnTestStart(ctx, "search")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Attempt())
	assert.Same(t, entry, c.Entry("search"))

	_, _, err = c.OnTestStart(ctx, "search")
	require.ErrorIs(t, err, ErrAlreadyStarted)

	require.NoError(t, c.Log("search", report.Warn, "slow results"))
	require.ErrorIs(t, c.Log("other", report.Info, "x"), ErrNotStarted)
	require.ErrorIs(t, c.OnTestSuccess(ctx, "other"), ErrNotStarted)

	require.NoError(t, c.OnTestFailure(ctx, "search", "results not shown"))
	assert.Nil(t, c.Entry("search"))
	assert.True(t, c.ShouldRetry("search", false))

	_, entry, err = c.OnTestStart(ctx, "search")
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Attempt())
	require.NoError(t, c.OnTestSuccess(ctx, "search"))
	assert.False(t, c.ShouldRetry("search", true))

	// The decision was final; a new run of the test starts over.
	_, entry, err = c.OnTestStart(ctx, "search")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Attempt())

	_, err = c.Flush(ctx)
	var pending *report.PendingEntriesError
	require.ErrorAs(t, err, &pending)
	assert.Equal(t, 0, store.count())

	require.NoError(t, c.OnTestSuccess(ctx, "search"))
	path, err := c.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mem://report", path)
	snap := store.last()
	assert.Equal(t, 3, snap.Summary.Entries)
	assert.Equal(t, 1, snap.Summary.Flaky)
}
