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
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/liuxd6825/webcheck/common"
	"github.com/liuxd6825/webcheck/errext"
	"github.com/liuxd6825/webcheck/errext/exitcodes"
	"github.com/liuxd6825/webcheck/log"
	"github.com/liuxd6825/webcheck/metrics"
	"github.com/liuxd6825/webcheck/report"
	"github.com/liuxd6825/webcheck/trace"
)

// TestFunc is the body of a test.
type TestFunc func(ctx context.Context, ec *ExecutionContext) error

// Test is one logical test. Its name is its identity for retries, so names
// must be unique within a run.
type Test struct {
	Name string
	// Browser overrides the default browser of the run.
	Browser string
	// Vars are exposed to the body through ExecutionContext.Var.
	Vars map[string]string
	Run  TestFunc
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Backend   common.Backend
	Browser   string
	Wait      common.WaitConfiguration
	AppURL    string
	Artifacts common.ArtifactStore
	SlowMo    time.Duration
	// ScreenshotOnFailure captures the focused window of a failed attempt
	// and attaches it to the report entry.
	ScreenshotOnFailure bool
	// Parallel bounds the number of tests running at once; values below 2
	// run sequentially.
	Parallel int

	Logger  *log.Logger
	Tracer  *trace.Tracer
	Metrics *metrics.Metrics
}

// Result is the outcome of one logical test.
type Result struct {
	Name     string
	Passed   bool
	Attempts int
	Err      error
}

// Flaky reports whether the test passed after at least one failed attempt.
func (r Result) Flaky() bool { return r.Passed && r.Attempts > 1 }

// Summary is the outcome of a run.
type Summary struct {
	Results    []Result
	ReportPath string
	Duration   time.Duration
}

// Passed returns the number of tests that passed.
func (s Summary) Passed() int {
	n := 0
	for _, r := range s.Results {
		if r.Passed {
			n++
		}
	}
	return n
}

// Failed returns the number of tests that failed.
func (s Summary) Failed() int { return len(s.Results) - s.Passed() }

// Flaky returns the number of tests that passed after a retry.
func (s Summary) Flaky() int {
	n := 0
	for _, r := range s.Results {
		if r.Flaky() {
			n++
		}
	}
	return n
}

// Runner executes tests through a Coordinator, retrying failed attempts as
// long as the retry policy allows.
type Runner struct {
	cfg   RunnerConfig
	coord *Coordinator
	hooks *common.Hooks
}

// NewRunner returns a runner for cfg reporting through coord.
func NewRunner(cfg RunnerConfig, coord *Coordinator) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = log.NewNullLogger()
	}
	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}
	return &Runner{cfg: cfg, coord: coord, hooks: common.NewHooks()}
}

// Run executes tests and flushes the report. Tests run in order unless
// Parallel is above 1, in which case the report is only written at the end.
// Failed tests do not make Run fail; the returned error is about the run
// itself: interruption or a report that could not be written.
func (r *Runner) Run(ctx context.Context, tests []Test) (Summary, error) {
	start := time.Now()
	if err := validateTests(tests); err != nil {
		return Summary{}, err
	}

	pipeline := r.coord.Pipeline()
	if r.cfg.Parallel > 1 && pipeline.Policy() == report.FlushEachTest {
		r.cfg.Logger.Warnf(categoryLifecycle, "parallel runs flush the report at the end only")
		pipeline.SetPolicy(report.FlushAtEnd)
	}

	ctx = common.WithHooks(ctx, r.hooks)
	if r.cfg.SlowMo > 0 {
		ctx = common.WithSlowMo(ctx, r.cfg.SlowMo)
	}

	results := make([]Result, len(tests))
	var (
		g        errgroup.Group
		storeMu  sync.Mutex
		storeErr error
	)
	g.SetLimit(r.cfg.Parallel)
	for i, t := range tests {
		i, t := i, t
		g.Go(func() error {
			res, err := r.runTest(ctx, t)
			results[i] = res
			if err != nil {
				storeMu.Lock()
				storeErr = errors.Join(storeErr, err)
				storeMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{Results: results}
	path, err := r.coord.Flush(context.WithoutCancel(ctx))
	switch {
	case errors.Is(err, report.ErrNoStore):
	case err != nil:
		storeErr = errors.Join(storeErr, err)
	default:
		summary.ReportPath = path
	}
	summary.Duration = time.Since(start)

	if storeErr != nil {
		return summary, errext.WithExitCodeIfNone(
			fmt.Errorf("writing report: %w", storeErr), exitcodes.ReportFailed)
	}
	if ctx.Err() != nil {
		return summary, errext.WithExitCodeIfNone(ctx.Err(), exitcodes.RunAborted)
	}
	return summary, nil
}

func validateTests(tests []Test) error {
	seen := make(map[string]struct{}, len(tests))
	for _, t := range tests {
		if t.Name == "" || t.Run == nil {
			return &common.InvalidArgumentError{Arg: "test", Value: t.Name, Reason: "needs a name and a body"}
		}
		if _, ok := seen[t.Name]; ok {
			return &common.InvalidArgumentError{Arg: "test", Value: t.Name, Reason: "duplicate name"}
		}
		seen[t.Name] = struct{}{}
	}
	return nil
}

// runTest invokes t until it passes, fails with a non-retryable error or
// runs out of retries. The returned error is a report store failure.
func (r *Runner) runTest(ctx context.Context, t Test) (Result, error) {
	res := Result{Name: t.Name}
	for {
		if ctx.Err() != nil {
			if res.Err == nil {
				res.Err = ctx.Err()
			}
			r.coord.GiveUp(t.Name)
			return res, nil
		}

		res.Attempts++
		runErr, err := r.invoke(ctx, t)
		res.Passed, res.Err = runErr == nil, runErr
		if err != nil {
			r.coord.GiveUp(t.Name)
			return res, err
		}

		if runErr != nil && (!common.IsRetryable(runErr) || ctx.Err() != nil) {
			r.cfg.Logger.Debugf(categoryLifecycle, "not retrying %q: %v", t.Name, runErr)
			r.coord.GiveUp(t.Name)
			return res, nil
		}
		if !r.coord.ShouldRetry(t.Name, res.Passed) {
			return res, nil
		}
	}
}

// invoke runs one attempt of t in its own execution context. It returns the
// test error and, separately, a failure of the reporting pipeline.
func (r *Runner) invoke(ctx context.Context, t Test) (runErr error, err error) {
	ctx, entry, err := r.coord.OnTestStart(ctx, t.Name)
	if err != nil {
		return fmt.Errorf("starting %q: %w", t.Name, err), err
	}

	browser := t.Browser
	if browser == "" {
		browser = r.cfg.Browser
	}
	ec := &ExecutionContext{
		test:    t.Name,
		attempt: entry.Attempt(),
		entry:   entry,
		vars:    t.Vars,
		browser: browser,
		drivers: common.NewDriverManager(r.cfg.Backend, r.cfg.Logger),
		pageOpts: common.PageOptions{
			Wait:      r.cfg.Wait,
			AppURL:    r.cfg.AppURL,
			Artifacts: r.cfg.Artifacts,
			Logger:    r.cfg.Logger,
		},
		tracer:  r.cfg.Tracer,
		metrics: r.cfg.Metrics,
		logger:  r.cfg.Logger,
	}

	runErr = r.call(ctx, t, ec)
	if runErr != nil && r.cfg.ScreenshotOnFailure {
		ec.screenshot(ctx)
	}
	if terr := ec.teardown(); terr != nil {
		r.cfg.Logger.Warnf(categoryLifecycle, "teardown of %q: %v", t.Name, terr)
	}

	// The attempt is reported even when the run was interrupted.
	rctx := context.WithoutCancel(ctx)
	if runErr == nil {
		return nil, r.coord.OnTestSuccess(rctx, t.Name)
	}
	r.cfg.Logger.Warnf(categoryLifecycle, "test %q attempt %d failed: %v", t.Name, ec.attempt, runErr)
	return runErr, r.coord.OnTestFailure(rctx, t.Name, runErr.Error())
}

// call runs the body, turning a panic into a test failure.
func (r *Runner) call(ctx context.Context, t Test, ec *ExecutionContext) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errext.WithExitCodeIfNone(fmt.Errorf("test %q panicked: %v", t.Name, rec), exitcodes.TestsFailed)
		}
	}()
	return t.Run(ctx, ec)
}
