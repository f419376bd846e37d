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

// Package lifecycle connects test framework events to the reporting
// pipeline and the retry decisions, and runs tests with one execution
// context per invocation.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/liuxd6825/webcheck/common"
	"github.com/liuxd6825/webcheck/log"
	"github.com/liuxd6825/webcheck/metrics"
	"github.com/liuxd6825/webcheck/report"
	"github.com/liuxd6825/webcheck/retry"
	"github.com/liuxd6825/webcheck/trace"
)

const categoryLifecycle = "Lifecycle"

// Errors returned by the Coordinator hooks.
var (
	ErrNotStarted     = errors.New("test not started")
	ErrAlreadyStarted = errors.New("test already started")
)

// invocation is the running attempt of one test.
type invocation struct {
	entry   *report.Entry
	started time.Time
}

// Coordinator receives start, success and failure events from a test
// runner, keeps one report entry open per running test and exposes the
// retry decision for it.
type Coordinator struct {
	pipeline *report.Pipeline
	tracker  *retry.Tracker
	tracer   *trace.Tracer
	metrics  *metrics.Metrics
	logger   *log.Logger

	mu     sync.Mutex
	active map[string]*invocation
}

// CoordinatorOption configures optional collaborators of a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithTracer traces every attempt as a span.
func WithTracer(t *trace.Tracer) CoordinatorOption {
	return func(c *Coordinator) { c.tracer = t }
}

// WithMetrics records attempt outcomes and retries.
func WithMetrics(m *metrics.Metrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator returns a coordinator writing to pipeline and deciding
// retries with tracker.
func NewCoordinator(pipeline *report.Pipeline, tracker *retry.Tracker, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		pipeline: pipeline,
		tracker:  tracker,
		logger:   log.NewNullLogger(),
		active:   make(map[string]*invocation),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pipeline returns the reporting pipeline.
func (c *Coordinator) Pipeline() *report.Pipeline { return c.pipeline }

// OnTestStart opens a Pending report entry for the next attempt of name.
// The returned context carries the test name and, when tracing, the span
// of the attempt.
func (c *Coordinator) OnTestStart(ctx context.Context, name string) (context.Context, *report.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.active[name]; ok {
		return ctx, nil, fmt.Errorf("%q: %w", name, ErrAlreadyStarted)
	}
	attempt := c.tracker.Policy(name).Attempts()
	entry := c.pipeline.StartReporting(name, attempt)
	c.active[name] = &invocation{entry: entry, started: time.Now()}

	if c.tracer != nil {
		ctx, _ = c.tracer.StartTest(ctx, name, attempt)
	}
	c.logger.Debugf(categoryLifecycle, "test %q attempt %d started", name, attempt)

	return common.WithTestName(ctx, name), entry, nil
}

// OnTestSuccess seals the running attempt of name as Passed.
func (c *Coordinator) OnTestSuccess(ctx context.Context, name string) error {
	return c.finish(ctx, name, report.Passed, "")
}

// OnTestFailure seals the running attempt of name as Failed with errMsg.
func (c *Coordinator) OnTestFailure(ctx context.Context, name, errMsg string) error {
	return c.finish(ctx, name, report.Failed, errMsg)
}

func (c *Coordinator) finish(ctx context.Context, name string, status report.Status, errMsg string) error {
	c.mu.Lock()
	inv, ok := c.active[name]
	delete(c.active, name)
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("%q: %w", name, ErrNotStarted)
	}

	if c.tracer != nil {
		var err error
		if status == report.Failed {
			err = errors.New(errMsg)
		}
		c.tracer.EndTest(name, err)
	}
	c.metrics.ObserveTest(status.String(), time.Since(inv.started))
	c.logger.Debugf(categoryLifecycle, "test %q attempt %d %s", name, inv.entry.Attempt(), status)

	return c.pipeline.StopReporting(ctx, inv.entry, status, errMsg)
}

// ShouldRetry records the result of the last attempt of name and reports
// whether the runner must invoke it again.
func (c *Coordinator) ShouldRetry(name string, success bool) bool {
	again := c.tracker.Retry(name, success)
	if again {
		c.metrics.ObserveRetry()
		c.logger.Infof(categoryLifecycle, "retrying %q", name)
	}
	return again
}

// GiveUp ends the retries of name, regardless of the remaining budget.
func (c *Coordinator) GiveUp(name string) {
	c.tracker.GiveUp(name)
}

// Log appends a line to the running attempt of name.
func (c *Coordinator) Log(name string, level report.Level, msg string) error {
	e := c.Entry(name)
	if e == nil {
		return fmt.Errorf("logging to %q: %w", name, ErrNotStarted)
	}
	return e.Log(level, msg)
}

// Entry returns the entry of the running attempt of name, or nil.
func (c *Coordinator) Entry(name string) *report.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if inv, ok := c.active[name]; ok {
		return inv.entry
	}
	return nil
}

// Flush writes the report.
func (c *Coordinator) Flush(ctx context.Context) (string, error) {
	return c.pipeline.Flush(ctx)
}
