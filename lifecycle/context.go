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
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/liuxd6825/webcheck/common"
	"github.com/liuxd6825/webcheck/log"
	"github.com/liuxd6825/webcheck/metrics"
	"github.com/liuxd6825/webcheck/report"
	"github.com/liuxd6825/webcheck/trace"
)

// ExecutionContext is what a test invocation runs with: its own driver
// manager, report entry and variables. Nothing in it is shared with other
// invocations.
type ExecutionContext struct {
	test    string
	attempt int
	entry   *report.Entry
	vars    map[string]string

	browser  string
	drivers  *common.DriverManager
	pageOpts common.PageOptions
	tracer   *trace.Tracer
	metrics  *metrics.Metrics
	logger   *log.Logger

	mu   sync.Mutex
	page *common.Page
}

// Test returns the name of the running test.
func (ec *ExecutionContext) Test() string { return ec.test }

// Attempt returns the 1-based attempt number.
func (ec *ExecutionContext) Attempt() int { return ec.attempt }

// Entry returns the report entry of the invocation.
func (ec *ExecutionContext) Entry() *report.Entry { return ec.entry }

// Drivers returns the driver manager owned by the invocation.
func (ec *ExecutionContext) Drivers() *common.DriverManager { return ec.drivers }

// Var returns the variable key, or "" when it is not set.
func (ec *ExecutionContext) Var(key string) string { return ec.vars[key] }

// Vars returns the variables of the invocation.
func (ec *ExecutionContext) Vars() map[string]string { return ec.vars }

// Launch starts a browser session and binds a new page to it. An empty
// browser uses the configured default. A previous session is torn down.
func (ec *ExecutionContext) Launch(ctx context.Context, browser string) (*common.Page, error) {
	if browser == "" {
		browser = ec.browser
	}
	s, err := ec.drivers.Launch(ctx, browser)
	if err != nil {
		return nil, err
	}
	ec.metrics.ObserveSession(s.Kind().String())

	p := common.NewPage(s, ec.pageOpts)
	ec.mu.Lock()
	ec.page = p
	ec.mu.Unlock()
	return p, nil
}

// Page returns the page of the active session, launching the default
// browser on first use.
func (ec *ExecutionContext) Page(ctx context.Context) (*common.Page, error) {
	ec.mu.Lock()
	p := ec.page
	ec.mu.Unlock()
	if p != nil && !p.Session.Closed() {
		return p, nil
	}
	return ec.Launch(ctx, "")
}

// Log appends a line to the report entry of the invocation.
func (ec *ExecutionContext) Log(level report.Level, msg string) error {
	return ec.entry.Log(level, msg)
}

// Step runs fn as a named step of the test, traced as its own span.
func (ec *ExecutionContext) Step(ctx context.Context, name string, fn func(context.Context) error) error {
	span := oteltrace.Span(noop.Span{})
	if ec.tracer != nil {
		ctx, span = ec.tracer.TraceAction(ctx, ec.test, name)
	}
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// screenshot captures the focused window of the active session, if any,
// and attaches the artifact to the report entry.
func (ec *ExecutionContext) screenshot(ctx context.Context) {
	ec.mu.Lock()
	p := ec.page
	ec.mu.Unlock()
	if p == nil || p.Session.Closed() {
		return
	}
	name := fmt.Sprintf("%s_attempt%d_%s", ec.test, ec.attempt, common.UniqueID(""))
	path, err := p.ScreenshotOnFailure(ctx, name)
	if err != nil {
		ec.logger.Warnf(categoryLifecycle, "screenshot of %q failed: %v", ec.test, err)
		return
	}
	if path != "" {
		ec.entry.Attach(path)
	}
}

// teardown releases the session of the invocation.
func (ec *ExecutionContext) teardown() error {
	ec.mu.Lock()
	ec.page = nil
	ec.mu.Unlock()
	return ec.drivers.Teardown()
}
