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

// Package trace provides tracing instrumentation for test runs: one span
// per test attempt with child spans for the actions it performs.
package trace

import (
	"context"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "webcheck"

// liveSpan is the open span of a running test attempt.
type liveSpan struct {
	ctx  context.Context
	span trace.Span
}

// Tracer generates spans for test attempts. Actions traced with the name of
// a running test are attached to that test's span even when the caller's
// context does not carry it.
type Tracer struct {
	trace.Tracer

	metadata []attribute.KeyValue

	liveSpansMu sync.RWMutex
	liveSpans   map[string]*liveSpan
}

// NewTracer creates a new Tracer from the given TracerProvider.
func NewTracer(tp trace.TracerProvider, metadata map[string]string, options ...trace.TracerOption) *Tracer {
	meta := make([]attribute.KeyValue, 0, len(metadata))
	for k, v := range metadata {
		meta = append(meta, attribute.String(k, v))
	}
	return &Tracer{
		Tracer:    tp.Tracer(tracerName, options...),
		metadata:  meta,
		liveSpans: make(map[string]*liveSpan),
	}
}

// Start overrides the underlying OTEL tracer method to include the tracer metadata.
func (t *Tracer) Start(
	ctx context.Context, spanName string, opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	opts = append(opts, trace.WithAttributes(t.metadata...))
	return t.Tracer.Start(ctx, spanName, opts...)
}

// StartTest opens the span of one attempt of test. A still open span for the
// same test is ended first.
func (t *Tracer) StartTest(ctx context.Context, test string, attempt int) (context.Context, trace.Span) {
	t.liveSpansMu.Lock()
	defer t.liveSpansMu.Unlock()

	if ls := t.liveSpans[test]; ls != nil {
		ls.span.End()
	}

	ls := &liveSpan{}
	ls.ctx, ls.span = t.Start(ctx, "test "+test, trace.WithAttributes(
		attribute.String("test.name", test),
		attribute.String("test.attempt", strconv.Itoa(attempt)),
	))
	t.liveSpans[test] = ls

	return ls.ctx, ls.span
}

// TraceAction adds a span for action under the live span of test. Without a
// live span it is created from ctx. It is the caller's responsibility to end
// the returned span.
func (t *Tracer) TraceAction(
	ctx context.Context, test, action string, opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	t.liveSpansMu.RLock()
	ls := t.liveSpans[test]
	t.liveSpansMu.RUnlock()

	if ls != nil {
		ctx = ls.ctx
	}
	return t.Start(ctx, action, opts...)
}

// EndTest ends the live span of test, recording err as its status.
func (t *Tracer) EndTest(test string, err error) {
	t.liveSpansMu.Lock()
	ls := t.liveSpans[test]
	delete(t.liveSpans, test)
	t.liveSpansMu.Unlock()

	if ls == nil {
		return
	}
	if err != nil {
		ls.span.RecordError(err)
		ls.span.SetStatus(codes.Error, err.Error())
	} else {
		ls.span.SetStatus(codes.Ok, "")
	}
	ls.span.End()
}
