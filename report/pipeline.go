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

package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// FlushPolicy selects when the report is written.
type FlushPolicy int

// Flush policies. FlushEachTest rewrites the whole report on every
// StopReporting, so its cost grows with the number of finished tests.
const (
	FlushAtEnd FlushPolicy = iota
	FlushEachTest
)

// ParseFlushPolicy parses "end" or "each-test".
func ParseFlushPolicy(s string) (FlushPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "end":
		return FlushAtEnd, nil
	case "each-test", "each":
		return FlushEachTest, nil
	default:
		return 0, fmt.Errorf("unknown flush policy %q, expected end or each-test", s)
	}
}

func (p FlushPolicy) String() string {
	if p == FlushEachTest {
		return "each-test"
	}
	return "end"
}

// Pipeline connects test lifecycle events to a report and its store. Every
// logged line is mirrored to logrus with the test, attempt and level fields.
type Pipeline struct {
	report *Report
	store  Store
	policy FlushPolicy
	logger logrus.FieldLogger

	flushMu sync.Mutex
	last    string
}

// NewPipeline returns a pipeline for a new report titled title. A nil store
// keeps the report in memory only.
func NewPipeline(title string, store Store, policy FlushPolicy, logger logrus.FieldLogger) *Pipeline {
	if logger == nil {
		l := logrus.New()
		l.Out = io.Discard
		logger = l
	}
	p := &Pipeline{store: store, policy: policy, logger: logger}
	p.report = newReport(title, time.Now, p.mirror)
	return p
}

func (p *Pipeline) mirror(e *Entry, l Line) {
	fl := p.logger.WithFields(logrus.Fields{
		"test":    e.Name(),
		"attempt": e.Attempt(),
		"level":   l.Level.String(),
	})
	switch l.Level {
	case Fail:
		fl.Error(l.Message)
	case Warn:
		fl.Warn(l.Message)
	default:
		fl.Info(l.Message)
	}
}

// Report returns the report being built.
func (p *Pipeline) Report() *Report { return p.report }

// Policy returns the flush policy.
func (p *Pipeline) Policy() FlushPolicy {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()
	return p.policy
}

// SetPolicy changes the flush policy for the entries stopped afterwards.
func (p *Pipeline) SetPolicy(policy FlushPolicy) {
	p.flushMu.Lock()
	p.policy = policy
	p.flushMu.Unlock()
}

// StartReporting opens a Pending entry for one invocation of test.
func (p *Pipeline) StartReporting(test string, attempt int) *Entry {
	e := p.report.StartEntry(test, attempt)
	p.logger.WithFields(logrus.Fields{"test": test, "attempt": e.Attempt()}).Debug("test started")
	return e
}

// StopReporting seals e with status and, under FlushEachTest, writes the
// whole report.
func (p *Pipeline) StopReporting(ctx context.Context, e *Entry, status Status, errMsg string) error {
	if err := e.Seal(status, errMsg); err != nil {
		return err
	}
	p.logger.WithFields(logrus.Fields{
		"test": e.Name(), "attempt": e.Attempt(), "status": status.String(),
	}).Debug("test finished")

	if p.Policy() != FlushEachTest {
		return nil
	}
	_, err := p.Flush(ctx)
	return err
}

// ErrNoStore is returned by Flush on a pipeline without a store.
var ErrNoStore = errors.New("no report store configured")

// Flush writes the whole report to the store and returns its location.
// Nothing is written while any entry is still Pending.
func (p *Pipeline) Flush(ctx context.Context) (string, error) {
	if p.store == nil {
		return "", ErrNoStore
	}
	if err := p.report.Validate(); err != nil {
		return "", err
	}

	p.flushMu.Lock()
	defer p.flushMu.Unlock()
	path, err := p.store.Write(ctx, p.report.Snapshot())
	if err != nil {
		return "", err
	}
	p.last = path
	return path, nil
}

// LastFlushed returns the location of the last successful flush.
func (p *Pipeline) LastFlushed() string {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()
	return p.last
}
