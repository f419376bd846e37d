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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrEntrySealed is returned when logging to or sealing an entry that
// already has a terminal status.
var ErrEntrySealed = errors.New("report entry already sealed")

// Line is one classified log line of an entry.
type Line struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Entry is the ordered log of one test invocation. It is created Pending,
// appended to while the test runs and sealed exactly once with a terminal
// status.
type Entry struct {
	id      string
	name    string
	attempt int
	started time.Time

	mu         sync.Mutex
	ended      time.Time
	status     Status
	errMsg     string
	lines      []Line
	artifacts  []string
	onLine     func(*Entry, Line)
	timeSource func() time.Time
}

func newEntry(name string, attempt int, now func() time.Time, onLine func(*Entry, Line)) *Entry {
	if attempt < 1 {
		attempt = 1
	}
	return &Entry{
		id:         uuid.NewString(),
		name:       name,
		attempt:    attempt,
		started:    now(),
		onLine:     onLine,
		timeSource: now,
	}
}

// ID returns the unique entry identifier.
func (e *Entry) ID() string { return e.id }

// Name returns the test name.
func (e *Entry) Name() string { return e.name }

// Attempt returns the 1-based invocation number of the test.
func (e *Entry) Attempt() int { return e.attempt }

// Log appends a line. Levels outside the closed set are rejected with
// ErrUnknownLevel.
func (e *Entry) Log(level Level, msg string) error {
	if !level.Valid() {
		return fmt.Errorf("%s: %w", level, ErrUnknownLevel)
	}
	e.mu.Lock()
	if e.status != Pending {
		e.mu.Unlock()
		return fmt.Errorf("logging to %q: %w", e.name, ErrEntrySealed)
	}
	l := Line{Level: level, Message: msg, Time: e.timeSource()}
	e.lines = append(e.lines, l)
	onLine := e.onLine
	e.mu.Unlock()

	if onLine != nil {
		onLine(e, l)
	}
	return nil
}

// Info appends an info line.
func (e *Entry) Info(msg string) error { return e.Log(Info, msg) }

// Pass appends a pass line.
func (e *Entry) Pass(msg string) error { return e.Log(Pass, msg) }

// Fail appends a fail line.
func (e *Entry) Fail(msg string) error { return e.Log(Fail, msg) }

// Warn appends a warn line.
func (e *Entry) Warn(msg string) error { return e.Log(Warn, msg) }

// Attach records the path of an artifact, such as a screenshot.
func (e *Entry) Attach(path string) {
	e.mu.Lock()
	e.artifacts = append(e.artifacts, path)
	e.mu.Unlock()
}

// Seal sets the terminal status. Only Passed and Failed are accepted, and
// only once.
func (e *Entry) Seal(status Status, errMsg string) error {
	if status != Passed && status != Failed {
		return fmt.Errorf("sealing %q with %s: not a terminal status", e.name, status)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != Pending {
		return fmt.Errorf("sealing %q: %w", e.name, ErrEntrySealed)
	}
	e.status = status
	e.errMsg = errMsg
	e.ended = e.timeSource()
	return nil
}

// Status returns the current status.
func (e *Entry) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Lines returns a copy of the lines logged so far.
func (e *Entry) Lines() []Line {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Line(nil), e.lines...)
}

// EntrySnapshot is an immutable copy of an entry, as persisted by stores.
type EntrySnapshot struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Attempt   int           `json:"attempt"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Started   time.Time     `json:"started"`
	Ended     time.Time     `json:"ended"`
	Duration  time.Duration `json:"duration"`
	Lines     []Line        `json:"lines"`
	Artifacts []string      `json:"artifacts,omitempty"`
}

// Snapshot returns a copy of the entry.
func (e *Entry) Snapshot() EntrySnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := EntrySnapshot{
		ID:        e.id,
		Name:      e.name,
		Attempt:   e.attempt,
		Status:    e.status,
		Error:     e.errMsg,
		Started:   e.started,
		Ended:     e.ended,
		Lines:     append([]Line(nil), e.lines...),
		Artifacts: append([]string(nil), e.artifacts...),
	}
	if !e.ended.IsZero() {
		s.Duration = e.ended.Sub(e.started)
	}
	return s
}
