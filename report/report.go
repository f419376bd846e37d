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
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PendingEntriesError is returned when a report is flushed while some of
// its entries never reached a terminal status.
type PendingEntriesError struct {
	Names []string
}

func (e *PendingEntriesError) Error() string {
	return fmt.Sprintf("%d report entries still pending: %s", len(e.Names), strings.Join(e.Names, ", "))
}

// Report is the ordered collection of all entries of a run.
type Report struct {
	id      string
	title   string
	started time.Time
	now     func() time.Time
	onLine  func(*Entry, Line)

	mu      sync.Mutex
	entries []*Entry
}

// New returns an empty report.
func New(title string) *Report {
	return newReport(title, time.Now, nil)
}

func newReport(title string, now func() time.Time, onLine func(*Entry, Line)) *Report {
	return &Report{id: uuid.NewString(), title: title, started: now(), now: now, onLine: onLine}
}

// Title returns the report title.
func (r *Report) Title() string { return r.title }

// StartEntry creates a Pending entry for one invocation of test.
func (r *Report) StartEntry(test string, attempt int) *Entry {
	e := newEntry(test, attempt, r.now, r.onLine)
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
	return e
}

// Entries returns the entries in creation order.
func (r *Report) Entries() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Entry(nil), r.entries...)
}

// Validate fails with *PendingEntriesError if any entry is still Pending.
func (r *Report) Validate() error {
	var pending []string
	for _, e := range r.Entries() {
		if e.Status() == Pending {
			pending = append(pending, e.Name())
		}
	}
	if len(pending) > 0 {
		return &PendingEntriesError{Names: pending}
	}
	return nil
}

// Summary counts entries by outcome.
type Summary struct {
	Entries int `json:"entries"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
	// Tests counts distinct test names, Flaky those that failed at least
	// once and passed on a later attempt.
	Tests int `json:"tests"`
	Flaky int `json:"flaky"`
}

// Snapshot is an immutable copy of the whole report.
type Snapshot struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Started   time.Time       `json:"started"`
	Generated time.Time       `json:"generated"`
	Summary   Summary         `json:"summary"`
	Entries   []EntrySnapshot `json:"entries"`
}

// Snapshot copies the report and computes its summary.
func (r *Report) Snapshot() Snapshot {
	entries := r.Entries()
	s := Snapshot{
		ID:        r.id,
		Title:     r.title,
		Started:   r.started,
		Generated: r.now(),
		Entries:   make([]EntrySnapshot, 0, len(entries)),
	}
	failedOnce := make(map[string]bool)
	final := make(map[string]Status)
	for _, e := range entries {
		es := e.Snapshot()
		s.Entries = append(s.Entries, es)
		switch es.Status {
		case Passed:
			s.Summary.Passed++
		case Failed:
			s.Summary.Failed++
			failedOnce[es.Name] = true
		case Pending:
			s.Summary.Pending++
		}
		final[es.Name] = es.Status
	}
	s.Summary.Entries = len(entries)
	s.Summary.Tests = len(final)
	for name, st := range final {
		if st == Passed && failedOnce[name] {
			s.Summary.Flaky++
		}
	}
	return s
}
