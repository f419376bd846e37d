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

package retry

import "sync"

// Tracker keeps one Policy per test identity. A policy is created on the
// first decision for a test and discarded once the decision is final, so a
// later run of the same test starts over with a fresh budget.
type Tracker struct {
	limit int

	mu       sync.Mutex
	policies map[string]*Policy
}

// NewTracker returns a tracker whose policies allow limit extra attempts.
func NewTracker(limit int) *Tracker {
	return &Tracker{limit: limit, policies: make(map[string]*Policy)}
}

// Policy returns the live policy of test, creating it if needed.
func (t *Tracker) Policy(test string) *Policy {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.policies[test]
	if !ok {
		p = NewPolicy(t.limit)
		t.policies[test] = p
	}
	return p
}

// Retry records the result of the last attempt of test and reports whether
// it must be invoked again. The policy is discarded on a final decision.
func (t *Tracker) Retry(test string, success bool) bool {
	p := t.Policy(test)
	again := p.Retry(success)
	if !again {
		t.Discard(test)
	}
	return again
}

// GiveUp ends the retries of test and discards its policy.
func (t *Tracker) GiveUp(test string) {
	t.Policy(test).GiveUp()
	t.Discard(test)
}

// Attempts returns the attempts recorded for a live policy of test, or 0.
func (t *Tracker) Attempts(test string) int {
	t.mu.Lock()
	p, ok := t.policies[test]
	t.mu.Unlock()
	if !ok {
		return 0
	}
	return p.Attempts()
}

// Discard drops the policy of test.
func (t *Tracker) Discard(test string) {
	t.mu.Lock()
	delete(t.policies, test)
	t.mu.Unlock()
}

// Len returns the number of live policies.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.policies)
}
