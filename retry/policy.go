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

// Package retry decides whether a failed test invocation is executed again.
package retry

import (
	"fmt"
	"sync"
)

// DefaultLimit is the number of extra attempts after the first failure.
const DefaultLimit = 2

// State is the state of a retry policy.
type State int

// Policy states. Succeeded is terminal after a successful result.
const (
	Pending State = iota
	Retrying
	Exhausted
	Succeeded
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Retrying:
		return "retrying"
	case Exhausted:
		return "exhausted"
	case Succeeded:
		return "succeeded"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further decision will be made.
func (s State) Terminal() bool {
	return s == Exhausted || s == Succeeded
}

// Policy is the retry state machine of one logical test.
//
//	Pending  --fail, retries < limit-->  Retrying
//	Retrying --fail, retries < limit-->  Retrying
//	*        --fail, retries >= limit--> Exhausted
//	*        --success-->                Succeeded
type Policy struct {
	mu      sync.Mutex
	limit   int
	retries int
	state   State
}

// NewPolicy returns a policy allowing limit extra attempts. Negative limits
// are treated as zero.
func NewPolicy(limit int) *Policy {
	if limit < 0 {
		limit = 0
	}
	return &Policy{limit: limit}
}

// Retry records the result of the last attempt and reports whether the
// test must be invoked again. Results received in a terminal state are
// ignored.
func (p *Policy) Retry(success bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.Terminal() {
		return false
	}
	if success {
		p.state = Succeeded
		return false
	}
	if p.retries < p.limit {
		p.retries++
		p.state = Retrying
		return true
	}
	p.state = Exhausted
	return false
}

// GiveUp moves the policy to Exhausted without consuming a retry, for
// failures that must not be retried.
func (p *Policy) GiveUp() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.state.Terminal() {
		p.state = Exhausted
	}
}

// State returns the current state.
func (p *Policy) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Attempts returns the number of invocations so far, including the first.
func (p *Policy) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.retries + 1
}

// Limit returns the retry budget.
func (p *Policy) Limit() int {
	return p.limit
}
