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

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run invokes body until the policy says stop and returns the invocations.
func run(p *Policy, body func(attempt int) bool) int {
	invocations := 0
	for {
		invocations++
		if !p.Retry(body(invocations)) {
			return invocations
		}
	}
}

func TestPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		limit       int
		succeedAt   int
		invocations int
		state       State
	}{
		{"always failing", DefaultLimit, 0, 3, Exhausted},
		{"succeeds first", DefaultLimit, 1, 1, Succeeded},
		{"succeeds on second", DefaultLimit, 2, 2, Succeeded},
		{"succeeds on third", DefaultLimit, 3, 3, Succeeded},
		{"succeeds too late", DefaultLimit, 4, 3, Exhausted},
		{"no retries", 0, 0, 1, Exhausted},
		{"negative limit", -1, 0, 1, Exhausted},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := NewPolicy(tt.limit)
			assert.Equal(t, Pending, p.State())
			got := run(p, func(attempt int) bool { return attempt == tt.succeedAt })
			assert.Equal(t, tt.invocations, got)
			assert.Equal(t, tt.state, p.State())
			assert.Equal(t, tt.invocations, p.Attempts())
		})
	}
}

func TestPolicyTransitions(t *testing.T) {
	t.Parallel()

	p := NewPolicy(2)
	require.True(t, p.Retry(false))
	assert.Equal(t, Retrying, p.State())
	require.True(t, p.Retry(false))
	assert.Equal(t, Retrying, p.State())
	require.False(t, p.Retry(false))
	assert.Equal(t, Exhausted, p.State())

	// terminal states ignore further results
	require.False(t, p.Retry(false))
	require.False(t, p.Retry(true))
	assert.Equal(t, Exhausted, p.State())
	assert.Equal(t, 3, p.Attempts())
}

func TestPolicyGiveUp(t *testing.T) {
	t.Parallel()

	p := NewPolicy(2)
	p.GiveUp()
	assert.Equal(t, Exhausted, p.State())
	assert.Equal(t, 1, p.Attempts())
	assert.False(t, p.Retry(false))

	s := NewPolicy(2)
	require.False(t, s.Retry(true))
	s.GiveUp()
	assert.Equal(t, Succeeded, s.State())
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "retrying", Retrying.String())
	assert.Equal(t, "exhausted", Exhausted.String())
	assert.Equal(t, "succeeded", Succeeded.String())
	assert.Equal(t, "State(7)", State(7).String())
}

func TestTrackerIsolatesTests(t *testing.T) {
	t.Parallel()

	tr := NewTracker(DefaultLimit)

	// "login" exhausts its budget
	require.True(t, tr.Retry("login", false))
	require.True(t, tr.Retry("login", false))
	require.False(t, tr.Retry("login", false))
	assert.Equal(t, 0, tr.Len())

	// an unrelated test starts with a full budget
	require.True(t, tr.Retry("cookies", false))
	assert.Equal(t, 2, tr.Attempts("cookies"))
	require.False(t, tr.Retry("cookies", true))
	assert.Zero(t, tr.Attempts("cookies"))

	// and so does the next run of the same test
	require.True(t, tr.Retry("login", false))
	require.True(t, tr.Retry("login", false))
	require.False(t, tr.Retry("login", false))
}

func TestTrackerGiveUp(t *testing.T) {
	t.Parallel()

	tr := NewTracker(DefaultLimit)
	require.True(t, tr.Retry("checkout", false))
	tr.GiveUp("checkout")
	assert.Equal(t, 0, tr.Len())
}

func TestTrackerConcurrent(t *testing.T) {
	t.Parallel()

	tr := NewTracker(DefaultLimit)
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	var wg sync.WaitGroup
	counts := make([]int, len(names))
	for i, name := range names {
		i, name := i, name
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				counts[i]++
				if !tr.Retry(name, false) {
					return
				}
			}
		}()
	}
	wg.Wait()

	for i := range names {
		assert.Equal(t, 3, counts[i])
	}
	assert.Zero(t, tr.Len())
}
